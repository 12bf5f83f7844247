package oracle

import (
	"fmt"
	"strings"

	"github.com/c360/pointmap/pattern"
	"github.com/c360/pointmap/schema"
	"github.com/c360/pointmap/types"
)

// BuildRequest assembles the oracle context for a point: the point itself,
// its device-group siblings, prior examples from memory, and learned
// pattern hints.
func BuildRequest(point types.Point, group []string, examples []string, analysis pattern.Analysis) Request {
	prefix, _ := schema.PrefixFor(point.DeviceType)

	var hints string
	if len(analysis) > 0 {
		if dp := analysis[point.DeviceType]; dp != nil && len(dp.Measurements) > 0 {
			hints = analysis.Summary()
		}
	}

	siblings := group
	if len(siblings) == 0 {
		siblings = point.RelatedPoints
	}
	if len(siblings) > 10 {
		siblings = siblings[:10]
	}

	return Request{
		PointName:   point.RawName,
		DeviceType:  point.DeviceType,
		Unit:        point.Unit,
		SampleValue: point.SampleValue,
		Siblings:    siblings,
		Examples:    examples,
		Hints:       hints,
		Instruction: fmt.Sprintf(
			"Map the BMS point to an EnOS identifier of the form %s_<raw|calc>_<measurement>. "+
				"Valid measurements: %s. Respond with the identifier only.",
			prefix, strings.Join(schema.Measurements(), ", ")),
	}
}

// BuildReflection refines a failed request with the validator's findings so
// the retry can correct the specific violations instead of guessing again.
func BuildReflection(prev Request, candidate string, violations []schema.Violation) Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Your previous answer %q failed validation:\n", candidate)
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s: %s\n", v.Rule, v.Message)
	}
	b.WriteString(prev.Instruction)

	refined := prev
	refined.Instruction = b.String()
	return refined
}
