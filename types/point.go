// Package types defines the shared domain types of the point mapping
// pipeline: BMS points, device groupings, and mapping method labels.
package types

import "strings"

// Point is a single BMS point as received from a collaborator. Points are
// immutable once ingested; the engine never mutates them.
type Point struct {
	RawName       string   `json:"raw_name"`
	DeviceType    string   `json:"device_type,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	SampleValue   string   `json:"sample_value,omitempty"`
	RelatedPoints []string `json:"related_points,omitempty"`
}

// Valid reports whether the point carries enough information to map.
func (p Point) Valid() bool {
	return strings.TrimSpace(p.RawName) != ""
}

// Grouping is the canonical nested grouping shape:
// device type -> device instance -> ordered list of point names.
type Grouping map[string]map[string][]string

// PointCount returns the total number of point names across the grouping.
func (g Grouping) PointCount() int {
	n := 0
	for _, instances := range g {
		for _, names := range instances {
			n += len(names)
		}
	}
	return n
}

// Method identifies how a mapping was ultimately produced. This is the
// user-visible signal a caller uses to decide whether to surface a warning.
type Method string

// Mapping method labels reported in outcomes and batch summaries.
const (
	MethodOracle       Method = "oracle"
	MethodOracleCached Method = "oracle-cached"
	MethodPattern      Method = "pattern-fallback"
	MethodMinimal      Method = "minimal-construction"
)
