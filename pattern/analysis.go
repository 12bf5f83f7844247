package pattern

import (
	"sort"
	"strings"

	"github.com/c360/pointmap/schema"
	"github.com/c360/pointmap/types"
)

// DevicePatterns holds token statistics mined from points of one device type.
type DevicePatterns struct {
	Points       int            `json:"points"`
	NGrams       map[string]int `json:"ngrams"`   // token bigrams, "a b"
	Prefixes     map[string]int `json:"prefixes"` // first canonical token
	Suffixes     map[string]int `json:"suffixes"` // last canonical token
	Measurements map[string]int `json:"measurements"`
}

// Analysis maps device types to their mined patterns.
type Analysis map[string]*DevicePatterns

// Analyze mines n-gram, prefix, suffix, and measurement frequency tables per
// device type over the points' canonical tokens. The engine functions with
// an empty Analysis; this only seeds strategy priors and insights.
func Analyze(points []types.Point) Analysis {
	a := make(Analysis)
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		a.Add(p)
	}
	return a
}

// Add folds a single point into the analysis.
func (a Analysis) Add(p types.Point) {
	dp := a[p.DeviceType]
	if dp == nil {
		dp = &DevicePatterns{
			NGrams:       make(map[string]int),
			Prefixes:     make(map[string]int),
			Suffixes:     make(map[string]int),
			Measurements: make(map[string]int),
		}
		a[p.DeviceType] = dp
	}

	tokens := Extract(p.RawName)
	if len(tokens) == 0 {
		return
	}

	dp.Points++
	dp.Prefixes[tokens[0]]++
	dp.Suffixes[tokens[len(tokens)-1]]++
	for i := 0; i+1 < len(tokens); i++ {
		dp.NGrams[tokens[i]+" "+tokens[i+1]]++
	}
	seen := make(map[string]bool)
	for _, t := range tokens {
		if schema.IsMeasurement(t) && !seen[t] {
			seen[t] = true
			dp.Measurements[t]++
		}
	}
	if m := InferMeasurement(p.RawName, p.Unit); m != DefaultMeasurement && !seen[m] {
		dp.Measurements[m]++
	}
}

// MeasurementHint returns the most frequent learned measurement type for a
// device type, preferring measurements present in the point's own tokens.
// The second return is false when nothing was learned for the device type.
func (a Analysis) MeasurementHint(deviceType string, tokens []string) (string, bool) {
	dp := a[deviceType]
	if dp == nil || len(dp.Measurements) == 0 {
		return "", false
	}

	// A measurement token on the point itself wins outright
	for _, t := range tokens {
		if schema.IsMeasurement(t) && dp.Measurements[t] > 0 {
			return t, true
		}
	}

	best, bestCount := "", 0
	for m, count := range dp.Measurements {
		if count > bestCount || (count == bestCount && m < best) {
			best, bestCount = m, count
		}
	}
	return best, best != ""
}

// NGramInsight is one recurring token pair with its observed frequency.
type NGramInsight struct {
	DeviceType string `json:"device_type"`
	NGram      string `json:"ngram"`
	Count      int    `json:"count"`
}

// TopNGrams returns the n most frequent token bigrams across all device
// types, for human-readable batch insights.
func (a Analysis) TopNGrams(n int) []NGramInsight {
	var out []NGramInsight
	for deviceType, dp := range a {
		for ngram, count := range dp.NGrams {
			out = append(out, NGramInsight{DeviceType: deviceType, NGram: ngram, Count: count})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].DeviceType != out[j].DeviceType {
			return out[i].DeviceType < out[j].DeviceType
		}
		return out[i].NGram < out[j].NGram
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summary renders a short human-readable description of the analysis.
func (a Analysis) Summary() string {
	if len(a) == 0 {
		return "no patterns learned"
	}

	deviceTypes := make([]string, 0, len(a))
	for dt := range a {
		deviceTypes = append(deviceTypes, dt)
	}
	sort.Strings(deviceTypes)

	var b strings.Builder
	for _, dt := range deviceTypes {
		dp := a[dt]
		b.WriteString(dt)
		b.WriteString(": ")
		b.WriteString(strings.Join(topKeys(dp.Measurements, 3), ", "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func topKeys(m map[string]int, n int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
