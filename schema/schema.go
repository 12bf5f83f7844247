// Package schema implements the EnOS point identifier grammar: a validated
// identifier is PREFIX_CATEGORY_MEASUREMENT with optional free-form trailing
// context segments. Validation is pure and deterministic so it can gate
// untrusted oracle output.
package schema

import (
	"sort"
	"strings"
)

// Match describes how a device type resolved to its EnOS prefix.
type Match int

const (
	// MatchExact means the device type was found directly in the prefix table.
	MatchExact Match = iota
	// MatchSynonym means the device type resolved through the synonym table.
	MatchSynonym
	// MatchPartial means a table key was found as a substring of the device type.
	MatchPartial
	// MatchDefault means no table entry applied and the generic prefix was used.
	MatchDefault
)

// String returns the string representation of Match
func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchSynonym:
		return "synonym"
	case MatchPartial:
		return "partial"
	default:
		return "default"
	}
}

// DefaultPrefix is used when a device type has no table entry. It is itself
// a valid prefix so fallback construction stays total.
const DefaultPrefix = "DEV"

// prefixTable maps canonical device type keys to EnOS prefixes.
// Keys are normalized: uppercase, alphanumeric only.
var prefixTable = map[string]string{
	"CH":      "CH",
	"CHILLER": "CH",
	"CHPL":    "CH",
	"CHWP":    "PUMP",
	"CWP":     "PUMP",
	"PUMP":    "PUMP",
	"HWP":     "PUMP",
	"AHU":     "AHU",
	"PAU":     "AHU",
	"FCU":     "FCU",
	"CT":      "CT",
	"BOILER":  "BOILER",
	"BLR":     "BOILER",
	"VAV":     "VAV",
	"METER":   "METER",
	"ENERGY":  "METER",
	"FAN":     "FAN",
	"EF":      "FAN",
	"EAF":     "FAN",
	"LIGHT":   "LIGHT",
	"SENSOR":  "SENSOR",
}

// prefixSynonyms maps spelled-out device descriptions to table keys.
var prefixSynonyms = map[string]string{
	"CHILLEDWATERPUMP":   "CHWP",
	"CONDENSERWATERPUMP": "CWP",
	"HOTWATERPUMP":       "HWP",
	"AIRHANDLINGUNIT":    "AHU",
	"AIRHANDLER":         "AHU",
	"FANCOILUNIT":        "FCU",
	"FANCOIL":            "FCU",
	"COOLINGTOWER":       "CT",
	"EXHAUSTFAN":         "EF",
	"POWERMETER":         "METER",
	"ENERGYMETER":        "METER",
	"LIGHTING":           "LIGHT",
}

// measurementTypes is the closed set accepted as segment 2.
var measurementTypes = map[string]bool{
	"temp":      true,
	"power":     true,
	"status":    true,
	"speed":     true,
	"pressure":  true,
	"flow":      true,
	"humidity":  true,
	"position":  true,
	"energy":    true,
	"current":   true,
	"voltage":   true,
	"frequency": true,
	"level":     true,
	"occupancy": true,
	"setpoint":  true,
	"mode":      true,
	"command":   true,
	"alarm":     true,
	"damper":    true,
	"valve":     true,
	"state":     true,
	"volume":    true,
}

// Violation identifies one validation rule failure.
type Violation struct {
	Rule    string
	Message string
}

// Violation rule identifiers, in evaluation order.
const (
	RuleSegmentCount = "segment_count"
	RulePrefix       = "prefix"
	RuleCategory     = "category"
	RuleMeasurement  = "measurement"
)

func normalizeDeviceType(deviceType string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(deviceType) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PrefixFor resolves the EnOS prefix for a device type. Resolution is
// case-insensitive and tolerates separators, synonyms, and partial matches.
// It is total: unknown device types resolve to DefaultPrefix.
func PrefixFor(deviceType string) (string, Match) {
	key := normalizeDeviceType(deviceType)
	if key == "" {
		return DefaultPrefix, MatchDefault
	}

	if prefix, ok := prefixTable[key]; ok {
		return prefix, MatchExact
	}

	if tableKey, ok := prefixSynonyms[key]; ok {
		return prefixTable[tableKey], MatchSynonym
	}

	// Partial match: longest table key contained in the device type wins, so
	// CHWP beats CH for "TOTALCHWP".
	keys := make([]string, 0, len(prefixTable))
	for k := range prefixTable {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(key, k) {
			return prefixTable[k], MatchPartial
		}
	}

	return DefaultPrefix, MatchDefault
}

// Check evaluates all grammar rules against a candidate identifier and
// returns every violation found. An empty result means the candidate is
// valid for the device type.
func Check(candidate, deviceType string) []Violation {
	var violations []Violation

	segments := strings.Split(candidate, "_")
	if len(segments) < 3 {
		violations = append(violations, Violation{
			Rule:    RuleSegmentCount,
			Message: "identifier must have at least 3 underscore-separated segments",
		})
		return violations
	}

	expected, _ := PrefixFor(deviceType)
	if segments[0] != expected {
		violations = append(violations, Violation{
			Rule:    RulePrefix,
			Message: "prefix " + segments[0] + " does not match expected " + expected,
		})
	}

	if segments[1] != "raw" && segments[1] != "calc" {
		violations = append(violations, Violation{
			Rule:    RuleCategory,
			Message: "category must be raw or calc, got " + segments[1],
		})
	}

	if !measurementTypes[segments[2]] {
		violations = append(violations, Violation{
			Rule:    RuleMeasurement,
			Message: "unknown measurement type " + segments[2],
		})
	}

	// Segments beyond index 2 are free-form context and always accepted.
	return violations
}

// Validate reports whether a candidate identifier satisfies the grammar for
// the given device type.
func Validate(candidate, deviceType string) bool {
	return len(Check(candidate, deviceType)) == 0
}

// IsMeasurement reports whether s is a member of the closed measurement set.
func IsMeasurement(s string) bool {
	return measurementTypes[s]
}

// Measurements returns the closed measurement set in sorted order.
func Measurements() []string {
	out := make([]string, 0, len(measurementTypes))
	for m := range measurementTypes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
