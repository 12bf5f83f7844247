package pattern

import "strings"

// measurementRules infer a measurement type from canonical tokens. Rules are
// evaluated in order and the first match wins; more specific rules precede
// generic ones (energy before power, setpoint before temp).
var measurementRules = []struct {
	keywords    []string
	measurement string
}{
	{[]string{"energy", "consumption"}, "energy"},
	{[]string{"setpoint", "stpt", "sp"}, "setpoint"},
	{[]string{"frequency", "freq"}, "frequency"},
	{[]string{"power", "demand"}, "power"},
	{[]string{"temp", "temperature"}, "temp"},
	{[]string{"pressure", "press", "dp"}, "pressure"},
	{[]string{"flow"}, "flow"},
	{[]string{"humidity"}, "humidity"},
	{[]string{"occupancy", "occ", "co2"}, "occupancy"},
	{[]string{"valve", "vlv"}, "valve"},
	{[]string{"damper", "dmp"}, "damper"},
	{[]string{"alarm", "fault", "flt", "trip"}, "alarm"},
	{[]string{"current"}, "current"},
	{[]string{"voltage"}, "voltage"},
	{[]string{"speed"}, "speed"},
	{[]string{"level", "lvl"}, "level"},
	{[]string{"position", "pos"}, "position"},
	{[]string{"volume"}, "volume"},
	{[]string{"mode"}, "mode"},
	{[]string{"command", "cmd"}, "command"},
	{[]string{"state"}, "state"},
	{[]string{"status", "run", "running", "enable", "enabled", "onoff", "on", "off"}, "status"},
}

// DefaultMeasurement is assumed when no rule matches. Status points are the
// most common untyped BMS points.
const DefaultMeasurement = "status"

// InferMeasurement derives the measurement type for a point from its raw
// name and unit using ordered keyword rules. It is total: unmatched points
// report DefaultMeasurement.
func InferMeasurement(rawName, unit string) string {
	tokens := Extract(rawName)
	if strings.TrimSpace(unit) != "" {
		tokens = append(tokens, Extract(unit)...)
	}

	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}

	for _, rule := range measurementRules {
		for _, kw := range rule.keywords {
			if set[kw] {
				return rule.measurement
			}
		}
	}

	return DefaultMeasurement
}
