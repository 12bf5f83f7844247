// Package pattern normalizes raw BMS point names into canonical tokens and
// mines token statistics per device type. Extraction is deterministic and
// order-sensitive: longer unit abbreviations are matched before their
// substrings so kWh points classify as energy, never power.
package pattern

import (
	"strings"
	"unicode"
)

// unitTokens maps whole lowercase chunks to canonical measurement tokens.
var unitTokens = map[string]string{
	"kwh":  "energy",
	"mwh":  "energy",
	"wh":   "energy",
	"btu":  "energy",
	"kw":   "power",
	"mw":   "power",
	"hz":   "frequency",
	"degc": "temp",
	"degf": "temp",
	"kpa":  "pressure",
	"pa":   "pressure",
	"psi":  "pressure",
	"bar":  "pressure",
	"cfm":  "flow",
	"gpm":  "flow",
	"lps":  "flow",
	"m3h":  "flow",
	"rh":   "humidity",
	"rpm":  "speed",
	"volt": "voltage",
	"amp":  "current",
	"amps": "current",
	"m3":   "volume",
}

// unitSuffixes is scanned in order against chunks that embed a unit without
// a separator ("TotalkWh"). Longer abbreviations come first; the order is
// load-bearing, kwh must be tried before kw.
var unitSuffixes = []struct {
	suffix string
	token  string
}{
	{"kwh", "energy"},
	{"mwh", "energy"},
	{"kw", "power"},
	{"mw", "power"},
	{"degc", "temp"},
	{"degf", "temp"},
	{"kpa", "pressure"},
	{"psi", "pressure"},
	{"cfm", "flow"},
	{"gpm", "flow"},
	{"m3h", "flow"},
	{"rpm", "speed"},
	{"hz", "frequency"},
	{"m3", "volume"},
}

// deviceSynonyms expands device abbreviations into canonical descriptors.
var deviceSynonyms = map[string]string{
	"chwp":      "chilled_water_pump",
	"totalchwp": "chilled_water_pump",
	"cwp":       "condenser_water_pump",
	"hwp":       "hot_water_pump",
	"ahu":       "air_handling_unit",
	"pau":       "air_handling_unit",
	"fcu":       "fan_coil_unit",
	"vsd":       "variable_speed_drive",
	"vfd":       "variable_speed_drive",
	"ct":        "cooling_tower",
	"chwst":     "chilled_water_supply_temp",
	"chwrt":     "chilled_water_return_temp",
	"sa":        "supply_air",
	"ra":        "return_air",
	"oa":        "outside_air",
}

func isSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_' || r == '/' || r == ' ' || r == '(' || r == ')'
}

// splitCamel breaks a chunk at lower-to-upper transitions and lowercases
// the pieces: "TotalConsumption" -> ["total", "consumption"].
func splitCamel(chunk string) []string {
	var parts []string
	var cur strings.Builder
	runes := []rune(chunk)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			parts = append(parts, strings.ToLower(cur.String()))
			cur.Reset()
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, strings.ToLower(cur.String()))
	}
	return parts
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Extract normalizes a raw point name into canonical tokens: separators are
// unified, unit abbreviations become measurement tokens, and device
// abbreviations expand through the synonym table.
func Extract(rawName string) []string {
	chunks := strings.FieldsFunc(rawName, isSeparator)

	var tokens []string
	for _, chunk := range chunks {
		lower := strings.ToLower(chunk)

		if syn, ok := deviceSynonyms[lower]; ok {
			tokens = append(tokens, syn)
			continue
		}
		if unit, ok := unitTokens[lower]; ok {
			tokens = append(tokens, unit)
			continue
		}

		// Embedded unit without separator: split off the suffix
		matched := false
		for _, us := range unitSuffixes {
			if strings.HasSuffix(lower, us.suffix) && len(lower) > len(us.suffix) {
				stem := chunk[:len(chunk)-len(us.suffix)]
				for _, part := range splitCamel(stem) {
					if syn, ok := deviceSynonyms[part]; ok {
						part = syn
					}
					tokens = append(tokens, part)
				}
				tokens = append(tokens, us.token)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		for _, part := range splitCamel(chunk) {
			if syn, ok := deviceSynonyms[part]; ok {
				part = syn
			} else if unit, ok := unitTokens[part]; ok {
				part = unit
			}
			tokens = append(tokens, part)
		}
	}

	return tokens
}

// Key produces a stable pattern key for memory lookups: canonical tokens
// with instance numbers removed, so CH-SYS-1 and CH-SYS-2 points share a
// pattern.
func Key(rawName string) string {
	tokens := Extract(rawName)
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if isNumeric(t) {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, "_")
}
