package runtime

import (
	"encoding/json"
	"strconv"
	"strings"
)

// parseAttrValue parses a raw attribute literal according to its
// declared type (§4.5). Parsing failure yields the raw string verbatim
// with ok false, the case in which callers log a warning; ok is true
// when the value parsed.
func parseAttrValue(declaredType, raw string) (value any, ok bool) {
	switch declaredType {
	case "number":
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f, true
		}
		return raw, false
	case "boolean":
		trimmed := strings.TrimSpace(raw)
		if trimmed == "true" {
			return true, true
		}
		if trimmed == "false" {
			return false, true
		}
		return raw, false
	case "string":
		return dequote(raw), true
	default:
		// Attempt structured-text parse (JSON object/array/literal),
		// falling back to a de-quoted raw string.
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, true
		}
		return dequote(raw), false
	}
}

// dequote strips a single layer of matched surrounding quotes.
func dequote(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
