package rules

import "time"

// Helpers for coercing decoded-JSON condition values. JSON numbers arrive
// as float64; lists arrive as []any.

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asAnySlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return []string{s}
	}
	return nil
}

// asRange decodes a [min, max] pair for between.
func asRange(v any) (float64, float64, bool) {
	vals := asAnySlice(v)
	if len(vals) != 2 {
		return 0, 0, false
	}
	min, ok1 := asFloat(vals[0])
	max, ok2 := asFloat(vals[1])
	return min, max, ok1 && ok2
}

// asTime parses ISO timestamps; bare dates are accepted too.
func asTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
