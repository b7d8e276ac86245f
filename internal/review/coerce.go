package review

import (
	"fmt"
	"strconv"
	"strings"
)

// Coercion helpers shared by the stage normalizers. Each is total: any input
// shape produces a canonical value or the supplied default.

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		// Render whole numbers without a trailing ".0".
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func stringOr(v any, def string) string {
	if s := strings.TrimSpace(asString(v)); s != "" {
		return s
	}
	return def
}

// stringList filters a value into non-empty stringified items. A bare string
// becomes a one-element list.
func stringList(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s := strings.TrimSpace(asString(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

// asFloat parses numbers leniently: numeric JSON values, or strings with
// commas, percent signs, and surrounding whitespace.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(x, ",", ""), "%", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func floatOr(v any, def float64) float64 {
	if f, ok := asFloat(v); ok {
		return f
	}
	return def
}

// intIn coerces to an integer clamped into [lo, hi]; non-numeric input takes
// the default.
func intIn(v any, lo, hi, def int) int {
	f, ok := asFloat(v)
	if !ok {
		return def
	}
	n := int(f)
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// enumOr returns v when it is a member of the allowed set, otherwise def.
// Normalizers pass the most conservative member as the default.
func enumOr(v any, members []string, def string) string {
	s := strings.TrimSpace(strings.ToLower(asString(v)))
	for _, m := range members {
		if s == m {
			return m
		}
	}
	return def
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return nil
}

// unwrap accepts either the canonical wrapped form {key: {...}} or a value
// that already looks like the target shape at top level (it carries at least
// one of the marker fields), and returns the inner object.
func unwrap(m map[string]any, key string, markers ...string) map[string]any {
	if inner, ok := m[key].(map[string]any); ok {
		return inner
	}
	for _, marker := range markers {
		if _, ok := m[marker]; ok {
			return m
		}
	}
	return map[string]any{}
}

var uncertaintyMembers = []string{UncertaintyLow, UncertaintyMedium, UncertaintyHigh}
var trendMembers = []string{TrendUp, TrendDown, TrendSideways}
