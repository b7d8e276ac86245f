// Package jsonx extracts JSON objects from raw model output. Model text is
// frequently wrapped in markdown fences, surrounded by prose, or carries bare
// newlines inside string literals; Extract tolerates all of these and returns
// nil when no well-formed object can be recovered.
package jsonx

import (
	"encoding/json"
	"strings"
)

// Extract locates the first JSON object embedded in raw text and unmarshals
// it into a generic map. It never returns an error: unusable input yields
// (nil, false).
func Extract(raw string) (map[string]any, bool) {
	candidate, ok := objectSlice(stripFences(raw))
	if !ok {
		return nil, false
	}
	candidate = EscapeBareNewlines(candidate)

	var out map[string]any
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, false
	}
	return out, true
}

// stripFences removes a leading ```json / ``` fence pair when present.
// Content outside the fence is dropped since the fenced block is the model's
// intended payload.
func stripFences(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Skip the info string ("json", "JSON", or empty).
		lang := strings.TrimSpace(rest[:nl])
		if lang == "" || strings.EqualFold(lang, "json") {
			rest = rest[nl+1:]
			if end := strings.Index(rest, "```"); end >= 0 {
				return rest[:end]
			}
			return rest
		}
	}
	return s
}

// objectSlice returns the substring spanning the first balanced top-level
// object. Braces inside string literals do not count toward nesting.
func objectSlice(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// EscapeBareNewlines escapes literal newline and carriage-return characters
// that appear inside quoted strings. A single forward scan tracks the
// in-string and escape states; already-escaped sequences and characters
// outside strings are left untouched.
func EscapeBareNewlines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			b.WriteByte(c)
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
			b.WriteByte(c)
		case '\n':
			if inString {
				b.WriteString(`\n`)
			} else {
				b.WriteByte(c)
			}
		case '\r':
			if inString {
				b.WriteString(`\r`)
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
