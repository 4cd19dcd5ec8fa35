package scrape

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Coerce returns a copy of m with string leaves converted to the type they
// spell. Nested maps are walked; the "credentials" subtree is copied as is.
func Coerce(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "credentials" {
			out[k] = v
			continue
		}
		out[k] = coerceAny(v)
	}
	return out
}

func coerceAny(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = coerceAny(vv)
		}
		return out
	case string:
		return CoerceValue(t)
	}
	return v
}

// CoerceValue converts a single string:
//
//	"True"/"False"  -> bool
//	"[...]"         -> list (JSON, then Python literal syntax)
//	"42"            -> int64
//	"184467...16"   -> json.Number when out of int64 range, kept exact
//	"3.14"          -> float64 (finite only)
//
// Anything else is returned unchanged.
func CoerceValue(s string) any {
	switch s {
	case "True":
		return true
	case "False":
		return false
	}

	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		if l, ok := parseList(s); ok {
			return l
		}
		return s
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n
	}
	if errors.Is(err, strconv.ErrRange) {
		if b, ok := new(big.Int).SetString(s, 10); ok {
			return json.Number(b.String())
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) && isDecimal(s) {
		return f
	}
	return s
}

// isDecimal rejects spellings ParseFloat accepts but a plain number never
// uses, such as hex floats and "Inf".
func isDecimal(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}

func parseList(s string) ([]any, bool) {
	var l []any
	if err := json.Unmarshal([]byte(s), &l); err == nil {
		return l, true
	}
	converted, ok := pyLiteralToJSON(s)
	if !ok {
		return nil, false
	}
	if err := json.Unmarshal([]byte(converted), &l); err != nil {
		return nil, false
	}
	return l, true
}

// pyLiteralToJSON rewrites single-quoted strings, True, False and None into
// their JSON spellings. Tuples and trailing commas are not supported.
func pyLiteralToJSON(s string) (string, bool) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"':
			str, n, ok := readQuoted(s[i:], c)
			if !ok {
				return "", false
			}
			b, _ := json.Marshal(str)
			sb.Write(b)
			i += n - 1
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentStart(s[j]) {
				j++
			}
			switch s[i:j] {
			case "True":
				sb.WriteString("true")
			case "False":
				sb.WriteString("false")
			case "None":
				sb.WriteString("null")
			default:
				// exponents pass through; anything else fails to decode later
				sb.WriteString(s[i:j])
			}
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), true
}

// readQuoted reads a quoted literal starting at s[0] and returns its value
// and the number of bytes consumed.
func readQuoted(s string, quote byte) (string, int, bool) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, false
			}
			i++
			switch s[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(s[i])
			}
		case quote:
			return sb.String(), i + 1, true
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, false
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}
