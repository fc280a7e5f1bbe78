// internal/rules/coercion.go
package rules

import (
	"encoding/json"
	"strconv"
	"strings"
)

/*
 * Value coercion for condition evaluation.
 *
 * Form values arrive as JSON-like Go values: nil, bool, float64 (or other
 * numerics when built in Go), string, []any, map[string]any.
 *
 * Value-equality:
 *   - string/string, bool/bool, null/null: plain equality
 *   - number/number: by numeric value (42 == 42.0)
 *   - array/array: structural, element by element, no cross-type coercion
 *   - string/number either way: string parsed as float64, parse failure is unequal
 *   - everything else (including object/object): unequal
 *
 * Numeric coercion (ordered comparisons): numbers as-is, strings parsed as
 * float64 without trimming, anything else fails.
 *
 * Emptiness: null, whitespace-only string, empty array, empty object.
 * Numbers and booleans are never empty.
 */

// valueEqual reports whether a and b are equal under coercion rules.
func valueEqual(a, b any) bool {
	if na, ok := toFloat64(a); ok {
		if nb, ok := toFloat64(b); ok {
			return na == nb
		}
		if sb, ok := b.(string); ok {
			return stringEqualsNumber(sb, na)
		}
		return false
	}

	switch va := a.(type) {
	case nil:
		return b == nil
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case string:
		if vb, ok := b.(string); ok {
			return va == vb
		}
		if nb, ok := toFloat64(b); ok {
			return stringEqualsNumber(va, nb)
		}
		return false
	case []any:
		vb, ok := b.([]any)
		return ok && arrayEqual(va, vb)
	default:
		return false
	}
}

// stringEqualsNumber compares a string to a number after parsing.
func stringEqualsNumber(s string, n float64) bool {
	f, ok := parseDecimal(s)
	return ok && f == n
}

// parseDecimal parses a decimal float. Hex floats and digit separators,
// which strconv.ParseFloat also accepts, are rejected.
func parseDecimal(s string) (float64, bool) {
	if strings.ContainsRune(s, '_') {
		return 0, false
	}
	unsigned := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// arrayEqual compares arrays structurally. Numbers compare by value;
// strings never match numbers inside arrays.
func arrayEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !structuralEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// structuralEqual is deep equality over JSON-like values.
func structuralEqual(a, b any) bool {
	if na, ok := toFloat64(a); ok {
		nb, ok := toFloat64(b)
		return ok && na == nb
	}
	switch va := a.(type) {
	case nil:
		return b == nil
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case string:
		vb, ok := b.(string)
		return ok && va == vb
	case []any:
		vb, ok := b.([]any)
		return ok && arrayEqual(va, vb)
	case map[string]any:
		vb, ok := b.(map[string]any)
		if !ok || len(va) != len(vb) {
			return false
		}
		for k, av := range va {
			bv, ok := vb[k]
			if !ok || !structuralEqual(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// toNumber coerces a value for ordered comparison.
// Numbers pass through, strings are parsed, everything else fails.
func toNumber(v any) (float64, bool) {
	if n, ok := toFloat64(v); ok {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	return parseDecimal(s)
}

// toFloat64 converts value to float64 if it's a numeric type.
// Handles float64 and json.Number from JSON decoding plus Go integer types
// from schemas built in code or decoded from YAML.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// isEmptyValue reports whether a present value counts as empty.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
