package rules

import (
	"encoding/json"
	"math"
	"testing"
)

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		// Same-type comparisons
		{"string equal", "abc", "abc", true},
		{"string differ", "abc", "abd", false},
		{"number equal", 42.0, 42.0, true},
		{"number by value", 42, 42.0, true},
		{"int64 vs float", int64(7), 7.0, true},
		{"json.Number", json.Number("3.5"), 3.5, true},
		{"bool equal", false, false, true},
		{"bool differ", true, false, false},
		{"null equal", nil, nil, true},
		{"array equal", []any{"a", 1.0, nil}, []any{"a", 1, nil}, true},
		{"array length", []any{"a"}, []any{"a", "b"}, false},
		{"nested array", []any{[]any{1.0}}, []any{[]any{1.0}}, true},
		{"array with objects", []any{map[string]any{"k": "v"}}, []any{map[string]any{"k": "v"}}, true},
		{"array with differing objects", []any{map[string]any{"k": "v"}}, []any{map[string]any{"k": "w"}}, false},

		// Cross-type string/number
		{"string to number", "42", 42.0, true},
		{"number to string", 42.0, "42", true},
		{"decimal string", "0.5", 0.5, true},
		{"exponent string", "1e3", 1000.0, true},
		{"non-numeric string", "abc", 42.0, false},
		{"empty string", "", 0.0, false},
		{"padded string", " 42 ", 42.0, false},
		{"signed decimal string", "+16", 16.0, true},
		{"hex float string", "0x1p4", 16.0, false},
		{"hex mantissa string", "0X10p0", 16.0, false},
		{"negative hex string", "-0x1p4", -16.0, false},
		{"digit separator string", "1_6", 16.0, false},
		{"NaN string", "NaN", math.NaN(), false},

		// Everything else is unequal
		{"object vs object", map[string]any{}, map[string]any{}, false},
		{"object vs string", map[string]any{"a": 1.0}, "a", false},
		{"bool vs number", true, 1.0, false},
		{"bool vs string", true, "true", false},
		{"null vs string", nil, "", false},
		{"string vs null", "", nil, false},
		{"array vs string", []any{"a"}, "a", false},
		{"number vs null", 0.0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := valueEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("valueEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   float64
		wantOK bool
	}{
		{"float64", 3.25, 3.25, true},
		{"int", 3, 3, true},
		{"uint64", uint64(9), 9, true},
		{"numeric string", "-12.5", -12.5, true},
		{"scientific", "2e2", 200, true},
		{"text", "twelve", 0, false},
		{"whitespace", " 1", 0, false},
		{"hex float", "0x1p4", 0, false},
		{"signed hex float", "+0x10p0", 0, false},
		{"digit separator", "1_6", 0, false},
		{"signed", "-16", -16, true},
		{"bool", true, 0, false},
		{"null", nil, 0, false},
		{"array", []any{1.0}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toNumber(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("toNumber(%v) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("toNumber(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsEmptyValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"null", nil, true},
		{"empty string", "", true},
		{"whitespace", " \n\t ", true},
		{"text", " a ", false},
		{"empty array", []any{}, true},
		{"array", []any{""}, false},
		{"empty object", map[string]any{}, true},
		{"object", map[string]any{"k": nil}, false},
		{"zero", 0.0, false},
		{"false", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmptyValue(tt.value); got != tt.want {
				t.Errorf("isEmptyValue(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
