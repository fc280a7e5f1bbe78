package rules

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/caseflow/internal/types"
)

// sampleValue builds a JSON-like value of a kind chosen by selector.
func sampleValue(selector int, s string, f float64, b bool) any {
	switch selector % 7 {
	case 0:
		return s
	case 1:
		return f
	case 2:
		return strconv.FormatFloat(f, 'f', -1, 64)
	case 3:
		return b
	case 4:
		return nil
	case 5:
		return []any{s, f}
	default:
		return map[string]any{"k": s}
	}
}

func TestProperty_NegatedKindsAreComplements(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	e := newTestEngine()

	properties.Property("not_equals is the negation of equals", prop.ForAll(
		func(fieldSel, valueSel int, s string, f float64, b, present bool) bool {
			form := types.FormData{}
			if present {
				form["x"] = sampleValue(fieldSel, s, f, b)
			}
			value := sampleValue(valueSel, s, f, !b)
			eq := evalWith(e, Equals{Field: "x", Value: value}, form)
			neq := evalWith(e, NotEquals{Field: "x", Value: value}, form)
			return eq != neq
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
		gen.AlphaString(),
		gen.Float64Range(-1000, 1000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("is_not_empty is the negation of is_empty", prop.ForAll(
		func(sel int, s string, f float64, b, present bool) bool {
			form := types.FormData{}
			if present {
				form["x"] = sampleValue(sel, s, f, b)
			}
			return evalWith(e, IsEmpty{Field: "x"}, form) != evalWith(e, IsNotEmpty{Field: "x"}, form)
		},
		gen.IntRange(0, 6),
		gen.AlphaString(),
		gen.Float64Range(-1000, 1000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestProperty_InListIsDisjunctionOfEquals(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	e := newTestEngine()

	properties.Property("in_list equals or over equals", prop.ForAll(
		func(fieldSel int, s string, f float64, b bool, words []string) bool {
			form := types.FormData{"x": sampleValue(fieldSel, s, f, b)}
			values := make([]any, 0, len(words)+1)
			for i, w := range words {
				values = append(values, sampleValue(i, w, f, b))
			}

			alternatives := make([]Expression, 0, len(values))
			for _, v := range values {
				alternatives = append(alternatives, Equals{Field: "x", Value: v})
			}

			in := evalWith(e, InList{Field: "x", Values: values}, form)
			or := evalWith(e, Or{Conditions: alternatives}, form)
			notIn := evalWith(e, NotInList{Field: "x", Values: values}, form)
			return in == or && notIn == !in
		},
		gen.IntRange(0, 6),
		gen.AlphaString(),
		gen.Float64Range(-50, 50),
		gen.Bool(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestProperty_StringNumberEqualityIsSymmetric(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("valueEqual(a, b) == valueEqual(b, a)", prop.ForAll(
		func(selA, selB int, s string, f float64, b bool) bool {
			x := sampleValue(selA, s, f, b)
			y := sampleValue(selB, s, f, b)
			return valueEqual(x, y) == valueEqual(y, x)
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
		gen.NumString(),
		gen.Float64Range(-1e6, 1e6),
		gen.Bool(),
	))

	properties.Property("formatted numbers equal their string form", prop.ForAll(
		func(f float64) bool {
			return valueEqual(strconv.FormatFloat(f, 'g', -1, 64), f)
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.TestingRun(t)
}

func TestProperty_EvaluateNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	e := newTestEngine()

	schema := schemaFromJSON(t, `{
	  "sections": [{"id": "s", "fields": [
	    {"id": "a"}, {"id": "b"},
	    {"id": "c", "visibility_conditions": {"type": "regex", "config": {"field": "a", "pattern": "^[a-m]"}}}
	  ]}],
	  "rules": [
	    {"id": "r1", "target": "b", "condition": {"type": "greater_than", "config": {"field": "a", "value": 3}}, "action": {"type": "disable"}},
	    {"id": "r2", "target": "c", "condition": {"type": "contains", "config": {"field": "b", "value": "x"}}, "action": {"type": "show_error", "message": "x"}},
	    {"id": "r3", "target": "a", "condition": {"type": "field_count", "config": {"field_pattern": "", "count": 1, "operator": "greater_equal"}}, "action": {"type": "set_value", "value": null}}
	  ]
	}`)

	properties.Property("evaluation returns one result per field for any form", prop.ForAll(
		func(selA, selB int, s string, f float64, b bool) (ok bool) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Evaluate() panicked: %v", r)
					ok = false
				}
			}()
			form := types.FormData{
				"a": sampleValue(selA, s, f, b),
				"b": sampleValue(selB, s, f, b),
			}
			results := e.Evaluate(schema, form)
			return len(results) == 3
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 6),
		gen.AlphaString(),
		gen.Float64Range(-10, 10),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
