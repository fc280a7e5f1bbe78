// internal/rules/evaluate.go
package rules

import (
	"fmt"
	"regexp"
	"strings"
)

/*
 * Condition evaluation.
 *
 * EvaluateCondition dispatches on the expression type and returns a bool.
 * It never returns an error and never panics on bad input: every
 * unresolvable condition (missing field, non-numeric operand, bad pattern,
 * unknown custom hook, nil node) evaluates to false. Fail-closed keeps a
 * broken rule from firing its action while the rest of the form still
 * evaluates.
 *
 * Logical operators short-circuit: and stops at the first false child,
 * or at the first true child. Both are false with zero children.
 *
 * Inert causes are logged at debug level so schema authors can trace why
 * a rule never fires.
 */

// EvaluateCondition evaluates expr against ctx.
func (e *Engine) EvaluateCondition(expr Expression, ctx *EvaluationContext) bool {
	if ctx == nil {
		ctx = &EvaluationContext{}
	}

	switch x := expr.(type) {
	case Equals:
		return e.evaluateEquals(x.Field, x.Value, ctx)
	case NotEquals:
		return !e.evaluateEquals(x.Field, x.Value, ctx)
	case Comparison:
		return e.evaluateComparison(x, ctx)
	case Contains:
		return e.evaluateContains(x, ctx)
	case Regex:
		return e.evaluateRegex(x, ctx)
	case IsEmpty:
		return evaluateIsEmpty(x.Field, ctx)
	case IsNotEmpty:
		return !evaluateIsEmpty(x.Field, ctx)
	case InList:
		return evaluateInList(x.Field, x.Values, ctx)
	case NotInList:
		return !evaluateInList(x.Field, x.Values, ctx)
	case And:
		return e.evaluateAnd(x.Conditions, ctx)
	case Or:
		return e.evaluateOr(x.Conditions, ctx)
	case Not:
		if x.Condition == nil {
			return true
		}
		return !e.EvaluateCondition(x.Condition, ctx)
	case FieldCount:
		return e.evaluateFieldCount(x, ctx)
	case Custom:
		return e.evaluateCustom(x, ctx)
	case nil:
		e.logger.Warn("nil condition evaluated as false", "current_field", ctx.CurrentField)
		return false
	default:
		e.logger.Warn("unknown condition type evaluated as false",
			"type", fmt.Sprintf("%T", expr),
			"current_field", ctx.CurrentField)
		return false
	}
}

// evaluateEquals requires the field to be present before comparing.
func (e *Engine) evaluateEquals(field string, value any, ctx *EvaluationContext) bool {
	actual, ok := ctx.FormData[field]
	if !ok {
		return false
	}
	return valueEqual(actual, value)
}

// evaluateComparison coerces both operands to float64; either failing is false.
func (e *Engine) evaluateComparison(x Comparison, ctx *EvaluationContext) bool {
	actual, ok := ctx.FormData[x.Field]
	if !ok {
		return false
	}
	left, ok := toNumber(actual)
	if !ok {
		e.logger.Debug("non-numeric field in comparison",
			"kind", x.Kind(), "field", x.Field, "current_field", ctx.CurrentField)
		return false
	}
	right, ok := toNumber(x.Value)
	if !ok {
		e.logger.Debug("non-numeric value in comparison",
			"kind", x.Kind(), "field", x.Field, "current_field", ctx.CurrentField)
		return false
	}
	if !x.Op.isOrdering() {
		return false
	}
	return compareFloat(x.Op, left, right)
}

// evaluateContains lowercases both sides; non-string field values never match.
func (e *Engine) evaluateContains(x Contains, ctx *EvaluationContext) bool {
	actual, ok := ctx.FormData[x.Field].(string)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(actual), strings.ToLower(x.Value))
}

// evaluateRegex matches a string field. Patterns that fail to compile are false.
func (e *Engine) evaluateRegex(x Regex, ctx *EvaluationContext) bool {
	actual, ok := ctx.FormData[x.Field].(string)
	if !ok {
		return false
	}
	re := x.Compiled
	if re == nil {
		var err error
		re, err = regexp.Compile(x.Pattern)
		if err != nil {
			e.logger.Debug("invalid regex pattern",
				"field", x.Field, "pattern", x.Pattern, "error", err)
			return false
		}
	}
	return re.MatchString(actual)
}

// evaluateIsEmpty treats a missing field as empty.
func evaluateIsEmpty(field string, ctx *EvaluationContext) bool {
	actual, ok := ctx.FormData[field]
	if !ok {
		return true
	}
	return isEmptyValue(actual)
}

// evaluateInList is equals over each element, short-circuiting on the first match.
func evaluateInList(field string, values []any, ctx *EvaluationContext) bool {
	actual, ok := ctx.FormData[field]
	if !ok {
		return false
	}
	for _, v := range values {
		if valueEqual(actual, v) {
			return true
		}
	}
	return false
}

func (e *Engine) evaluateAnd(conditions []Expression, ctx *EvaluationContext) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, c := range conditions {
		if !e.EvaluateCondition(c, ctx) {
			return false
		}
	}
	return true
}

func (e *Engine) evaluateOr(conditions []Expression, ctx *EvaluationContext) bool {
	for _, c := range conditions {
		if e.EvaluateCondition(c, ctx) {
			return true
		}
	}
	return false
}

// evaluateFieldCount counts non-empty entries whose key has the pattern as prefix.
func (e *Engine) evaluateFieldCount(x FieldCount, ctx *EvaluationContext) bool {
	count := 0
	for key, value := range ctx.FormData {
		if strings.HasPrefix(key, x.FieldPattern) && !isEmptyValue(value) {
			count++
		}
	}
	return compareCount(x.Op, count, x.Count)
}

// evaluateCustom runs the registered hook. A panicking hook counts as false.
func (e *Engine) evaluateCustom(x Custom, ctx *EvaluationContext) (matched bool) {
	fn, ok := e.customHook(x.Name)
	if !ok {
		e.logger.Debug("no custom hook registered",
			"name", x.Name, "current_field", ctx.CurrentField)
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("custom hook panicked",
				"name", x.Name, "current_field", ctx.CurrentField, "panic", r)
			matched = false
		}
	}()
	return fn(x.Params, ctx)
}
