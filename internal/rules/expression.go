// internal/rules/expression.go
package rules

import "regexp"

/*
 * Typed condition expressions.
 *
 * Expression is a closed sum type: one struct per expression kind, each
 * carrying its own payload. Compile produces these trees from the
 * serialized {"type", "config"} form; callers may also build them in Go.
 *
 * Trees built in Go are not validated, so the evaluator still fails closed
 * on malformed nodes (nil children, uncompilable patterns). Trees produced
 * by Compile have already been checked per kind.
 *
 * The tree is acyclic by construction: every node owns its children and
 * nothing is shared between rules.
 */

// Expression is a boolean predicate over form data.
type Expression interface {
	// Kind returns the serialized expression type name.
	Kind() string
	isExpression()
}

// Equals matches when Field is present and value-equal to Value.
type Equals struct {
	Field string
	Value any
}

// NotEquals is the negation of Equals. A missing field is not equal to anything.
type NotEquals struct {
	Field string
	Value any
}

// Comparison orders Field against Value after coercing both to float64.
// Op is one of OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual.
type Comparison struct {
	Op    Operator
	Field string
	Value any
}

// Contains matches a string field containing Value, case-insensitively.
type Contains struct {
	Field string
	Value string
}

// Regex matches a string field against Pattern (unanchored).
// Compiled is filled by Compile; when nil the pattern is compiled on use.
type Regex struct {
	Field    string
	Pattern  string
	Compiled *regexp.Regexp
}

// IsEmpty matches a missing field or an empty value.
type IsEmpty struct {
	Field string
}

// IsNotEmpty is the negation of IsEmpty.
type IsNotEmpty struct {
	Field string
}

// InList matches when Field is value-equal to any element of Values.
type InList struct {
	Field  string
	Values []any
}

// NotInList is the negation of InList.
type NotInList struct {
	Field  string
	Values []any
}

// And matches when every condition matches. Zero conditions never match.
type And struct {
	Conditions []Expression
}

// Or matches when any condition matches. Zero conditions never match.
type Or struct {
	Conditions []Expression
}

// Not negates Condition. A nil Condition evaluates false, so Not is true.
type Not struct {
	Condition Expression
}

// FieldCount counts non-empty form entries whose key starts with
// FieldPattern and compares that count to Count using Op.
type FieldCount struct {
	FieldPattern string
	Count        int
	Op           Operator
}

// Custom delegates to a hook registered on the Engine under Name.
// Params holds the remaining config keys.
type Custom struct {
	Name   string
	Params map[string]any
}

func (Equals) Kind() string       { return "equals" }
func (NotEquals) Kind() string    { return "not_equals" }
func (c Comparison) Kind() string { return c.Op.String() }
func (Contains) Kind() string     { return "contains" }
func (Regex) Kind() string        { return "regex" }
func (IsEmpty) Kind() string      { return "is_empty" }
func (IsNotEmpty) Kind() string   { return "is_not_empty" }
func (InList) Kind() string       { return "in_list" }
func (NotInList) Kind() string    { return "not_in_list" }
func (And) Kind() string          { return "and" }
func (Or) Kind() string           { return "or" }
func (Not) Kind() string          { return "not" }
func (FieldCount) Kind() string   { return "field_count" }
func (Custom) Kind() string       { return "custom" }

func (Equals) isExpression()     {}
func (NotEquals) isExpression()  {}
func (Comparison) isExpression() {}
func (Contains) isExpression()   {}
func (Regex) isExpression()      {}
func (IsEmpty) isExpression()    {}
func (IsNotEmpty) isExpression() {}
func (InList) isExpression()     {}
func (NotInList) isExpression()  {}
func (And) isExpression()        {}
func (Or) isExpression()         {}
func (Not) isExpression()        {}
func (FieldCount) isExpression() {}
func (Custom) isExpression()     {}
