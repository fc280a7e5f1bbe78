// internal/rules/operators.go
package rules

/*
 * Ordering operators.
 *
 * Shared by the numeric comparison expressions (greater_than, less_than,
 * greater_equal, less_equal) and by field_count, which also accepts
 * "equals" to compare a count exactly.
 *
 * Numeric comparison: operands are float64 after coercion. field_count
 * compares integers directly so large counts never lose precision.
 */

// Operator names an ordering comparison.
type Operator int

const (
	OpUnspecified Operator = iota
	OpEquals
	OpGreaterThan
	OpLessThan
	OpGreaterEqual
	OpLessEqual
)

var operatorNames = map[Operator]string{
	OpEquals:       "equals",
	OpGreaterThan:  "greater_than",
	OpLessThan:     "less_than",
	OpGreaterEqual: "greater_equal",
	OpLessEqual:    "less_equal",
}

// String returns the serialized operator name.
func (op Operator) String() string {
	if name, ok := operatorNames[op]; ok {
		return name
	}
	return "unspecified"
}

// ParseOperator maps a serialized name to an Operator.
// Returns OpUnspecified and false for unknown names.
func ParseOperator(name string) (Operator, bool) {
	for op, n := range operatorNames {
		if n == name {
			return op, true
		}
	}
	return OpUnspecified, false
}

// isOrdering reports whether op is valid for numeric comparison expressions.
func (op Operator) isOrdering() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
		return true
	default:
		return false
	}
}

// compareFloat applies op to a and b. Unspecified operators never match.
func compareFloat(op Operator, a, b float64) bool {
	switch op {
	case OpEquals:
		return a == b
	case OpGreaterThan:
		return a > b
	case OpLessThan:
		return a < b
	case OpGreaterEqual:
		return a >= b
	case OpLessEqual:
		return a <= b
	default:
		return false
	}
}

// compareCount applies op to two counts.
func compareCount(op Operator, a, b int) bool {
	switch op {
	case OpEquals:
		return a == b
	case OpGreaterThan:
		return a > b
	case OpLessThan:
		return a < b
	case OpGreaterEqual:
		return a >= b
	case OpLessEqual:
		return a <= b
	default:
		return false
	}
}
