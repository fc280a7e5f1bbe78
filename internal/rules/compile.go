// internal/rules/compile.go
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	"github.com/solatis/caseflow/internal/types"
)

/*
 * Schema compilation and validation.
 *
 * Compiles types.ConfigurationSchema to CompiledSchema: every serialized
 * {"type", "config"} expression becomes a typed Expression tree and every
 * action an Action.
 *
 * Compilation workflow:
 *   1. Validate field ids (non-empty, unique across sections)
 *   2. Compile each field's visibility condition
 *   3. Compile each rule's condition and action, preserving declaration order;
 *      rule ids must be non-empty and unique
 *   4. Build the field lookup shared by every evaluation context
 *
 * Why compile-time validation: malformed configs are rejected when the
 * schema is loaded instead of silently evaluating to false on every
 * keystroke. Unknown kinds, missing keys, wrong payload types, bad regex
 * patterns, oversize lists and excessive nesting are all load errors.
 *
 * What stays a runtime concern: rules targeting an unknown field compile
 * and are inert (reported by InertRules); operand types in form data are
 * only known at evaluation time and still fail closed.
 */

// CompiledField is a field definition with its compiled visibility condition.
type CompiledField struct {
	Definition types.FieldDefinition
	Visibility Expression // nil when the field has none
}

// CompiledRule is a rule ready for evaluation.
type CompiledRule struct {
	ID        string
	Target    string
	Condition Expression
	Action    Action
}

// CompiledSchema is fully pre-processed and ready for evaluation.
// Immutable after construction and safe to share across goroutines.
type CompiledSchema struct {
	ID      string
	Name    string
	Version string
	Fields  []CompiledField
	Rules   []CompiledRule

	fieldIndex map[string]*types.FieldDefinition
}

// NewCompiledSchema assembles a schema from already-compiled parts.
// Field ids must be non-empty and unique.
func NewCompiledSchema(fields []CompiledField, rules []CompiledRule) (*CompiledSchema, error) {
	compiled := &CompiledSchema{
		Fields:     fields,
		Rules:      rules,
		fieldIndex: make(map[string]*types.FieldDefinition, len(fields)),
	}
	for i := range compiled.Fields {
		def := &compiled.Fields[i].Definition
		if def.ID == "" {
			return nil, types.ErrEmptyFieldID
		}
		if _, exists := compiled.fieldIndex[def.ID]; exists {
			return nil, fmt.Errorf("%w: %q", types.ErrDuplicateField, def.ID)
		}
		compiled.fieldIndex[def.ID] = def
	}
	return compiled, nil
}

// Compile validates and pre-processes a schema for evaluation.
func Compile(schema *types.ConfigurationSchema) (*CompiledSchema, error) {
	var fields []CompiledField
	for _, section := range schema.Sections {
		for _, def := range section.Fields {
			field := CompiledField{Definition: def}
			if def.VisibilityConditions != nil {
				expr, err := CompileExpression(*def.VisibilityConditions)
				if err != nil {
					return nil, fmt.Errorf("field %q visibility: %w", def.ID, err)
				}
				field.Visibility = expr
			}
			fields = append(fields, field)
		}
	}

	rules := make([]CompiledRule, 0, len(schema.Rules))
	ruleIDs := make(map[string]bool, len(schema.Rules))
	for _, rule := range schema.Rules {
		if rule.ID == "" {
			return nil, types.ErrEmptyRuleID
		}
		if ruleIDs[rule.ID] {
			return nil, fmt.Errorf("%w: %q", types.ErrDuplicateRule, rule.ID)
		}
		ruleIDs[rule.ID] = true
		cond, err := CompileExpression(rule.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %q condition: %w", rule.ID, err)
		}
		action, err := compileAction(rule.Action)
		if err != nil {
			return nil, fmt.Errorf("rule %q action: %w", rule.ID, err)
		}
		rules = append(rules, CompiledRule{
			ID:        rule.ID,
			Target:    rule.Target,
			Condition: cond,
			Action:    action,
		})
	}

	compiled, err := NewCompiledSchema(fields, rules)
	if err != nil {
		return nil, err
	}
	compiled.ID = schema.ID
	compiled.Name = schema.Name
	compiled.Version = schema.Version
	return compiled, nil
}

// Field returns the definition for id.
func (s *CompiledSchema) Field(id string) (*types.FieldDefinition, bool) {
	def, ok := s.fieldIndex[id]
	return def, ok
}

// InertRules returns ids of rules whose target is not a field, in declaration order.
func (s *CompiledSchema) InertRules() []string {
	var inert []string
	for _, rule := range s.Rules {
		if _, ok := s.fieldIndex[rule.Target]; !ok {
			inert = append(inert, rule.ID)
		}
	}
	return inert
}

// CompileExpression validates a serialized expression and builds its typed tree.
func CompileExpression(spec types.ExpressionSpec) (Expression, error) {
	return compileExpression(spec, 1)
}

// compileExpression enforces MaxExpressionDepth while recursing through and/or/not.
func compileExpression(spec types.ExpressionSpec, depth int) (Expression, error) {
	if depth > types.MaxExpressionDepth {
		return nil, types.ErrExpressionTooDeep
	}

	cfg, err := parseConfig(spec.Type, spec.Config)
	if err != nil {
		return nil, err
	}

	switch spec.Type {
	case "equals", "not_equals":
		field, err := cfg.requireString("field")
		if err != nil {
			return nil, err
		}
		value, err := cfg.requireValue("value")
		if err != nil {
			return nil, err
		}
		if spec.Type == "equals" {
			return Equals{Field: field, Value: value}, nil
		}
		return NotEquals{Field: field, Value: value}, nil

	case "greater_than", "less_than", "greater_equal", "less_equal":
		op, _ := ParseOperator(spec.Type)
		field, err := cfg.requireString("field")
		if err != nil {
			return nil, err
		}
		value, err := cfg.requireValue("value")
		if err != nil {
			return nil, err
		}
		if _, ok := toNumber(value); !ok {
			return nil, cfg.invalid("value must be numeric")
		}
		return Comparison{Op: op, Field: field, Value: value}, nil

	case "contains":
		field, err := cfg.requireString("field")
		if err != nil {
			return nil, err
		}
		value, err := cfg.requireString("value")
		if err != nil {
			return nil, err
		}
		return Contains{Field: field, Value: value}, nil

	case "regex":
		field, err := cfg.requireString("field")
		if err != nil {
			return nil, err
		}
		pattern, err := cfg.requireString("pattern")
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidPattern, err)
		}
		return Regex{Field: field, Pattern: pattern, Compiled: re}, nil

	case "is_empty", "is_not_empty":
		field, err := cfg.requireString("field")
		if err != nil {
			return nil, err
		}
		if spec.Type == "is_empty" {
			return IsEmpty{Field: field}, nil
		}
		return IsNotEmpty{Field: field}, nil

	case "in_list", "not_in_list":
		field, err := cfg.requireString("field")
		if err != nil {
			return nil, err
		}
		var values []any
		if err := cfg.decode("values", &values, true); err != nil {
			return nil, err
		}
		if len(values) > types.MaxListValues {
			return nil, types.ErrTooManyListValues
		}
		if spec.Type == "in_list" {
			return InList{Field: field, Values: values}, nil
		}
		return NotInList{Field: field, Values: values}, nil

	case "and", "or":
		var specs []types.ExpressionSpec
		if err := cfg.decode("conditions", &specs, false); err != nil {
			return nil, err
		}
		children := make([]Expression, 0, len(specs))
		for _, child := range specs {
			expr, err := compileExpression(child, depth+1)
			if err != nil {
				return nil, err
			}
			children = append(children, expr)
		}
		if spec.Type == "and" {
			return And{Conditions: children}, nil
		}
		return Or{Conditions: children}, nil

	case "not":
		if !cfg.has("condition") || cfg.isNull("condition") {
			return Not{}, nil
		}
		var child types.ExpressionSpec
		if err := cfg.decode("condition", &child, true); err != nil {
			return nil, err
		}
		expr, err := compileExpression(child, depth+1)
		if err != nil {
			return nil, err
		}
		return Not{Condition: expr}, nil

	case "field_count":
		pattern, err := cfg.requireString("field_pattern")
		if err != nil {
			return nil, err
		}
		var count float64
		if err := cfg.decode("count", &count, true); err != nil {
			return nil, err
		}
		if count < 0 || count != math.Trunc(count) || count > math.MaxInt32 {
			return nil, cfg.invalid("count must be a non-negative integer")
		}
		op := OpEquals
		if cfg.has("operator") {
			name, err := cfg.requireString("operator")
			if err != nil {
				return nil, err
			}
			parsed, ok := ParseOperator(name)
			if !ok {
				return nil, cfg.invalid(fmt.Sprintf("unknown operator %q", name))
			}
			op = parsed
		}
		return FieldCount{FieldPattern: pattern, Count: int(count), Op: op}, nil

	case "custom":
		name, err := cfg.requireString("name")
		if err != nil {
			return nil, err
		}
		params := make(map[string]any, len(cfg.fields))
		for key := range cfg.fields {
			if key == "name" {
				continue
			}
			var v any
			if err := cfg.decode(key, &v, true); err != nil {
				return nil, err
			}
			params[key] = v
		}
		return Custom{Name: name, Params: params}, nil

	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownExpression, spec.Type)
	}
}

// exprConfig holds an expression's config keys with values still encoded.
type exprConfig struct {
	kind   string
	fields map[string]json.RawMessage
}

// parseConfig decodes the config object. Absent or null config is empty.
func parseConfig(kind string, raw json.RawMessage) (exprConfig, error) {
	cfg := exprConfig{kind: kind, fields: map[string]json.RawMessage{}}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return cfg, nil
	}
	if err := json.Unmarshal(trimmed, &cfg.fields); err != nil {
		return cfg, fmt.Errorf("%w: %s config must be an object", types.ErrInvalidExpression, kind)
	}
	return cfg, nil
}

func (c exprConfig) has(key string) bool {
	_, ok := c.fields[key]
	return ok
}

func (c exprConfig) isNull(key string) bool {
	return bytes.Equal(bytes.TrimSpace(c.fields[key]), []byte("null"))
}

func (c exprConfig) invalid(reason string) error {
	return fmt.Errorf("%w: %s: %s", types.ErrInvalidExpression, c.kind, reason)
}

// decode unmarshals key into dest. Missing keys are an error only when required.
func (c exprConfig) decode(key string, dest any, required bool) error {
	raw, ok := c.fields[key]
	if !ok {
		if required {
			return c.invalid(fmt.Sprintf("missing %q", key))
		}
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return c.invalid(fmt.Sprintf("bad %q: %v", key, err))
	}
	return nil
}

// requireString returns a required non-empty string key.
func (c exprConfig) requireString(key string) (string, error) {
	var s string
	if err := c.decode(key, &s, true); err != nil {
		return "", err
	}
	if s == "" && key != "value" && key != "field_pattern" {
		return "", c.invalid(fmt.Sprintf("%q must not be empty", key))
	}
	return s, nil
}

// requireValue returns a required key of any JSON type, including null.
func (c exprConfig) requireValue(key string) (any, error) {
	var v any
	if err := c.decode(key, &v, true); err != nil {
		return nil, err
	}
	return v, nil
}
