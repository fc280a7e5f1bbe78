// internal/types/forms.go
package types

/*
 * Wire types for dynamic configuration forms.
 *
 * A ConfigurationSchema groups FieldDefinitions into Sections and carries a
 * global ordered list of ConditionalRules. Expressions stay serialized as
 * {"type": ..., "config": {...}} until internal/rules compiles them, so
 * these types round-trip JSON and YAML documents unchanged.
 *
 * Key types:
 *   - ConfigurationSchema: root document
 *   - Section: ordered group of fields
 *   - FieldDefinition: one input, optional visibility condition
 *   - ConditionalRule: "if condition then action" targeting one field
 *   - ExpressionSpec / ActionSpec: serialized condition and action
 */

// ConfigurationSchema is the root of a dynamic form definition.
type ConfigurationSchema struct {
	ID       string            `json:"id,omitempty"`
	Name     string            `json:"name,omitempty"`
	Version  string            `json:"version,omitempty"`
	Sections []Section         `json:"sections"`
	Rules    []ConditionalRule `json:"rules,omitempty"`
}

// Section is an ordered group of fields rendered together.
type Section struct {
	ID          string            `json:"id"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Fields      []FieldDefinition `json:"fields"`
}

// FieldDefinition describes a single form input.
// Disabled is the static default for the evaluated enabled state.
type FieldDefinition struct {
	ID                   string          `json:"id"`
	Label                string          `json:"label,omitempty"`
	FieldType            string          `json:"field_type,omitempty"`
	Required             bool            `json:"required,omitempty"`
	Disabled             bool            `json:"disabled,omitempty"`
	DefaultValue         any             `json:"default_value"`
	Options              []FieldOption   `json:"options,omitempty"`
	Placeholder          string          `json:"placeholder,omitempty"`
	HelpText             string          `json:"help_text,omitempty"`
	VisibilityConditions *ExpressionSpec `json:"visibility_conditions,omitempty"`
}

// FieldOption is one choice of a select-like field.
type FieldOption struct {
	Value any    `json:"value"`
	Label string `json:"label,omitempty"`
}

// ConditionalRule applies Action to Target when Condition holds.
// Declaration order within the schema is evaluation order.
type ConditionalRule struct {
	ID        string         `json:"id"`
	Target    string         `json:"target"`
	Condition ExpressionSpec `json:"condition"`
	Action    ActionSpec     `json:"action"`
}

// ExpressionSpec is a serialized condition expression.
// Config keys depend on Type; and/or nest under "conditions", not under "condition".
type ExpressionSpec struct {
	Type   string        `json:"type"`
	Config RawExpression `json:"config,omitempty"`
}

// ActionSpec is a serialized rule action.
// Value is used by set_value, Message by show_error, Options by set_options.
type ActionSpec struct {
	Type    string        `json:"type"`
	Value   any           `json:"value"`
	Message string        `json:"message,omitempty"`
	Options []FieldOption `json:"options,omitempty"`
}

// Fields returns every field definition across all sections in declaration order.
func (s *ConfigurationSchema) Fields() []FieldDefinition {
	var fields []FieldDefinition
	for _, section := range s.Sections {
		fields = append(fields, section.Fields...)
	}
	return fields
}
