package rules

import (
	"encoding/json"
	"fmt"

	"github.com/solatis/caseflow/internal/types"
)

// ActionKind enumerates rule actions.
type ActionKind int

const (
	ActionUnspecified ActionKind = iota
	ActionShow
	ActionHide
	ActionEnable
	ActionDisable
	ActionSetValue
	ActionClearValue
	ActionShowError
	ActionSetOptions
)

var actionNames = map[ActionKind]string{
	ActionShow:       "show",
	ActionHide:       "hide",
	ActionEnable:     "enable",
	ActionDisable:    "disable",
	ActionSetValue:   "set_value",
	ActionClearValue: "clear_value",
	ActionShowError:  "show_error",
	ActionSetOptions: "set_options",
}

// String returns the serialized action name.
func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unspecified"
}

// Action mutates one field's result when its rule fires.
// Value is used by ActionSetValue, Message by ActionShowError and
// Options by ActionSetOptions.
type Action struct {
	Kind    ActionKind
	Value   any
	Message string
	Options []types.FieldOption
}

// ValueOverride wraps an overriding field value so an explicit null
// survives serialization.
type ValueOverride struct {
	Value any
}

// MarshalJSON encodes the wrapped value directly.
func (v ValueOverride) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Value)
}

// UnmarshalJSON decodes the wrapped value directly.
func (v *ValueOverride) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &v.Value)
}

// apply mutates result in place.
func (a Action) apply(result *ConditionalResult) {
	switch a.Kind {
	case ActionShow:
		result.IsVisible = true
	case ActionHide:
		result.IsVisible = false
	case ActionEnable:
		result.IsEnabled = true
	case ActionDisable:
		result.IsEnabled = false
	case ActionSetValue:
		result.ValueOverride = &ValueOverride{Value: a.Value}
	case ActionClearValue:
		result.ValueOverride = &ValueOverride{}
	case ActionShowError:
		msg := a.Message
		result.ErrorOverride = &msg
	case ActionSetOptions:
		options := make([]types.FieldOption, len(a.Options))
		copy(options, a.Options)
		result.OptionsOverride = options
	}
}

// compileAction maps a serialized action to an Action.
func compileAction(spec types.ActionSpec) (Action, error) {
	for kind, name := range actionNames {
		if name == spec.Type {
			return Action{
				Kind:    kind,
				Value:   spec.Value,
				Message: spec.Message,
				Options: spec.Options,
			}, nil
		}
	}
	return Action{}, fmt.Errorf("%w: %q", types.ErrUnknownAction, spec.Type)
}
