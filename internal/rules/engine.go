// internal/rules/engine.go
package rules

import (
	"log/slog"
	"sync"

	"github.com/solatis/caseflow/internal/types"
)

/*
 * Form evaluation engine.
 *
 * Evaluate folds a compiled schema's rules over the current form data and
 * returns one ConditionalResult per field:
 *
 *   1. Every field starts visible, enabled unless statically disabled,
 *      with no overrides.
 *   2. Rules run in declaration order. A rule whose condition holds
 *      applies its action to the target's result and records its id.
 *      Later rules see and may overwrite earlier effects. Rules whose
 *      target is not a field are inert.
 *   3. Field visibility conditions run after all rules and can only hide.
 *
 * The engine holds no per-call state. The custom hook registry is the only
 * shared mutable state and is guarded for concurrent evaluations.
 *
 * Form data is read, not copied: callers must not mutate the map while an
 * evaluation is in flight.
 */

// CustomFunc decides a custom condition. Params holds the expression config
// minus its name.
type CustomFunc func(params map[string]any, ctx *EvaluationContext) bool

// EvaluationContext is the read-only input for one condition evaluation.
type EvaluationContext struct {
	FormData     types.FormData
	Fields       map[string]*types.FieldDefinition
	CurrentField string
}

// ConditionalResult is the evaluated state of one field.
// ValueOverride distinguishes "no override" (nil) from an explicit null.
type ConditionalResult struct {
	FieldID         string              `json:"field_id"`
	IsVisible       bool                `json:"is_visible"`
	IsEnabled       bool                `json:"is_enabled"`
	ValueOverride   *ValueOverride      `json:"value_override,omitempty"`
	OptionsOverride []types.FieldOption `json:"options_override"`
	ErrorOverride   *string             `json:"error_override"`
	AppliedRules    []string            `json:"applied_rules"`
}

// Engine evaluates compiled schemas against form data.
type Engine struct {
	logger *slog.Logger

	mu    sync.RWMutex
	hooks map[string]CustomFunc
}

// NewEngine creates a new rules engine instance.
// A nil logger uses slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger,
		hooks:  make(map[string]CustomFunc),
	}
}

// RegisterCustom installs fn as the handler for custom expressions named name.
// Registering the same name again replaces the previous hook.
func (e *Engine) RegisterCustom(name string, fn CustomFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks[name] = fn
}

func (e *Engine) customHook(name string) (CustomFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.hooks[name]
	return fn, ok && fn != nil
}

// Evaluate computes the state of every field in schema for the given form data.
func (e *Engine) Evaluate(schema *CompiledSchema, form types.FormData) map[string]*ConditionalResult {
	results := make(map[string]*ConditionalResult, len(schema.Fields))
	for i := range schema.Fields {
		def := &schema.Fields[i].Definition
		results[def.ID] = newResult(def)
	}

	for _, rule := range schema.Rules {
		ctx := &EvaluationContext{
			FormData:     form,
			Fields:       schema.fieldIndex,
			CurrentField: rule.Target,
		}
		if !e.EvaluateCondition(rule.Condition, ctx) {
			continue
		}
		result, ok := results[rule.Target]
		if !ok {
			e.logger.Debug("rule target is not a field",
				"rule_id", rule.ID, "target", rule.Target)
			continue
		}
		rule.Action.apply(result)
		result.AppliedRules = append(result.AppliedRules, rule.ID)
	}

	for _, field := range schema.Fields {
		if field.Visibility == nil {
			continue
		}
		ctx := &EvaluationContext{
			FormData:     form,
			Fields:       schema.fieldIndex,
			CurrentField: field.Definition.ID,
		}
		if !e.EvaluateCondition(field.Visibility, ctx) {
			results[field.Definition.ID].IsVisible = false
		}
	}

	return results
}

// EvaluateSchema compiles schema and evaluates it in one step.
func (e *Engine) EvaluateSchema(schema *types.ConfigurationSchema, form types.FormData) (map[string]*ConditionalResult, error) {
	compiled, err := Compile(schema)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(compiled, form), nil
}

func newResult(def *types.FieldDefinition) *ConditionalResult {
	return &ConditionalResult{
		FieldID:      def.ID,
		IsVisible:    true,
		IsEnabled:    !def.Disabled,
		AppliedRules: []string{},
	}
}
