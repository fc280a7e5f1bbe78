// Package types provides domain models shared across caseflow components.
//
// Wire-level types live here: the serialized configuration schema, its rules
// and expressions as authored in JSON or YAML. internal/rules compiles them
// into typed expression trees before evaluation, so nothing in this package
// interprets an expression.
package types

import "encoding/json"

// SchemaID represents a UUIDv7 identifier for a stored configuration schema.
// String alias enables type safety while maintaining JSON string serialization.
type SchemaID string

// APIKeyID represents a UUIDv7 identifier for an issued API key.
type APIKeyID string

// FormData maps field ids to the values currently entered in a form.
// Values are JSON-like: nil, bool, float64 (or other Go numerics), string,
// []any and map[string]any.
type FormData map[string]any

// RawExpression preserves an expression's bytes until compilation.
type RawExpression = json.RawMessage

// Resource limits enforced at schema compile time.
const (
	// MaxExpressionDepth bounds recursion through and/or/not nesting.
	// 16 levels is far beyond hand-authored schemas and keeps evaluation stack-safe.
	MaxExpressionDepth = 16

	// MaxListValues limits in_list/not_in_list sizes to keep membership linear and small.
	MaxListValues = 64

	// MaxSchemaSize limits a serialized schema document.
	MaxSchemaSize = 1024 * 1024

	// MaxFormDataSize limits a serialized form data document.
	MaxFormDataSize = 256 * 1024
)
