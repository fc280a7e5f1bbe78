package types

import "errors"

// Sentinel errors for caseflow operations.
var (
	// ErrSchemaTooLarge indicates a serialized schema exceeds MaxSchemaSize.
	ErrSchemaTooLarge = errors.New("schema exceeds maximum size")

	// ErrFormDataTooLarge indicates serialized form data exceeds MaxFormDataSize.
	ErrFormDataTooLarge = errors.New("form data exceeds maximum size")

	// ErrUnsupportedFormat indicates a document format other than json or yaml.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrDuplicateField indicates two fields share an id across sections.
	ErrDuplicateField = errors.New("duplicate field id")

	// ErrEmptyFieldID indicates a field without an id.
	ErrEmptyFieldID = errors.New("field id is empty")

	// ErrEmptyRuleID indicates a rule without an id.
	ErrEmptyRuleID = errors.New("rule id is empty")

	// ErrDuplicateRule indicates two rules share an id.
	ErrDuplicateRule = errors.New("duplicate rule id")

	// ErrUnknownExpression indicates an expression type that is not recognized.
	ErrUnknownExpression = errors.New("unknown expression type")

	// ErrInvalidExpression indicates an expression config that does not fit its type.
	ErrInvalidExpression = errors.New("invalid expression config")

	// ErrInvalidPattern indicates a regex expression whose pattern does not compile.
	ErrInvalidPattern = errors.New("invalid regex pattern")

	// ErrExpressionTooDeep indicates nesting beyond MaxExpressionDepth.
	ErrExpressionTooDeep = errors.New("expression nesting exceeds maximum depth")

	// ErrTooManyListValues indicates an in_list/not_in_list beyond MaxListValues.
	ErrTooManyListValues = errors.New("list expression has too many values")

	// ErrUnknownAction indicates an action type that is not recognized.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrSchemaNotFound indicates no stored schema matched the lookup.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidSchemaID indicates a schema id that is not a UUID.
	ErrInvalidSchemaID = errors.New("invalid schema id")

	// ErrInvalidAPIKeyID indicates an API key id that is not a UUID.
	ErrInvalidAPIKeyID = errors.New("invalid api key id")

	// ErrEmptyWorkflowID indicates a stored schema without a workflow.
	ErrEmptyWorkflowID = errors.New("workflow id is empty")
)
