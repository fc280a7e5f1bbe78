package api

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/caseflow/internal/core/schemas"
	"github.com/solatis/caseflow/internal/rules"
	"github.com/solatis/caseflow/internal/types"
)

// resolvedSchema is the schema a request refers to.
// record is nil for inline schemas.
type resolvedSchema struct {
	record   *schemas.Record
	compiled *rules.CompiledSchema
}

func (r *resolvedSchema) source() string {
	if r.record == nil {
		return "inline"
	}
	return "stored"
}

// resolveSchema loads the schema named by exactly one of "schema" (inline
// document), "schema_id" or "workflow_id" (latest version). Null values
// count as absent.
func (s *FormRulesService) resolveSchema(ctx context.Context, tenantID string, req *structpb.Struct) (*resolvedSchema, error) {
	inline, hasInline := req.GetFields()["schema"]
	if _, isNull := inline.GetKind().(*structpb.Value_NullValue); isNull {
		hasInline = false
	}
	schemaID, hasID, err := stringField(req, "schema_id")
	if err != nil {
		return nil, err
	}
	workflowID, hasWorkflow, err := stringField(req, "workflow_id")
	if err != nil {
		return nil, err
	}

	given := 0
	for _, ok := range []bool{hasInline, hasID, hasWorkflow} {
		if ok {
			given++
		}
	}
	if given != 1 {
		return nil, fmt.Errorf("%w: exactly one of schema, schema_id or workflow_id is required", errBadRequest)
	}

	switch {
	case hasInline:
		schema, err := decodeSchema(inline)
		if err != nil {
			return nil, err
		}
		compiled, err := rules.Compile(schema)
		if err != nil {
			return nil, err
		}
		return &resolvedSchema{compiled: compiled}, nil

	case hasID:
		id, err := types.ParseSchemaID(schemaID)
		if err != nil {
			return nil, err
		}
		record, err := s.store.Get(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		return compileRecord(record)

	default:
		record, err := s.store.Latest(ctx, tenantID, workflowID)
		if err != nil {
			return nil, err
		}
		return compileRecord(record)
	}
}

func compileRecord(record *schemas.Record) (*resolvedSchema, error) {
	compiled, err := record.Compile()
	if err != nil {
		return nil, fmt.Errorf("stored schema %s: %w", record.ID, err)
	}
	return &resolvedSchema{record: record, compiled: compiled}, nil
}

// stringField reads an optional string field. Empty strings count as absent.
func stringField(req *structpb.Struct, key string) (string, bool, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return "", false, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return "", false, nil
	}
	sv, isString := v.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return "", false, fmt.Errorf("%w: %s must be a string", errBadRequest, key)
	}
	return sv.StringValue, sv.StringValue != "", nil
}

// decodeSchema decodes an inline schema document.
func decodeSchema(v *structpb.Value) (*types.ConfigurationSchema, error) {
	if v.GetStructValue() == nil {
		return nil, fmt.Errorf("%w: schema must be an object", errBadRequest)
	}
	raw, err := json.Marshal(v.AsInterface())
	if err != nil {
		return nil, fmt.Errorf("%w: schema: %v", errBadRequest, err)
	}
	schema, err := types.DecodeSchema(raw, types.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return schema, nil
}

// decodeFormData reads "form_data". Absent or null yields an empty form.
func decodeFormData(req *structpb.Struct) (types.FormData, error) {
	v, ok := req.GetFields()["form_data"]
	if !ok {
		return types.FormData{}, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return types.FormData{}, nil
	}
	if v.GetStructValue() == nil {
		return nil, fmt.Errorf("%w: form_data must be an object", errBadRequest)
	}
	raw, err := json.Marshal(v.AsInterface())
	if err != nil {
		return nil, fmt.Errorf("%w: form_data: %v", errBadRequest, err)
	}
	form, err := types.DecodeFormData(raw, types.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return form, nil
}
