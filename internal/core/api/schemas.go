package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/caseflow/internal/core/auth"
	"github.com/solatis/caseflow/internal/rules"
)

type dependenciesResponse struct {
	Dependents map[string][]string `json:"dependents"`
	Rules      map[string][]string `json:"rules"`
	Fields     map[string][]string `json:"fields"`
}

// Dependencies reports which fields each rule and visibility condition
// reads, and the inverse index used to re-evaluate only affected fields.
// Request: {"schema" | "schema_id" | "workflow_id"}.
func (s *FormRulesService) Dependencies(ctx context.Context, req *structpb.Struct) (resp *structpb.Struct, err error) {
	start := time.Now()
	defer func() { s.observe("Dependencies", start, err) }()

	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, status.Error(codes.Internal, "missing tenant_id in context")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	schema, err := s.resolveSchema(ctx, tenantID, req)
	if err != nil {
		return nil, toStatus(err)
	}

	out := dependenciesResponse{
		Dependents: schema.compiled.Dependents(),
		Rules:      make(map[string][]string, len(schema.compiled.Rules)),
		Fields:     make(map[string][]string),
	}
	if out.Dependents == nil {
		out.Dependents = map[string][]string{}
	}
	for _, r := range schema.compiled.Rules {
		out.Rules[r.ID] = rules.ExtractDependencies(r.Condition)
	}
	for _, f := range schema.compiled.Fields {
		if f.Visibility != nil {
			out.Fields[f.Definition.ID] = rules.ExtractDependencies(f.Visibility)
		}
	}

	return toStruct(out)
}

type putSchemaResponse struct {
	SchemaID   string   `json:"schema_id"`
	WorkflowID string   `json:"workflow_id"`
	Version    int      `json:"version"`
	Checksum   string   `json:"checksum"`
	InertRules []string `json:"inert_rules"`
}

// PutSchema validates a schema and stores it as the next version of a workflow.
// Request: {"workflow_id", "schema"}.
func (s *FormRulesService) PutSchema(ctx context.Context, req *structpb.Struct) (resp *structpb.Struct, err error) {
	start := time.Now()
	defer func() { s.observe("PutSchema", start, err) }()

	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, status.Error(codes.Internal, "missing tenant_id in context")
	}

	workflowID, ok, err := stringField(req, "workflow_id")
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "workflow_id is required")
	}
	inline, ok := req.GetFields()["schema"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "schema is required")
	}
	schema, err := decodeSchema(inline)
	if err != nil {
		return nil, toStatus(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	record, compiled, err := s.store.Save(ctx, tenantID, workflowID, schema)
	if err != nil {
		return nil, toStatus(err)
	}

	out := putSchemaResponse{
		SchemaID:   string(record.ID),
		WorkflowID: record.WorkflowID,
		Version:    record.Version,
		Checksum:   record.Checksum,
		InertRules: compiled.InertRules(),
	}
	if out.InertRules == nil {
		out.InertRules = []string{}
	}
	return toStruct(out)
}

type schemaSummary struct {
	SchemaID   string    `json:"schema_id"`
	WorkflowID string    `json:"workflow_id"`
	Version    int       `json:"version"`
	Name       string    `json:"name"`
	Checksum   string    `json:"checksum"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListSchemas lists stored schema versions, optionally for one workflow.
// Request: {"workflow_id"?}.
func (s *FormRulesService) ListSchemas(ctx context.Context, req *structpb.Struct) (resp *structpb.Struct, err error) {
	start := time.Now()
	defer func() { s.observe("ListSchemas", start, err) }()

	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, status.Error(codes.Internal, "missing tenant_id in context")
	}

	workflowID, filter, err := stringField(req, "workflow_id")
	if err != nil {
		return nil, toStatus(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	records, err := s.store.List(ctx, tenantID)
	if err != nil {
		return nil, toStatus(fmt.Errorf("list schemas: %w", err))
	}

	summaries := make([]schemaSummary, 0, len(records))
	for _, r := range records {
		if filter && r.WorkflowID != workflowID {
			continue
		}
		summaries = append(summaries, schemaSummary{
			SchemaID:   string(r.ID),
			WorkflowID: r.WorkflowID,
			Version:    r.Version,
			Name:       r.Name,
			Checksum:   r.Checksum,
			CreatedAt:  r.CreatedAt.UTC(),
		})
	}

	return toStruct(map[string]any{"schemas": summaries})
}
