package api

import (
	"context"
	"fmt"
	"sort"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/caseflow/internal/core/auth"
	"github.com/solatis/caseflow/internal/rules"
)

type evaluateResponse struct {
	SchemaID   string                              `json:"schema_id,omitempty"`
	Version    int                                 `json:"version,omitempty"`
	Results    map[string]*rules.ConditionalResult `json:"results"`
	InertRules []string                            `json:"inert_rules"`
}

// Evaluate runs every rule of a schema against the submitted form data and
// returns one result per field.
// Request: {"schema" | "schema_id" | "workflow_id", "form_data"}.
func (s *FormRulesService) Evaluate(ctx context.Context, req *structpb.Struct) (resp *structpb.Struct, err error) {
	start := time.Now()
	defer func() { s.observe("Evaluate", start, err) }()

	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, status.Error(codes.Internal, "missing tenant_id in context")
	}

	form, err := decodeFormData(req)
	if err != nil {
		return nil, toStatus(err)
	}
	// Bounds per-request work independent of schema size
	if len(form) > s.cfg.MaxFormFields {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("form_data exceeds maximum of %d fields", s.cfg.MaxFormFields))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	schema, err := s.resolveSchema(ctx, tenantID, req)
	if err != nil {
		return nil, toStatus(err)
	}

	results := s.engine.Evaluate(schema.compiled, form)

	out := evaluateResponse{
		Results:    results,
		InertRules: schema.compiled.InertRules(),
	}
	if out.InertRules == nil {
		out.InertRules = []string{}
	}
	if schema.record != nil {
		out.SchemaID = string(schema.record.ID)
		out.Version = schema.record.Version
	}

	applied := 0
	var hidden []string
	for id, r := range results {
		applied += len(r.AppliedRules)
		if !r.IsVisible {
			hidden = append(hidden, id)
		}
	}
	sort.Strings(hidden)

	s.metrics.Evaluations.WithLabelValues(schema.source()).Inc()
	s.metrics.RulesFired.Add(float64(applied))
	s.audit(auditEntry{
		Time:         start.UTC(),
		TenantID:     tenantID,
		SchemaID:     out.SchemaID,
		Fields:       len(results),
		AppliedRules: applied,
		Hidden:       hidden,
	})

	s.logger.Debug("form evaluated",
		"tenant_id", tenantID,
		"schema_id", out.SchemaID,
		"fields", len(results),
		"applied_rules", applied)

	return toStruct(out)
}
