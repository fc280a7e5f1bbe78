// Package schemas persists versioned form schemas.
//
// Every saved document is compiled first, so the store never holds a schema
// the rule engine would reject. Versions are assigned per tenant and workflow
// starting at 1; the newest version is what Latest returns.
package schemas

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solatis/caseflow/internal/core/db"
	"github.com/solatis/caseflow/internal/rules"
	"github.com/solatis/caseflow/internal/types"
)

// Record is one stored schema version.
type Record struct {
	ID         types.SchemaID `db:"schema_id"`
	TenantID   string         `db:"tenant_id"`
	WorkflowID string         `db:"workflow_id"`
	Version    int            `db:"version"`
	Name       string         `db:"name"`
	Document   string         `db:"document"`
	Checksum   string         `db:"checksum"`
	CreatedAt  time.Time      `db:"created_at"`
}

// Schema decodes the stored document.
func (r *Record) Schema() (*types.ConfigurationSchema, error) {
	return types.DecodeSchema([]byte(r.Document), types.FormatJSON)
}

// Compile decodes and compiles the stored document.
func (r *Record) Compile() (*rules.CompiledSchema, error) {
	schema, err := r.Schema()
	if err != nil {
		return nil, err
	}
	return rules.Compile(schema)
}

// Store reads and writes schema versions through named queries.
type Store struct {
	queries *db.Queries
	logger  *slog.Logger
}

// NewStore creates a store over loaded queries.
func NewStore(queries *db.Queries, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, logger: logger}
}

// Save compiles schema and stores it as the next version of workflowID.
// The compiled form is returned so callers can evaluate without reloading.
func (s *Store) Save(ctx context.Context, tenantID, workflowID string, schema *types.ConfigurationSchema) (*Record, *rules.CompiledSchema, error) {
	workflowID = strings.TrimSpace(workflowID)
	if workflowID == "" {
		return nil, nil, types.ErrEmptyWorkflowID
	}

	compiled, err := rules.Compile(schema)
	if err != nil {
		return nil, nil, err
	}

	document, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, fmt.Errorf("encode schema: %w", err)
	}

	record := &Record{
		ID:         types.NewSchemaID(),
		TenantID:   tenantID,
		WorkflowID: workflowID,
		Name:       schema.Name,
		Document:   string(document),
		Checksum:   Checksum(document),
		CreatedAt:  time.Now().UTC(),
	}

	err = s.queries.InTx(ctx, func(tx *db.Queries) error {
		if err := tx.GetContext(ctx, "next-schema-version", &record.Version, tenantID, workflowID); err != nil {
			return fmt.Errorf("next version: %w", err)
		}
		_, err := tx.ExecContext(ctx, "insert-schema",
			record.ID,
			record.TenantID,
			record.WorkflowID,
			record.Version,
			record.Name,
			record.Document,
			record.Checksum,
			record.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("save schema: %w", err)
	}

	s.logger.Info("schema saved",
		"schema_id", record.ID,
		"tenant_id", tenantID,
		"workflow_id", workflowID,
		"version", record.Version,
		"inert_rules", len(compiled.InertRules()))

	return record, compiled, nil
}

// Get returns one schema version by id.
func (s *Store) Get(ctx context.Context, tenantID string, id types.SchemaID) (*Record, error) {
	var record Record
	err := s.queries.GetContext(ctx, "get-schema", &record, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrSchemaNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}
	return &record, nil
}

// Latest returns the highest version stored for workflowID.
func (s *Store) Latest(ctx context.Context, tenantID, workflowID string) (*Record, error) {
	var record Record
	err := s.queries.GetContext(ctx, "get-latest-schema-for-workflow", &record, tenantID, workflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: workflow %s", types.ErrSchemaNotFound, workflowID)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest schema: %w", err)
	}
	return &record, nil
}

// List returns every stored version for a tenant, ordered by workflow and version.
func (s *Store) List(ctx context.Context, tenantID string) ([]Record, error) {
	var records []Record
	if err := s.queries.SelectContext(ctx, "list-schemas", &records, tenantID); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return records, nil
}

// Checksum returns the content hash of a stored document.
// Identical documents always produce the same checksum.
func Checksum(document []byte) string {
	h := sha256.Sum256(document)
	return fmt.Sprintf("%x", h)
}
