package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/caseflow/migrations"
)

/*
 * Schema migrations.
 *
 * Migrations are the embedded *.sql files for the connection's driver,
 * applied in file name order. Each one runs in its own transaction together
 * with the row recording it in the migrations table, so a failed migration
 * leaves nothing behind.
 *
 * Applied migrations are pinned by SHA256: editing or removing an embedded
 * file after it ran is an error on the next Up, never silently skipped.
 */

// Table DDL per driver. Must match the migrations table in 001_initial_schema.sql.
var migrationsTableDDL = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		execution_ms INTEGER NOT NULL,
		CHECK (applied_at LIKE '____-__-__T__:__:__Z')
	)`,
	"postgres": `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`,
}

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration is one embedded migration file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// appliedRow is one row of the migrations table.
type appliedRow struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   any    `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

// Migrator applies the embedded migrations for one database.
type Migrator struct {
	db         *sqlx.DB
	logger     *slog.Logger
	migrations []migration
}

// NewMigrator loads the embedded migrations matching db's driver.
func NewMigrator(db *sqlx.DB, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsys, dir, err := migrationSource(db.DriverName())
	if err != nil {
		return nil, err
	}
	migrations, err := parseMigrationFiles(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}

	return &Migrator{db: db, logger: logger, migrations: migrations}, nil
}

// Up validates checksums of applied migrations and applies pending ones in
// order. Returns the IDs applied by this call.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.validateChecksums(applied); err != nil {
		return nil, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	var newlyApplied []string
	for _, mig := range m.migrations {
		if _, ok := applied[mig.ID]; ok {
			continue
		}

		took, err := m.apply(ctx, mig)
		if err != nil {
			return newlyApplied, err
		}

		m.logger.Info("applied migration", "migration_id", mig.ID, "execution_ms", took.Milliseconds())
		newlyApplied = append(newlyApplied, mig.ID)
	}

	return newlyApplied, nil
}

// Status reports every embedded migration, applied or pending, in order.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		row, ok := applied[mig.ID]
		if !ok {
			statuses = append(statuses, MigrationStatus{ID: mig.ID, Checksum: mig.Checksum})
			continue
		}
		statuses = append(statuses, MigrationStatus{
			ID:          row.ID,
			Checksum:    row.Checksum,
			Applied:     true,
			AppliedAt:   parseAppliedAt(row.AppliedAt),
			ExecutionMs: row.ExecutionMs,
		})
	}
	return statuses, nil
}

// Require returns an error naming the first pending migration, if any.
func (m *Migrator) Require(ctx context.Context) error {
	statuses, err := m.Status(ctx)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'caseflow migrate' first", s.ID)
		}
	}
	return nil
}

// MigrateUp applies pending migrations. See Migrator.Up.
func MigrateUp(db *sqlx.DB, logger *slog.Logger) ([]string, error) {
	m, err := NewMigrator(db, logger)
	if err != nil {
		return nil, err
	}
	return m.Up(context.Background())
}

// MigrateStatus returns the status of all migrations (applied and pending).
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := NewMigrator(db, nil)
	if err != nil {
		return nil, err
	}
	return m.Status(context.Background())
}

// RequireMigrated returns an error unless every embedded migration has been applied.
func RequireMigrated(db *sqlx.DB) error {
	m, err := NewMigrator(db, nil)
	if err != nil {
		return err
	}
	return m.Require(context.Background())
}

// applied creates the tracking table if needed and returns its rows by id.
func (m *Migrator) applied(ctx context.Context) (map[string]appliedRow, error) {
	if _, err := m.db.ExecContext(ctx, migrationsTableDDL[m.db.DriverName()]); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var rows []appliedRow
	if err := m.db.SelectContext(ctx, &rows, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	applied := make(map[string]appliedRow, len(rows))
	for _, row := range rows {
		applied[row.ID] = row
	}
	return applied, nil
}

// validateChecksums rejects applied migrations that were edited or removed.
func (m *Migrator) validateChecksums(applied map[string]appliedRow) error {
	embedded := make(map[string]string, len(m.migrations))
	for _, mig := range m.migrations {
		embedded[mig.ID] = mig.Checksum
	}

	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		expected, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if got := applied[id].Checksum; got != expected {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, expected, got)
		}
	}
	return nil
}

// apply runs one migration and records it in the same transaction.
func (m *Migrator) apply(ctx context.Context, mig migration) (time.Duration, error) {
	start := time.Now()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for migration %s: %w", mig.ID, err)
	}
	defer tx.Rollback()

	// lib/pq doesn't support multiple statements in single Exec
	for i, stmt := range splitStatements(mig.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("failed to apply migration %s: statement %d: %w", mig.ID, i+1, err)
		}
	}

	took := time.Since(start)
	now := time.Now().UTC()
	var appliedAt any = now
	if tx.DriverName() == "sqlite3" {
		appliedAt = now.Format(time.RFC3339)
	}

	insert := tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)")
	if _, err := tx.ExecContext(ctx, insert, mig.ID, mig.Checksum, appliedAt, took.Milliseconds()); err != nil {
		return 0, fmt.Errorf("failed to record migration %s: %w", mig.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit migration %s: %w", mig.ID, err)
	}
	return took, nil
}

// migrationSource selects the embedded migration set for a driver.
func migrationSource(driver string) (embed.FS, string, error) {
	switch driver {
	case "sqlite3":
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case "postgres":
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// parseMigrationFiles reads dir's *.sql files sorted by name.
func parseMigrationFiles(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, migration{
			ID:       entry.Name(),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
			SQL:      string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}

// parseAppliedAt normalizes applied_at, stored as RFC3339 text on SQLite
// and as a timestamp on PostgreSQL.
func parseAppliedAt(v any) *time.Time {
	var raw string
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &parsed
}

// splitStatements drops line comments and splits on semicolons.
func splitStatements(sql string) []string {
	var body strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}

	var statements []string
	for _, stmt := range strings.Split(body.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
