// Package migrations embeds the schema store DDL, one directory per driver.
// Files are applied in name order by internal/core/db and must never be
// edited once released: add a new numbered file instead.
package migrations

import "embed"

// SqliteMigrations holds sqlite/*.sql.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds postgres/*.sql.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
