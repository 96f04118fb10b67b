package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/docrecall/pkg/types"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"

	metaKeyDimension = "dimension"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// dialect holds the statements that differ between backends
type dialect struct {
	name               string
	createVersionTable string
	selectVersions     string
	insertVersion      string
	deleteVersion      string
	selectMeta         string
	insertMeta         string
}

var sqliteDialect = dialect{
	name: "sqlite",
	createVersionTable: `CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	selectVersions: "SELECT version FROM schema_version",
	insertVersion:  "INSERT INTO schema_version (version) VALUES (?)",
	deleteVersion:  "DELETE FROM schema_version WHERE version = ?",
	selectMeta:     "SELECT value FROM store_meta WHERE key = ?",
	insertMeta:     "INSERT INTO store_meta (key, value) VALUES (?, ?)",
}

// SQLiteMigrations contains the SQLite schema migrations in order
var SQLiteMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      sqliteV1Up,
		Down:    sqliteV1Down,
	},
	{
		Version: "1.1.0",
		Up:      sqliteV11Up,
		Down:    sqliteV11Down,
	},
}

// Timestamps are unix nanoseconds so ordering is numeric.
const sqliteV1Up = `
CREATE TABLE IF NOT EXISTS store_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document_chunks (
    id TEXT PRIMARY KEY,
    owner_id INTEGER NOT NULL,
    document_id INTEGER NOT NULL,
    chunk_index INTEGER NOT NULL,
    chunk_text TEXT NOT NULL,
    embedding BLOB NOT NULL,
    keywords TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    uploaded_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE(document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_document_chunks_owner ON document_chunks(owner_id);
CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks(document_id);
`

const sqliteV1Down = `
DROP TABLE IF EXISTS document_chunks;
DROP TABLE IF EXISTS store_meta;
`

const sqliteV11Up = `
CREATE INDEX IF NOT EXISTS idx_document_chunks_owner_created ON document_chunks(owner_id, created_at DESC);
`

const sqliteV11Down = `
DROP INDEX IF EXISTS idx_document_chunks_owner_created;
`

// ApplyMigrations runs all pending SQLite migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	return applyMigrations(ctx, db, sqliteDialect, SQLiteMigrations)
}

// RollbackMigration rolls back the most recent SQLite migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	return rollbackMigration(ctx, db, sqliteDialect, SQLiteMigrations)
}

// currentVersion returns the highest applied version, 0.0.0 when none
func currentVersion(ctx context.Context, db *sql.DB, d dialect) (*semver.Version, error) {
	if _, err := db.ExecContext(ctx, d.createVersionTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	rows, err := db.QueryContext(ctx, d.selectVersions)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

func applyMigrations(ctx context.Context, db *sql.DB, d dialect, migrations []Migration) error {
	current, err := currentVersion(ctx, db, d)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply %s migration %s: %w", d.name, migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, d.insertVersion, migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		current = migrationVersion
	}

	return nil
}

func rollbackMigration(ctx context.Context, db *sql.DB, d dialect, migrations []Migration) error {
	current, err := currentVersion(ctx, db, d)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range migrations {
		v, err := semver.NewVersion(migrations[i].Version)
		if err == nil && v.Equal(current) {
			migration = &migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	if _, err := db.ExecContext(ctx, d.deleteVersion, migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}

// ensureDimension records the embedding dimension on first open and rejects
// reopening the store with a different one.
func ensureDimension(ctx context.Context, db *sql.DB, d dialect, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}

	var stored string
	err := db.QueryRowContext(ctx, d.selectMeta, metaKeyDimension).Scan(&stored)
	if err == sql.ErrNoRows {
		if _, err := db.ExecContext(ctx, d.insertMeta, metaKeyDimension, strconv.Itoa(dimension)); err != nil {
			return fmt.Errorf("failed to record dimension: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read dimension: %w", err)
	}

	existing, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("invalid stored dimension %q: %w", stored, err)
	}
	if existing != dimension {
		return fmt.Errorf("%w: store was created with dimension %d, opened with %d",
			types.ErrDimensionMismatch, existing, dimension)
	}
	return nil
}
