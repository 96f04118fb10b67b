package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/dshills/docrecall/pkg/types"
)

// PostgresConfig configures the pgvector-backed store
type PostgresConfig struct {
	DSN             string
	Dimension       int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStorage implements the Storage interface on PostgreSQL with the
// pgvector extension. Writes lock rows, not the table, so concurrent tenants
// do not serialize on each other.
type PostgresStorage struct {
	db        *sql.DB
	dimension int
	now       func() time.Time
}

var postgresDialect = dialect{
	name: "postgres",
	createVersionTable: `CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ DEFAULT NOW()
)`,
	selectVersions: "SELECT version FROM schema_version",
	insertVersion:  "INSERT INTO schema_version (version) VALUES ($1)",
	deleteVersion:  "DELETE FROM schema_version WHERE version = $1",
	selectMeta:     "SELECT value FROM store_meta WHERE key = $1",
	insertMeta:     "INSERT INTO store_meta (key, value) VALUES ($1, $2)",
}

// PostgresMigrations returns the PostgreSQL migrations for a vector column
// of the given dimension.
func PostgresMigrations(dimension int) []Migration {
	return []Migration{
		{
			Version: "1.0.0",
			Up: fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS store_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS document_chunks (
    id UUID PRIMARY KEY,
    owner_id BIGINT NOT NULL,
    document_id BIGINT NOT NULL,
    chunk_index INTEGER NOT NULL,
    chunk_text TEXT NOT NULL,
    embedding vector(%d) NOT NULL,
    keywords TEXT NOT NULL DEFAULT '',
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
    uploaded_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_document_chunks_owner ON document_chunks(owner_id);
CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding
    ON document_chunks USING hnsw (embedding vector_cosine_ops);
`, dimension),
			Down: `
DROP TABLE IF EXISTS document_chunks;
DROP TABLE IF EXISTS store_meta;
`,
		},
		{
			Version: "1.1.0",
			Up: `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE INDEX IF NOT EXISTS idx_document_chunks_owner_created
    ON document_chunks(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_document_chunks_keywords_trgm
    ON document_chunks USING gin (lower(keywords) gin_trgm_ops);
`,
			Down: `
DROP INDEX IF EXISTS idx_document_chunks_keywords_trgm;
DROP INDEX IF EXISTS idx_document_chunks_owner_created;
`,
		},
	}
}

// NewPostgresStorage connects, applies migrations and verifies the stored
// embedding dimension.
func NewPostgresStorage(ctx context.Context, cfg PostgresConfig) (*PostgresStorage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyMigrations(ctx, db, postgresDialect, PostgresMigrations(cfg.Dimension)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if err := ensureDimension(ctx, db, postgresDialect, cfg.Dimension); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresStorage{db: db, dimension: cfg.Dimension, now: time.Now}, nil
}

// RollbackMigration rolls back the most recent PostgreSQL migration
func (s *PostgresStorage) RollbackMigration(ctx context.Context) error {
	return rollbackMigration(ctx, s.db, postgresDialect, PostgresMigrations(s.dimension))
}

// Close closes the connection pool
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *PostgresStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Dimension returns the embedding dimension of the store
func (s *PostgresStorage) Dimension() int {
	return s.dimension
}

const pgChunkColumns = `id, owner_id, document_id, chunk_index, chunk_text, embedding,
	keywords, metadata, uploaded_at, created_at`

func scanPostgresChunk(row rowScanner, extra ...interface{}) (*types.Chunk, error) {
	var (
		c    types.Chunk
		vec  pgvector.Vector
		meta []byte
	)
	dest := []interface{}{
		&c.ID, &c.OwnerID, &c.DocumentID, &c.ChunkIndex, &c.Text, &vec,
		&c.Keywords, &meta, &c.UploadedAt, &c.CreatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	metadata, err := decodeMetadata(meta)
	if err != nil {
		return nil, err
	}
	c.Metadata = metadata
	c.Embedding = vec.Slice()
	return &c, nil
}

// InsertChunks replaces all chunks of doc with the given batch in one
// transaction.
func (s *PostgresStorage) InsertChunks(ctx context.Context, doc types.Document, chunks []types.ChunkInput) ([]string, error) {
	if err := validateInputs(doc, chunks, s.dimension); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// row locks keep a concurrent ingest under another owner from slipping in
	if err := checkDocumentOwner(ctx, tx,
		"SELECT owner_id FROM document_chunks WHERE document_id = $1 FOR UPDATE", doc); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = $1", doc.ID); err != nil {
		return nil, storageErr("delete previous chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, owner_id, document_id, chunk_index, chunk_text,
			embedding, keywords, metadata, uploaded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7, $8::jsonb, $9, $10)`)
	if err != nil {
		return nil, storageErr("prepare insert", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now().UTC()
	uploadedAt := doc.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = now
	}

	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx,
			id, doc.OwnerID, doc.ID, i, c.Text,
			pgvector.NewVector(c.Embedding), strings.ToLower(c.Keywords), string(meta),
			uploadedAt, now,
		); err != nil {
			return nil, storageErr(fmt.Sprintf("insert chunk %d", i), err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit chunks", err)
	}
	return ids, nil
}

// DeleteByDocument removes every chunk of a document
func (s *PostgresStorage) DeleteByDocument(ctx context.Context, documentID int64) (int64, error) {
	return s.execAffected(ctx, "delete document chunks",
		"DELETE FROM document_chunks WHERE document_id = $1", documentID)
}

// DeleteByOwner removes every chunk of an owner
func (s *PostgresStorage) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	return s.execAffected(ctx, "delete owner chunks",
		"DELETE FROM document_chunks WHERE owner_id = $1", ownerID)
}

// SetConfirmed updates the confirmed metadata flag on every chunk of a document
func (s *PostgresStorage) SetConfirmed(ctx context.Context, documentID int64, confirmed bool) (int64, error) {
	return s.execAffected(ctx, "set confirmed",
		`UPDATE document_chunks
		 SET metadata = jsonb_set(metadata, '{confirmed}', to_jsonb($1::int))
		 WHERE document_id = $2`,
		confirmedValue(confirmed), documentID)
}

func (s *PostgresStorage) execAffected(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storageErr(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr(op, err)
	}
	return n, nil
}

// CountByOwner returns the number of chunks an owner has stored
func (s *PostgresStorage) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM document_chunks WHERE owner_id = $1", ownerID).Scan(&count)
	if err != nil {
		return 0, storageErr("count chunks", err)
	}
	return count, nil
}

// FetchAllByOwner returns up to limit chunks, newest first
func (s *PostgresStorage) FetchAllByOwner(ctx context.Context, ownerID int64, limit int) ([]*types.Chunk, error) {
	query := `SELECT ` + pgChunkColumns + `
		FROM document_chunks
		WHERE owner_id = $1
		ORDER BY created_at DESC, document_id, chunk_index`
	args := []interface{}{ownerID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryChunks(ctx, "fetch chunks", query, args...)
}

// SearchKeywords returns owner chunks whose keyword string contains at least
// one of the keywords.
func (s *PostgresStorage) SearchKeywords(ctx context.Context, ownerID int64, keywords []string, limit int) ([]*types.Chunk, error) {
	keywords = normalizeKeywords(keywords)
	if len(keywords) == 0 {
		return []*types.Chunk{}, nil
	}

	patterns := make([]string, len(keywords))
	for i, kw := range keywords {
		patterns[i] = "%" + escapeLike(kw) + "%"
	}

	query := `SELECT ` + pgChunkColumns + `
		FROM document_chunks
		WHERE owner_id = $1 AND lower(keywords) LIKE ANY($2)
		ORDER BY uploaded_at DESC, chunk_index`
	args := []interface{}{ownerID, pq.Array(patterns)}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	return s.queryChunks(ctx, "keyword search", query, args...)
}

// SearchVector returns the owner's nearest chunks by cosine similarity
func (s *PostgresStorage) SearchVector(ctx context.Context, ownerID int64, vector []float32, limit int) ([]VectorResult, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []VectorResult{}, nil
	}

	query := `SELECT ` + pgChunkColumns + `,
			1 - (embedding <=> $2::vector) AS similarity
		FROM document_chunks
		WHERE owner_id = $1
		ORDER BY embedding <=> $2::vector
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, ownerID, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, storageErr("vector search", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var similarity float64
		c, err := scanPostgresChunk(rows, &similarity)
		if err != nil {
			return nil, storageErr("vector search", err)
		}
		results = append(results, VectorResult{Chunk: c, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("vector search", err)
	}
	return results, nil
}

func (s *PostgresStorage) queryChunks(ctx context.Context, op, query string, args ...interface{}) ([]*types.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		c, err := scanPostgresChunk(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return chunks, nil
}

// GetStats returns store-wide chunk statistics
func (s *PostgresStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Backend: "postgres", Dimension: s.dimension}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT owner_id), COUNT(DISTINCT document_id),
		       COALESCE(AVG(LENGTH(chunk_text)), 0)::float8
		FROM document_chunks
	`).Scan(&stats.TotalChunks, &stats.UniqueOwners, &stats.UniqueDocuments, &stats.AvgChunkLength)
	if err != nil {
		return nil, storageErr("get stats", err)
	}
	return stats, nil
}

// escapeLike escapes LIKE wildcards using the default backslash escape
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
