package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/docrecall/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite.
// SQLite serializes writers, so it suits single-node deployments and tests;
// use PostgresStorage when many tenants write concurrently.
type SQLiteStorage struct {
	db        *sql.DB
	dimension int
	now       func() time.Time
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) a SQLite store for embeddings of the
// given dimension.
func NewSQLiteStorage(dbPath string, dimension int) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if err := ensureDimension(ctx, db, sqliteDialect, dimension); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db, dimension: dimension, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Dimension returns the embedding dimension of the store
func (s *SQLiteStorage) Dimension() int {
	return s.dimension
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

const sqliteChunkColumns = `id, owner_id, document_id, chunk_index, chunk_text, embedding,
	keywords, metadata, uploaded_at, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteChunk(row rowScanner, extra ...interface{}) (*types.Chunk, error) {
	var (
		c          types.Chunk
		blob       []byte
		meta       string
		uploadedAt int64
		createdAt  int64
	)
	dest := []interface{}{
		&c.ID, &c.OwnerID, &c.DocumentID, &c.ChunkIndex, &c.Text, &blob,
		&c.Keywords, &meta, &uploadedAt, &createdAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	metadata, err := decodeMetadata([]byte(meta))
	if err != nil {
		return nil, err
	}
	c.Metadata = metadata
	c.Embedding = deserializeVector(blob)
	c.UploadedAt = time.Unix(0, uploadedAt)
	c.CreatedAt = time.Unix(0, createdAt)
	return &c, nil
}

// Chunk operations

// InsertChunks replaces all chunks of doc with the given batch in one
// transaction. Chunk indexes follow slice order.
func (s *SQLiteStorage) InsertChunks(ctx context.Context, doc types.Document, chunks []types.ChunkInput) ([]string, error) {
	if err := validateInputs(doc, chunks, s.dimension); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := s.insertChunksWithQuerier(ctx, tx, doc, chunks)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit chunks", err)
	}
	return ids, nil
}

// insertChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) insertChunksWithQuerier(ctx context.Context, q querier, doc types.Document, chunks []types.ChunkInput) ([]string, error) {
	if err := checkDocumentOwner(ctx, q,
		"SELECT DISTINCT owner_id FROM document_chunks WHERE document_id = ?", doc); err != nil {
		return nil, err
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = ?", doc.ID); err != nil {
		return nil, storageErr("delete previous chunks", err)
	}

	now := s.now()
	uploadedAt := doc.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = now
	}

	query := `
		INSERT INTO document_chunks (id, owner_id, document_id, chunk_index, chunk_text,
			embedding, keywords, metadata, uploaded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	ids := make([]string, 0, len(chunks))
	for i, c := range chunks {
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		id := uuid.NewString()
		_, err = q.ExecContext(ctx, query,
			id, doc.OwnerID, doc.ID, i, c.Text,
			serializeVector(c.Embedding), strings.ToLower(c.Keywords), string(meta),
			uploadedAt.UnixNano(), now.UnixNano())
		if err != nil {
			return nil, storageErr(fmt.Sprintf("insert chunk %d", i), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DeleteByDocument removes every chunk of a document. Deleting an unknown
// document is not an error.
func (s *SQLiteStorage) DeleteByDocument(ctx context.Context, documentID int64) (int64, error) {
	return s.execAffected(ctx, "delete document chunks",
		"DELETE FROM document_chunks WHERE document_id = ?", documentID)
}

// DeleteByOwner removes every chunk of an owner
func (s *SQLiteStorage) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	return s.execAffected(ctx, "delete owner chunks",
		"DELETE FROM document_chunks WHERE owner_id = ?", ownerID)
}

// SetConfirmed updates the confirmed metadata flag on every chunk of a document
func (s *SQLiteStorage) SetConfirmed(ctx context.Context, documentID int64, confirmed bool) (int64, error) {
	return s.execAffected(ctx, "set confirmed",
		"UPDATE document_chunks SET metadata = json_set(metadata, '$.confirmed', ?) WHERE document_id = ?",
		confirmedValue(confirmed), documentID)
}

func (s *SQLiteStorage) execAffected(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	result, err := s.querier().ExecContext(ctx, query, args...)
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
func (s *SQLiteStorage) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := s.querier().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM document_chunks WHERE owner_id = ?", ownerID).Scan(&count)
	if err != nil {
		return 0, storageErr("count chunks", err)
	}
	return count, nil
}

// FetchAllByOwner returns up to limit chunks, newest first. Chunks inserted
// together keep their document order.
func (s *SQLiteStorage) FetchAllByOwner(ctx context.Context, ownerID int64, limit int) ([]*types.Chunk, error) {
	query := `SELECT ` + sqliteChunkColumns + `
		FROM document_chunks
		WHERE owner_id = ?
		ORDER BY created_at DESC, document_id, chunk_index`
	args := []interface{}{ownerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryChunks(ctx, "fetch chunks", query, args...)
}

// SearchKeywords returns owner chunks whose keyword string contains at least
// one of the keywords. Scoring is left to the caller.
func (s *SQLiteStorage) SearchKeywords(ctx context.Context, ownerID int64, keywords []string, limit int) ([]*types.Chunk, error) {
	keywords = normalizeKeywords(keywords)
	if len(keywords) == 0 {
		return []*types.Chunk{}, nil
	}

	conditions := make([]string, len(keywords))
	args := []interface{}{ownerID}
	for i, kw := range keywords {
		conditions[i] = "instr(lower(keywords), ?) > 0"
		args = append(args, kw)
	}

	query := `SELECT ` + sqliteChunkColumns + `
		FROM document_chunks
		WHERE owner_id = ? AND (` + strings.Join(conditions, " OR ") + `)
		ORDER BY uploaded_at DESC, chunk_index`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryChunks(ctx, "keyword search", query, args...)
}

// SearchVector returns the owner's nearest chunks by cosine similarity
func (s *SQLiteStorage) SearchVector(ctx context.Context, ownerID int64, vector []float32, limit int) ([]VectorResult, error) {
	if err := checkDimension(vector, s.dimension); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	return searchVector(ctx, s.querier(), ownerID, vector, limit)
}

func (s *SQLiteStorage) queryChunks(ctx context.Context, op, query string, args ...interface{}) ([]*types.Chunk, error) {
	rows, err := s.querier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		c, err := scanSQLiteChunk(rows)
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
func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Backend: "sqlite-" + BuildMode, Dimension: s.dimension}
	err := s.querier().QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT owner_id), COUNT(DISTINCT document_id),
		       COALESCE(AVG(LENGTH(chunk_text)), 0)
		FROM document_chunks
	`).Scan(&stats.TotalChunks, &stats.UniqueOwners, &stats.UniqueDocuments, &stats.AvgChunkLength)
	if err != nil {
		return nil, storageErr("get stats", err)
	}
	return stats, nil
}
