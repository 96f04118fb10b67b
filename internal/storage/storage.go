package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/docrecall/pkg/types"
)

// Storage defines the interface for persisting and querying document chunks.
// Every read is scoped to a single owner; every mutation is atomic.
type Storage interface {
	// Chunk lifecycle
	InsertChunks(ctx context.Context, doc types.Document, chunks []types.ChunkInput) ([]string, error)
	DeleteByDocument(ctx context.Context, documentID int64) (int64, error)
	DeleteByOwner(ctx context.Context, ownerID int64) (int64, error)
	SetConfirmed(ctx context.Context, documentID int64, confirmed bool) (int64, error)

	// Owner-scoped reads
	CountByOwner(ctx context.Context, ownerID int64) (int64, error)
	FetchAllByOwner(ctx context.Context, ownerID int64, limit int) ([]*types.Chunk, error)

	// Search operations
	SearchVector(ctx context.Context, ownerID int64, vector []float32, limit int) ([]VectorResult, error)
	SearchKeywords(ctx context.Context, ownerID int64, keywords []string, limit int) ([]*types.Chunk, error)

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)
	Dimension() int

	// Database operations
	Ping(ctx context.Context) error
	Close() error
}

// VectorResult is a nearest-neighbour hit with its cosine similarity
type VectorResult struct {
	Chunk      *types.Chunk
	Similarity float64
}

// Stats summarizes the whole store
type Stats struct {
	Backend         string
	Dimension       int
	TotalChunks     int64
	UniqueOwners    int64
	UniqueDocuments int64
	AvgChunkLength  float64
}

// storageErr wraps a driver error so callers can match types.ErrStorage
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrStorage, err)
}

// checkDimension rejects a vector whose length differs from the store's
func checkDimension(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: got %d, store expects %d", types.ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}

// validateInputs checks a document batch before any write happens
func validateInputs(doc types.Document, chunks []types.ChunkInput, dimension int) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("chunk %d: %w", i, types.ErrEmptyChunkText)
		}
		if err := checkDimension(c.Embedding, dimension); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}
	return nil
}

// checkDocumentOwner fails with types.ErrDocumentOwnerConflict when any chunk
// of doc.ID belongs to an owner other than doc.OwnerID. query selects the
// distinct owner_id values of one document and takes the document id as its
// only argument.
func checkDocumentOwner(ctx context.Context, q querier, query string, doc types.Document) error {
	rows, err := q.QueryContext(ctx, query, doc.ID)
	if err != nil {
		return storageErr("check document owner", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var owner int64
		if err := rows.Scan(&owner); err != nil {
			return storageErr("check document owner", err)
		}
		if owner != doc.OwnerID {
			return fmt.Errorf("document %d: %w", doc.ID, types.ErrDocumentOwnerConflict)
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr("check document owner", err)
	}
	return nil
}

// normalizeKeywords lowercases, trims and de-duplicates keywords
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func encodeMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(meta)
}

func decodeMetadata(raw []byte) (map[string]any, error) {
	meta := map[string]any{}
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}

// confirmedValue is the stored representation of the confirmed flag
func confirmedValue(confirmed bool) int {
	if confirmed {
		return 1
	}
	return 0
}
