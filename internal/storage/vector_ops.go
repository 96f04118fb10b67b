package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/docrecall/pkg/types"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, q querier, ownerID int64, queryVector []float32, limit int) ([]VectorResult, error) {
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, ownerID, queryVector, limit)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, q, ownerID, queryVector, limit)
}

// searchVectorOptimized uses sqlite-vec extension for SQL-based vector similarity search
func searchVectorOptimized(ctx context.Context, q querier, ownerID int64, queryVector []float32, limit int) ([]VectorResult, error) {
	// vec_distance_cosine returns distance (lower is better)
	query := `
		SELECT ` + sqliteChunkColumns + `,
			1.0 - vec_distance_cosine(embedding, ?) AS similarity
		FROM document_chunks
		WHERE owner_id = ?
		ORDER BY similarity DESC
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, serializeVector(queryVector), ownerID, limit)
	if err != nil {
		return nil, storageErr("vector search", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var similarity float64
		c, err := scanSQLiteChunk(rows, &similarity)
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

// searchVectorFallback scans the owner's chunks and ranks them in Go.
// This is used when sqlite-vec extension is not available (purego builds)
func searchVectorFallback(ctx context.Context, q querier, ownerID int64, queryVector []float32, limit int) ([]VectorResult, error) {
	query := `SELECT ` + sqliteChunkColumns + ` FROM document_chunks WHERE owner_id = ?`
	rows, err := q.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, storageErr("vector search", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, 64)
	for rows.Next() {
		c, err := scanSQLiteChunk(rows)
		if err != nil {
			return nil, storageErr("vector search", err)
		}
		if len(c.Embedding) != len(queryVector) {
			return nil, fmt.Errorf("%w: chunk %s has %d values, query has %d",
				types.ErrDimensionMismatch, c.ID, len(c.Embedding), len(queryVector))
		}
		candidates = append(candidates, candidate{chunk: c, score: cosineSimilarity(queryVector, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("vector search", err)
	}

	sortCandidates(candidates)
	return buildVectorResults(candidates, limit), nil
}

// buildVectorResults creates VectorResult slice from candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			Chunk:      candidates[i].chunk,
			Similarity: candidates[i].score,
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunk *types.Chunk
	score float64
}

// sortCandidates sorts by score descending; ties keep newest upload first
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].chunk.UploadedAt.After(candidates[j].chunk.UploadedAt)
	})
}
