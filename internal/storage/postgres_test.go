package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrecall/pkg/types"
)

// setupPostgres connects to the database named by DOCRECALL_TEST_POSTGRES_DSN.
// The tests are skipped when it is unset.
func setupPostgres(t *testing.T) *PostgresStorage {
	dsn := os.Getenv("DOCRECALL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DOCRECALL_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewPostgresStorage(ctx, PostgresConfig{DSN: dsn, Dimension: testDimension})
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, "TRUNCATE document_chunks")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresRoundTrip(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, types.Document{OwnerID: 1, ID: 10}, []types.ChunkInput{
		{Text: "exact", Keywords: "Invoice, tax", Embedding: []float32{1, 0, 0, 0}, Metadata: map[string]any{"confirmed": 1}},
		{Text: "close", Keywords: "payroll", Embedding: []float32{0.9, 0.1, 0, 0}},
	})
	require.NoError(t, err)
	_, err = store.InsertChunks(ctx, types.Document{OwnerID: 2, ID: 20}, []types.ChunkInput{
		{Text: "other owner", Keywords: "invoice", Embedding: []float32{1, 0, 0, 0}},
	})
	require.NoError(t, err)

	hits, err := store.SearchVector(ctx, 1, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].Chunk.Text)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-5)

	chunks, err := store.SearchKeywords(ctx, 1, []string{"INVOICE"}, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "exact", chunks[0].Text)

	n, err := store.SetConfirmed(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalChunks)
	assert.Equal(t, int64(2), stats.UniqueOwners)

	n, err = store.DeleteByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.SearchVector(ctx, 1, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestPostgresOtherOwnersDocument(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	_, err := store.InsertChunks(ctx, types.Document{OwnerID: 1, ID: 42}, []types.ChunkInput{
		{Text: "owner one", Embedding: []float32{1, 0, 0, 0}},
	})
	require.NoError(t, err)

	_, err = store.InsertChunks(ctx, types.Document{OwnerID: 2, ID: 42}, []types.ChunkInput{
		{Text: "owner two", Embedding: []float32{0, 1, 0, 0}},
	})
	assert.ErrorIs(t, err, types.ErrDocumentOwnerConflict)

	count, err := store.CountByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% match\_rate`, escapeLike("100% match_rate"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
