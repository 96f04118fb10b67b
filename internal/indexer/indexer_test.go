package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrecall/internal/embedder"
	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/storage"
	"github.com/dshills/docrecall/pkg/types"
)

const testDimension = 4

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension int
	failAfter int // fail every batch call after this many, -1 never
	callCount int
	mu        sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: testDimension, failAfter: -1}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	resp, err := m.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failAfter >= 0 && m.callCount >= m.failAfter {
		return nil, fmt.Errorf("%w: provider down", embedder.ErrProviderFailed)
	}
	m.callCount++

	out := make([]*embedder.Embedding, len(req.Texts))
	for i := range req.Texts {
		vector := make([]float32, m.dimension)
		vector[i%m.dimension] = 1
		out[i] = &embedder.Embedding{Vector: vector, Dimension: m.dimension, Provider: "mock", Model: "test-v1"}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: "mock", Model: "test-v1"}, nil
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "test-v1" }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func setupStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:", testDimension)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ingestChunks(n int, prefix string) []types.IngestChunk {
	out := make([]types.IngestChunk, n)
	for i := range out {
		out[i] = types.IngestChunk{
			Text:     fmt.Sprintf("%s paragraph %d", prefix, i),
			Keywords: []string{" Liver ", "ULTRASOUND", ""},
			Metadata: map[string]any{types.MetaSource: "summary"},
		}
	}
	return out
}

func TestIndexDocument(t *testing.T) {
	store := setupStore(t)
	emb := newMockEmbedder()
	idx := New(store, emb, &Config{BatchSize: 2, Workers: 2, Logger: logging.Discard()})

	ctx := context.Background()
	doc := types.Document{OwnerID: 1, ID: 10}
	stats, err := idx.IndexDocument(ctx, doc, ingestChunks(5, "first"))
	require.NoError(t, err)

	assert.Equal(t, int64(10), stats.DocumentID)
	assert.Equal(t, 5, stats.ChunksStored)
	assert.Equal(t, 3, stats.EmbedRequests)
	assert.Equal(t, 3, emb.calls())

	chunks, err := store.FetchAllByOwner(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	for _, c := range chunks {
		assert.Equal(t, "liver, ultrasound", c.Keywords)
		assert.Len(t, c.Embedding, testDimension)
		assert.Equal(t, "summary", c.Metadata[types.MetaSource])
	}
}

func TestIndexDocument_ReplacesPreviousChunks(t *testing.T) {
	store := setupStore(t)
	idx := New(store, newMockEmbedder(), &Config{Logger: logging.Discard()})

	ctx := context.Background()
	doc := types.Document{OwnerID: 1, ID: 10}
	_, err := idx.IndexDocument(ctx, doc, []types.IngestChunk{{Text: "chunk A"}, {Text: "chunk B"}})
	require.NoError(t, err)
	_, err = idx.IndexDocument(ctx, doc, []types.IngestChunk{{Text: "chunk A prime"}})
	require.NoError(t, err)

	chunks, err := store.FetchAllByOwner(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "chunk A prime", chunks[0].Text)
}

func TestIndexDocument_EmbeddingFailureStoresNothing(t *testing.T) {
	store := setupStore(t)
	emb := newMockEmbedder()
	idx := New(store, emb, &Config{BatchSize: 2, Workers: 1, Logger: logging.Discard()})

	ctx := context.Background()
	doc := types.Document{OwnerID: 1, ID: 10}
	_, err := idx.IndexDocument(ctx, doc, ingestChunks(2, "original"))
	require.NoError(t, err)

	emb.failAfter = emb.calls() + 1 // second batch of the next document fails
	_, err = idx.IndexDocument(ctx, doc, ingestChunks(4, "replacement"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.ErrorIs(t, err, embedder.ErrProviderFailed)

	chunks, err := store.FetchAllByOwner(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.Contains(t, c.Text, "original")
	}
}

func TestIndexDocument_DimensionMismatch(t *testing.T) {
	store := setupStore(t)
	emb := newMockEmbedder()
	emb.dimension = 8
	idx := New(store, emb, &Config{Logger: logging.Discard()})

	_, err := idx.IndexDocument(context.Background(), types.Document{OwnerID: 1, ID: 1}, ingestChunks(1, "x"))
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestIndexDocument_Validation(t *testing.T) {
	store := setupStore(t)
	emb := newMockEmbedder()
	idx := New(store, emb, &Config{Logger: logging.Discard()})
	ctx := context.Background()

	tests := []struct {
		name   string
		doc    types.Document
		chunks []types.IngestChunk
		want   error
	}{
		{"no owner", types.Document{ID: 1}, ingestChunks(1, "x"), types.ErrInvalidOwner},
		{"no document", types.Document{OwnerID: 1}, ingestChunks(1, "x"), types.ErrInvalidDocument},
		{"blank text", types.Document{OwnerID: 1, ID: 1}, []types.IngestChunk{{Text: "ok"}, {Text: "  "}}, types.ErrEmptyChunkText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := idx.IndexDocument(ctx, tt.doc, tt.chunks)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, emb.calls())
}

func TestIndexDocument_EmptyChunkListClearsDocument(t *testing.T) {
	store := setupStore(t)
	emb := newMockEmbedder()
	idx := New(store, emb, &Config{Logger: logging.Discard()})
	ctx := context.Background()
	doc := types.Document{OwnerID: 1, ID: 3}

	_, err := idx.IndexDocument(ctx, doc, ingestChunks(2, "x"))
	require.NoError(t, err)
	stats, err := idx.IndexDocument(ctx, doc, nil)
	require.NoError(t, err)
	assert.Zero(t, stats.ChunksStored)

	count, err := store.CountByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndexDocument_Busy(t *testing.T) {
	store := setupStore(t)
	idx := New(store, newMockEmbedder(), &Config{Logger: logging.Discard()})
	require.True(t, idx.locks.TryAcquire(5))

	_, err := idx.IndexDocument(context.Background(), types.Document{OwnerID: 1, ID: 5}, ingestChunks(1, "x"))
	assert.True(t, errors.Is(err, ErrDocumentBusy))

	idx.locks.Release(5)
	_, err = idx.IndexDocument(context.Background(), types.Document{OwnerID: 1, ID: 5}, ingestChunks(1, "x"))
	assert.NoError(t, err)
}

func TestNew_Defaults(t *testing.T) {
	idx := New(setupStore(t), newMockEmbedder(), nil)
	assert.Equal(t, embedder.DefaultBatchSize, idx.batchSize)
	assert.Positive(t, idx.workers)

	idx = New(setupStore(t), newMockEmbedder(), &Config{BatchSize: embedder.MaxBatchSize + 1})
	assert.Equal(t, embedder.DefaultBatchSize, idx.batchSize)
}

func TestDocumentLocks(t *testing.T) {
	l := NewDocumentLocks()
	assert.True(t, l.TryAcquire(1))
	assert.False(t, l.TryAcquire(1))
	assert.True(t, l.TryAcquire(2))
	assert.Equal(t, 2, l.Held())

	l.Release(1)
	assert.True(t, l.TryAcquire(1))
}

func TestDocumentLocks_Concurrent(t *testing.T) {
	l := NewDocumentLocks()
	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryAcquire(7) {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
}
