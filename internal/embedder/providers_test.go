package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrecall/internal/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

// embeddingServer answers with one vector per input; the vector's first
// value is the input length so tests can check ordering.
func embeddingServer(t *testing.T, calls *int32, reverse bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			data[i] = item{Embedding: []float32{float32(len(text)), 1, 0}, Index: i}
		}
		if reverse {
			for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
				data[i], data[j] = data[j], data[i]
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"model": req.Model, "data": data})
	}))
}

func TestOpenAIProvider_Batch(t *testing.T) {
	var calls int32
	server := embeddingServer(t, &calls, true)
	defer server.Close()

	p, err := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Cache: NewCache(10), Retry: fastRetry()})
	require.NoError(t, err)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "bbb", "cc"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, float32(1), resp.Embeddings[0].Vector[0])
	assert.Equal(t, float32(3), resp.Embeddings[1].Vector[0])
	assert.Equal(t, float32(2), resp.Embeddings[2].Vector[0])
	assert.Equal(t, ProviderOpenAI, resp.Provider)
	assert.Equal(t, DefaultOpenAIModel, resp.Model)

	// Second call is served from cache
	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "bbb"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIProvider_PreparesText(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seen = req.Input
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{1}, "index": 0}},
		})
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "first\nsecond"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first second"}, seen)
}

func TestOpenAIProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{0.5, 0.5}, "index": 0}},
		})
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, emb.Vector)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOpenAIProvider_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIProvider_CustomDimensionSent(t *testing.T) {
	var got int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = req.Dimensions
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": make([]float32, 256), "index": 0}},
		})
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(ProviderOptions{APIKey: "test-key", BaseURL: server.URL, Dimension: 256, Retry: fastRetry()})
	require.NoError(t, err)
	assert.Equal(t, 256, p.Dimension())

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 256, got)
}

func TestHTTPProvider_Validation(t *testing.T) {
	_, err := NewOpenAIProvider(ProviderOptions{})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	p, err := NewJinaProvider(ProviderOptions{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderJina, p.Provider())
	assert.Equal(t, DefaultJinaModel, p.Model())
	assert.Equal(t, JinaDimension, p.Dimension())

	texts := make([]string, MaxBatchSize+1)
	for i := range texts {
		texts[i] = "x"
	}
	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: texts})
	assert.ErrorIs(t, err, ErrBatchTooLarge)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: ""})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.NoError(t, p.Close())
}

func TestLocalProvider(t *testing.T) {
	p, err := NewLocalProvider(64, NewCache(10))
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "invoice tax deadline"})
	require.NoError(t, err)
	assert.Len(t, a.Vector, 64)
	assert.Equal(t, 64, p.Dimension())

	again, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "invoice tax deadline"})
	require.NoError(t, err)
	assert.Equal(t, a.Vector, again.Vector, "deterministic")

	similar, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "Tax invoice"})
	require.NoError(t, err)
	unrelated, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "garden flowers bloom"})
	require.NoError(t, err)

	assert.Greater(t, dot(a.Vector, similar.Vector), dot(a.Vector, unrelated.Vector))

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"one", "two"}})
	require.NoError(t, err)
	assert.Len(t, resp.Embeddings, 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.GenerateEmbedding(cancelled, EmbeddingRequest{Text: "uncached text"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalProvider_DefaultDimension(t *testing.T) {
	p, err := NewLocalProvider(0, nil)
	require.NoError(t, err)
	assert.Equal(t, LocalDimension, p.Dimension())
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
