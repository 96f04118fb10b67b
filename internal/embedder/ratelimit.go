package embedder

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited wraps an Embedder with a token-bucket limit on outgoing calls.
// One token is spent per GenerateEmbedding or GenerateBatch call that reaches
// the provider. Requests fully answered by the shared cache spend none.
type RateLimited struct {
	Embedder
	limiter *rate.Limiter
	cache   *Cache
}

// NewRateLimited limits e to rps calls per second with the given burst.
// cache should be the one e fills; it may be nil. A non-positive rps returns
// e unwrapped.
func NewRateLimited(e Embedder, rps float64, burst int, cache *Cache) Embedder {
	if rps <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		Embedder: e,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		cache:    cache,
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (r *RateLimited) cached(model, text string) (*Embedding, bool) {
	if model == "" {
		model = r.Model()
	}
	return r.cache.Get(cacheKey(model, PrepareText(text)))
}

func (r *RateLimited) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if emb, ok := r.cached(req.Model, req.Text); ok {
		return emb, nil
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.Embedder.GenerateEmbedding(ctx, req)
}

func (r *RateLimited) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if len(req.Texts) > 0 {
		hits := make([]*Embedding, 0, len(req.Texts))
		for _, text := range req.Texts {
			emb, ok := r.cached(req.Model, text)
			if !ok {
				break
			}
			hits = append(hits, emb)
		}
		if len(hits) == len(req.Texts) {
			model := req.Model
			if model == "" {
				model = r.Model()
			}
			return &BatchEmbeddingResponse{Embeddings: hits, Provider: r.Provider(), Model: model}, nil
		}
	}
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.Embedder.GenerateBatch(ctx, req)
}
