package searcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/dshills/docrecall/internal/storage"
	"github.com/dshills/docrecall/pkg/types"
)

// VectorSearcher runs owner-scoped semantic search.
type VectorSearcher struct {
	store storage.Storage
	opts  options
}

// NewVectorSearcher creates a VectorSearcher over store.
func NewVectorSearcher(store storage.Storage, opts ...Option) *VectorSearcher {
	return &VectorSearcher{store: store, opts: buildOptions(opts)}
}

// Search returns at most k chunks of ownerID with similarity >= threshold,
// ordered by similarity plus recency boost.
func (v *VectorSearcher) Search(ctx context.Context, ownerID int64, vector []float32, k int, threshold float64) ([]*types.ScoredChunk, error) {
	if k <= 0 {
		return []*types.ScoredChunk{}, nil
	}
	if dim := v.store.Dimension(); dim > 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d values, store expects %d",
			types.ErrDimensionMismatch, len(vector), dim)
	}

	hits, err := v.store.SearchVector(ctx, ownerID, vector, overfetch(k, v.opts.maxOverfetch))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	now := v.opts.now()
	results := make([]*types.ScoredChunk, 0, len(hits))
	best := -1.0
	for _, h := range hits {
		if h.Similarity > best {
			best = h.Similarity
		}
		if h.Similarity < threshold {
			continue
		}
		results = append(results, &types.ScoredChunk{
			Chunk:         h.Chunk,
			Similarity:    h.Similarity,
			FoundInVector: true,
			FinalScore:    h.Similarity + vectorRecencyBoost(now, h.Chunk.UploadedAt),
		})
	}

	if len(hits) > 0 && best < v.opts.lowSimilarityWarning {
		v.opts.logger.WarnContext(ctx, "best vector similarity below warning level",
			"owner_id", ownerID,
			"best_similarity", best,
			"warning_level", v.opts.lowSimilarityWarning)
		v.opts.metrics.LowSimilarity()
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// overfetch returns how many rows to request for a top-k query.
func overfetch(k, ceiling int) int {
	n := 3 * k
	if ceiling > 0 && n > ceiling {
		n = ceiling
	}
	if n < k {
		n = k
	}
	return n
}
