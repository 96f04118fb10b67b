package searcher

import (
	"sort"

	"github.com/dshills/docrecall/pkg/types"
)

// HybridRanker fuses vector and keyword results.
type HybridRanker struct {
	boost float64
}

// NewHybridRanker returns a ranker using boost for hybrid entries.
// A non-positive boost selects DefaultBoostFactor.
func NewHybridRanker(boost float64) *HybridRanker {
	if boost <= 0 {
		boost = DefaultBoostFactor
	}
	return &HybridRanker{boost: boost}
}

// Boost returns the hybrid boost factor.
func (h *HybridRanker) Boost() float64 { return h.boost }

// Fuse returns the fused chunk texts in rank order.
func (h *HybridRanker) Fuse(vector, keyword []*types.ScoredChunk) []string {
	return Fuse(vector, keyword, h.boost)
}

// FuseScored returns the fused entries with their scores.
func (h *HybridRanker) FuseScored(vector, keyword []*types.ScoredChunk) []*types.ScoredChunk {
	return FuseScored(vector, keyword, h.boost)
}

// Fuse merges both result lists, de-duplicated by chunk text, and returns
// the texts in rank order.
func Fuse(vector, keyword []*types.ScoredChunk, boost float64) []string {
	entries := FuseScored(vector, keyword, boost)
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text()
	}
	return texts
}

// FuseScored merges both result lists keyed by chunk text. Entries found by
// both passes sort first, then by exact match count, then by final score.
// Inputs are not modified.
func FuseScored(vector, keyword []*types.ScoredChunk, boost float64) []*types.ScoredChunk {
	byText := make(map[string]*types.ScoredChunk, len(vector)+len(keyword))
	order := make([]*types.ScoredChunk, 0, len(vector)+len(keyword))

	n := len(vector)
	for i, r := range vector {
		text := r.Text()
		if _, dup := byText[text]; dup {
			continue
		}
		e := &types.ScoredChunk{
			Chunk:         r.Chunk,
			Similarity:    r.Similarity,
			VectorScore:   r.Similarity*10 + positionBonus(n, i, 0.1),
			FoundInVector: true,
		}
		byText[text] = e
		order = append(order, e)
	}

	m := len(keyword)
	for i, r := range keyword {
		text := r.Text()
		e, ok := byText[text]
		if ok && e.FoundInKeywords {
			continue
		}
		if !ok {
			e = &types.ScoredChunk{Chunk: r.Chunk}
			byText[text] = e
			order = append(order, e)
		}
		e.FoundInKeywords = true
		e.SetAdvancedScore(r.AdvancedScore)
		e.SetExactMatchCount(r.ExactMatchCount)
		e.KeywordScore = r.AdvancedScore + positionBonus(m, i, 0.2)
	}

	for _, e := range order {
		e.FinalScore = finalScore(e, boost)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.IsHybrid() != b.IsHybrid() {
			return a.IsHybrid()
		}
		if a.ExactMatchCount != b.ExactMatchCount {
			return a.ExactMatchCount > b.ExactMatchCount
		}
		return a.FinalScore > b.FinalScore
	})
	return order
}

func positionBonus(length, i int, step float64) float64 {
	b := float64(length-i) * step
	if b < 0 {
		return 0
	}
	return b
}

func finalScore(e *types.ScoredChunk, boost float64) float64 {
	switch {
	case e.IsHybrid():
		base := (e.VectorScore + e.KeywordScore) / 2
		return base * boost * (1.0 + float64(e.ExactMatchCount)*0.15)
	case e.FoundInVector:
		return e.VectorScore
	default:
		return e.KeywordScore * (1.0 + float64(e.ExactMatchCount)*0.1)
	}
}
