package searcher

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/docrecall/internal/storage"
	"github.com/dshills/docrecall/pkg/types"
)

// KeywordSearcher ranks an owner's chunks by literal keyword matches.
type KeywordSearcher struct {
	store storage.Storage
	opts  options
}

// NewKeywordSearcher creates a KeywordSearcher over store.
func NewKeywordSearcher(store storage.Storage, opts ...Option) *KeywordSearcher {
	return &KeywordSearcher{store: store, opts: buildOptions(opts)}
}

// Search returns at most k chunks of ownerID whose keywords contain at least
// one of keywords, most matches first.
func (s *KeywordSearcher) Search(ctx context.Context, ownerID int64, keywords []string, k int) ([]*types.ScoredChunk, error) {
	terms := NormalizeKeywords(keywords)
	if len(terms) == 0 || k <= 0 {
		return []*types.ScoredChunk{}, nil
	}

	candidates, err := s.store.SearchKeywords(ctx, ownerID, terms, s.opts.maxKeywordCandidates)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	now := s.opts.now()
	results := make([]*types.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		count := CountMatches(c.Keywords, terms)
		if count == 0 {
			continue
		}
		sc := &types.ScoredChunk{Chunk: c, FoundInKeywords: true}
		sc.SetExactMatchCount(count)
		sc.SetAdvancedScore(AdvancedScore(count, len(terms), c.Keywords) + keywordRecencyBonus(now, c.UploadedAt))
		results = append(results, sc)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.ExactMatchCount != b.ExactMatchCount {
			return a.ExactMatchCount > b.ExactMatchCount
		}
		if a.AdvancedScore != b.AdvancedScore {
			return a.AdvancedScore > b.AdvancedScore
		}
		return a.Chunk.UploadedAt.After(b.Chunk.UploadedAt)
	})

	if len(results) > k {
		results = results[:k]
	}
	s.opts.logger.DebugContext(ctx, "keyword search",
		"owner_id", ownerID,
		"keywords", len(terms),
		"candidates", len(candidates),
		"results", len(results))
	return results, nil
}

// NormalizeKeywords trims and lowercases keywords, dropping empties and
// duplicates while keeping first-seen order.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
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

// CountMatches returns how many of the normalized terms occur in the chunk
// keyword string, ignoring case.
func CountMatches(chunkKeywords string, terms []string) int {
	haystack := strings.ToLower(chunkKeywords)
	n := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			n++
		}
	}
	return n
}

// AdvancedScore is the keyword score before the recency bonus.
func AdvancedScore(count, totalKeywords int, chunkKeywords string) float64 {
	score := float64(count) * 10.0
	if count == totalKeywords {
		score += 5.0
	}
	length := utf8.RuneCountInString(chunkKeywords)
	if length < 1 {
		length = 1
	}
	score += float64(count) / float64(length) * 100 * 2.0
	return score
}
