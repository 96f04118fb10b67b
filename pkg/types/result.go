package types

import "strings"

// Strategy names the path Retrieve took to build a result
type Strategy string

const (
	StrategyNoDocuments Strategy = "no_documents"
	StrategySmallCorpus Strategy = "small_corpus"
	StrategyHybrid      Strategy = "hybrid"
)

// ResultSeparator joins chunk texts in a retrieval result
const ResultSeparator = "\n\n"

// ScoredChunk carries a chunk through the search and fusion passes.
type ScoredChunk struct {
	Chunk *Chunk

	// Vector pass
	Similarity  float64
	VectorScore float64

	// Keyword pass
	AdvancedScore   float64
	Rank            float64 // same value as AdvancedScore
	ExactMatchCount int
	MatchesCount    int // same value as ExactMatchCount
	KeywordScore    float64

	// Fusion
	FoundInVector   bool
	FoundInKeywords bool
	FinalScore      float64
}

// Text returns the chunk text, or "" for an empty entry
func (s *ScoredChunk) Text() string {
	if s == nil || s.Chunk == nil {
		return ""
	}
	return s.Chunk.Text
}

// IsHybrid reports whether both passes found the chunk
func (s *ScoredChunk) IsHybrid() bool {
	return s.FoundInVector && s.FoundInKeywords
}

// SetAdvancedScore sets the advanced score and its Rank alias
func (s *ScoredChunk) SetAdvancedScore(v float64) {
	s.AdvancedScore = v
	s.Rank = v
}

// SetExactMatchCount sets the match count and its MatchesCount alias
func (s *ScoredChunk) SetExactMatchCount(n int) {
	s.ExactMatchCount = n
	s.MatchesCount = n
}

// RetrievalResult is the context block returned to callers of Retrieve.
type RetrievalResult struct {
	Text       string
	ChunkCount int
	Strategy   Strategy
}

// NoDocuments reports whether the result is the no-documents sentinel
func (r *RetrievalResult) NoDocuments() bool {
	return r.Strategy == StrategyNoDocuments
}

// NewRetrievalResult joins texts into a result
func NewRetrievalResult(texts []string, strategy Strategy) *RetrievalResult {
	return &RetrievalResult{
		Text:       strings.Join(texts, ResultSeparator),
		ChunkCount: len(texts),
		Strategy:   strategy,
	}
}
