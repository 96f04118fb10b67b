package retrieval

import (
	"fmt"
	"time"
)

// Config holds the tunables of the retrieval path.
type Config struct {
	SimilarityThreshold float64
	BoostFactor         float64
	VectorK             int
	KeywordK            int
	ResultLimit         int
	SmallCorpusLimit    int

	MaxOverfetch         int
	LowSimilarityWarning float64
	MaxKeywordCandidates int // 0 = no cap

	EnrichTimeout  time.Duration
	ExtractTimeout time.Duration
	EmbedTimeout   time.Duration
	SearchTimeout  time.Duration
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold:  0.3,
		BoostFactor:          1.8,
		VectorK:              10,
		KeywordK:             5,
		ResultLimit:          5,
		SmallCorpusLimit:     4,
		MaxOverfetch:         20,
		LowSimilarityWarning: 0.6,
		EnrichTimeout:        10 * time.Second,
		ExtractTimeout:       10 * time.Second,
		EmbedTimeout:         15 * time.Second,
		SearchTimeout:        10 * time.Second,
	}
}

// Validate rejects values the retrieval path cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1:
		return fmt.Errorf("similarity threshold %v outside [-1, 1]", c.SimilarityThreshold)
	case c.BoostFactor <= 0:
		return fmt.Errorf("boost factor must be positive, got %v", c.BoostFactor)
	case c.VectorK <= 0 || c.KeywordK <= 0:
		return fmt.Errorf("vector k and keyword k must be positive")
	case c.ResultLimit <= 0:
		return fmt.Errorf("result limit must be positive, got %d", c.ResultLimit)
	case c.MaxOverfetch < 0 || c.MaxKeywordCandidates < 0:
		return fmt.Errorf("overfetch and keyword candidate caps cannot be negative")
	case c.SmallCorpusLimit < 0:
		return fmt.Errorf("small corpus limit cannot be negative")
	case c.EnrichTimeout <= 0 || c.ExtractTimeout <= 0 || c.EmbedTimeout <= 0 || c.SearchTimeout <= 0:
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}
