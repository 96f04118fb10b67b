package enrich

import (
	"fmt"
	"strings"
)

// Providers
const (
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config selects the enrichment backend
type Config struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	EnrichPrompt  string
	KeywordPrompt string
}

// New returns the enricher and extractor for cfg. Provider "none" (or empty)
// yields the offline Passthrough and SimpleExtractor.
func New(cfg Config) (QueryEnricher, KeywordExtractor, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return Passthrough{}, NewSimpleExtractor(), nil
	case ProviderOpenAI:
		client, err := NewChatClient(ChatConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: 0.2,
		})
		if err != nil {
			return nil, nil, err
		}
		return NewLLMEnricher(client, cfg.EnrichPrompt), NewLLMExtractor(client, cfg.KeywordPrompt), nil
	default:
		return nil, nil, fmt.Errorf("unknown enrichment provider %q", cfg.Provider)
	}
}
