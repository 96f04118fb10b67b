// Package enrich provides the language-model collaborators used around
// retrieval: a QueryEnricher that rewrites a question into a richer search
// query, and a KeywordExtractor that pulls search terms out of text.
//
// Both are optional in the sense that callers treat their failures as soft:
// retrieval falls back to the raw question and to an empty keyword list.
package enrich

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// QueryEnricher rewrites a user question into an expanded search query
type QueryEnricher interface {
	Enrich(ctx context.Context, question string) (string, error)
}

// KeywordExtractor returns lowercase search terms found in text
type KeywordExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// EnricherFunc adapts a function to QueryEnricher
type EnricherFunc func(ctx context.Context, question string) (string, error)

func (f EnricherFunc) Enrich(ctx context.Context, question string) (string, error) {
	return f(ctx, question)
}

// ExtractorFunc adapts a function to KeywordExtractor
type ExtractorFunc func(ctx context.Context, text string) ([]string, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}

// Passthrough returns the question unchanged
type Passthrough struct{}

func (Passthrough) Enrich(_ context.Context, question string) (string, error) {
	return question, nil
}

// ParseKeywords turns a comma-separated model reply into keywords: each term
// is trimmed and lowercased, and terms shorter than two characters are
// dropped. Order is kept; duplicates are removed.
func ParseKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		term := strings.ToLower(strings.TrimSpace(p))
		term = strings.Trim(term, `"'.`)
		if utf8.RuneCountInString(term) <= 1 {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

// SimpleExtractor picks distinct words of at least MinLength characters that
// are not stop words. It needs no network and serves as the offline
// extractor.
type SimpleExtractor struct {
	MinLength int
	MaxTerms  int
}

// NewSimpleExtractor returns an extractor with the default limits
func NewSimpleExtractor() *SimpleExtractor {
	return &SimpleExtractor{MinLength: 3, MaxTerms: 8}
}

func (s *SimpleExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	minLen := s.MinLength
	if minLen <= 0 {
		minLen = 3
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "-")
		if utf8.RuneCountInString(w) < minLen {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if s.MaxTerms > 0 && len(out) == s.MaxTerms {
			break
		}
	}
	return out, nil
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "his": {}, "how": {}, "its": {},
	"may": {}, "new": {}, "now": {}, "old": {}, "see": {}, "two": {}, "who": {},
	"did": {}, "does": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"why": {}, "with": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"from": {}, "into": {}, "about": {}, "there": {}, "their": {}, "them": {},
	"they": {}, "then": {}, "than": {}, "were": {}, "will": {}, "would": {},
	"should": {}, "could": {}, "your": {}, "been": {}, "being": {}, "some": {},
	"such": {}, "only": {}, "also": {}, "just": {}, "more": {}, "most": {},
	"other": {}, "over": {}, "very": {}, "say": {}, "said": {}, "tell": {},
	"show": {}, "get": {}, "got": {}, "let": {}, "please": {}, "my": {},
}
