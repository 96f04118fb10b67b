package types

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Metadata keys written by the ingest pipeline
const (
	MetaConfirmed  = "confirmed"
	MetaSource     = "source"
	MetaTokenCount = "token_count"
	MetaDateInside = "date_inside"
)

// Chunk is one stored fragment of a user's document together with its
// embedding and keyword annotation.
type Chunk struct {
	// Identification
	ID         string // storage id (UUID)
	OwnerID    int64
	DocumentID int64
	ChunkIndex int // position within the document, unique per DocumentID

	// Content
	Text      string
	Embedding []float32
	Keywords  string // lowercase keywords joined with ", "
	Metadata  map[string]any

	// Timestamps
	UploadedAt time.Time // upload time of the source document, drives recency
	CreatedAt  time.Time
}

// TextLength returns the chunk text length in characters.
func (c *Chunk) TextLength() int {
	return utf8.RuneCountInString(c.Text)
}

// Confirmed reports the metadata confirmed flag. Chunks without the flag
// are treated as confirmed.
func (c *Chunk) Confirmed() bool {
	if c.Metadata == nil {
		return true
	}
	switch v := c.Metadata[MetaConfirmed].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case nil:
		return true
	default:
		return true
	}
}

// Document identifies the source document a batch of chunks belongs to.
type Document struct {
	OwnerID    int64
	ID         int64
	UploadedAt time.Time
}

// Validate checks the document reference
func (d Document) Validate() error {
	if d.OwnerID <= 0 {
		return ErrInvalidOwner
	}
	if d.ID <= 0 {
		return ErrInvalidDocument
	}
	return nil
}

// ChunkInput is a chunk as handed to storage: text already embedded.
type ChunkInput struct {
	Text      string
	Embedding []float32
	Keywords  string
	Metadata  map[string]any
}

// IngestChunk is a chunk as supplied by callers of the ingest pipeline,
// before embedding.
type IngestChunk struct {
	Text     string
	Keywords []string
	Metadata map[string]any
}

// JoinKeywords normalizes keywords (trim, lowercase, drop empties) and joins
// them with ", " in their original order.
func JoinKeywords(keywords []string) string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		out = append(out, kw)
	}
	return strings.Join(out, ", ")
}

// EstimateTokens uses the characters/4 heuristic.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}
