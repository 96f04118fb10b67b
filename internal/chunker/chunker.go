package chunker

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/docrecall/internal/enrich"
	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/pkg/types"
)

const (
	// MinParagraphLength is the shortest paragraph kept as a chunk
	MinParagraphLength = 20

	// SourceSummary is the metadata source of summary chunks
	SourceSummary = "summary"
)

// leadingDate matches a [dd.mm.yyyy] or [dd/mm/yyyy] prefix
var leadingDate = regexp.MustCompile(`^\[(\d{2})[./](\d{2})[./](\d{4})\]`)

// Paragraph is one chunk-sized piece of a summary
type Paragraph struct {
	Text       string
	Index      int
	DateInside string // YYYY-MM-DD, or "" when the paragraph has no date
	TokenCount int
}

// Chunker splits document summaries into paragraphs and annotates them with
// keywords.
type Chunker struct {
	// MinLength overrides MinParagraphLength when positive
	MinLength int

	// DropLast discards the final paragraph when there is more than one
	DropLast bool

	extractor enrich.KeywordExtractor
	logger    *slog.Logger
}

// New creates a Chunker. A nil extractor leaves chunks without keywords.
func New(extractor enrich.KeywordExtractor, logger *slog.Logger) *Chunker {
	return &Chunker{extractor: extractor, logger: logging.OrDefault(logger)}
}

// Split splits summary into paragraphs on blank lines, skipping short ones
func (c *Chunker) Split(summary string) []Paragraph {
	minLen := c.MinLength
	if minLen <= 0 {
		minLen = MinParagraphLength
	}

	raw := strings.Split(strings.ReplaceAll(strings.TrimSpace(summary), "\r\n", "\n"), "\n\n")
	paragraphs := make([]Paragraph, 0, len(raw))
	for _, p := range raw {
		text := strings.TrimSpace(p)
		if utf8.RuneCountInString(text) < minLen {
			continue
		}
		paragraphs = append(paragraphs, Paragraph{
			Text:       text,
			Index:      len(paragraphs),
			DateInside: ExtractDate(text),
			TokenCount: types.EstimateTokens(text),
		})
	}

	if c.DropLast && len(paragraphs) > 1 {
		paragraphs = paragraphs[:len(paragraphs)-1]
	}
	return paragraphs
}

// Chunk splits summary and extracts keywords for each paragraph. Keyword
// extraction failures leave that paragraph without keywords.
func (c *Chunker) Chunk(ctx context.Context, summary string) ([]types.IngestChunk, error) {
	paragraphs := c.Split(summary)
	chunks := make([]types.IngestChunk, 0, len(paragraphs))
	for _, p := range paragraphs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = append(chunks, types.IngestChunk{
			Text:     p.Text,
			Keywords: c.keywords(ctx, p),
			Metadata: map[string]any{
				types.MetaConfirmed:  1,
				types.MetaSource:     SourceSummary,
				types.MetaTokenCount: p.TokenCount,
				types.MetaDateInside: p.DateInside,
			},
		})
	}
	return chunks, nil
}

func (c *Chunker) keywords(ctx context.Context, p Paragraph) []string {
	if c.extractor == nil {
		return nil
	}
	kws, err := c.extractor.Extract(ctx, p.Text)
	if err != nil {
		c.logger.WarnContext(ctx, "keyword extraction failed", "paragraph", p.Index, "err", err)
		return nil
	}
	return kws
}

// ExtractDate returns the leading [dd.mm.yyyy] date of text as YYYY-MM-DD,
// or "" if there is none or it is not a real date.
func ExtractDate(text string) string {
	m := leadingDate.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ""
	}
	d, err := time.Parse("02.01.2006", m[1]+"."+m[2]+"."+m[3])
	if err != nil {
		return ""
	}
	return d.Format("2006-01-02")
}
