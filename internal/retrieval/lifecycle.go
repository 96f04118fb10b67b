package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/docrecall/internal/indexer"
	"github.com/dshills/docrecall/internal/storage"
	"github.com/dshills/docrecall/pkg/types"
)

type ingestOptions struct {
	uploadedAt time.Time
}

// IngestOption configures one Ingest call.
type IngestOption func(*ingestOptions)

// WithUploadedAt sets the upload time recorded for the document.
// Recency scoring uses it. Defaults to now.
func WithUploadedAt(t time.Time) IngestOption {
	return func(o *ingestOptions) { o.uploadedAt = t }
}

// Ingest embeds chunks and replaces every stored chunk of documentID.
// Nothing is stored if any chunk fails to embed.
func (s *Service) Ingest(ctx context.Context, ownerID, documentID int64, chunks []types.IngestChunk, opts ...IngestOption) error {
	_, err := s.IngestWithStats(ctx, ownerID, documentID, chunks, opts...)
	return err
}

// IngestWithStats is Ingest returning pipeline statistics.
func (s *Service) IngestWithStats(ctx context.Context, ownerID, documentID int64, chunks []types.IngestChunk, opts ...IngestOption) (*indexer.Statistics, error) {
	o := ingestOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.uploadedAt.IsZero() {
		o.uploadedAt = s.now()
	}
	doc := types.Document{OwnerID: ownerID, ID: documentID, UploadedAt: o.uploadedAt}
	return s.indexer.IndexDocument(ctx, doc, chunks)
}

// DeleteDocument removes every chunk of documentID.
func (s *Service) DeleteDocument(ctx context.Context, documentID int64) error {
	if documentID <= 0 {
		return types.ErrInvalidDocument
	}
	n, err := s.store.DeleteByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete document %d: %w", documentID, err)
	}
	s.metrics.ChunksDeleted("document", n)
	s.logger.InfoContext(ctx, "document deleted", "document_id", documentID, "chunks", n)
	return nil
}

// DeleteOwner removes every chunk of ownerID.
func (s *Service) DeleteOwner(ctx context.Context, ownerID int64) error {
	if ownerID <= 0 {
		return types.ErrInvalidOwner
	}
	n, err := s.store.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete owner %d: %w", ownerID, err)
	}
	s.metrics.ChunksDeleted("owner", n)
	s.logger.InfoContext(ctx, "owner deleted", "owner_id", ownerID, "chunks", n)
	return nil
}

// SetConfirmed sets the confirmed metadata flag on every chunk of documentID.
// Returns the number of chunks updated.
func (s *Service) SetConfirmed(ctx context.Context, documentID int64, confirmed bool) (int64, error) {
	if documentID <= 0 {
		return 0, types.ErrInvalidDocument
	}
	n, err := s.store.SetConfirmed(ctx, documentID, confirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to update document %d: %w", documentID, err)
	}
	return n, nil
}

// Stats describes the store and the embedding setup.
type Stats struct {
	Storage           *storage.Stats
	EmbeddingProvider string
	EmbeddingModel    string
	Dimension         int
}

// Stats reports store statistics.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &Stats{
		Storage:           st,
		EmbeddingProvider: s.embedder.Provider(),
		EmbeddingModel:    s.embedder.Model(),
		Dimension:         s.embedder.Dimension(),
	}, nil
}
