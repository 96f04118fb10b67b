package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/docrecall/internal/embedder"
	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/metrics"
	"github.com/dshills/docrecall/internal/storage"
	"github.com/dshills/docrecall/pkg/types"
)

// ErrDocumentBusy is returned when the same document is already being ingested
var ErrDocumentBusy = errors.New("document ingest already in progress")

// Indexer coordinates the ingest pipeline: embed -> store
type Indexer struct {
	storage  storage.Storage
	embedder embedder.Embedder
	locks    *DocumentLocks
	logger   *slog.Logger
	metrics  *metrics.Metrics

	batchSize int
	workers   int
}

// Config contains configuration for the indexer
type Config struct {
	BatchSize int // Texts per embedding request (default: embedder.DefaultBatchSize)
	Workers   int // Concurrent embedding requests (default: runtime.NumCPU())
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Statistics describes one ingested document
type Statistics struct {
	DocumentID    int64
	ChunksStored  int
	EmbedRequests int
	Duration      time.Duration
}

// New creates a new Indexer instance
func New(store storage.Storage, emb embedder.Embedder, cfg *Config) *Indexer {
	if cfg == nil {
		cfg = &Config{}
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > embedder.MaxBatchSize {
		batchSize = embedder.DefaultBatchSize
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Indexer{
		storage:   store,
		embedder:  emb,
		locks:     NewDocumentLocks(),
		logger:    logging.OrDefault(cfg.Logger),
		metrics:   cfg.Metrics,
		batchSize: batchSize,
		workers:   workers,
	}
}

// IndexDocument embeds chunks and replaces every stored chunk of doc with
// them. Either all chunks are stored or none are.
func (idx *Indexer) IndexDocument(ctx context.Context, doc types.Document, chunks []types.IngestChunk) (*Statistics, error) {
	startTime := time.Now()

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			return nil, fmt.Errorf("chunk %d: %w", i, types.ErrEmptyChunkText)
		}
	}

	if !idx.locks.TryAcquire(doc.ID) {
		return nil, fmt.Errorf("document %d: %w", doc.ID, ErrDocumentBusy)
	}
	defer idx.locks.Release(doc.ID)

	vectors, requests, err := idx.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	inputs := make([]types.ChunkInput, len(chunks))
	for i, c := range chunks {
		inputs[i] = types.ChunkInput{
			Text:      c.Text,
			Embedding: vectors[i],
			Keywords:  types.JoinKeywords(c.Keywords),
			Metadata:  c.Metadata,
		}
	}

	if _, err := idx.storage.InsertChunks(ctx, doc, inputs); err != nil {
		return nil, fmt.Errorf("failed to store document %d: %w", doc.ID, err)
	}
	idx.metrics.ChunksIngested(len(inputs))

	stats := &Statistics{
		DocumentID:    doc.ID,
		ChunksStored:  len(inputs),
		EmbedRequests: requests,
		Duration:      time.Since(startTime),
	}
	idx.logger.InfoContext(ctx, "document ingested",
		"owner_id", doc.OwnerID,
		"document_id", doc.ID,
		"chunks", stats.ChunksStored,
		"duration", stats.Duration)
	return stats, nil
}

// embedAll embeds chunk texts in concurrent batches. Any failed batch
// cancels the rest and fails the whole document.
func (idx *Indexer) embedAll(ctx context.Context, chunks []types.IngestChunk) ([][]float32, int, error) {
	vectors := make([][]float32, len(chunks))
	if len(chunks) == 0 {
		return vectors, 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	requests := 0
	for i := 0; i < len(chunks); i += idx.batchSize {
		end := i + idx.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start := i
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		requests++

		g.Go(func() error {
			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return fmt.Errorf("%w: batch at %d: %w", types.ErrEmbedding, start, err)
			}
			if len(resp.Embeddings) != len(texts) {
				return fmt.Errorf("%w: batch at %d: got %d embeddings for %d texts",
					types.ErrEmbedding, start, len(resp.Embeddings), len(texts))
			}
			for j, emb := range resp.Embeddings {
				if emb == nil || len(emb.Vector) == 0 {
					return fmt.Errorf("%w: chunk %d: empty vector", types.ErrEmbedding, start+j)
				}
				if dim := idx.storage.Dimension(); dim > 0 && len(emb.Vector) != dim {
					return fmt.Errorf("%w: chunk %d has %d values, store expects %d",
						types.ErrDimensionMismatch, start+j, len(emb.Vector), dim)
				}
				vectors[start+j] = emb.Vector
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, requests, err
	}
	return vectors, requests, nil
}
