package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/docrecall/internal/chunker"
	"github.com/dshills/docrecall/internal/embedder"
	"github.com/dshills/docrecall/internal/enrich"
	"github.com/dshills/docrecall/internal/metrics"
	"github.com/dshills/docrecall/internal/retrieval"
	"github.com/dshills/docrecall/internal/storage"
)

// app is the wired engine used by every command.
type app struct {
	service  *retrieval.Service
	chunker  *chunker.Chunker
	registry *prometheus.Registry

	store    storage.Storage
	embedder embedder.Embedder
}

// openApp wires embedder, store, enrichment and metrics into a retrieval
// service. Callers must Close the result.
func (st *state) openApp(ctx context.Context) (*app, error) {
	log := st.logger

	emb, err := embedder.New(st.cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	log.Info("embedder initialised",
		slog.String("provider", emb.Provider()),
		slog.String("model", emb.Model()),
		slog.Int("dimension", emb.Dimension()))

	store, err := storage.Open(ctx, st.cfg.StorageConfig(), emb.Dimension())
	if err != nil {
		_ = emb.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	enricher, extractor, err := enrich.New(st.cfg.EnrichConfig())
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, fmt.Errorf("failed to initialise enrichment: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc, err := retrieval.New(store, emb, st.cfg.RetrievalConfig(),
		retrieval.WithEnricher(enricher),
		retrieval.WithExtractor(extractor),
		retrieval.WithLogger(log),
		retrieval.WithMetrics(m),
	)
	if err != nil {
		_ = store.Close()
		_ = emb.Close()
		return nil, err
	}

	return &app{
		service:  svc,
		chunker:  chunker.New(extractor, log),
		registry: reg,
		store:    store,
		embedder: emb,
	}, nil
}

// Close releases the store and the embedder
func (a *app) Close() error {
	storeErr := a.store.Close()
	embErr := a.embedder.Close()
	if storeErr != nil {
		return storeErr
	}
	return embErr
}
