package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/docrecall/internal/embedder"
	"github.com/dshills/docrecall/internal/enrich"
	"github.com/dshills/docrecall/internal/indexer"
	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/metrics"
	"github.com/dshills/docrecall/internal/searcher"
	"github.com/dshills/docrecall/internal/storage"
	"github.com/dshills/docrecall/pkg/types"
)

// Service is the single entry point for retrieval, ingest and document
// lifecycle calls.
type Service struct {
	store     storage.Storage
	embedder  embedder.Embedder
	enricher  enrich.QueryEnricher
	extractor enrich.KeywordExtractor

	vector  *searcher.VectorSearcher
	keyword *searcher.KeywordSearcher
	ranker  *searcher.HybridRanker
	indexer *indexer.Indexer

	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type serviceOptions struct {
	enricher  enrich.QueryEnricher
	extractor enrich.KeywordExtractor
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	indexer   *indexer.Config
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithEnricher sets the query enricher. Default passes the question through.
func WithEnricher(e enrich.QueryEnricher) Option {
	return func(o *serviceOptions) { o.enricher = e }
}

// WithExtractor sets the keyword extractor. Default is enrich.SimpleExtractor.
func WithExtractor(e enrich.KeywordExtractor) Option {
	return func(o *serviceOptions) { o.extractor = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithIndexerConfig tunes the ingest pipeline.
func WithIndexerConfig(cfg indexer.Config) Option {
	return func(o *serviceOptions) { o.indexer = &cfg }
}

// New builds a Service over store and emb.
func New(store storage.Storage, emb embedder.Embedder, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if emb == nil {
		return nil, errors.New("embedder is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}
	if dim := store.Dimension(); dim > 0 && emb.Dimension() != dim {
		return nil, fmt.Errorf("%w: embedder produces %d values, store expects %d",
			types.ErrDimensionMismatch, emb.Dimension(), dim)
	}

	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.enricher == nil {
		o.enricher = enrich.Passthrough{}
	}
	if o.extractor == nil {
		o.extractor = enrich.NewSimpleExtractor()
	}
	if o.now == nil {
		o.now = time.Now
	}
	logger := logging.OrDefault(o.logger)

	searchOpts := []searcher.Option{
		searcher.WithLogger(logger),
		searcher.WithMetrics(o.metrics),
		searcher.WithClock(o.now),
		searcher.WithMaxOverfetch(cfg.MaxOverfetch),
		searcher.WithLowSimilarityWarning(cfg.LowSimilarityWarning),
		searcher.WithMaxKeywordCandidates(cfg.MaxKeywordCandidates),
	}

	idxCfg := indexer.Config{}
	if o.indexer != nil {
		idxCfg = *o.indexer
	}
	if idxCfg.Logger == nil {
		idxCfg.Logger = logger
	}
	if idxCfg.Metrics == nil {
		idxCfg.Metrics = o.metrics
	}

	return &Service{
		store:     store,
		embedder:  emb,
		enricher:  o.enricher,
		extractor: o.extractor,
		vector:    searcher.NewVectorSearcher(store, searchOpts...),
		keyword:   searcher.NewKeywordSearcher(store, searchOpts...),
		ranker:    searcher.NewHybridRanker(cfg.BoostFactor),
		indexer:   indexer.New(store, emb, &idxCfg),
		cfg:       cfg,
		logger:    logger,
		metrics:   o.metrics,
		now:       o.now,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// Retrieve builds the context block for question from ownerID's chunks.
// A non-positive limit selects the configured default. Owners without
// chunks get the no-documents result and cost no external calls.
func (s *Service) Retrieve(ctx context.Context, ownerID int64, question string, limit int) (result *types.RetrievalResult, err error) {
	if ownerID <= 0 {
		return nil, types.ErrInvalidOwner
	}
	if strings.TrimSpace(question) == "" {
		return nil, types.ErrEmptyQuestion
	}
	if limit <= 0 {
		limit = s.cfg.ResultLimit
	}

	start := time.Now()
	strategy := "none"
	defer func() {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
			var re *RetrievalError
			if errors.As(err, &re) {
				s.metrics.StageError(re.Stage)
			}
			s.logger.ErrorContext(ctx, "retrieval failed", "owner_id", ownerID, "strategy", strategy, "err", err)
		}
		s.metrics.ObserveRetrieval(strategy, outcome, time.Since(start))
	}()

	count, err := s.store.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, stageErr(StageCount, err)
	}

	switch {
	case count == 0:
		strategy = string(types.StrategyNoDocuments)
		return &types.RetrievalResult{Strategy: types.StrategyNoDocuments}, nil

	case count <= int64(s.cfg.SmallCorpusLimit):
		strategy = string(types.StrategySmallCorpus)
		chunks, err := s.store.FetchAllByOwner(ctx, ownerID, s.cfg.SmallCorpusLimit)
		if err != nil {
			return nil, stageErr(StageFetch, err)
		}
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		return types.NewRetrievalResult(texts, types.StrategySmallCorpus), nil
	}

	strategy = string(types.StrategyHybrid)
	texts, err := s.hybrid(ctx, ownerID, question)
	if err != nil {
		return nil, err
	}
	if len(texts) > limit {
		texts = texts[:limit]
	}
	s.logger.DebugContext(ctx, "retrieval complete",
		"owner_id", ownerID,
		"corpus", count,
		"chunks", len(texts))
	return types.NewRetrievalResult(texts, types.StrategyHybrid), nil
}

// hybrid runs the full path: enrich and extract, embed, search both
// passes concurrently and fuse.
func (s *Service) hybrid(ctx context.Context, ownerID int64, question string) ([]string, error) {
	query, keywords := s.prepareQuery(ctx, ownerID, question)

	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	emb, err := s.embedder.GenerateEmbedding(embedCtx, embedder.EmbeddingRequest{Text: query})
	cancel()
	if err != nil {
		if !errors.Is(err, types.ErrEmbedding) {
			err = fmt.Errorf("%w: %w", types.ErrEmbedding, err)
		}
		return nil, stageErr(StageEmbed, err)
	}
	if emb == nil || len(emb.Vector) == 0 {
		return nil, stageErr(StageEmbed, fmt.Errorf("%w: empty query vector", types.ErrEmbedding))
	}

	var vectorResults, keywordResults []*types.ScoredChunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, s.cfg.SearchTimeout)
		defer cancel()
		res, err := s.vector.Search(sctx, ownerID, emb.Vector, s.cfg.VectorK, s.cfg.SimilarityThreshold)
		if err != nil {
			return stageErr(StageVector, err)
		}
		vectorResults = res
		return nil
	})
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, s.cfg.SearchTimeout)
		defer cancel()
		res, err := s.keyword.Search(sctx, ownerID, keywords, s.cfg.KeywordK)
		if err != nil {
			return stageErr(StageKeyword, err)
		}
		keywordResults = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "search passes complete",
		"owner_id", ownerID,
		"vector_results", len(vectorResults),
		"keyword_results", len(keywordResults))
	return s.ranker.Fuse(vectorResults, keywordResults), nil
}

// prepareQuery runs enrichment and keyword extraction concurrently.
// Both fall back instead of failing.
func (s *Service) prepareQuery(ctx context.Context, ownerID int64, question string) (string, []string) {
	query := question
	var keywords []string

	var g errgroup.Group
	g.Go(func() error {
		ectx, cancel := context.WithTimeout(ctx, s.cfg.EnrichTimeout)
		defer cancel()
		enriched, err := s.enricher.Enrich(ectx, question)
		if err == nil && strings.TrimSpace(enriched) == "" {
			err = errors.New("empty enrichment")
		}
		if err != nil {
			s.degraded(ctx, ownerID, metrics.DegradedEnrichment, fmt.Errorf("%w: %w", types.ErrEnrichmentDegraded, err))
			return nil
		}
		query = enriched
		return nil
	})
	g.Go(func() error {
		xctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		defer cancel()
		kws, err := s.extractor.Extract(xctx, question)
		if err != nil {
			s.degraded(ctx, ownerID, metrics.DegradedKeywords, fmt.Errorf("%w: %w", types.ErrKeywordExtractionDegraded, err))
			return nil
		}
		keywords = kws
		return nil
	})
	_ = g.Wait()

	return query, keywords
}

func (s *Service) degraded(ctx context.Context, ownerID int64, kind string, err error) {
	s.metrics.Degraded(kind)
	s.logger.WarnContext(ctx, "retrieval input degraded",
		"owner_id", ownerID,
		"kind", kind,
		"err", err)
}
