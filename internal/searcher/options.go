package searcher

import (
	"log/slog"
	"time"

	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/metrics"
)

// Defaults used when the caller does not override them.
const (
	DefaultMaxOverfetch         = 20
	DefaultLowSimilarityWarning = 0.6
	DefaultBoostFactor          = 1.8
)

type options struct {
	logger               *slog.Logger
	metrics              *metrics.Metrics
	now                  func() time.Time
	maxOverfetch         int
	lowSimilarityWarning float64
	maxKeywordCandidates int
}

// Option configures a searcher.
type Option func(*options)

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = logging.OrDefault(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides time.Now for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxOverfetch caps how many rows the vector pass pulls before filtering.
func WithMaxOverfetch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOverfetch = n
		}
	}
}

// WithLowSimilarityWarning sets the best-similarity level under which a
// vector pass is logged as likely irrelevant.
func WithLowSimilarityWarning(v float64) Option {
	return func(o *options) { o.lowSimilarityWarning = v }
}

// WithMaxKeywordCandidates caps the candidate rows the keyword pass scores.
// Zero means no cap.
func WithMaxKeywordCandidates(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxKeywordCandidates = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:               slog.Default(),
		now:                  time.Now,
		maxOverfetch:         DefaultMaxOverfetch,
		lowSimilarityWarning: DefaultLowSimilarityWarning,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

const day = 24 * time.Hour

// age returns how long ago t was, never negative.
func age(now, t time.Time) time.Duration {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

func vectorRecencyBoost(now, uploaded time.Time) float64 {
	a := age(now, uploaded)
	switch {
	case a <= 30*day:
		return 0.1
	case a <= 90*day:
		return 0.05
	default:
		return 0
	}
}

func keywordRecencyBonus(now, uploaded time.Time) float64 {
	a := age(now, uploaded)
	switch {
	case a <= 7*day:
		return 3.0
	case a <= 30*day:
		return 1.5
	case a <= 90*day:
		return 0.5
	default:
		return 0
	}
}
