// Package config loads docrecall configuration with a layered precedence:
// defaults → YAML file → environment variables. A .env file in the working
// directory is loaded into the environment first.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DOCRECALL_CONFIG environment variable
//  3. ~/.docrecall/config.yaml
//  4. ./docrecall.yaml
//
// If no file is found the defaults and environment are used.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dshills/docrecall/internal/embedder"
	"github.com/dshills/docrecall/internal/enrich"
	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/retrieval"
	"github.com/dshills/docrecall/internal/storage"
)

// EnvConfigPath names the config file when no --config flag is given.
const EnvConfigPath = "DOCRECALL_CONFIG"

// Config is the top-level configuration.
type Config struct {
	// Storage selects and configures the chunk store.
	Storage StorageConfig `yaml:"storage"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// LLM configures query enrichment and keyword extraction.
	LLM LLMConfig `yaml:"llm"`

	// Retrieval holds the ranking tunables.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig holds chunk store settings.
type StorageConfig struct {
	// Driver is sqlite or postgres.
	Driver string `yaml:"driver"`
	// SQLitePath is the database file; empty means in-memory.
	SQLitePath string `yaml:"sqlite_path"`
	// PostgresDSN is the PostgreSQL connection string. Prefer env var DOCRECALL_POSTGRES_DSN.
	PostgresDSN string `yaml:"postgres_dsn"`
	// MaxOpenConns bounds the PostgreSQL pool.
	MaxOpenConns int `yaml:"max_open_conns"`
	// MaxIdleConns bounds idle PostgreSQL connections.
	MaxIdleConns int `yaml:"max_idle_conns"`
	// ConnMaxLifetime recycles PostgreSQL connections.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is openai, jina or local. Empty picks one from the API keys present.
	Provider string `yaml:"provider"`
	// APIKey is the provider key. Prefer env vars OPENAI_API_KEY / JINA_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model overrides the provider's default model.
	Model string `yaml:"model"`
	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`
	// Dimension overrides the vector size.
	Dimension int `yaml:"dimension"`
	// CacheSize is the number of cached embeddings; 0 disables the cache.
	CacheSize int `yaml:"cache_size"`
	// RequestsPerSecond limits provider calls; 0 disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst is the rate limiter burst.
	Burst int `yaml:"burst"`
}

// LLMConfig holds chat model settings for enrichment and keyword extraction.
type LLMConfig struct {
	// Provider is openai or none.
	Provider string `yaml:"provider"`
	// APIKey is the chat API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the chat model name.
	Model string `yaml:"model"`
	// BaseURL overrides the chat endpoint.
	BaseURL string `yaml:"base_url"`
}

// RetrievalConfig holds ranking tunables and timeouts.
type RetrievalConfig struct {
	SimilarityThreshold  float64       `yaml:"similarity_threshold"`
	BoostFactor          float64       `yaml:"boost_factor"`
	VectorK              int           `yaml:"vector_k"`
	KeywordK             int           `yaml:"keyword_k"`
	ResultLimit          int           `yaml:"result_limit"`
	SmallCorpusLimit     int           `yaml:"small_corpus_limit"`
	MaxOverfetch         int           `yaml:"max_overfetch"`
	LowSimilarityWarning float64       `yaml:"low_similarity_warning"`
	MaxKeywordCandidates int           `yaml:"max_keyword_candidates"`
	EnrichTimeout        time.Duration `yaml:"enrich_timeout"`
	ExtractTimeout       time.Duration `yaml:"extract_timeout"`
	EmbedTimeout         time.Duration `yaml:"embed_timeout"`
	SearchTimeout        time.Duration `yaml:"search_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	// Addr is the /metrics listen address; empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rc := retrieval.DefaultConfig()
	return &Config{
		Storage: StorageConfig{
			Driver:          storage.DriverSQLite,
			SQLitePath:      defaultSQLitePath(),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		LLM: LLMConfig{
			Provider: enrich.ProviderNone,
		},
		Retrieval: RetrievalConfig{
			SimilarityThreshold:  rc.SimilarityThreshold,
			BoostFactor:          rc.BoostFactor,
			VectorK:              rc.VectorK,
			KeywordK:             rc.KeywordK,
			ResultLimit:          rc.ResultLimit,
			SmallCorpusLimit:     rc.SmallCorpusLimit,
			MaxOverfetch:         rc.MaxOverfetch,
			LowSimilarityWarning: rc.LowSimilarityWarning,
			MaxKeywordCandidates: rc.MaxKeywordCandidates,
			EnrichTimeout:        rc.EnrichTimeout,
			ExtractTimeout:       rc.ExtractTimeout,
			EmbedTimeout:         rc.EmbedTimeout,
			SearchTimeout:        rc.SearchTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "docrecall.db"
	}
	return filepath.Join(home, ".docrecall", "docrecall.db")
}

// Load builds the configuration. It returns the YAML path that was read, or
// "" when none was found.
func Load(explicitPath string, log *slog.Logger) (*Config, string, error) {
	log = logging.OrDefault(log)

	// silently ignore a missing .env
	_ = godotenv.Load()

	cfg := Default()

	path := resolveConfigPath(explicitPath)
	if explicitPath != "" && path == "" {
		return nil, "", fmt.Errorf("config: file %s not found", explicitPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
		log.Info("config: loaded YAML config", slog.String("path", path))
	} else {
		log.Debug("config: no YAML config file found, using defaults and env vars")
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// envMapping maps environment variables onto config fields.
var envMapping = []struct {
	envKey string
	apply  func(*Config, string) error
}{
	{"DOCRECALL_STORAGE_DRIVER", func(c *Config, v string) error { c.Storage.Driver = v; return nil }},
	{"DOCRECALL_SQLITE_PATH", func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil }},
	{"DOCRECALL_POSTGRES_DSN", func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil }},
	{"DOCRECALL_MAX_OPEN_CONNS", func(c *Config, v string) error { return setInt(&c.Storage.MaxOpenConns, v) }},
	{embedder.EnvProvider, func(c *Config, v string) error { c.Embedding.Provider = v; return nil }},
	{"DOCRECALL_EMBEDDING_MODEL", func(c *Config, v string) error { c.Embedding.Model = v; return nil }},
	{"DOCRECALL_EMBEDDING_DIMENSION", func(c *Config, v string) error { return setInt(&c.Embedding.Dimension, v) }},
	{"DOCRECALL_EMBEDDING_RPS", func(c *Config, v string) error { return setFloat(&c.Embedding.RequestsPerSecond, v) }},
	{"DOCRECALL_LLM_PROVIDER", func(c *Config, v string) error { c.LLM.Provider = v; return nil }},
	{"DOCRECALL_LLM_MODEL", func(c *Config, v string) error { c.LLM.Model = v; return nil }},
	{"DOCRECALL_SIMILARITY_THRESHOLD", func(c *Config, v string) error { return setFloat(&c.Retrieval.SimilarityThreshold, v) }},
	{"DOCRECALL_BOOST_FACTOR", func(c *Config, v string) error { return setFloat(&c.Retrieval.BoostFactor, v) }},
	{"DOCRECALL_RESULT_LIMIT", func(c *Config, v string) error { return setInt(&c.Retrieval.ResultLimit, v) }},
	{"DOCRECALL_METRICS_ADDR", func(c *Config, v string) error { c.Metrics.Addr = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
	{"LOG_FORMAT", func(c *Config, v string) error { c.Logging.Format = v; return nil }},
}

// applyEnv overrides fields with every non-empty mapped env var.
func (c *Config) applyEnv() error {
	for _, m := range envMapping {
		v := strings.TrimSpace(os.Getenv(m.envKey))
		if v == "" {
			continue
		}
		if err := m.apply(c, v); err != nil {
			return fmt.Errorf("config: %s: %w", m.envKey, err)
		}
	}

	// The LLM shares the OpenAI key unless one is configured.
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv(embedder.EnvOpenAIAPIKey)
	}
	return nil
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Storage.Driver) {
	case storage.DriverSQLite:
	case storage.DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage: postgres driver requires postgres_dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown driver %q", c.Storage.Driver))
	}
	if c.Storage.MaxOpenConns < 0 || c.Storage.MaxIdleConns < 0 {
		errs = append(errs, errors.New("storage: connection limits cannot be negative"))
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("embedding: unknown provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 0 || c.Embedding.CacheSize < 0 || c.Embedding.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("embedding: dimension, cache size and rate cannot be negative"))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "", enrich.ProviderNone, enrich.ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("llm: unknown provider %q", c.LLM.Provider))
	}

	if err := c.RetrievalConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retrieval: %w", err))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// StorageConfig converts to the storage factory config.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:          strings.ToLower(c.Storage.Driver),
		SQLitePath:      c.Storage.SQLitePath,
		PostgresDSN:     c.Storage.PostgresDSN,
		MaxOpenConns:    c.Storage.MaxOpenConns,
		MaxIdleConns:    c.Storage.MaxIdleConns,
		ConnMaxLifetime: c.Storage.ConnMaxLifetime,
	}
}

// EmbedderConfig converts to the embedder factory config. An empty provider
// is resolved from the environment.
func (c *Config) EmbedderConfig() embedder.Config {
	provider := strings.ToLower(c.Embedding.Provider)
	if provider == "" {
		provider = embedder.DetectProvider()
	}
	return embedder.Config{
		Provider:          provider,
		APIKey:            c.Embedding.APIKey,
		Model:             c.Embedding.Model,
		BaseURL:           c.Embedding.BaseURL,
		Dimension:         c.Embedding.Dimension,
		CacheSize:         c.Embedding.CacheSize,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
		Burst:             c.Embedding.Burst,
	}
}

// EnrichConfig converts to the enrich factory config.
func (c *Config) EnrichConfig() enrich.Config {
	return enrich.Config{
		Provider: strings.ToLower(c.LLM.Provider),
		APIKey:   c.LLM.APIKey,
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
	}
}

// RetrievalConfig converts to the retrieval service config.
func (c *Config) RetrievalConfig() retrieval.Config {
	r := c.Retrieval
	return retrieval.Config{
		SimilarityThreshold:  r.SimilarityThreshold,
		BoostFactor:          r.BoostFactor,
		VectorK:              r.VectorK,
		KeywordK:             r.KeywordK,
		ResultLimit:          r.ResultLimit,
		SmallCorpusLimit:     r.SmallCorpusLimit,
		MaxOverfetch:         r.MaxOverfetch,
		LowSimilarityWarning: r.LowSimilarityWarning,
		MaxKeywordCandidates: r.MaxKeywordCandidates,
		EnrichTimeout:        r.EnrichTimeout,
		ExtractTimeout:       r.ExtractTimeout,
		EmbedTimeout:         r.EmbedTimeout,
		SearchTimeout:        r.SearchTimeout,
	}
}

// LoggingOptions converts to logging options.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.Logging.Level, Format: c.Logging.Format}
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".docrecall", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("docrecall.yaml"); err == nil {
		return "docrecall.yaml"
	}

	return ""
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}
