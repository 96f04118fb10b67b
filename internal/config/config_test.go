package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docrecall/internal/embedder"
	"github.com/dshills/docrecall/internal/logging"
	"github.com/dshills/docrecall/internal/storage"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{EnvConfigPath, embedder.EnvOpenAIAPIKey, embedder.EnvJinaAPIKey}
	for _, m := range envMapping {
		keys = append(keys, m.envKey)
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("HOME", t.TempDir())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 0.3, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 1.8, cfg.Retrieval.BoostFactor)
	assert.Equal(t, 10, cfg.Retrieval.VectorK)
	assert.Equal(t, 5, cfg.Retrieval.KeywordK)
	assert.Equal(t, 5, cfg.Retrieval.ResultLimit)
	assert.Equal(t, 4, cfg.Retrieval.SmallCorpusLimit)
	assert.Equal(t, 20, cfg.Retrieval.MaxOverfetch)
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, path, err := Load("", logging.Discard())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default().Retrieval, cfg.Retrieval)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, _, err := Load("/nonexistent/docrecall.yaml", logging.Discard())
	assert.Error(t, err)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
storage:
  driver: postgres
  postgres_dsn: postgres://localhost/docrecall
embedding:
  provider: jina
  dimension: 512
llm:
  provider: openai
  model: gpt-4o-mini
retrieval:
  similarity_threshold: 0.4
  boost_factor: 2.0
  search_timeout: 3s
logging:
  level: debug
  format: text
`)
	require.NoError(t, os.WriteFile(cfgPath, content, 0o644))

	t.Setenv("DOCRECALL_BOOST_FACTOR", "1.5")
	t.Setenv(embedder.EnvOpenAIAPIKey, "sk-test")

	cfg, loaded, err := Load(cfgPath, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, cfgPath, loaded)

	assert.Equal(t, storage.DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "jina", cfg.Embedding.Provider)
	assert.Equal(t, 512, cfg.Embedding.Dimension)
	assert.Equal(t, 0.4, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 1.5, cfg.Retrieval.BoostFactor, "env wins over YAML")
	assert.Equal(t, 3*time.Second, cfg.Retrieval.SearchTimeout)
	assert.Equal(t, 10, cfg.Retrieval.VectorK, "unset keys keep defaults")
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)

	sc := cfg.StorageConfig()
	assert.Equal(t, "postgres://localhost/docrecall", sc.PostgresDSN)
	assert.Equal(t, 25, sc.MaxOpenConns)

	rc := cfg.RetrievalConfig()
	assert.Equal(t, 1.5, rc.BoostFactor)
	assert.Equal(t, 3*time.Second, rc.SearchTimeout)

	ec := cfg.EnrichConfig()
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "gpt-4o-mini", ec.Model)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	cfgPath := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("retrieval:\n  result_limit: 7\n"), 0o644))
	t.Setenv(EnvConfigPath, cfgPath)

	cfg, loaded, err := Load("", logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, cfgPath, loaded)
	assert.Equal(t, 7, cfg.Retrieval.ResultLimit)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCRECALL_RESULT_LIMIT=9\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DOCRECALL_RESULT_LIMIT") })

	cfg, _, err := Load("", logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Retrieval.ResultLimit)
}

func TestLoad_BadEnvValue(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("DOCRECALL_SIMILARITY_THRESHOLD", "high")

	_, _, err := Load("", logging.Discard())
	assert.ErrorContains(t, err, "DOCRECALL_SIMILARITY_THRESHOLD")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage: [unclosed"), 0o644))

	_, _, err := Load(cfgPath, logging.Discard())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = storage.DriverPostgres }},
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"negative dimension", func(c *Config) { c.Embedding.Dimension = -1 }},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "gemini" }},
		{"zero boost", func(c *Config) { c.Retrieval.BoostFactor = 0 }},
		{"threshold above one", func(c *Config) { c.Retrieval.SimilarityThreshold = 1.5 }},
		{"zero result limit", func(c *Config) { c.Retrieval.ResultLimit = 0 }},
		{"zero timeout", func(c *Config) { c.Retrieval.EmbedTimeout = 0 }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEmbedderConfig_DetectsProvider(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	assert.Equal(t, embedder.ProviderLocal, cfg.EmbedderConfig().Provider)

	t.Setenv(embedder.EnvJinaAPIKey, "jina-key")
	assert.Equal(t, embedder.ProviderJina, cfg.EmbedderConfig().Provider)

	cfg.Embedding.Provider = "OpenAI"
	assert.Equal(t, embedder.ProviderOpenAI, cfg.EmbedderConfig().Provider)
	assert.Equal(t, 10000, cfg.EmbedderConfig().CacheSize)
}
