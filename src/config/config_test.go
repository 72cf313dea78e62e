package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "fallback", cfg.Embedding.Provider)
	assert.Zero(t, cfg.Embedding.Dimensions, "zero selects the provider width")
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: sqlite
  dsn: /tmp/memories.db
  create_schema: true
embedding:
  provider: openai
  model: text-embedding-3-large
  dimensions: 3072
  timeout: 4s
engine:
  min_similarity: 0.4
  group_by_type: true
maintenance:
  interval: 6h
  owners: [alice, bob]
`), 0o600))

	t.Setenv("MEMORY_EMBED_DIMENSIONS", "1536")
	t.Setenv("MEMORY_LOG_LEVEL", "debug")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.True(t, cfg.Store.CreateSchema)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions, "environment wins over the file")
	assert.Equal(t, 4*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, 0.4, cfg.Engine.MinSimilarity)
	assert.True(t, cfg.Engine.GroupByType)
	assert.Equal(t, 6*time.Hour, cfg.Maintenance.Interval)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Maintenance.Owners)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Maintenance.Concurrency, "defaults survive partial sections")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  drvier: memory\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "dynamo" }, errMsg: "Driver"},
		{name: "dsn required", mutate: func(c *Config) { c.Store.Driver = "postgres" }, errMsg: "DSN"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, errMsg: "Level"},
		{name: "negative dimensions", mutate: func(c *Config) { c.Embedding.Dimensions = -1 }, errMsg: "Dimensions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.errMsg), err.Error())
		})
	}
	require.NoError(t, Default().Validate())
}

func TestApplyEnvProviderKeys(t *testing.T) {
	env := map[string]string{
		"MEMORY_EMBED_PROVIDER": "ollama",
		"OLLAMA_HOST":           "http://gpu-box:11434",
		"GEMINI_API_KEY":        "g-key",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, applyEnv(cfg, lookup))
	assert.Equal(t, "http://gpu-box:11434", cfg.Embedding.BaseURL)
	assert.Empty(t, cfg.Embedding.APIKey)

	env["MEMORY_EMBED_PROVIDER"] = "gemini"
	cfg = Default()
	require.NoError(t, applyEnv(cfg, lookup))
	assert.Equal(t, "g-key", cfg.Embedding.APIKey)

	env["MEMORY_EMBED_DIMENSIONS"] = "wide"
	require.Error(t, applyEnv(Default(), lookup))
}
