package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty) and environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Decode overlays YAML from r onto cfg. Unknown keys are rejected.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MEMORY_STORE_DRIVER", &cfg.Store.Driver)
	str("MEMORY_STORE_DSN", &cfg.Store.DSN)
	str("MEMORY_EMBED_PROVIDER", &cfg.Embedding.Provider)
	str("MEMORY_EMBED_MODEL", &cfg.Embedding.Model)
	str("MEMORY_REDIS_URL", &cfg.Redis.URL)
	str("MEMORY_NEO4J_URI", &cfg.Neo4j.URI)
	str("MEMORY_NEO4J_USERNAME", &cfg.Neo4j.Username)
	str("MEMORY_NEO4J_PASSWORD", &cfg.Neo4j.Password)
	str("MEMORY_LOG_LEVEL", &cfg.Log.Level)
	str("MEMORY_LOG_FORMAT", &cfg.Log.Format)

	if v, ok := lookup("MEMORY_EMBED_DIMENSIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEMORY_EMBED_DIMENSIONS: %w", err)
		}
		cfg.Embedding.Dimensions = n
	}

	if cfg.Embedding.APIKey == "" {
		for _, key := range providerKeyEnv(cfg.Embedding.Provider) {
			if v, ok := lookup(key); ok && v != "" {
				cfg.Embedding.APIKey = v
				break
			}
		}
	}
	if cfg.Embedding.BaseURL == "" && strings.EqualFold(cfg.Embedding.Provider, "ollama") {
		str("OLLAMA_HOST", &cfg.Embedding.BaseURL)
	}
	return nil
}

func providerKeyEnv(provider string) []string {
	switch strings.ToLower(provider) {
	case "openai":
		return []string{"OPENAI_API_KEY"}
	case "google", "gemini", "vertex", "vertexai":
		return []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}
	case "voyage", "claude", "anthropic":
		return []string{"VOYAGE_API_KEY"}
	}
	return nil
}
