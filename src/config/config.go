// Package config loads memory service settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full service configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Engine      EngineConfig      `yaml:"engine"`
	Redis       RedisConfig       `yaml:"redis"`
	Neo4j       Neo4jConfig       `yaml:"neo4j"`
	Log         LogConfig         `yaml:"log"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres, mongo.
	Driver       string `yaml:"driver" validate:"oneof=memory sqlite postgres mongo"`
	DSN          string `yaml:"dsn" validate:"required_unless=Driver memory"`
	Database     string `yaml:"database"`
	Collection   string `yaml:"collection"`
	CreateSchema bool   `yaml:"create_schema"`
}

type EmbeddingConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	// Dimensions zero means the provider's native width.
	Dimensions      int           `yaml:"dimensions" validate:"gte=0"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	CacheDir        string        `yaml:"cache_dir"`
	Timeout         time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxConcurrency  int           `yaml:"max_concurrency" validate:"gte=0"`
	DisableFallback bool          `yaml:"disable_fallback"`
}

type EngineConfig struct {
	MinSimilarity         float64 `yaml:"min_similarity" validate:"gte=0,lte=2"`
	CandidateFactor       int     `yaml:"candidate_factor" validate:"gte=0"`
	DefaultLimit          int     `yaml:"default_limit" validate:"gte=0"`
	MaxLimit              int     `yaml:"max_limit" validate:"gte=0"`
	CacheCapacity         int     `yaml:"cache_capacity" validate:"gte=0"`
	CacheEvictBatch       int     `yaml:"cache_evict_batch" validate:"gte=0"`
	GroupByType           bool    `yaml:"group_by_type"`
	StrictEmbeddingOrigin bool    `yaml:"strict_embedding_origin"`
}

// RedisConfig enables the distributed optimize lock when URL is set.
type RedisConfig struct {
	URL        string        `yaml:"url"`
	LockPrefix string        `yaml:"lock_prefix"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

// Neo4jConfig enables the tag graph when URI is set.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type MaintenanceConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Owners      []string      `yaml:"owners"`
	Concurrency int           `yaml:"concurrency" validate:"gte=0"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Driver: "memory"},
		Embedding: EmbeddingConfig{
			Provider: "fallback",
			Timeout:  10 * time.Second,
		},
		Log:         LogConfig{Level: "info", Format: "json"},
		Maintenance: MaintenanceConfig{Interval: 24 * time.Hour, Concurrency: 4},
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += " " + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}
