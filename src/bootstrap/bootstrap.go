// Package bootstrap assembles a memory engine and its dependencies from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gazelleryanwalker/agentic-crm-production/src/cache"
	"github.com/gazelleryanwalker/agentic-crm-production/src/concurrent"
	"github.com/gazelleryanwalker/agentic-crm-production/src/config"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/embed"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/engine"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

// Service bundles a ready engine with the resources it owns.
type Service struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    store.MemoryStore
	Resolver *embed.Resolver
	Engine   *engine.Engine

	closers []func() error
}

// New connects the configured store, embedding provider and lock backend and
// returns an engine wired to them. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	svc = &Service{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			err = multierr.Append(err, svc.Close())
			svc = nil
		}
	}()

	resolver, err := NewResolver(ctx, cfg.Embedding, logger)
	if err != nil {
		return svc, err
	}
	svc.Resolver = resolver
	svc.closers = append(svc.closers, resolver.Close)

	st, err := OpenStore(ctx, cfg, resolver.Dimensions())
	if err != nil {
		return svc, err
	}
	svc.Store = st
	svc.closers = append(svc.closers, st.Close)

	eng := engine.New(st, engine.Options{
		MinSimilarity:         cfg.Engine.MinSimilarity,
		CandidateFactor:       cfg.Engine.CandidateFactor,
		DefaultLimit:          cfg.Engine.DefaultLimit,
		MaxLimit:              cfg.Engine.MaxLimit,
		GroupByType:           cfg.Engine.GroupByType,
		StrictEmbeddingOrigin: cfg.Engine.StrictEmbeddingOrigin,
	}).
		WithEmbedder(resolver).
		WithCache(cache.NewQueryCache(cfg.Engine.CacheCapacity, cfg.Engine.CacheEvictBatch)).
		WithLogger(logger.Named("engine"))

	if cfg.Redis.URL != "" {
		locker, err := concurrent.NewRedisLockerFromURL(ctx, cfg.Redis.URL, concurrent.RedisLockerOptions{
			Prefix: cfg.Redis.LockPrefix,
			TTL:    cfg.Redis.LockTTL,
			Logger: logger.Named("lock"),
		})
		if err != nil {
			return svc, err
		}
		svc.closers = append(svc.closers, locker.Close)
		eng.WithLocker(locker)
	}
	svc.Engine = eng

	logger.Info("memory service ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("provider", cfg.Embedding.Provider),
		zap.Bool("graph", cfg.Neo4j.URI != ""),
		zap.Bool("redis_lock", cfg.Redis.URL != ""))
	return svc, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Service) Close() error {
	var err error
	for i := len(s.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.closers[i]())
	}
	s.closers = nil
	_ = s.Logger.Sync()
	return err
}

// NewLogger builds a production (json) or development (console) zap logger.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// OpenStore connects the configured backend and, when configured, decorates
// it with the Neo4j tag graph. dims sizes the postgres vector column.
func OpenStore(ctx context.Context, cfg *config.Config, dims int) (store.MemoryStore, error) {
	var (
		st  store.MemoryStore
		err error
	)
	switch cfg.Store.Driver {
	case "", "memory":
		st = store.NewInMemoryStore()
	case "sqlite":
		st, err = store.NewSQLiteStore(ctx, cfg.Store.DSN)
	case "postgres":
		st, err = store.NewPostgresStore(ctx, cfg.Store.DSN, dims)
	case "mongo":
		st, err = store.NewMongoStore(ctx, cfg.Store.DSN, cfg.Store.Database, cfg.Store.Collection)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Neo4j.URI != "" {
		graph, err := openTagGraph(ctx, cfg.Neo4j, st)
		if err != nil {
			return nil, multierr.Append(err, st.Close())
		}
		st = graph
	}

	if cfg.Store.CreateSchema {
		if initializer, ok := st.(store.SchemaInitializer); ok {
			if err := initializer.CreateSchema(ctx); err != nil {
				return nil, multierr.Append(fmt.Errorf("create schema: %w", err), st.Close())
			}
		}
	}
	return st, nil
}

// NewResolver builds the primary provider and, unless disabled, the
// deterministic fallback. The vector width is cfg.Dimensions when set and the
// provider's native width otherwise. An unknown width is probed once; a probe
// failure is returned.
func NewResolver(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (*embed.Resolver, error) {
	primary, err := embed.NewProvider(ctx, embed.ProviderConfig{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		CacheDir:   cfg.CacheDir,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	dims, err := resolveDimensions(ctx, primary, cfg)
	if err != nil {
		if c, ok := primary.(interface{ Close() error }); ok {
			err = multierr.Append(err, c.Close())
		}
		return nil, err
	}

	logger.Named("embed").Info("embedding provider selected",
		zap.String("origin", embed.OriginOf(primary)),
		zap.Int("dimensions", dims))
	var fallback embed.Embedder
	if !cfg.DisableFallback {
		fallback = embed.NewFallbackEmbedder(dims)
	}
	if _, isFallback := primary.(*embed.FallbackEmbedder); isFallback {
		primary, fallback = nil, primary
	}
	return embed.NewResolver(primary, fallback, embed.ResolverOptions{
		Dimensions:     dims,
		Timeout:        cfg.Timeout,
		MaxConcurrency: cfg.MaxConcurrency,
		Logger:         logger.Named("embed"),
	}), nil
}

func resolveDimensions(ctx context.Context, primary embed.Embedder, cfg config.EmbeddingConfig) (int, error) {
	native := embed.DimensionsOf(primary)
	switch {
	case cfg.Dimensions > 0 && native > 0 && native != cfg.Dimensions:
		return 0, fmt.Errorf("%w: %s produces %d dimensions, configured %d",
			embed.ErrDimensionMismatch, embed.OriginOf(primary), native, cfg.Dimensions)
	case cfg.Dimensions > 0:
		return cfg.Dimensions, nil
	case native > 0:
		return native, nil
	}
	n, err := embed.ProbeDimensions(ctx, primary, cfg.Timeout)
	if err != nil {
		return 0, fmt.Errorf("embedding dimensions unknown, set embedding.dimensions: %w", err)
	}
	return n, nil
}
