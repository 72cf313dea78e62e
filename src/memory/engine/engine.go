package engine

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gazelleryanwalker/agentic-crm-production/src/cache"
	"github.com/gazelleryanwalker/agentic-crm-production/src/concurrent"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/embed"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

const tracerName = "github.com/gazelleryanwalker/agentic-crm-production/src/memory/engine"

// Engine implements add, search, optimize and boost over a MemoryStore.
// It holds no per-request state; the query cache and metrics are the only
// state shared between concurrent calls.
type Engine struct {
	store    store.MemoryStore
	opts     Options
	resolver *embed.Resolver
	cache    *cache.QueryCache
	locker   concurrent.Locker
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	clock    func() time.Time
}

// New constructs an engine. Until WithEmbedder is called, embeddings come from
// the deterministic fallback provider alone.
func New(st store.MemoryStore, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		store:    st,
		opts:     opts,
		resolver: embed.NewResolver(nil, embed.NewFallbackEmbedder(embed.DefaultDimensions), embed.ResolverOptions{}),
		cache:    cache.NewQueryCache(opts.CacheCapacity, opts.CacheEvictBatch),
		locker:   concurrent.NewKeyedMutex(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(tracerName),
		metrics:  &Metrics{},
		clock:    opts.Clock,
	}
}

// WithEmbedder replaces the embedding resolver.
func (e *Engine) WithEmbedder(r *embed.Resolver) *Engine {
	if r != nil {
		e.resolver = r
	}
	return e
}

// WithCache injects a query cache, e.g. one shared by engines of a process.
func (e *Engine) WithCache(c *cache.QueryCache) *Engine {
	if c != nil {
		e.cache = c
	}
	return e
}

// WithLocker overrides the per-owner lock used to serialize Optimize.
func (e *Engine) WithLocker(l concurrent.Locker) *Engine {
	if l != nil {
		e.locker = l
	}
	return e
}

func (e *Engine) WithLogger(logger *zap.Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

func (e *Engine) WithTracer(t trace.Tracer) *Engine {
	if t != nil {
		e.tracer = t
	}
	return e
}

// MetricsSnapshot returns a copy of the runtime counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// CacheStats reports query cache usage.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

// Close releases the embedding providers. The store is owned by the caller.
func (e *Engine) Close() error {
	return e.resolver.Close()
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

func (e *Engine) startSpan(ctx context.Context, name, ownerID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("memory.owner", ownerID))
	return e.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// fail records err on span. Store failures are counted and wrapped in ErrStore;
// caller cancellation and deadlines pass through unwrapped.
func (e *Engine) fail(span trace.Span, op string, err error) error {
	if !errors.Is(err, ErrInvalidRequest) && !errors.Is(err, concurrent.ErrLockTimeout) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		e.metrics.IncStoreErrors()
		err = storeErr(op, err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, op+" failed")
	e.logger.Error("memory operation failed", zap.String("op", op), zap.Error(err))
	return err
}
