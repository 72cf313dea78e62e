package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gazelleryanwalker/agentic-crm-production/src/concurrent"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// ResolverOptions configures how embeddings are resolved.
type ResolverOptions struct {
	Dimensions     int
	Timeout        time.Duration
	MaxInputChars  int
	MaxConcurrency int
	// BreakerFailures is the count of consecutive primary failures that opens the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration
	Logger          *zap.Logger
}

func (o ResolverOptions) withDefaults() ResolverOptions {
	if o.Dimensions <= 0 {
		o.Dimensions = DefaultDimensions
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxInputChars <= 0 {
		o.MaxInputChars = 8000
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = 8
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 5
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// ResolverStats counts how embeddings were produced.
type ResolverStats struct {
	PrimaryCalls    uint64
	PrimaryFailures uint64
	FallbackUsed    uint64
}

// Resolver produces embeddings from a primary provider, switching to an
// explicitly designated fallback when the primary fails, times out, or returns
// an unusable vector. With no fallback, failures surface as Err results.
type Resolver struct {
	primary  Embedder
	fallback Embedder
	opts     ResolverOptions
	breaker  *gobreaker.CircuitBreaker
	pool     *concurrent.WorkerPool

	primaryCalls    atomic.Uint64
	primaryFailures atomic.Uint64
	fallbackUsed    atomic.Uint64
}

// NewResolver wires primary and fallback. Either may be nil.
func NewResolver(primary, fallback Embedder, opts ResolverOptions) *Resolver {
	opts = opts.withDefaults()
	r := &Resolver{
		primary:  primary,
		fallback: fallback,
		opts:     opts,
		pool:     concurrent.NewWorkerPool(opts.MaxConcurrency),
	}
	if primary != nil {
		name := OriginOf(primary)
		r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: opts.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= opts.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				opts.Logger.Warn("embedding breaker state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}
	return r
}

// Dimensions is the vector width every Ok result has.
func (r *Resolver) Dimensions() int { return r.opts.Dimensions }

// Generate resolves an embedding for text.
func (r *Resolver) Generate(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Err(ErrEmptyInput)
	}
	var primaryErr error
	if r.primary != nil {
		vec, err := r.callPrimary(ctx, model.TruncateRunes(text, r.opts.MaxInputChars))
		if err == nil {
			return Ok(vec, OriginOf(r.primary))
		}
		primaryErr = err
		r.primaryFailures.Add(1)
		r.opts.Logger.Warn("primary embedding failed",
			zap.String("provider", OriginOf(r.primary)),
			zap.Error(err))
	}

	if r.fallback == nil {
		if primaryErr == nil {
			primaryErr = ErrNotSupported
		}
		return Err(primaryErr)
	}
	// The hash embedder has no input limit.
	vec, err := r.fallback.Embed(ctx, text)
	if err == nil {
		err = r.checkDimensions(vec)
	}
	if err != nil {
		return Err(errors.Join(primaryErr, fmt.Errorf("fallback embedding: %w", err)))
	}
	r.fallbackUsed.Add(1)
	return Ok(vec, OriginOf(r.fallback))
}

func (r *Resolver) callPrimary(ctx context.Context, text string) ([]float32, error) {
	r.primaryCalls.Add(1)
	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	var vec []float32
	err := r.pool.Do(callCtx, func() error {
		out, err := r.breaker.Execute(func() (interface{}, error) {
			v, err := r.primary.Embed(callCtx, text)
			if err != nil {
				return nil, err
			}
			if err := r.checkDimensions(v); err != nil {
				return nil, err
			}
			return v, nil
		})
		if err != nil {
			return err
		}
		vec = out.([]float32)
		return nil
	})
	return vec, err
}

func (r *Resolver) checkDimensions(vec []float32) error {
	if len(vec) != r.opts.Dimensions {
		return fmt.Errorf("%w: got %d want %d", ErrDimensionMismatch, len(vec), r.opts.Dimensions)
	}
	return nil
}

// GenerateBatch resolves embeddings for many texts concurrently. Results keep
// input order; a per-item failure never aborts the batch.
func (r *Resolver) GenerateBatch(ctx context.Context, texts []string) []Result {
	results, _ := concurrent.ParallelMap(ctx, texts, r.opts.MaxConcurrency, func(ctx context.Context, text string) (Result, error) {
		return r.Generate(ctx, text), nil
	})
	for i := range results {
		if results[i].Err == nil && results[i].Vector == nil {
			results[i] = Err(ctx.Err())
		}
	}
	return results
}

// Stats returns resolver counters.
func (r *Resolver) Stats() ResolverStats {
	return ResolverStats{
		PrimaryCalls:    r.primaryCalls.Load(),
		PrimaryFailures: r.primaryFailures.Load(),
		FallbackUsed:    r.fallbackUsed.Load(),
	}
}

// Close releases providers that hold resources.
func (r *Resolver) Close() error {
	var err error
	for _, e := range []Embedder{r.primary, r.fallback} {
		if c, ok := e.(interface{ Close() error }); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
