package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gazelleryanwalker/agentic-crm-production/src/concurrent"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

// MaintainerOptions configures periodic optimization.
type MaintainerOptions struct {
	Interval time.Duration
	// Owners to optimize. When empty the store must implement store.OwnerLister.
	Owners      []string
	Concurrency int
}

// Maintainer runs Optimize for a set of owners on a fixed interval.
type Maintainer struct {
	engine *Engine
	opts   MaintainerOptions
}

func NewMaintainer(e *Engine, opts MaintainerOptions) *Maintainer {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Maintainer{engine: e, opts: opts}
}

// Run optimizes immediately and then once per interval until ctx is done.
func (m *Maintainer) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := m.RunOnce(ctx); err != nil {
			m.engine.logger.Error("memory maintenance failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce optimizes every owner and returns the per-owner reports. Owners
// that fail are logged and reported in the combined error; the rest still run.
func (m *Maintainer) RunOnce(ctx context.Context) (map[string]OptimizeReport, error) {
	owners, err := m.owners(ctx)
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	reports := make(map[string]OptimizeReport, len(owners))
	err = concurrent.ParallelForEach(ctx, owners, m.opts.Concurrency, func(ctx context.Context, owner string) error {
		report, err := m.engine.Optimize(ctx, owner)
		if err != nil {
			m.engine.logger.Warn("optimize owner failed", zap.String("owner", owner), zap.Error(err))
			return fmt.Errorf("owner %s: %w", owner, err)
		}
		mu.Lock()
		reports[owner] = report
		mu.Unlock()
		return nil
	})
	return reports, err
}

func (m *Maintainer) owners(ctx context.Context) ([]string, error) {
	if len(m.opts.Owners) > 0 {
		return m.opts.Owners, nil
	}
	lister, ok := m.engine.store.(store.OwnerLister)
	if !ok {
		return nil, errors.New("maintainer needs explicit owners: store cannot list them")
	}
	return lister.Owners(ctx)
}
