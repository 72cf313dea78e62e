package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

// Boost raises a memory's relevance by amount, clamped to [MinBoost, MaxBoost],
// never past the relevance cap. It reports false when the owner has no memory
// with that id.
func (e *Engine) Boost(ctx context.Context, ownerID, id string, amount float64) (bool, error) {
	amount = e.opts.clampBoost(amount)
	ctx, span := e.startSpan(ctx, "Engine.Boost", ownerID,
		attribute.String("memory.id", id),
		attribute.Float64("memory.boost", amount))
	defer span.End()

	var boosted bool
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.MemoryStore) error {
		m, err := tx.Get(ctx, ownerID, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		m.AddRelevance(amount)
		m.UpdatedAt = e.now()
		if err := tx.Update(ctx, m); err != nil {
			return err
		}
		boosted = true
		return nil
	})
	if err != nil {
		return false, e.fail(span, "boost", err)
	}
	e.metrics.IncBoost(boosted)
	return boosted, nil
}
