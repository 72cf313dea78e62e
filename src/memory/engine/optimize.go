package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

// OptimizeReport summarizes one optimization run.
type OptimizeReport struct {
	DuplicatesRemoved   int `json:"duplicates_removed"`
	LowRelevanceRemoved int `json:"low_relevance_removed"`
	TotalOptimized      int `json:"total_optimized"`
}

// Optimize merges duplicate memories of an owner and prunes stale low
// relevance ones, all in a single transaction.
//
// Memories are grouped by normalized content. In each group the most relevant
// member survives, collects every member's tags and MergeShare of each removed
// member's relevance. The prune pass then runs over the survivors only and
// deletes memories below PruneBelow that were created more than PruneAge ago.
// Runs for the same owner are serialized through the engine's Locker.
func (e *Engine) Optimize(ctx context.Context, ownerID string) (OptimizeReport, error) {
	ctx, span := e.startSpan(ctx, "Engine.Optimize", ownerID)
	defer span.End()
	if ownerID == "" {
		return OptimizeReport{}, e.fail(span, "optimize", invalid("owner id is required"))
	}

	unlock, err := e.locker.Lock(ctx, "optimize:"+ownerID)
	if err != nil {
		return OptimizeReport{}, e.fail(span, "optimize", err)
	}
	defer unlock()

	var report OptimizeReport
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.MemoryStore) error {
		report = OptimizeReport{}
		all, err := tx.Query(ctx, model.Query{OwnerID: ownerID, Order: model.OrderRelevance})
		if err != nil {
			return err
		}
		now := e.now()

		survivors, duplicates := e.mergeDuplicates(all, now)
		for _, m := range survivors {
			if m.merged {
				if err := tx.Update(ctx, m.Memory); err != nil {
					return err
				}
			}
		}
		if report.DuplicatesRemoved, err = tx.Delete(ctx, ownerID, duplicates); err != nil {
			return err
		}

		var stale []string
		for _, m := range survivors {
			if m.RelevanceScore < e.opts.PruneBelow && now.Sub(m.CreatedAt) > e.opts.PruneAge {
				stale = append(stale, m.ID)
			}
		}
		if report.LowRelevanceRemoved, err = tx.Delete(ctx, ownerID, stale); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return OptimizeReport{}, e.fail(span, "optimize", err)
	}
	report.TotalOptimized = report.DuplicatesRemoved + report.LowRelevanceRemoved
	e.cache.Clear()
	e.metrics.IncOptimized(report)

	span.SetAttributes(
		attribute.Int("memory.duplicates_removed", report.DuplicatesRemoved),
		attribute.Int("memory.low_relevance_removed", report.LowRelevanceRemoved))
	e.logger.Info("memory optimization completed",
		zap.String("owner", ownerID),
		zap.Int("duplicates_removed", report.DuplicatesRemoved),
		zap.Int("low_relevance_removed", report.LowRelevanceRemoved))
	return report, nil
}

type survivor struct {
	*model.Memory
	merged bool
}

// mergeDuplicates groups rows by normalized content and folds each group into
// its most relevant member. rows must be ordered by relevance desc.
func (e *Engine) mergeDuplicates(rows []*model.Memory, now time.Time) ([]survivor, []string) {
	type groupKey struct {
		typ     model.MemoryType
		content string
	}
	groups := make(map[groupKey][]*model.Memory)
	var order []groupKey
	for _, m := range rows {
		key := groupKey{content: model.NormalizeContent(m.Content)}
		if e.opts.GroupByType {
			key.typ = m.Type
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], m)
	}

	survivors := make([]survivor, 0, len(order))
	var removed []string
	for _, key := range order {
		members := groups[key]
		best := 0
		for i, m := range members {
			if m.RelevanceScore > members[best].RelevanceScore {
				best = i
			}
		}
		keep := members[best]
		if len(members) == 1 {
			survivors = append(survivors, survivor{Memory: keep})
			continue
		}
		tags := [][]string{keep.Tags}
		var carried float64
		for i, m := range members {
			if i == best {
				continue
			}
			tags = append(tags, m.Tags)
			carried += e.opts.MergeShare * m.RelevanceScore
			removed = append(removed, m.ID)
		}
		keep.Tags = model.UnionTags(tags...)
		keep.AddRelevance(carried)
		keep.UpdatedAt = now
		survivors = append(survivors, survivor{Memory: keep, merged: true})
	}
	return survivors, removed
}
