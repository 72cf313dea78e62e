package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

const recentWindow = 7 * 24 * time.Hour

// Stats summarizes an owner's memories.
type Stats struct {
	TotalMemories     int                      `json:"total_memories"`
	ByType            map[model.MemoryType]int `json:"by_type"`
	ByCategory        map[string]int           `json:"by_category"`
	RecentMemories    int                      `json:"recent_memories_7d"`
	AverageRelevance  float64                  `json:"average_relevance_score"`
	EmbeddedMemories  int                      `json:"embedded_memories"`
	EmbeddingCoverage float64                  `json:"embedding_coverage"` // percent
	CacheSize         int                      `json:"cache_size"`
}

// Stats computes usage statistics for ownerID.
func (e *Engine) Stats(ctx context.Context, ownerID string) (Stats, error) {
	ctx, span := e.startSpan(ctx, "Engine.Stats", ownerID)
	defer span.End()

	rows, err := e.store.Query(ctx, model.Query{OwnerID: ownerID})
	if err != nil {
		return Stats{}, e.fail(span, "stats", err)
	}
	st := Stats{
		TotalMemories: len(rows),
		ByType:        make(map[model.MemoryType]int),
		ByCategory:    make(map[string]int),
		CacheSize:     e.cache.Len(),
	}
	since := e.now().Add(-recentWindow)
	var relevance float64
	for _, m := range rows {
		st.ByType[m.Type]++
		if m.Category != "" {
			st.ByCategory[m.Category]++
		}
		if !m.CreatedAt.Before(since) {
			st.RecentMemories++
		}
		if m.HasEmbedding() {
			st.EmbeddedMemories++
		}
		relevance += m.RelevanceScore
	}
	if len(rows) > 0 {
		st.AverageRelevance = round(relevance/float64(len(rows)), 2)
		st.EmbeddingCoverage = round(float64(st.EmbeddedMemories)/float64(len(rows))*100, 1)
	}
	return st, nil
}

// Categories lists the owner's distinct non-empty categories in order.
func (e *Engine) Categories(ctx context.Context, ownerID string) ([]string, error) {
	ctx, span := e.startSpan(ctx, "Engine.Categories", ownerID)
	defer span.End()

	rows, err := e.store.Query(ctx, model.Query{OwnerID: ownerID})
	if err != nil {
		return nil, e.fail(span, "categories", err)
	}
	seen := make(map[string]struct{})
	categories := []string{}
	for _, m := range rows {
		if m.Category == "" {
			continue
		}
		if _, ok := seen[m.Category]; ok {
			continue
		}
		seen[m.Category] = struct{}{}
		categories = append(categories, m.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

// RelatedByTags returns memories sharing tags with id, most shared tags first.
// Stores exposing a tag graph answer directly; otherwise the owner's memories
// are scanned.
func (e *Engine) RelatedByTags(ctx context.Context, ownerID, id string, limit int) ([]store.TagMatch, error) {
	ctx, span := e.startSpan(ctx, "Engine.RelatedByTags", ownerID)
	defer span.End()
	limit = e.opts.clampLimit(limit)

	if graph, ok := e.store.(store.TagGraph); ok {
		matches, err := graph.RelatedByTags(ctx, ownerID, id, limit)
		if err != nil {
			return nil, e.fail(span, "related by tags", err)
		}
		return matches, nil
	}

	src, err := e.store.Get(ctx, ownerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return []store.TagMatch{}, nil
	}
	if err != nil {
		return nil, e.fail(span, "related by tags", err)
	}
	if len(src.Tags) == 0 {
		return []store.TagMatch{}, nil
	}
	wanted := make(map[string]struct{}, len(src.Tags))
	for _, t := range src.Tags {
		wanted[t] = struct{}{}
	}
	rows, err := e.store.Query(ctx, model.Query{OwnerID: ownerID})
	if err != nil {
		return nil, e.fail(span, "related by tags", err)
	}
	matches := []store.TagMatch{}
	for _, m := range rows {
		if m.ID == src.ID {
			continue
		}
		shared := 0
		for _, t := range m.Tags {
			if _, ok := wanted[t]; ok {
				shared++
			}
		}
		if shared > 0 {
			matches = append(matches, store.TagMatch{Memory: m, SharedTags: shared})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].SharedTags != matches[j].SharedTags {
			return matches[i].SharedTags > matches[j].SharedTags
		}
		return matches[i].Memory.ID < matches[j].Memory.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
