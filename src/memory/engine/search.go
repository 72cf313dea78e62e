package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

// DegradedScore is the score given to every substring match when no query
// embedding is available.
const DegradedScore = 0.5

// SearchRequest selects memories of one owner similar to Query.
type SearchRequest struct {
	OwnerID  string
	Query    string
	Type     model.MemoryType
	Category string
	// Limit defaults to Options.DefaultLimit and is capped at Options.MaxLimit.
	Limit int
	// MinSimilarity overrides Options.MinSimilarity when non-zero.
	MinSimilarity float64
}

type candidateFilter struct {
	ownerID   string
	typ       model.MemoryType
	category  string
	limit     int
	minScore  float64
	excludeID string
}

// Search ranks the owner's memories against query. Each candidate scores
//
//	similarity + 0.1*relevance + min(0.1, 1/(daysSinceUpdate+1))
//
// and results below the minimum similarity are dropped. Without a query
// embedding the search falls back to case-insensitive substring matching.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]model.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return []model.SearchResult{}, nil
	}
	ctx, span := e.startSpan(ctx, "Engine.Search", req.OwnerID)
	defer span.End()
	if req.OwnerID == "" {
		return nil, e.fail(span, "search", invalid("owner id is required"))
	}

	f := candidateFilter{
		ownerID:  req.OwnerID,
		typ:      req.Type,
		category: req.Category,
		limit:    e.opts.clampLimit(req.Limit),
		minScore: req.MinSimilarity,
	}
	if f.minScore == 0 {
		f.minScore = e.opts.MinSimilarity
	}

	vec, origin, ok := e.queryEmbedding(ctx, query)
	var (
		results []model.SearchResult
		err     error
	)
	if ok {
		results, err = e.rank(ctx, f, vec, origin)
	} else {
		results, err = e.substringSearch(ctx, f, query)
	}
	if err != nil {
		return nil, e.fail(span, "search", err)
	}
	e.metrics.IncSearches(!ok)
	e.metrics.IncResults(len(results))
	span.SetAttributes(
		attribute.Bool("memory.degraded", !ok),
		attribute.Int("memory.results", len(results)))
	return results, nil
}

func (e *Engine) queryEmbedding(ctx context.Context, query string) ([]float32, string, bool) {
	if vec, origin, ok := e.cache.Lookup(query); ok {
		return vec, origin, true
	}
	res := e.resolver.Generate(ctx, query)
	if !res.OK() {
		e.logger.Warn("query embedding unavailable, using substring search", zap.Error(res.Err))
		return nil, "", false
	}
	e.cache.Put(query, res.Vector, res.Origin)
	return res.Vector, res.Origin, true
}

func (e *Engine) substringSearch(ctx context.Context, f candidateFilter, query string) ([]model.SearchResult, error) {
	rows, err := e.store.Query(ctx, model.Query{
		OwnerID:         f.ownerID,
		Type:            f.typ,
		Category:        f.category,
		ContentContains: query,
		Order:           model.OrderRelevance,
		Limit:           f.limit,
	})
	if err != nil {
		return nil, err
	}
	results := make([]model.SearchResult, 0, len(rows))
	for _, m := range rows {
		results = append(results, model.SearchResult{Memory: m, SimilarityScore: DegradedScore})
	}
	return results, nil
}

// rank scores the over-fetched candidate window against vec.
func (e *Engine) rank(ctx context.Context, f candidateFilter, vec []float32, origin string) ([]model.SearchResult, error) {
	window := f.limit * e.opts.CandidateFactor
	if f.excludeID != "" {
		window++
	}
	candidates, err := e.store.Query(ctx, model.Query{
		OwnerID:      f.ownerID,
		Type:         f.typ,
		Category:     f.category,
		HasEmbedding: true,
		Order:        model.OrderRelevance,
		Limit:        window,
	})
	if err != nil {
		return nil, err
	}

	now := e.now()
	results := make([]model.SearchResult, 0, len(candidates))
	for _, m := range candidates {
		if m.ID == f.excludeID {
			continue
		}
		if e.opts.StrictEmbeddingOrigin && origin != "" && m.EmbeddingOrigin != origin {
			continue
		}
		days := math.Floor(now.Sub(m.UpdatedAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		score := model.Similarity(vec, m.Embedding) + 0.1*m.RelevanceScore + math.Min(0.1, 1/(days+1))
		if score < f.minScore {
			continue
		}
		results = append(results, model.SearchResult{Memory: m, SimilarityScore: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	if len(results) > f.limit {
		results = results[:f.limit]
	}
	return results, nil
}

// Related returns memories of the same type that rank closest to the stored
// memory id. A missing, foreign or unembedded source yields no results.
func (e *Engine) Related(ctx context.Context, ownerID, id string, limit int) ([]model.SearchResult, error) {
	ctx, span := e.startSpan(ctx, "Engine.Related", ownerID, attribute.String("memory.id", id))
	defer span.End()

	src, err := e.store.Get(ctx, ownerID, id)
	if errors.Is(err, store.ErrNotFound) {
		return []model.SearchResult{}, nil
	}
	if err != nil {
		return nil, e.fail(span, "related", err)
	}
	if !src.HasEmbedding() {
		return []model.SearchResult{}, nil
	}
	results, err := e.rank(ctx, candidateFilter{
		ownerID:   ownerID,
		typ:       src.Type,
		limit:     e.opts.clampRelatedLimit(limit),
		minScore:  e.opts.MinSimilarity,
		excludeID: src.ID,
	}, src.Embedding, src.EmbeddingOrigin)
	if err != nil {
		return nil, e.fail(span, "related", err)
	}
	return results, nil
}
