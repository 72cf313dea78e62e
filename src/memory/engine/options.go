package engine

import "time"

// Options configures the memory engine. Zero values take the defaults.
type Options struct {
	// MinSimilarity drops search results scoring below it.
	MinSimilarity float64
	// CandidateFactor multiplies the search limit to size the candidate window.
	CandidateFactor int
	DefaultLimit    int
	MaxLimit        int
	// RelatedDefaultLimit and RelatedMaxLimit bound Related, which returns
	// fewer results than Search.
	RelatedDefaultLimit int
	RelatedMaxLimit     int
	// ReaffirmBoost is added to a memory's relevance when identical content is added again.
	ReaffirmBoost float64
	// MergeShare is the fraction of a removed duplicate's relevance carried onto the survivor.
	MergeShare float64
	// PruneBelow and PruneAge select stale low-value memories for deletion.
	PruneBelow float64
	PruneAge   time.Duration
	MinBoost   float64
	MaxBoost   float64
	// GroupByType restricts optimizer duplicate groups to a single memory type.
	GroupByType bool
	// StrictEmbeddingOrigin skips candidates embedded by a different provider than the query.
	StrictEmbeddingOrigin bool
	CacheCapacity         int
	CacheEvictBatch       int
	BatchConcurrency      int
	Clock                 func() time.Time
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		MinSimilarity:       0.3,
		CandidateFactor:     3,
		DefaultLimit:        10,
		MaxLimit:            50,
		RelatedDefaultLimit: 5,
		RelatedMaxLimit:     20,
		ReaffirmBoost:       0.1,
		MergeShare:          0.1,
		PruneBelow:          0.1,
		PruneAge:            30 * 24 * time.Hour,
		MinBoost:            0.01,
		MaxBoost:            1.0,
		CacheCapacity:       1000,
		CacheEvictBatch:     100,
		BatchConcurrency:    4,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.MinSimilarity == 0 {
		o.MinSimilarity = defaults.MinSimilarity
	}
	if o.CandidateFactor <= 0 {
		o.CandidateFactor = defaults.CandidateFactor
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = defaults.DefaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = defaults.MaxLimit
	}
	if o.RelatedDefaultLimit <= 0 {
		o.RelatedDefaultLimit = defaults.RelatedDefaultLimit
	}
	if o.RelatedMaxLimit <= 0 {
		o.RelatedMaxLimit = defaults.RelatedMaxLimit
	}
	if o.ReaffirmBoost == 0 {
		o.ReaffirmBoost = defaults.ReaffirmBoost
	}
	if o.MergeShare == 0 {
		o.MergeShare = defaults.MergeShare
	}
	if o.PruneBelow == 0 {
		o.PruneBelow = defaults.PruneBelow
	}
	if o.PruneAge == 0 {
		o.PruneAge = defaults.PruneAge
	}
	if o.MinBoost == 0 {
		o.MinBoost = defaults.MinBoost
	}
	if o.MaxBoost == 0 {
		o.MaxBoost = defaults.MaxBoost
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = defaults.CacheCapacity
	}
	if o.CacheEvictBatch <= 0 {
		o.CacheEvictBatch = defaults.CacheEvictBatch
	}
	if o.BatchConcurrency <= 0 {
		o.BatchConcurrency = defaults.BatchConcurrency
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

func (o Options) clampLimit(limit int) int {
	return clamp(limit, o.DefaultLimit, o.MaxLimit)
}

func (o Options) clampRelatedLimit(limit int) int {
	return clamp(limit, o.RelatedDefaultLimit, o.RelatedMaxLimit)
}

func clamp(limit, def, hi int) int {
	if limit <= 0 {
		return def
	}
	if limit > hi {
		return hi
	}
	return limit
}

func (o Options) clampBoost(amount float64) float64 {
	if !(amount >= o.MinBoost) {
		return o.MinBoost
	}
	if amount > o.MaxBoost {
		return o.MaxBoost
	}
	return amount
}
