package engine

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks engine activity.
type Metrics struct {
	added              atomic.Int64
	reaffirmed         atomic.Int64
	storedUnembedded   atomic.Int64
	searches           atomic.Int64
	degradedSearches   atomic.Int64
	resultsReturned    atomic.Int64
	boosts             atomic.Int64
	boostMisses        atomic.Int64
	optimizeRuns       atomic.Int64
	duplicatesRemoved  atomic.Int64
	lowRelevancePruned atomic.Int64
	storeErrors        atomic.Int64
}

func (m *Metrics) IncAdded()            { m.added.Add(1) }
func (m *Metrics) IncReaffirmed()       { m.reaffirmed.Add(1) }
func (m *Metrics) IncStoredUnembedded() { m.storedUnembedded.Add(1) }
func (m *Metrics) IncResults(n int)     { m.resultsReturned.Add(int64(n)) }
func (m *Metrics) IncStoreErrors()      { m.storeErrors.Add(1) }

func (m *Metrics) IncSearches(degraded bool) {
	m.searches.Add(1)
	if degraded {
		m.degradedSearches.Add(1)
	}
}

func (m *Metrics) IncBoost(hit bool) {
	if hit {
		m.boosts.Add(1)
		return
	}
	m.boostMisses.Add(1)
}

func (m *Metrics) IncOptimized(r OptimizeReport) {
	m.optimizeRuns.Add(1)
	m.duplicatesRemoved.Add(int64(r.DuplicatesRemoved))
	m.lowRelevancePruned.Add(int64(r.LowRelevanceRemoved))
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Added              int64 `json:"added"`
	Reaffirmed         int64 `json:"reaffirmed"`
	StoredUnembedded   int64 `json:"stored_unembedded"`
	Searches           int64 `json:"searches"`
	DegradedSearches   int64 `json:"degraded_searches"`
	ResultsReturned    int64 `json:"results_returned"`
	Boosts             int64 `json:"boosts"`
	BoostMisses        int64 `json:"boost_misses"`
	OptimizeRuns       int64 `json:"optimize_runs"`
	DuplicatesRemoved  int64 `json:"duplicates_removed"`
	LowRelevancePruned int64 `json:"low_relevance_pruned"`
	StoreErrors        int64 `json:"store_errors"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Added:              m.added.Load(),
		Reaffirmed:         m.reaffirmed.Load(),
		StoredUnembedded:   m.storedUnembedded.Load(),
		Searches:           m.searches.Load(),
		DegradedSearches:   m.degradedSearches.Load(),
		ResultsReturned:    m.resultsReturned.Load(),
		Boosts:             m.boosts.Load(),
		BoostMisses:        m.boostMisses.Load(),
		OptimizeRuns:       m.optimizeRuns.Load(),
		DuplicatesRemoved:  m.duplicatesRemoved.Load(),
		LowRelevancePruned: m.lowRelevancePruned.Load(),
		StoreErrors:        m.storeErrors.Load(),
	}
}

// RegisterMetrics exposes the engine, cache and embedding counters to Prometheus.
// Values are read from the live counters at scrape time.
func (e *Engine) RegisterMetrics(reg prometheus.Registerer) error {
	const namespace = "memory"
	counter := func(name, help string, fn func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, fn)
	}
	load := func(v *atomic.Int64) func() float64 {
		return func() float64 { return float64(v.Load()) }
	}
	m := e.metrics
	collectors := []prometheus.Collector{
		counter("added_total", "Memories inserted.", load(&m.added)),
		counter("reaffirmed_total", "Adds merged into an existing identical memory.", load(&m.reaffirmed)),
		counter("stored_unembedded_total", "Memories stored without an embedding.", load(&m.storedUnembedded)),
		counter("searches_total", "Searches executed.", load(&m.searches)),
		counter("degraded_searches_total", "Searches answered by substring matching.", load(&m.degradedSearches)),
		counter("search_results_total", "Search results returned.", load(&m.resultsReturned)),
		counter("boosts_total", "Relevance boosts applied.", load(&m.boosts)),
		counter("boost_misses_total", "Boosts targeting a missing memory.", load(&m.boostMisses)),
		counter("optimize_runs_total", "Completed optimization runs.", load(&m.optimizeRuns)),
		counter("duplicates_removed_total", "Duplicate memories merged away.", load(&m.duplicatesRemoved)),
		counter("low_relevance_pruned_total", "Stale low relevance memories deleted.", load(&m.lowRelevancePruned)),
		counter("store_errors_total", "Operations failed by the store.", load(&m.storeErrors)),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "query_cache_entries",
			Help:      "Query embeddings currently cached.",
		}, func() float64 { return float64(e.cache.Len()) }),
		counter("query_cache_hits_total", "Query cache hits.", func() float64 { return float64(e.cache.Stats().Hits) }),
		counter("query_cache_misses_total", "Query cache misses.", func() float64 { return float64(e.cache.Stats().Misses) }),
		counter("embedding_primary_calls_total", "Calls to the primary embedding provider.", func() float64 {
			return float64(e.resolver.Stats().PrimaryCalls)
		}),
		counter("embedding_primary_failures_total", "Failed primary embedding calls.", func() float64 {
			return float64(e.resolver.Stats().PrimaryFailures)
		}),
		counter("embedding_fallback_total", "Embeddings produced by the fallback provider.", func() float64 {
			return float64(e.resolver.Stats().FallbackUsed)
		}),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
