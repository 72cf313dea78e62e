package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	DefaultCapacity   = 1000
	DefaultEvictBatch = 100
)

// QueryCache maps query text to its embedding. Eviction is first-in first-out
// in batches: when an insert pushes the size past capacity, the oldest
// evictBatch entries are dropped. Reads never change eviction order.
type QueryCache struct {
	mu         sync.Mutex
	capacity   int
	evictBatch int
	items      map[string]*list.Element
	order      *list.List

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry struct {
	key    string
	vec    []float32
	origin string
}

// Stats reports cache counters.
type Stats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

// NewQueryCache creates a cache. Non-positive arguments take the defaults.
func NewQueryCache(capacity, evictBatch int) *QueryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if evictBatch <= 0 {
		evictBatch = DefaultEvictBatch
	}
	if evictBatch > capacity {
		evictBatch = capacity
	}
	return &QueryCache{
		capacity:   capacity,
		evictBatch: evictBatch,
		items:      make(map[string]*list.Element, capacity),
		order:      list.New(),
	}
}

// Get returns a copy of the cached embedding for query.
func (c *QueryCache) Get(query string) ([]float32, bool) {
	vec, _, ok := c.Lookup(query)
	return vec, ok
}

// Lookup is Get plus the origin recorded by Put.
func (c *QueryCache) Lookup(query string) ([]float32, string, bool) {
	key := HashKey(query)
	c.mu.Lock()
	elem, ok := c.items[key]
	var (
		vec    []float32
		origin string
	)
	if ok {
		e := elem.Value.(*entry)
		vec = append([]float32(nil), e.vec...)
		origin = e.origin
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, "", false
	}
	c.hits.Add(1)
	return vec, origin, true
}

// Set stores an embedding for query. Re-setting a key replaces the value
// without moving it in the eviction order.
func (c *QueryCache) Set(query string, vec []float32) {
	c.Put(query, vec, "")
}

// Put stores an embedding together with the provider that produced it.
func (c *QueryCache) Put(query string, vec []float32, origin string) {
	if len(vec) == 0 {
		return
	}
	key := HashKey(query)
	cp := append([]float32(nil), vec...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry)
		e.vec = cp
		e.origin = origin
		return
	}
	c.items[key] = c.order.PushBack(&entry{key: key, vec: cp, origin: origin})

	if c.order.Len() > c.capacity {
		for i := 0; i < c.evictBatch; i++ {
			oldest := c.order.Front()
			if oldest == nil {
				break
			}
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}

// Clear removes all entries.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Len returns the number of cached queries.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *QueryCache) Stats() Stats {
	return Stats{Size: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// HashKey normalizes whitespace in the query and hashes it.
func HashKey(query string) string {
	h := sha256.Sum256([]byte(strings.Join(strings.Fields(query), " ")))
	return hex.EncodeToString(h[:])
}
