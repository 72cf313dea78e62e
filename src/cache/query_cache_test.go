package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestQueryCacheGetSet(t *testing.T) {
	c := NewQueryCache(10, 2)
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss")
	}
	c.Set("pricing", []float32{1, 2})
	got, ok := c.Get("pricing")
	if !ok || len(got) != 2 || got[1] != 2 {
		t.Fatalf("unexpected cached value %v %v", got, ok)
	}
	if _, ok := c.Get("  pricing  "); !ok {
		t.Fatalf("expected whitespace-normalized key to hit")
	}
	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Size != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestQueryCacheCopiesVectors(t *testing.T) {
	c := NewQueryCache(10, 2)
	vec := []float32{1}
	c.Set("q", vec)
	vec[0] = 9
	got, _ := c.Get("q")
	if got[0] != 1 {
		t.Fatalf("cache aliased caller slice on Set")
	}
	got[0] = 7
	again, _ := c.Get("q")
	if again[0] != 1 {
		t.Fatalf("cache aliased returned slice on Get")
	}
}

func TestQueryCacheEvictsOldestBatch(t *testing.T) {
	c := NewQueryCache(5, 2)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("q%d", i), []float32{float32(i)})
	}
	// Reads must not protect an entry from FIFO eviction.
	if _, ok := c.Get("q0"); !ok {
		t.Fatalf("expected q0 present before overflow")
	}
	c.Set("q5", []float32{5})

	if c.Len() != 4 {
		t.Fatalf("expected 4 entries after evicting a batch of 2, got %d", c.Len())
	}
	for _, gone := range []string{"q0", "q1"} {
		if _, ok := c.Get(gone); ok {
			t.Fatalf("expected %s evicted", gone)
		}
	}
	for _, kept := range []string{"q2", "q3", "q4", "q5"} {
		if _, ok := c.Get(kept); !ok {
			t.Fatalf("expected %s kept", kept)
		}
	}
}

func TestQueryCacheResetKeepsPosition(t *testing.T) {
	c := NewQueryCache(3, 1)
	c.Set("a", []float32{1})
	c.Set("b", []float32{1})
	c.Set("c", []float32{1})
	c.Set("a", []float32{2})
	c.Set("d", []float32{1})
	if _, ok := c.Get("a"); ok {
		t.Fatalf("re-set must not refresh insertion order")
	}
}

func TestQueryCacheClear(t *testing.T) {
	c := NewQueryCache(0, 0)
	c.Set("a", []float32{1})
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear")
	}
	c.Set("b", []float32{1})
	if c.Len() != 1 {
		t.Fatalf("cache unusable after Clear")
	}
}

func TestQueryCacheKeepsOrigin(t *testing.T) {
	c := NewQueryCache(0, 0)
	c.Put("a", []float32{1}, "fallback")
	vec, origin, ok := c.Lookup("a")
	if !ok || origin != "fallback" || len(vec) != 1 {
		t.Fatalf("unexpected lookup: %v %q %v", vec, origin, ok)
	}
	c.Put("a", []float32{2}, "openai:text-embedding-3-small")
	if _, origin, _ := c.Lookup("a"); origin != "openai:text-embedding-3-small" {
		t.Fatalf("expected origin to be replaced, got %q", origin)
	}
}

func TestQueryCacheIgnoresEmptyVectors(t *testing.T) {
	c := NewQueryCache(2, 1)
	c.Set("a", nil)
	if c.Len() != 0 {
		t.Fatalf("empty vectors should not be cached")
	}
}

func TestQueryCacheConcurrentAccess(t *testing.T) {
	c := NewQueryCache(50, 10)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("q%d", (g*200+i)%120)
				c.Set(key, []float32{float32(i)})
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Fatalf("cache exceeded capacity: %d", c.Len())
	}
}

func BenchmarkQueryCacheSet(b *testing.B) {
	c := NewQueryCache(DefaultCapacity, DefaultEvictBatch)
	vec := make([]float32, 1536)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(fmt.Sprintf("query %d", i), vec)
	}
}

func BenchmarkQueryCacheGet(b *testing.B) {
	c := NewQueryCache(DefaultCapacity, DefaultEvictBatch)
	vec := make([]float32, 1536)
	for i := 0; i < 100; i++ {
		c.Set(fmt.Sprintf("query %d", i), vec)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(fmt.Sprintf("query %d", i%100))
	}
}
