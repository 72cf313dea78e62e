package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/embed"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// keywordEmbedder maps a few CRM keywords onto axes of a 3-d space.
type keywordEmbedder struct {
	calls atomic.Int64
}

func (k *keywordEmbedder) Name() string { return "keywords" }

func (k *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	k.calls.Add(1)
	text = strings.ToLower(text)
	vec := []float32{0, 0, 0}
	for i, word := range []string{"pricing", "renewal", "lunch"} {
		if strings.Contains(text, word) {
			vec[i] = 1
		}
	}
	if vec[0] == 0 && vec[1] == 0 && vec[2] == 0 {
		vec = []float32{1, 1, 1}
	}
	return vec, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("quota exceeded")
}

func newKeywordEngine(t *testing.T, opts Options) (*Engine, *store.InMemoryStore, *keywordEmbedder) {
	t.Helper()
	st := store.NewInMemoryStore().WithClock(fixedClock)
	kw := &keywordEmbedder{}
	opts.Clock = fixedClock
	eng := New(st, opts).WithEmbedder(embed.NewResolver(kw, nil, embed.ResolverOptions{Dimensions: 3}))
	return eng, st, kw
}

func mustAdd(t *testing.T, eng *Engine, req AddRequest) *model.Memory {
	t.Helper()
	if req.OwnerID == "" {
		req.OwnerID = "1"
	}
	if req.Type == "" {
		req.Type = model.TypeUser
	}
	m, err := eng.Add(context.Background(), req)
	if err != nil {
		t.Fatalf("add %q: %v", req.Content, err)
	}
	return m
}

func mustInsert(t *testing.T, st store.MemoryStore, m *model.Memory) *model.Memory {
	t.Helper()
	if m.OwnerID == "" {
		m.OwnerID = "1"
	}
	if m.Type == "" {
		m.Type = model.TypeUser
	}
	if err := st.Insert(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return m
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAddReaffirmsExactDuplicate(t *testing.T) {
	eng, st, kw := newKeywordEngine(t, Options{})

	first := mustAdd(t, eng, AddRequest{Content: "Pricing call with Acme", Tags: []string{"deal"}})
	second := mustAdd(t, eng, AddRequest{Content: "Pricing call with Acme", Tags: []string{"acme", "deal"}, Category: "sales"})

	if first.ID != second.ID {
		t.Fatalf("expected the same memory, got %s and %s", first.ID, second.ID)
	}
	if st.Len() != 1 {
		t.Fatalf("expected one stored row, got %d", st.Len())
	}
	if !almostEqual(second.RelevanceScore, 0.1) {
		t.Fatalf("expected relevance 0.1, got %v", second.RelevanceScore)
	}
	if strings.Join(second.Tags, ",") != "acme,deal" || second.Category != "sales" {
		t.Fatalf("expected merged tags and filled category, got %v %q", second.Tags, second.Category)
	}
	if kw.calls.Load() != 1 {
		t.Fatalf("re-affirmation must not embed again, provider called %d times", kw.calls.Load())
	}
	stored, _ := st.Get(context.Background(), "1", first.ID)
	if !almostEqual(stored.RelevanceScore, 0.1) {
		t.Fatalf("stored relevance not updated: %v", stored.RelevanceScore)
	}
	if snap := eng.MetricsSnapshot(); snap.Added != 1 || snap.Reaffirmed != 1 {
		t.Fatalf("unexpected metrics %+v", snap)
	}
}

func TestAddKeepsCategoryAndSeparatesTypes(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	mustAdd(t, eng, AddRequest{Content: "renewal due", Category: "accounts"})
	again := mustAdd(t, eng, AddRequest{Content: "renewal due", Category: "other"})
	if again.Category != "accounts" {
		t.Fatalf("existing category must be kept, got %q", again.Category)
	}
	mustAdd(t, eng, AddRequest{Content: "renewal due", Type: model.TypeAgent})
	if st.Len() != 2 {
		t.Fatalf("same content with another type is a new memory, got %d rows", st.Len())
	}
}

func TestAddBlankContentIsEmptyResult(t *testing.T) {
	eng, st, kw := newKeywordEngine(t, Options{})
	m, err := eng.Add(context.Background(), AddRequest{OwnerID: "1", Content: "  \n\t", Type: model.TypeUser})
	if m != nil || err != nil {
		t.Fatalf("expected nil, nil; got %v, %v", m, err)
	}
	if st.Len() != 0 || kw.calls.Load() != 0 {
		t.Fatalf("blank add must have no side effects")
	}
}

func TestAddRejectsInvalidRequest(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{})
	_, err := eng.Add(context.Background(), AddRequest{OwnerID: "1", Content: "x", Type: "team"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	_, err = eng.Add(context.Background(), AddRequest{Content: "x", Type: model.TypeUser})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for missing owner, got %v", err)
	}
}

func TestAddTruncatesContent(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{})
	m := mustAdd(t, eng, AddRequest{Content: strings.Repeat("a", model.MaxContentRunes+50)})
	if n := len([]rune(m.Content)); n != model.MaxContentRunes {
		t.Fatalf("expected %d runes, got %d", model.MaxContentRunes, n)
	}
}

func TestAddWithoutEmbeddingWhenProviderFails(t *testing.T) {
	st := store.NewInMemoryStore()
	eng := New(st, Options{}).WithEmbedder(embed.NewResolver(failingEmbedder{}, nil, embed.ResolverOptions{Dimensions: 3}))
	m := mustAdd(t, eng, AddRequest{Content: "quarterly pricing"})
	if m.HasEmbedding() || m.EmbeddingOrigin != "" {
		t.Fatalf("expected memory without embedding, got %v %q", m.Embedding, m.EmbeddingOrigin)
	}
	if eng.MetricsSnapshot().StoredUnembedded != 1 {
		t.Fatalf("expected unembedded counter to move")
	}
}

func TestAddUsesFallbackEmbeddings(t *testing.T) {
	eng := New(store.NewInMemoryStore(), Options{})
	m := mustAdd(t, eng, AddRequest{Content: "Call Dana about the renewal."})
	if len(m.Embedding) != embed.DefaultDimensions || m.EmbeddingOrigin != "fallback" {
		t.Fatalf("expected %d-d fallback vector, got %d %q", embed.DefaultDimensions, len(m.Embedding), m.EmbeddingOrigin)
	}
}

func TestAddBatchMergesInBatchDuplicates(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	out, err := eng.AddBatch(context.Background(), []AddRequest{
		{OwnerID: "1", Type: model.TypeUser, Content: "pricing memo", Tags: []string{"x"}},
		{OwnerID: "1", Type: model.TypeUser, Content: "lunch with Dana"},
		{OwnerID: "1", Type: model.TypeUser, Content: "pricing memo", Tags: []string{"y"}, Category: "sales"},
		{OwnerID: "1", Type: model.TypeUser, Content: " "},
	})
	if err != nil {
		t.Fatalf("add batch: %v", err)
	}
	if len(out) != 4 || out[3] != nil {
		t.Fatalf("unexpected batch output %v", out)
	}
	if out[0].ID != out[2].ID {
		t.Fatalf("duplicates in a batch must map to one memory")
	}
	if st.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", st.Len())
	}
	if strings.Join(out[0].Tags, ",") != "x,y" || out[0].Category != "sales" || out[0].RelevanceScore != 0 {
		t.Fatalf("unexpected merged memory %+v", out[0])
	}
}

func TestAddBatchReportsInvalidRequest(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{})
	_, err := eng.AddBatch(context.Background(), []AddRequest{
		{OwnerID: "1", Type: model.TypeUser, Content: "ok"},
		{OwnerID: "1", Type: "bogus", Content: "bad"},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestSearchRanksBySimilarityRelevanceAndRecency(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	pricing := mustAdd(t, eng, AddRequest{Content: "pricing sheet for Acme"})
	mustAdd(t, eng, AddRequest{Content: "renewal call notes"})
	mustAdd(t, eng, AddRequest{Content: "lunch with team"})
	old := mustInsert(t, st, &model.Memory{
		Content:         "old pricing notes",
		Embedding:       []float32{1, 0, 0},
		EmbeddingOrigin: "keywords",
		CreatedAt:       testNow.Add(-30 * 24 * time.Hour),
		UpdatedAt:       testNow.Add(-30 * 24 * time.Hour),
	})

	results, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].Memory.ID != pricing.ID || !almostEqual(results[0].SimilarityScore, 1.1) {
		t.Fatalf("expected fresh pricing memory first with 1.1, got %q %v", results[0].Memory.Content, results[0].SimilarityScore)
	}
	if results[1].Memory.ID != old.ID || !almostEqual(results[1].SimilarityScore, 1+1.0/31) {
		t.Fatalf("expected 30 day old memory second, got %q %v", results[1].Memory.Content, results[1].SimilarityScore)
	}
	for _, r := range results[2:] {
		if !almostEqual(r.SimilarityScore, 0.6) {
			t.Fatalf("orthogonal memories should score 0.6, got %v", r.SimilarityScore)
		}
	}
}

func TestSearchRelevanceLiftsScore(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{})
	renewal := mustAdd(t, eng, AddRequest{Content: "renewal call notes"})
	if ok, err := eng.Boost(context.Background(), "1", renewal.ID, 1.0); !ok || err != nil {
		t.Fatalf("boost: %v %v", ok, err)
	}
	results, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || !almostEqual(results[0].SimilarityScore, 0.5+0.1+0.1) {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestSearchLimitAndMinSimilarity(t *testing.T) {
	eng := New(store.NewInMemoryStore(), Options{})
	for i := 0; i < 20; i++ {
		mustAdd(t, eng, AddRequest{Content: fmt.Sprintf("deal note %d about pricing for account %d", i, i*7)})
	}
	results, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing for the deal", Limit: 5})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 || len(results) > 5 {
		t.Fatalf("expected 1..5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.SimilarityScore < 0.3 {
			t.Fatalf("result below min similarity: %v", r.SimilarityScore)
		}
		if i > 0 && r.SimilarityScore > results[i-1].SimilarityScore {
			t.Fatalf("results not sorted by score")
		}
	}

	eng2, _, _ := newKeywordEngine(t, Options{})
	mustAdd(t, eng2, AddRequest{Content: "pricing"})
	mustAdd(t, eng2, AddRequest{Content: "lunch"})
	results, _ = eng2.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing", MinSimilarity: 0.7})
	if len(results) != 1 {
		t.Fatalf("expected min similarity to drop the orthogonal memory, got %d", len(results))
	}
}

func TestSearchClampsLimit(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{MaxLimit: 2})
	for _, c := range []string{"pricing a", "pricing b", "pricing c"} {
		mustAdd(t, eng, AddRequest{Content: c})
	}
	results, _ := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing", Limit: 100})
	if len(results) != 2 {
		t.Fatalf("expected limit capped at 2, got %d", len(results))
	}
}

func TestSearchBlankQuery(t *testing.T) {
	eng, _, kw := newKeywordEngine(t, Options{})
	results, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "   "})
	if err != nil || results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", results, err)
	}
	if kw.calls.Load() != 0 {
		t.Fatalf("blank query must not reach the provider")
	}
}

func TestSearchDegradesToSubstringMatching(t *testing.T) {
	st := store.NewInMemoryStore()
	eng := New(st, Options{}).WithEmbedder(embed.NewResolver(failingEmbedder{}, nil, embed.ResolverOptions{Dimensions: 3}))
	sheet := mustAdd(t, eng, AddRequest{Content: "Pricing sheet for Acme"})
	review := mustAdd(t, eng, AddRequest{Content: "updated pricing review"})
	mustAdd(t, eng, AddRequest{Content: "lunch plans"})
	mustAdd(t, eng, AddRequest{OwnerID: "2", Content: "pricing for someone else"})
	if ok, _ := eng.Boost(context.Background(), "1", review.ID, 0.5); !ok {
		t.Fatalf("boost failed")
	}

	results, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 substring matches, got %d", len(results))
	}
	if results[0].Memory.ID != review.ID || results[1].Memory.ID != sheet.ID {
		t.Fatalf("expected relevance order, got %q then %q", results[0].Memory.Content, results[1].Memory.Content)
	}
	for _, r := range results {
		if r.SimilarityScore != DegradedScore {
			t.Fatalf("degraded results score %v, got %v", DegradedScore, r.SimilarityScore)
		}
	}
	if snap := eng.MetricsSnapshot(); snap.DegradedSearches != 1 {
		t.Fatalf("expected degraded search to be counted, got %+v", snap)
	}
}

func TestSearchCachesQueryEmbedding(t *testing.T) {
	eng, _, kw := newKeywordEngine(t, Options{})
	mustAdd(t, eng, AddRequest{Content: "pricing"})
	before := kw.calls.Load()
	for i := 0; i < 3; i++ {
		if _, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing  update"}); err != nil {
			t.Fatalf("search: %v", err)
		}
	}
	if got := kw.calls.Load() - before; got != 1 {
		t.Fatalf("expected one provider call for repeated queries, got %d", got)
	}
	if stats := eng.CacheStats(); stats.Size != 1 || stats.Hits != 2 {
		t.Fatalf("unexpected cache stats %+v", stats)
	}
}

func TestSearchStrictEmbeddingOrigin(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{StrictEmbeddingOrigin: true})
	mustAdd(t, eng, AddRequest{Content: "pricing a"})
	mustInsert(t, st, &model.Memory{Content: "pricing b", Embedding: []float32{1, 0, 0}, EmbeddingOrigin: "fallback"})

	results, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.Content != "pricing a" {
		t.Fatalf("expected only same-origin candidates, got %+v", results)
	}
}

func TestSearchScopesByOwnerAndFilters(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{})
	mustAdd(t, eng, AddRequest{Content: "pricing user", Category: "sales"})
	mustAdd(t, eng, AddRequest{Content: "pricing agent", Type: model.TypeAgent, Category: "sales"})
	mustAdd(t, eng, AddRequest{OwnerID: "2", Content: "pricing other owner", Category: "sales"})

	results, _ := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing", Type: model.TypeAgent, Category: "sales"})
	if len(results) != 1 || results[0].Memory.Content != "pricing agent" {
		t.Fatalf("unexpected filtered results %+v", results)
	}
	if _, err := eng.Search(context.Background(), SearchRequest{Query: "pricing"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest without owner, got %v", err)
	}
}

func TestBoostClampsAndCaps(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	ctx := context.Background()
	high := mustInsert(t, st, &model.Memory{Content: "vip", RelevanceScore: 4.5})
	low := mustInsert(t, st, &model.Memory{Content: "minor"})

	if ok, err := eng.Boost(ctx, "1", high.ID, 10); !ok || err != nil {
		t.Fatalf("boost: %v %v", ok, err)
	}
	if got, _ := st.Get(ctx, "1", high.ID); got.RelevanceScore != model.MaxRelevance {
		t.Fatalf("expected relevance capped at 5, got %v", got.RelevanceScore)
	}
	if got, _ := st.Get(ctx, "1", high.ID); !got.UpdatedAt.Equal(testNow) {
		t.Fatalf("boost must touch updated_at")
	}

	eng.Boost(ctx, "1", low.ID, 0.0001)
	if got, _ := st.Get(ctx, "1", low.ID); !almostEqual(got.RelevanceScore, 0.01) {
		t.Fatalf("expected minimum boost 0.01, got %v", got.RelevanceScore)
	}
	eng.Boost(ctx, "1", low.ID, 3)
	if got, _ := st.Get(ctx, "1", low.ID); !almostEqual(got.RelevanceScore, 1.01) {
		t.Fatalf("expected boost clamped to 1.0, got %v", got.RelevanceScore)
	}
}

func TestBoostMissingOrForeign(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	m := mustInsert(t, st, &model.Memory{Content: "private"})
	for _, tc := range []struct{ owner, id string }{{"1", "nope"}, {"2", m.ID}} {
		ok, err := eng.Boost(context.Background(), tc.owner, tc.id, 0.5)
		if ok || err != nil {
			t.Fatalf("expected false, nil for %v; got %v %v", tc, ok, err)
		}
	}
	if got, _ := st.Get(context.Background(), "1", m.ID); got.RelevanceScore != 0 {
		t.Fatalf("foreign boost mutated memory")
	}
	if eng.MetricsSnapshot().BoostMisses != 2 {
		t.Fatalf("expected two boost misses")
	}
}

func TestRelated(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	src := mustAdd(t, eng, AddRequest{Content: "pricing sheet"})
	follow := mustAdd(t, eng, AddRequest{Content: "pricing followup"})
	mustAdd(t, eng, AddRequest{Content: "pricing memo", Type: model.TypeSession})
	mustAdd(t, eng, AddRequest{Content: "renewal"})
	bare := mustInsert(t, st, &model.Memory{Content: "no vector"})

	results, err := eng.Related(context.Background(), "1", src.ID, 5)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(results) != 2 || results[0].Memory.ID != follow.ID {
		t.Fatalf("unexpected related results %+v", results)
	}
	for _, r := range results {
		if r.Memory.ID == src.ID || r.Memory.Type != model.TypeUser {
			t.Fatalf("related must exclude the source and other types")
		}
	}
	for _, id := range []string{"missing", bare.ID} {
		results, err := eng.Related(context.Background(), "1", id, 5)
		if err != nil || len(results) != 0 {
			t.Fatalf("expected empty related for %s, got %v %v", id, results, err)
		}
	}
	if results, _ := eng.Related(context.Background(), "2", src.ID, 5); len(results) != 0 {
		t.Fatalf("foreign owner must not see related memories")
	}
}

func TestRelatedLimits(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{})
	src := mustAdd(t, eng, AddRequest{Content: "pricing sheet"})
	for i := 0; i < 25; i++ {
		mustAdd(t, eng, AddRequest{Content: fmt.Sprintf("pricing note %d", i)})
	}
	for limit, want := range map[int]int{0: 5, 3: 3, 100: 20} {
		results, err := eng.Related(context.Background(), "1", src.ID, limit)
		if err != nil {
			t.Fatalf("related: %v", err)
		}
		if len(results) != want {
			t.Fatalf("limit %d: expected %d results, got %d", limit, want, len(results))
		}
	}
	if results, _ := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "pricing"}); len(results) != 10 {
		t.Fatalf("search keeps its own default limit, got %d", len(results))
	}
}

type deadlineStore struct {
	store.MemoryStore
}

func (deadlineStore) Query(context.Context, model.Query) ([]*model.Memory, error) {
	return nil, fmt.Errorf("query memories: %w", context.DeadlineExceeded)
}

func TestDeadlineIsNotAStoreError(t *testing.T) {
	eng := New(deadlineStore{store.NewInMemoryStore()}, Options{Clock: fixedClock})
	_, err := eng.Stats(context.Background(), "1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if errors.Is(err, ErrStore) {
		t.Fatalf("deadline must not be reported as a store failure: %v", err)
	}
	if n := eng.MetricsSnapshot().StoreErrors; n != 0 {
		t.Fatalf("expected no store errors counted, got %d", n)
	}
}

type graphStore struct {
	*store.InMemoryStore
	matches []store.TagMatch
	limit   int
}

func (g *graphStore) RelatedByTags(_ context.Context, _, _ string, limit int) ([]store.TagMatch, error) {
	g.limit = limit
	return g.matches, nil
}

func TestRelatedByTags(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	src := mustInsert(t, st, &model.Memory{Content: "src", Tags: []string{"acme", "deal", "q3"}})
	a := mustInsert(t, st, &model.Memory{Content: "a", Tags: []string{"acme", "deal"}})
	b := mustInsert(t, st, &model.Memory{Content: "b", Tags: []string{"q3"}})
	mustInsert(t, st, &model.Memory{Content: "c", Tags: []string{"other"}})
	mustInsert(t, st, &model.Memory{OwnerID: "2", Content: "d", Tags: []string{"acme"}})

	matches, err := eng.RelatedByTags(context.Background(), "1", src.ID, 10)
	if err != nil {
		t.Fatalf("related by tags: %v", err)
	}
	if len(matches) != 2 || matches[0].Memory.ID != a.ID || matches[0].SharedTags != 2 || matches[1].Memory.ID != b.ID {
		t.Fatalf("unexpected matches %+v", matches)
	}

	gs := &graphStore{InMemoryStore: store.NewInMemoryStore(), matches: []store.TagMatch{{Memory: a, SharedTags: 2}}}
	graphEngine := New(gs, Options{})
	matches, err = graphEngine.RelatedByTags(context.Background(), "1", src.ID, 0)
	if err != nil || len(matches) != 1 || gs.limit != 10 {
		t.Fatalf("expected tag graph to answer with default limit, got %v %v limit=%d", matches, err, gs.limit)
	}
}

func TestStatsAndCategories(t *testing.T) {
	eng, st, _ := newKeywordEngine(t, Options{})
	mustInsert(t, st, &model.Memory{Content: "a", Category: "sales", RelevanceScore: 1.0, Embedding: []float32{1, 0, 0}, CreatedAt: testNow})
	mustInsert(t, st, &model.Memory{Content: "b", Category: "sales", RelevanceScore: 0.5, CreatedAt: testNow.Add(-48 * time.Hour)})
	mustInsert(t, st, &model.Memory{Content: "c", Type: model.TypeAgent, Category: "ops", Embedding: []float32{0, 1, 0}, CreatedAt: testNow.Add(-10 * 24 * time.Hour)})
	mustInsert(t, st, &model.Memory{OwnerID: "2", Content: "d", Category: "hidden"})

	stats, err := eng.Stats(context.Background(), "1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalMemories != 3 || stats.ByType[model.TypeUser] != 2 || stats.ByType[model.TypeAgent] != 1 {
		t.Fatalf("unexpected totals %+v", stats)
	}
	if stats.ByCategory["sales"] != 2 || stats.ByCategory["ops"] != 1 || len(stats.ByCategory) != 2 {
		t.Fatalf("unexpected categories %+v", stats.ByCategory)
	}
	if stats.RecentMemories != 2 || stats.AverageRelevance != 0.5 || stats.EmbeddedMemories != 2 || stats.EmbeddingCoverage != 66.7 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	categories, err := eng.Categories(context.Background(), "1")
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if strings.Join(categories, ",") != "ops,sales" {
		t.Fatalf("unexpected categories %v", categories)
	}

	empty, _ := eng.Stats(context.Background(), "nobody")
	if empty.TotalMemories != 0 || empty.AverageRelevance != 0 || empty.EmbeddingCoverage != 0 {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}
