package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

func TestOperationsEmitSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	eng, _, _ := newKeywordEngine(t, Options{})
	eng.WithTracer(tp.Tracer("test"))
	ctx := context.Background()

	m := mustAdd(t, eng, AddRequest{Content: "pricing"})
	if _, err := eng.Search(ctx, SearchRequest{OwnerID: "1", Query: "pricing"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if _, err := eng.Boost(ctx, "1", m.ID, 0.2); err != nil {
		t.Fatalf("boost: %v", err)
	}
	if _, err := eng.Optimize(ctx, "1"); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	want := []string{"Engine.Add", "Engine.Search", "Engine.Boost", "Engine.Optimize"}
	spans := recorder.Ended()
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), len(spans))
	}
	for i, name := range want {
		if spans[i].Name() != name {
			t.Fatalf("span %d: expected %s, got %s", i, name, spans[i].Name())
		}
	}
}

func TestFailedOperationMarksSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	base := store.NewInMemoryStore()
	mustInsert(t, base, &model.Memory{Content: "dup"})
	mustInsert(t, base, &model.Memory{Content: "dup"})
	eng := New(failingDeleteStore{base}, Options{}).WithTracer(tp.Tracer("test"))

	if _, err := eng.Optimize(context.Background(), "1"); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("expected one errored span, got %+v", spans)
	}
}

func TestRegisterMetrics(t *testing.T) {
	eng, _, _ := newKeywordEngine(t, Options{})
	reg := prometheus.NewRegistry()
	if err := eng.RegisterMetrics(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	mustAdd(t, eng, AddRequest{Content: "pricing"})
	mustAdd(t, eng, AddRequest{Content: "pricing"})
	if _, err := eng.Search(context.Background(), SearchRequest{OwnerID: "1", Query: "lunch"}); err != nil {
		t.Fatalf("search: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] = c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				values[mf.GetName()] = g.GetValue()
			}
		}
	}
	checks := map[string]float64{
		"memory_added_total":                   1,
		"memory_reaffirmed_total":              1,
		"memory_searches_total":                1,
		"memory_query_cache_entries":           1,
		"memory_embedding_primary_calls_total": 2,
	}
	for name, want := range checks {
		if got, ok := values[name]; !ok || got != want {
			t.Fatalf("%s: expected %v, got %v (present=%v)", name, want, got, ok)
		}
	}

	if err := eng.RegisterMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
