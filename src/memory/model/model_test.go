package model

import (
	"math"
	"strings"
	"testing"
)

func TestSimilarityIdenticalAndOpposite(t *testing.T) {
	a := []float32{1, 2, 3}
	if got := Similarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: got %v want 1", got)
	}
	b := []float32{-1, -2, -3}
	if got := Similarity(a, b); math.Abs(got) > 1e-9 {
		t.Fatalf("opposite vectors: got %v want 0", got)
	}
	c := []float32{0, 0, 1}
	d := []float32{1, 0, 0}
	if got := Similarity(c, d); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("orthogonal vectors: got %v want 0.5", got)
	}
}

func TestSimilarityZeroPadsShorterVector(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0, 1}
	want := (1/math.Sqrt(2) + 1) / 2
	if got := Similarity(a, b); math.Abs(got-want) > 1e-6 {
		t.Fatalf("padded similarity: got %v want %v", got, want)
	}
	if Similarity(a, b) != Similarity(b, a) {
		t.Fatalf("similarity must be symmetric")
	}
}

func TestSimilarityZeroNorm(t *testing.T) {
	if got := Similarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("zero norm: got %v want 0", got)
	}
	if got := Similarity(nil, []float32{1}); got != 0 {
		t.Fatalf("empty vector: got %v want 0", got)
	}
}

func TestL2Normalize(t *testing.T) {
	v := L2Normalize([]float64{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected normalized vector %v", v)
	}
	zero := L2Normalize([]float64{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("zero vector should stay zero: %v", zero)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" b", "a", "", "b", "a "})
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("unexpected tags %v", got)
	}
	if got := UnionTags([]string{"x"}, []string{"y", "x"}); strings.Join(got, ",") != "x,y" {
		t.Fatalf("unexpected union %v", got)
	}
	if got := NormalizeTags(nil); got == nil || len(got) != 0 {
		t.Fatalf("nil tags should normalize to empty slice")
	}
}

func TestNormalizeContent(t *testing.T) {
	if NormalizeContent("  Hello World ") != NormalizeContent("hello world") {
		t.Fatalf("expected trimmed, case-folded content to match")
	}
}

func TestTruncateContent(t *testing.T) {
	long := strings.Repeat("é", MaxContentRunes+5)
	got := TruncateContent(long)
	if n := len([]rune(got)); n != MaxContentRunes {
		t.Fatalf("expected %d runes, got %d", MaxContentRunes, n)
	}
	if TruncateContent("short") != "short" {
		t.Fatalf("short content should be untouched")
	}
}

func TestClampRelevance(t *testing.T) {
	m := &Memory{RelevanceScore: 4.95}
	m.AddRelevance(0.1)
	if m.RelevanceScore != MaxRelevance {
		t.Fatalf("expected clamp to %v, got %v", MaxRelevance, m.RelevanceScore)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := &Memory{Tags: []string{"a"}, Embedding: []float32{1}}
	cp := m.Clone()
	cp.Tags[0] = "b"
	cp.Embedding[0] = 2
	if m.Tags[0] != "a" || m.Embedding[0] != 1 {
		t.Fatalf("clone shares backing arrays")
	}
}

func TestDraftValidate(t *testing.T) {
	ok := Draft{OwnerID: "u1", Content: "hi", Type: TypeUser, Tags: []string{"crm"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}
	bad := Draft{OwnerID: "u1", Content: "hi", Type: "robot"}
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "user, session, agent") {
		t.Fatalf("expected type error, got %v", err)
	}
	longTag := Draft{OwnerID: "u1", Content: "hi", Type: TypeAgent, Tags: []string{strings.Repeat("t", 51)}}
	if err := longTag.Validate(); err == nil {
		t.Fatalf("expected tag length error")
	}
	longCat := Draft{OwnerID: "u1", Content: "hi", Type: TypeSession, Category: strings.Repeat("c", 101)}
	if err := longCat.Validate(); err == nil {
		t.Fatalf("expected category length error")
	}
}

func TestMemoryTypes(t *testing.T) {
	types := MemoryTypes()
	if len(types) != 3 {
		t.Fatalf("expected 3 memory types, got %d", len(types))
	}
	for _, info := range types {
		if !info.Value.Valid() {
			t.Fatalf("listed type %q is not valid", info.Value)
		}
	}
}
