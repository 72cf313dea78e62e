package model

import (
	"time"
)

// MemoryType classifies who a memory belongs to conceptually.
type MemoryType string

const (
	TypeUser    MemoryType = "user"
	TypeSession MemoryType = "session"
	TypeAgent   MemoryType = "agent"
)

// MaxContentRunes is the longest content stored for a memory.
const MaxContentRunes = 10000

// MaxRelevance caps every relevance mutation.
const MaxRelevance = 5.0

// Valid reports whether t is one of the known memory types.
func (t MemoryType) Valid() bool {
	switch t {
	case TypeUser, TypeSession, TypeAgent:
		return true
	}
	return false
}

// Memory is a single stored unit of knowledge scoped to an owner.
type Memory struct {
	ID              string     `json:"id" bson:"_id"`
	OwnerID         string     `json:"owner_id" bson:"owner_id"`
	Content         string     `json:"content" bson:"content"`
	Type            MemoryType `json:"memory_type" bson:"memory_type"`
	Category        string     `json:"category,omitempty" bson:"category"`
	Tags            []string   `json:"tags" bson:"tags"`
	SourcePlatform  string     `json:"source_platform,omitempty" bson:"source_platform"`
	Embedding       []float32  `json:"-" bson:"embedding,omitempty"`
	EmbeddingOrigin string     `json:"embedding_origin,omitempty" bson:"embedding_origin,omitempty"`
	RelevanceScore  float64    `json:"relevance_score" bson:"relevance_score"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// HasEmbedding reports whether the memory carries a vector.
func (m *Memory) HasEmbedding() bool {
	return m != nil && len(m.Embedding) > 0
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (m *Memory) Clone() *Memory {
	if m == nil {
		return nil
	}
	cp := *m
	if m.Tags != nil {
		cp.Tags = append([]string(nil), m.Tags...)
	}
	if m.Embedding != nil {
		cp.Embedding = append([]float32(nil), m.Embedding...)
	}
	return &cp
}

// AddRelevance raises the relevance score by delta, clamped to MaxRelevance.
func (m *Memory) AddRelevance(delta float64) {
	m.RelevanceScore = ClampRelevance(m.RelevanceScore + delta)
}

// ClampRelevance keeps a score inside [0, MaxRelevance].
func ClampRelevance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > MaxRelevance {
		return MaxRelevance
	}
	return v
}

// SearchResult pairs a memory with the final ranking score it received.
type SearchResult struct {
	Memory          *Memory `json:"memory"`
	SimilarityScore float64 `json:"similarity_score"`
}

// TypeInfo describes a memory type for listings.
type TypeInfo struct {
	Value       MemoryType `json:"value"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
}

// MemoryTypes lists the supported memory types.
func MemoryTypes() []TypeInfo {
	return []TypeInfo{
		{Value: TypeUser, Label: "User Memory", Description: "Long-term memories about user preferences, business context, and relationships"},
		{Value: TypeSession, Label: "Session Memory", Description: "Context from current conversations and interactions"},
		{Value: TypeAgent, Label: "Agent Memory", Description: "AI agent insights, learnings, and decision patterns"},
	}
}
