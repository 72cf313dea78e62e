package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// ErrNotFound is returned when a memory does not exist for the given owner.
var ErrNotFound = errors.New("memory not found")

// MemoryStore persists memories. Every call is scoped to an owner; rows of
// other owners are invisible.
type MemoryStore interface {
	// Insert stores a new memory, assigning ID and timestamps when unset.
	Insert(ctx context.Context, m *model.Memory) error
	// FindExactMatch returns the memory with identical content and type.
	FindExactMatch(ctx context.Context, ownerID, content string, typ model.MemoryType) (*model.Memory, error)
	Get(ctx context.Context, ownerID, id string) (*model.Memory, error)
	Query(ctx context.Context, q model.Query) ([]*model.Memory, error)
	// Update overwrites the mutable fields of an existing memory.
	Update(ctx context.Context, m *model.Memory) error
	// Delete removes ids belonging to owner and reports how many rows went away.
	Delete(ctx context.Context, ownerID string, ids []string) (int, error)
	// RunInTx runs fn against a transactional view. Returning an error rolls
	// every change back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx MemoryStore) error) error
	Close() error
}

// SchemaInitializer allows stores to expose optional schema/bootstrap routines.
type SchemaInitializer interface {
	CreateSchema(ctx context.Context) error
}

// OwnerLister is implemented by stores that can enumerate owners.
type OwnerLister interface {
	Owners(ctx context.Context) ([]string, error)
}

// TagMatch is a memory sharing tags with another one.
type TagMatch struct {
	Memory     *model.Memory `json:"memory"`
	SharedTags int           `json:"shared_tags"`
}

// TagGraph is implemented by stores that index memory tags as a graph.
type TagGraph interface {
	RelatedByTags(ctx context.Context, ownerID, id string, limit int) ([]TagMatch, error)
}

// prepareInsert fills store-assigned fields.
func prepareInsert(m *model.Memory, now time.Time) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	m.Tags = model.NormalizeTags(m.Tags)
	if len(m.Embedding) == 0 {
		m.Embedding = nil
		m.EmbeddingOrigin = ""
	}
}
