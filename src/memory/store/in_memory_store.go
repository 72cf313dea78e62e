package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// InMemoryStore keeps memories in a map. Transactions run against a private
// copy that replaces the live data only when fn succeeds; other callers wait
// until the transaction ends.
type InMemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*model.Memory
	nowFn func() time.Time
}

var (
	_ MemoryStore = (*InMemoryStore)(nil)
	_ OwnerLister = (*InMemoryStore)(nil)
)

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]*model.Memory), nowFn: time.Now}
}

// WithClock overrides the time source used for assigned timestamps.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.nowFn = now
	return s
}

func (s *InMemoryStore) Insert(_ context.Context, m *model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prepareInsert(m, s.nowFn().UTC())
	s.data[m.ID] = m.Clone()
	return nil
}

func (s *InMemoryStore) FindExactMatch(_ context.Context, ownerID, content string, typ model.MemoryType) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *model.Memory
	for _, m := range s.data {
		if m.OwnerID != ownerID || m.Type != typ || m.Content != content {
			continue
		}
		if found == nil || m.CreatedAt.Before(found.CreatedAt) {
			found = m
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found.Clone(), nil
}

func (s *InMemoryStore) Get(_ context.Context, ownerID, id string) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[id]
	if !ok || m.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (s *InMemoryStore) Query(_ context.Context, q model.Query) ([]*model.Memory, error) {
	s.mu.RLock()
	rows := make([]*model.Memory, 0, len(s.data))
	for _, m := range s.data {
		if matches(m, q) {
			rows = append(rows, m.Clone())
		}
	}
	s.mu.RUnlock()

	sortMemories(rows, q.Order)
	return paginate(rows, q.Offset, q.Limit), nil
}

func (s *InMemoryStore) Update(_ context.Context, m *model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data[m.ID]
	if !ok || existing.OwnerID != m.OwnerID {
		return ErrNotFound
	}
	cp := m.Clone()
	cp.CreatedAt = existing.CreatedAt
	cp.Tags = model.NormalizeTags(cp.Tags)
	s.data[m.ID] = cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, ownerID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if m, ok := s.data[id]; ok && m.OwnerID == ownerID {
			delete(s.data, id)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx MemoryStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]*model.Memory, len(s.data))
	for id, m := range s.data {
		snapshot[id] = m.Clone()
	}
	tx := &InMemoryStore{data: snapshot, nowFn: s.nowFn}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *InMemoryStore) Owners(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var owners []string
	for _, m := range s.data {
		if _, ok := seen[m.OwnerID]; ok {
			continue
		}
		seen[m.OwnerID] = struct{}{}
		owners = append(owners, m.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

// Len returns the number of stored memories across all owners.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *InMemoryStore) Close() error { return nil }
