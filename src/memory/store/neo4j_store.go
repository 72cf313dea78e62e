package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// Neo4jAccessMode controls whether a session is opened for read or write operations.
type Neo4jAccessMode string

const (
	AccessModeWrite Neo4jAccessMode = "write"
	AccessModeRead  Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of Neo4j session configuration we require.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// Neo4jDriver abstracts the driver capabilities the store uses, so tests can
// supply fakes without the real driver (which sits behind the neo4j build tag).
type Neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	BeginTransaction(ctx context.Context) (neo4jTransaction, error)
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jTransaction interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// Neo4jStore decorates a MemoryStore with a tag graph kept in Neo4j:
// (:Memory)-[:TAGGED]->(:Tag). Memory rows stay in the base store; the graph
// only answers RelatedByTags.
type Neo4jStore struct {
	base     MemoryStore
	driver   Neo4jDriver
	database string

	// pending collects graph writes made inside RunInTx; they are applied
	// only after the base transaction commits.
	pending *graphOps
}

type graphOps struct {
	mu      sync.Mutex
	upserts []*model.Memory
	deletes map[string][]string
}

var (
	_ MemoryStore       = (*Neo4jStore)(nil)
	_ TagGraph          = (*Neo4jStore)(nil)
	_ SchemaInitializer = (*Neo4jStore)(nil)
	_ OwnerLister       = (*Neo4jStore)(nil)
)

// ErrNeo4jUnavailable is returned when graph operations are attempted without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

func NewNeo4jStore(base MemoryStore, driver Neo4jDriver, database string) (*Neo4jStore, error) {
	if base == nil {
		return nil, errors.New("base memory store is nil")
	}
	if driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	return &Neo4jStore{base: base, driver: driver, database: database}, nil
}

func (s *Neo4jStore) Insert(ctx context.Context, m *model.Memory) error {
	if err := s.base.Insert(ctx, m); err != nil {
		return err
	}
	return s.upsert(ctx, m)
}

func (s *Neo4jStore) FindExactMatch(ctx context.Context, ownerID, content string, typ model.MemoryType) (*model.Memory, error) {
	return s.base.FindExactMatch(ctx, ownerID, content, typ)
}

func (s *Neo4jStore) Get(ctx context.Context, ownerID, id string) (*model.Memory, error) {
	return s.base.Get(ctx, ownerID, id)
}

func (s *Neo4jStore) Query(ctx context.Context, q model.Query) ([]*model.Memory, error) {
	return s.base.Query(ctx, q)
}

func (s *Neo4jStore) Update(ctx context.Context, m *model.Memory) error {
	if err := s.base.Update(ctx, m); err != nil {
		return err
	}
	return s.upsert(ctx, m)
}

func (s *Neo4jStore) Delete(ctx context.Context, ownerID string, ids []string) (int, error) {
	n, err := s.base.Delete(ctx, ownerID, ids)
	if err != nil {
		return n, err
	}
	if s.pending != nil {
		s.pending.mu.Lock()
		if s.pending.deletes == nil {
			s.pending.deletes = make(map[string][]string)
		}
		s.pending.deletes[ownerID] = append(s.pending.deletes[ownerID], ids...)
		s.pending.mu.Unlock()
		return n, nil
	}
	return n, s.deleteNodes(ctx, ownerID, ids)
}

// Owners delegates to the base store.
func (s *Neo4jStore) Owners(ctx context.Context) ([]string, error) {
	lister, ok := s.base.(OwnerLister)
	if !ok {
		return nil, fmt.Errorf("base store %T cannot list owners", s.base)
	}
	return lister.Owners(ctx)
}

func (s *Neo4jStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx MemoryStore) error) error {
	if s.pending != nil {
		return fn(ctx, s)
	}
	ops := &graphOps{}
	err := s.base.RunInTx(ctx, func(ctx context.Context, tx MemoryStore) error {
		return fn(ctx, &Neo4jStore{base: tx, driver: s.driver, database: s.database, pending: ops})
	})
	if err != nil {
		return err
	}
	return s.flush(ctx, ops)
}

func (s *Neo4jStore) flush(ctx context.Context, ops *graphOps) error {
	var err error
	for owner, ids := range ops.deletes {
		err = multierr.Append(err, s.deleteNodes(ctx, owner, ids))
	}
	for _, m := range ops.upserts {
		err = multierr.Append(err, s.writeTags(ctx, m))
	}
	return err
}

func (s *Neo4jStore) upsert(ctx context.Context, m *model.Memory) error {
	if s.pending != nil {
		s.pending.mu.Lock()
		s.pending.upserts = append(s.pending.upserts, m.Clone())
		s.pending.mu.Unlock()
		return nil
	}
	return s.writeTags(ctx, m)
}

// RelatedByTags returns the owner's memories sharing tags with id, most shared first.
func (s *Neo4jStore) RelatedByTags(ctx context.Context, ownerID, id string, limit int) ([]TagMatch, error) {
	if limit <= 0 {
		return nil, nil
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: s.database})
	if err != nil {
		return nil, fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)

	result, err := session.Run(ctx, neo4jRelatedByTagsCypher, map[string]any{
		"id":    id,
		"owner": ownerID,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j related by tags: %w", err)
	}
	defer result.Close(ctx)

	var matches []TagMatch
	for result.Next(ctx) {
		rec := result.Record()
		if rec == nil {
			continue
		}
		rawID, _ := rec.Get("id")
		rawShared, _ := rec.Get("shared")
		m, err := s.base.Get(ctx, ownerID, toString(rawID))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		matches = append(matches, TagMatch{Memory: m, SharedTags: int(toInt64(rawShared))})
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *Neo4jStore) writeTags(ctx context.Context, m *model.Memory) error {
	return s.write(ctx, neo4jUpsertTagsCypher, map[string]any{
		"id":          m.ID,
		"owner":       m.OwnerID,
		"memory_type": string(m.Type),
		"category":    m.Category,
		"tags":        model.NormalizeTags(m.Tags),
	})
}

func (s *Neo4jStore) deleteNodes(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.write(ctx, neo4jDeleteMemoriesCypher, map[string]any{"owner": ownerID, "ids": ids})
}

func (s *Neo4jStore) write(ctx context.Context, query string, params map[string]any) error {
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("neo4j begin tx: %w", err)
	}
	defer tx.Close(ctx)

	res, err := tx.Run(ctx, query, params)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("neo4j write: %w", err)
	}
	if res != nil {
		_ = res.Close(ctx)
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("neo4j commit: %w", err)
	}
	return nil
}

// CreateSchema delegates to the base store when it has a schema and ensures graph constraints.
func (s *Neo4jStore) CreateSchema(ctx context.Context) error {
	if initializer, ok := s.base.(SchemaInitializer); ok {
		if err := initializer.CreateSchema(ctx); err != nil {
			return err
		}
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	queries := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE CONSTRAINT IF NOT EXISTS FOR (t:Tag) REQUIRE (t.owner_id, t.name) IS UNIQUE",
		"CREATE INDEX IF NOT EXISTS FOR (m:Memory) ON (m.owner_id)",
	}
	for _, query := range queries {
		res, runErr := session.Run(ctx, query, nil)
		if runErr != nil {
			return fmt.Errorf("neo4j schema query: %w", runErr)
		}
		if res != nil {
			_ = res.Close(ctx)
		}
	}
	return nil
}

// Close releases both the base store and the Neo4j driver.
func (s *Neo4jStore) Close() error {
	if s.pending != nil {
		return nil
	}
	return multierr.Combine(s.base.Close(), s.driver.Close(context.Background()))
}

const (
	neo4jUpsertTagsCypher = `
MERGE (m:Memory {id: $id})
SET m.owner_id = $owner,
    m.memory_type = $memory_type,
    m.category = $category
WITH m
OPTIONAL MATCH (m)-[r:TAGGED]->(:Tag)
DELETE r
WITH DISTINCT m
UNWIND $tags AS tag
MERGE (t:Tag {owner_id: $owner, name: tag})
MERGE (m)-[:TAGGED]->(t)
`
	neo4jDeleteMemoriesCypher = `
MATCH (m:Memory)
WHERE m.owner_id = $owner AND m.id IN $ids
DETACH DELETE m
`
	neo4jRelatedByTagsCypher = `
MATCH (src:Memory {id: $id, owner_id: $owner})-[:TAGGED]->(t:Tag)<-[:TAGGED]-(other:Memory {owner_id: $owner})
WHERE other.id <> src.id
RETURN other.id AS id, count(DISTINCT t) AS shared
ORDER BY shared DESC, id ASC
LIMIT $limit
`
)

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	}
	return 0
}
