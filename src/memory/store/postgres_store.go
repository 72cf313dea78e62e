package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements MemoryStore using Postgres + pgvector.
type PostgresStore struct {
	DB         *pgxpool.Pool
	q          pgQuerier
	tx         pgx.Tx
	dimensions int
	nowFn      func() time.Time
}

var (
	_ MemoryStore       = (*PostgresStore)(nil)
	_ SchemaInitializer = (*PostgresStore)(nil)
	_ OwnerLister       = (*PostgresStore)(nil)
)

const pgColumns = `id, owner_id, content, memory_type, category, tags, source_platform,
        embedding::text, embedding_origin, relevance_score, created_at, updated_at`

// NewPostgresStore connects to Postgres. dimensions sizes the vector column
// created by CreateSchema.
func NewPostgresStore(ctx context.Context, connStr string, dimensions int) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &PostgresStore{DB: db, q: db, dimensions: dimensions, nowFn: time.Now}, nil
}

func (ps *PostgresStore) Insert(ctx context.Context, m *model.Memory) error {
	prepareInsert(m, ps.nowFn().UTC())
	_, err := ps.q.Exec(ctx, `
                INSERT INTO memories (id, owner_id, content, memory_type, category, tags, source_platform,
                        embedding, embedding_origin, relevance_score, created_at, updated_at)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9, $10, $11, $12)
        `, m.ID, m.OwnerID, m.Content, string(m.Type), m.Category, m.Tags, m.SourcePlatform,
		vectorParam(m.Embedding), m.EmbeddingOrigin, m.RelevanceScore, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (ps *PostgresStore) FindExactMatch(ctx context.Context, ownerID, content string, typ model.MemoryType) (*model.Memory, error) {
	row := ps.q.QueryRow(ctx, `SELECT `+pgColumns+` FROM memories
                WHERE owner_id = $1 AND memory_type = $2 AND md5(content) = md5($3) AND content = $3
                ORDER BY created_at ASC LIMIT 1`, ownerID, string(typ), content)
	return scanPgMemory(row)
}

func (ps *PostgresStore) Get(ctx context.Context, ownerID, id string) (*model.Memory, error) {
	row := ps.q.QueryRow(ctx, `SELECT `+pgColumns+` FROM memories WHERE owner_id = $1 AND id = $2`, ownerID, id)
	return scanPgMemory(row)
}

func (ps *PostgresStore) Query(ctx context.Context, q model.Query) ([]*model.Memory, error) {
	tail, args := postgresDialect.buildQuery(q)
	rows, err := ps.q.Query(ctx, `SELECT `+pgColumns+` FROM memories`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		m, err := scanPgMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) Update(ctx context.Context, m *model.Memory) error {
	tag, err := ps.q.Exec(ctx, `
                UPDATE memories
                SET content = $3, category = $4, tags = $5, source_platform = $6,
                    embedding = $7::vector, embedding_origin = $8, relevance_score = $9, updated_at = $10
                WHERE owner_id = $1 AND id = $2
        `, m.OwnerID, m.ID, m.Content, m.Category, model.NormalizeTags(m.Tags), m.SourcePlatform,
		vectorParam(m.Embedding), m.EmbeddingOrigin, m.RelevanceScore, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) Delete(ctx context.Context, ownerID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := ps.q.Exec(ctx, `DELETE FROM memories WHERE owner_id = $1 AND id = ANY($2)`, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RunInTx runs fn in a transaction. Nested calls use a savepoint.
func (ps *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx MemoryStore) error) (err error) {
	var tx pgx.Tx
	if ps.tx != nil {
		tx, err = ps.tx.Begin(ctx)
	} else {
		tx, err = ps.DB.BeginTx(ctx, pgx.TxOptions{})
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(ctx, &PostgresStore{DB: ps.DB, q: tx, tx: tx, dimensions: ps.dimensions, nowFn: ps.nowFn}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Owners(ctx context.Context) ([]string, error) {
	rows, err := ps.q.Query(ctx, `SELECT DISTINCT owner_id FROM memories ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

// CreateSchema ensures the pgvector extension and the memories table exist.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if _, err := ps.q.Exec(ctx, postgresSchema(ps.dimensions)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close releases the underlying Postgres connection pool.
func (ps *PostgresStore) Close() error {
	if ps == nil || ps.DB == nil || ps.tx != nil {
		return nil
	}
	ps.DB.Close()
	return nil
}

func scanPgMemory(row pgx.Row) (*model.Memory, error) {
	var (
		m         model.Memory
		typ       string
		embedding *string
	)
	err := row.Scan(&m.ID, &m.OwnerID, &m.Content, &typ, &m.Category, &m.Tags, &m.SourcePlatform,
		&embedding, &m.EmbeddingOrigin, &m.RelevanceScore, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan memory: %w", err)
	}
	m.Type = model.MemoryType(typ)
	if embedding != nil {
		m.Embedding = parseVector(*embedding)
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func postgresSchema(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    content TEXT NOT NULL,
    memory_type TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    tags TEXT[] NOT NULL DEFAULT '{}',
    source_platform TEXT NOT NULL DEFAULT '',
    embedding vector(%d),
    embedding_origin TEXT NOT NULL DEFAULT '',
    relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS memories_owner_rank_idx ON memories (owner_id, relevance_score DESC, updated_at DESC);
CREATE INDEX IF NOT EXISTS memories_owner_exact_idx ON memories (owner_id, memory_type, md5(content));
CREATE INDEX IF NOT EXISTS memories_tags_idx ON memories USING GIN (tags);
`, dimensions)
}

// vectorParam renders a pgvector literal, or nil for a missing embedding.
func vectorParam(vec []float32) any {
	if len(vec) == 0 {
		return nil
	}
	jsonEmbed, _ := json.Marshal(vec)
	return vectorFromJSON(jsonEmbed)
}

func trimJSON(s string) string { return strings.Trim(s, "[]") }

func vectorFromJSON(jsonEmbed []byte) string {
	return fmt.Sprintf("[%s]", trimJSON(string(jsonEmbed)))
}

func parseVector(text string) []float32 {
	text = strings.Trim(text, "[]")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			continue
		}
		vec = append(vec, float32(f))
	}
	return vec
}
