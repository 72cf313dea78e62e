package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is a single-file MemoryStore for local and single-node use.
type SQLiteStore struct {
	db    *sql.DB
	q     sqlQuerier
	inTx  bool
	nowFn func() time.Time
}

var (
	_ MemoryStore       = (*SQLiteStore)(nil)
	_ SchemaInitializer = (*SQLiteStore)(nil)
	_ OwnerLister       = (*SQLiteStore)(nil)
)

const sqliteColumns = `id, owner_id, content, memory_type, category, tags_json, source_platform,
        embedding_json, embedding_origin, relevance_score, created_at_ns, updated_at_ns`

// NewSQLiteStore creates or opens the database at path and ensures the schema.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create memory db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention between goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, q: db, nowFn: time.Now}
	if err := s.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) CreateSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			source_platform TEXT NOT NULL DEFAULT '',
			embedding_json TEXT,
			embedding_origin TEXT NOT NULL DEFAULT '',
			relevance_score REAL NOT NULL DEFAULT 0,
			created_at_ns INTEGER NOT NULL,
			updated_at_ns INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS memories_owner_rank_idx ON memories(owner_id, relevance_score DESC, updated_at_ns DESC);`,
		`CREATE INDEX IF NOT EXISTS memories_owner_exact_idx ON memories(owner_id, memory_type, content);`,
	}
	for _, stmt := range stmts {
		if _, err := s.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, m *model.Memory) error {
	prepareInsert(m, s.nowFn().UTC())
	tags, embedding, err := encodeSQLiteJSON(m)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO memories (`+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, m.Content, string(m.Type), m.Category, tags, m.SourcePlatform,
		embedding, m.EmbeddingOrigin, m.RelevanceScore, m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindExactMatch(ctx context.Context, ownerID, content string, typ model.MemoryType) (*model.Memory, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM memories
		WHERE owner_id = ? AND memory_type = ? AND content = ?
		ORDER BY created_at_ns ASC LIMIT 1`, ownerID, string(typ), content)
	return scanSQLiteMemory(row)
}

func (s *SQLiteStore) Get(ctx context.Context, ownerID, id string) (*model.Memory, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM memories WHERE owner_id = ? AND id = ?`, ownerID, id)
	return scanSQLiteMemory(row)
}

func (s *SQLiteStore) Query(ctx context.Context, q model.Query) ([]*model.Memory, error) {
	tail, args := sqliteDialect.buildQuery(q)
	rows, err := s.q.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM memories`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []*model.Memory
	for rows.Next() {
		m, err := scanSQLiteMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, m *model.Memory) error {
	m.Tags = model.NormalizeTags(m.Tags)
	tags, embedding, err := encodeSQLiteJSON(m)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `UPDATE memories
		SET content = ?, category = ?, tags_json = ?, source_platform = ?,
		    embedding_json = ?, embedding_origin = ?, relevance_score = ?, updated_at_ns = ?
		WHERE owner_id = ? AND id = ?`,
		m.Content, m.Category, tags, m.SourcePlatform, embedding, m.EmbeddingOrigin,
		m.RelevanceScore, m.UpdatedAt.UnixNano(), m.OwnerID, m.ID)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ownerID string, ids []string) (int, error) {
	total := 0
	for _, id := range ids {
		res, err := s.q.ExecContext(ctx, `DELETE FROM memories WHERE owner_id = ? AND id = ?`, ownerID, id)
		if err != nil {
			return total, fmt.Errorf("delete memory %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	return total, nil
}

// RunInTx runs fn in a transaction. A nested call joins the outer transaction.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx MemoryStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, &SQLiteStore{db: s.db, q: tx, inTx: true, nowFn: s.nowFn}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Owners(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT owner_id FROM memories ORDER BY owner_id`)
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

// WithClock overrides the time source used for assigned timestamps.
func (s *SQLiteStore) WithClock(now func() time.Time) *SQLiteStore {
	s.nowFn = now
	return s
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil || s.inTx {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMemory(row rowScanner) (*model.Memory, error) {
	var (
		m                    model.Memory
		typ, tags            string
		embedding            sql.NullString
		createdNS, updatedNS int64
	)
	err := row.Scan(&m.ID, &m.OwnerID, &m.Content, &typ, &m.Category, &tags, &m.SourcePlatform,
		&embedding, &m.EmbeddingOrigin, &m.RelevanceScore, &createdNS, &updatedNS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan memory: %w", err)
	}
	m.Type = model.MemoryType(typ)
	m.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &m.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
	}
	m.CreatedAt = time.Unix(0, createdNS).UTC()
	m.UpdatedAt = time.Unix(0, updatedNS).UTC()
	return &m, nil
}

func encodeSQLiteJSON(m *model.Memory) (string, sql.NullString, error) {
	tags, err := json.Marshal(model.NormalizeTags(m.Tags))
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encode tags: %w", err)
	}
	if len(m.Embedding) == 0 {
		return string(tags), sql.NullString{}, nil
	}
	vec, err := json.Marshal(m.Embedding)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("encode embedding: %w", err)
	}
	return string(tags), sql.NullString{String: string(vec), Valid: true}, nil
}
