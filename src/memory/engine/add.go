package engine

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/gazelleryanwalker/agentic-crm-production/src/concurrent"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

// AddRequest describes a memory to record.
type AddRequest struct {
	OwnerID        string           `json:"owner_id"`
	Content        string           `json:"content"`
	Type           model.MemoryType `json:"memory_type"`
	Category       string           `json:"category,omitempty"`
	Tags           []string         `json:"tags,omitempty"`
	SourcePlatform string           `json:"source_platform,omitempty"`
}

func (r AddRequest) validate() error {
	err := model.Draft{
		OwnerID:        r.OwnerID,
		Content:        r.Content,
		Type:           r.Type,
		Category:       r.Category,
		Tags:           r.Tags,
		SourcePlatform: r.SourcePlatform,
	}.Validate()
	if err != nil {
		return invalid("%v", err)
	}
	return nil
}

// Add records a memory. When the owner already has a memory of the same type
// with identical content, that memory is re-affirmed instead: tags are merged,
// an empty category is filled, relevance rises by ReaffirmBoost, and no
// embedding is generated. Blank content yields (nil, nil).
func (e *Engine) Add(ctx context.Context, req AddRequest) (*model.Memory, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, nil
	}
	ctx, span := e.startSpan(ctx, "Engine.Add", req.OwnerID, attribute.String("memory.type", string(req.Type)))
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, e.fail(span, "add", err)
	}
	req.Content = model.TruncateContent(req.Content)
	req.Tags = model.NormalizeTags(req.Tags)

	var existing *model.Memory
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.MemoryStore) error {
		var err error
		existing, err = e.reaffirm(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, e.fail(span, "add", err)
	}
	if existing != nil {
		e.metrics.IncReaffirmed()
		span.SetAttributes(attribute.Bool("memory.reaffirmed", true))
		return existing, nil
	}

	m := &model.Memory{
		OwnerID:        req.OwnerID,
		Content:        req.Content,
		Type:           req.Type,
		Category:       req.Category,
		Tags:           req.Tags,
		SourcePlatform: req.SourcePlatform,
	}
	if res := e.resolver.Generate(ctx, req.Content); res.OK() {
		m.Embedding = res.Vector
		m.EmbeddingOrigin = res.Origin
	} else {
		e.metrics.IncStoredUnembedded()
		e.logger.Warn("storing memory without embedding",
			zap.String("owner", req.OwnerID),
			zap.Error(res.Err))
	}

	// The embedding call happens outside the transaction, so another writer
	// may have stored the same content meanwhile.
	var out *model.Memory
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx store.MemoryStore) error {
		found, err := e.reaffirm(ctx, tx, req)
		if err != nil {
			return err
		}
		if found != nil {
			out = found
			return nil
		}
		m.CreatedAt = e.now()
		m.UpdatedAt = m.CreatedAt
		if err := tx.Insert(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, e.fail(span, "add", err)
	}
	if out == m {
		e.metrics.IncAdded()
		e.logger.Debug("memory added",
			zap.String("owner", m.OwnerID),
			zap.String("memory_id", m.ID),
			zap.String("provider", m.EmbeddingOrigin))
	} else {
		e.metrics.IncReaffirmed()
	}
	span.SetAttributes(attribute.String("memory.id", out.ID))
	return out, nil
}

// reaffirm merges req into an existing identical memory. It returns nil when
// there is none.
func (e *Engine) reaffirm(ctx context.Context, tx store.MemoryStore, req AddRequest) (*model.Memory, error) {
	m, err := tx.FindExactMatch(ctx, req.OwnerID, req.Content, req.Type)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Tags = model.UnionTags(m.Tags, req.Tags)
	if m.Category == "" {
		m.Category = req.Category
	}
	m.AddRelevance(e.opts.ReaffirmBoost)
	m.UpdatedAt = e.now()
	if err := tx.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AddBatch adds many memories. Requests with identical owner, type and content
// are merged before anything is stored, so each distinct memory is written
// once. Results follow input order; blank requests yield nil entries.
func (e *Engine) AddBatch(ctx context.Context, reqs []AddRequest) ([]*model.Memory, error) {
	type batchKey struct {
		owner   string
		typ     model.MemoryType
		content string
	}
	index := make(map[batchKey]int)
	var unique []AddRequest
	slots := make([]int, len(reqs))
	for i, req := range reqs {
		if strings.TrimSpace(req.Content) == "" {
			slots[i] = -1
			continue
		}
		key := batchKey{req.OwnerID, req.Type, model.TruncateContent(req.Content)}
		if j, ok := index[key]; ok {
			merged := &unique[j]
			merged.Tags = model.UnionTags(merged.Tags, req.Tags)
			if merged.Category == "" {
				merged.Category = req.Category
			}
			if merged.SourcePlatform == "" {
				merged.SourcePlatform = req.SourcePlatform
			}
			slots[i] = j
			continue
		}
		index[key] = len(unique)
		slots[i] = len(unique)
		unique = append(unique, req)
	}

	added, err := concurrent.ParallelMap(ctx, unique, e.opts.BatchConcurrency, e.Add)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Memory, len(reqs))
	for i, slot := range slots {
		if slot >= 0 {
			out[i] = added[slot]
		}
	}
	return out, nil
}
