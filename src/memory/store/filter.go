package store

import (
	"sort"
	"strings"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// matches reports whether m satisfies every filter in q.
func matches(m *model.Memory, q model.Query) bool {
	if m.OwnerID != q.OwnerID {
		return false
	}
	if q.Type != "" && m.Type != q.Type {
		return false
	}
	if q.Category != "" && m.Category != q.Category {
		return false
	}
	if q.HasEmbedding && !m.HasEmbedding() {
		return false
	}
	if q.ContentContains != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(q.ContentContains)) {
		return false
	}
	return true
}

// sortMemories orders rows the way SQL stores do for the same Order.
func sortMemories(rows []*model.Memory, order model.Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch order {
		case model.OrderUpdated:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		case model.OrderCreated:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default:
			if a.RelevanceScore != b.RelevanceScore {
				return a.RelevanceScore > b.RelevanceScore
			}
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		}
		return a.ID < b.ID
	})
}

// paginate applies offset and limit. A non-positive limit means no limit.
func paginate(rows []*model.Memory, offset, limit int) []*model.Memory {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
