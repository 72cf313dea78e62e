package store

import (
	"fmt"
	"strings"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// sqlDialect captures the differences between the SQL backends.
type sqlDialect struct {
	placeholder func(n int) string
	// contains renders a case-insensitive substring test of content against arg.
	contains func(arg string) string
	// unbounded is the LIMIT clause needed before OFFSET when no limit is set.
	unbounded string

	embeddingCol, createdCol, updatedCol string
}

var (
	postgresDialect = sqlDialect{
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		contains:    func(arg string) string { return fmt.Sprintf("strpos(lower(content), lower(%s)) > 0", arg) },
		unbounded:   " LIMIT ALL",

		embeddingCol: "embedding",
		createdCol:   "created_at",
		updatedCol:   "updated_at",
	}
	sqliteDialect = sqlDialect{
		placeholder: func(int) string { return "?" },
		contains:    func(arg string) string { return fmt.Sprintf("instr(lower(content), lower(%s)) > 0", arg) },
		unbounded:   " LIMIT -1",

		embeddingCol: "embedding_json",
		createdCol:   "created_at_ns",
		updatedCol:   "updated_at_ns",
	}
)

// buildQuery renders the WHERE/ORDER/LIMIT tail for q plus its arguments.
func (d sqlDialect) buildQuery(q model.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(format string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(format, d.placeholder(len(args))))
	}

	add("owner_id = %s", q.OwnerID)
	if q.Type != "" {
		add("memory_type = %s", string(q.Type))
	}
	if q.Category != "" {
		add("category = %s", q.Category)
	}
	if q.HasEmbedding {
		conds = append(conds, d.embeddingCol+" IS NOT NULL")
	}
	if q.ContentContains != "" {
		args = append(args, q.ContentContains)
		conds = append(conds, d.contains(d.placeholder(len(args))))
	}

	var b strings.Builder
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conds, " AND "))
	b.WriteString(" ORDER BY ")
	b.WriteString(d.orderClause(q.Order))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT %s", d.placeholder(len(args)))
	}
	if q.Offset > 0 {
		if q.Limit <= 0 {
			b.WriteString(d.unbounded)
		}
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET %s", d.placeholder(len(args)))
	}
	return b.String(), args
}

func (d sqlDialect) orderClause(o model.Order) string {
	switch o {
	case model.OrderUpdated:
		return d.updatedCol + " DESC, id ASC"
	case model.OrderCreated:
		return d.createdCol + " ASC, id ASC"
	}
	return "relevance_score DESC, " + d.updatedCol + " DESC, id ASC"
}
