package model

// Order selects how a Query sorts its rows.
type Order int

const (
	// OrderRelevance sorts by relevance desc, then updated_at desc.
	OrderRelevance Order = iota
	// OrderUpdated sorts by updated_at desc.
	OrderUpdated
	// OrderCreated sorts by created_at asc.
	OrderCreated
)

// Query selects memories for a single owner. Zero-valued filters are ignored.
type Query struct {
	OwnerID         string
	Type            MemoryType
	Category        string
	HasEmbedding    bool
	ContentContains string
	Order           Order
	Limit           int
	Offset          int
}
