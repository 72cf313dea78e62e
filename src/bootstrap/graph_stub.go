//go:build !neo4j

package bootstrap

import (
	"context"
	"errors"

	"github.com/gazelleryanwalker/agentic-crm-production/src/config"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

var errGraphUnavailable = errors.New("neo4j tag graph requires building with -tags neo4j")

func openTagGraph(context.Context, config.Neo4jConfig, store.MemoryStore) (store.MemoryStore, error) {
	return nil, errGraphUnavailable
}
