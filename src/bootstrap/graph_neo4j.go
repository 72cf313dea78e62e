//go:build neo4j

package bootstrap

import (
	"context"

	"github.com/gazelleryanwalker/agentic-crm-production/src/config"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

func openTagGraph(ctx context.Context, cfg config.Neo4jConfig, base store.MemoryStore) (store.MemoryStore, error) {
	driver, err := store.OpenNeo4jDriver(ctx, cfg.URI, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}
	return store.NewNeo4jStore(base, driver, cfg.Database)
}
