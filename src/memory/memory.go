// Package memory is the public entry point of the memory layer. It re-exports
// the engine, model, store and embedding types so callers need one import.
package memory

import (
	"github.com/gazelleryanwalker/agentic-crm-production/src/cache"
	embedpkg "github.com/gazelleryanwalker/agentic-crm-production/src/memory/embed"
	memengine "github.com/gazelleryanwalker/agentic-crm-production/src/memory/engine"
	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
	storepkg "github.com/gazelleryanwalker/agentic-crm-production/src/memory/store"
)

type (
	Engine            = memengine.Engine
	Options           = memengine.Options
	AddRequest        = memengine.AddRequest
	SearchRequest     = memengine.SearchRequest
	OptimizeReport    = memengine.OptimizeReport
	Stats             = memengine.Stats
	Metrics           = memengine.Metrics
	MetricsSnapshot   = memengine.MetricsSnapshot
	Maintainer        = memengine.Maintainer
	MaintainerOptions = memengine.MaintainerOptions

	Memory       = model.Memory
	MemoryType   = model.MemoryType
	SearchResult = model.SearchResult
	TypeInfo     = model.TypeInfo
	Query        = model.Query

	MemoryStore       = storepkg.MemoryStore
	SchemaInitializer = storepkg.SchemaInitializer
	TagGraph          = storepkg.TagGraph
	TagMatch          = storepkg.TagMatch
	InMemoryStore     = storepkg.InMemoryStore
	PostgresStore     = storepkg.PostgresStore
	SQLiteStore       = storepkg.SQLiteStore
	MongoStore        = storepkg.MongoStore
	Neo4jStore        = storepkg.Neo4jStore

	Embedder         = embedpkg.Embedder
	EmbeddingResult  = embedpkg.Result
	Resolver         = embedpkg.Resolver
	ResolverOptions  = embedpkg.ResolverOptions
	FallbackEmbedder = embedpkg.FallbackEmbedder
	ProviderConfig   = embedpkg.ProviderConfig
	QueryCache       = cache.QueryCache
)

const (
	TypeUser    = model.TypeUser
	TypeSession = model.TypeSession
	TypeAgent   = model.TypeAgent
)

var (
	ErrStore          = memengine.ErrStore
	ErrInvalidRequest = memengine.ErrInvalidRequest
	ErrNotFound       = storepkg.ErrNotFound
	ErrNotSupported   = embedpkg.ErrNotSupported
	ErrEmptyInput     = embedpkg.ErrEmptyInput

	NewEngine      = memengine.New
	DefaultOptions = memengine.DefaultOptions
	NewMaintainer  = memengine.NewMaintainer
	MemoryTypes    = model.MemoryTypes
	Similarity     = model.Similarity

	NewResolver         = embedpkg.NewResolver
	NewProvider         = embedpkg.NewProvider
	NewFallbackEmbedder = embedpkg.NewFallbackEmbedder
	NewOpenAIEmbedder   = embedpkg.NewOpenAIEmbedder
	NewVertexAIEmbedder = embedpkg.NewVertexAIEmbedder
	NewOllamaEmbedder   = embedpkg.NewOllamaEmbedder
	NewVoyageEmbedder   = embedpkg.NewVoyageEmbedder
	NewQueryCache       = cache.NewQueryCache

	NewInMemoryStore = storepkg.NewInMemoryStore
	NewPostgresStore = storepkg.NewPostgresStore
	NewSQLiteStore   = storepkg.NewSQLiteStore
	NewMongoStore    = storepkg.NewMongoStore
	NewNeo4jStore    = storepkg.NewNeo4jStore
)
