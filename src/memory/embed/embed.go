package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultDimensions is the vector width stored with every memory.
const DefaultDimensions = 1536

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Named is implemented by providers that can identify the vectors they produce.
type Named interface {
	Name() string
}

var (
	// ErrNotSupported is returned by providers that do not offer embeddings.
	ErrNotSupported = errors.New("embeddings not supported by this provider")
	// ErrEmptyInput is returned for blank text.
	ErrEmptyInput = errors.New("embedding input is empty")
	// ErrDimensionMismatch is returned when a provider vector has the wrong width.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ProviderConfig selects and configures a primary provider.
type ProviderConfig struct {
	// Provider is one of openai, ollama, gemini (vertex), voyage, fastembed or fallback.
	Provider   string
	Model      string
	Dimensions int
	APIKey     string
	BaseURL    string
	CacheDir   string
}

// NewProvider builds the primary provider named in cfg. An empty provider or
// "fallback" yields the deterministic FallbackEmbedder.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "fallback", "hash", "dummy":
		return NewFallbackEmbedder(cfg.Dimensions), nil
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "google", "gemini", "vertex", "vertexai":
		return NewVertexAIEmbedder(ctx, cfg)
	case "voyage", "claude", "anthropic":
		return NewVoyageEmbedder(cfg)
	case "fastembed":
		return NewFastEmbedder(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

// OriginOf reports the origin label for vectors produced by e.
func OriginOf(e Embedder) string {
	if e == nil {
		return ""
	}
	if n, ok := e.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", e)
}

func f64toF32(v []float64) []float32 {
	r := make([]float32, len(v))
	for i, x := range v {
		r[i] = float32(x)
	}
	return r
}
