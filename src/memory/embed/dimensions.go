package embed

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Sized is implemented by providers that know the width of the vectors they
// return. Zero means the width is only known after a call.
type Sized interface {
	NativeDimensions() int
}

var (
	openAIDimensions = map[string]int{
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
	ollamaDimensions = map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"snowflake-arctic-embed": 1024,
		"bge-m3":                 1024,
		"bge-large":              1024,
	}
	geminiDimensions = map[string]int{
		"text-embedding-004":   768,
		"embedding-001":        768,
		"gemini-embedding-001": 3072,
	}
	voyageDimensions = map[string]int{
		"voyage-3.5":      1024,
		"voyage-3.5-lite": 1024,
		"voyage-3-large":  1024,
		"voyage-3":        1024,
		"voyage-3-lite":   512,
		"voyage-code-3":   1024,
	}
	fastEmbedDimensions = map[string]int{
		"fast-bge-small-en-v1.5":     384,
		"fast-bge-small-en":          384,
		"fast-bge-base-en-v1.5":      768,
		"fast-bge-base-en":           768,
		"fast-bge-small-zh-v1.5":     512,
		"fast-all-MiniLM-L6-v2":      384,
		"fast-multilingual-e5-large": 1024,
	}
	// voyageOutputDimensions are the output_dimension values the Voyage API accepts.
	voyageOutputDimensions = map[int]bool{256: true, 512: true, 1024: true, 2048: true}
)

// DimensionsOf reports the vector width e produces, or 0 when unknown.
func DimensionsOf(e Embedder) int {
	if s, ok := e.(Sized); ok {
		return s.NativeDimensions()
	}
	return 0
}

// ProbeDimensions embeds a short text once and returns the vector width.
func ProbeDimensions(ctx context.Context, e Embedder, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	vec, err := e.Embed(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", OriginOf(e), err)
	}
	if len(vec) == 0 {
		return 0, fmt.Errorf("probe %s: %w", OriginOf(e), ErrNotSupported)
	}
	return len(vec), nil
}

// modelKey drops a "models/" prefix and an Ollama ":tag" suffix.
func modelKey(model string) string {
	model = strings.TrimPrefix(model, "models/")
	if i := strings.Index(model, ":"); i >= 0 {
		model = model[:i]
	}
	return model
}
