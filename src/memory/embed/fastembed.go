//go:build fastembed

package embed

import (
	"context"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedder runs a local ONNX embedding model.
type FastEmbedder struct {
	m     *fastembed.FlagEmbedding
	model string
}

func NewFastEmbedder(_ context.Context, cfg ProviderConfig) (*FastEmbedder, error) {
	model := fastembed.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = fastembed.BGESmallENV15
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = ".fastembed"
	}
	m, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:    model,
		CacheDir: cacheDir,
	})
	if err != nil {
		return nil, err
	}
	return &FastEmbedder{m: m, model: string(model)}, nil
}

func (e *FastEmbedder) Name() string { return "fastembed:" + e.model }

func (e *FastEmbedder) NativeDimensions() int { return fastEmbedDimensions[e.model] }

func (e *FastEmbedder) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}

func (e *FastEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.m.QueryEmbed(text)
}
