//go:build !fastembed

package embed

import (
	"context"
	"errors"
)

var errFastEmbedMissing = errors.New("fastembed support not included; rebuild with -tags fastembed")

// FastEmbedder is unavailable without the fastembed build tag.
type FastEmbedder struct{}

func NewFastEmbedder(context.Context, ProviderConfig) (*FastEmbedder, error) {
	return nil, errFastEmbedMissing
}

func (FastEmbedder) Name() string { return "fastembed" }

func (FastEmbedder) Close() error { return nil }

func (FastEmbedder) NativeDimensions() int { return 0 }

func (FastEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errFastEmbedMissing
}
