package embed

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

const (
	fallbackWordWindow  = 10
	fallbackChunkRunes  = 20
	fallbackChunkWindow = 100
)

// FallbackEmbedder derives a deterministic vector from hashed text features.
// It needs no network and always succeeds for non-blank input, but the vectors
// only group near-identical text; they carry no real semantics.
type FallbackEmbedder struct {
	Dimensions int
}

// NewFallbackEmbedder returns a FallbackEmbedder producing dims-wide vectors.
func NewFallbackEmbedder(dims int) *FallbackEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &FallbackEmbedder{Dimensions: dims}
}

func (f *FallbackEmbedder) Name() string { return "fallback" }

func (f *FallbackEmbedder) NativeDimensions() int { return f.Dimensions }

func (f *FallbackEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	dims := f.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	features := fallbackFeatures(text)
	values := make([]float64, dims)
	for i := range values {
		values[i] = features[i%len(features)]
	}
	return model.L2Normalize(values), nil
}

func fallbackFeatures(text string) []float64 {
	words := strings.Fields(strings.ToLower(text))
	var out []float64

	limit := len(words)
	if limit > fallbackWordWindow {
		limit = fallbackWordWindow
	}
	for i := 0; i < limit; i += 2 {
		end := i + 2
		if end > len(words) {
			end = len(words)
		}
		out = append(out, md5Prefix(strings.Join(words[i:end], " ")))
	}

	runes := []rune(text)
	window := len(runes)
	if window > fallbackChunkWindow {
		window = fallbackChunkWindow
	}
	for i := 0; i < window; i += fallbackChunkRunes {
		end := i + fallbackChunkRunes
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, md5Prefix(string(runes[i:end])))
	}

	out = append(out,
		float64(utf8.RuneCountInString(text)),
		float64(len(words)),
		float64(strings.Count(text, ".")),
		float64(strings.Count(text, "?")),
	)
	return out
}

// md5Prefix is the first 8 hex digits of the MD5 digest read as an integer.
func md5Prefix(s string) float64 {
	sum := md5.Sum([]byte(s))
	return float64(binary.BigEndian.Uint32(sum[:4]))
}
