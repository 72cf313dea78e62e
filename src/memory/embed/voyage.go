package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultVoyageEndpoint = "https://api.voyageai.com/v1/embeddings"

// VoyageEmbedder calls the Voyage AI embeddings API. Requires VOYAGE_API_KEY
// unless a key is configured explicitly.
type VoyageEmbedder struct {
	client     *http.Client
	apiKey     string
	model      string
	dimensions int
	endpoint   string
}

func NewVoyageEmbedder(cfg ProviderConfig) (*VoyageEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("VOYAGE_API_KEY")
	}
	model := cfg.Model
	if model == "" {
		model = "voyage-3.5"
	}
	if cfg.Dimensions > 0 && !voyageOutputDimensions[cfg.Dimensions] {
		return nil, fmt.Errorf("voyage: output dimension %d not one of 256, 512, 1024, 2048", cfg.Dimensions)
	}
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = os.Getenv("VOYAGE_API_BASE")
	}
	if endpoint == "" {
		endpoint = defaultVoyageEndpoint
	}
	return &VoyageEmbedder{
		client:     &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		dimensions: cfg.Dimensions,
		endpoint:   endpoint,
	}, nil
}

func (v *VoyageEmbedder) Name() string { return "voyage:" + v.model }

// NativeDimensions is the requested output dimension, or the model default.
func (v *VoyageEmbedder) NativeDimensions() int {
	if v.dimensions > 0 {
		return v.dimensions
	}
	return voyageDimensions[v.model]
}

func (v *VoyageEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v.apiKey == "" {
		return nil, errors.New("voyage: VOYAGE_API_KEY not set")
	}
	payload := map[string]any{
		"input":      []string{text},
		"model":      v.model,
		"input_type": "document",
	}
	if v.dimensions > 0 {
		payload["output_dimension"] = v.dimensions
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("voyage embeddings HTTP %d: %s", resp.StatusCode, string(slurp))
	}

	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, ErrNotSupported
	}
	return f64toF32(out.Data[0].Embedding), nil
}
