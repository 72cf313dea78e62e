package embed

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaEmbedder embeds with a locally served Ollama model.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

func NewOllamaEmbedder(cfg ProviderConfig) (*OllamaEmbedder, error) {
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	cli := ollama.NewClient(u, &http.Client{Timeout: 60 * time.Second})
	return &OllamaEmbedder{client: cli, model: model}, nil
}

func (e *OllamaEmbedder) Name() string { return "ollama:" + e.model }

func (e *OllamaEmbedder) NativeDimensions() int { return ollamaDimensions[modelKey(e.model)] }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Embeddings) == 0 || len(res.Embeddings[0]) == 0 {
		return nil, ErrNotSupported
	}
	return res.Embeddings[0], nil
}
