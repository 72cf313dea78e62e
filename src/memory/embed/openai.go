package embed

import (
	"context"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

func NewOpenAIEmbedder(cfg ProviderConfig) (*OpenAIEmbedder, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		key = os.Getenv("OPENAI_KEY")
	}
	oc := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(oc), model: model, dimensions: cfg.Dimensions}, nil
}

func (e *OpenAIEmbedder) Name() string { return "openai:" + e.model }

func (e *OpenAIEmbedder) NativeDimensions() int {
	if e.dimensions > 0 {
		return e.dimensions
	}
	return openAIDimensions[e.model]
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{text},
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNotSupported
	}
	return resp.Data[0].Embedding, nil
}
