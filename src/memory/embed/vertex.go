package embed

import (
	"context"
	"errors"
	"os"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// VertexAIEmbedder embeds through the Gemini embedding models.
type VertexAIEmbedder struct {
	client *genai.Client
	name   string
	model  *genai.EmbeddingModel
}

func NewVertexAIEmbedder(ctx context.Context, cfg ProviderConfig) (*VertexAIEmbedder, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GOOGLE_API_KEY or GEMINI_API_KEY")
	}
	cli, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	return &VertexAIEmbedder{client: cli, name: model, model: cli.EmbeddingModel(model)}, nil
}

func (e *VertexAIEmbedder) Name() string { return "gemini:" + e.name }

func (e *VertexAIEmbedder) NativeDimensions() int { return geminiDimensions[modelKey(e.name)] }

func (e *VertexAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, ErrNotSupported
	}
	return resp.Embedding.Values, nil
}

// Close releases the underlying client.
func (e *VertexAIEmbedder) Close() error {
	return e.client.Close()
}
