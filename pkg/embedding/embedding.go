package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type Config struct {
	Model string `envconfig:"MODEL" split_words:"true" default:"text-embedding-3-small"`
}

// OpenAIEmbedder embeds text through the OpenAI-compatible embeddings API.
type OpenAIEmbedder struct {
	client *openaisdk.Client
	model  string
}

func NewOpenAIEmbedder(client *openaisdk.Client, cfg Config) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, errors.New("embedding: sdk client is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{client: client, model: model}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding: text is empty")
	}

	res, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(e.model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create embedding: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, errors.New("embedding: empty response")
	}
	return res.Data[0].Embedding, nil
}
