package openaiEmbedding

import (
	"context"
	"fmt"

	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag/embedding"
	"github.com/akolanti/SupportRAG/internal/rag/openaiClient"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/openai/openai-go"
)

type client struct {
	api       *openai.Client
	model     string
	dimension int
	logger    *logger_i.Logger
}

func New(api *openai.Client, model string, dimension int) (embedding.Embedder, error) {
	if api == nil {
		return nil, ragErrors.InvalidArgument("openai client is nil")
	}
	if dimension <= 0 {
		return nil, ragErrors.InvalidArgument("embedding dimension must be positive, got %d", dimension)
	}
	logger := logger_i.NewLogger("openai_embedding")
	logger.Info("OpenAI Embedding client created", "model", model, "dimension", dimension)
	return &client{api: api, model: model, dimension: dimension, logger: logger}, nil
}

func (c *client) ModelID() string {
	return embedding.ModelIdentity(openaiClient.ProviderName, c.model, c.dimension)
}

func (c *client) Dimension() int { return c.dimension }

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.BatchEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := c.logger.WithTrace(ctx)
	log.Debug("embedding", "count", len(texts))

	res, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(c.dimension)),
	})
	if err != nil {
		log.Error("Error getting Embeddings from OpenAI", "error", err)
		return nil, openaiClient.ProviderError("embed", err)
	}

	// the api tags each vector with its input index, do not trust response order
	vectors := make([][]float32, len(texts))
	for _, d := range res.Data {
		if d.Index < 0 || int(d.Index) >= len(texts) {
			return nil, ragErrors.NewProviderError(openaiClient.ProviderName, "embed", 0,
				fmt.Errorf("response index %d out of range", d.Index))
		}
		vectors[d.Index] = toFloat32(d.Embedding)
	}
	if err := embedding.CheckBatch(len(texts), vectors, c.dimension); err != nil {
		return nil, ragErrors.NewProviderError(openaiClient.ProviderName, "embed", 0, fmt.Errorf("malformed response: %w", err))
	}
	return vectors, nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
