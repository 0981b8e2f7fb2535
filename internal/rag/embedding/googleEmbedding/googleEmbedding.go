package googleEmbedding

import (
	"context"
	"fmt"

	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag/embedding"
	"github.com/akolanti/SupportRAG/internal/rag/googleClient"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"google.golang.org/genai"
)

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	logger    *logger_i.Logger
}

// New wraps a Gemini embedding model. Queries and documents are embedded with their
// matching retrieval task types so both land in the same space.
func New(genAi *genai.Client, modelName string, dimension int) (embedding.Embedder, error) {
	if genAi == nil {
		return nil, ragErrors.InvalidArgument("gemini client is nil")
	}
	if dimension <= 0 {
		return nil, ragErrors.InvalidArgument("embedding dimension must be positive, got %d", dimension)
	}
	logger := logger_i.NewLogger("google_embedding")
	logger.Info("Google Embedding client created", "model", modelName, "dimension", dimension)
	return &client{
		genAi:     genAi,
		model:     modelName,
		dimension: int32(dimension),
		logger:    logger,
	}, nil
}

func (c *client) ModelID() string {
	return embedding.ModelIdentity(googleClient.ProviderName, c.model, int(c.dimension))
}

func (c *client) Dimension() int { return int(c.dimension) }

func (c *client) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return c.embed(ctx, texts, taskDocument)
}

func (c *client) embed(ctx context.Context, texts []string, task string) ([][]float32, error) {
	log := c.logger.WithTrace(ctx)
	log.Debug("embedding", "count", len(texts), "task", task)

	result, err := c.genAi.Models.EmbedContent(ctx, c.model, getContent(texts), &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             task,
	})
	if err != nil {
		log.Error("Error getting Embeddings from Google", "error", err)
		return nil, googleClient.ProviderError("embed", err)
	}

	vectors := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		if e == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, e.Values)
	}
	if err := embedding.CheckBatch(len(texts), vectors, c.Dimension()); err != nil {
		return nil, ragErrors.NewProviderError(googleClient.ProviderName, "embed", 0, fmt.Errorf("malformed response: %w", err))
	}
	return vectors, nil
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}
