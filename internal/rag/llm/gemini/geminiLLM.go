package gemini

import (
	"context"
	"errors"

	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag/googleClient"
	"github.com/akolanti/SupportRAG/internal/rag/llm"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"google.golang.org/genai"
)

type llmClient struct {
	client      *genai.Client
	modelName   string
	temperature float32
	logger      *logger_i.Logger
}

func New(client *genai.Client, modelName string, temperature float32) (llm.Provider, error) {
	if client == nil {
		return nil, ragErrors.InvalidArgument("gemini client is nil")
	}
	logger := logger_i.NewLogger("llm_gemini")
	logger.Info("Gemini client created", "model", modelName)
	return &llmClient{client: client, modelName: modelName, temperature: temperature, logger: logger}, nil
}

func (c *llmClient) ModelID() string { return googleClient.ProviderName + "/" + c.modelName }

func (c *llmClient) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	log := c.logger.WithTrace(ctx)

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		},
		Temperature: genai.Ptr(c.temperature),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(prompt.User), contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", googleClient.ProviderError("generate", err)
	}
	text := result.Text()
	if text == "" {
		return "", ragErrors.NewProviderError(googleClient.ProviderName, "generate", 0, errors.New("empty response"))
	}
	return text, nil
}
