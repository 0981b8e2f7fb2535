package openaiLLM

import (
	"context"
	"errors"

	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag/llm"
	"github.com/akolanti/SupportRAG/internal/rag/openaiClient"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/openai/openai-go"
)

type llmClient struct {
	api         *openai.Client
	modelName   string
	temperature float64
	logger      *logger_i.Logger
}

func New(api *openai.Client, modelName string, temperature float32) (llm.Provider, error) {
	if api == nil {
		return nil, ragErrors.InvalidArgument("openai client is nil")
	}
	logger := logger_i.NewLogger("llm_openai")
	logger.Info("OpenAI chat client created", "model", modelName)
	return &llmClient{api: api, modelName: modelName, temperature: float64(temperature), logger: logger}, nil
}

func (c *llmClient) ModelID() string { return openaiClient.ProviderName + "/" + c.modelName }

func (c *llmClient) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	log := c.logger.WithTrace(ctx)

	res, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		log.Error("OpenAI generation failed", "error", err)
		return "", openaiClient.ProviderError("chat", err)
	}
	if len(res.Choices) == 0 || res.Choices[0].Message.Content == "" {
		return "", ragErrors.NewProviderError(openaiClient.ProviderName, "chat", 0, errors.New("empty response"))
	}
	return res.Choices[0].Message.Content, nil
}
