package openaiClient

import (
	"context"
	"errors"

	"github.com/akolanti/SupportRAG/internal/customHttpClient"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const ProviderName = "openai"

// New builds an OpenAI client on the shared pool. baseURL is optional and points the
// client at any OpenAI compatible endpoint. Retries are left to the caller.
func New(apiKey, baseURL string) (*openai.Client, error) {
	if apiKey == "" {
		return nil, ragErrors.InvalidArgument("openai api key is empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(customHttpClient.GetClient()),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := openai.NewClient(opts...)
	return &c, nil
}

func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	code := 0
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code = apiErr.StatusCode
	}
	return ragErrors.NewProviderError(ProviderName, op, code, err)
}
