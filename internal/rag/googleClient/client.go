package googleClient

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/SupportRAG/internal/customHttpClient"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ProviderName = "gemini"

// New builds a Gemini API client on the shared connection pool.
func New(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, ragErrors.InvalidArgument("gemini api key is empty")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.GetClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return c, nil
}

// ProviderError wraps a genai failure with its status code so callers can decide on retries.
func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return ragErrors.NewProviderError(ProviderName, op, statusCode(err), err)
}

func statusCode(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return 429
	}
	return 0
}
