package llm

import "context"

// Prompt is the two part instruction sent to a generation model.
type Prompt struct {
	System string
	User   string
}

// Provider is the text generation capability. Generate returns the model output
// verbatim and reports failures as ragErrors.ProviderError without retrying.
type Provider interface {
	ModelID() string
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
