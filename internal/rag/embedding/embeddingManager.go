package embedding

import (
	"context"
)

// Embedder turns text into vectors of a fixed dimension. ModelID identifies the
// vector space, two embedders with different ids must never share an index.
// Implementations report failures as ragErrors.ProviderError and do not retry.
type Embedder interface {
	ModelID() string
	Dimension() int
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	// BatchEmbedding returns one vector per input text, in input order.
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
