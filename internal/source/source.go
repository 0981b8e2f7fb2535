package source

import (
	"context"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
)

// Source delivers normalised documents to the ingestion pipeline. A Source owns its
// own retry policy; an error means the run cannot continue.
type Source interface {
	FetchDocuments(ctx context.Context) ([]commonModels.Document, error)
}

// Static serves documents already in memory, e.g. loaded from an artifact.
type Static []commonModels.Document

func (s Static) FetchDocuments(ctx context.Context) ([]commonModels.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
