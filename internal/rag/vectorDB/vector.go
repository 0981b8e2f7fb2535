package vectorDB

import (
	"context"
	"math"
	"strconv"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
)

// Index persists embedded chunks for one embedding model identity and answers
// nearest neighbour queries. Scores are cosine similarity in [-1, 1], higher is more relevant.
type Index interface {
	ModelID() string
	Dimension() int

	// Add appends a batch atomically, a query sees all of it or none of it.
	Add(ctx context.Context, entries []commonModels.IndexEntry) error
	Query(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredEntry, error)
	QueryWithFilter(ctx context.Context, vector []float32, k int, filter commonModels.MetadataFilter) ([]commonModels.ScoredEntry, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Evictor is implemented by indexes that can drop every entry of a document before it is re-ingested.
type Evictor interface {
	DeleteByDocIDs(ctx context.Context, docIDs []string) (int, error)
	// ReplaceDocuments appends entries and removes the older entries of docIDs as one step.
	// When it fails the older entries are still there. It returns how many were removed.
	ReplaceDocuments(ctx context.Context, docIDs []string, entries []commonModels.IndexEntry) (int, error)
}

// AnswerCache stores composed answers keyed by question embedding.
type AnswerCache interface {
	GetCachedAnswer(ctx context.Context, queryVector []float32) (commonModels.AnswerRecord, bool, error)
	SaveToCache(ctx context.Context, id string, vector []float32, record commonModels.AnswerRecord) error
}

func ValidateQuery(vector []float32, k, dimension int) error {
	if k <= 0 {
		return ragErrors.InvalidArgument("k must be positive, got %d", k)
	}
	if len(vector) != dimension {
		return ragErrors.InvalidArgument("query vector has dimension %d, index expects %d", len(vector), dimension)
	}
	return nil
}

func ValidateEntries(entries []commonModels.IndexEntry, dimension int) error {
	for i, e := range entries {
		if len(e.Vector) != dimension {
			return ragErrors.InvalidArgument("entry %d has dimension %d, index expects %d", i, len(e.Vector), dimension)
		}
	}
	return nil
}

// NormalizeFilter checks the field is filterable and coerces the value to the type
// the field is stored with. chunk_index is an integer, every other field a string.
func NormalizeFilter(filter commonModels.MetadataFilter) (commonModels.MetadataFilter, error) {
	switch filter.Field {
	case commonModels.FieldChunkIndex:
		n, err := toInt(filter.Value)
		if err != nil {
			return filter, ragErrors.InvalidArgument("filter %s: %v", filter.Field, err)
		}
		filter.Value = n
	case commonModels.FieldDocId, commonModels.FieldTitle, commonModels.FieldURL,
		commonModels.FieldCategory, commonModels.FieldSection:
		s, ok := filter.Value.(string)
		if !ok {
			return filter, ragErrors.InvalidArgument("filter %s expects a string value, got %T", filter.Field, filter.Value)
		}
		filter.Value = s
	default:
		return filter, ragErrors.InvalidArgument("metadata field %q is not filterable", filter.Field)
	}
	return filter, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, strconv.ErrSyntax
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, strconv.ErrSyntax
	}
}

// Cosine is the cosine similarity of a and b, 0 when either is the zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
