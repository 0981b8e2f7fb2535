package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/internal/rag/embedding"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

// Retriever embeds a question and returns the nearest chunks in descending relevance.
// Results are not deduplicated.
type Retriever struct {
	index    vectorDB.Index
	embedder embedding.Embedder
	defaultK int
	logger   *logger_i.Logger
}

// New refuses an index and embedder that disagree on the model identity.
func New(index vectorDB.Index, embedder embedding.Embedder, defaultK int) (*Retriever, error) {
	if index == nil || embedder == nil {
		return nil, ragErrors.InvalidArgument("retriever needs an index and an embedder")
	}
	if defaultK <= 0 {
		return nil, ragErrors.InvalidArgument("default k must be positive, got %d", defaultK)
	}
	if index.ModelID() != embedder.ModelID() || index.Dimension() != embedder.Dimension() {
		return nil, ragErrors.InvalidArgument("index is bound to %s (dim %d) but embedder is %s (dim %d)",
			index.ModelID(), index.Dimension(), embedder.ModelID(), embedder.Dimension())
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		defaultK: defaultK,
		logger:   logger_i.NewLogger("Retriever"),
	}, nil
}

type options struct {
	k      int
	kSet   bool
	filter *commonModels.MetadataFilter
}

type Option func(*options)

// WithK overrides the configured k for one call. k <= 0 is rejected.
func WithK(k int) Option {
	return func(o *options) {
		o.k = k
		o.kSet = true
	}
}

// WithFilter restricts results to entries whose metadata field equals value.
func WithFilter(field string, value any) Option {
	return func(o *options) {
		o.filter = &commonModels.MetadataFilter{Field: field, Value: value}
	}
}

func (r *Retriever) DefaultK() int { return r.defaultK }

func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...Option) ([]commonModels.RetrievalResult, error) {
	o, err := r.resolve(opts)
	if err != nil {
		return nil, err
	}
	vector, err := r.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.search(ctx, vector, o)
}

// RetrieveWithVector skips the embedding step when the caller already has the query vector.
func (r *Retriever) RetrieveWithVector(ctx context.Context, vector []float32, opts ...Option) ([]commonModels.RetrievalResult, error) {
	o, err := r.resolve(opts)
	if err != nil {
		return nil, err
	}
	return r.search(ctx, vector, o)
}

// Embed exposes the query embedding so callers can reuse it, e.g. for the answer cache.
func (r *Retriever) Embed(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	vector, err := r.embedder.GetEmbedding(ctx, query)
	if err != nil {
		r.logger.WithTrace(ctx).Error("query embedding failed", "error", err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return vector, nil
}

// Validate rejects malformed options before any provider is called. custom reports whether
// they narrow the default search with a filter or a different k.
func (r *Retriever) Validate(opts ...Option) (custom bool, err error) {
	o, err := r.resolve(opts)
	if err != nil {
		return false, err
	}
	return o.filter != nil || o.k != r.defaultK, nil
}

func (r *Retriever) resolve(opts []Option) (options, error) {
	o := options{k: r.defaultK}
	for _, opt := range opts {
		opt(&o)
	}
	if o.kSet && o.k <= 0 {
		return o, ragErrors.InvalidArgument("k must be positive, got %d", o.k)
	}
	return o, nil
}

func (r *Retriever) search(ctx context.Context, vector []float32, o options) ([]commonModels.RetrievalResult, error) {
	log := r.logger.WithTrace(ctx)

	start := time.Now()
	var (
		hits []commonModels.ScoredEntry
		err  error
	)
	if o.filter != nil {
		hits, err = r.index.QueryWithFilter(ctx, vector, o.k, *o.filter)
	} else {
		hits, err = r.index.Query(ctx, vector, o.k)
	}
	metrics.CaptureExecutionMetrics("vector_search", time.Since(start))
	if err != nil {
		log.Error("vector search failed", "error", err)
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]commonModels.RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = commonModels.RetrievalResult{
			Content:        h.Entry.Text,
			Metadata:       h.Entry.Metadata,
			RelevanceScore: h.Score,
		}
	}
	log.Debug("retrieved", "k", o.k, "results", len(results))
	return results, nil
}
