package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/SupportRAG/internal/data/artifacts"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/internal/rag/chunker"
	"github.com/akolanti/SupportRAG/internal/rag/embedding"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	BatchSize   int
	Concurrency int
	// EvictStale replaces a document's existing entries with its new ones in the same
	// write. Only backends implementing vectorDB.Evictor support it.
	EvictStale bool
}

// Result counts what one run produced.
type Result struct {
	Documents int
	Chunks    int
	Indexed   int
	Evicted   int
}

// Pipeline is chunk -> embed -> index. Embedding runs batches in parallel, indexing
// appends them in chunk order.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     vectorDB.Index
	cfg       Config
	artifacts *artifacts.Store
	logger    *logger_i.Logger
}

type Option func(*Pipeline)

// WithArtifacts makes Run persist chunks.json and chunks_with_embeddings.json.
func WithArtifacts(s *artifacts.Store) Option {
	return func(p *Pipeline) { p.artifacts = s }
}

func NewPipeline(c *chunker.Chunker, e embedding.Embedder, idx vectorDB.Index, cfg Config, opts ...Option) (*Pipeline, error) {
	if c == nil || e == nil {
		return nil, ragErrors.InvalidArgument("pipeline needs a chunker and an embedder")
	}
	if cfg.BatchSize <= 0 || cfg.Concurrency <= 0 {
		return nil, ragErrors.InvalidArgument("batch size and concurrency must be positive, got %d and %d", cfg.BatchSize, cfg.Concurrency)
	}
	if idx != nil && (idx.ModelID() != e.ModelID() || idx.Dimension() != e.Dimension()) {
		return nil, ragErrors.InvalidArgument("index is bound to %s but embedder is %s", idx.ModelID(), e.ModelID())
	}
	p := &Pipeline{
		chunker:  c,
		embedder: e,
		index:    idx,
		cfg:      cfg,
		logger:   logger_i.NewLogger("Ingestion"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Chunk(docs []commonModels.Document) []commonModels.Chunk {
	chunks := p.chunker.Chunk(docs)
	metrics.AddIngestedChunks(len(chunks))
	return chunks
}

// Embed returns one EmbeddedChunk per chunk, in input order. Any failed batch fails the call.
func (p *Pipeline) Embed(ctx context.Context, chunks []commonModels.Chunk) ([]commonModels.EmbeddedChunk, error) {
	out := make([]commonModels.EmbeddedChunk, len(chunks))
	batches := p.batches(len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, b := range batches {
		g.Go(func() error {
			return p.embedBatch(gctx, chunks, out, b)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Index appends already embedded chunks. Chunks embedded by another model are rejected.
func (p *Pipeline) Index(ctx context.Context, embedded []commonModels.EmbeddedChunk) (Result, error) {
	if p.index == nil {
		return Result{}, ragErrors.InvalidArgument("pipeline has no index")
	}
	for _, e := range embedded {
		if e.Model != "" && e.Model != p.index.ModelID() {
			return Result{}, ragErrors.InvalidArgument("chunk was embedded by %s but the index is bound to %s", e.Model, p.index.ModelID())
		}
	}
	var res Result
	evicted := map[string]bool{}
	for _, b := range p.batches(len(embedded)) {
		n, err := p.indexBatch(ctx, embedded[b.start:b.end], evicted)
		res.Evicted += n
		if err != nil {
			return res, err
		}
		res.Indexed += b.end - b.start
	}
	return res, nil
}

// Run ingests docs end to end. Batches are embedded a wave at a time; when a batch fails
// the batches before it are still appended and the error is returned.
func (p *Pipeline) Run(ctx context.Context, docs []commonModels.Document) (Result, error) {
	log := p.logger.WithTrace(ctx)
	if p.index == nil {
		return Result{}, ragErrors.InvalidArgument("pipeline has no index")
	}

	start := time.Now()
	chunks := p.Chunk(docs)
	res := Result{Documents: len(docs), Chunks: len(chunks)}
	log.Info("chunked documents", "documents", len(docs), "chunks", len(chunks))
	if p.artifacts != nil {
		if err := p.artifacts.SaveChunks(chunks); err != nil {
			return res, fmt.Errorf("saving chunks: %w", err)
		}
	}

	embedded := make([]commonModels.EmbeddedChunk, len(chunks))
	batches := p.batches(len(chunks))
	evicted := map[string]bool{}

	for waveStart := 0; waveStart < len(batches); waveStart += p.cfg.Concurrency {
		wave := batches[waveStart:min(waveStart+p.cfg.Concurrency, len(batches))]
		errs := make([]error, len(wave))

		// batches of a wave do not cancel each other, so the earlier ones can still be kept
		var g errgroup.Group
		for i, b := range wave {
			g.Go(func() error {
				errs[i] = p.embedBatch(ctx, chunks, embedded, b)
				return nil
			})
		}
		_ = g.Wait()

		for i, b := range wave {
			if errs[i] != nil {
				log.Error("embedding batch failed, stopping run", "batch", waveStart+i, "indexed", res.Indexed, "error", errs[i])
				return res, fmt.Errorf("embedding batch %d: %w", waveStart+i, errs[i])
			}
			n, err := p.indexBatch(ctx, embedded[b.start:b.end], evicted)
			res.Evicted += n
			if err != nil {
				log.Error("index append failed, stopping run", "batch", waveStart+i, "error", err)
				return res, fmt.Errorf("indexing batch %d: %w", waveStart+i, err)
			}
			res.Indexed += b.end - b.start
		}
	}

	if p.artifacts != nil {
		if err := p.artifacts.SaveEmbedded(embedded); err != nil {
			log.Warn("could not save embeddings artifact", "error", err)
		}
	}
	metrics.CaptureExecutionMetrics("ingestion_run", time.Since(start))
	log.Info("ingestion complete", "documents", res.Documents, "chunks", res.Chunks, "indexed", res.Indexed, "evicted", res.Evicted)
	return res, nil
}

type batch struct{ start, end int }

func (p *Pipeline) batches(n int) []batch {
	var out []batch
	for i := 0; i < n; i += p.cfg.BatchSize {
		out = append(out, batch{i, min(i+p.cfg.BatchSize, n)})
	}
	return out
}

func (p *Pipeline) embedBatch(ctx context.Context, chunks []commonModels.Chunk, out []commonModels.EmbeddedChunk, b batch) error {
	texts := make([]string, 0, b.end-b.start)
	for _, c := range chunks[b.start:b.end] {
		texts = append(texts, c.Text)
	}

	start := time.Now()
	vectors, err := p.embedder.BatchEmbedding(ctx, texts)
	metrics.CaptureExecutionMetrics("embedding_batch", time.Since(start))
	if err != nil {
		return err
	}
	if err := embedding.CheckBatch(len(texts), vectors, p.embedder.Dimension()); err != nil {
		return err
	}
	for i, v := range vectors {
		out[b.start+i] = commonModels.EmbeddedChunk{
			Chunk:     chunks[b.start+i],
			Embedding: v,
			Model:     p.embedder.ModelID(),
		}
	}
	return nil
}

// indexBatch appends one batch. Documents seen for the first time in this run have their
// older entries replaced in the same step, so a failed append keeps them.
func (p *Pipeline) indexBatch(ctx context.Context, embedded []commonModels.EmbeddedChunk, evicted map[string]bool) (int, error) {
	entries := make([]commonModels.IndexEntry, len(embedded))
	for i, e := range embedded {
		entries[i] = commonModels.IndexEntry{Vector: e.Embedding, Text: e.Text, Metadata: e.Metadata}
	}

	ev, ok := p.index.(vectorDB.Evictor)
	if !p.cfg.EvictStale || !ok {
		return 0, p.index.Add(ctx, entries)
	}

	var ids []string
	seen := map[string]bool{}
	for _, e := range embedded {
		if id := e.Metadata.DocId; id != "" && !evicted[id] && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	removed, err := ev.ReplaceDocuments(ctx, ids, entries)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		evicted[id] = true
	}
	return removed, nil
}
