// Package app builds the retrieval and ingestion stack from an AppConfig.
// The api server, ragctl and the mcp server all start from here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/data/artifacts"
	"github.com/akolanti/SupportRAG/internal/data/redisStore"
	"github.com/akolanti/SupportRAG/internal/rag"
	"github.com/akolanti/SupportRAG/internal/rag/chunker"
	"github.com/akolanti/SupportRAG/internal/rag/embedding"
	"github.com/akolanti/SupportRAG/internal/rag/embedding/cachedEmbedding"
	"github.com/akolanti/SupportRAG/internal/rag/embedding/fakeEmbedding"
	"github.com/akolanti/SupportRAG/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/SupportRAG/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/SupportRAG/internal/rag/googleClient"
	"github.com/akolanti/SupportRAG/internal/rag/ingest"
	"github.com/akolanti/SupportRAG/internal/rag/llm"
	"github.com/akolanti/SupportRAG/internal/rag/llm/fakeLLM"
	"github.com/akolanti/SupportRAG/internal/rag/llm/gemini"
	"github.com/akolanti/SupportRAG/internal/rag/llm/openaiLLM"
	"github.com/akolanti/SupportRAG/internal/rag/openaiClient"
	"github.com/akolanti/SupportRAG/internal/rag/prompt"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB/sqliteDB"
	"github.com/akolanti/SupportRAG/internal/source"
	"github.com/akolanti/SupportRAG/internal/source/zendesk"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var logger = logger_i.NewLogger("app")

// Stack holds every collaborator built from one config. Close releases the index
// and any qdrant connection.
type Stack struct {
	Config     *config.AppConfig
	Embedder   embedding.Embedder
	Generator  llm.Provider
	Index      vectorDB.Index
	Chunker    *chunker.Chunker
	Retriever  *retriever.Retriever
	Assembler  *prompt.Assembler
	Pipeline   *ingest.Pipeline
	Artifacts  *artifacts.Store
	HelpCenter source.Source
	Cache      vectorDB.AnswerCache
	Service    rag.Service

	qdrantClient    *qdrant.Client
	indexOwnsQdrant bool
}

// Build wires the whole stack. Providers that need api keys fail here, not on first use.
func Build(ctx context.Context, cfg *config.AppConfig) (*Stack, error) {
	s := &Stack{Config: cfg, Artifacts: artifacts.New(cfg.Artifacts.Dir)}

	var err error
	if s.Embedder, err = NewEmbedder(ctx, cfg); err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	if s.Generator, err = NewGenerator(ctx, cfg); err != nil {
		return nil, fmt.Errorf("generation provider: %w", err)
	}
	if err = s.openIndex(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("vector index: %w", err)
	}
	if s.Chunker, err = chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.Retriever, err = retriever.New(s.Index, s.Embedder, cfg.RAG.K); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.Assembler, err = prompt.New(cfg.RAG.Brand, cfg.RAG.MaxContextChars); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.Pipeline, err = NewPipeline(cfg, s.Chunker, s.Embedder, s.Index, s.Artifacts); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.HelpCenter, err = NewHelpCenter(cfg, s.Artifacts); err != nil {
		_ = s.Close()
		return nil, err
	}
	if cfg.Index.SemanticCache {
		s.openCache(ctx)
	}

	s.Service, err = rag.NewService(rag.Deps{
		Retriever:         s.Retriever,
		Generator:         s.Generator,
		Assembler:         s.Assembler,
		MinRelevanceScore: cfg.RAG.MinRelevanceScore,
		Cache:             s.Cache,
		Pipeline:          s.Pipeline,
		HelpCenter:        s.HelpCenter,
		Artifacts:         s.Artifacts,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	logger.Info("stack ready",
		"embedding", s.Embedder.ModelID(),
		"generation", s.Generator.ModelID(),
		"index", cfg.Index.Backend,
		"semanticCache", s.Cache != nil)
	return s, nil
}

func (s *Stack) Close() error {
	var errs []error
	if s.Index != nil {
		errs = append(errs, s.Index.Close())
	}
	if s.qdrantClient != nil && !s.indexOwnsQdrant {
		errs = append(errs, s.qdrantClient.Close())
	}
	return errors.Join(errs...)
}

func (s *Stack) openIndex(ctx context.Context) error {
	cfg := s.Config
	switch cfg.Index.Backend {
	case config.IndexBackendQdrant:
		client, err := s.qdrant(ctx)
		if err != nil {
			return err
		}
		idx, err := qdrantDB.Open(ctx, client, cfg.Index.CollectionNamePrefix, s.Embedder.ModelID(), s.Embedder.Dimension())
		if err != nil {
			return err
		}
		s.Index = idx.OwnClient()
		s.indexOwnsQdrant = true
	default:
		idx, err := sqliteDB.Open(cfg.Index.Path, s.Embedder.ModelID(), s.Embedder.Dimension())
		if err != nil {
			return err
		}
		s.Index = idx
	}
	return nil
}

// openCache degrades to no cache when qdrant is unreachable, answers still work without it.
func (s *Stack) openCache(ctx context.Context) {
	client, err := s.qdrant(ctx)
	if err != nil {
		logger.Warn("semantic cache disabled, qdrant unavailable", "error", err)
		return
	}
	cache, err := qdrantDB.NewSemanticCache(ctx, client, s.Embedder.ModelID(), s.Embedder.Dimension(), s.Config.Index.SemanticCacheCutoff)
	if err != nil {
		logger.Warn("semantic cache disabled", "error", err)
		return
	}
	s.Cache = cache
}

func (s *Stack) qdrant(ctx context.Context) (*qdrant.Client, error) {
	if s.qdrantClient != nil {
		return s.qdrantClient, nil
	}
	client, err := qdrantDB.Connect(ctx, s.Config.Index.Qdrant)
	if err != nil {
		return nil, err
	}
	s.qdrantClient = client
	return client, nil
}

// NewEmbedder picks the provider from config and wraps it with the redis cache when asked.
func NewEmbedder(ctx context.Context, cfg *config.AppConfig) (embedding.Embedder, error) {
	var (
		e   embedding.Embedder
		err error
	)
	switch cfg.Embedding.Provider {
	case config.EmbeddingProviderGoogle:
		client, cerr := googleClient.New(ctx, cfg.EmbeddingAPIKey())
		if cerr != nil {
			return nil, cerr
		}
		e, err = googleEmbedding.New(client, cfg.Embedding.Model, cfg.Embedding.Dimension)
	case config.EmbeddingProviderOpenAI:
		client, cerr := openaiClient.New(cfg.EmbeddingAPIKey(), cfg.Embedding.BaseURL)
		if cerr != nil {
			return nil, cerr
		}
		e, err = openaiEmbedding.New(client, cfg.Embedding.Model, cfg.Embedding.Dimension)
	case config.EmbeddingProviderFake:
		e, err = fakeEmbedding.New(cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Embedding.Cache {
		store := redisStore.GetRedisStore(ctx, cfg.Redis, config.RedisEmbeddingCache)
		if store == nil {
			logger.Warn("embedding cache disabled, redis unavailable")
			return e, nil
		}
		return cachedEmbedding.New(e, store, config.EmbeddingCacheTTL), nil
	}
	return e, nil
}

func NewGenerator(ctx context.Context, cfg *config.AppConfig) (llm.Provider, error) {
	switch cfg.Generation.Provider {
	case config.GenerationProviderGemini:
		client, err := googleClient.New(ctx, cfg.GenerationAPIKey())
		if err != nil {
			return nil, err
		}
		return gemini.New(client, cfg.Generation.Model, cfg.Generation.Temperature)
	case config.GenerationProviderOpenAI:
		client, err := openaiClient.New(cfg.GenerationAPIKey(), cfg.Generation.BaseURL)
		if err != nil {
			return nil, err
		}
		return openaiLLM.New(client, cfg.Generation.Model, cfg.Generation.Temperature)
	case config.GenerationProviderFake:
		return fakeLLM.New(), nil
	}
	return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
}

// NewPipeline accepts a nil index for the chunk and embed stages.
func NewPipeline(cfg *config.AppConfig, c *chunker.Chunker, e embedding.Embedder, idx vectorDB.Index, store *artifacts.Store) (*ingest.Pipeline, error) {
	return ingest.NewPipeline(c, e, idx, ingest.Config{
		BatchSize:   cfg.RAG.EmbedBatchSize,
		Concurrency: cfg.RAG.EmbedConcurrency,
		EvictStale:  cfg.RAG.EvictStaleOnReingest,
	}, ingest.WithArtifacts(store))
}

func NewHelpCenter(cfg *config.AppConfig, store *artifacts.Store) (source.Source, error) {
	client, err := zendesk.New(cfg.Source)
	if err != nil {
		return nil, err
	}
	var raw *artifacts.Store
	if cfg.Source.SaveRaw {
		raw = store
	}
	return zendesk.NewSource(client, raw), nil
}
