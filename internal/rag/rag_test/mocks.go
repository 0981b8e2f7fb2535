package rag_test

import (
	"context"
	"sync"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/rag/llm"
)

const mockModel = "mock/model@3"

// MockIndex implements vectorDB.Index
type MockIndex struct {
	OnQuery func(ctx context.Context, v []float32, k int) ([]commonModels.ScoredEntry, error)
	OnAdd   func(ctx context.Context, entries []commonModels.IndexEntry) error
}

func (m *MockIndex) ModelID() string { return mockModel }
func (m *MockIndex) Dimension() int  { return 3 }

func (m *MockIndex) Add(ctx context.Context, entries []commonModels.IndexEntry) error {
	if m.OnAdd != nil {
		return m.OnAdd(ctx, entries)
	}
	return nil
}

func (m *MockIndex) Query(ctx context.Context, v []float32, k int) ([]commonModels.ScoredEntry, error) {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, v, k)
	}
	return []commonModels.ScoredEntry{{
		Entry: commonModels.IndexEntry{Text: "default context", Metadata: commonModels.ChunkMetadata{Title: "Default"}},
		Score: 0.9,
	}}, nil
}

func (m *MockIndex) QueryWithFilter(ctx context.Context, v []float32, k int, _ commonModels.MetadataFilter) ([]commonModels.ScoredEntry, error) {
	return m.Query(ctx, v, k)
}

func (m *MockIndex) Count(ctx context.Context) (int, error) { return 0, nil }
func (m *MockIndex) Close() error                           { return nil }

// MockEmbedder implements embedding.Embedder and records what it embedded.
type MockEmbedder struct {
	OnGetEmbedding func(ctx context.Context, text string) ([]float32, error)

	mu       sync.Mutex
	Embedded []string
}

func (m *MockEmbedder) ModelID() string { return mockModel }
func (m *MockEmbedder) Dimension() int  { return 3 }

func (m *MockEmbedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Embedded = append(m.Embedded, text)
	m.mu.Unlock()
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.GetEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate func(ctx context.Context, p llm.Prompt) (string, error)
	Calls      int
}

func (m *MockLLM) ModelID() string { return "mock/llm" }

func (m *MockLLM) Generate(ctx context.Context, p llm.Prompt) (string, error) {
	m.Calls++
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, p)
	}
	return "mocked llm response", nil
}

// MockCache implements vectorDB.AnswerCache
type MockCache struct {
	OnGetCachedAnswer func(ctx context.Context, v []float32) (commonModels.AnswerRecord, bool, error)
	saved             chan commonModels.AnswerRecord
}

func NewMockCache() *MockCache {
	return &MockCache{saved: make(chan commonModels.AnswerRecord, 1)}
}

func (m *MockCache) GetCachedAnswer(ctx context.Context, v []float32) (commonModels.AnswerRecord, bool, error) {
	if m.OnGetCachedAnswer != nil {
		return m.OnGetCachedAnswer(ctx, v)
	}
	return commonModels.AnswerRecord{}, false, nil
}

func (m *MockCache) SaveToCache(ctx context.Context, id string, v []float32, r commonModels.AnswerRecord) error {
	select {
	case m.saved <- r:
	default:
	}
	return nil
}
