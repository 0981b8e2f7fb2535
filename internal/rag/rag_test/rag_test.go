package rag_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag"
	"github.com/akolanti/SupportRAG/internal/rag/chunker"
	"github.com/akolanti/SupportRAG/internal/rag/embedding/fakeEmbedding"
	"github.com/akolanti/SupportRAG/internal/rag/ingest"
	"github.com/akolanti/SupportRAG/internal/rag/llm"
	"github.com/akolanti/SupportRAG/internal/rag/llm/fakeLLM"
	"github.com/akolanti/SupportRAG/internal/rag/prompt"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB/sqliteDB"
	"github.com/akolanti/SupportRAG/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceCtx() context.Context {
	return context.WithValue(context.Background(), config.TRACE_ID_KEY, "test-trace")
}

func assembler(t *testing.T) *prompt.Assembler {
	t.Helper()
	a, err := prompt.New("Voy", config.MaxContextChars)
	require.NoError(t, err)
	return a
}

func mockService(t *testing.T, e *MockEmbedder, idx *MockIndex, l *MockLLM, cache *MockCache) rag.Service {
	t.Helper()
	r, err := retriever.New(idx, e, 2)
	require.NoError(t, err)
	deps := rag.Deps{Retriever: r, Generator: l, Assembler: assembler(t), MinRelevanceScore: 0.2}
	if cache != nil {
		deps.Cache = cache
	}
	s, err := rag.NewService(deps)
	require.NoError(t, err)
	return s
}

func TestProcessRequest_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		question       string
		setupMocks     func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache)
		expectedStep   jobModel.InternalStatus
		expectedStatus jobModel.JobStatus
		expectedAnswer string
		expectedCode   int
		expectedRetry  bool
	}{
		{
			name: "Success_Full_Flow",
			setupMocks: func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache) {
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					return "final answer", nil
				}
			},
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "final answer",
		},
		{
			name: "Success_Cache_Hit",
			setupMocks: func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache) {
				c.OnGetCachedAnswer = func(ctx context.Context, emb []float32) (commonModels.AnswerRecord, bool, error) {
					return commonModels.AnswerRecord{Answer: "cached answer", Cached: true}, true, nil
				}
			},
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "cached answer",
		},
		{
			name: "Cache_Failure_Falls_Through",
			setupMocks: func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache) {
				c.OnGetCachedAnswer = func(ctx context.Context, emb []float32) (commonModels.AnswerRecord, bool, error) {
					return commonModels.AnswerRecord{}, false, errors.New("qdrant down")
				}
			},
			expectedStep:   jobModel.Complete,
			expectedStatus: jobModel.JobStatusQueued,
			expectedAnswer: "mocked llm response",
		},
		{
			name: "Failure_Embedding",
			setupMocks: func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache) {
				e.OnGetEmbedding = func(ctx context.Context, text string) ([]float32, error) {
					return nil, ragErrors.NewProviderError("mock", "embed", 429, errors.New("api limit"))
				}
			},
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusBadGateway,
			expectedRetry:  true,
		},
		{
			name: "Failure_Vector_Search",
			setupMocks: func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache) {
				v.OnQuery = func(ctx context.Context, vec []float32, k int) ([]commonModels.ScoredEntry, error) {
					return nil, errors.New("db timeout")
				}
			},
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusInternalServerError,
		},
		{
			name: "Failure_LLM_Generation",
			setupMocks: func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache) {
				l.OnGenerate = func(ctx context.Context, p llm.Prompt) (string, error) {
					return "", ragErrors.NewProviderError("mock", "generate", 401, errors.New("bad key"))
				}
			},
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusBadGateway,
			expectedRetry:  false,
		},
		{
			name:           "Failure_Empty_Question",
			question:       "   ",
			setupMocks:     func(e *MockEmbedder, v *MockIndex, l *MockLLM, c *MockCache) {},
			expectedStep:   jobModel.Error,
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mEmbed := &MockEmbedder{}
			mIdx := &MockIndex{}
			mLLM := &MockLLM{}
			mCache := NewMockCache()

			tt.setupMocks(mEmbed, mIdx, mLLM, mCache)
			s := mockService(t, mEmbed, mIdx, mLLM, mCache)

			question := tt.question
			if question == "" {
				question = "test question"
			}
			job := jobModel.Job{
				Id:         "test-job",
				Status:     jobModel.JobStatusQueued,
				JobPayload: jobModel.JobPayload{Question: question},
			}

			result := s.ProcessRequest(traceCtx(), job, nil)

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if result.CurrentStep != tt.expectedStep {
				t.Errorf("Step got %v, want %v", result.CurrentStep, tt.expectedStep)
			}
			if tt.expectedAnswer != "" && result.JobPayload.Answer != tt.expectedAnswer {
				t.Errorf("Answer got %s, want %s", result.JobPayload.Answer, tt.expectedAnswer)
			}
			if tt.expectedCode != 0 {
				if result.Error.Code != tt.expectedCode {
					t.Errorf("Error Code got %d, want %d", result.Error.Code, tt.expectedCode)
				}
				if result.Error.Retry != tt.expectedRetry {
					t.Errorf("Retry got %v, want %v", result.Error.Retry, tt.expectedRetry)
				}
			}
		})
	}
}

func TestAnswerSavesToCacheInBackground(t *testing.T) {
	cache := NewMockCache()
	s := mockService(t, &MockEmbedder{}, &MockIndex{}, &MockLLM{}, cache)

	record, err := s.Answer(traceCtx(), "where is my order", nil)
	require.NoError(t, err)
	assert.Equal(t, "mocked llm response", record.Answer)

	select {
	case saved := <-cache.saved:
		assert.Equal(t, "where is my order", saved.Question)
	case <-time.After(2 * time.Second):
		t.Fatal("answer was not cached")
	}
}

func TestHistoryReachesPromptButNotRetrieval(t *testing.T) {
	e := &MockEmbedder{}
	cacheCalls := 0
	cache := NewMockCache()
	cache.OnGetCachedAnswer = func(ctx context.Context, v []float32) (commonModels.AnswerRecord, bool, error) {
		cacheCalls++
		return commonModels.AnswerRecord{}, false, nil
	}
	var seen llm.Prompt
	l := &MockLLM{OnGenerate: func(ctx context.Context, p llm.Prompt) (string, error) {
		seen = p
		return "ok", nil
	}}
	s := mockService(t, e, &MockIndex{}, l, cache)

	history := []commonModels.ChatTurn{
		{Role: commonModels.RoleUser, Content: "I ordered last week"},
		{Role: commonModels.RoleAssistant, Content: "Thanks, what is your question?"},
	}
	_, err := s.Answer(traceCtx(), "when will it arrive", history)
	require.NoError(t, err)

	assert.Equal(t, []string{"when will it arrive"}, e.Embedded)
	assert.Contains(t, seen.User, "user: I ordered last week")
	assert.Contains(t, seen.User, "question: when will it arrive")
	assert.Zero(t, cacheCalls, "conversations bypass the answer cache")
}

func TestCachedAnswerRespectsCallOptions(t *testing.T) {
	cacheCalls := 0
	cache := NewMockCache()
	cache.OnGetCachedAnswer = func(ctx context.Context, v []float32) (commonModels.AnswerRecord, bool, error) {
		cacheCalls++
		return commonModels.AnswerRecord{
			Question: "how do referrals work",
			Answer:   "cached",
			Context:  make([]commonModels.RetrievalResult, 3),
			Cached:   true,
		}, true, nil
	}
	e := &MockEmbedder{}
	l := &MockLLM{}
	s := mockService(t, e, &MockIndex{}, l, cache)

	t.Run("hit reports the question asked", func(t *testing.T) {
		record, err := s.Answer(traceCtx(), "explain the referral scheme", nil)
		require.NoError(t, err)
		assert.Equal(t, "cached", record.Answer)
		assert.Equal(t, "explain the referral scheme", record.Question)
		assert.True(t, record.Cached)
	})

	t.Run("filter or k bypasses the cache", func(t *testing.T) {
		before := cacheCalls
		record, err := s.Answer(traceCtx(), "explain the referral scheme", nil,
			retriever.WithK(1), retriever.WithFilter("doc_id", "B"))
		require.NoError(t, err)
		assert.Equal(t, before, cacheCalls)
		assert.False(t, record.Cached)
		assert.Len(t, record.Context, 1)
		assert.Equal(t, 1, l.Calls)
	})

	t.Run("default k still uses the cache", func(t *testing.T) {
		before := cacheCalls
		_, err := s.Answer(traceCtx(), "explain the referral scheme", nil, retriever.WithK(2))
		require.NoError(t, err)
		assert.Equal(t, before+1, cacheCalls)
	})

	t.Run("malformed k fails before any provider call", func(t *testing.T) {
		embedded := len(e.Embedded)
		_, err := s.Answer(traceCtx(), "explain the referral scheme", nil, retriever.WithK(0))
		assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
		assert.Len(t, e.Embedded, embedded)
	})
}

func TestRelevanceFloorYieldsNoInformationAnswer(t *testing.T) {
	idx := &MockIndex{OnQuery: func(ctx context.Context, v []float32, k int) ([]commonModels.ScoredEntry, error) {
		return []commonModels.ScoredEntry{
			{Entry: commonModels.IndexEntry{Text: "weak"}, Score: 0.1},
			{Entry: commonModels.IndexEntry{Text: "weaker"}, Score: -0.3},
		}, nil
	}}
	l := &MockLLM{}
	s := mockService(t, &MockEmbedder{}, idx, l, nil)

	record, err := s.Answer(traceCtx(), "what is the meaning of life", nil)
	require.NoError(t, err)
	assert.Contains(t, record.Answer, "I don't have information")
	assert.Contains(t, record.Answer, "customer support")
	assert.Empty(t, record.Context)
	assert.Zero(t, l.Calls)

	sources, err := s.Sources(traceCtx(), "what is the meaning of life")
	require.NoError(t, err)
	assert.Empty(t, sources)

	_, err = s.Sources(traceCtx(), "")
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

// --- End to end over the real chunker, fake embedder and sqlite index ---

func scenarioDocs() []commonModels.Document {
	a := strings.Repeat("The referral program rewards you when a friend signs up with your invite code. ", 40)[:2400]
	para := strings.Repeat("Every prescription request goes through a clinical approval process with our doctors. ", 11)[:899]
	return []commonModels.Document{
		{Id: "A", Title: "Referral Program", Body: a, URL: "https://help/a"},
		{Id: "B", Title: "Approval Process", Body: para + "\n\n" + para, URL: "https://help/b"},
	}
}

type stack struct {
	service  rag.Service
	index    *sqliteDB.Index
	pipeline *ingest.Pipeline
	llm      *fakeLLM.Provider
}

func realStack(t *testing.T, helpCenter source.Source) stack {
	t.Helper()
	emb, err := fakeEmbedding.New(config.FakeEmbeddingDimensionality)
	require.NoError(t, err)
	idx, err := sqliteDB.Open(filepath.Join(t.TempDir(), "index.db"), emb.ModelID(), emb.Dimension())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	c, err := chunker.New(1000, 200)
	require.NoError(t, err)
	p, err := ingest.NewPipeline(c, emb, idx, ingest.Config{BatchSize: 64, Concurrency: 4})
	require.NoError(t, err)
	r, err := retriever.New(idx, emb, config.DefaultK)
	require.NoError(t, err)

	gen := fakeLLM.New()
	s, err := rag.NewService(rag.Deps{
		Retriever:         r,
		Generator:         gen,
		Assembler:         assembler(t),
		MinRelevanceScore: config.MinRelevanceScore,
		Pipeline:          p,
		HelpCenter:        helpCenter,
	})
	require.NoError(t, err)
	return stack{service: s, index: idx, pipeline: p, llm: gen}
}

func TestEndToEndReferralQuestion(t *testing.T) {
	st := realStack(t, nil)
	ctx := traceCtx()

	res, err := st.pipeline.Run(ctx, scenarioDocs())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Indexed)

	record, err := st.service.Answer(ctx, "How does the referral program work?", nil, retriever.WithK(2))
	require.NoError(t, err)
	require.Len(t, record.Context, 2)
	for _, r := range record.Context {
		assert.Equal(t, "Referral Program", r.Metadata.Title)
	}
	assert.GreaterOrEqual(t, record.Context[0].RelevanceScore, record.Context[1].RelevanceScore)
	assert.Contains(t, record.Answer, "referral program")

	prompts := st.llm.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0].User, "source 1: Referral Program")
	assert.Contains(t, prompts[0].User, "source 2: Referral Program")
	assert.Contains(t, prompts[0].System, "only the provided context")
}

func TestEmptyIndexAnswersWithoutInformation(t *testing.T) {
	st := realStack(t, nil)
	ctx := traceCtx()

	sources, err := st.service.Sources(ctx, "Can I pause my subscription?", retriever.WithK(3))
	require.NoError(t, err)
	assert.Empty(t, sources)

	record, err := st.service.Answer(ctx, "Can I pause my subscription?", nil, retriever.WithK(3))
	require.NoError(t, err)
	assert.Contains(t, record.Answer, "I don't have information")
	assert.Contains(t, record.Answer, "customer support")
	assert.Empty(t, st.llm.Prompts())
}

func TestIngestDocument_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		fileName       string
		content        string
		expectedStatus jobModel.JobStatus
		expectedCode   int
	}{
		{
			name:           "Ingestion_Success",
			fileName:       "Referral Program.txt",
			content:        "Invite a friend with your referral code and you both get a reward.",
			expectedStatus: jobModel.JobStatusComplete,
		},
		{
			name:           "Failure_Unsupported_Type",
			fileName:       "photo.png",
			content:        "not really a png",
			expectedStatus: jobModel.JobStatusError,
			expectedCode:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := realStack(t, nil)
			path := filepath.Join(t.TempDir(), tt.fileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			job := jobModel.Job{
				Id:      "ingest-job-1",
				JobType: jobModel.JobTypeIngest,
				JobPayload: jobModel.JobPayload{
					IngestFileName: tt.fileName,
					IngestURL:      path,
				},
			}
			result := st.service.IngestDocument(traceCtx(), job)

			if result.Status != tt.expectedStatus {
				t.Errorf("Status got %v, want %v", result.Status, tt.expectedStatus)
			}
			if tt.expectedCode != 0 && result.Error.Code != tt.expectedCode {
				t.Errorf("Error Code got %d, want %d", result.Error.Code, tt.expectedCode)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("uploaded file should be removed after ingestion")
			}
			if tt.expectedStatus == jobModel.JobStatusComplete {
				assert.Equal(t, 1, result.JobPayload.IngestedChunks)
				n, err := st.index.Count(context.Background())
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			}
		})
	}
}

func TestRefreshHelpCenter(t *testing.T) {
	st := realStack(t, source.Static(scenarioDocs()))
	job := jobModel.Job{Id: "refresh-1", JobType: jobModel.JobTypeRefresh}

	result := st.service.RefreshHelpCenter(traceCtx(), job)
	assert.Equal(t, jobModel.JobStatusComplete, result.Status)
	assert.Equal(t, 2, result.JobPayload.IngestedDocs)
	assert.Equal(t, 5, result.JobPayload.IngestedChunks)

	noSource := realStack(t, nil)
	result = noSource.service.RefreshHelpCenter(traceCtx(), job)
	assert.Equal(t, jobModel.JobStatusError, result.Status)
}
