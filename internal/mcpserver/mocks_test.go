package mcpserver

import (
	"context"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
)

type mockRAG struct {
	OnAnswer  func(ctx context.Context, question string, opts ...retriever.Option) (commonModels.AnswerRecord, error)
	OnSources func(ctx context.Context, question string, opts ...retriever.Option) ([]commonModels.RetrievalResult, error)
}

func (m *mockRAG) Answer(ctx context.Context, question string, _ []commonModels.ChatTurn, opts ...retriever.Option) (commonModels.AnswerRecord, error) {
	return m.OnAnswer(ctx, question, opts...)
}

func (m *mockRAG) Sources(ctx context.Context, question string, opts ...retriever.Option) ([]commonModels.RetrievalResult, error) {
	return m.OnSources(ctx, question, opts...)
}

func (m *mockRAG) ProcessRequest(ctx context.Context, job jobModel.Job, _ []commonModels.ChatTurn) jobModel.Job {
	return job
}

func (m *mockRAG) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job { return job }

func (m *mockRAG) RefreshHelpCenter(ctx context.Context, job jobModel.Job) jobModel.Job { return job }
