package rag

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/data/artifacts"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/internal/rag/ingest"
	"github.com/akolanti/SupportRAG/internal/rag/llm"
	"github.com/akolanti/SupportRAG/internal/rag/prompt"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB"
	"github.com/akolanti/SupportRAG/internal/source"
	"github.com/akolanti/SupportRAG/internal/source/filesource"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

/*
ARCHITECTURE NOTE: OPAQUE INTERFACE PATTERN
---------------------------------------------------------

1. Service (Interface):
  - This is the PUBLIC contract used by the worker, the http handlers,
    the cli and the mcp server.
  - Callers never see the retriever, the generator or the index directly.

2. service (Private Struct):
  - Holds the state (retriever, generator, pipeline, cache).
  - Lowercase so nothing outside the package can reach into it.

3. Dependency Injection (NewService):
  - Everything is built once at process start and handed in through Deps,
    which lets tests swap in fakes without touching callers.
*/

// Service answers questions grounded in the help center and ingests new content.
type Service interface {
	// Answer retrieves context for question and composes a grounded answer.
	// History is added to the prompt only, retrieval uses the question alone.
	Answer(ctx context.Context, question string, history []commonModels.ChatTurn, opts ...retriever.Option) (commonModels.AnswerRecord, error)
	// Sources is retrieval without generation, after the relevance floor.
	Sources(ctx context.Context, question string, opts ...retriever.Option) ([]commonModels.RetrievalResult, error)

	ProcessRequest(ctx context.Context, job jobModel.Job, history []commonModels.ChatTurn) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
	RefreshHelpCenter(ctx context.Context, job jobModel.Job) jobModel.Job
}

// Deps are the collaborators of the service. Cache, Pipeline, HelpCenter and Artifacts are optional.
type Deps struct {
	Retriever *retriever.Retriever
	Generator llm.Provider
	Assembler *prompt.Assembler
	// MinRelevanceScore drops weaker results before assembly. Negative disables it.
	MinRelevanceScore float64

	Cache      vectorDB.AnswerCache
	Pipeline   *ingest.Pipeline
	HelpCenter source.Source
	Artifacts  *artifacts.Store
}

type service struct {
	retriever  *retriever.Retriever
	generator  llm.Provider
	assembler  *prompt.Assembler
	floor      float64
	cache      vectorDB.AnswerCache
	pipeline   *ingest.Pipeline
	helpCenter source.Source
	artifacts  *artifacts.Store
	logger     *logger_i.Logger
}

// NewService constructor
func NewService(d Deps) (Service, error) {
	if d.Retriever == nil || d.Generator == nil || d.Assembler == nil {
		return nil, ragErrors.InvalidArgument("rag service needs a retriever, a generator and an assembler")
	}
	return &service{
		retriever:  d.Retriever,
		generator:  d.Generator,
		assembler:  d.Assembler,
		floor:      d.MinRelevanceScore,
		cache:      d.Cache,
		pipeline:   d.Pipeline,
		helpCenter: d.HelpCenter,
		artifacts:  d.Artifacts,
		logger:     logger_i.NewLogger("RAG Service"),
	}, nil
}

func (s *service) Answer(ctx context.Context, question string, history []commonModels.ChatTurn, opts ...retriever.Option) (commonModels.AnswerRecord, error) {
	return s.compose(ctx, question, history, opts, func(jobModel.InternalStatus) {})
}

func (s *service) Sources(ctx context.Context, question string, opts ...retriever.Option) ([]commonModels.RetrievalResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ragErrors.InvalidArgument("no message provided")
	}
	results, err := s.retriever.Retrieve(ctx, question, opts...)
	if err != nil {
		return nil, err
	}
	return s.applyFloor(results), nil
}

func (s *service) ProcessRequest(ctx context.Context, jobt jobModel.Job, history []commonModels.ChatTurn) jobModel.Job {
	inMethodLogger := s.logger.WithTrace(ctx).With("JobId", jobt.Id)

	processContext, cancel := context.WithTimeout(ctx, config.QueryJobTimeout)
	defer cancel()

	jobt.CurrentStep = jobModel.RAGCall
	record, err := s.compose(processContext, jobt.JobPayload.Question, history, nil, func(step jobModel.InternalStatus) {
		jobt = logOutput(jobt, step, inMethodLogger)
	})
	if err != nil {
		return s.jobError(jobt, err, strings.ToUpper(string(jobt.CurrentStep))+"_FAILURE")
	}
	return returnOutput(jobt, record)
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("Document_ingestion", time.Since(start)) }()
	log := s.logger.WithTrace(ctx).With("JobId", job.Id)

	path := job.JobPayload.IngestURL
	defer func() {
		if path == "" {
			return
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("Error removing uploaded file", "error", err)
		}
	}()

	docID := utils.DeterministicUUID("upload:" + job.JobPayload.IngestFileName)
	return s.runIngestion(ctx, job, filesource.New(path, job.JobPayload.IngestFileName, docID))
}

func (s *service) RefreshHelpCenter(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("help_center_refresh", time.Since(start)) }()

	if s.helpCenter == nil {
		return s.jobError(job, ragErrors.InvalidArgument("no help center source configured"), "REFRESH_FAILURE")
	}
	return s.runIngestion(ctx, job, s.helpCenter)
}
