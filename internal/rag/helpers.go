package rag

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
	"github.com/akolanti/SupportRAG/internal/source"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

const (
	outcomeGenerated = "generated"
	outcomeNoContext = "no_context"
	outcomeCached    = "cached"
	outcomeError     = "error"
)

func returnOutput(job jobModel.Job, record commonModels.AnswerRecord) jobModel.Job {
	job.JobPayload.Answer = record.Answer
	job.JobPayload.Sources = record.Context
	job.JobPayload.Cached = record.Cached
	job.CurrentStep = jobModel.Complete
	return job
}

func logOutput(job jobModel.Job, status jobModel.InternalStatus, log *logger_i.Logger) jobModel.Job {
	job.CurrentStep = status
	log.Debug("ProcessRequest", "Current Status", job.CurrentStep)
	return job
}

func (s *service) jobError(job jobModel.Job, err error, message string) jobModel.Job {
	s.logger.Error(message, "JobId", job.Id, "error", err)

	code := ragErrors.HTTPStatus(err)
	text := http.StatusText(code)
	if code == http.StatusBadRequest {
		text = err.Error()
	}
	job.Error = jobModel.JobError{
		Code:    code,
		Message: text,
		Retry:   ragErrors.IsRetryable(err),
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// compose is the query path shared by Answer and ProcessRequest. step reports progress.
func (s *service) compose(ctx context.Context, question string, history []commonModels.ChatTurn, opts []retriever.Option, step func(jobModel.InternalStatus)) (commonModels.AnswerRecord, error) {
	log := s.logger.WithTrace(ctx)
	if strings.TrimSpace(question) == "" {
		return commonModels.AnswerRecord{}, ragErrors.InvalidArgument("no message provided")
	}

	custom, err := s.retriever.Validate(opts...)
	if err != nil {
		return commonModels.AnswerRecord{}, err
	}

	step(jobModel.EmbeddingAPICall)
	vector, err := s.retriever.Embed(ctx, question)
	if err != nil {
		metrics.CountAnswer(outcomeError)
		return commonModels.AnswerRecord{}, err
	}

	// cached answers were composed from the default search without a conversation
	useCache := s.cache != nil && len(history) == 0 && !custom
	if useCache {
		step(jobModel.CacheCall)
		if record, found := s.executeCacheCheckStep(ctx, log, vector); found {
			record.Question = question
			metrics.CountAnswer(outcomeCached)
			return record, nil
		}
	}

	step(jobModel.VectorDBCall)
	results, err := s.retriever.RetrieveWithVector(ctx, vector, opts...)
	if err != nil {
		metrics.CountAnswer(outcomeError)
		return commonModels.AnswerRecord{}, err
	}
	results = s.applyFloor(results)

	if len(results) == 0 {
		log.Info("no relevant context, answering without generation")
		metrics.CountAnswer(outcomeNoContext)
		return commonModels.AnswerRecord{
			Question: question,
			Answer:   s.assembler.NoInformation(),
			Context:  []commonModels.RetrievalResult{},
		}, nil
	}

	step(jobModel.LLMCall)
	answer, used, err := s.executeLLMStep(ctx, question, results, history)
	if err != nil {
		log.Error("generation failed", "error", err)
		metrics.CountAnswer(outcomeError)
		return commonModels.AnswerRecord{}, fmt.Errorf("generating answer: %w", err)
	}
	record := commonModels.AnswerRecord{Question: question, Answer: answer, Context: used}
	metrics.CountAnswer(outcomeGenerated)

	if useCache {
		s.saveToCacheInBackground(ctx, vector, record)
	}
	return record, nil
}

// applyFloor drops results under the relevance floor. Results arrive sorted, so this is a cut.
func (s *service) applyFloor(results []commonModels.RetrievalResult) []commonModels.RetrievalResult {
	if s.floor < 0 {
		return results
	}
	for i, r := range results {
		if r.RelevanceScore < s.floor {
			return results[:i]
		}
	}
	return results
}

func (s *service) executeCacheCheckStep(ctx context.Context, log *logger_i.Logger, vector []float32) (commonModels.AnswerRecord, bool) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	record, found, err := s.cache.GetCachedAnswer(ctx, vector)
	if err != nil {
		// a broken cache only costs latency
		log.Warn("cache lookup failed", "error", err)
		return commonModels.AnswerRecord{}, false
	}
	return record, found
}

func (s *service) executeLLMStep(ctx context.Context, question string, results []commonModels.RetrievalResult, history []commonModels.ChatTurn) (string, []commonModels.RetrievalResult, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	p, used := s.assembler.Build(question, results, history)
	answer, err := s.generator.Generate(ctx, p)
	return answer, used, err
}

func (s *service) saveToCacheInBackground(ctx context.Context, vector []float32, record commonModels.AnswerRecord) {
	go func() {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.AnswerTimeout)
		defer cancel()
		if err := s.cache.SaveToCache(saveCtx, utils.GetNewUUID(), vector, record); err != nil {
			s.logger.Error("Failed to save to cache", "error", err)
		}
	}()
}

func (s *service) runIngestion(ctx context.Context, job jobModel.Job, src source.Source) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("JobId", job.Id)
	if s.pipeline == nil {
		return s.jobError(job, errors.New("ingestion pipeline is not configured"), "INGESTION_FAILURE")
	}

	job.CurrentStep = jobModel.SourceFetch
	docs, err := src.FetchDocuments(ctx)
	if err != nil {
		return s.jobError(job, err, "SOURCE_FETCH_FAILURE")
	}
	if s.artifacts != nil && job.JobType == jobModel.JobTypeRefresh {
		if err := s.artifacts.SaveArticles(docs); err != nil {
			log.Warn("could not save articles artifact", "error", err)
		}
	}

	job.CurrentStep = jobModel.IngestProcessing
	res, err := s.pipeline.Run(ctx, docs)
	job.JobPayload.IngestedDocs = res.Documents
	job.JobPayload.IngestedChunks = res.Indexed
	if err != nil {
		return s.jobError(job, err, "INGESTION_FAILURE")
	}
	log.Info("ingestion finished", "documents", res.Documents, "chunks", res.Indexed)

	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}
