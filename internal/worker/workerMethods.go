package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/SupportRAG/internal/config"
	jobmodel "github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()

	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobTimeout(job.JobType))
	defer cancel()
	log := logger.WithTrace(ctxTrace).With("jobId", job.Id, "jobType", job.JobType)
	log.Debug("Processing job")

	saveJobState(ctx, job, jobmodel.JobStatusRunning, log)

	switch job.JobType {
	case jobmodel.JobTypeIngest:
		job.CurrentStep = jobmodel.IngestProcessing
		job = _ragService.IngestDocument(ctx, job)
	case jobmodel.JobTypeRefresh:
		job.CurrentStep = jobmodel.IngestProcessing
		job = _ragService.RefreshHelpCenter(ctx, job)
	default:
		job = processQuery(ctx, job, log)
		if job.Status != jobmodel.JobStatusError {
			if err := _jobService.MessageStore.TrySaveChat(ctx, job.ChatId, job.JobPayload); err != nil {
				log.Error("Failed to save chat history", "error", err)
			}
		}
	}

	job.EndTime = time.Now()
	if job.Status != jobmodel.JobStatusError {
		job.Status = jobmodel.JobStatusComplete
	}
	// the job context may have expired, the final state must still land
	saveJobState(context.WithoutCancel(ctx), job, job.Status, log)
	log.Info("Job finished", "status", job.Status, "duration", time.Since(start))
}

func jobTimeout(jobType jobmodel.JobType) time.Duration {
	if jobType == jobmodel.JobTypeQuery {
		return config.QueryJobTimeout
	}
	return config.IngestJobTimeout
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	metrics.DecrementActiveWorkerCount()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
}

func processQuery(ctx context.Context, job jobmodel.Job, log *logger_i.Logger) jobmodel.Job {
	job.CurrentStep = jobmodel.RedisCall
	history, err := _jobService.MessageStore.GetMessageHistory(ctx, job.ChatId)
	if err != nil {
		// answer without history rather than fail the question
		log.Error("Failed to get message history", "error", err)
	}
	return _ragService.ProcessRequest(ctx, job, history)
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus, log *logger_i.Logger) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		log.Error("Failed to update job status", "error", err)
	}
}
