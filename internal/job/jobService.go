package job

import (
	"context"
	"sync/atomic"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore
	logger            *logger_i.Logger
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		MessageStore:      cfg.MessageStore,
		logger:            logger_i.NewLogger("JobService"),
	}
}

// Submit records the job as queued and hands it to the worker pool.
// The channel send blocks when the buffer is full, which is the backpressure on callers.
//
// A new worker is requested every RequestsPerNewWorkerCount jobs and for every
// ingestion or refresh, those hold a worker for minutes. Idle workers retire on their own.
func (s *Service) Submit(ctx context.Context, newJob jobModel.Job) {
	log := s.log().WithTrace(ctx).With("jobId", newJob.Id, "jobType", newJob.JobType)

	newJob.Status = jobModel.JobStatusQueued
	if err := s.JobStore.SaveJob(ctx, newJob); err != nil {
		log.Error("Could not record queued job", "error", err)
	}

	metrics.IncrementJobsInQueue()
	s.JobChannel <- newJob
	log.Info("Queued new job")

	count := atomic.AddInt64(&s.RequestCount, 1)
	if count%config.RequestsPerNewWorkerCount == 0 || newJob.JobType != jobModel.JobTypeQuery {
		s.signalDispatcher(log)
	}
}

func (s *Service) signalDispatcher(log *logger_i.Logger) {
	if s.DispatcherChannel == nil {
		return
	}
	select {
	case s.DispatcherChannel <- true:
		metrics.StartDispatcherSignalCount()
		log.Debug("Requested a new worker")
	default:
		// a request is already pending
	}
}

func (s *Service) log() *logger_i.Logger {
	if s.logger == nil {
		s.logger = logger_i.NewLogger("JobService")
	}
	return s.logger
}
