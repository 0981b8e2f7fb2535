package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/SupportRAG/internal/api"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/job"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}
		logJH.Info("Starting job handler")
	})
}

func CreateNewJob(ctx context.Context, newJob newJobData) {
	log := logJH.WithTrace(ctx).With("jobId", newJob.id)
	if newJob.isNewChat {
		log.Debug("Create new chat", "chatId", newJob.chatId)
		handlerInstance.initNewChat(ctx, newJob.chatId)
	}
	handlerInstance.service.Submit(ctx, newJob.toJob())
}

func GetJobStatus(ctx context.Context, id string) (result jobModel.Job, isFound bool) {
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctx, id)
	}
	return result, false
}

func ValidateChatRequest(ctx context.Context, chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	logJH.WithTrace(ctx).Debug("Validating chat id", "chatId", chatReq.ChatID)
	if strings.TrimSpace(chatReq.Message) == "" {
		return false
	}
	if chatReq.ChatID == "" {
		return true
	}
	return handlerInstance.service.MessageStore.ValidateChatId(ctx, chatReq.ChatID)
}

func (d newJobData) toJob() jobModel.Job {
	_job := jobModel.Job{
		Id:          d.id,
		TraceId:     d.traceId,
		CreatedTime: time.Now(),
	}

	switch d.jobType {
	case jobModel.JobTypeIngest:
		_job.CurrentStep = jobModel.IngestInit
		_job.JobPayload.IngestFileName = d.documentName
		_job.JobPayload.IngestURL = d.documentSource
	case jobModel.JobTypeRefresh:
		_job.CurrentStep = jobModel.IngestInit
	default:
		d.jobType = jobModel.JobTypeQuery
		_job.ChatId = d.chatId
		_job.JobPayload.Question = d.message
		_job.CurrentStep = jobModel.UserQueryInit
	}
	_job.JobType = d.jobType
	return _job
}

func (h *JobHandler) initNewChat(ctx context.Context, chatId string) {
	if err := h.service.MessageStore.InitNewChat(ctx, chatId); err != nil {
		logJH.WithTrace(ctx).Error("Error initiating new chat", "chatId", chatId, "error", err)
	}
}
