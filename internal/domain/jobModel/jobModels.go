package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	UserQueryInit    InternalStatus = "Init"
	CacheCall        InternalStatus = "CacheCall"
	RAGCall          InternalStatus = "RAG"
	LLMCall          InternalStatus = "LLM"
	VectorDBCall     InternalStatus = "VectorDB"
	EmbeddingAPICall InternalStatus = "EmbeddingAPI"
	RedisCall        InternalStatus = "Redis"

	IngestInit       InternalStatus = "IngestInit"
	SourceFetch      InternalStatus = "SourceFetch"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeQuery   JobType = "Query"
	JobTypeIngest  JobType = "Ingest"
	JobTypeRefresh JobType = "Refresh"
)

type Job struct {
	Id          string         `json:"id"`
	ChatId      string         `json:"chat_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	Question string                         `json:"question,omitempty"`
	Answer   string                         `json:"answer,omitempty"`
	Sources  []commonModels.RetrievalResult `json:"sources,omitempty"`
	Cached   bool                           `json:"cached,omitempty"`

	IngestFileName string `json:"ingest_file_name,omitempty"`
	IngestURL      string `json:"ingest_url,omitempty"`
	IngestedChunks int    `json:"ingested_chunks,omitempty"`
	IngestedDocs   int    `json:"ingested_docs,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// MessageStore keeps the per chat exchange history that is fed back into the prompt.
type MessageStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	TrySaveChat(ctx context.Context, id string, JobPayload JobPayload) error
	InitNewChat(ctx context.Context, id string) error
	GetMessageHistory(ctx context.Context, chatId string) ([]commonModels.ChatTurn, error)
}

// HistoryFromPayloads flattens stored exchanges into chronological chat turns.
func HistoryFromPayloads(payloads []JobPayload) []commonModels.ChatTurn {
	turns := make([]commonModels.ChatTurn, 0, len(payloads)*2)
	for _, p := range payloads {
		if p.Question != "" {
			turns = append(turns, commonModels.ChatTurn{Role: commonModels.RoleUser, Content: p.Question})
		}
		if p.Answer != "" {
			turns = append(turns, commonModels.ChatTurn{Role: commonModels.RoleAssistant, Content: p.Answer})
		}
	}
	return turns
}
