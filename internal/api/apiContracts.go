package api

import (
	"time"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	ChatId    string            `json:"chat_id" example:"chat_550"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type RAGResponse struct {
	Question string       `json:"question"`
	Answer   string       `json:"answer"`
	Sources  []SourceItem `json:"sources"`
	Cached   bool         `json:"cached,omitempty"`
}

// IngestResponse is filled once an ingestion or refresh job finishes.
type IngestResponse struct {
	FileName  string `json:"file_name,omitempty"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

type Result struct {
	Status              string          `json:"status"`
	CurrentStep         string          `json:"current_step,omitempty" example:"LLM"`
	RAGExternalResponse *RAGResponse    `json:"rag_response,omitempty"`
	IngestResponse      *IngestResponse `json:"ingest_response,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	ChatId    string `json:"chat_id,omitempty"`
	StatusURL string `json:"status_url"`
}

// SourceItem is one citation shown next to an answer.
type SourceItem struct {
	Title          string                     `json:"title" example:"Referral Program"`
	URL            string                     `json:"url" example:"https://help.example.com/articles/42"`
	Content        string                     `json:"content"`
	RelevanceScore float64                    `json:"relevance_score" example:"0.82"`
	Metadata       commonModels.ChunkMetadata `json:"metadata"`
}

type SourcesResponse struct {
	Sources []SourceItem `json:"sources"`
}

type ErrorResponse struct {
	Error string `json:"error" example:"no message provided"`
}

// requests---------------------

type ChatRequest struct {
	Message string `json:"message" validate:"required" `
	ChatID  string `json:"chatID,omitempty" `
}

// StreamChatRequest carries the whole conversation, the server keeps no state for it.
type StreamChatRequest struct {
	Message string                  `json:"message" validate:"required"`
	History []commonModels.ChatTurn `json:"history,omitempty"`
}

type SourcesRequest struct {
	Message string `json:"message" validate:"required"`
	Limit   int    `json:"limit,omitempty"`
}

type JobStatusRequest struct {
	JobId string `json:"job_id" validate:"required"`
}

type IngestDocumentRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
}
