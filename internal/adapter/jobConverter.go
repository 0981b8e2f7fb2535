package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/SupportRAG/internal/api"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
)

func ToInitJobResponse(id string, chatId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		ChatId:    chatId,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:      string(job.Status),
		CurrentStep: string(job.CurrentStep),
	}
	switch job.JobType {
	case jobModel.JobTypeIngest, jobModel.JobTypeRefresh:
		result.IngestResponse = ToIngestResponse(job)
	default:
		result.RAGExternalResponse = ToRAGExternalStatus(job.JobPayload)
	}

	return api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && len(ragData.Sources) == 0 {
		return nil
	}

	return &api.RAGResponse{
		Question: ragData.Question,
		Answer:   ragData.Answer,
		Sources:  ToSourceItems(ragData.Sources),
		Cached:   ragData.Cached,
	}
}

func ToIngestResponse(job jobModel.Job) *api.IngestResponse {
	if job.Status != jobModel.JobStatusComplete {
		return nil
	}
	return &api.IngestResponse{
		FileName:  job.JobPayload.IngestFileName,
		Documents: job.JobPayload.IngestedDocs,
		Chunks:    job.JobPayload.IngestedChunks,
	}
}

// ToSourceItems never returns nil so the json stays an array.
func ToSourceItems(results []commonModels.RetrievalResult) []api.SourceItem {
	items := make([]api.SourceItem, 0, len(results))
	for _, r := range results {
		items = append(items, api.SourceItem{
			Title:          r.Metadata.Title,
			URL:            r.Metadata.URL,
			Content:        r.Content,
			RelevanceScore: r.RelevanceScore,
			Metadata:       r.Metadata,
		})
	}
	return items
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		ChatId:    "",
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
