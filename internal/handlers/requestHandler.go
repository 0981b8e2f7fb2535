package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/api"
	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/internal/source/filesource"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

// uploadDir is where multipart uploads wait for their ingestion job.
var uploadDir = config.UploadDir

// SetUploadDir moves the upload staging directory, relative paths resolve against the working directory.
func SetUploadDir(dir string) {
	if dir != "" {
		uploadDir = dir
	}
}

type newJobData struct {
	id             string
	jobType        jobModel.JobType
	chatId         string
	message        string
	isNewChat      bool
	traceId        string
	documentName   string
	documentSource string
}

// GetHandler godoc
// @Summary      Liveness probe
// @Tags         Health
// @Success      200
// @Router       /health [get]
func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChatHandler godoc
// @Summary      Start a new chat job
// @Description  Accepts a message, initializes a background processing job, and returns a job ID to track status.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.ChatRequest      true  "Chat Message and optional Chat ID"
// @Success      202      {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400      {object}  api.JobResponse      "Invalid request data or chat ID"
// @Router       /chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		return
	}
	log := logRH.WithTrace(request.Context())

	var requestData api.ChatRequest
	defer closeBody(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateChatRequest(request.Context(), requestData) {
		log.Warn("Bad Chat Request", "error", err, "chatId", requestData.ChatID)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ChatID, "Bad Request")
		return
	}

	chatID := requestData.ChatID
	isNewChat := chatID == ""
	if isNewChat {
		chatID = utils.GetNewUUID()
		log.Debug("New chat request", "chatId", chatID)
	}
	submit(w, request, newJobData{
		jobType:   jobModel.JobTypeQuery,
		chatId:    chatID,
		message:   requestData.Message,
		isNewChat: isNewChat,
	})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a chat, ingestion or refresh job using its ID.
// @Tags         Job Status
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	logRH.WithTrace(r.Context()).Debug("Get Status Request", "jobId", idString)

	result, isFound := validateId(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, toAPIResponse(result))
}

// PostIngestHandler godoc
// @Summary      Upload a document for ingestion
// @Description  Receives a PDF, DOCX, ODT, RTF, TXT or MD file via multipart/form-data, saves it to a temporary directory, and queues an ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        document_name  formData  string  true  "The display name of the document, its extension picks the parser"
// @Param        document       formData  file    true  "The file to upload"
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Failure      400  {object}  api.JobResponse "Bad Request - Missing fields, unsupported type or file too large"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - Storage or Write Error"
// @Router       /ingest [post]
func PostIngestHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	if filesource.GetDocType(docName) == commonModels.ERR && filesource.GetDocType(fileMetadata.Filename) == commonModels.ERR {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Unsupported document type")
		return
	}

	tempFilePath, errString := saveUpload(fileReader, fileMetadata.Filename)
	if errString != "" {
		logRH.WithTrace(r.Context()).Error("Couldn't store upload", "error", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, docName, errString)
		return
	}

	submit(w, r, newJobData{
		jobType:        jobModel.JobTypeIngest,
		documentName:   docName,
		documentSource: tempFilePath,
	})
}

// RefreshHandler godoc
// @Summary      Re-ingest the help center
// @Description  Queues a job that scrapes every help center article and appends it to the index.
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Router       /refresh [post]
func RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	submit(w, r, newJobData{jobType: jobModel.JobTypeRefresh})
}

func submit(w http.ResponseWriter, r *http.Request, data newJobData) {
	data.id = utils.GetNewUUID()
	data.traceId = traceID(r.Context())
	CreateNewJob(r.Context(), data)
	writeJsonResponse(w, http.StatusAccepted, initJobResponse(data))
}

func saveUpload(src io.Reader, originalName string) (string, string) {
	targetDir, errString := getTargetDirectory()
	if errString != "" {
		return "", errString
	}

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(originalName))
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		return "", "Storage error"
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, src); err != nil {
		_ = os.Remove(tempFilePath)
		return "", "Write error"
	}
	return tempFilePath, ""
}
