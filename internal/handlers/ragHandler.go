package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/akolanti/SupportRAG/internal/adapter"
	"github.com/akolanti/SupportRAG/internal/api"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag"
	"github.com/akolanti/SupportRAG/internal/rag/retriever"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

const noMessage = "no message provided"

var (
	ragInstance *RAGHandler
	logRAG      = logger_i.NewLogger("RAGHandler")
)

// RAGHandler serves the synchronous endpoints the chat UI talks to.
type RAGHandler struct {
	service     rag.Service
	streamDelay time.Duration
}

// InitRAGHandler installs the service behind /api/chat and /api/sources.
// streamDelay is slept between streamed words, zero streams as fast as the client reads.
func InitRAGHandler(ragService rag.Service, streamDelay time.Duration) {
	ragInstance = &RAGHandler{service: ragService, streamDelay: streamDelay}
}

// StreamChatHandler godoc
// @Summary      Answer a question, streamed
// @Description  Retrieves help center context for the message and streams the grounded answer as plain text, word by word. History is used for the prompt only.
// @Tags         Messaging
// @Accept       json
// @Produce      plain
// @Security     BearerAuth
// @Param        request  body      api.StreamChatRequest  true  "Message and prior turns"
// @Success      200      {string}  string                 "The answer"
// @Failure      400      {object}  api.ErrorResponse      "no message provided"
// @Failure      502      {object}  api.ErrorResponse      "Embedding or generation provider failed"
// @Router       /api/chat [post]
func StreamChatHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	log := logRAG.WithTrace(r.Context())

	var req api.StreamChatRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("Bad chat body", "error", err)
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJsonResponse(w, http.StatusBadRequest, api.ErrorResponse{Error: noMessage})
		return
	}

	record, err := ragInstance.service.Answer(r.Context(), req.Message, req.History)
	if err != nil {
		writeRAGError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if err := streamWords(r.Context(), w, record.Answer, ragInstance.streamDelay); err != nil {
		log.Warn("Client went away while streaming", "error", err)
	}
}

// SourcesHandler godoc
// @Summary      Retrieve citations
// @Description  Returns the help center passages most relevant to the message, strongest first.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      api.SourcesRequest   true  "Message and optional limit"
// @Success      200      {object}  api.SourcesResponse
// @Failure      400      {object}  api.ErrorResponse    "no message provided"
// @Router       /api/sources [post]
func SourcesHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	var req api.SourcesRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logRAG.WithTrace(r.Context()).Warn("Bad sources body", "error", err)
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJsonResponse(w, http.StatusBadRequest, api.ErrorResponse{Error: noMessage})
		return
	}

	var opts []retriever.Option
	// zero means unset, anything else goes to the retriever to be validated
	if req.Limit != 0 {
		opts = append(opts, retriever.WithK(req.Limit))
	}
	results, err := ragInstance.service.Sources(r.Context(), req.Message, opts...)
	if err != nil {
		writeRAGError(r.Context(), w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.SourcesResponse{Sources: adapter.ToSourceItems(results)})
}

// streamWords writes text in word sized pieces, keeping the original spacing.
func streamWords(ctx context.Context, w http.ResponseWriter, text string, delay time.Duration) error {
	flusher, _ := w.(http.Flusher)
	for _, word := range strings.SplitAfter(text, " ") {
		if word == "" {
			continue
		}
		if _, err := w.Write([]byte(word)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

func writeRAGError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logRAG.WithTrace(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info("Request cancelled by client")
		return
	}
	code := ragErrors.HTTPStatus(err)
	message := http.StatusText(code)
	if code == http.StatusBadRequest {
		message = err.Error()
	}
	log.Error("Answering failed", "status", code, "error", err)
	writeJsonResponse(w, code, api.ErrorResponse{Error: message})
}
