package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/handlers"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

var logMW = logger_i.NewLogger("middleware")

var GetHandler = http.HandlerFunc(handlers.GetHandler)

var ChatHandler = Wrap(handlers.ChatHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var PostIngestHandler = Wrap(handlers.PostIngestHandler)
var RefreshHandler = Wrap(handlers.RefreshHandler)
var StreamChatHandler = Wrap(handlers.StreamChatHandler)
var SourcesHandler = Wrap(handlers.SourcesHandler)

// Wrap runs trace injection, auth and rate limiting in that order before next.
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec, logger: logMW})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
		} else {
			next(rec, re.req)
		}

		metrics.HttpRequestsTotal.WithLabelValues(routePath(r), strconv.Itoa(rec.Status)).Inc() //metrics
		re.logger.Info("Request served", "path", r.URL.Path, "status", rec.Status, "duration", time.Since(start))
	}
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re
	}
	return rateLimiter(re)
}

// routePath keeps the metric labels bounded, /status/{id} instead of every job id.
func routePath(r *http.Request) string {
	if pattern := utils.GetRoutePattern(r); pattern != "" {
		return pattern
	}
	return r.URL.Path
}
