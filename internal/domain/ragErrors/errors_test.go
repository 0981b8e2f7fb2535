package ragErrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("boom")

	pe := fmt.Errorf("embed batch: %w", NewProviderError("openai", "embeddings", 429, cause))
	assert.ErrorIs(t, pe, ErrProvider)
	assert.ErrorIs(t, pe, cause)
	assert.True(t, IsRetryable(pe))

	ic := &IndexCorruptError{Path: "x.db", Reason: "dimension mismatch"}
	assert.ErrorIs(t, ic, ErrIndexCorrupt)
	assert.Contains(t, ic.Error(), "dimension mismatch")

	sf := &SourceFetchError{Source: "zendesk", URL: "http://x", Err: cause}
	assert.ErrorIs(t, sf, ErrSourceFetch)
	assert.NotErrorIs(t, sf, ErrProvider)
}

func TestProviderErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		err := NewProviderError("gemini", "generate", tt.status, errors.New("x"))
		assert.Equal(t, tt.want, err.Retryable, "status %d", tt.status)
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidArgument("k must be positive, got %d", 0)))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(NewProviderError("openai", "chat", 500, errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(&IndexCorruptError{Path: "p", Reason: "r"}))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(fmt.Errorf("wrap: %w", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
}
