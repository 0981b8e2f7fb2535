package ragErrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrProvider        = errors.New("provider error")
	ErrIndexCorrupt    = errors.New("index corrupt")
	ErrSourceFetch     = errors.New("source fetch error")
)

// InvalidArgument fails fast on malformed input, never coerce.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ProviderError is a failed call to an embedding or generation service.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// NewProviderError classifies by status code: 429, 5xx and transport failures are retryable.
func NewProviderError(provider, op string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Op:         op,
		StatusCode: statusCode,
		Retryable:  statusCode == 0 || statusCode == http.StatusTooManyRequests || statusCode >= 500,
		Err:        err,
	}
}

type IndexCorruptError struct {
	Path   string
	Reason string
	Err    error
}

func (e *IndexCorruptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index %s is corrupt: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("index %s is corrupt: %s", e.Path, e.Reason)
}

func (e *IndexCorruptError) Unwrap() error { return e.Err }

func (e *IndexCorruptError) Is(target error) bool { return target == ErrIndexCorrupt }

type SourceFetchError struct {
	Source string
	URL    string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("%s: fetching %s: %v", e.Source, e.URL, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

func (e *SourceFetchError) Is(target error) bool { return target == ErrSourceFetch }

// IsRetryable reports whether the caller may retry the whole operation.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// HTTPStatus maps the taxonomy onto response codes for the boundary layer.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrProvider), errors.Is(err, ErrSourceFetch):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
