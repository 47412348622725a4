package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// BackendErrorKind names the failure classes an embedding or generation
// backend call can raise, mapped from whatever transport-level error the
// HTTP client returns.
type BackendErrorKind string

const (
	BackendRateLimited BackendErrorKind = "rate_limited"
	BackendAuthFailed  BackendErrorKind = "auth_failed"
	BackendConnection  BackendErrorKind = "connection"
	BackendInvalidInput BackendErrorKind = "invalid_input"
	BackendServer      BackendErrorKind = "server"
)

// HTTPStatusError carries the status code an EmbeddingBackend/GenerationBackend
// HTTP implementation observed, for ClassifyBackendError to inspect.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string { return e.Err.Error() }
func (e *HTTPStatusError) Unwrap() error { return e.Err }

// ClassifyBackendError maps a backend call failure to a BackendErrorKind
// and the errs.Kind a job handler should react with: rate_limited
// retries (no Retry-After value is read or carried, so the retry waits
// the job queue's ordinary backoff), auth_failed and
// invalid_input are fatal for the job, connection and server retry with
// backoff up to the job's max retry count.
func ClassifyBackendError(err error) (BackendErrorKind, errs.Kind) {
	if err == nil {
		return "", errs.KindInternal
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return BackendConnection, errs.KindRetriable
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return BackendRateLimited, errs.KindRetriable
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return BackendAuthFailed, errs.KindValidation
		case statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity:
			return BackendInvalidInput, errs.KindValidation
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return BackendServer, errs.KindRetriable
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host") || strings.Contains(msg, "timeout"):
		return BackendConnection, errs.KindRetriable
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden"):
		return BackendAuthFailed, errs.KindValidation
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "bad request"):
		return BackendInvalidInput, errs.KindValidation
	default:
		return BackendServer, errs.KindRetriable
	}
}
