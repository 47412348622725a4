package embedding

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

func TestClassifyBackendErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantKind   BackendErrorKind
		wantErrs   errs.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, BackendRateLimited, errs.KindRetriable},
		{"unauthorized", http.StatusUnauthorized, BackendAuthFailed, errs.KindValidation},
		{"forbidden", http.StatusForbidden, BackendAuthFailed, errs.KindValidation},
		{"bad request", http.StatusBadRequest, BackendInvalidInput, errs.KindValidation},
		{"server error", http.StatusInternalServerError, BackendServer, errs.KindRetriable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &HTTPStatusError{StatusCode: tt.status, Err: errors.New("boom")}
			kind, errKind := ClassifyBackendError(err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantErrs, errKind)
		})
	}
}

func TestClassifyBackendErrorMessageHeuristics(t *testing.T) {
	kind, errKind := ClassifyBackendError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, BackendConnection, kind)
	assert.Equal(t, errs.KindRetriable, errKind)

	kind, errKind = ClassifyBackendError(errors.New("unexpected server fault"))
	assert.Equal(t, BackendServer, kind)
	assert.Equal(t, errs.KindRetriable, errKind)
}
