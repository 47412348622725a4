package jobs

import "github.com/Fortemi/fortemi-sub011/internal/errs"

// Retriable reports whether a handler failure should be rescheduled
// (subject to max_retries) rather than sent straight to failed: fatal
// errors skip retries. Validation, not-found, conflict and cancelled
// failures are never retriable — retrying the same bad input
// only wastes a worker slot; everything else (including backend errors
// classified retriable by internal/embedding.ClassifyBackendError, which
// already returns errs.KindRetriable for those cases) is.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errs.Is(err, errs.KindValidation), errs.Is(err, errs.KindNotFound),
		errs.Is(err, errs.KindConflict), errs.Is(err, errs.KindCancelled):
		return false
	default:
		return true
	}
}
