package storage

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Retriable Postgres SQLSTATEs: serialization_failure and deadlock_detected.
const (
	sqlstateSerializationFailure = "40001"
	sqlstateDeadlockDetected     = "40P01"
)

// RetryConfig configures WithRetry's exponential backoff, generalized from
// an HTTP 5xx/429 retry shape to Postgres SQLSTATE classification.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default: up to 3 retries with
// jittered exponential backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    50 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// WithRetry runs op, retrying up to cfg.MaxRetries times when op fails with
// a retriable Postgres error (serialization_failure, deadlock_detected).
// Backoff is exponential with full jitter, capped at cfg.MaxBackoff.
func WithRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetriablePgError(err) || attempt == cfg.MaxRetries {
			return lastErr
		}

		jittered := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jittered):
		}

		next := time.Duration(float64(backoff) * cfg.BackoffMultiplier)
		if next > cfg.MaxBackoff {
			next = cfg.MaxBackoff
		}
		backoff = next
	}

	return lastErr
}

// isRetriablePgError reports whether err is a Postgres error whose SQLSTATE
// indicates a transient condition safe to retry.
func isRetriablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case sqlstateSerializationFailure, sqlstateDeadlockDetected:
		return true
	default:
		return false
	}
}
