// Package jobs implements the persistent job queue's scheduling model:
// parallel workers claiming from storage.JobRepo's SKIP LOCKED queue table,
// retry with exponential backoff, dedup-on-enqueue, cooperative
// cancellation, and progress reporting.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/logging"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// Handler executes one job's work. It should check ctx for cancellation
// (and, for longer operations, CancelRequested via the ProgressReporter) at
// every I/O suspension point for cooperative cancellation; non-checking
// handlers simply run to completion.
type Handler func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error

// ProgressReporter lets a running handler publish (percent, message)
// without the worker having to poll the database mid-handler, and lets it
// cooperatively check whether cancellation was requested.
type ProgressReporter struct {
	ctx   context.Context
	pool  *storage.Pool
	jobID uuid.UUID
}

// Report publishes percent/message for the handler's job.
func (r *ProgressReporter) Report(percent int, message string) error {
	return r.pool.Run(r.ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		return uow.Jobs().UpdateProgress(ctx, r.jobID, percent, message)
	})
}

// CancelRequested reports whether the job's cancel_requested flag is set.
func (r *ProgressReporter) CancelRequested() (bool, error) {
	var requested bool
	err := r.pool.Run(r.ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		v, err := uow.Jobs().CancelRequested(ctx, r.jobID)
		requested = v
		return err
	})
	return requested, err
}

// Queue owns a registry of handlers by kind and runs a configurable-size
// worker pool polling storage.JobRepo.Claim. One Queue serves one archive;
// a process hosting several archives
// runs one Queue per archive, each with its own archive-scoped context.
type Queue struct {
	Pool     *storage.Pool
	Handlers map[storage.JobKind]Handler
	Backoff  Backoff
	Log      *logging.Logger

	// PollInterval is how often an idle worker re-polls for claimable
	// work. Default 500ms if zero.
	PollInterval time.Duration
}

// Progress returns jobID's current (percent, message) and status. Progress
// is read-path only: a point query over the jobs table, not a broadcast.
func (q *Queue) Progress(ctx context.Context, jobID uuid.UUID) (storage.JobProgress, storage.JobStatus, error) {
	var progress storage.JobProgress
	var status storage.JobStatus
	runErr := q.Pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		j, err := uow.Jobs().Get(ctx, jobID)
		if err != nil {
			return err
		}
		progress = j.Progress
		status = j.Status
		return nil
	})
	return progress, status, runErr
}

// NewQueue builds an empty Queue; register handlers with Register before
// calling Run.
func NewQueue(pool *storage.Pool, log *logging.Logger) *Queue {
	return &Queue{
		Pool:     pool,
		Handlers: make(map[storage.JobKind]Handler),
		Backoff:  DefaultBackoff(),
		Log:      log,
	}
}

// Register binds a Handler to a JobKind. Registering the same kind twice
// replaces the prior handler.
func (q *Queue) Register(kind storage.JobKind, h Handler) {
	q.Handlers[kind] = h
}

// Enqueue inserts job unless a job with the same dedup key is already
// pending or running: at most one row per dedup key. The insert-or-find
// runs inside a SERIALIZABLE transaction,
// retried via storage.WithRetry on serialization failure, so concurrent
// enqueuers of the same dedup key never race past each other.
func Enqueue(ctx context.Context, pool *storage.Pool, job *storage.Job) (*storage.EnqueueResult, error) {
	var result *storage.EnqueueResult
	err := storage.WithRetry(ctx, storage.DefaultRetryConfig(), func(ctx context.Context) error {
		return pool.RunSerializable(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			r, err := uow.Jobs().Enqueue(ctx, job)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (q *Queue) pollInterval() time.Duration {
	if q.PollInterval > 0 {
		return q.PollInterval
	}
	return 500 * time.Millisecond
}

// Run starts n workers polling the queue table claimable under ctx's
// archive scope, blocking until ctx is cancelled. Each worker claims the
// highest-priority pending job via SELECT ... FOR UPDATE SKIP LOCKED
// (storage.JobRepo.Claim), dispatches it to the registered Handler, and on
// failure either reschedules with backoff (retriable, retries remaining)
// or marks the job failed (fatal, or retries exhausted).
func (q *Queue) Run(ctx context.Context, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.worker(ctx)
		}()
	}
	wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	ticker := time.NewTicker(q.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for q.claimAndRun(ctx) {
				// drain claimable work before sleeping again
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}
}

// claimAndRun claims and executes at most one job. It returns true if a
// job was claimed (so the caller should immediately try for another),
// false if the queue had no claimable work.
func (q *Queue) claimAndRun(ctx context.Context) bool {
	var job *storage.Job
	err := q.Pool.RunSerializable(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		j, err := uow.Jobs().Claim(ctx)
		if err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		claimErrors.Inc()
		if q.Log != nil {
			q.Log.Error(ctx, "jobs: claim failed", zap.Error(err))
		}
		return false
	}
	if job == nil {
		return false
	}

	jobsClaimed.WithLabelValues(string(job.Kind)).Inc()
	q.runJob(ctx, job)
	return true
}

func (q *Queue) runJob(ctx context.Context, job *storage.Job) {
	id := uuid.UUID(job.ID)
	kind := string(job.Kind)
	start := time.Now()

	handler, ok := q.Handlers[job.Kind]
	if !ok {
		_ = q.Pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			return uow.Jobs().Fail(ctx, id, "no handler registered for kind "+kind)
		})
		recordOutcome(kind, "no_handler", time.Since(start).Seconds())
		return
	}

	reporter := &ProgressReporter{ctx: ctx, pool: q.Pool, jobID: id}
	runErr := handler(ctx, q.Pool, job, reporter)

	if runErr == nil {
		_ = q.Pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			return uow.Jobs().Complete(ctx, id)
		})
		recordOutcome(kind, "completed", time.Since(start).Seconds())
		return
	}

	if q.Log != nil {
		q.Log.Warn(ctx, "jobs: handler failed", zap.Error(runErr), zap.String("kind", kind))
	}

	if errs.KindOf(runErr) == errs.KindCancelled {
		_ = q.Pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			return uow.Jobs().FinishCancelled(ctx, id)
		})
		recordOutcome(kind, "cancelled", time.Since(start).Seconds())
		return
	}

	if !Retriable(runErr) || job.RetryCount >= job.MaxRetries {
		_ = q.Pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			return uow.Jobs().Fail(ctx, id, runErr.Error())
		})
		recordOutcome(kind, "failed", time.Since(start).Seconds())
		return
	}

	delay := q.Backoff.Delay(job.RetryCount)
	var e *errs.Error
	if errors.As(runErr, &e) && e.RetryAfter > 0 {
		delay = e.RetryAfter
	}
	next := time.Now().UTC().Add(delay)
	_ = q.Pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		return uow.Jobs().Reschedule(ctx, id, next, runErr.Error())
	})
	recordOutcome(kind, "rescheduled", time.Since(start).Seconds())
}
