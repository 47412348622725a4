package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// JobRepo persists Job rows and implements the race-free dedup-on-enqueue
// and SKIP LOCKED claim queries the job queue requires.
type JobRepo struct{ q querier }

// EnqueueResult reports whether Enqueue created a new row or found an
// existing pending/running job with the same dedup key.
type EnqueueResult struct {
	Job            *Job
	AlreadyPending bool
}

// Enqueue inserts a job unless one with the same dedup key is already
// pending or running, in which case it returns that job with
// AlreadyPending=true. The check-and-insert is one statement
// (`INSERT ... SELECT WHERE NOT EXISTS`) so it is race-free under
// serializable isolation — the
// caller must run Enqueue inside a `serializable` transaction for the
// race-freedom guarantee to hold against concurrent enqueuers.
func (r *JobRepo) Enqueue(ctx context.Context, j *Job) (*EnqueueResult, error) {
	id := uuid.New()
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now().UTC()
	}

	var (
		noteID, attachmentID, setID *uuid.UUID
	)
	if j.Target.NoteID != nil {
		u := uuid.UUID(*j.Target.NoteID)
		noteID = &u
	}
	if j.Target.AttachmentID != nil {
		u := uuid.UUID(*j.Target.AttachmentID)
		attachmentID = &u
	}
	if j.Target.EmbeddingSetID != nil {
		u := uuid.UUID(*j.Target.EmbeddingSetID)
		setID = &u
	}

	tag, err := r.q.Exec(ctx, `
INSERT INTO jobs (id, kind, target_note_id, target_attachment_id, target_embedding_set_id,
	payload, status, priority, scheduled_at, max_retries, dedup_key)
SELECT $1, $2, $3, $4, $5, $6, 'pending', $7, $8, $9, $10
WHERE NOT EXISTS (
	SELECT 1 FROM jobs WHERE dedup_key = $10 AND status IN ('pending', 'running')
)`,
		id, string(j.Kind), noteID, attachmentID, setID, j.Payload, j.Priority, j.ScheduledAt, j.MaxRetries, j.DedupKey)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.JobRepo.Enqueue", err)
	}

	if tag.RowsAffected() == 1 {
		copy(j.ID[:], id[:])
		j.Status = JobPending
		return &EnqueueResult{Job: j}, nil
	}

	existing, err := r.ByDedupKey(ctx, j.DedupKey)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.JobRepo.Enqueue", err)
	}
	return &EnqueueResult{Job: existing, AlreadyPending: true}, nil
}

// ByDedupKey returns the active (pending/running) job with the given dedup
// key, if any.
func (r *JobRepo) ByDedupKey(ctx context.Context, dedupKey string) (*Job, error) {
	row := r.q.QueryRow(ctx, jobSelect+" WHERE dedup_key = $1 AND status IN ('pending', 'running') LIMIT 1", dedupKey)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.JobRepo.ByDedupKey", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.JobRepo.ByDedupKey", err)
	}
	return j, nil
}

// Get returns a job by id.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := r.q.QueryRow(ctx, jobSelect+" WHERE id = $1", id)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.JobRepo.Get", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.JobRepo.Get", err)
	}
	return j, nil
}

// Claim selects the highest-priority pending job whose scheduled_at has
// passed, locks it with FOR UPDATE SKIP LOCKED so concurrent workers never
// contend for the same row, and marks it running. Returns (nil, nil) when
// no job is claimable. Must run inside a transaction the caller commits
// promptly; the row lock is held for the transaction's lifetime.
func (r *JobRepo) Claim(ctx context.Context) (*Job, error) {
	row := r.q.QueryRow(ctx, `
UPDATE jobs SET status = 'running', started_at = now()
WHERE id = (
	SELECT id FROM jobs
	WHERE status = 'pending' AND scheduled_at <= now()
	ORDER BY priority ASC, scheduled_at ASC
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
RETURNING `+jobColumns)
	j, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, errs.New(errs.KindInternal, "storage.JobRepo.Claim", err)
	}
	return j, nil
}

// Complete marks a running job completed.
func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `UPDATE jobs SET status = 'completed', completed_at = now(), progress_percent = 100 WHERE id = $1`, id)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.JobRepo.Complete", err)
	}
	return nil
}

// Reschedule increments retry_count and moves a job back to pending at
// nextRun, used for retriable failures within max_retries.
func (r *JobRepo) Reschedule(ctx context.Context, id uuid.UUID, nextRun time.Time, lastErr string) error {
	_, err := r.q.Exec(ctx, `
UPDATE jobs SET status = 'pending', retry_count = retry_count + 1,
	scheduled_at = $2, last_error = $3, started_at = NULL
WHERE id = $1`, id, nextRun, lastErr)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.JobRepo.Reschedule", err)
	}
	return nil
}

// Fail marks a job permanently failed (fatal error, or retries exhausted).
func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, lastErr string) error {
	_, err := r.q.Exec(ctx, `UPDATE jobs SET status = 'failed', completed_at = now(), last_error = $2 WHERE id = $1`, id, lastErr)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.JobRepo.Fail", err)
	}
	return nil
}

// FinishCancelled transitions a running job to cancelled once its handler
// has observed cancel_requested and stopped cooperatively.
func (r *JobRepo) FinishCancelled(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `UPDATE jobs SET status = 'cancelled', completed_at = now() WHERE id = $1`, id)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.JobRepo.FinishCancelled", err)
	}
	return nil
}

// Cancel transitions a pending job to cancelled, or sets cancel_requested
// on a running one for cooperative handler checks.
func (r *JobRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE jobs SET status = 'cancelled', completed_at = now() WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.JobRepo.Cancel", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.q.Exec(ctx, `UPDATE jobs SET cancel_requested = true WHERE id = $1 AND status = 'running'`, id); err != nil {
		return errs.New(errs.KindInternal, "storage.JobRepo.Cancel", err)
	}
	return nil
}

// UpdateProgress publishes a handler's (percent, message) without
// interrupting it.
func (r *JobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, percent int, message string) error {
	_, err := r.q.Exec(ctx, `UPDATE jobs SET progress_percent = $2, progress_message = $3 WHERE id = $1`, id, percent, message)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.JobRepo.UpdateProgress", err)
	}
	return nil
}

// CancelRequested reports whether a running job's cancel_requested flag is
// set, for cooperative checks at I/O suspension points.
func (r *JobRepo) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var v bool
	if err := r.q.QueryRow(ctx, `SELECT cancel_requested FROM jobs WHERE id = $1`, id).Scan(&v); err != nil {
		return false, errs.New(errs.KindInternal, "storage.JobRepo.CancelRequested", err)
	}
	return v, nil
}

const jobColumns = `id, kind, target_note_id, target_attachment_id, target_embedding_set_id,
	payload, status, priority, scheduled_at, started_at, completed_at, retry_count, max_retries,
	last_error, progress_percent, progress_message, dedup_key, cancel_requested`

const jobSelect = "SELECT " + jobColumns + " FROM jobs"

func scanJob(row rowScanner) (*Job, error) {
	var (
		id                           uuid.UUID
		kind                         string
		noteID, attachmentID, setID  *uuid.UUID
		payload                      []byte
		status                       string
		priority                     int
		scheduledAt                  time.Time
		startedAt, completedAt       *time.Time
		retryCount, maxRetries       int
		lastError                    string
		progressPercent              int
		progressMessage              string
		dedupKey                     string
		cancelRequested              bool
	)
	if err := row.Scan(&id, &kind, &noteID, &attachmentID, &setID, &payload, &status, &priority,
		&scheduledAt, &startedAt, &completedAt, &retryCount, &maxRetries, &lastError,
		&progressPercent, &progressMessage, &dedupKey, &cancelRequested); err != nil {
		return nil, err
	}

	j := &Job{
		Kind:            JobKind(kind),
		Payload:         payload,
		Status:          JobStatus(status),
		Priority:        priority,
		ScheduledAt:     scheduledAt,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		RetryCount:      retryCount,
		MaxRetries:      maxRetries,
		LastError:       lastError,
		Progress:        JobProgress{Percent: progressPercent, Message: progressMessage},
		DedupKey:        dedupKey,
		CancelRequested: cancelRequested,
	}
	copy(j.ID[:], id[:])
	if noteID != nil {
		var b [16]byte
		copy(b[:], noteID[:])
		j.Target.NoteID = &b
	}
	if attachmentID != nil {
		var b [16]byte
		copy(b[:], attachmentID[:])
		j.Target.AttachmentID = &b
	}
	if setID != nil {
		var b [16]byte
		copy(b[:], setID[:])
		j.Target.EmbeddingSetID = &b
	}
	return j, nil
}
