package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// NoteVersionRepo appends immutable content snapshots. Content is never
// overwritten: Create always inserts a new row with the next version
// number for (note, track).
type NoteVersionRepo struct{ q querier }

// Create inserts the next version for (noteID, track). The version number
// is computed from the current max under the same statement to avoid a
// round trip; callers writing concurrently to the same (note, track) rely
// on the database serializing the INSERT ... SELECT.
func (r *NoteVersionRepo) Create(ctx context.Context, v *NoteVersion) error {
	id := uuid.New()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	noteID := uuid.UUID(v.NoteID)

	err := r.q.QueryRow(ctx, `
INSERT INTO note_versions (id, note_id, version, track, content, created_at, author, restored_from)
SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5, $6, $7
FROM note_versions WHERE note_id = $2 AND track = $3
RETURNING version`,
		id, noteID, string(v.Track), v.Content, v.CreatedAt, v.Author, v.RestoredFrom,
	).Scan(&v.Version)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteVersionRepo.Create", err)
	}
	copy(v.ID[:], id[:])
	return nil
}

// Import upserts an explicit (note, track, version) row, used by
// internal/shard to restore a bundle's note content at its original
// version number rather than appending a new one.
func (r *NoteVersionRepo) Import(ctx context.Context, v *NoteVersion) error {
	id := uuid.New()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	noteID := uuid.UUID(v.NoteID)
	_, err := r.q.Exec(ctx, `
INSERT INTO note_versions (id, note_id, version, track, content, created_at, author, restored_from)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (note_id, track, version) DO UPDATE SET
	content = EXCLUDED.content, author = EXCLUDED.author`,
		id, noteID, v.Version, string(v.Track), v.Content, v.CreatedAt, v.Author, v.RestoredFrom)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteVersionRepo.Import", err)
	}
	return nil
}

// Current returns the highest-numbered version for (noteID, track).
func (r *NoteVersionRepo) Current(ctx context.Context, noteID uuid.UUID, track Track) (*NoteVersion, error) {
	row := r.q.QueryRow(ctx, `
SELECT id, note_id, version, track, content, created_at, author, restored_from
FROM note_versions WHERE note_id = $1 AND track = $2
ORDER BY version DESC LIMIT 1`, noteID, string(track))
	v, err := scanNoteVersion(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.NoteVersionRepo.Current", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.NoteVersionRepo.Current", err)
	}
	return v, nil
}

// History lists all versions for (noteID, track), oldest first.
func (r *NoteVersionRepo) History(ctx context.Context, noteID uuid.UUID, track Track) ([]*NoteVersion, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, note_id, version, track, content, created_at, author, restored_from
FROM note_versions WHERE note_id = $1 AND track = $2 ORDER BY version ASC`, noteID, string(track))
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.NoteVersionRepo.History", err)
	}
	defer rows.Close()

	var out []*NoteVersion
	for rows.Next() {
		v, err := scanNoteVersion(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.NoteVersionRepo.History", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ByVersion returns a specific version number for (noteID, track).
func (r *NoteVersionRepo) ByVersion(ctx context.Context, noteID uuid.UUID, track Track, version int) (*NoteVersion, error) {
	row := r.q.QueryRow(ctx, `
SELECT id, note_id, version, track, content, created_at, author, restored_from
FROM note_versions WHERE note_id = $1 AND track = $2 AND version = $3`, noteID, string(track), version)
	v, err := scanNoteVersion(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.NoteVersionRepo.ByVersion", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.NoteVersionRepo.ByVersion", err)
	}
	return v, nil
}

func scanNoteVersion(row rowScanner) (*NoteVersion, error) {
	var (
		id, noteID   uuid.UUID
		version      int
		track        string
		content      string
		createdAt    time.Time
		author       string
		restoredFrom *int
	)
	if err := row.Scan(&id, &noteID, &version, &track, &content, &createdAt, &author, &restoredFrom); err != nil {
		return nil, err
	}
	v := &NoteVersion{
		Version:      version,
		Track:        Track(track),
		Content:      content,
		CreatedAt:    createdAt,
		Author:       author,
		RestoredFrom: restoredFrom,
	}
	copy(v.ID[:], id[:])
	copy(v.NoteID[:], noteID[:])
	return v, nil
}
