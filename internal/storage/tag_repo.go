package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// TagRepo persists note-tag edges. Tags have no row of their own: a tag
// exists exactly as long as at least one (note, path) edge references it.
type TagRepo struct{ q querier }

// Attach associates path with noteID. path is stored lowercase; validation
// (segment charset, max depth 5) is internal/taxonomy's job, not this
// repo's.
func (r *TagRepo) Attach(ctx context.Context, noteID uuid.UUID, path string) error {
	_, err := r.q.Exec(ctx, `
INSERT INTO tags (note_id, path) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		noteID, strings.ToLower(path))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.TagRepo.Attach", err)
	}
	return nil
}

// Detach removes a (note, path) edge.
func (r *TagRepo) Detach(ctx context.Context, noteID uuid.UUID, path string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM tags WHERE note_id = $1 AND path = $2`, noteID, strings.ToLower(path))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.TagRepo.Detach", err)
	}
	return nil
}

// ForNote lists every tag path attached to noteID.
func (r *TagRepo) ForNote(ctx context.Context, noteID uuid.UUID) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT path FROM tags WHERE note_id = $1 ORDER BY path`, noteID)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.TagRepo.ForNote", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.TagRepo.ForNote", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// NotesWithTag returns the ids of notes carrying the exact path (not
// including descendants).
func (r *TagRepo) NotesWithTag(ctx context.Context, path string) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT note_id FROM tags WHERE path = $1`, strings.ToLower(path))
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.TagRepo.NotesWithTag", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.TagRepo.NotesWithTag", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TagCount is one distinct tag path with the number of notes referencing
// it, used to list the implied hierarchy: listings compute it
// from occurrences, there is no separate hierarchy table.
type TagCount struct {
	Path  string
	Count int
}

// ListAll returns every distinct tag path in use with its reference count,
// ordered by path so callers can derive the implied prefix hierarchy by
// scanning sequentially.
func (r *TagRepo) ListAll(ctx context.Context) ([]TagCount, error) {
	rows, err := r.q.Query(ctx, `SELECT path, COUNT(*) FROM tags GROUP BY path ORDER BY path`)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.TagRepo.ListAll", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Path, &tc.Count); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.TagRepo.ListAll", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
