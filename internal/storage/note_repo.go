package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// NoteRepo persists Note rows. Content mutations never run through this
// repo: see NoteVersionRepo for the append-only version history. NoteRepo
// only tracks the current title and the soft-delete/star/archive flags.
type NoteRepo struct{ q querier }

// NoteFilter narrows List results. Zero-value fields are unconstrained.
type NoteFilter struct {
	IncludeDeleted bool
	Starred        *bool
	Archived       *bool
	CollectionID   *uuid.UUID
	UpdatedAfter   *time.Time
	UpdatedBefore  *time.Time
	Limit          int
	Offset         int
}

// Create inserts a new note.
func (r *NoteRepo) Create(ctx context.Context, n *Note) error {
	id, err := uuid.NewV7()
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteRepo.Create", err)
	}
	copy(n.ID[:], id[:])
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now

	_, err = r.q.Exec(ctx, `
INSERT INTO notes (id, title, content, created_at, updated_at, revision_mode)
VALUES ($1, $2, $3, $4, $5, $6)`,
		id, n.Title, n.Content, n.CreatedAt, n.UpdatedAt, string(n.RevisionMode))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteRepo.Create", err)
	}
	return nil
}

// Import upserts a note under its own already-assigned ID, used by
// internal/shard to restore a bundle's notes with their original
// identities intact rather than minting fresh ones, so re-importing the
// same shard updates in place instead of duplicating.
func (r *NoteRepo) Import(ctx context.Context, n *Note) error {
	id := uuid.UUID(n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.UpdatedAt = time.Now().UTC()
	_, err := r.q.Exec(ctx, `
INSERT INTO notes (id, title, content, created_at, updated_at, starred, archived, revision_mode)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title, content = EXCLUDED.content, updated_at = EXCLUDED.updated_at,
	starred = EXCLUDED.starred, archived = EXCLUDED.archived, revision_mode = EXCLUDED.revision_mode`,
		id, n.Title, n.Content, n.CreatedAt, n.UpdatedAt, n.Starred, n.Archived, string(n.RevisionMode))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteRepo.Import", err)
	}
	return nil
}

// Get returns a note by id. Soft-deleted notes are reported as NotFound to
// honor deletion semantics.
func (r *NoteRepo) Get(ctx context.Context, id uuid.UUID) (*Note, error) {
	row := r.q.QueryRow(ctx, `
SELECT id, title, content, created_at, updated_at, deleted_at, starred, archived, revision_mode
FROM notes WHERE id = $1 AND deleted_at IS NULL`, id)
	n, err := scanNote(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.NoteRepo.Get", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.NoteRepo.Get", err)
	}
	return n, nil
}

// UpdateMeta updates the mutable flags (starred, archived, title,
// revision_mode) in place. Content changes must go through NoteVersionRepo.
func (r *NoteRepo) UpdateMeta(ctx context.Context, n *Note) error {
	n.UpdatedAt = time.Now().UTC()
	id := uuid.UUID(n.ID)
	tag, err := r.q.Exec(ctx, `
UPDATE notes SET title=$2, starred=$3, archived=$4, revision_mode=$5, updated_at=$6
WHERE id=$1 AND deleted_at IS NULL`,
		id, n.Title, n.Starred, n.Archived, string(n.RevisionMode), n.UpdatedAt)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteRepo.UpdateMeta", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.KindNotFound, "storage.NoteRepo.UpdateMeta", pgx.ErrNoRows)
	}
	return nil
}

// SoftDelete marks a note deleted. It remains readable for the retention
// grace window by callers that explicitly bypass the deleted_at filter
// (none of NoteRepo's own methods do); direct Get always returns NotFound.
func (r *NoteRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `UPDATE notes SET deleted_at=now() WHERE id=$1 AND deleted_at IS NULL`, id)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteRepo.SoftDelete", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.KindNotFound, "storage.NoteRepo.SoftDelete", pgx.ErrNoRows)
	}
	return nil
}

// SoftDeleteNote soft-deletes noteID and cascades its semantic links in
// one transaction: a deleted note's embeddings and chunks are left in
// place (a later purge or restore may need them), but semantic links
// pointing to or from it are derived state that must not dangle, so they
// are removed here rather than lingering until the next link-discovery
// pass. Manual links are left untouched — a user-authored edge survives a
// soft-delete the way a bookmark survives the page moving.
func SoftDeleteNote(ctx context.Context, pool *Pool, noteID uuid.UUID) error {
	return pool.Run(ctx, func(ctx context.Context, uow *UnitOfWork) error {
		if err := uow.Notes().SoftDelete(ctx, noteID); err != nil {
			return err
		}
		return uow.Links().DeleteAllForNote(ctx, noteID, LinkSemantic)
	})
}

// Purge physically removes a note and cascades (chunks, embeddings, links,
// tags, provenance) via foreign-key ON DELETE CASCADE.
func (r *NoteRepo) Purge(ctx context.Context, id uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.NoteRepo.Purge", err)
	}
	return nil
}

// List returns notes matching filter, newest-updated first.
func (r *NoteRepo) List(ctx context.Context, f NoteFilter) ([]*Note, error) {
	sql := `SELECT DISTINCT n.id, n.title, n.content, n.created_at, n.updated_at, n.deleted_at, n.starred, n.archived, n.revision_mode
FROM notes n`
	var args []any
	var where []string
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.CollectionID != nil {
		sql += " JOIN note_collections nc ON nc.note_id = n.id"
		where = append(where, "nc.collection_id = "+arg(*f.CollectionID))
	}
	if !f.IncludeDeleted {
		where = append(where, "n.deleted_at IS NULL")
	}
	if f.Starred != nil {
		where = append(where, "n.starred = "+arg(*f.Starred))
	}
	if f.Archived != nil {
		where = append(where, "n.archived = "+arg(*f.Archived))
	}
	if f.UpdatedAfter != nil {
		where = append(where, "n.updated_at >= "+arg(*f.UpdatedAfter))
	}
	if f.UpdatedBefore != nil {
		where = append(where, "n.updated_at <= "+arg(*f.UpdatedBefore))
	}
	for i, w := range where {
		if i == 0 {
			sql += " WHERE "
		} else {
			sql += " AND "
		}
		sql += w
	}
	sql += " ORDER BY n.updated_at DESC"
	if f.Limit > 0 {
		sql += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		sql += " OFFSET " + arg(f.Offset)
	}

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.NoteRepo.List", err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.NoteRepo.List", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*Note, error) {
	var (
		id                    uuid.UUID
		title, content, rmode string
		createdAt, updatedAt  time.Time
		deletedAt             *time.Time
		starred, archived     bool
	)
	if err := row.Scan(&id, &title, &content, &createdAt, &updatedAt, &deletedAt, &starred, &archived, &rmode); err != nil {
		return nil, err
	}
	n := &Note{
		Title:        title,
		Content:      content,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
		Starred:      starred,
		Archived:     archived,
		RevisionMode: RevisionMode(rmode),
	}
	copy(n.ID[:], id[:])
	return n, nil
}
