package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// CollectionRepo persists Collection rows and their note membership edges.
type CollectionRepo struct{ q querier }

// Create inserts a new collection, optionally nested under a parent.
func (r *CollectionRepo) Create(ctx context.Context, c *Collection) error {
	id := uuid.New()
	var parent *uuid.UUID
	if c.ParentID != nil {
		u := uuid.UUID(*c.ParentID)
		parent = &u
	}
	if _, err := r.q.Exec(ctx, `INSERT INTO collections (id, name, parent_id) VALUES ($1, $2, $3)`, id, c.Name, parent); err != nil {
		return errs.New(errs.KindInternal, "storage.CollectionRepo.Create", err)
	}
	copy(c.ID[:], id[:])
	return nil
}

// Import upserts a collection under its own already-assigned ID, used by
// internal/shard to restore a bundle's collection tree with parent
// references intact.
func (r *CollectionRepo) Import(ctx context.Context, c *Collection) error {
	id := uuid.UUID(c.ID)
	var parent *uuid.UUID
	if c.ParentID != nil {
		u := uuid.UUID(*c.ParentID)
		parent = &u
	}
	_, err := r.q.Exec(ctx, `
INSERT INTO collections (id, name, parent_id) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id`,
		id, c.Name, parent)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.CollectionRepo.Import", err)
	}
	return nil
}

// Get returns a collection by id.
func (r *CollectionRepo) Get(ctx context.Context, id uuid.UUID) (*Collection, error) {
	var (
		rowID  uuid.UUID
		name   string
		parent *uuid.UUID
	)
	err := r.q.QueryRow(ctx, `SELECT id, name, parent_id FROM collections WHERE id = $1`, id).Scan(&rowID, &name, &parent)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.CollectionRepo.Get", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.CollectionRepo.Get", err)
	}
	c := &Collection{Name: name}
	copy(c.ID[:], rowID[:])
	if parent != nil {
		var b [16]byte
		copy(b[:], parent[:])
		c.ParentID = &b
	}
	return c, nil
}

// AddNote associates noteID with collectionID.
func (r *CollectionRepo) AddNote(ctx context.Context, collectionID, noteID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `INSERT INTO note_collections (note_id, collection_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, noteID, collectionID)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.CollectionRepo.AddNote", err)
	}
	return nil
}

// RemoveNote removes the (note, collection) membership edge.
func (r *CollectionRepo) RemoveNote(ctx context.Context, collectionID, noteID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM note_collections WHERE note_id = $1 AND collection_id = $2`, noteID, collectionID)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.CollectionRepo.RemoveNote", err)
	}
	return nil
}

// NoteIDs returns the IDs of notes belonging to collectionID.
func (r *CollectionRepo) NoteIDs(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT note_id FROM note_collections WHERE collection_id = $1`, collectionID)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.CollectionRepo.NoteIDs", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.CollectionRepo.NoteIDs", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// List returns every collection.
func (r *CollectionRepo) List(ctx context.Context) ([]*Collection, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, parent_id FROM collections ORDER BY name`)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.CollectionRepo.List", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		var (
			rowID  uuid.UUID
			name   string
			parent *uuid.UUID
		)
		if err := rows.Scan(&rowID, &name, &parent); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.CollectionRepo.List", err)
		}
		c := &Collection{Name: name}
		copy(c.ID[:], rowID[:])
		if parent != nil {
			var b [16]byte
			copy(b[:], parent[:])
			c.ParentID = &b
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
