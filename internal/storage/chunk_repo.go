package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// ChunkRepo persists Chunk rows. Re-chunking a note deletes its old chunks
// and inserts the new set in the same transaction via ReplaceForNote.
type ChunkRepo struct{ q querier }

// ReplaceForNote deletes all existing chunks for noteID and inserts chunks,
// atomically from the caller's perspective (both statements run on the same
// querier, which for write paths is always a UnitOfWork's transaction).
func (r *ChunkRepo) ReplaceForNote(ctx context.Context, noteID uuid.UUID, chunks []*Chunk) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM chunks WHERE note_id = $1`, noteID); err != nil {
		return errs.New(errs.KindInternal, "storage.ChunkRepo.ReplaceForNote", err)
	}
	for _, c := range chunks {
		id := uuid.New()
		_, err := r.q.Exec(ctx, `
INSERT INTO chunks (id, note_id, chunk_index, byte_start, byte_end, content, strategy, language)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, noteID, c.Index, c.ByteStart, c.ByteEnd, c.Content, string(c.Strategy), c.Language)
		if err != nil {
			return errs.New(errs.KindInternal, "storage.ChunkRepo.ReplaceForNote", err)
		}
		copy(c.ID[:], id[:])
		copy(c.NoteID[:], noteID[:])
	}
	return nil
}

// ListByNote returns every chunk of noteID, in index order.
func (r *ChunkRepo) ListByNote(ctx context.Context, noteID uuid.UUID) ([]*Chunk, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, note_id, chunk_index, byte_start, byte_end, content, strategy, language
FROM chunks WHERE note_id = $1 ORDER BY chunk_index ASC`, noteID)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.ListByNote", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.ListByNote", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get returns a single chunk by id.
func (r *ChunkRepo) Get(ctx context.Context, id uuid.UUID) (*Chunk, error) {
	row := r.q.QueryRow(ctx, `
SELECT id, note_id, chunk_index, byte_start, byte_end, content, strategy, language
FROM chunks WHERE id = $1`, id)
	c, err := scanChunk(row)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, "storage.ChunkRepo.Get", err)
	}
	return c, nil
}

// Neighbors returns the note's chunks whose index lies within radius of
// index, the chunk at index included, in index order, used by search.Dedup's "chunk chain" mode.
func (r *ChunkRepo) Neighbors(ctx context.Context, noteID uuid.UUID, index, radius int) ([]*Chunk, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, note_id, chunk_index, byte_start, byte_end, content, strategy, language
FROM chunks WHERE note_id = $1 AND chunk_index BETWEEN $2 AND $3 ORDER BY chunk_index ASC`,
		noteID, index-radius, index+radius)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.Neighbors", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.Neighbors", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChunk(row rowScanner) (*Chunk, error) {
	var (
		id, noteID           uuid.UUID
		index, start, end    int
		content              string
		strategy, language   string
	)
	if err := row.Scan(&id, &noteID, &index, &start, &end, &content, &strategy, &language); err != nil {
		return nil, err
	}
	c := &Chunk{
		Index:     index,
		ByteStart: start,
		ByteEnd:   end,
		Content:   content,
		Strategy:  ChunkStrategy(strategy),
		Language:  language,
	}
	copy(c.ID[:], id[:])
	copy(c.NoteID[:], noteID[:])
	return c, nil
}
