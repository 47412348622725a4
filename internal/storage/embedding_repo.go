package storage

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// EmbeddingRepo persists Embedding rows, one per (chunk, embedding set).
type EmbeddingRepo struct{ q querier }

// Upsert inserts or replaces the embedding for (e.ChunkID, e.EmbeddingSetID).
// When TruncatedViews carries at least one entry, the lowest-dimension view
// is also written to vector_coarse for the two-stage retriever's coarse pass.
func (r *EmbeddingRepo) Upsert(ctx context.Context, e *Embedding) error {
	views, err := json.Marshal(truncatedViewsJSON(e.TruncatedViews))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingRepo.Upsert", err)
	}
	id := uuid.New()
	chunkID := uuid.UUID(e.ChunkID)
	setID := uuid.UUID(e.EmbeddingSetID)

	var coarse *pgvector.Vector
	if v, ok := lowestDimView(e.TruncatedViews); ok {
		cv := pgvector.NewVector(v)
		coarse = &cv
	}

	err = r.q.QueryRow(ctx, `
INSERT INTO embeddings (id, chunk_id, embedding_set_id, vector, vector_coarse, truncated_views, model, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (chunk_id, embedding_set_id) DO UPDATE SET
	vector = EXCLUDED.vector, vector_coarse = EXCLUDED.vector_coarse, truncated_views = EXCLUDED.truncated_views,
	model = EXCLUDED.model, created_at = EXCLUDED.created_at
RETURNING id, created_at`,
		id, chunkID, setID, pgvector.NewVector(e.Vector), coarse, views, e.Model,
	).Scan(&id, &e.CreatedAt)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingRepo.Upsert", err)
	}
	copy(e.ID[:], id[:])
	return nil
}

func lowestDimView(views map[int][]float32) ([]float32, bool) {
	lowest := -1
	for dim := range views {
		if lowest == -1 || dim < lowest {
			lowest = dim
		}
	}
	if lowest == -1 {
		return nil, false
	}
	return views[lowest], true
}

// DeleteForChunk removes every embedding (across all sets) for chunkID;
// used when a chunk is re-created during re-chunking.
func (r *EmbeddingRepo) DeleteForChunk(ctx context.Context, chunkID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM embeddings WHERE chunk_id = $1`, chunkID)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingRepo.DeleteForChunk", err)
	}
	return nil
}

// DeleteForSet removes every embedding belonging to setID, used by the
// "cascade" deletion policy when an embedding set's criteria shrink.
func (r *EmbeddingRepo) DeleteForSet(ctx context.Context, setID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `DELETE FROM embeddings WHERE embedding_set_id = $1`, setID)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingRepo.DeleteForSet", err)
	}
	return nil
}

// ByChunkAndSet returns the embedding for (chunkID, setID), if any.
func (r *EmbeddingRepo) ByChunkAndSet(ctx context.Context, chunkID, setID uuid.UUID) (*Embedding, error) {
	row := r.q.QueryRow(ctx, `
SELECT id, chunk_id, embedding_set_id, vector, truncated_views, model, created_at
FROM embeddings WHERE chunk_id = $1 AND embedding_set_id = $2`, chunkID, setID)
	e, err := scanEmbedding(row)
	if err != nil {
		return nil, errs.New(errs.KindNotFound, "storage.EmbeddingRepo.ByChunkAndSet", err)
	}
	return e, nil
}

// VectorSearchResult is one row of an approximate nearest-neighbor scan.
type VectorSearchResult struct {
	ChunkID    uuid.UUID
	NoteID     uuid.UUID
	Embedding  []float32
	Similarity float64 // cosine similarity, 1 - (a <=> b)
}

// SearchByVector runs an HNSW-indexed cosine similarity scan over the given
// embedding set's vectors, scoped by ef_search, returning the topK nearest
// chunks (joined to their note) excluding any note id in exclude.
func (r *EmbeddingRepo) SearchByVector(ctx context.Context, setID uuid.UUID, query []float32, efSearch, topK int, exclude []uuid.UUID) ([]VectorSearchResult, error) {
	if _, err := r.q.Exec(ctx, "SELECT set_config('hnsw.ef_search', $1, true)", strconv.Itoa(efSearch)); err != nil {
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByVector", err)
	}

	rows, err := r.q.Query(ctx, `
SELECT e.chunk_id, c.note_id, e.vector, 1 - (e.vector <=> $1) AS similarity
FROM embeddings e
JOIN chunks c ON c.id = e.chunk_id
JOIN notes n ON n.id = c.note_id
WHERE e.embedding_set_id = $2 AND n.deleted_at IS NULL AND NOT (c.note_id = ANY($3))
ORDER BY e.vector <=> $1
LIMIT $4`, pgvector.NewVector(query), setID, uuidSlice(exclude), topK)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByVector", err)
	}
	defer rows.Close()

	var out []VectorSearchResult
	for rows.Next() {
		var (
			chunkID, noteID uuid.UUID
			vec             pgvector.Vector
			sim             float64
		)
		if err := rows.Scan(&chunkID, &noteID, &vec, &sim); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByVector", err)
		}
		out = append(out, VectorSearchResult{ChunkID: chunkID, NoteID: noteID, Embedding: vec.Slice(), Similarity: sim})
	}
	return out, rows.Err()
}

// SearchByCoarseVector runs the two-stage retriever's stage-1 scan: an
// HNSW-indexed search over vector_coarse, returning candidate chunk ids
// only (the coarse vector's dimension does not match the native column, so
// no similarity score from this stage is meaningful for final ranking).
func (r *EmbeddingRepo) SearchByCoarseVector(ctx context.Context, setID uuid.UUID, coarseQuery []float32, efSearch, topK int, exclude []uuid.UUID) ([]uuid.UUID, error) {
	if _, err := r.q.Exec(ctx, "SELECT set_config('hnsw.ef_search', $1, true)", strconv.Itoa(efSearch)); err != nil {
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByCoarseVector", err)
	}

	rows, err := r.q.Query(ctx, `
SELECT e.chunk_id
FROM embeddings e
JOIN chunks c ON c.id = e.chunk_id
JOIN notes n ON n.id = c.note_id
WHERE e.embedding_set_id = $2 AND e.vector_coarse IS NOT NULL
	AND n.deleted_at IS NULL AND NOT (c.note_id = ANY($3))
ORDER BY e.vector_coarse <=> $1
LIMIT $4`, pgvector.NewVector(coarseQuery), setID, uuidSlice(exclude), topK)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByCoarseVector", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var chunkID uuid.UUID
		if err := rows.Scan(&chunkID); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByCoarseVector", err)
		}
		out = append(out, chunkID)
	}
	return out, rows.Err()
}

// SearchByVectorAmongChunks is stage-2 of the two-stage retriever: an exact
// re-rank on the native vector column, restricted to the candidate chunk
// ids stage-1 produced.
func (r *EmbeddingRepo) SearchByVectorAmongChunks(ctx context.Context, setID uuid.UUID, query []float32, topK int, candidates []uuid.UUID) ([]VectorSearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
SELECT e.chunk_id, c.note_id, e.vector, 1 - (e.vector <=> $1) AS similarity
FROM embeddings e
JOIN chunks c ON c.id = e.chunk_id
WHERE e.embedding_set_id = $2 AND e.chunk_id = ANY($3)
ORDER BY e.vector <=> $1
LIMIT $4`, pgvector.NewVector(query), setID, candidates, topK)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByVectorAmongChunks", err)
	}
	defer rows.Close()

	var out []VectorSearchResult
	for rows.Next() {
		var (
			chunkID, noteID uuid.UUID
			vec             pgvector.Vector
			sim             float64
		)
		if err := rows.Scan(&chunkID, &noteID, &vec, &sim); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.EmbeddingRepo.SearchByVectorAmongChunks", err)
		}
		out = append(out, VectorSearchResult{ChunkID: chunkID, NoteID: noteID, Embedding: vec.Slice(), Similarity: sim})
	}
	return out, rows.Err()
}

func uuidSlice(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func truncatedViewsJSON(m map[int][]float32) map[string][]float32 {
	out := make(map[string][]float32, len(m))
	for dim, vec := range m {
		out[strconv.Itoa(dim)] = vec
	}
	return out
}

func scanEmbedding(row rowScanner) (*Embedding, error) {
	var (
		id, chunkID, setID uuid.UUID
		vec                pgvector.Vector
		viewsRaw           []byte
		model              string
		createdAt          time.Time
	)
	if err := row.Scan(&id, &chunkID, &setID, &vec, &viewsRaw, &model, &createdAt); err != nil {
		return nil, err
	}
	var rawViews map[string][]float32
	if err := json.Unmarshal(viewsRaw, &rawViews); err != nil {
		return nil, err
	}
	views := make(map[int][]float32, len(rawViews))
	for k, v := range rawViews {
		dim, err := strconv.Atoi(k)
		if err != nil {
			return nil, err
		}
		views[dim] = v
	}
	e := &Embedding{Vector: vec.Slice(), TruncatedViews: views, Model: model, CreatedAt: createdAt}
	copy(e.ID[:], id[:])
	copy(e.ChunkID[:], chunkID[:])
	copy(e.EmbeddingSetID[:], setID[:])
	return e, nil
}
