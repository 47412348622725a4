package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// EmbeddingConfigRepo persists EmbeddingConfig rows. A config is immutable
// once any embedding references it (enforced by embedding.Service, not at
// the SQL layer, since nothing here prevents writing one).
type EmbeddingConfigRepo struct{ q querier }

// Create inserts a new embedding config.
func (r *EmbeddingConfigRepo) Create(ctx context.Context, c *EmbeddingConfig) error {
	id := uuid.New()
	_, err := r.q.Exec(ctx, `
INSERT INTO embedding_configs (id, provider_id, model_name, native_dimension, matryoshka_dims,
	hnsw_m, hnsw_ef_construction, hnsw_ef_search, chunk_strategy, chunk_token_target, chunk_overlap, distance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		id, c.ProviderID, c.ModelName, c.NativeDimension, c.MatryoshkaDims,
		c.HNSW.M, c.HNSW.EfConstruction, c.HNSW.EfSearch,
		string(c.ChunkStrategy), c.ChunkTokenTarget, c.ChunkOverlap, string(c.Distance))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingConfigRepo.Create", err)
	}
	copy(c.ID[:], id[:])
	return nil
}

// Import upserts a config under its own already-assigned ID, leaving an
// existing row untouched on conflict since configs are immutable once
// referenced (internal/shard import never overwrites one that survived
// from a prior import).
func (r *EmbeddingConfigRepo) Import(ctx context.Context, c *EmbeddingConfig) error {
	id := uuid.UUID(c.ID)
	_, err := r.q.Exec(ctx, `
INSERT INTO embedding_configs (id, provider_id, model_name, native_dimension, matryoshka_dims,
	hnsw_m, hnsw_ef_construction, hnsw_ef_search, chunk_strategy, chunk_token_target, chunk_overlap, distance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO NOTHING`,
		id, c.ProviderID, c.ModelName, c.NativeDimension, c.MatryoshkaDims,
		c.HNSW.M, c.HNSW.EfConstruction, c.HNSW.EfSearch,
		string(c.ChunkStrategy), c.ChunkTokenTarget, c.ChunkOverlap, string(c.Distance))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingConfigRepo.Import", err)
	}
	return nil
}

// Get returns a config by id.
func (r *EmbeddingConfigRepo) Get(ctx context.Context, id uuid.UUID) (*EmbeddingConfig, error) {
	row := r.q.QueryRow(ctx, `
SELECT id, provider_id, model_name, native_dimension, matryoshka_dims,
	hnsw_m, hnsw_ef_construction, hnsw_ef_search, chunk_strategy, chunk_token_target, chunk_overlap, distance
FROM embedding_configs WHERE id = $1`, id)
	c, err := scanEmbeddingConfig(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.EmbeddingConfigRepo.Get", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingConfigRepo.Get", err)
	}
	return c, nil
}

// List returns every embedding config.
func (r *EmbeddingConfigRepo) List(ctx context.Context) ([]*EmbeddingConfig, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, provider_id, model_name, native_dimension, matryoshka_dims,
	hnsw_m, hnsw_ef_construction, hnsw_ef_search, chunk_strategy, chunk_token_target, chunk_overlap, distance
FROM embedding_configs`)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingConfigRepo.List", err)
	}
	defer rows.Close()

	var out []*EmbeddingConfig
	for rows.Next() {
		c, err := scanEmbeddingConfig(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.EmbeddingConfigRepo.List", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanEmbeddingConfig(row rowScanner) (*EmbeddingConfig, error) {
	var (
		id                                         uuid.UUID
		providerID, modelName                      string
		nativeDim                                  int
		matryoshkaDims                             []int
		m, efConstruction, efSearch                int
		chunkStrategy, distance                     string
		chunkTokenTarget, chunkOverlap              int
	)
	if err := row.Scan(&id, &providerID, &modelName, &nativeDim, &matryoshkaDims,
		&m, &efConstruction, &efSearch, &chunkStrategy, &chunkTokenTarget, &chunkOverlap, &distance); err != nil {
		return nil, err
	}
	c := &EmbeddingConfig{
		ProviderID:       providerID,
		ModelName:        modelName,
		NativeDimension:  nativeDim,
		MatryoshkaDims:   matryoshkaDims,
		HNSW:             HNSWParams{M: m, EfConstruction: efConstruction, EfSearch: efSearch},
		ChunkStrategy:    ChunkStrategy(chunkStrategy),
		ChunkTokenTarget: chunkTokenTarget,
		ChunkOverlap:     chunkOverlap,
		Distance:         DistanceMetric(distance),
	}
	copy(c.ID[:], id[:])
	return c, nil
}
