package storage

import (
	"context"
	"fmt"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// EnsureVectorIndex builds the HNSW index for one embedding config's native
// dimension and distance metric; index parameters (m,
// ef_construction) are set per embedding-config. No repository method
// calls it when an embedding set is created; it is idempotent via
// IF NOT EXISTS, named deterministically from the config id so repeated
// calls for the same config are no-ops.
func EnsureVectorIndex(ctx context.Context, q querier, cfg *EmbeddingConfig) error {
	opClass := map[DistanceMetric]string{
		DistanceCosine: "vector_cosine_ops",
		DistanceL2:     "vector_l2_ops",
		DistanceDot:    "vector_ip_ops",
	}[cfg.Distance]
	if opClass == "" {
		opClass = "vector_cosine_ops"
	}

	indexName := fmt.Sprintf("embeddings_hnsw_%s", hexID(cfg.ID))
	sql := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON embeddings USING hnsw (vector %s) WITH (m = %d, ef_construction = %d)`,
		indexName, opClass, cfg.HNSW.M, cfg.HNSW.EfConstruction,
	)
	if _, err := q.Exec(ctx, sql); err != nil {
		return errs.New(errs.KindInternal, "storage.EnsureVectorIndex", err)
	}

	if len(cfg.MatryoshkaDims) > 0 {
		coarseIndexName := fmt.Sprintf("embeddings_hnsw_coarse_%s", hexID(cfg.ID))
		coarseSQL := fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON embeddings USING hnsw (vector_coarse %s) WITH (m = %d, ef_construction = %d) WHERE vector_coarse IS NOT NULL`,
			coarseIndexName, opClass, cfg.HNSW.M, cfg.HNSW.EfConstruction,
		)
		if _, err := q.Exec(ctx, coarseSQL); err != nil {
			return errs.New(errs.KindInternal, "storage.EnsureVectorIndex", err)
		}
	}
	return nil
}

func hexID(id [16]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range id {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
