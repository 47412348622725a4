package embedding

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
	"github.com/Fortemi/fortemi-sub011/pkg/embeddingapi"
)

// coarseCandidateMultiplier sizes stage-1's candidate pool relative to the
// caller's requested topK: the coarse ANN pass over-fetches ~4x so stage-2's
// exact re-rank on full-dimension vectors has enough candidates to recover
// the true top-K even when the coarse truncated view reorders a few
// borderline results.
const coarseCandidateMultiplier = 4

// Retriever runs semantic vector search for one embedding config, two-stage
// when the config declares Matryoshka dimensions: a coarse ANN pass on the
// lowest-dimension truncated view narrows the candidate set, then an exact
// re-rank on the native vector produces the final ordering.
type Retriever struct {
	Backend embeddingapi.EmbeddingBackend
	Repo    *storage.EmbeddingRepo
}

// NewRetriever builds a Retriever over backend and repo.
func NewRetriever(backend embeddingapi.EmbeddingBackend, repo *storage.EmbeddingRepo) *Retriever {
	return &Retriever{Backend: backend, Repo: repo}
}

// Search embeds queryText and returns the topK nearest chunks in setID
// under cfg, excluding any note id in exclude.
func (r *Retriever) Search(ctx context.Context, cfg *storage.EmbeddingConfig, setID uuid.UUID, queryText string, topK int, exclude []uuid.UUID) ([]storage.VectorSearchResult, error) {
	vecs, err := r.Backend.Embed(ctx, []string{queryText})
	if err != nil {
		kind, errKind := ClassifyBackendError(err)
		return nil, errs.New(errKind, "embedding.Retriever.Search", &backendFailure{kind: kind, cause: err})
	}
	if len(vecs) == 0 {
		return nil, errs.New(errs.KindInternal, "embedding.Retriever.Search", errEmptyEmbedResponse)
	}
	query := vecs[0]

	coarseDim, hasCoarse := lowestDim(cfg.MatryoshkaDims)
	if !hasCoarse {
		return r.Repo.SearchByVector(ctx, setID, query, cfg.HNSW.EfSearch, topK, exclude)
	}

	coarseQuery := Truncate(query, coarseDim)
	coarsePool := topK * coarseCandidateMultiplier
	candidates, err := r.Repo.SearchByCoarseVector(ctx, setID, coarseQuery, cfg.HNSW.EfSearch, coarsePool, exclude)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return r.Repo.SearchByVectorAmongChunks(ctx, setID, query, topK, candidates)
}

func lowestDim(dims []int) (int, bool) {
	if len(dims) == 0 {
		return 0, false
	}
	sorted := append([]int(nil), dims...)
	sort.Ints(sorted)
	return sorted[0], true
}

type backendFailure struct {
	kind  BackendErrorKind
	cause error
}

func (b *backendFailure) Error() string { return string(b.kind) + ": " + b.cause.Error() }
func (b *backendFailure) Unwrap() error { return b.cause }

var errEmptyEmbedResponse = backendEmptyResponseErr{}

type backendEmptyResponseErr struct{}

func (backendEmptyResponseErr) Error() string { return "embedding backend returned no vectors" }
