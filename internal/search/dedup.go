package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// DedupMode selects how multiple matching chunks from the same note are
// collapsed into one result.
type DedupMode string

const (
	// DedupNone returns every matching chunk as its own result.
	DedupNone DedupMode = "none"
	// DedupParent collapses to one result per note; the caller renders
	// the whole note rather than a single chunk.
	DedupParent DedupMode = "parent"
	// DedupChunkChain keeps the best-scoring chunk per note and attaches
	// its immediate neighbors as extra context.
	DedupChunkChain DedupMode = "chunk-chain"
)

// Result is one ranked, deduplicated, snippet-rendered hit returned to a
// caller of Engine.Search.
type Result struct {
	NoteID  uuid.UUID
	ChunkID uuid.UUID
	Score   float64
	Snippet string
	Chain   []*storage.Chunk // populated only in DedupChunkChain mode
}

// Dedup collapses fused hits per mode. chunks is used only by
// DedupChunkChain to fetch neighboring chunks; it may be nil for the
// other modes. An empty or unrecognized mode behaves as DedupNone.
func Dedup(ctx context.Context, hits []FusedHit, mode DedupMode, chunks *storage.ChunkRepo) ([]Result, error) {
	if mode != DedupParent && mode != DedupChunkChain {
		return resultsFromHits(hits), nil
	}

	best := make(map[uuid.UUID]FusedHit, len(hits))
	order := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		existing, ok := best[h.NoteID]
		if !ok {
			best[h.NoteID] = h
			order = append(order, h.NoteID)
			continue
		}
		if h.RRFScore > existing.RRFScore {
			best[h.NoteID] = h
		}
	}

	out := make([]Result, 0, len(order))
	for _, noteID := range order {
		h := best[noteID]
		res := Result{NoteID: h.NoteID, ChunkID: h.ChunkID, Score: h.RRFScore, Snippet: RenderSnippet(h)}
		if mode == DedupChunkChain && chunks != nil {
			if chunk, err := chunks.Get(ctx, h.ChunkID); err == nil {
				if neighbors, err := chunks.Neighbors(ctx, noteID, chunk.Index, 1); err == nil {
					res.Chain = neighbors
				}
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func resultsFromHits(hits []FusedHit) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{NoteID: h.NoteID, ChunkID: h.ChunkID, Score: h.RRFScore, Snippet: RenderSnippet(h)}
	}
	return out
}
