// Package linker discovers and maintains semantic links between notes and
// exposes bounded graph traversal over the resulting edges. No
// in-memory graph is ever held: every traversal
// re-materializes edges from storage.LinkRepo.
package linker

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// DiscoverTopK is the candidate pool size for link discovery.
const DiscoverTopK = 20

// DefaultThreshold is the minimum cosine similarity a link must clear.
const DefaultThreshold = 0.7

// Linker maintains semantic links (Discover) and answers bounded graph
// queries over them (Traverse).
type Linker struct {
	Chunks *storage.ChunkRepo
	Embeds *storage.EmbeddingRepo
	Links  *storage.LinkRepo

	Threshold float64 // 0 uses DefaultThreshold
	EfSearch  int      // 0 uses a conservative default
}

func (l *Linker) threshold() float64 {
	if l.Threshold > 0 {
		return l.Threshold
	}
	return DefaultThreshold
}

func (l *Linker) efSearch() int {
	if l.EfSearch > 0 {
		return l.EfSearch
	}
	return 64
}

// Discover finds every other note whose representative embedding is within
// threshold of noteID's, under setID, and upserts a bidirectional semantic
// link for each — two rows per pair (A->B and B->A), weight set to the
// cosine similarity. A note's first chunk
// (lowest index) stands in for the note as a whole; the schema has no
// separate note-level embedding. Returns the links written.
func (l *Linker) Discover(ctx context.Context, noteID, setID uuid.UUID) ([]*storage.Link, error) {
	chunks, err := l.Chunks.ListByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	representative := chunks[0]
	for _, c := range chunks[1:] {
		if c.Index < representative.Index {
			representative = c
		}
	}

	emb, err := l.Embeds.ByChunkAndSet(ctx, uuid.UUID(representative.ID), setID)
	if err != nil {
		if errs.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	results, err := l.Embeds.SearchByVector(ctx, setID, emb.Vector, l.efSearch(), DiscoverTopK, []uuid.UUID{noteID})
	if err != nil {
		return nil, err
	}

	best := make(map[uuid.UUID]float64, len(results))
	for _, r := range results {
		if r.Similarity < l.threshold() {
			continue
		}
		if cur, ok := best[r.NoteID]; !ok || r.Similarity > cur {
			best[r.NoteID] = r.Similarity
		}
	}

	targets := make([]uuid.UUID, 0, len(best))
	for id := range best {
		targets = append(targets, id)
	}
	sort.Slice(targets, func(i, j int) bool { return best[targets[i]] > best[targets[j]] })

	links := make([]*storage.Link, 0, len(targets)*2)
	for _, target := range targets {
		weight := best[target]
		forward := &storage.Link{Kind: storage.LinkSemantic, Weight: weight}
		copy(forward.SourceID[:], noteID[:])
		copy(forward.TargetID[:], target[:])
		if err := l.Links.Upsert(ctx, forward); err != nil {
			return nil, err
		}

		backward := &storage.Link{Kind: storage.LinkSemantic, Weight: weight}
		copy(backward.SourceID[:], target[:])
		copy(backward.TargetID[:], noteID[:])
		if err := l.Links.Upsert(ctx, backward); err != nil {
			return nil, err
		}

		links = append(links, forward, backward)
	}
	return links, nil
}
