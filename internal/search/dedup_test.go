package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupNoneReturnsOnePerHit(t *testing.T) {
	n1 := uuid.New()
	hits := []FusedHit{
		{ChunkID: uuid.New(), NoteID: n1, RRFScore: 0.5},
		{ChunkID: uuid.New(), NoteID: n1, RRFScore: 0.3},
	}
	results, err := Dedup(context.Background(), hits, DedupNone, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDedupParentCollapsesToBestPerNote(t *testing.T) {
	n1, n2 := uuid.New(), uuid.New()
	c1, c2, c3 := uuid.New(), uuid.New(), uuid.New()
	hits := []FusedHit{
		{ChunkID: c1, NoteID: n1, RRFScore: 0.2},
		{ChunkID: c2, NoteID: n1, RRFScore: 0.8},
		{ChunkID: c3, NoteID: n2, RRFScore: 0.5},
	}
	results, err := Dedup(context.Background(), hits, DedupParent, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byNote := make(map[uuid.UUID]Result, 2)
	for _, r := range results {
		byNote[r.NoteID] = r
	}
	assert.Equal(t, c2, byNote[n1].ChunkID, "best-scoring chunk for n1 must win")
	assert.Equal(t, c3, byNote[n2].ChunkID)
}

func TestDedupParentPreservesFirstSeenOrder(t *testing.T) {
	n1, n2 := uuid.New(), uuid.New()
	hits := []FusedHit{
		{ChunkID: uuid.New(), NoteID: n2, RRFScore: 0.9},
		{ChunkID: uuid.New(), NoteID: n1, RRFScore: 0.1},
	}
	results, err := Dedup(context.Background(), hits, DedupParent, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, n2, results[0].NoteID)
	assert.Equal(t, n1, results[1].NoteID)
}

func TestDedupUnrecognizedModeBehavesAsNone(t *testing.T) {
	hits := []FusedHit{{ChunkID: uuid.New(), NoteID: uuid.New(), RRFScore: 0.1}}
	results, err := Dedup(context.Background(), hits, DedupMode("bogus"), nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
