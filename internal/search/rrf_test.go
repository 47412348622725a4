package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFuseRRFCombinesBothModes(t *testing.T) {
	c1, c2, c3 := uuid.New(), uuid.New(), uuid.New()
	n1, n2, n3 := uuid.New(), uuid.New(), uuid.New()

	fts := []RankedHit{
		{ChunkID: c1, NoteID: n1, Score: 0.9},
		{ChunkID: c2, NoteID: n2, Score: 0.5},
	}
	semantic := []RankedHit{
		{ChunkID: c1, NoteID: n1, Score: 0.95},
		{ChunkID: c3, NoteID: n3, Score: 0.4},
	}

	fused := FuseRRF(fts, semantic, DefaultRRFK)
	assert.Len(t, fused, 3)

	// c1 appears in both modes at rank 1, so it must score highest and sit first.
	assert.Equal(t, c1, fused[0].ChunkID)
	assert.True(t, fused[0].FromFTS)
	assert.True(t, fused[0].FromSemantic)
}

func TestFuseRRFSingleModeOrdersByRank(t *testing.T) {
	c1, c2 := uuid.New(), uuid.New()
	n1, n2 := uuid.New(), uuid.New()

	fts := []RankedHit{
		{ChunkID: c1, NoteID: n1, Score: 0.8},
		{ChunkID: c2, NoteID: n2, Score: 0.6},
	}
	fused := FuseRRF(fts, nil, DefaultRRFK)
	// Both receive only an FTS contribution at distinct ranks, so RRF score
	// alone already orders them; verify the raw FTS score ordering matches.
	assert.Equal(t, c1, fused[0].ChunkID)
	assert.Equal(t, c2, fused[1].ChunkID)
}

func TestFuseRRFEmptyInputs(t *testing.T) {
	fused := FuseRRF(nil, nil, DefaultRRFK)
	assert.Empty(t, fused)
}

func TestFuseRRFDefaultsKWhenNonPositive(t *testing.T) {
	c1 := uuid.New()
	n1 := uuid.New()
	fused := FuseRRF([]RankedHit{{ChunkID: c1, NoteID: n1, Score: 1}}, nil, 0)
	assert.InDelta(t, 1.0/float64(DefaultRRFK+1), fused[0].RRFScore, 1e-9)
}
