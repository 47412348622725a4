package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineSearchEmptyQueryReturnsNoResults(t *testing.T) {
	e := &Engine{}
	results, err := e.Search(context.Background(), Request{Query: "   !!! ---", Mode: ModeHybrid})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngineSearchEmptyQuerySemanticModeReturnsNoResults(t *testing.T) {
	e := &Engine{}
	results, err := e.Search(context.Background(), Request{Query: "", Mode: ModeSemantic})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngineSemanticFloorDefault(t *testing.T) {
	e := &Engine{}
	assert.Equal(t, 0.55, e.semanticFloor())
}

func TestEngineSemanticFloorConfigured(t *testing.T) {
	e := &Engine{MinSemanticSimilarityNoFTS: 0.7}
	assert.Equal(t, 0.7, e.semanticFloor())
}

func TestApplyLimitOffset(t *testing.T) {
	hits := make([]FusedHit, 5)
	for i := range hits {
		hits[i] = FusedHit{ChunkID: uuid.New()}
	}
	page := applyLimitOffset(hits, 2, 1)
	assert.Len(t, page, 2)
	assert.Equal(t, hits[1], page[0])
	assert.Equal(t, hits[2], page[1])
}

func TestApplyLimitOffsetPastEndReturnsEmpty(t *testing.T) {
	hits := make([]FusedHit, 2)
	assert.Empty(t, applyLimitOffset(hits, 5, 10))
}

func TestEngineApplyTagFiltersNoopWithoutTagRepo(t *testing.T) {
	e := &Engine{}
	hits := []FusedHit{{ChunkID: uuid.New(), NoteID: uuid.New()}}
	out := e.applyTagFilters(context.Background(), hits, Filters{RequiredTags: []string{"ml"}})
	assert.Equal(t, hits, out)
}

func TestErrUnknownEmbeddingSetMessage(t *testing.T) {
	id := uuid.New()
	err := errUnknownEmbeddingSet{id: id}
	assert.Contains(t, err.Error(), id.String())
}
