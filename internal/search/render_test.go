package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderImplicitAnd(t *testing.T) {
	q := ParseQuery("knowledge graph")
	assert.Equal(t, "knowledge & graph", Render(q))
}

func TestRenderPhraseUsesAdjacency(t *testing.T) {
	q := ParseQuery(`"knowledge graph"`)
	assert.Equal(t, "(knowledge <-> graph)", Render(q))
}

func TestRenderNegation(t *testing.T) {
	q := ParseQuery("apple -pie")
	assert.Equal(t, "apple & !pie", Render(q))
}

func TestRenderOrWrapsGroups(t *testing.T) {
	q := ParseQuery("cat OR dog")
	assert.Equal(t, "(cat) | (dog)", Render(q))
}

func TestRenderEmptyQuery(t *testing.T) {
	q := ParseQuery("   ")
	assert.Equal(t, "", Render(q))
}
