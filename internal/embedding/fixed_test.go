package embedding

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedChunkerWindowsWithOverlap(t *testing.T) {
	words := make([]string, 50)
	for i := range words {
		words[i] = "word"
	}
	content := strings.Join(words, " ")

	c := NewFixedChunker(10, 2)
	spans, err := c.Chunk(context.Background(), content, "")
	require.NoError(t, err)
	require.NotEmpty(t, spans)

	for i, span := range spans {
		assert.Equal(t, i, span.Index)
		assert.Equal(t, content[span.ByteStart:span.ByteEnd], span.Content)
	}
	// Last window should reach the end of the content.
	assert.Equal(t, len(content), spans[len(spans)-1].ByteEnd)
}

func TestFixedChunkerEmptyContent(t *testing.T) {
	c := NewFixedChunker(10, 0)
	spans, err := c.Chunk(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestFixedChunkerRejectsBadOverlap(t *testing.T) {
	c := NewFixedChunker(10, 10)
	assert.Equal(t, 0, c.overlap)
}
