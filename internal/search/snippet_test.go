package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSnippetPrefersFTSPath(t *testing.T) {
	h := FusedHit{Content: "  hello world  ", FromFTS: true}
	assert.Equal(t, "hello world", RenderSnippet(h))
}

func TestRenderSnippetFallsBackToPlainTruncation(t *testing.T) {
	h := FusedHit{Content: strings.Repeat("a", snippetChars+50), FromFTS: false}
	got := RenderSnippet(h)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, snippetChars+1, len([]rune(got)))
}

func TestFirstNCharsShortContentUnchanged(t *testing.T) {
	assert.Equal(t, "short", firstNChars("short", 200))
}
