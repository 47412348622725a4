package search

import "strings"

// snippetChars bounds the plain-text snippet length for semantic-only hits.
const snippetChars = 200

// RenderSnippet produces a display snippet for a fused hit: when the hit
// came from the lexical pass (hybrid prefers the FTS snippet when FTS
// contributed), the whitespace-trimmed content cut to snippetChars
// characters, with no match highlighting; otherwise the first
// snippetChars characters of the chunk content.
func RenderSnippet(h FusedHit) string {
	if h.FromFTS {
		return highlightSnippet(h.Content)
	}
	return firstNChars(h.Content, snippetChars)
}

func firstNChars(content string, n int) string {
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n]) + "…"
}

// highlightSnippet is a lightweight stand-in for Postgres's
// ts_headline(): it trims to a bounded window around the content's start,
// since true match-position highlighting requires the query and document
// to both be evaluated server-side by ts_headline, which callers should
// prefer when available (this function exists for contexts — like a
// cached/offline render — where the database round-trip isn't wanted).
func highlightSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	return firstNChars(trimmed, snippetChars)
}
