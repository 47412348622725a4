package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// Fixed splits content into fixed-size token windows with optional overlap.
// It is the fallback strategy for content no other chunker can make sense
// of, and the building block Syntactic uses to subdivide oversized spans.
type Fixed struct {
	tokenTarget int
	overlap     int
}

// NewFixedChunker builds a Fixed chunker producing windows of roughly
// tokenTarget tokens, each overlapping the previous by overlap tokens.
func NewFixedChunker(tokenTarget, overlap int) *Fixed {
	if tokenTarget <= 0 {
		tokenTarget = 256
	}
	if overlap < 0 || overlap >= tokenTarget {
		overlap = 0
	}
	return &Fixed{tokenTarget: tokenTarget, overlap: overlap}
}

func (f *Fixed) Strategy() storage.ChunkStrategy { return storage.StrategyFixed }

func (f *Fixed) Chunk(_ context.Context, content string, _ string) ([]ChunkSpan, error) {
	tokens := tokenizeWithOffsets(content)
	if len(tokens) == 0 {
		return nil, nil
	}

	var spans []ChunkSpan
	step := f.tokenTarget - f.overlap
	if step <= 0 {
		step = f.tokenTarget
	}
	for start := 0; start < len(tokens); start += step {
		end := start + f.tokenTarget
		if end > len(tokens) {
			end = len(tokens)
		}
		byteStart := tokens[start].start
		byteEnd := tokens[end-1].end
		spans = append(spans, ChunkSpan{
			Index:     len(spans),
			ByteStart: byteStart,
			ByteEnd:   byteEnd,
			Content:   content[byteStart:byteEnd],
		})
		if end == len(tokens) {
			break
		}
	}
	return spans, nil
}

type tokenOffset struct{ start, end int }

// tokenizeWithOffsets splits on Unicode whitespace, recording each token's
// byte range so chunk boundaries can be mapped back to the source.
func tokenizeWithOffsets(content string) []tokenOffset {
	var offsets []tokenOffset
	inToken := false
	tokenStart := 0
	for i, r := range content {
		if unicode.IsSpace(r) {
			if inToken {
				offsets = append(offsets, tokenOffset{tokenStart, i})
				inToken = false
			}
			continue
		}
		if !inToken {
			tokenStart = i
			inToken = true
		}
	}
	if inToken {
		offsets = append(offsets, tokenOffset{tokenStart, len(content)})
	}
	return offsets
}

// estimateTokens gives a cheap word-count estimate used to decide whether
// an AST node needs further subdivision.
func estimateTokens(s string) int {
	return len(strings.Fields(s))
}
