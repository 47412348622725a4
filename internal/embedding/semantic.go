package embedding

import (
	"context"
	"strings"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// sentenceEnders are the punctuation marks Semantic treats as a sentence
// boundary. This is a pragmatic heuristic, not a full sentence tokenizer:
// it does not special-case abbreviations or decimal numbers.
const sentenceEnders = ".!?"

// Semantic groups prose into chunks along sentence boundaries, packing
// whole sentences into a chunk until the token target is reached, then
// starting the next chunk overlap tokens back so retrieval context isn't
// severed mid-thought.
type Semantic struct {
	tokenTarget int
	overlap     int
}

// NewSemanticChunker builds a Semantic chunker targeting tokenTarget
// tokens per chunk with the given sentence overlap (in tokens).
func NewSemanticChunker(tokenTarget, overlap int) *Semantic {
	if tokenTarget <= 0 {
		tokenTarget = 256
	}
	if overlap < 0 || overlap >= tokenTarget {
		overlap = 0
	}
	return &Semantic{tokenTarget: tokenTarget, overlap: overlap}
}

func (s *Semantic) Strategy() storage.ChunkStrategy { return storage.StrategySemantic }

func (s *Semantic) Chunk(_ context.Context, content string, _ string) ([]ChunkSpan, error) {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return nil, nil
	}

	var spans []ChunkSpan
	curStart := sentences[0].start
	curTokens := 0
	var lastEnd int

	flush := func(end int) {
		if curTokens == 0 {
			return
		}
		spans = append(spans, ChunkSpan{
			Index:     len(spans),
			ByteStart: curStart,
			ByteEnd:   end,
			Content:   content[curStart:end],
		})
	}

	overlapSentences := 0
	for i, sent := range sentences {
		tok := estimateTokens(content[sent.start:sent.end])
		if curTokens > 0 && curTokens+tok > s.tokenTarget {
			flush(lastEnd)
			backTokens := 0
			backIdx := i
			for backIdx > 0 && backTokens < s.overlap {
				backIdx--
				backTokens += estimateTokens(content[sentences[backIdx].start:sentences[backIdx].end])
			}
			curStart = sentences[backIdx].start
			curTokens = backTokens
			overlapSentences = i - backIdx
			_ = overlapSentences
		}
		curTokens += tok
		lastEnd = sent.end
	}
	flush(lastEnd)
	return spans, nil
}

type sentenceSpan struct{ start, end int }

// splitSentences scans for sentence-ending punctuation followed by
// whitespace (or end of string), treating each run as one sentence.
func splitSentences(content string) []sentenceSpan {
	var spans []sentenceSpan
	start := -1
	for i, r := range content {
		if start == -1 && !isSpaceByte(content, i) {
			start = i
		}
		if start == -1 {
			continue
		}
		if strings.ContainsRune(sentenceEnders, r) {
			next := i + len(string(r))
			if next >= len(content) || isSpaceByte(content, next) {
				spans = append(spans, sentenceSpan{start, next})
				start = -1
			}
		}
	}
	if start != -1 && start < len(content) {
		spans = append(spans, sentenceSpan{start, len(content)})
	}
	return spans
}

func isSpaceByte(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	c := s[i]
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
