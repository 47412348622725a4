// Package embedding turns note content into retrievable chunks and dense
// vectors: chunking strategies, Matryoshka truncation, two-stage vector
// search, auto-embed policy evaluation, and backend error classification.
package embedding

import (
	"context"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// ChunkSpan is one chunker-produced unit, prior to persistence — it
// carries no note id or database identity yet, just the slice of content
// and its location within the source.
type ChunkSpan struct {
	Index     int
	ByteStart int
	ByteEnd   int
	Content   string
}

// Chunker splits a note's content into retrievable spans.
type Chunker interface {
	Chunk(ctx context.Context, content string, language string) ([]ChunkSpan, error)
	Strategy() storage.ChunkStrategy
}

// DocType names the kind of document being chunked, used to pick a
// strategy when an EmbeddingConfig doesn't pin one explicitly.
type DocType string

const (
	DocTypeCode     DocType = "code"
	DocTypeProse    DocType = "prose"
	DocTypeGeneric  DocType = "generic"
)

// DetectStrategy maps a document type to the chunking strategy best suited
// to it: code gets syntactic (AST-aware) chunking, prose gets semantic
// (sentence-boundary) chunking, anything else falls back to fixed token
// windows.
func DetectStrategy(docType DocType) storage.ChunkStrategy {
	switch docType {
	case DocTypeCode:
		return storage.StrategySyntactic
	case DocTypeProse:
		return storage.StrategySemantic
	default:
		return storage.StrategyFixed
	}
}

// NewChunker builds the Chunker implementing strategy, configured with the
// token target and overlap an EmbeddingConfig specifies.
func NewChunker(strategy storage.ChunkStrategy, tokenTarget, overlap int) Chunker {
	switch strategy {
	case storage.StrategySyntactic:
		return NewSyntacticChunker(tokenTarget)
	case storage.StrategySemantic:
		return NewSemanticChunker(tokenTarget, overlap)
	default:
		return NewFixedChunker(tokenTarget, overlap)
	}
}
