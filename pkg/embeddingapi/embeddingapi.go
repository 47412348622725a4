// Package embeddingapi defines the pluggable contracts the embedding
// service (C2) dispatches through, plus HTTP-backed local and cloud
// implementations. Callers depend only on EmbeddingBackend/GenerationBackend;
// swapping a local TEI server for a cloud provider never touches core code.
package embeddingapi

import "context"

// EmbeddingBackend turns text into dense vectors.
type EmbeddingBackend interface {
	// Embed returns one vector per input text, in the same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions reports the native output width of this backend's model,
	// before any Matryoshka truncation is applied.
	Dimensions() int
}

// GenerationChunk is one token (or token group) of a streamed completion.
type GenerationChunk struct {
	Text string
	Done bool
}

// GenerationBackend produces text completions, used for link-rationale
// summaries and tag suggestions. Stream returns an iterator-style function:
// repeated calls yield the next chunk until ok is false (stream exhausted)
// or err is non-nil.
type GenerationBackend interface {
	Stream(ctx context.Context, prompt string) (next func() (chunk GenerationChunk, ok bool, err error), err error)
}
