package embedding

import (
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
	"github.com/Fortemi/fortemi-sub011/pkg/embeddingapi"
)

// Service orchestrates chunking and embedding for one note under one
// embedding config: re-chunk, embed every chunk, truncate to each
// Matryoshka dimension, and persist — the body of the embed job handler.
type Service struct {
	Backend embeddingapi.EmbeddingBackend
	Chunks  *storage.ChunkRepo
	Embeds  *storage.EmbeddingRepo
}

// NewService builds a Service over backend and the given repositories,
// which must come from the same UnitOfWork so the chunk replace and
// embedding upserts are atomic with each other.
func NewService(backend embeddingapi.EmbeddingBackend, chunks *storage.ChunkRepo, embeds *storage.EmbeddingRepo) *Service {
	return &Service{Backend: backend, Chunks: chunks, Embeds: embeds}
}

// Reembed re-chunks noteID's content with the strategy cfg names, embeds
// every resulting chunk, and persists both the chunks and their embeddings
// under setID.
func (s *Service) Reembed(ctx context.Context, noteID uuid.UUID, content, language string, cfg *storage.EmbeddingConfig, setID uuid.UUID) error {
	chunker := NewChunker(cfg.ChunkStrategy, cfg.ChunkTokenTarget, cfg.ChunkOverlap)
	spans, err := chunker.Chunk(ctx, content, language)
	if err != nil {
		return errs.New(errs.KindInternal, "embedding.Service.Reembed", err)
	}

	chunks := make([]*storage.Chunk, len(spans))
	texts := make([]string, len(spans))
	for i, span := range spans {
		chunks[i] = &storage.Chunk{
			Index:     span.Index,
			ByteStart: span.ByteStart,
			ByteEnd:   span.ByteEnd,
			Content:   span.Content,
			Strategy:  chunker.Strategy(),
			Language:  language,
		}
		texts[i] = span.Content
	}
	if err := s.Chunks.ReplaceForNote(ctx, noteID, chunks); err != nil {
		return err
	}
	if len(texts) == 0 {
		return nil
	}

	vectors, err := s.Backend.Embed(ctx, texts)
	if err != nil {
		_, errKind := ClassifyBackendError(err)
		return errs.New(errKind, "embedding.Service.Reembed", err)
	}
	if len(vectors) != len(chunks) {
		return errs.New(errs.KindInternal, "embedding.Service.Reembed", errVectorCountMismatch{want: len(chunks), got: len(vectors)})
	}

	for i, vec := range vectors {
		e := &storage.Embedding{
			ChunkID:        chunks[i].ID,
			EmbeddingSetID: [16]byte(setID),
			Vector:         vec,
			TruncatedViews: TruncateAll(vec, cfg.MatryoshkaDims),
			Model:          cfg.ModelName,
		}
		if err := s.Embeds.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

type errVectorCountMismatch struct{ want, got int }

func (e errVectorCountMismatch) Error() string {
	return "embedding backend returned wrong vector count"
}
