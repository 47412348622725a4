package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// NoteWriteKind distinguishes the two note lifecycle events an
// AutoEmbedPolicy reacts to.
type NoteWriteKind string

const (
	NoteCreated NoteWriteKind = "create"
	NoteUpdated NoteWriteKind = "update"
)

// EvaluateAutoEmbed enqueues an embed job for (noteID, set.ID) when the
// set's AutoEmbedPolicy reacts to writeKind, deduplicated on
// hash(noteID, setID, contentHash) so repeated saves of
// unchanged content never pile up redundant jobs.
func EvaluateAutoEmbed(ctx context.Context, jobs *storage.JobRepo, set *storage.EmbeddingSet, noteID uuid.UUID, content string, writeKind NoteWriteKind) (*storage.EnqueueResult, error) {
	switch writeKind {
	case NoteCreated:
		if !set.AutoEmbed.OnCreate {
			return nil, nil
		}
	case NoteUpdated:
		if !set.AutoEmbed.OnUpdate {
			return nil, nil
		}
	default:
		return nil, errs.New(errs.KindValidation, "embedding.EvaluateAutoEmbed", errUnknownWriteKind{writeKind})
	}

	noteIDArr := [16]byte(noteID)
	setIDArr := [16]byte(set.ID)
	dedupKey := ContentDedupKey(noteIDArr, setIDArr, content)

	job := &storage.Job{
		Kind:       storage.JobEmbed,
		Target:     storage.JobTarget{NoteID: &noteIDArr, EmbeddingSetID: &setIDArr},
		Priority:   set.AutoEmbed.Priority,
		MaxRetries: 5,
		DedupKey:   dedupKey,
	}
	return jobs.Enqueue(ctx, job)
}

// ContentDedupKey computes the embed job dedup key: a hex SHA-256 digest
// over the note id, embedding-set id, and content, so identical content
// re-saved against the same set never produces a second pending job.
func ContentDedupKey(noteID, setID [16]byte, content string) string {
	h := sha256.New()
	h.Write(noteID[:])
	h.Write(setID[:])
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

type errUnknownWriteKind struct{ kind NoteWriteKind }

func (e errUnknownWriteKind) Error() string { return "embedding: unknown note write kind " + string(e.kind) }
