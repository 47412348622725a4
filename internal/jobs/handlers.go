package jobs

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/embedding"
	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/linker"
	"github.com/Fortemi/fortemi-sub011/internal/shard"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
	"github.com/Fortemi/fortemi-sub011/internal/taxonomy"
	"github.com/Fortemi/fortemi-sub011/pkg/blob"
	"github.com/Fortemi/fortemi-sub011/pkg/cipher"
	"github.com/Fortemi/fortemi-sub011/pkg/embeddingapi"
	"github.com/Masterminds/semver/v3"
)

// Extractor is the external attachment-metadata-extraction contract
// (EXIF, PDF text, audio transcription, vision description) the
// attachment-extract and exif-extract handlers invoke. The adapters
// themselves live outside the core.
type Extractor interface {
	Extract(ctx context.Context, attachmentID uuid.UUID) error
}

// Deps bundles every repository and backend a registered Handler needs.
// Handlers close over the fields they use rather than taking Deps
// directly, so each registered func matches the Handler signature.
type Deps struct {
	Backend      embeddingapi.EmbeddingBackend
	Generation   embeddingapi.GenerationBackend
	Extractor    Extractor
	DefaultSetID uuid.UUID

	// Blob, Cipher, CipherRecipients, and ShardRegistry back the
	// shard-export/shard-import handlers. Blob is required for both;
	// Cipher/CipherRecipients are optional (nil Cipher means shards are
	// written/read as plain tar+gzip).
	Blob             blob.Store
	Cipher           cipher.Cipher
	CipherRecipients []cipher.Recipient
	ShardRegistry    *shard.Registry
	ShardTarget      *semver.Version
}

// RegisterDefaults wires every handler kind into q, using repositories
// bound fresh per call from a UnitOfWork (pool.Run) so each handler's
// writes are atomic
// with each other without holding a transaction across the handler's own
// backend calls.
func RegisterDefaults(q *Queue, deps Deps) {
	q.Register(storage.JobEmbed, embedHandler(deps))
	q.Register(storage.JobLinkDiscover, linkDiscoverHandler())
	q.Register(storage.JobConceptTag, conceptTagHandler())
	q.Register(storage.JobRevise, reviseHandler(deps))
	q.Register(storage.JobAttachmentExtract, extractHandler(deps))
	q.Register(storage.JobExifExtract, extractHandler(deps))
	q.Register(storage.JobReembedAll, reembedAllHandler(deps))
	q.Register(storage.JobRefreshEmbeddingSet, reembedAllHandler(deps))
	q.Register(storage.JobShardExport, shardExportHandler(deps))
	q.Register(storage.JobShardImport, shardImportHandler(deps))
}

// embedHandler re-chunks and re-embeds the job's target note under its
// target embedding set, then enqueues a link-discover job for the same
// note so semantic links stay current.
func embedHandler(deps Deps) Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		if job.Target.NoteID == nil || job.Target.EmbeddingSetID == nil {
			return errs.New(errs.KindValidation, "jobs.embedHandler", errMissingTarget{})
		}
		noteID := uuid.UUID(*job.Target.NoteID)
		setID := uuid.UUID(*job.Target.EmbeddingSetID)

		var version *storage.NoteVersion
		var set *storage.EmbeddingSet
		var cfg *storage.EmbeddingConfig

		err := pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			var err error
			if _, err = uow.Notes().Get(ctx, noteID); err != nil {
				return err
			}
			version, err = uow.NoteVersions().Current(ctx, noteID, storage.TrackOriginal)
			if err != nil {
				return err
			}
			set, err = uow.EmbeddingSets().Get(ctx, setID)
			if err != nil {
				return err
			}
			if set.Type == storage.SetTypeFilter {
				// Filter sets never write vectors; nothing for the embed job to do.
				return nil
			}
			cfg, err = uow.EmbeddingConfigs().Get(ctx, uuid.UUID(set.EmbeddingConfigID))
			return err
		})
		if err != nil {
			return err
		}
		if set.Type == storage.SetTypeFilter {
			return nil
		}

		if err := reporter.Report(10, "chunking"); err != nil {
			return err
		}

		return pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			svc := embedding.NewService(deps.Backend, uow.Chunks(), uow.Embeddings())
			if err := svc.Reembed(ctx, noteID, version.Content, "", cfg, setID); err != nil {
				return err
			}
			dedupKey := embedding.ContentDedupKey([16]byte(noteID), [16]byte(setID), version.Content)
			linkJob := &storage.Job{
				Kind:       storage.JobLinkDiscover,
				Target:     storage.JobTarget{NoteID: job.Target.NoteID, EmbeddingSetID: job.Target.EmbeddingSetID},
				Priority:   job.Priority,
				MaxRetries: 3,
				DedupKey:   "link-discover:" + dedupKey,
			}
			_, err := uow.Jobs().Enqueue(ctx, linkJob)
			return err
		})
	}
}

// linkDiscoverHandler runs internal/linker.Linker.Discover for the job's
// target note and embedding set.
func linkDiscoverHandler() Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		if job.Target.NoteID == nil || job.Target.EmbeddingSetID == nil {
			return errs.New(errs.KindValidation, "jobs.linkDiscoverHandler", errMissingTarget{})
		}
		noteID := uuid.UUID(*job.Target.NoteID)
		setID := uuid.UUID(*job.Target.EmbeddingSetID)

		return pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			l := &linker.Linker{Chunks: uow.Chunks(), Embeds: uow.Embeddings(), Links: uow.Links()}
			_, err := l.Discover(ctx, noteID, setID)
			return err
		})
	}
}

// conceptTagHandler resolves the job payload's raw label strings to
// concepts (preferred -> alternate -> hidden -> notation) and attaches
// them to the target note.
func conceptTagHandler() Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		if job.Target.NoteID == nil {
			return errs.New(errs.KindValidation, "jobs.conceptTagHandler", errMissingTarget{})
		}
		noteID := uuid.UUID(*job.Target.NoteID)
		labels := decodeLabels(job.Payload)

		return pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			concepts := uow.Concepts()
			for _, label := range labels {
				id, err := taxonomy.Resolve(ctx, concepts, label)
				if err != nil {
					if errs.NotFound(err) {
						continue // unresolved label: skip, don't fail the whole job
					}
					return err
				}
				if err := concepts.TagNote(ctx, noteID, id); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

// reviseHandler generates the AI-revised track for a note via the
// configured GenerationBackend, per the Note entity's revision-mode
// attribute.
func reviseHandler(deps Deps) Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		if job.Target.NoteID == nil || deps.Generation == nil {
			return errs.New(errs.KindValidation, "jobs.reviseHandler", errMissingTarget{})
		}
		noteID := uuid.UUID(*job.Target.NoteID)

		var original *storage.NoteVersion
		err := pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			var err error
			original, err = uow.NoteVersions().Current(ctx, noteID, storage.TrackOriginal)
			return err
		})
		if err != nil {
			return err
		}

		var revised string
		stream, err := deps.Generation.Stream(ctx, revisionPrompt(original.Content))
		if err != nil {
			return err
		}
		for {
			chunk, ok, err := stream()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			revised += chunk.Text
			if chunk.Done {
				break
			}
		}

		return pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			return uow.NoteVersions().Create(ctx, &storage.NoteVersion{
				NoteID:  [16]byte(noteID),
				Track:   storage.TrackRevised,
				Content: revised,
				Author:  "system:revise-job",
			})
		})
	}
}

func revisionPrompt(content string) string {
	return "Rewrite the following note for clarity without changing its meaning:\n\n" + content
}

// extractHandler delegates to the injected Extractor contract for both
// attachment-extract and exif-extract handler kinds; the adapters
// themselves (EXIF, PDF, audio, vision) are external collaborators, the
// core only invokes the interface.
func extractHandler(deps Deps) Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		if job.Target.AttachmentID == nil || deps.Extractor == nil {
			return errs.New(errs.KindValidation, "jobs.extractHandler", errMissingTarget{})
		}
		return deps.Extractor.Extract(ctx, uuid.UUID(*job.Target.AttachmentID))
	}
}

// reembedAllHandler re-chunks and re-embeds every non-deleted note in the
// archive under the target embedding set's config, for use after an
// EmbeddingConfig or set membership predicate changes. The set's tag and
// collection predicates are not applied when selecting the notes.
func reembedAllHandler(deps Deps) Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		if job.Target.EmbeddingSetID == nil {
			return errs.New(errs.KindValidation, "jobs.reembedAllHandler", errMissingTarget{})
		}
		setID := uuid.UUID(*job.Target.EmbeddingSetID)

		var notes []*storage.Note
		var set *storage.EmbeddingSet
		var cfg *storage.EmbeddingConfig
		err := pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			var err error
			set, err = uow.EmbeddingSets().Get(ctx, setID)
			if err != nil {
				return err
			}
			if set.Type == storage.SetTypeFilter {
				return nil
			}
			cfg, err = uow.EmbeddingConfigs().Get(ctx, uuid.UUID(set.EmbeddingConfigID))
			if err != nil {
				return err
			}
			notes, err = uow.Notes().List(ctx, storage.NoteFilter{})
			return err
		})
		if err != nil {
			return err
		}
		if set.Type == storage.SetTypeFilter {
			return nil
		}

		total := len(notes)
		for i, n := range notes {
			if err := reporter.Report(i*100/max(total, 1), "reembedding"); err != nil {
				return err
			}
			if cancelled, err := reporter.CancelRequested(); err == nil && cancelled {
				return errs.New(errs.KindCancelled, "jobs.reembedAllHandler", errCancelled{})
			}
			noteID := uuid.UUID(n.ID)
			err := pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
				version, err := uow.NoteVersions().Current(ctx, noteID, storage.TrackOriginal)
				if err != nil {
					return err
				}
				svc := embedding.NewService(deps.Backend, uow.Chunks(), uow.Embeddings())
				return svc.Reembed(ctx, noteID, version.Content, "", cfg, setID)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
}

// shardExportHandler renders the current archive as a shard bundle and
// writes it to deps.Blob at the path carried in job.Payload, encrypting it
// first if deps.Cipher and deps.CipherRecipients are configured.
func shardExportHandler(deps Deps) Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		path := string(job.Payload)
		if path == "" || deps.Blob == nil {
			return errs.New(errs.KindValidation, "jobs.shardExportHandler", errMissingTarget{})
		}

		var buf bytes.Buffer
		err := pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			adapter := shard.NewStorageAdapter(uow)
			return shard.Export(ctx, adapter, &buf)
		})
		if err != nil {
			return err
		}
		if err := reporter.Report(60, "rendered bundle"); err != nil {
			return err
		}

		out := buf.Bytes()
		if deps.Cipher != nil && len(deps.CipherRecipients) > 0 {
			out, err = deps.Cipher.Encrypt(ctx, out, deps.CipherRecipients)
			if err != nil {
				return err
			}
		}

		return deps.Blob.Write(ctx, path, out)
	}
}

// shardImportHandler reads a shard bundle from deps.Blob at the path
// carried in job.Payload, decrypting it first with the first entry of
// deps.CipherRecipients if deps.Cipher and deps.CipherRecipients are
// configured, migrates it to deps.ShardTarget via deps.ShardRegistry, and
// applies it to the current archive.
func shardImportHandler(deps Deps) Handler {
	return func(ctx context.Context, pool *storage.Pool, job *storage.Job, reporter *ProgressReporter) error {
		path := string(job.Payload)
		if path == "" || deps.Blob == nil || deps.ShardRegistry == nil || deps.ShardTarget == nil {
			return errs.New(errs.KindValidation, "jobs.shardImportHandler", errMissingTarget{})
		}

		data, err := deps.Blob.Read(ctx, path)
		if err != nil {
			return err
		}

		if deps.Cipher != nil && len(deps.CipherRecipients) > 0 {
			data, err = deps.Cipher.Decrypt(ctx, data, deps.CipherRecipients[0])
			if err != nil {
				return err
			}
		}
		if err := reporter.Report(30, "bundle loaded"); err != nil {
			return err
		}

		return pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
			adapter := shard.NewStorageAdapter(uow)
			_, err := shard.Import(ctx, bytes.NewReader(data), deps.ShardRegistry, deps.ShardTarget, adapter, false)
			return err
		})
	}
}

func decodeLabels(payload []byte) []string {
	if len(payload) == 0 {
		return nil
	}
	var labels []string
	start := 0
	for i := 0; i <= len(payload); i++ {
		if i == len(payload) || payload[i] == '\n' {
			if i > start {
				labels = append(labels, string(payload[start:i]))
			}
			start = i + 1
		}
	}
	return labels
}

type errMissingTarget struct{}

func (errMissingTarget) Error() string { return "jobs: job target missing required field" }

type errCancelled struct{}

func (errCancelled) Error() string { return "jobs: cancellation requested" }
