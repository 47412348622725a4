package shard

import (
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// StorageAdapter implements ArchiveSink and ArchiveSource against a single
// archive's UnitOfWork. It has no Template backing: no storage.Template
// entity exists (templates are plain files substituted client-side per
// the glossary's own framing of the feature as conventional plumbing
// outside the engine's retrieval/linking core), so Templates always
// returns an empty slice and PutTemplate is a no-op.
type StorageAdapter struct {
	uow *storage.UnitOfWork
}

// NewStorageAdapter wraps a UnitOfWork for shard export/import.
func NewStorageAdapter(uow *storage.UnitOfWork) *StorageAdapter {
	return &StorageAdapter{uow: uow}
}

func (a *StorageAdapter) Notes(ctx context.Context) ([]NoteRecord, error) {
	notes, err := a.uow.Notes().List(ctx, storage.NoteFilter{})
	if err != nil {
		return nil, err
	}

	out := make([]NoteRecord, 0, len(notes))
	for _, n := range notes {
		id := uuid.UUID(n.ID)

		original, err := a.uow.NoteVersions().Current(ctx, id, storage.TrackOriginal)
		if err != nil {
			return nil, err
		}

		rec := NoteRecord{
			ID:           id.String(),
			Title:        n.Title,
			RevisionMode: string(n.RevisionMode),
			Starred:      n.Starred,
			Archived:     n.Archived,
			CreatedAt:    n.CreatedAt,
			UpdatedAt:    n.UpdatedAt,
			Original: NoteVersionRecord{
				Version:   original.Version,
				Content:   original.Content,
				Author:    original.Author,
				CreatedAt: original.CreatedAt,
			},
		}

		if revised, err := a.uow.NoteVersions().Current(ctx, id, storage.TrackRevised); err == nil {
			rec.Revised = &NoteVersionRecord{
				Version:   revised.Version,
				Content:   revised.Content,
				Author:    revised.Author,
				CreatedAt: revised.CreatedAt,
			}
		} else if errs.KindOf(err) != errs.KindNotFound {
			return nil, err
		}

		tags, err := a.uow.Tags().ForNote(ctx, id)
		if err != nil {
			return nil, err
		}
		rec.Tags = tags

		conceptIDs, err := a.uow.Concepts().ConceptsForNote(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, cid := range conceptIDs {
			c, err := a.uow.Concepts().GetConcept(ctx, cid)
			if err != nil {
				return nil, err
			}
			rec.Concepts = append(rec.Concepts, c.Notation)
		}

		out = append(out, rec)
	}
	return out, nil
}

// Links walks every note's outgoing edges of both kinds, since LinkRepo
// exposes no archive-wide listing.
func (a *StorageAdapter) Links(ctx context.Context) ([]LinkRecord, error) {
	notes, err := a.uow.Notes().List(ctx, storage.NoteFilter{})
	if err != nil {
		return nil, err
	}

	var out []LinkRecord
	for _, n := range notes {
		id := uuid.UUID(n.ID)
		for _, kind := range []storage.LinkKind{storage.LinkManual, storage.LinkSemantic} {
			links, err := a.uow.Links().OutgoingFrom(ctx, id, kind)
			if err != nil {
				return nil, err
			}
			for _, l := range links {
				out = append(out, LinkRecord{
					SourceID: uuid.UUID(l.SourceID).String(),
					TargetID: uuid.UUID(l.TargetID).String(),
					Kind:     string(l.Kind),
					Weight:   l.Weight,
				})
			}
		}
	}
	return out, nil
}

func (a *StorageAdapter) EmbeddingSets(ctx context.Context) ([]EmbeddingSetRecord, error) {
	sets, err := a.uow.EmbeddingSets().List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EmbeddingSetRecord, 0, len(sets))
	for _, s := range sets {
		collIDs := make([]string, len(s.CollectionPredicate))
		for i, c := range s.CollectionPredicate {
			collIDs[i] = uuid.UUID(c).String()
		}
		out = append(out, EmbeddingSetRecord{
			ID:                  uuid.UUID(s.ID).String(),
			Name:                s.Name,
			Type:                string(s.Type),
			EmbeddingConfigID:   uuid.UUID(s.EmbeddingConfigID).String(),
			TagPredicate:        s.TagPredicate,
			CollectionPredicate: collIDs,
		})
	}
	return out, nil
}

func (a *StorageAdapter) EmbeddingConfigs(ctx context.Context) ([]EmbeddingConfigRecord, error) {
	configs, err := a.uow.EmbeddingConfigs().List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]EmbeddingConfigRecord, 0, len(configs))
	for _, c := range configs {
		out = append(out, EmbeddingConfigRecord{
			ID:               uuid.UUID(c.ID).String(),
			ProviderID:       c.ProviderID,
			ModelName:        c.ModelName,
			NativeDimension:  c.NativeDimension,
			MatryoshkaDims:   c.MatryoshkaDims,
			HNSWM:            c.HNSW.M,
			HNSWEfConstruct:  c.HNSW.EfConstruction,
			HNSWEfSearch:     c.HNSW.EfSearch,
			ChunkStrategy:    string(c.ChunkStrategy),
			ChunkTokenTarget: c.ChunkTokenTarget,
			ChunkOverlap:     c.ChunkOverlap,
			Distance:         string(c.Distance),
		})
	}
	return out, nil
}

func (a *StorageAdapter) Tags(ctx context.Context) ([]TagRecord, error) {
	counts, err := a.uow.Tags().ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TagRecord, 0, len(counts))
	for _, tc := range counts {
		noteIDs, err := a.uow.Tags().NotesWithTag(ctx, tc.Path)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(noteIDs))
		for i, id := range noteIDs {
			ids[i] = id.String()
		}
		out = append(out, TagRecord{Path: tc.Path, NoteIDs: ids})
	}
	return out, nil
}

func (a *StorageAdapter) Collections(ctx context.Context) ([]CollectionRecord, error) {
	colls, err := a.uow.Collections().List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CollectionRecord, 0, len(colls))
	for _, c := range colls {
		id := uuid.UUID(c.ID)
		noteIDs, err := a.uow.Collections().NoteIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(noteIDs))
		for i, nid := range noteIDs {
			ids[i] = nid.String()
		}
		rec := CollectionRecord{ID: id.String(), Name: c.Name, NoteIDs: ids}
		if c.ParentID != nil {
			rec.ParentID = uuid.UUID(*c.ParentID).String()
		}
		out = append(out, rec)
	}
	return out, nil
}

// Templates always returns empty: see StorageAdapter's doc comment.
func (a *StorageAdapter) Templates(ctx context.Context) ([]TemplateRecord, error) {
	return nil, nil
}

func (a *StorageAdapter) HasNote(ctx context.Context, id string) (bool, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return false, errs.New(errs.KindValidation, "shard.StorageAdapter.HasNote", err)
	}
	_, err = a.uow.Notes().Get(ctx, u)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *StorageAdapter) PutNote(ctx context.Context, rec NoteRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return errs.New(errs.KindValidation, "shard.StorageAdapter.PutNote", err)
	}

	n := &storage.Note{
		Title:        rec.Title,
		Content:      rec.Original.Content,
		Starred:      rec.Starred,
		Archived:     rec.Archived,
		RevisionMode: storage.RevisionMode(rec.RevisionMode),
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
	copy(n.ID[:], id[:])
	if err := a.uow.Notes().Import(ctx, n); err != nil {
		return err
	}

	if err := a.uow.NoteVersions().Import(ctx, &storage.NoteVersion{
		NoteID:    n.ID,
		Version:   rec.Original.Version,
		Track:     storage.TrackOriginal,
		Content:   rec.Original.Content,
		Author:    rec.Original.Author,
		CreatedAt: rec.Original.CreatedAt,
	}); err != nil {
		return err
	}
	if rec.Revised != nil {
		if err := a.uow.NoteVersions().Import(ctx, &storage.NoteVersion{
			NoteID:    n.ID,
			Version:   rec.Revised.Version,
			Track:     storage.TrackRevised,
			Content:   rec.Revised.Content,
			Author:    rec.Revised.Author,
			CreatedAt: rec.Revised.CreatedAt,
		}); err != nil {
			return err
		}
	}

	for _, path := range rec.Tags {
		if err := a.uow.Tags().Attach(ctx, id, path); err != nil {
			return err
		}
	}
	for _, notation := range rec.Concepts {
		conceptID, err := a.uow.Concepts().ResolveNotation(ctx, notation)
		if err != nil {
			continue // concept scheme not part of this shard, leave untagged
		}
		if err := a.uow.Concepts().TagNote(ctx, id, conceptID); err != nil {
			return err
		}
	}
	return nil
}

func (a *StorageAdapter) PutLink(ctx context.Context, rec LinkRecord) error {
	source, err := uuid.Parse(rec.SourceID)
	if err != nil {
		return errs.New(errs.KindValidation, "shard.StorageAdapter.PutLink", err)
	}
	target, err := uuid.Parse(rec.TargetID)
	if err != nil {
		return errs.New(errs.KindValidation, "shard.StorageAdapter.PutLink", err)
	}
	l := &storage.Link{Kind: storage.LinkKind(rec.Kind), Weight: rec.Weight}
	copy(l.SourceID[:], source[:])
	copy(l.TargetID[:], target[:])
	return a.uow.Links().Upsert(ctx, l)
}

func (a *StorageAdapter) PutEmbeddingConfig(ctx context.Context, rec EmbeddingConfigRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return errs.New(errs.KindValidation, "shard.StorageAdapter.PutEmbeddingConfig", err)
	}
	c := &storage.EmbeddingConfig{
		ProviderID:       rec.ProviderID,
		ModelName:        rec.ModelName,
		NativeDimension:  rec.NativeDimension,
		MatryoshkaDims:   rec.MatryoshkaDims,
		HNSW:             storage.HNSWParams{M: rec.HNSWM, EfConstruction: rec.HNSWEfConstruct, EfSearch: rec.HNSWEfSearch},
		ChunkStrategy:    storage.ChunkStrategy(rec.ChunkStrategy),
		ChunkTokenTarget: rec.ChunkTokenTarget,
		ChunkOverlap:     rec.ChunkOverlap,
		Distance:         storage.DistanceMetric(rec.Distance),
	}
	copy(c.ID[:], id[:])
	return a.uow.EmbeddingConfigs().Import(ctx, c)
}

func (a *StorageAdapter) PutEmbeddingSet(ctx context.Context, rec EmbeddingSetRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return errs.New(errs.KindValidation, "shard.StorageAdapter.PutEmbeddingSet", err)
	}
	configID, err := uuid.Parse(rec.EmbeddingConfigID)
	if err != nil {
		return errs.New(errs.KindValidation, "shard.StorageAdapter.PutEmbeddingSet", err)
	}
	collIDs := make([][16]byte, len(rec.CollectionPredicate))
	for i, cid := range rec.CollectionPredicate {
		u, err := uuid.Parse(cid)
		if err != nil {
			return errs.New(errs.KindValidation, "shard.StorageAdapter.PutEmbeddingSet", err)
		}
		collIDs[i] = [16]byte(u)
	}
	s := &storage.EmbeddingSet{
		Name:                rec.Name,
		Type:                storage.EmbeddingSetType(rec.Type),
		TagPredicate:        rec.TagPredicate,
		CollectionPredicate: collIDs,
	}
	copy(s.ID[:], id[:])
	copy(s.EmbeddingConfigID[:], configID[:])
	return a.uow.EmbeddingSets().Import(ctx, s)
}

func (a *StorageAdapter) PutTag(ctx context.Context, rec TagRecord) error {
	for _, idStr := range rec.NoteIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return errs.New(errs.KindValidation, "shard.StorageAdapter.PutTag", err)
		}
		if err := a.uow.Tags().Attach(ctx, id, rec.Path); err != nil {
			return err
		}
	}
	return nil
}

func (a *StorageAdapter) PutCollection(ctx context.Context, rec CollectionRecord) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return errs.New(errs.KindValidation, "shard.StorageAdapter.PutCollection", err)
	}
	c := &storage.Collection{Name: rec.Name}
	copy(c.ID[:], id[:])
	if rec.ParentID != "" {
		p, err := uuid.Parse(rec.ParentID)
		if err != nil {
			return errs.New(errs.KindValidation, "shard.StorageAdapter.PutCollection", err)
		}
		b := [16]byte(p)
		c.ParentID = &b
	}
	if err := a.uow.Collections().Import(ctx, c); err != nil {
		return err
	}
	for _, idStr := range rec.NoteIDs {
		noteID, err := uuid.Parse(idStr)
		if err != nil {
			return errs.New(errs.KindValidation, "shard.StorageAdapter.PutCollection", err)
		}
		if err := a.uow.Collections().AddNote(ctx, id, noteID); err != nil {
			return err
		}
	}
	return nil
}

// PutTemplate is a no-op: see StorageAdapter's doc comment.
func (a *StorageAdapter) PutTemplate(ctx context.Context, rec TemplateRecord) error {
	return nil
}
