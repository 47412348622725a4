package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// EmbeddingSetRepo persists EmbeddingSet rows: the scoping mechanism that
// decides which notes get embedded under which config, and whether the set
// owns its own vectors ("full") or filters the default set's ("filter").
type EmbeddingSetRepo struct{ q querier }

// Create inserts a new embedding set.
func (r *EmbeddingSetRepo) Create(ctx context.Context, s *EmbeddingSet) error {
	id := uuid.New()
	configID := uuid.UUID(s.EmbeddingConfigID)
	collIDs := make([]uuid.UUID, len(s.CollectionPredicate))
	for i, c := range s.CollectionPredicate {
		collIDs[i] = uuid.UUID(c)
	}
	_, err := r.q.Exec(ctx, `
INSERT INTO embedding_sets (id, name, set_type, embedding_config_id,
	auto_on_create, auto_on_update, auto_on_delete, auto_batch_size, auto_priority, auto_schedule,
	tag_predicate, collection_predicate)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		id, s.Name, string(s.Type), configID,
		s.AutoEmbed.OnCreate, s.AutoEmbed.OnUpdate, s.AutoEmbed.OnDelete, s.AutoEmbed.BatchSize,
		s.AutoEmbed.Priority, s.AutoEmbed.Schedule, s.TagPredicate, collIDs)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingSetRepo.Create", err)
	}
	copy(s.ID[:], id[:])
	return nil
}

// Import upserts an embedding set under its own already-assigned ID and
// config reference, leaving an existing row untouched on conflict (its
// name is unique, so a second import of the same shard is a no-op rather
// than a duplicate-name error).
func (r *EmbeddingSetRepo) Import(ctx context.Context, s *EmbeddingSet) error {
	id := uuid.UUID(s.ID)
	configID := uuid.UUID(s.EmbeddingConfigID)
	collIDs := make([]uuid.UUID, len(s.CollectionPredicate))
	for i, c := range s.CollectionPredicate {
		collIDs[i] = uuid.UUID(c)
	}
	_, err := r.q.Exec(ctx, `
INSERT INTO embedding_sets (id, name, set_type, embedding_config_id,
	auto_on_create, auto_on_update, auto_on_delete, auto_batch_size, auto_priority, auto_schedule,
	tag_predicate, collection_predicate)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (name) DO NOTHING`,
		id, s.Name, string(s.Type), configID,
		s.AutoEmbed.OnCreate, s.AutoEmbed.OnUpdate, s.AutoEmbed.OnDelete, s.AutoEmbed.BatchSize,
		s.AutoEmbed.Priority, s.AutoEmbed.Schedule, s.TagPredicate, collIDs)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.EmbeddingSetRepo.Import", err)
	}
	return nil
}

// Get returns an embedding set by id.
func (r *EmbeddingSetRepo) Get(ctx context.Context, id uuid.UUID) (*EmbeddingSet, error) {
	row := r.q.QueryRow(ctx, embeddingSetSelect+" WHERE id = $1", id)
	s, err := scanEmbeddingSet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.EmbeddingSetRepo.Get", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingSetRepo.Get", err)
	}
	return s, nil
}

// ByName returns an embedding set by its unique name.
func (r *EmbeddingSetRepo) ByName(ctx context.Context, name string) (*EmbeddingSet, error) {
	row := r.q.QueryRow(ctx, embeddingSetSelect+" WHERE name = $1", name)
	s, err := scanEmbeddingSet(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.EmbeddingSetRepo.ByName", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingSetRepo.ByName", err)
	}
	return s, nil
}

// List returns every embedding set.
func (r *EmbeddingSetRepo) List(ctx context.Context) ([]*EmbeddingSet, error) {
	rows, err := r.q.Query(ctx, embeddingSetSelect)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.EmbeddingSetRepo.List", err)
	}
	defer rows.Close()

	var out []*EmbeddingSet
	for rows.Next() {
		s, err := scanEmbeddingSet(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.EmbeddingSetRepo.List", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const embeddingSetSelect = `
SELECT id, name, set_type, embedding_config_id, auto_on_create, auto_on_update, auto_on_delete,
	auto_batch_size, auto_priority, auto_schedule, tag_predicate, collection_predicate
FROM embedding_sets`

func scanEmbeddingSet(row rowScanner) (*EmbeddingSet, error) {
	var (
		id, configID       uuid.UUID
		name, setType      string
		onDelete, schedule string
		onCreate, onUpdate bool
		batchSize, prio    int
		tagPred            []string
		collPred           []uuid.UUID
	)
	if err := row.Scan(&id, &name, &setType, &configID, &onCreate, &onUpdate, &onDelete,
		&batchSize, &prio, &schedule, &tagPred, &collPred); err != nil {
		return nil, err
	}
	s := &EmbeddingSet{
		Name: name,
		Type: EmbeddingSetType(setType),
		AutoEmbed: AutoEmbedPolicy{
			OnCreate: onCreate, OnUpdate: onUpdate, OnDelete: onDelete,
			BatchSize: batchSize, Priority: prio, Schedule: schedule,
		},
		TagPredicate: tagPred,
	}
	copy(s.ID[:], id[:])
	copy(s.EmbeddingConfigID[:], configID[:])
	s.CollectionPredicate = make([][16]byte, len(collPred))
	for i, c := range collPred {
		copy(s.CollectionPredicate[i][:], c[:])
	}
	return s, nil
}
