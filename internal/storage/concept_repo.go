package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// ConceptRepo persists SKOS ConceptScheme, Concept, ConceptLabel, and
// ConceptRelation rows. Inverse-relation bookkeeping (broader/narrower,
// symmetric related) lives in internal/taxonomy, which calls this repo's
// plain single-row CRUD for both sides of an inverse pair inside one
// UnitOfWork.
type ConceptRepo struct{ q querier }

// CreateScheme inserts a new concept scheme.
func (r *ConceptRepo) CreateScheme(ctx context.Context, s *ConceptScheme) error {
	id := uuid.New()
	if _, err := r.q.Exec(ctx, `INSERT INTO concept_schemes (id, name) VALUES ($1, $2)`, id, s.Name); err != nil {
		return errs.New(errs.KindInternal, "storage.ConceptRepo.CreateScheme", err)
	}
	copy(s.ID[:], id[:])
	return nil
}

// GetScheme returns a scheme by id.
func (r *ConceptRepo) GetScheme(ctx context.Context, id uuid.UUID) (*ConceptScheme, error) {
	var s ConceptScheme
	var rowID uuid.UUID
	err := r.q.QueryRow(ctx, `SELECT id, name FROM concept_schemes WHERE id = $1`, id).Scan(&rowID, &s.Name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.ConceptRepo.GetScheme", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.GetScheme", err)
	}
	copy(s.ID[:], rowID[:])
	return &s, nil
}

// CreateConcept inserts a new concept under a scheme.
func (r *ConceptRepo) CreateConcept(ctx context.Context, c *Concept) error {
	id := uuid.New()
	schemeID := uuid.UUID(c.SchemeID)
	if _, err := r.q.Exec(ctx, `INSERT INTO concepts (id, scheme_id, notation) VALUES ($1, $2, $3)`, id, schemeID, c.Notation); err != nil {
		return errs.New(errs.KindInternal, "storage.ConceptRepo.CreateConcept", err)
	}
	copy(c.ID[:], id[:])
	return nil
}

// GetConcept returns a concept by id.
func (r *ConceptRepo) GetConcept(ctx context.Context, id uuid.UUID) (*Concept, error) {
	var (
		rowID, schemeID uuid.UUID
		notation        string
	)
	err := r.q.QueryRow(ctx, `SELECT id, scheme_id, notation FROM concepts WHERE id = $1`, id).Scan(&rowID, &schemeID, &notation)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "storage.ConceptRepo.GetConcept", err)
		}
		return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.GetConcept", err)
	}
	c := &Concept{Notation: notation}
	copy(c.ID[:], rowID[:])
	copy(c.SchemeID[:], schemeID[:])
	return c, nil
}

// PutLabel inserts or replaces a (concept, type, language) label. Preferred
// labels are constrained unique per (concept, language) by the schema; a
// conflict there surfaces as KindConflict so internal/taxonomy can decide
// whether to replace or reject.
func (r *ConceptRepo) PutLabel(ctx context.Context, l ConceptLabel) error {
	conceptID := uuid.UUID(l.ConceptID)
	_, err := r.q.Exec(ctx, `
INSERT INTO concept_labels (concept_id, label_type, language, text) VALUES ($1, $2, $3, $4)
ON CONFLICT (concept_id, label_type, language, text) DO NOTHING`,
		conceptID, string(l.Type), l.Language, l.Text)
	if err != nil {
		return errs.New(errs.KindConflict, "storage.ConceptRepo.PutLabel", err)
	}
	return nil
}

// LabelsForConcept returns every label attached to conceptID.
func (r *ConceptRepo) LabelsForConcept(ctx context.Context, conceptID uuid.UUID) ([]ConceptLabel, error) {
	rows, err := r.q.Query(ctx, `SELECT concept_id, label_type, language, text FROM concept_labels WHERE concept_id = $1`, conceptID)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.LabelsForConcept", err)
	}
	defer rows.Close()

	var out []ConceptLabel
	for rows.Next() {
		var (
			cid            uuid.UUID
			ltype, lang, t string
		)
		if err := rows.Scan(&cid, &ltype, &lang, &t); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.LabelsForConcept", err)
		}
		l := ConceptLabel{Type: LabelType(ltype), Language: lang, Text: t}
		copy(l.ConceptID[:], cid[:])
		out = append(out, l)
	}
	return out, rows.Err()
}

// FindByLabel resolves a raw input string to a concept id by scanning
// labels in preferred -> alternate -> hidden order (notation is checked
// separately by ResolveNotation). Returns NotFound if no label matches.
func (r *ConceptRepo) FindByLabel(ctx context.Context, text string) (uuid.UUID, LabelType, error) {
	for _, t := range []LabelType{LabelPreferred, LabelAlternate, LabelHidden} {
		var id uuid.UUID
		err := r.q.QueryRow(ctx, `SELECT concept_id FROM concept_labels WHERE label_type = $1 AND text = $2 LIMIT 1`, string(t), text).Scan(&id)
		if err == nil {
			return id, t, nil
		}
		if err != pgx.ErrNoRows {
			return uuid.Nil, "", errs.New(errs.KindInternal, "storage.ConceptRepo.FindByLabel", err)
		}
	}
	return uuid.Nil, "", errs.New(errs.KindNotFound, "storage.ConceptRepo.FindByLabel", pgx.ErrNoRows)
}

// ResolveNotation finds a concept by its notation code, the last step in
// the preferred->alternate->hidden->notation resolution order.
func (r *ConceptRepo) ResolveNotation(ctx context.Context, notation string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.q.QueryRow(ctx, `SELECT id FROM concepts WHERE notation = $1 LIMIT 1`, notation).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, errs.New(errs.KindNotFound, "storage.ConceptRepo.ResolveNotation", err)
		}
		return uuid.Nil, errs.New(errs.KindInternal, "storage.ConceptRepo.ResolveNotation", err)
	}
	return id, nil
}

// PutRelation inserts one directed typed relation row. Callers establishing
// broader/narrower or related pairs call this twice (once per direction)
// within the same UnitOfWork.
func (r *ConceptRepo) PutRelation(ctx context.Context, rel ConceptRelation) error {
	from := uuid.UUID(rel.FromConceptID)
	to := uuid.UUID(rel.ToConceptID)
	_, err := r.q.Exec(ctx, `
INSERT INTO concept_relations (from_concept_id, to_concept_id, kind) VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`, from, to, string(rel.Kind))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.ConceptRepo.PutRelation", err)
	}
	return nil
}

// DeleteRelation removes one directed typed relation row.
func (r *ConceptRepo) DeleteRelation(ctx context.Context, rel ConceptRelation) error {
	from := uuid.UUID(rel.FromConceptID)
	to := uuid.UUID(rel.ToConceptID)
	_, err := r.q.Exec(ctx, `DELETE FROM concept_relations WHERE from_concept_id = $1 AND to_concept_id = $2 AND kind = $3`,
		from, to, string(rel.Kind))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.ConceptRepo.DeleteRelation", err)
	}
	return nil
}

// RelationsFrom lists every relation originating at conceptID.
func (r *ConceptRepo) RelationsFrom(ctx context.Context, conceptID uuid.UUID) ([]ConceptRelation, error) {
	rows, err := r.q.Query(ctx, `SELECT from_concept_id, to_concept_id, kind FROM concept_relations WHERE from_concept_id = $1`, conceptID)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.RelationsFrom", err)
	}
	defer rows.Close()

	var out []ConceptRelation
	for rows.Next() {
		var (
			from, to uuid.UUID
			kind     string
		)
		if err := rows.Scan(&from, &to, &kind); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.RelationsFrom", err)
		}
		rel := ConceptRelation{Kind: ConceptRelationKind(kind)}
		copy(rel.FromConceptID[:], from[:])
		copy(rel.ToConceptID[:], to[:])
		out = append(out, rel)
	}
	return out, rows.Err()
}

// TagNote associates noteID with conceptID (the note-concept edge used by
// concept-tagging jobs and strict concept filters).
func (r *ConceptRepo) TagNote(ctx context.Context, noteID, conceptID uuid.UUID) error {
	_, err := r.q.Exec(ctx, `INSERT INTO note_concepts (note_id, concept_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, noteID, conceptID)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.ConceptRepo.TagNote", err)
	}
	return nil
}

// ConceptsForNote lists every concept id attached to noteID.
func (r *ConceptRepo) ConceptsForNote(ctx context.Context, noteID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT concept_id FROM note_concepts WHERE note_id = $1`, noteID)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.ConceptsForNote", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ConceptRepo.ConceptsForNote", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
