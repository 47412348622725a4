package taxonomy

import (
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// inverseOf maps a relation kind to the kind its auto-created inverse row
// carries. related and exactMatch are their own inverse.
func inverseOf(kind storage.ConceptRelationKind) storage.ConceptRelationKind {
	switch kind {
	case storage.RelationBroader:
		return storage.RelationNarrower
	case storage.RelationNarrower:
		return storage.RelationBroader
	default:
		return kind
	}
}

// PutRelation creates rel and its mandatory inverse in
// the same call: broader auto-inserts narrower, narrower auto-inserts
// broader, related inserts both directions (it is its own inverse
// kind but still needs the reverse (to, from) row). exactMatch behaves
// like related: symmetric, both directions stored. Callers must invoke
// this inside a storage.UnitOfWork so both rows commit atomically.
func PutRelation(ctx context.Context, concepts *storage.ConceptRepo, rel storage.ConceptRelation) error {
	if rel.FromConceptID == rel.ToConceptID {
		return errs.New(errs.KindValidation, "taxonomy.PutRelation", errSelfRelation{})
	}
	if err := concepts.PutRelation(ctx, rel); err != nil {
		return err
	}
	inverse := storage.ConceptRelation{
		FromConceptID: rel.ToConceptID,
		ToConceptID:   rel.FromConceptID,
		Kind:          inverseOf(rel.Kind),
	}
	return concepts.PutRelation(ctx, inverse)
}

// DeleteRelation removes rel and its inverse atomically, so a broader/
// narrower or related pair is never left half-deleted.
func DeleteRelation(ctx context.Context, concepts *storage.ConceptRepo, rel storage.ConceptRelation) error {
	if err := concepts.DeleteRelation(ctx, rel); err != nil {
		return err
	}
	inverse := storage.ConceptRelation{
		FromConceptID: rel.ToConceptID,
		ToConceptID:   rel.FromConceptID,
		Kind:          inverseOf(rel.Kind),
	}
	return concepts.DeleteRelation(ctx, inverse)
}

// Resolve looks up a raw input string against a concept's labels in
// preferred -> alternate -> hidden -> notation order.
func Resolve(ctx context.Context, concepts *storage.ConceptRepo, text string) (uuid.UUID, error) {
	id, _, err := concepts.FindByLabel(ctx, text)
	if err == nil {
		return id, nil
	}
	if !errs.NotFound(err) {
		return uuid.Nil, err
	}
	return concepts.ResolveNotation(ctx, text)
}

// PutPreferredLabel sets a concept's preferred label for a language,
// surfacing the unique-per-(concept,language) constraint violation as a
// Conflict so callers can decide whether to replace the existing one.
func PutPreferredLabel(ctx context.Context, concepts *storage.ConceptRepo, conceptID uuid.UUID, language, text string) error {
	return concepts.PutLabel(ctx, storage.ConceptLabel{
		ConceptID: [16]byte(conceptID),
		Type:      storage.LabelPreferred,
		Language:  language,
		Text:      text,
	})
}

type errSelfRelation struct{}

func (errSelfRelation) Error() string { return "taxonomy: a concept cannot relate to itself" }
