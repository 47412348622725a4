package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// LinkRepo persists typed directed edges between notes. Semantic links are
// always written as a bidirectional pair by internal/linker; manual links
// may be single-direction.
type LinkRepo struct{ q querier }

// Upsert inserts or updates the weight of one directed edge.
func (r *LinkRepo) Upsert(ctx context.Context, l *Link) error {
	source, target := uuid.UUID(l.SourceID), uuid.UUID(l.TargetID)
	_, err := r.q.Exec(ctx, `
INSERT INTO links (source_id, target_id, kind, weight, created_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (source_id, target_id, kind) DO UPDATE SET weight = EXCLUDED.weight`,
		source, target, string(l.Kind), l.Weight)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.LinkRepo.Upsert", err)
	}
	return nil
}

// Delete removes one directed edge.
func (r *LinkRepo) Delete(ctx context.Context, sourceID, targetID uuid.UUID, kind LinkKind) error {
	_, err := r.q.Exec(ctx, `DELETE FROM links WHERE source_id = $1 AND target_id = $2 AND kind = $3`, sourceID, targetID, string(kind))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.LinkRepo.Delete", err)
	}
	return nil
}

// DeleteAllForNote removes every edge of kind touching noteID (either direction),
// used when cascading a soft-delete's semantic links.
func (r *LinkRepo) DeleteAllForNote(ctx context.Context, noteID uuid.UUID, kind LinkKind) error {
	_, err := r.q.Exec(ctx, `DELETE FROM links WHERE (source_id = $1 OR target_id = $1) AND kind = $2`, noteID, string(kind))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.LinkRepo.DeleteAllForNote", err)
	}
	return nil
}

// OutgoingFrom returns every edge of kind originating at noteID, used by
// graph traversal. An empty kind matches all kinds.
func (r *LinkRepo) OutgoingFrom(ctx context.Context, noteID uuid.UUID, kind LinkKind) ([]*Link, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if kind == "" {
		rows, err = r.q.Query(ctx, `SELECT source_id, target_id, kind, weight, created_at FROM links WHERE source_id = $1`, noteID)
	} else {
		rows, err = r.q.Query(ctx, `SELECT source_id, target_id, kind, weight, created_at FROM links WHERE source_id = $1 AND kind = $2`, noteID, string(kind))
	}
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.LinkRepo.OutgoingFrom", err)
	}
	defer rows.Close()

	var out []*Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.LinkRepo.OutgoingFrom", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLink(row rowScanner) (*Link, error) {
	var (
		source, target uuid.UUID
		kind           string
		weight         float64
		createdAt      time.Time
	)
	if err := row.Scan(&source, &target, &kind, &weight, &createdAt); err != nil {
		return nil, err
	}
	l := &Link{Kind: LinkKind(kind), Weight: weight, CreatedAt: createdAt}
	copy(l.SourceID[:], source[:])
	copy(l.TargetID[:], target[:])
	return l, nil
}
