package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// ArchiveRepo tracks which archive (schema) names have been provisioned.
// Unlike every other repository, it always operates against the "public"
// schema's registry table regardless of request-scoped search_path, since
// an archive must be discoverable before its own schema exists.
type ArchiveRepo struct{ q querier }

const ensureArchiveRegistry = `
CREATE TABLE IF NOT EXISTS public.archive_registry (
	name TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Register records that name has been provisioned. Idempotent.
func (r *ArchiveRepo) Register(ctx context.Context, name string) error {
	if _, err := r.q.Exec(ctx, ensureArchiveRegistry); err != nil {
		return errs.New(errs.KindInternal, "storage.ArchiveRepo.Register", err)
	}
	_, err := r.q.Exec(ctx, `INSERT INTO public.archive_registry (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.ArchiveRepo.Register", err)
	}
	return nil
}

// Exists reports whether name has been registered.
func (r *ArchiveRepo) Exists(ctx context.Context, name string) (bool, error) {
	if _, err := r.q.Exec(ctx, ensureArchiveRegistry); err != nil {
		return false, errs.New(errs.KindInternal, "storage.ArchiveRepo.Exists", err)
	}
	var found string
	err := r.q.QueryRow(ctx, `SELECT name FROM public.archive_registry WHERE name = $1`, name).Scan(&found)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, errs.New(errs.KindInternal, "storage.ArchiveRepo.Exists", err)
	}
	return true, nil
}

// List returns every registered archive name.
func (r *ArchiveRepo) List(ctx context.Context) ([]string, error) {
	if _, err := r.q.Exec(ctx, ensureArchiveRegistry); err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ArchiveRepo.List", err)
	}
	rows, err := r.q.Query(ctx, `SELECT name FROM public.archive_registry ORDER BY name`)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ArchiveRepo.List", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ArchiveRepo.List", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
