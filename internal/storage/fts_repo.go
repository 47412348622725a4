package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// FTSResult is one lexical search hit.
type FTSResult struct {
	ChunkID uuid.UUID
	NoteID  uuid.UUID
	Content string
	Rank    float64
}

// SearchFTS runs a tsquery against chunks.tsv_simple or tsv_english
// (selected by tsConfig, either "simple" or "english") for the
// per-language-family lexical index. tsQuery is a Postgres tsquery
// expression string, already built by search.ParseQuery/search.Render.
func (r *ChunkRepo) SearchFTS(ctx context.Context, tsConfig, tsQuery string, limit int, exclude []uuid.UUID) ([]FTSResult, error) {
	column := "tsv_simple"
	if tsConfig == "english" {
		column = "tsv_english"
	}
	sql := `
SELECT c.id, c.note_id, c.content, ts_rank(c.` + column + `, to_tsquery('` + tsConfig + `', $1)) AS rank
FROM chunks c
JOIN notes n ON n.id = c.note_id
WHERE c.` + column + ` @@ to_tsquery('` + tsConfig + `', $1)
	AND n.deleted_at IS NULL AND NOT (c.note_id = ANY($2))
ORDER BY rank DESC
LIMIT $3`
	rows, err := r.q.Query(ctx, sql, tsQuery, uuidSlice(exclude), limit)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.SearchFTS", err)
	}
	defer rows.Close()

	var out []FTSResult
	for rows.Next() {
		var res FTSResult
		if err := rows.Scan(&res.ChunkID, &res.NoteID, &res.Content, &res.Rank); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.SearchFTS", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// SearchTrigram runs a pg_trgm similarity scan over chunk content, used as
// the accent-folding/emoji/unusual-character fallback when a tsquery
// analyzer configuration is a poor fit for the query text.
func (r *ChunkRepo) SearchTrigram(ctx context.Context, queryText string, limit int, exclude []uuid.UUID) ([]FTSResult, error) {
	rows, err := r.q.Query(ctx, `
SELECT c.id, c.note_id, c.content, similarity(c.content, $1) AS rank
FROM chunks c
JOIN notes n ON n.id = c.note_id
WHERE c.content % $1 AND n.deleted_at IS NULL AND NOT (c.note_id = ANY($2))
ORDER BY rank DESC
LIMIT $3`, queryText, uuidSlice(exclude), limit)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.SearchTrigram", err)
	}
	defer rows.Close()

	var out []FTSResult
	for rows.Next() {
		var res FTSResult
		if err := rows.Scan(&res.ChunkID, &res.NoteID, &res.Content, &res.Rank); err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ChunkRepo.SearchTrigram", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
