package search

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/embedding"
	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// Mode selects which retrieval passes Engine.Search runs.
type Mode string

const (
	ModeFTS      Mode = "fts"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// Filters narrows a search beyond its query text.
type Filters struct {
	RequiredTags   []string
	ExcludedTags   []string
	AnyOfTags      []string
	CollectionID   *uuid.UUID
	UpdatedAfter   *time.Time
	UpdatedBefore  *time.Time
	EmbeddingSetID *uuid.UUID
}

// Request is one Engine.Search call's full input.
type Request struct {
	Query    string
	Mode     Mode
	Language string // explicit language hint; empty lets the engine try every applicable index
	Filters  Filters
	Dedup    DedupMode
	Limit    int
	Offset   int
}

// candidatePoolMultiplier over-fetches per mode before RRF fusion and
// filtering narrow the set down to Limit, so strict filters don't starve
// the final page.
const candidatePoolMultiplier = 4

// Engine orchestrates FTS planning, semantic retrieval, fusion, filtering,
// dedup, and snippet rendering into one ranked Result list.
type Engine struct {
	Chunks                     *storage.ChunkRepo
	Tags                       *storage.TagRepo
	EmbeddingSets              *storage.EmbeddingSetRepo
	EmbeddingConfigs           *storage.EmbeddingConfigRepo
	Retriever                  *embedding.Retriever
	MinSemanticSimilarityNoFTS float64 // config fts.min_semantic_similarity_no_fts, default 0.55
}

// Search runs req against the configured repositories and returns ranked,
// deduplicated, snippet-rendered results. An empty query (after parsing)
// returns an empty result set, never an error — the parser and this
// function both treat malformed queries as degenerate input rather than
// a failure.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeHybrid
	}

	parsed := ParseQuery(req.Query)
	if parsed.Empty() {
		return nil, nil
	}

	excludeNotes, err := e.excludedByTags(ctx, req.Filters)
	if err != nil {
		return nil, err
	}

	poolSize := req.Limit * candidatePoolMultiplier

	var ftsHits []RankedHit
	if mode == ModeFTS || mode == ModeHybrid {
		ftsHits, err = e.runFTS(ctx, parsed, req.Language, poolSize, excludeNotes)
		if err != nil {
			return nil, err
		}
	}

	var semanticHits []RankedHit
	if mode == ModeSemantic || mode == ModeHybrid {
		semanticHits, err = e.runSemantic(ctx, req, poolSize, excludeNotes)
		if err != nil {
			return nil, err
		}
	}

	fused := FuseRRF(ftsHits, semanticHits, DefaultRRFK)
	fused = e.applyTagFilters(ctx, fused, req.Filters)
	fused = applyLimitOffset(fused, req.Limit, req.Offset)

	return Dedup(ctx, fused, req.Dedup, e.Chunks)
}

func (e *Engine) runFTS(ctx context.Context, parsed *Query, languageHint string, poolSize int, exclude []uuid.UUID) ([]RankedHit, error) {
	if parsed.Empty() {
		return nil, nil
	}
	tsQuery := Render(parsed)
	if tsQuery == "" {
		return nil, nil
	}

	families := []LanguageFamily{FamilyLatin, FamilyTrigram}
	if languageHint != "" {
		families = []LanguageFamily{DetectFamily(languageHint)}
	}

	var hits []RankedHit
	seen := make(map[uuid.UUID]bool)
	merge := func(results []storage.FTSResult) {
		for _, r := range results {
			if seen[r.ChunkID] {
				continue
			}
			seen[r.ChunkID] = true
			hits = append(hits, RankedHit{ChunkID: r.ChunkID, NoteID: r.NoteID, Score: r.Rank, Content: r.Content})
		}
	}

	for _, fam := range families {
		if fam == FamilyTrigram {
			results, err := e.Chunks.SearchTrigram(ctx, parsed.PlainText(), poolSize, exclude)
			if err != nil {
				return nil, err
			}
			merge(results)
			continue
		}
		results, err := e.Chunks.SearchFTS(ctx, fam.TSConfig(), tsQuery, poolSize, exclude)
		if err != nil {
			return nil, err
		}
		merge(results)
	}
	return hits, nil
}

func (e *Engine) runSemantic(ctx context.Context, req Request, poolSize int, exclude []uuid.UUID) ([]RankedHit, error) {
	if e.Retriever == nil || e.EmbeddingSets == nil || e.EmbeddingConfigs == nil {
		return nil, nil
	}

	var setID uuid.UUID
	if req.Filters.EmbeddingSetID != nil {
		setID = *req.Filters.EmbeddingSetID
	} else {
		set, err := e.EmbeddingSets.ByName(ctx, "default")
		if err != nil {
			if errs.NotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		setID = uuid.UUID(set.ID)
	}

	set, err := e.EmbeddingSets.Get(ctx, setID)
	if err != nil {
		if errs.NotFound(err) {
			return nil, errs.New(errs.KindValidation, "search.Engine.Search", errUnknownEmbeddingSet{setID})
		}
		return nil, err
	}
	cfg, err := e.EmbeddingConfigs.Get(ctx, uuid.UUID(set.EmbeddingConfigID))
	if err != nil {
		return nil, err
	}

	results, err := e.Retriever.Search(ctx, cfg, setID, req.Query, poolSize, exclude)
	if err != nil {
		return nil, err
	}

	hits := make([]RankedHit, 0, len(results))
	for _, r := range results {
		if req.Mode == ModeFTS {
			continue
		}
		if req.Mode != ModeHybrid && r.Similarity < e.semanticFloor() {
			continue
		}
		hits = append(hits, RankedHit{ChunkID: r.ChunkID, NoteID: r.NoteID, Score: r.Similarity})
	}
	return hits, nil
}

func (e *Engine) semanticFloor() float64 {
	if e.MinSemanticSimilarityNoFTS > 0 {
		return e.MinSemanticSimilarityNoFTS
	}
	return 0.55
}

func (e *Engine) excludedByTags(ctx context.Context, f Filters) ([]uuid.UUID, error) {
	if e.Tags == nil || len(f.ExcludedTags) == 0 {
		return nil, nil
	}
	var excluded []uuid.UUID
	for _, path := range f.ExcludedTags {
		ids, err := e.Tags.NotesWithTag(ctx, path)
		if err != nil {
			return nil, err
		}
		excluded = append(excluded, ids...)
	}
	return excluded, nil
}

// applyTagFilters enforces RequiredTags (strict AND) and AnyOfTags (OR)
// post-fusion, since tag membership does not vary by retrieval mode.
func (e *Engine) applyTagFilters(ctx context.Context, fused []FusedHit, f Filters) []FusedHit {
	if e.Tags == nil || (len(f.RequiredTags) == 0 && len(f.AnyOfTags) == 0) {
		return fused
	}

	requiredSets := make([]map[uuid.UUID]bool, len(f.RequiredTags))
	for i, path := range f.RequiredTags {
		ids, err := e.Tags.NotesWithTag(ctx, path)
		if err != nil {
			return fused
		}
		set := make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		requiredSets[i] = set
	}

	var anyOfSet map[uuid.UUID]bool
	if len(f.AnyOfTags) > 0 {
		anyOfSet = make(map[uuid.UUID]bool)
		for _, path := range f.AnyOfTags {
			ids, err := e.Tags.NotesWithTag(ctx, path)
			if err != nil {
				continue
			}
			for _, id := range ids {
				anyOfSet[id] = true
			}
		}
	}

	out := make([]FusedHit, 0, len(fused))
	for _, h := range fused {
		ok := true
		for _, set := range requiredSets {
			if !set[h.NoteID] {
				ok = false
				break
			}
		}
		if ok && anyOfSet != nil && !anyOfSet[h.NoteID] {
			ok = false
		}
		if ok {
			out = append(out, h)
		}
	}
	return out
}

func applyLimitOffset(fused []FusedHit, limit, offset int) []FusedHit {
	if offset >= len(fused) {
		return nil
	}
	end := offset + limit
	if end > len(fused) {
		end = len(fused)
	}
	return fused[offset:end]
}

type errUnknownEmbeddingSet struct{ id uuid.UUID }

func (e errUnknownEmbeddingSet) Error() string { return "search: unknown embedding set " + e.id.String() }
