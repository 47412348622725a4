package search

import (
	"sort"

	"github.com/google/uuid"
)

// RankedHit is one candidate result from a single retrieval mode (FTS or
// semantic), before fusion.
type RankedHit struct {
	ChunkID uuid.UUID
	NoteID  uuid.UUID
	Score   float64 // raw mode-native score (ts_rank or cosine similarity)
	Content string
}

// FusedHit is one result after RRF combines its contributions across
// modes.
type FusedHit struct {
	ChunkID      uuid.UUID
	NoteID       uuid.UUID
	RRFScore     float64
	FTSScore     float64 // 0 if FTS did not return this chunk
	SemanticScore float64 // 0 if semantic did not return this chunk
	Content      string
	FromFTS      bool
	FromSemantic bool
}

// DefaultRRFK is the default RRF damping constant.
const DefaultRRFK = 60

// FuseRRF combines fts and semantic rankings by reciprocal rank fusion:
// each hit's contribution from a mode is 1/(k+rank), rank being its
// 1-based position within that mode's own results; contributions sum
// across modes. Ties are broken by raw FTS score, then raw semantic
// score.
func FuseRRF(fts, semantic []RankedHit, k int) []FusedHit {
	if k <= 0 {
		k = DefaultRRFK
	}
	byChunk := make(map[uuid.UUID]*FusedHit)

	order := func(hits []RankedHit) []RankedHit {
		sorted := append([]RankedHit(nil), hits...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
		return sorted
	}

	for rank, hit := range order(fts) {
		f := byChunk[hit.ChunkID]
		if f == nil {
			f = &FusedHit{ChunkID: hit.ChunkID, NoteID: hit.NoteID, Content: hit.Content}
			byChunk[hit.ChunkID] = f
		}
		f.RRFScore += 1.0 / float64(k+rank+1)
		f.FTSScore = hit.Score
		f.FromFTS = true
	}
	for rank, hit := range order(semantic) {
		f := byChunk[hit.ChunkID]
		if f == nil {
			f = &FusedHit{ChunkID: hit.ChunkID, NoteID: hit.NoteID, Content: hit.Content}
			byChunk[hit.ChunkID] = f
		}
		f.RRFScore += 1.0 / float64(k+rank+1)
		f.SemanticScore = hit.Score
		f.FromSemantic = true
	}

	out := make([]FusedHit, 0, len(byChunk))
	for _, f := range byChunk {
		out = append(out, *f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		if out[i].FTSScore != out[j].FTSScore {
			return out[i].FTSScore > out[j].FTSScore
		}
		return out[i].SemanticScore > out[j].SemanticScore
	})
	return out
}
