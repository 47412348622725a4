package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
)

// ProvenanceRepo persists ProvenanceEvent rows: temporal ranges and spatial
// points. Points are encoded as WKT text through PostGIS's ST_GeogFromText
// / ST_X / ST_Y functions — no Go PostGIS binding is used.
type ProvenanceRepo struct{ q querier }

// Create inserts a new provenance event.
func (r *ProvenanceRepo) Create(ctx context.Context, e *ProvenanceEvent) error {
	id := uuid.New()
	var noteID, attachmentID *uuid.UUID
	if e.NoteID != nil {
		u := uuid.UUID(*e.NoteID)
		noteID = &u
	}
	if e.AttachmentID != nil {
		u := uuid.UUID(*e.AttachmentID)
		attachmentID = &u
	}
	raw, err := json.Marshal(rawMetadataOrEmpty(e.RawMetadata))
	if err != nil {
		return errs.New(errs.KindInternal, "storage.ProvenanceRepo.Create", err)
	}

	var locationWKT *string
	if e.Location != nil {
		s := fmt.Sprintf("POINT(%f %f)", e.Location.Lon, e.Location.Lat)
		locationWKT = &s
	}
	var namedLocationID *uuid.UUID
	if e.NamedLocationID != nil {
		u := uuid.UUID(*e.NamedLocationID)
		namedLocationID = &u
	}

	_, err = r.q.Exec(ctx, `
INSERT INTO provenance_events (id, note_id, attachment_id, time_start, time_end,
	location, named_location_id, source, confidence, user_corrected, raw_metadata)
VALUES ($1,$2,$3,$4,$5, ST_GeogFromText($6), $7,$8,$9,$10,$11)`,
		id, noteID, attachmentID, e.Start, e.End,
		locationWKT, namedLocationID, string(e.Source), e.Confidence, e.UserCorrected, raw)
	if err != nil {
		return errs.New(errs.KindInternal, "storage.ProvenanceRepo.Create", err)
	}
	copy(e.ID[:], id[:])
	return nil
}

// ForNote lists every provenance event attached to noteID.
func (r *ProvenanceRepo) ForNote(ctx context.Context, noteID uuid.UUID) ([]*ProvenanceEvent, error) {
	rows, err := r.q.Query(ctx, `
SELECT id, note_id, attachment_id, time_start, time_end,
	ST_X(location::geometry), ST_Y(location::geometry), named_location_id, source, confidence, user_corrected, raw_metadata
FROM provenance_events WHERE note_id = $1 ORDER BY time_start`, noteID)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ProvenanceRepo.ForNote", err)
	}
	defer rows.Close()

	var out []*ProvenanceEvent
	for rows.Next() {
		e, err := scanProvenance(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ProvenanceRepo.ForNote", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WithinRadius returns events whose location is within radiusMeters of
// (lat, lon), ordered nearest-first, using the GIST geography index.
func (r *ProvenanceRepo) WithinRadius(ctx context.Context, lat, lon, radiusMeters float64) ([]*ProvenanceEvent, error) {
	point := fmt.Sprintf("POINT(%f %f)", lon, lat)
	rows, err := r.q.Query(ctx, `
SELECT id, note_id, attachment_id, time_start, time_end,
	ST_X(location::geometry), ST_Y(location::geometry), named_location_id, source, confidence, user_corrected, raw_metadata
FROM provenance_events
WHERE ST_DWithin(location, ST_GeogFromText($1), $2)
ORDER BY location <-> ST_GeogFromText($1)`, point, radiusMeters)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "storage.ProvenanceRepo.WithinRadius", err)
	}
	defer rows.Close()

	var out []*ProvenanceEvent
	for rows.Next() {
		e, err := scanProvenance(rows)
		if err != nil {
			return nil, errs.New(errs.KindInternal, "storage.ProvenanceRepo.WithinRadius", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func rawMetadataOrEmpty(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("{}")
	}
	return json.RawMessage(b)
}

func scanProvenance(row rowScanner) (*ProvenanceEvent, error) {
	var (
		id                    uuid.UUID
		noteID, attachmentID  *uuid.UUID
		start, end            time.Time
		lon, lat              *float64
		namedLocationID       *uuid.UUID
		source                string
		confidence            float64
		userCorrected         bool
		raw                   []byte
	)
	if err := row.Scan(&id, &noteID, &attachmentID, &start, &end, &lon, &lat, &namedLocationID, &source, &confidence, &userCorrected, &raw); err != nil {
		return nil, err
	}
	e := &ProvenanceEvent{
		Start:         start,
		End:           end,
		Source:        ProvenanceSource(source),
		Confidence:    confidence,
		UserCorrected: userCorrected,
		RawMetadata:   raw,
	}
	copy(e.ID[:], id[:])
	if noteID != nil {
		var b [16]byte
		copy(b[:], noteID[:])
		e.NoteID = &b
	}
	if attachmentID != nil {
		var b [16]byte
		copy(b[:], attachmentID[:])
		e.AttachmentID = &b
	}
	if namedLocationID != nil {
		var b [16]byte
		copy(b[:], namedLocationID[:])
		e.NamedLocationID = &b
	}
	if lon != nil && lat != nil {
		e.Location = &GeoPoint{Lat: *lat, Lon: *lon}
	}
	return e, nil
}
