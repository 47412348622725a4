package shard

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/klauspost/compress/gzip"
)

// ArchiveSource is the write side of one archive's current state, the
// destination Import applies a migrated Bundle onto. HasNote lets Import
// classify each note as an insert or an update for the dry-run report
// without the caller ever issuing a write.
type ArchiveSource interface {
	HasNote(ctx context.Context, id string) (bool, error)
	PutNote(ctx context.Context, n NoteRecord) error
	PutLink(ctx context.Context, l LinkRecord) error
	PutEmbeddingSet(ctx context.Context, s EmbeddingSetRecord) error
	PutEmbeddingConfig(ctx context.Context, c EmbeddingConfigRecord) error
	PutTag(ctx context.Context, t TagRecord) error
	PutCollection(ctx context.Context, c CollectionRecord) error
	PutTemplate(ctx context.Context, t TemplateRecord) error
}

// Result summarizes one Import call: note-level insert/update counts (the
// entities a re-import can collide on) plus every Warning the migration
// chain raised along the way. In dry-run mode the counts describe what
// would happen; nothing is written to source.
type Result struct {
	WouldInsert int
	WouldUpdate int
	Warnings    []Warning
}

// Import reads a tar+gzip shard bundle from r, verifies every file against
// the manifest's recorded SHA-256 and size, migrates the decoded Bundle
// from the manifest's version to target via registry, and — unless dryRun
// is set — applies every record to source. Only an unparseable
// manifest.json is fatal; checksum/size mismatches within an otherwise
// readable bundle and individually corrupt records are collected as
// Warnings and the import proceeds (spec: "checksum mismatch warns but
// proceeds", "corrupt individual notes skip with warning").
func Import(ctx context.Context, r io.Reader, registry *Registry, target *semver.Version, source ArchiveSource, dryRun bool) (*Result, error) {
	files, err := readTarGzip(r)
	if err != nil {
		return nil, err
	}

	manifestBytes, ok := files["manifest.json"]
	if !ok {
		return nil, fmt.Errorf("shard: bundle has no manifest.json")
	}
	manifest, err := UnmarshalManifest(manifestBytes)
	if err != nil {
		return nil, err
	}
	bundleFiles := make(map[string][]byte, len(FileNames))
	for _, name := range FileNames {
		bundleFiles[name] = files[name]
	}
	warnings := manifest.Verify(bundleFiles)

	bundle, decodeWarnings, err := decodeBundle(bundleFiles)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, decodeWarnings...)

	from, err := manifest.SemVer()
	if err != nil {
		return nil, err
	}
	migrateWarnings, err := registry.Migrate(bundle, from, target)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, migrateWarnings...)

	result := &Result{Warnings: warnings}
	for _, n := range bundle.Notes {
		exists, err := source.HasNote(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("shard: check note %s: %w", n.ID, err)
		}
		if exists {
			result.WouldUpdate++
		} else {
			result.WouldInsert++
		}
		if dryRun {
			continue
		}
		if err := source.PutNote(ctx, n); err != nil {
			return nil, fmt.Errorf("shard: import note %s: %w", n.ID, err)
		}
	}
	if dryRun {
		return result, nil
	}

	for _, l := range bundle.Links {
		if err := source.PutLink(ctx, l); err != nil {
			return nil, fmt.Errorf("shard: import link %s->%s: %w", l.SourceID, l.TargetID, err)
		}
	}
	for _, c := range bundle.EmbeddingConfigs {
		if err := source.PutEmbeddingConfig(ctx, c); err != nil {
			return nil, fmt.Errorf("shard: import embedding config %s: %w", c.ID, err)
		}
	}
	for _, s := range bundle.EmbeddingSets {
		if err := source.PutEmbeddingSet(ctx, s); err != nil {
			return nil, fmt.Errorf("shard: import embedding set %s: %w", s.ID, err)
		}
	}
	for _, t := range bundle.Tags {
		if err := source.PutTag(ctx, t); err != nil {
			return nil, fmt.Errorf("shard: import tag %s: %w", t.Path, err)
		}
	}
	for _, c := range bundle.Collections {
		if err := source.PutCollection(ctx, c); err != nil {
			return nil, fmt.Errorf("shard: import collection %s: %w", c.ID, err)
		}
	}
	for _, t := range bundle.Templates {
		if err := source.PutTemplate(ctx, t); err != nil {
			return nil, fmt.Errorf("shard: import template %s: %w", t.Name, err)
		}
	}

	return result, nil
}

func readTarGzip(r io.Reader) (map[string][]byte, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("shard: open gzip stream: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("shard: read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return nil, fmt.Errorf("shard: read tar entry %s: %w", hdr.Name, err)
		}
		files[hdr.Name] = buf.Bytes()
	}
	return files, nil
}

// decodeBundle parses every bundled file. notes.jsonl and links.jsonl are
// decoded record-by-record: a malformed line is skipped and reported as a
// Warning rather than aborting the whole bundle. The remaining files are
// single JSON documents with no per-record granularity to salvage, so a
// parse failure there is still fatal.
func decodeBundle(files map[string][]byte) (*Bundle, []Warning, error) {
	notes, warnings, err := decodeJSONL[NoteRecord](files["notes.jsonl"], "notes.jsonl")
	if err != nil {
		return nil, nil, fmt.Errorf("shard: decode notes.jsonl: %w", err)
	}
	links, linkWarnings, err := decodeJSONL[LinkRecord](files["links.jsonl"], "links.jsonl")
	if err != nil {
		return nil, nil, fmt.Errorf("shard: decode links.jsonl: %w", err)
	}
	warnings = append(warnings, linkWarnings...)

	b := &Bundle{Notes: notes, Links: links}
	if err := decodeJSON(files["embedding_sets.json"], &b.EmbeddingSets); err != nil {
		return nil, nil, fmt.Errorf("shard: decode embedding_sets.json: %w", err)
	}
	if err := decodeJSON(files["embedding_configs.json"], &b.EmbeddingConfigs); err != nil {
		return nil, nil, fmt.Errorf("shard: decode embedding_configs.json: %w", err)
	}
	if err := decodeJSON(files["tags.json"], &b.Tags); err != nil {
		return nil, nil, fmt.Errorf("shard: decode tags.json: %w", err)
	}
	if err := decodeJSON(files["collections.json"], &b.Collections); err != nil {
		return nil, nil, fmt.Errorf("shard: decode collections.json: %w", err)
	}
	if err := decodeJSON(files["templates.json"], &b.Templates); err != nil {
		return nil, nil, fmt.Errorf("shard: decode templates.json: %w", err)
	}
	return b, warnings, nil
}

func decodeJSON(content []byte, out any) error {
	if len(content) == 0 {
		return nil
	}
	return json.Unmarshal(content, out)
}

// decodeJSONL parses one JSON-lines file. A line that fails to unmarshal
// is skipped and reported as a WarningDataTruncated Warning naming the
// file and line number; scanner I/O failures (oversized line, truncated
// stream) remain fatal since there is no record left to skip.
func decodeJSONL[T any](content []byte, fileName string) ([]T, []Warning, error) {
	var out []T
	var warnings []Warning
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			warnings = append(warnings, Warning{
				Kind:   WarningDataTruncated,
				Detail: fmt.Sprintf("%s line %d: skipped corrupt record: %v", fileName, lineNo, err),
			})
			continue
		}
		out = append(out, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, err
	}
	return out, warnings, nil
}
