package shard

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ArchiveSink is the read side of one archive's current state, the
// source Export pulls a Bundle from. internal/storage's UnitOfWork-backed
// adapter is the production implementation; tests substitute an in-memory
// one.
type ArchiveSink interface {
	Notes(ctx context.Context) ([]NoteRecord, error)
	Links(ctx context.Context) ([]LinkRecord, error)
	EmbeddingSets(ctx context.Context) ([]EmbeddingSetRecord, error)
	EmbeddingConfigs(ctx context.Context) ([]EmbeddingConfigRecord, error)
	Tags(ctx context.Context) ([]TagRecord, error)
	Collections(ctx context.Context) ([]CollectionRecord, error)
	Templates(ctx context.Context) ([]TemplateRecord, error)
}

// EngineName is stamped into every manifest Export writes.
const EngineName = "matric-core"

// CurrentVersion is the shard format version this build writes. Bumped
// whenever record.go's JSON shapes change in a way the migration chain
// must account for.
const CurrentVersion = "1.0.0"

// Export reads every entity kind from sink, bundles them into the tar+gzip
// shard layout (manifest.json first, then notes.jsonl, links.jsonl,
// embedding_sets.json, embedding_configs.json, tags.json, collections.json,
// templates.json), and writes the result to w. klauspost's
// gzip is used for the compression codec rather than stdlib's, since it is
// already part of the dependency set and is faster at matching compression
// ratios; archive/tar is used unchanged since no multi-format archive
// support is needed for a single fixed layout.
func Export(ctx context.Context, sink ArchiveSink, w io.Writer) error {
	files, counts, err := collect(ctx, sink)
	if err != nil {
		return err
	}

	manifest := &Manifest{
		Version:    CurrentVersion,
		CreatedAt:  time.Now().UTC(),
		EngineName: EngineName,
		Counts:     counts,
		Files:      make(map[string]FileEntry, len(files)),
	}
	for name, content := range files {
		manifest.Files[name] = FileEntry{SHA256: Digest(content), Bytes: len(content)}
	}
	manifestBytes, err := MarshalManifest(manifest)
	if err != nil {
		return fmt.Errorf("shard: marshal manifest: %w", err)
	}

	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	if err := writeTarFile(tw, "manifest.json", manifestBytes); err != nil {
		return err
	}
	for _, name := range FileNames {
		if err := writeTarFile(tw, name, files[name]); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("shard: close tar writer: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("shard: close gzip writer: %w", err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0644,
		Size:     int64(len(content)),
		ModTime:  time.Now().UTC(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("shard: write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("shard: write tar body for %s: %w", name, err)
	}
	return nil
}

// collect pulls every entity kind from sink and renders each into its
// shard-format file bytes, along with a per-kind record count for the
// manifest.
func collect(ctx context.Context, sink ArchiveSink) (map[string][]byte, map[string]int, error) {
	notes, err := sink.Notes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shard: read notes: %w", err)
	}
	links, err := sink.Links(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shard: read links: %w", err)
	}
	sets, err := sink.EmbeddingSets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shard: read embedding sets: %w", err)
	}
	configs, err := sink.EmbeddingConfigs(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shard: read embedding configs: %w", err)
	}
	tags, err := sink.Tags(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shard: read tags: %w", err)
	}
	collections, err := sink.Collections(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shard: read collections: %w", err)
	}
	templates, err := sink.Templates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("shard: read templates: %w", err)
	}

	notesJSONL, err := marshalJSONL(notes)
	if err != nil {
		return nil, nil, err
	}
	linksJSONL, err := marshalJSONL(links)
	if err != nil {
		return nil, nil, err
	}
	setsJSON, err := json.MarshalIndent(sets, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	configsJSON, err := json.MarshalIndent(configs, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	tagsJSON, err := json.MarshalIndent(tags, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	collectionsJSON, err := json.MarshalIndent(collections, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	templatesJSON, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return nil, nil, err
	}

	files := map[string][]byte{
		"notes.jsonl":          notesJSONL,
		"links.jsonl":          linksJSONL,
		"embedding_sets.json":  setsJSON,
		"embedding_configs.json": configsJSON,
		"tags.json":            tagsJSON,
		"collections.json":     collectionsJSON,
		"templates.json":       templatesJSON,
	}
	counts := map[string]int{
		"notes":             len(notes),
		"links":             len(links),
		"embedding_sets":    len(sets),
		"embedding_configs": len(configs),
		"tags":              len(tags),
		"collections":       len(collections),
		"templates":         len(templates),
	}
	return files, counts, nil
}

// marshalJSONL renders items one JSON object per line, the format
// notes.jsonl and links.jsonl use since they are the potentially large,
// line-appendable collections.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf []byte
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("shard: marshal jsonl record: %w", err)
		}
		buf = append(buf, b...)
		buf = append(buf, '\n')
	}
	return buf, nil
}
