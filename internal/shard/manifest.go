package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
)

// FileNames lists every file a shard bundle contains, in the tar-write
// order Export uses. The manifest itself is not listed: it is always the
// first tar entry and carries the digests of the rest.
var FileNames = []string{
	"notes.jsonl",
	"links.jsonl",
	"embedding_sets.json",
	"embedding_configs.json",
	"tags.json",
	"collections.json",
	"templates.json",
}

// FileEntry records one bundled file's size and content digest, so Import
// can detect truncation or tampering before trusting a byte of it.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// Manifest is the shard's first tar entry: format version, per-file
// digests, and record counts.
type Manifest struct {
	Version    string               `json:"version"` // semver string, e.g. "1.2.0"
	CreatedAt  time.Time            `json:"created_at"`
	EngineName string               `json:"engine_name"`
	Counts     map[string]int       `json:"counts"`
	Files      map[string]FileEntry `json:"files"`
}

// SemVer parses m.Version, returning an error if the manifest was written
// with a malformed version string.
func (m *Manifest) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("shard: manifest version %q: %w", m.Version, err)
	}
	return v, nil
}

// Digest computes the SHA-256 hex digest of content, for populating or
// verifying a Manifest.Files entry.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Verify checks every entry in m.Files against the actual digest and size
// of its corresponding content, reporting each mismatch as a
// WarningDataTruncated Warning rather than failing: the manifest itself
// must parse to be trusted at all, but a mismatched or missing file within
// an otherwise-readable bundle is truncation/tampering the caller is
// tolerant of (spec: "checksum mismatch warns but proceeds"). files maps
// file name to its raw bytes, as read back out of the tar.
func (m *Manifest) Verify(files map[string][]byte) []Warning {
	var warnings []Warning
	for name, entry := range m.Files {
		content, ok := files[name]
		if !ok {
			warnings = append(warnings, Warning{
				Kind:   WarningDataTruncated,
				Detail: fmt.Sprintf("%q missing from bundle (manifest expected %d bytes)", name, entry.Bytes),
			})
			continue
		}
		if len(content) != entry.Bytes {
			warnings = append(warnings, Warning{
				Kind:   WarningDataTruncated,
				Detail: fmt.Sprintf("%q size mismatch: manifest says %d bytes, bundle has %d", name, entry.Bytes, len(content)),
			})
		}
		if got := Digest(content); got != entry.SHA256 {
			warnings = append(warnings, Warning{
				Kind:   WarningDataTruncated,
				Detail: fmt.Sprintf("%q digest mismatch: manifest says %s, bundle has %s", name, entry.SHA256, got),
			})
		}
	}
	return warnings
}

// MarshalManifest serializes m as indented JSON, matching the other
// human-diffable JSON files a shard carries.
func MarshalManifest(m *Manifest) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// UnmarshalManifest parses manifest.json's raw bytes.
func UnmarshalManifest(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("shard: parse manifest: %w", err)
	}
	return &m, nil
}
