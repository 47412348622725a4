package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// executableMagic lists byte prefixes the spec (§6, §7) requires the
// default store to reject outright rather than store: ELF, Mach-O
// (32/64-bit, both endiannesses, and fat/universal binaries), PE/MZ, and
// the POSIX shebang. This is a content sniff, not a filename extension
// check, since an uploaded path is caller-supplied and easily spoofed.
var executableMagic = [][]byte{
	{0x7f, 'E', 'L', 'F'},
	{0xfe, 0xed, 0xfa, 0xce}, // Mach-O 32-bit BE
	{0xce, 0xfa, 0xed, 0xfe}, // Mach-O 32-bit LE
	{0xfe, 0xed, 0xfa, 0xcf}, // Mach-O 64-bit BE
	{0xcf, 0xfa, 0xed, 0xfe}, // Mach-O 64-bit LE
	{0xca, 0xfe, 0xba, 0xbe}, // Mach-O fat binary
	{'M', 'Z'},               // PE/DOS
	{'#', '!'},               // shebang
}

// LooksExecutable reports whether data begins with a known executable
// magic byte sequence.
func LooksExecutable(data []byte) bool {
	for _, magic := range executableMagic {
		if len(data) >= len(magic) && string(data[:len(magic)]) == string(magic) {
			return true
		}
	}
	return false
}

// LocalStore is the default Store: blobs live under BaseDir, sharded two
// directory levels deep by the first four hex characters of the path
// (path is expected to be a UUID-derived content key), so no single
// directory accumulates millions of entries. Writes go through a temp
// file in the same shard directory followed by os.Rename, which is
// atomic on every platform this engine targets, so a reader never
// observes a partially-written blob.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore returns a LocalStore rooted at baseDir, creating it (and
// parents) if it does not already exist.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create base dir: %w", err)
	}
	return &LocalStore{BaseDir: baseDir}, nil
}

func (s *LocalStore) shardedPath(path string) (string, error) {
	clean := strings.TrimPrefix(filepath.ToSlash(path), "/")
	if clean == "" || strings.Contains(clean, "..") {
		return "", fmt.Errorf("blob: invalid path %q", path)
	}
	key := strings.ReplaceAll(clean, "/", "_")
	shard1, shard2 := "00", "00"
	if len(key) >= 2 {
		shard1 = key[0:2]
	}
	if len(key) >= 4 {
		shard2 = key[2:4]
	}
	return filepath.Join(s.BaseDir, shard1, shard2, key), nil
}

// Write stores data at path via temp-file-then-rename, mode 0644.
func (s *LocalStore) Write(ctx context.Context, path string, data []byte) error {
	if LooksExecutable(data) {
		return ErrExecutableContent
	}
	full, err := s.shardedPath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("blob: create shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("blob: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed away

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("blob: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("blob: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blob: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return fmt.Errorf("blob: rename into place: %w", err)
	}
	return nil
}

// Read returns the bytes stored at path.
func (s *LocalStore) Read(ctx context.Context, path string) ([]byte, error) {
	full, err := s.shardedPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: read: %w", err)
	}
	return data, nil
}

// Delete removes the blob at path. A missing blob is not an error.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	full, err := s.shardedPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob: delete: %w", err)
	}
	return nil
}

// Exists reports whether a blob is stored at path.
func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.shardedPath(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("blob: stat: %w", err)
}
