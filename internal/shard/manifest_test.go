package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestVerifyDetectsTamper(t *testing.T) {
	content := []byte(`{"a":1}` + "\n")
	m := &Manifest{
		Version: "1.0.0",
		Files: map[string]FileEntry{
			"notes.jsonl": {SHA256: Digest(content), Bytes: len(content)},
		},
	}

	assert.Empty(t, m.Verify(map[string][]byte{"notes.jsonl": content}))

	tampered := append([]byte{}, content...)
	tampered[0] = 'X'
	warnings := m.Verify(map[string][]byte{"notes.jsonl": tampered})
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningDataTruncated, warnings[0].Kind)
}

func TestManifestVerifyMissingFile(t *testing.T) {
	m := &Manifest{
		Version: "1.0.0",
		Files:   map[string]FileEntry{"tags.json": {SHA256: "deadbeef", Bytes: 4}},
	}
	warnings := m.Verify(map[string][]byte{})
	require.Len(t, warnings, 1)
	assert.Equal(t, WarningDataTruncated, warnings[0].Kind)
}

func TestManifestRoundTrip(t *testing.T) {
	m := &Manifest{Version: "1.0.0", EngineName: EngineName, Counts: map[string]int{"notes": 3}}
	b, err := MarshalManifest(m)
	require.NoError(t, err)

	got, err := UnmarshalManifest(b)
	require.NoError(t, err)
	assert.Equal(t, m.Version, got.Version)
	assert.Equal(t, 3, got.Counts["notes"])
}
