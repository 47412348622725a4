package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreWriteReadDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	path := "ab12cd34-note-attachment.png"
	data := []byte("fake png bytes")

	require.NoError(t, store.Write(ctx, path, data))

	got, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	exists, err := store.Exists(ctx, path)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, path))

	exists, err = store.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Read(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreDeleteMissingIsNotError(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, store.Delete(context.Background(), "never-written"))
}

func TestLocalStoreRejectsExecutableContent(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Write(context.Background(), "evil.bin", []byte("\x7fELF..."))
	assert.ErrorIs(t, err, ErrExecutableContent)
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	err = store.Write(context.Background(), "../../etc/passwd", []byte("x"))
	assert.Error(t, err)
}

func TestLooksExecutable(t *testing.T) {
	assert.True(t, LooksExecutable([]byte("\x7fELF\x02\x01")))
	assert.True(t, LooksExecutable([]byte("MZ\x90\x00")))
	assert.True(t, LooksExecutable([]byte("#!/bin/sh\necho hi")))
	assert.False(t, LooksExecutable([]byte("plain text content")))
	assert.False(t, LooksExecutable([]byte{}))
}
