package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

func TestDecodeLabels(t *testing.T) {
	assert.Nil(t, decodeLabels(nil))
	assert.Nil(t, decodeLabels([]byte("")))
	assert.Equal(t, []string{"go"}, decodeLabels([]byte("go")))
	assert.Equal(t, []string{"go", "databases"}, decodeLabels([]byte("go\ndatabases")))
	assert.Equal(t, []string{"go", "databases"}, decodeLabels([]byte("go\ndatabases\n")))
	assert.Equal(t, []string{"go", "databases"}, decodeLabels([]byte("go\n\ndatabases")))
}

func TestShardExportHandlerRejectsMissingBlobStore(t *testing.T) {
	h := shardExportHandler(Deps{})
	job := &storage.Job{Payload: []byte("shards/2026/archive.tar.gz")}
	err := h(context.Background(), nil, job, &ProgressReporter{})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestShardExportHandlerRejectsEmptyPath(t *testing.T) {
	h := shardExportHandler(Deps{Blob: fakeBlobStore{}})
	job := &storage.Job{Payload: nil}
	err := h(context.Background(), nil, job, &ProgressReporter{})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestShardImportHandlerRejectsMissingRegistry(t *testing.T) {
	h := shardImportHandler(Deps{Blob: fakeBlobStore{}})
	job := &storage.Job{Payload: []byte("shards/2026/archive.tar.gz")}
	err := h(context.Background(), nil, job, &ProgressReporter{})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

type fakeBlobStore struct{}

func (fakeBlobStore) Write(ctx context.Context, path string, data []byte) error { return nil }
func (fakeBlobStore) Read(ctx context.Context, path string) ([]byte, error)     { return nil, nil }
func (fakeBlobStore) Delete(ctx context.Context, path string) error            { return nil }
func (fakeBlobStore) Exists(ctx context.Context, path string) (bool, error)    { return false, nil }
