package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/todo-app/apiserver/config"
)

func TestOpen_UnsupportedBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3fs"})
	assert.EqualError(t, err, `unsupported storage backend "s3fs"`)
}

func TestOpen_MinioRequiresSettings(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{
		Backend: BackendMinio,
		Minio:   config.MinioConfig{Bucket: "todo-backups"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIO_ENDPOINT")
	assert.Contains(t, err.Error(), "MINIO_SECRET_KEY")
	assert.NotContains(t, err.Error(), "MINIO_BUCKET")
}

func TestOpen_Minio(t *testing.T) {
	store, err := Open(context.Background(), config.StorageConfig{
		Backend: BackendMinio,
		Minio: config.MinioConfig{
			Endpoint:  "localhost:9000",
			AccessKey: "minio",
			SecretKey: "minio123",
			Bucket:    "todo-backups",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "todo-backups", store.Bucket())
}

func TestOpen_GCSRequiresBucket(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: BackendGCS})
	assert.ErrorContains(t, err, "GCS_BUCKET")
}
