package minio

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitslab/blobstore"
)

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "images/")
	assert.Equal(t, "images/a.img", s.key("a.img"))
	assert.Equal(t, "images", s.key(""))

	bare := NewStore(nil, "bucket", "")
	assert.Equal(t, "a.img", bare.key("a.img"))
}

// TestStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	bucket := "test-bitslab"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "test.img", data))

	blob, err := store.Open(ctx, "test.img")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	got, err := io.ReadAll(blobstore.NewReader(blob))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	part := make([]byte, 5)
	n, err := blob.ReadAt(part, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "test.img")

	require.NoError(t, store.Delete(ctx, "test.img"))
	_, err = store.Open(ctx, "test.img")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
