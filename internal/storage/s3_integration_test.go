//go:build integration

package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/cloo-solutions/kbrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client_PutHeadDeletePrefix(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSAccessKey,
		Bucket:          "kbrelay-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.EnsureBucket(ctx))

	body := []byte("quarterly numbers")
	require.NoError(t, client.PutObject(ctx, "finance", "q3.txt", bytes.NewReader(body), int64(len(body))))
	require.NoError(t, client.PutObject(ctx, "finance", "q4.txt", bytes.NewReader(body), int64(len(body))))
	require.NoError(t, client.PutObject(ctx, "finance-old", "q1.txt", bytes.NewReader(body), int64(len(body))))

	meta, err := client.HeadObject(ctx, "finance", "q3.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), meta.ContentLength)

	deleted, err := client.DeletePrefix(ctx, "finance")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = client.HeadObject(ctx, "finance", "q3.txt")
	assert.Error(t, err)

	_, err = client.HeadObject(ctx, "finance-old", "q1.txt")
	assert.NoError(t, err)
}
