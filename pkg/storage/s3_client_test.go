package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBucket struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memoryBucket) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(input.Key)
	b.objects[key] = data
	b.types[key] = aws.ToString(input.ContentType)
	return &manager.UploadOutput{Location: "https://" + aws.ToString(input.Bucket) + ".s3.local/" + key}, nil
}

func (b *memoryBucket) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error) {
	data, ok := b.objects[aws.ToString(input.Key)]
	if !ok {
		return 0, errors.New("NoSuchKey")
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func TestBucketClient_RoundTrip(t *testing.T) {
	bucket := newMemoryBucket()
	var presignedFor time.Duration
	client := NewBucketClient("reports", bucket, bucket,
		func(ctx context.Context, input *s3.GetObjectInput, expiration time.Duration) (string, error) {
			presignedFor = expiration
			return "https://signed/" + aws.ToString(input.Key), nil
		})
	ctx := context.Background()

	assert.Equal(t, "reports", client.Bucket())

	location, err := client.Upload(ctx, "reports/a.pdf", []byte("%PDF-1.3"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://reports.s3.local/reports/a.pdf", location)
	assert.Equal(t, "application/pdf", bucket.types["reports/a.pdf"])

	data, err := client.Download(ctx, "reports/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	url, err := client.GetPresignedURL(ctx, "reports/a.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://signed/reports/a.pdf", url)
	assert.Equal(t, time.Hour, presignedFor)

	_, err = client.Download(ctx, "missing")
	assert.ErrorContains(t, err, "failed to download missing")
}
