package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client stores report artifacts in a bucket
type S3Client interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

// Uploader is the subset of manager.Uploader used here
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Downloader is the subset of manager.Downloader used here
type Downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

// PresignFunc returns a presigned GET URL for input
type PresignFunc func(ctx context.Context, input *s3.GetObjectInput, expiration time.Duration) (string, error)

// BucketClient implements S3Client on one bucket
type BucketClient struct {
	bucket     string
	uploader   Uploader
	downloader Downloader
	presign    PresignFunc
}

// NewS3Client wraps an S3 client with the transfer manager and a presigner
func NewS3Client(client *s3.Client, bucket string) *BucketClient {
	presigner := s3.NewPresignClient(client)
	return NewBucketClient(bucket, manager.NewUploader(client), manager.NewDownloader(client),
		func(ctx context.Context, input *s3.GetObjectInput, expiration time.Duration) (string, error) {
			req, err := presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expiration))
			if err != nil {
				return "", err
			}
			return req.URL, nil
		})
}

// NewBucketClient builds a client from its parts
func NewBucketClient(bucket string, uploader Uploader, downloader Downloader, presign PresignFunc) *BucketClient {
	return &BucketClient{
		bucket:     bucket,
		uploader:   uploader,
		downloader: downloader,
		presign:    presign,
	}
}

// Bucket returns the bucket name
func (c *BucketClient) Bucket() string {
	return c.bucket
}

// Upload stores body under key and returns the object location
func (c *BucketClient) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	out, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return out.Location, nil
}

// Download reads the object under key into memory
func (c *BucketClient) Download(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := c.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// GetPresignedURL returns a time-limited download link for key
func (c *BucketClient) GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	url, err := c.presign(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, expiration)
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return url, nil
}
