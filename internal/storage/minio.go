// Package storage keeps attachment blobs in S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type FileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key, filename string, expires time.Duration) (string, error)
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage connects to cfg.Endpoint and makes sure the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig) (*MinIOStorage, error) {
	mc, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		exists, xerr := mc.BucketExists(ctx, cfg.Bucket)
		if xerr != nil || !exists {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinIOStorage{client: mc, bucket: cfg.Bucket}, nil
}

func newClient(cfg MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return mc, nil
}

func (s *MinIOStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a GET URL that downloads key under filename.
func (s *MinIOStorage) PresignedURL(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	params := make(url.Values)
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ObjectKey is where an attachment's blob lives in the bucket.
func ObjectKey(notepadId, fileId string) string {
	return fmt.Sprintf("notepads/%s/files/%s", notepadId, fileId)
}
