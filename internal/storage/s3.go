// Package storage holds the S3-compatible photo store backed by MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3Storage uploads listing photos to a bucket.
type S3Storage struct {
	client   *minio.Client
	bucket   string
	endpoint string
	useSSL   bool
	log      *zap.SugaredLogger
}

// NewS3Storage connects to the object store and ensures the bucket exists.
func NewS3Storage(endpoint, accessKey, secretKey, bucket string, useSSL bool, log *zap.SugaredLogger) (*S3Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	ctx := context.Background()
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("make bucket %s: %w", bucket, err)
		}
	}
	log.Infof("object storage ready, bucket=%s", bucket)
	return &S3Storage{client: client, bucket: bucket, endpoint: endpoint, useSSL: useSSL, log: log}, nil
}

// Upload stores the photo under a fresh uuid key, keeping the original
// extension, and returns the key.
func (s *S3Storage) Upload(ctx context.Context, originalName string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("photos/%s%s", uuid.New().String(), filepath.Ext(originalName))
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// URL assembles the public URL for a stored object key.
func (s *S3Storage) URL(key string) string {
	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.endpoint, s.bucket, key)
}
