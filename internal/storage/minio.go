package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"memoryland-backend/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements ObjectStore for MinIO/S3 compatible storage
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and ensures the bucket exists
func NewMinioStore(ctx context.Context, cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

// EnsureContainer writes the container marker if it is absent
func (m *MinioStore) EnsureContainer(ctx context.Context, container string) error {
	exists, err := m.ContainerExists(ctx, container)
	if err != nil || exists {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, objectPath(container, markerKey), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	return nil
}

// ContainerExists reports whether the container marker is present
func (m *MinioStore) ContainerExists(ctx context.Context, container string) (bool, error) {
	return m.Exists(ctx, container, markerKey)
}

// Exists checks for an object with StatObject
func (m *MinioStore) Exists(ctx context.Context, container, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, objectPath(container, key), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Put uploads an object
func (m *MinioStore) Put(ctx context.Context, container, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectPath(container, key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        contentType,
		ContentDisposition: contentDisposition,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Delete removes an object
func (m *MinioStore) Delete(ctx context.Context, container, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectPath(container, key), minio.RemoveObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// PresignGet generates a pre-signed GET URL
func (m *MinioStore) PresignGet(ctx context.Context, container, key string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, objectPath(container, key), expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return url.String(), nil
}
