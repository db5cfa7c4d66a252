package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds the connection parameters for one backend endpoint.
type MinIOConfig struct {
	// Endpoint is a full URL (scheme decides TLS), e.g. http://minio:9000.
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// MinIOStore implements Store against a MinIO/S3-compatible endpoint.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore creates a store bound to the configured endpoint.
func NewMinIOStore(cfg MinIOConfig) (*MinIOStore, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint url: %w", err)
	}

	client, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	return &MinIOStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Put stores a payload under key.
func (s *MinIOStore) Put(ctx context.Context, key string, payload []byte) (PutResult, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return PutResult{}, err
	}
	return PutResult{ETag: info.ETag, Size: info.Size}, nil
}

// Get retrieves a blob by key.
func (s *MinIOStore) Get(ctx context.Context, key string) (Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Object{}, err
	}
	defer obj.Close()

	// GetObject is lazy; Stat performs the request and surfaces NoSuchKey.
	stat, err := obj.Stat()
	if err != nil {
		return Object{}, err
	}

	payload, err := io.ReadAll(obj)
	if err != nil {
		return Object{}, err
	}

	contentType := stat.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Object{Payload: payload, ContentType: contentType}, nil
}

// Ping checks whether the backend answers for the configured bucket.
func (s *MinIOStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	return nil
}
