// Package storage persists pipeline artifacts (transcripts, minutes documents).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// ErrNotFound is returned by Get when no object exists under the ref.
var ErrNotFound = errors.New("artifact not found")

type ArtifactStore interface {
	Put(ctx context.Context, ref string, data []byte, contentType string) error
	Get(ctx context.Context, ref string) ([]byte, error)
}

type minioStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(client *minio.Client, bucket string) ArtifactStore {
	return &minioStore{
		client: client,
		bucket: bucket,
	}
}

func (s *minioStore) Put(ctx context.Context, ref string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, ref, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", ref, err)
	}
	return nil
}

func (s *minioStore) Get(ctx context.Context, ref string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("get %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", ref, err)
	}
	return data, nil
}
