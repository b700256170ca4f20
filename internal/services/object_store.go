package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/multierr"
)

// ObjectStore holds the blob namespace of each partition. Objects of a
// partition live under the "<partition_id>/" prefix of a single bucket.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	MovePrefix(ctx context.Context, oldPrefix, newPrefix string) error
	RemovePrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
}

type minioObjectStore struct {
	client *minio.Client
	bucket string
}

func NewMinioObjectStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &minioObjectStore{client: client, bucket: bucket}, nil
}

// PartitionPrefix is the object prefix for a partition.
func PartitionPrefix(partitionID string) string {
	return partitionID + "/"
}

func (m *minioObjectStore) EnsureBucket(ctx context.Context) error {
	found, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !found {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// MovePrefix copies every object under oldPrefix to newPrefix and then
// removes the originals. Object storage has no rename.
func (m *minioObjectStore) MovePrefix(ctx context.Context, oldPrefix, newPrefix string) error {
	keys, err := m.list(ctx, oldPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		dst := minio.CopyDestOptions{Bucket: m.bucket, Object: newPrefix + strings.TrimPrefix(key, oldPrefix)}
		src := minio.CopySrcOptions{Bucket: m.bucket, Object: key}
		if _, err := m.client.CopyObject(ctx, dst, src); err != nil {
			return fmt.Errorf("copy %s: %w", key, err)
		}
	}
	return m.remove(ctx, keys)
}

func (m *minioObjectStore) RemovePrefix(ctx context.Context, prefix string) error {
	keys, err := m.list(ctx, prefix)
	if err != nil {
		return err
	}
	return m.remove(ctx, keys)
}

func (m *minioObjectStore) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}

func (m *minioObjectStore) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *minioObjectStore) remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var errs error
	for rerr := range m.client.RemoveObjects(ctx, m.bucket, objects, minio.RemoveObjectsOptions{}) {
		errs = multierr.Append(errs, fmt.Errorf("remove %s: %w", rerr.ObjectName, rerr.Err))
	}
	return errs
}

type noopObjectStore struct{}

// NewNoopObjectStore is used when no object storage endpoint is configured.
func NewNoopObjectStore() ObjectStore { return noopObjectStore{} }

func (noopObjectStore) EnsureBucket(context.Context) error               { return nil }
func (noopObjectStore) MovePrefix(context.Context, string, string) error { return nil }
func (noopObjectStore) RemovePrefix(context.Context, string) error       { return nil }
func (noopObjectStore) Ping(context.Context) error                       { return nil }
