package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hirewise/api/internal/client"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds uploaded payloads until a worker picks them up.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// RedisBlobStore keeps payloads next to the job records. Suitable for the
// document sizes; large videos belong in object storage.
type RedisBlobStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisBlobStore(rdb *redis.Client, ttl time.Duration) *RedisBlobStore {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &RedisBlobStore{rdb: rdb, ttl: ttl}
}

func (s *RedisBlobStore) Put(ctx context.Context, key string, data []byte, _ string) error {
	return s.rdb.Set(ctx, "blob:"+key, data, s.ttl).Err()
}

func (s *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, "blob:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

func (s *RedisBlobStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, "blob:"+key).Err()
}

// ObjectBlobStore keeps payloads in the S3-compatible bucket under a prefix.
type ObjectBlobStore struct {
	storage client.StorageClient
	prefix  string
}

func NewObjectBlobStore(storage client.StorageClient, prefix string) *ObjectBlobStore {
	return &ObjectBlobStore{storage: storage, prefix: prefix}
}

func (s *ObjectBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if _, err := s.storage.Upload(ctx, s.prefix+key, bytes.NewReader(data), contentType); err != nil {
		return fmt.Errorf("upload payload: %w", err)
	}
	return nil
}

func (s *ObjectBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.storage.Download(ctx, s.prefix+key)
	if errors.Is(err, client.ErrObjectNotFound) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

func (s *ObjectBlobStore) Delete(ctx context.Context, key string) error {
	return s.storage.Delete(ctx, s.prefix+key)
}
