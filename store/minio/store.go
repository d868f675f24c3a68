// Package minio implements a cache tier store backed by MinIO or any
// S3-compatible object storage.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/ragkit/cache/store"
	"github.com/hupe1980/ragkit/codec"
	"github.com/hupe1980/ragkit/model"
	"github.com/minio/minio-go/v7"
)

// Options configures the MinIO store.
type Options struct {
	// Codec encodes entries for storage. Defaults to codec.Default.
	Codec codec.Codec
	// Compressor compresses entry payloads. Defaults to no compression.
	Compressor codec.Compressor
}

// Store implements store.Store for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	opts   Options
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates a MinIO-backed tier store.
// rootPrefix is prepended to all keys (e.g. "cache/").
func New(client *minio.Client, bucket, rootPrefix string, optFns ...func(o *Options)) *Store {
	opts := Options{
		Codec:      codec.Default,
		Compressor: codec.Noop{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		opts:   opts,
		now:    time.Now,
	}
}

func (s *Store) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

// Get returns the entry for key, store.ErrNotFound if absent or expired.
func (s *Store) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("read minio object: %w", err)
	}

	entry, err := store.DecodeEntry(s.opts.Codec, data)
	if err != nil {
		return nil, err
	}
	if entry.Expired(s.now()) {
		return nil, store.ErrNotFound
	}
	return entry, nil
}

// Set writes the entry under entry.Key.
func (s *Store) Set(ctx context.Context, entry *model.CacheEntry) error {
	data, err := store.EncodeEntry(s.opts.Codec, s.opts.Compressor, entry)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.objectKey(entry.Key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("minio put object: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return nil
		}
		return fmt.Errorf("minio remove object: %w", err)
	}
	return nil
}

// Keys lists all keys under the store prefix. Expiry is not evaluated here;
// Get filters expired entries.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list objects: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, s.prefix)
		name = strings.TrimPrefix(name, "/")
		if name != "" {
			keys = append(keys, name)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *Store) Close() error {
	return nil
}
