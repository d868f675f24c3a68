// Package s3 implements a cache tier store backed by Amazon S3. Entries are
// stored one object per key under a configurable prefix.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/ragkit/cache/store"
	"github.com/hupe1980/ragkit/codec"
	"github.com/hupe1980/ragkit/model"
)

// Options configures the S3 store.
type Options struct {
	// Codec encodes entries for storage. Defaults to codec.Default.
	Codec codec.Codec
	// Compressor compresses entry payloads. Defaults to no compression.
	Compressor codec.Compressor
}

// Store implements store.Store for S3.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	opts     Options
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an S3-backed tier store.
// rootPrefix is prepended to all keys (e.g. "cache/").
func New(client *s3.Client, bucket, rootPrefix string, optFns ...func(o *Options)) *Store {
	opts := Options{
		Codec:      codec.Default,
		Compressor: codec.Noop{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   rootPrefix,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *Store) objectKey(key string) string {
	return path.Join(s.prefix, key)
}

// Get returns the entry for key, store.ErrNotFound if absent or expired.
func (s *Store) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object: %w", err)
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

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(entry.Key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// Keys lists all keys under the store prefix. Expiry is not evaluated here;
// Get filters expired entries.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(*obj.Key, s.prefix)
			name = strings.TrimPrefix(name, "/")
			if name != "" {
				keys = append(keys, name)
			}
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *Store) Close() error {
	return nil
}
