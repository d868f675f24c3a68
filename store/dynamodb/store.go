// Package dynamodb implements a cache tier store backed by DynamoDB.
//
// Table schema:
//   - Partition key: cache_key (string)
//   - entry (binary) - encoded cache entry
//   - expires_at (number) - epoch seconds, 0 when the entry never expires
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name ragkit-cache \
//	  --attribute-definitions AttributeName=cache_key,AttributeType=S \
//	  --key-schema AttributeName=cache_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//
// Enabling the table's TTL feature on expires_at lets DynamoDB reclaim
// expired items; Get filters them out regardless.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/ragkit/cache/store"
	"github.com/hupe1980/ragkit/codec"
	"github.com/hupe1980/ragkit/model"
)

// Client is the interface for DynamoDB operations.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Options configures the DynamoDB store.
type Options struct {
	// Codec encodes entries for storage. Defaults to codec.Default.
	Codec codec.Codec
	// Compressor compresses entry payloads. Defaults to no compression.
	Compressor codec.Compressor
}

// Store implements store.Store backed by a DynamoDB table.
type Store struct {
	client    Client
	tableName string
	opts      Options
	now       func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates a DynamoDB-backed tier store.
func New(client Client, tableName string, optFns ...func(o *Options)) *Store {
	opts := Options{
		Codec:      codec.Default,
		Compressor: codec.Noop{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client:    client,
		tableName: tableName,
		opts:      opts,
		now:       time.Now,
	}
}

// Get returns the entry for key, store.ErrNotFound if absent or expired.
func (s *Store) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"cache_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get item: %w", err)
	}
	if resp.Item == nil {
		return nil, store.ErrNotFound
	}

	if exp, ok := resp.Item["expires_at"].(*types.AttributeValueMemberN); ok {
		epoch, err := strconv.ParseInt(exp.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		if epoch > 0 && !s.now().Before(time.Unix(epoch, 0)) {
			return nil, store.ErrNotFound
		}
	}

	data, ok := resp.Item["entry"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, errors.New("invalid entry attribute in DynamoDB")
	}
	return store.DecodeEntry(s.opts.Codec, data.Value)
}

// Set writes the entry under entry.Key.
func (s *Store) Set(ctx context.Context, entry *model.CacheEntry) error {
	data, err := store.EncodeEntry(s.opts.Codec, s.opts.Compressor, entry)
	if err != nil {
		return err
	}

	var epoch int64
	if !entry.ExpiresAt.IsZero() {
		epoch = entry.ExpiresAt.Unix()
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"cache_key":  &types.AttributeValueMemberS{Value: entry.Key},
			"entry":      &types.AttributeValueMemberB{Value: data},
			"expires_at": &types.AttributeValueMemberN{Value: strconv.FormatInt(epoch, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb put item: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"cache_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb delete item: %w", err)
	}
	return nil
}

// Keys lists all live keys via a paginated scan.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var (
		keys    []string
		nowUnix = s.now().Unix()
		start   map[string]types.AttributeValue
	)

	for {
		resp, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.tableName),
			ProjectionExpression: aws.String("cache_key, expires_at"),
			ExclusiveStartKey:    start,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb scan: %w", err)
		}

		for _, item := range resp.Items {
			if exp, ok := item["expires_at"].(*types.AttributeValueMemberN); ok {
				epoch, err := strconv.ParseInt(exp.Value, 10, 64)
				if err == nil && epoch > 0 && epoch <= nowUnix {
					continue
				}
			}
			if k, ok := item["cache_key"].(*types.AttributeValueMemberS); ok {
				keys = append(keys, k.Value)
			}
		}

		if resp.LastEvaluatedKey == nil {
			break
		}
		start = resp.LastEvaluatedKey
	}

	return keys, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *Store) Close() error {
	return nil
}
