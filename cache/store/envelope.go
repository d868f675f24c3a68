package store

import (
	"fmt"
	"time"

	"github.com/hupe1980/ragkit/codec"
	"github.com/hupe1980/ragkit/model"
)

// envelope is the wire form of a CacheEntry for remote tier stores. The
// payload travels compressed; the compressor name is recorded so a reader
// can validate it before decoding.
type envelope struct {
	Key               string         `json:"key"`
	Payload           []byte         `json:"payload"`
	Compressor        string         `json:"compressor"`
	Tier              uint8          `json:"tier"`
	Tags              []string       `json:"tags,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at,omitempty"`
	LastAccessed      time.Time      `json:"last_accessed"`
	AccessCount       int64          `json:"access_count"`
	ComplianceCleared bool           `json:"compliance_cleared"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// EncodeEntry serializes an entry for a remote tier store.
func EncodeEntry(cd codec.Codec, comp codec.Compressor, e *model.CacheEntry) ([]byte, error) {
	if cd == nil {
		cd = codec.Default
	}
	if comp == nil {
		comp = codec.Noop{}
	}
	payload, err := comp.Compress(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	return cd.Marshal(envelope{
		Key:               e.Key,
		Payload:           payload,
		Compressor:        comp.Name(),
		Tier:              uint8(e.Tier),
		Tags:              e.Tags,
		CreatedAt:         e.CreatedAt,
		ExpiresAt:         e.ExpiresAt,
		LastAccessed:      e.LastAccessed,
		AccessCount:       e.AccessCount,
		ComplianceCleared: e.ComplianceCleared,
		Metadata:          e.Metadata,
	})
}

// DecodeEntry reverses EncodeEntry. The compressor is selected by the name
// recorded in the envelope.
func DecodeEntry(cd codec.Codec, data []byte) (*model.CacheEntry, error) {
	if cd == nil {
		cd = codec.Default
	}
	var env envelope
	if err := cd.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	comp, ok := codec.CompressorByName(env.Compressor)
	if !ok {
		return nil, fmt.Errorf("unknown compressor %q", env.Compressor)
	}
	payload, err := comp.Decompress(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return &model.CacheEntry{
		Key:               env.Key,
		Payload:           payload,
		Tier:              model.Tier(env.Tier),
		Tags:              env.Tags,
		CreatedAt:         env.CreatedAt,
		ExpiresAt:         env.ExpiresAt,
		LastAccessed:      env.LastAccessed,
		AccessCount:       env.AccessCount,
		ComplianceCleared: env.ComplianceCleared,
		Metadata:          env.Metadata,
	}, nil
}
