package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Request carries the caller-side context of one cache operation.
type Request struct {
	// Caller is the identity used for rate limiting.
	Caller string
	// Tags are context tags; their order never affects the cache key.
	Tags []string
	// User holds user-context fields. Only whitelisted fields enter the
	// key (see Config.KeyUserFields); the rest are ignored.
	User map[string]string
}

// ComputeKey derives the deterministic cache key digest from the normalized
// query, the sorted tag set and the whitelisted user-context fields.
//
// Two logically identical requests with differently ordered tags yield the
// same key.
func ComputeKey(query string, req Request, userFields []string) string {
	h := sha256.New()
	h.Write([]byte(normalizeQuery(query)))
	h.Write([]byte{0})

	tags := append([]string(nil), req.Tags...)
	sort.Strings(tags)
	for _, t := range tags {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(t))))
		h.Write([]byte{0})
	}
	h.Write([]byte{1})

	// The key must not depend on the declaration order of the whitelist.
	fields := append([]string(nil), userFields...)
	sort.Strings(fields)
	for _, f := range fields {
		if v, ok := req.User[f]; ok {
			h.Write([]byte(f))
			h.Write([]byte{0})
			h.Write([]byte(v))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeQuery lowercases and collapses whitespace so trivially different
// spellings of one question share a key.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
