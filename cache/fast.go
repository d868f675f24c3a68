package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/ragkit/model"
)

// fastTier is the in-process FAST cache: LRU by last access, bounded by
// entry count, no TTL. Evicted payloads are scrubbed before the entry is
// dropped. Scrubbing is best-effort hygiene, not a security control.
type fastTier struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type fastEntry struct {
	key   string
	entry *model.CacheEntry
}

func newFastTier(capacity int) *fastTier {
	return &fastTier{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// get returns a copy of the entry and bumps recency and access bookkeeping.
// Callers only ever see clones; the eviction scrub touches tier-owned memory
// and nothing a caller may still hold.
func (f *fastTier) get(key string, now time.Time) (*model.CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	el, ok := f.items[key]
	if !ok {
		f.misses.Add(1)
		return nil, false
	}
	f.hits.Add(1)
	f.evictList.MoveToFront(el)
	e := el.Value.(*fastEntry).entry
	e.AccessCount++
	e.LastAccessed = now
	return e.Clone(), true
}

// peek returns a copy of the entry without touching recency or counters.
func (f *fastTier) peek(key string) (*model.CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.items[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*fastEntry).entry.Clone(), true
}

// set stores the entry, evicting LRU victims when over capacity. The evicted
// keys are returned so the caller can drop dependent bookkeeping.
func (f *fastTier) set(entry *model.CacheEntry) (evicted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry.Tier = model.TierFast
	if el, ok := f.items[entry.Key]; ok {
		f.evictList.MoveToFront(el)
		el.Value.(*fastEntry).entry = entry
		return nil
	}
	el := f.evictList.PushFront(&fastEntry{key: entry.Key, entry: entry})
	f.items[entry.Key] = el

	for f.evictList.Len() > f.capacity {
		if key, ok := f.evictOldest(); ok {
			evicted = append(evicted, key)
		}
	}
	return evicted
}

func (f *fastTier) delete(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.items[key]
	if !ok {
		return false
	}
	f.removeElement(el)
	return true
}

func (f *fastTier) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.items))
	for k := range f.items {
		out = append(out, k)
	}
	return out
}

func (f *fastTier) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fastTier) evictOldest() (string, bool) {
	el := f.evictList.Back()
	if el == nil {
		return "", false
	}
	key := el.Value.(*fastEntry).key
	f.evictions.Add(1)
	f.removeElement(el)
	return key, true
}

func (f *fastTier) removeElement(el *list.Element) {
	fe := el.Value.(*fastEntry)
	scrub(fe.entry)
	fe.entry = nil
	f.evictList.Remove(el)
	delete(f.items, fe.key)
}

// scrub zeroes the payload bytes and drops references. The allocator decides
// when the memory actually goes away.
func scrub(e *model.CacheEntry) {
	if e == nil {
		return
	}
	for i := range e.Payload {
		e.Payload[i] = 0
	}
	e.Payload = nil
	e.Metadata = nil
	e.Tags = nil
}
