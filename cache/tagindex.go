package cache

import (
	"path"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// tagIndex maps invalidation tags to the keys written by this process.
// Tag membership is kept in roaring bitmaps over dense key ordinals.
//
// The index is an accelerator, not the source of truth: pattern invalidation
// additionally consults the tier stores' key listings so entries written by
// other processes are still found.
type tagIndex struct {
	mu     sync.Mutex
	nextID uint32
	ids    map[string]uint32 // key -> ordinal
	keys   map[uint32]string // ordinal -> key
	tags   map[string]*roaring.Bitmap
}

func newTagIndex() *tagIndex {
	return &tagIndex{
		ids:  make(map[string]uint32),
		keys: make(map[uint32]string),
		tags: make(map[string]*roaring.Bitmap),
	}
}

func (ti *tagIndex) add(key string, tags []string) {
	if len(tags) == 0 {
		return
	}
	ti.mu.Lock()
	defer ti.mu.Unlock()

	id, ok := ti.ids[key]
	if !ok {
		id = ti.nextID
		ti.nextID++
		ti.ids[key] = id
		ti.keys[id] = key
	}
	for _, tag := range tags {
		bm, ok := ti.tags[tag]
		if !ok {
			bm = roaring.New()
			ti.tags[tag] = bm
		}
		bm.Add(id)
	}
}

func (ti *tagIndex) remove(key string) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	id, ok := ti.ids[key]
	if !ok {
		return
	}
	for tag, bm := range ti.tags {
		bm.Remove(id)
		if bm.IsEmpty() {
			delete(ti.tags, tag)
		}
	}
	delete(ti.ids, key)
	delete(ti.keys, id)
}

// keysForTags returns the union of keys carrying any of the tags.
func (ti *tagIndex) keysForTags(tags []string) []string {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	union := roaring.New()
	for _, tag := range tags {
		if bm, ok := ti.tags[tag]; ok {
			union.Or(bm)
		}
	}
	out := make([]string, 0, union.GetCardinality())
	it := union.Iterator()
	for it.HasNext() {
		out = append(out, ti.keys[it.Next()])
	}
	return out
}

// keysMatching returns indexed keys matching the glob pattern.
func (ti *tagIndex) keysMatching(pattern string) []string {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	var out []string
	for key := range ti.ids {
		if globMatch(pattern, key) {
			out = append(out, key)
		}
	}
	return out
}

func globMatch(pattern, key string) bool {
	ok, err := path.Match(pattern, key)
	return err == nil && ok
}
