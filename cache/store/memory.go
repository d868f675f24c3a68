package store

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/ragkit/model"
)

// Memory is an in-process Store with TTL support. It backs the WARM tier by
// default and works as a COLD stand-in for tests and single-node setups.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*model.CacheEntry

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once

	now func() time.Time // test hook
}

// NewMemory creates a memory store. If sweepEvery > 0 a background sweeper
// removes expired entries; otherwise expiry is enforced lazily on Get.
func NewMemory(sweepEvery time.Duration) *Memory {
	m := &Memory{
		entries:    make(map[string]*model.CacheEntry),
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	if sweepEvery > 0 {
		go m.sweepLoop()
	}
	return m
}

// Get returns a clone of the stored entry so callers can mutate bookkeeping
// without racing the store.
func (m *Memory) Get(ctx context.Context, key string) (*model.CacheEntry, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if e.Expired(m.now()) {
		m.mu.Lock()
		// Re-check under the write lock; a Set may have replaced it.
		if cur, ok := m.entries[key]; ok && cur.Expired(m.now()) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// Set stores a clone of entry.
func (m *Memory) Set(ctx context.Context, entry *model.CacheEntry) error {
	m.mu.Lock()
	m.entries[entry.Key] = entry.Clone()
	m.mu.Unlock()
	return nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Keys lists all unexpired keys.
func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if !e.Expired(now) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len returns the number of entries including not-yet-swept expired ones.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the background sweeper.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	now := m.now()
	m.mu.Lock()
	for k, e := range m.entries {
		if e.Expired(now) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}
