// Package ratelimit provides per-caller token buckets for the response
// cache. Each caller gets an independent bucket; buckets idle past a horizon
// are reclaimed.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the token bucket parameters shared by all callers.
type Config struct {
	// Capacity is the bucket size (burst). Tokens never exceed it.
	Capacity int
	// RefillPerMinute is the steady refill rate.
	RefillPerMinute float64
	// IdleHorizon reclaims buckets not touched for this long.
	// Defaults to 1 hour.
	IdleHorizon time.Duration
}

// DefaultConfig returns the default rate limit parameters.
func DefaultConfig() Config {
	return Config{
		Capacity:        60,
		RefillPerMinute: 60,
		IdleHorizon:     time.Hour,
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks one token bucket per caller identity.
//
// The registry mutex makes bucket mutation atomic per caller; x/time/rate
// does the token arithmetic (refill proportional to elapsed time, capped at
// capacity).
type Limiter struct {
	cfg Config

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time

	blocked atomic.Int64

	now func() time.Time // test hook
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}
	if cfg.RefillPerMinute <= 0 {
		cfg.RefillPerMinute = DefaultConfig().RefillPerMinute
	}
	if cfg.IdleHorizon <= 0 {
		cfg.IdleHorizon = time.Hour
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token from caller's bucket, reporting whether the call
// may proceed. A new caller starts with a full bucket.
func (l *Limiter) Allow(caller string) bool {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[caller]
	if !ok {
		b = &bucket{
			lim: rate.NewLimiter(rate.Limit(l.cfg.RefillPerMinute/60.0), l.cfg.Capacity),
		}
		l.buckets[caller] = b
	}
	b.lastSeen = now
	l.sweepLocked(now)
	l.mu.Unlock()

	if !b.lim.AllowN(now, 1) {
		l.blocked.Add(1)
		return false
	}
	return true
}

// sweepLocked drops buckets idle past the horizon. Runs at most once per
// half horizon so the map scan stays off the hot path.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.IdleHorizon/2 {
		return
	}
	l.lastSweep = now
	for caller, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.cfg.IdleHorizon {
			delete(l.buckets, caller)
		}
	}
}

// Blocked returns how many calls were rejected so far.
func (l *Limiter) Blocked() int64 {
	return l.blocked.Load()
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Tokens returns the current token count for caller, capacity for unknown
// callers. Intended for stats and tests.
func (l *Limiter) Tokens(caller string) float64 {
	l.mu.Lock()
	b, ok := l.buckets[caller]
	l.mu.Unlock()
	if !ok {
		return float64(l.cfg.Capacity)
	}
	return b.lim.TokensAt(l.now())
}
