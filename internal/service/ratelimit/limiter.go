package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultMaxKeys bounds the number of tracked keys.
const DefaultMaxKeys = 10000

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a per-key token bucket. Every key starts full. A bucket idle
// long enough to refill completely is dropped, and when MaxKeys are tracked
// the least recently used key is evicted.
type Limiter struct {
	mu         sync.Mutex
	m          map[string]*bucket
	capacity   float64
	refillRate float64 // tokens per second
	maxKeys    int
	idle       time.Duration
	lastSweep  time.Time
	clock      clock.Clock
}

// Option configures Limiter.
type Option func(*Limiter)

// WithClock sets the clock used for refills.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithMaxKeys caps the number of tracked keys.
func WithMaxKeys(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// New creates a limiter allowing burst requests per key, refilled by one
// token every refill.
func New(burst int, refill time.Duration, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		m:        make(map[string]*bucket),
		capacity: float64(burst),
		maxKeys:  DefaultMaxKeys,
		clock:    clock.New(),
	}
	if refill > 0 {
		l.refillRate = 1 / refill.Seconds()
		l.idle = time.Duration(burst) * refill
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.clock.Now()
	return l
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.idle > 0 && now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	b, ok := l.m[key]
	if !ok {
		if len(l.m) >= l.maxKeys {
			l.evictOldest()
		}
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	// refill
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.refillRate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
	}
	b.last = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// sweep drops buckets that would be full by now. Recreating them yields
// the same state.
func (l *Limiter) sweep(now time.Time) {
	for k, b := range l.m {
		if now.Sub(b.last) >= l.idle {
			delete(l.m, k)
		}
	}
	l.lastSweep = now
}

func (l *Limiter) evictOldest() {
	var (
		oldest string
		at     time.Time
		found  bool
	)
	for k, b := range l.m {
		if !found || b.last.Before(at) {
			oldest, at, found = k, b.last, true
		}
	}
	if found {
		delete(l.m, oldest)
	}
}
