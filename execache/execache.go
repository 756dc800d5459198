// Package execache memoizes results of idempotent read operations for a
// bounded time. Entries expire lazily on read; an optional background sweep
// reclaims memory for entries nobody reads again.
package execache

import (
	"context"
	"sync"
	"time"

	"github.com/supaconn/supaconn/errors"
)

var (
	ErrNoEntry      = errors.New("no entry")
	ErrEntryExpired = errors.New("entry expired")
)

const (
	// Bypass skips the cache entirely: the computation always runs and its
	// result is not stored.
	Bypass time.Duration = 0
	// NoExpiry keeps an entry for the remaining process lifetime, unless a
	// later store for the same key overwrites it.
	NoExpiry time.Duration = -1
)

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expired(now time.Time) bool {
	if e.ttl < 0 {
		return false
	}
	return !now.Before(e.storedAt.Add(e.ttl))
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	now        func() time.Time
	sweepEvery time.Duration
	stopSweep  chan struct{}
	closeOnce  sync.Once
}

type Option func(*Cache)

// WithClock replaces the time source, used by tests to simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithSweepInterval runs a background goroutine that drops expired entries
// every d. Without it expiry is only checked on read, which is correct but
// lets entries for abandoned keys linger.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) { c.sweepEvery = d }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: map[string]entry{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sweepEvery > 0 {
		c.stopSweep = make(chan struct{})
		go c.sweep()
	}
	return c
}

// Close stops the background sweep, if any. The cache stays usable.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		if c.stopSweep != nil {
			close(c.stopSweep)
		}
	})
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, e := range c.entries {
				if e.expired(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Remember stores value under key, overwriting any prior entry. A negative
// ttl means the entry never expires.
func (c *Cache) Remember(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}
	return nil
}

// Get returns the stored value for key, ErrNoEntry when nothing was stored,
// or ErrEntryExpired when the entry's ttl has elapsed (the entry is dropped).
func (c *Cache) Get(ctx context.Context, key string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrNoEntry
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, ErrEntryExpired
	}
	return e.value, nil
}

// Forget drops the entry for key, if any.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetOrCompute returns the cached value for key when present and not expired;
// otherwise it invokes compute, stores the result and returns it.
//
// A ttl of Bypass disables the cache for this call: compute always runs and
// nothing is stored. A ttl of NoExpiry caches the result forever.
//
// compute runs outside the cache lock, so two concurrent misses on the same
// key may both invoke it; the later store wins. A failed compute propagates
// its error unchanged and never populates the cache.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if ttl == Bypass {
		return compute(ctx)
	}

	if v, err := c.Get(ctx, key); err == nil {
		value, ok := v.(T)
		if ok {
			return value, nil
		}
		// A value of another type was stored under this key. Treat it as a
		// miss and overwrite below.
	}

	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if rErr := c.Remember(ctx, key, value, ttl); rErr != nil {
		return value, errors.Wrap(rErr, "error in storing computed value")
	}
	return value, nil
}
