package agenda

import (
	"context"
	"sync"
	"time"

	"github.com/warp/agenda/generic"
)

// DefaultCacheTTL bounds how stale a cached read may be.
const DefaultCacheTTL = 5 * time.Second

// Cache holds the last snapshot and directory for read paths. Admission
// never goes through it. Invalidate drops both entries; a load that was
// in flight when Invalidate ran is returned to its caller but not stored.
type Cache struct {
	mu    sync.Mutex
	ttl   time.Duration
	clock generic.Clock
	rec   Recorder
	gen   uint64

	snapshot  entry[[]Reservation]
	directory entry[*Directory]
}

type entry[T any] struct {
	value  T
	loaded time.Time
	ok     bool
}

// NewCache creates a cache. A ttl of zero disables caching.
func NewCache(ttl time.Duration, clock generic.Clock, rec Recorder) *Cache {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Cache{ttl: ttl, clock: clock, rec: rec}
}

// Snapshot returns the cached reservations or calls load.
func (c *Cache) Snapshot(ctx context.Context, load func(context.Context) ([]Reservation, error)) ([]Reservation, error) {
	v, err := cached(ctx, c, &c.snapshot, "snapshot", load)
	if err != nil {
		return nil, err
	}
	out := make([]Reservation, len(v))
	copy(out, v)
	return out, nil
}

// Directory returns the cached directory or calls load. The directory is
// never mutated after BuildDirectory, so it is shared as is.
func (c *Cache) Directory(ctx context.Context, load func(context.Context) (*Directory, error)) (*Directory, error) {
	return cached(ctx, c, &c.directory, "directory", load)
}

// Invalidate forgets both entries.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.snapshot = entry[[]Reservation]{}
	c.directory = entry[*Directory]{}
}

func cached[T any](ctx context.Context, c *Cache, e *entry[T], name string, load func(context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if e.ok && c.clock.Now().Sub(e.loaded) < c.ttl {
		v := e.value
		c.mu.Unlock()
		c.rec.ObserveCache(name, true)
		return v, nil
	}
	gen := c.gen
	c.mu.Unlock()
	c.rec.ObserveCache(name, false)

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	c.mu.Lock()
	if c.gen == gen && c.ttl > 0 {
		*e = entry[T]{value: v, loaded: c.clock.Now(), ok: true}
	}
	c.mu.Unlock()
	return v, nil
}
