// backend/internal/application/cache/readcache.go
package cache

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// EntryState is the lifecycle of one cached read:
//
//	Fresh -> (ttl elapsed | Invalidate) -> Stale -> Get -> Fetching -> Fresh | Error
type EntryState string

const (
	StateMissing  EntryState = "missing"
	StateFresh    EntryState = "fresh"
	StateStale    EntryState = "stale"
	StateFetching EntryState = "fetching"
	StateError    EntryState = "error"
)

// FetchFunc loads the value behind one key.
type FetchFunc func(ctx context.Context) (any, error)

// TTLPolicy resolves the background staleness window per key family.
type TTLPolicy struct {
	Default  time.Duration
	Families map[string]time.Duration
}

func (p TTLPolicy) For(k Key) time.Duration {
	if d, ok := p.Families[k.Family()]; ok {
		return d
	}
	return p.Default
}

// DefaultTTLPolicy mirrors the read cadence of the mobile client.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Default: 30 * time.Second,
		Families: map[string]time.Duration{
			FamilyAssets:        30 * time.Second,
			FamilyAsset:         15 * time.Second,
			FamilyWalletBalance: 10 * time.Second,
			FamilyPlatformStats: 60 * time.Second,
		},
	}
}

type entry struct {
	key       Key
	value     any
	hasValue  bool
	err       error
	fetchedAt time.Time
	stale     bool
	gen       uint64
	fetching  int
}

// ReadCache memoizes reads by Key. Invalidate is its only mutation entry point
// for writers; readers go through Get.
type ReadCache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	ttl       TTLPolicy
	now       func() time.Time
	group     singleflight.Group
	observers []func([]Key)
}

type Option func(*ReadCache)

func WithClock(now func() time.Time) Option {
	return func(c *ReadCache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithTTLPolicy(p TTLPolicy) Option {
	return func(c *ReadCache) {
		c.ttl = p
	}
}

func New(opts ...Option) *ReadCache {
	c := &ReadCache{
		entries: make(map[string]*entry),
		ttl:     DefaultTTLPolicy(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnInvalidate registers an observer called with the keys passed to every
// Invalidate call. Observers run synchronously after the entries are marked.
func (c *ReadCache) OnInvalidate(fn func([]Key)) {
	if c == nil || fn == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Invalidate marks every cached entry matched by any of keys as stale and
// returns the entry keys it touched. Safe to call redundantly.
// When it returns, no Get can observe a value fetched before the call.
func (c *ReadCache) Invalidate(keys ...Key) []Key {
	if c == nil || len(keys) == 0 {
		return nil
	}

	c.mu.Lock()
	var touched []Key
	for _, e := range c.entries {
		for _, k := range keys {
			if e.key.HasPrefix(k) {
				e.stale = true
				e.gen++
				touched = append(touched, e.key)
				break
			}
		}
	}
	observers := append([]func([]Key){}, c.observers...)
	c.mu.Unlock()

	for _, fn := range observers {
		fn(keys)
	}
	return touched
}

// Get returns the memoized value for key while it is fresh, otherwise runs
// fetch once (concurrent callers for the same generation share the call).
// The shared fetch ignores the cancellation of whichever caller started it;
// each caller still stops waiting when its own ctx is done.
func (c *ReadCache) Get(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	id := key.id()

	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	if c.freshLocked(e) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	gen := e.gen
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		c.mu.Lock()
		e.fetching++
		c.mu.Unlock()

		val, ferr := fetch(fetchCtx)

		c.mu.Lock()
		defer c.mu.Unlock()
		e.fetching--
		if e.gen != gen {
			// invalidated mid-flight: hand the value to this caller but keep the entry stale
			if ferr == nil {
				log.Printf("[cache] drop in-flight result key=%s reason=invalidated", e.key)
			}
			return val, ferr
		}
		if ferr != nil {
			e.err = ferr
			e.stale = false
			return nil, ferr
		}
		e.value = val
		e.hasValue = true
		e.err = nil
		e.stale = false
		e.fetchedAt = c.now()
		return val, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State reports the lifecycle state of key.
func (c *ReadCache) State(key Key) EntryState {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.id()]
	if !ok {
		return StateMissing
	}
	switch {
	case e.fetching > 0:
		return StateFetching
	case e.stale:
		return StateStale
	case e.err != nil:
		return StateError
	case !e.hasValue:
		return StateMissing
	case c.freshLocked(e):
		return StateFresh
	default:
		return StateStale
	}
}

// Len is the number of tracked entries.
func (c *ReadCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every entry; used on shutdown and in tests.
func (c *ReadCache) Purge() {
	c.mu.Lock()
	for _, e := range c.entries {
		e.gen++
	}
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *ReadCache) freshLocked(e *entry) bool {
	if !e.hasValue || e.stale || e.err != nil {
		return false
	}
	ttl := c.ttl.For(e.key)
	if ttl > 0 && c.now().Sub(e.fetchedAt) >= ttl {
		return false
	}
	return true
}
