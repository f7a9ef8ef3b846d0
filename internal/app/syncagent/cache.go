package syncagent

import (
	"context"
	"sync"
)

// FetchFunc loads a view's authoritative data from the store.
type FetchFunc func(ctx context.Context) (any, error)

type view struct {
	fetch   FetchFunc
	data    any
	loaded  bool
	stale   bool
	fetches int
}

// Cache holds per-view cached reads with pull-based refresh: an
// invalidation only marks a view stale, and the next Get re-fetches.
// Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	views map[string]*view
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{views: make(map[string]*view)}
}

// Register adds a view under its name. Re-registering replaces the
// fetcher and discards any cached value.
func (c *Cache) Register(name string, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[name] = &view{fetch: fetch}
}

// Get returns the view's data, re-fetching only when the view has never
// loaded or has been invalidated. A fresh cached value is returned as is.
func (c *Cache) Get(ctx context.Context, name string) (any, error) {
	c.mu.Lock()
	v, ok := c.views[name]
	if !ok {
		c.mu.Unlock()
		return nil, errUnknownView(name)
	}
	if v.loaded && !v.stale {
		data := v.data
		c.mu.Unlock()
		return data, nil
	}
	fetch := v.fetch
	c.mu.Unlock()

	// Fetch outside the lock; a slow store must not block invalidations
	// or other views.
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	v.data = data
	v.loaded = true
	v.stale = false
	v.fetches++
	c.mu.Unlock()
	return data, nil
}

// Invalidate marks the named view stale. Unknown names are ignored; the
// client may simply not hold that view.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[name]; ok {
		v.stale = true
	}
}

// InvalidateAll marks every view stale (used on disconnect, when the
// cache's age becomes unknowable).
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range c.views {
		v.stale = true
	}
}

// Stale reports whether the named view is currently marked stale (or has
// never been loaded).
func (c *Cache) Stale(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[name]
	if !ok {
		return false
	}
	return !v.loaded || v.stale
}

// Fetches returns how many times the named view has been fetched.
func (c *Cache) Fetches(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[name]; ok {
		return v.fetches
	}
	return 0
}

type errUnknownView string

func (e errUnknownView) Error() string { return "unknown view: " + string(e) }
