package defaults

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CategoryDefaults is the cached resolution of one category.
type CategoryDefaults struct {
	// Requested is the lowercase category name that was asked for.
	Requested string

	// ManifestsFrom and AuthFrom name the category whose rows were used.
	// They differ from Requested when the default category was substituted.
	ManifestsFrom string
	AuthFrom      string

	Entries  []Entry
	Auth     []AuthEntry
	LoadedAt time.Time
}

// Cache holds resolved categories keyed by lowercase name. Entries live
// until Clear or Invalidate; there is no expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CategoryDefaults
	version uint64
	now     func() time.Time
	group   singleflight.Group
}

// NewCache creates an empty cache. A nil clock defaults to time.Now.
func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries: make(map[string]*CategoryDefaults),
		now:     now,
	}
}

// Version increases on every Clear and Invalidate.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Len returns the number of cached categories.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the cached entry for a category, if any.
func (c *Cache) Get(category string) (*CategoryDefaults, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cd, ok := c.entries[cacheKey(category)]
	return cd, ok
}

// Clear drops every entry. Readers holding a previously returned entry
// keep using it; the map itself is swapped, never emptied in place.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CategoryDefaults)
	c.version++
}

// Invalidate drops one category. Entries that fell back to the invalidated
// category are dropped too, since their content came from it.
func (c *Cache) Invalidate(category string) {
	key := cacheKey(category)

	c.mu.Lock()
	defer c.mu.Unlock()

	next := make(map[string]*CategoryDefaults, len(c.entries))
	for k, cd := range c.entries {
		if k == key || cd.ManifestsFrom == key || cd.AuthFrom == key {
			continue
		}
		next[k] = cd
	}
	c.entries = next
	c.version++
}

// getOrLoad returns the cached entry or runs load once across concurrent
// callers. A load that races with Clear/Invalidate is returned to its
// callers but not stored.
func (c *Cache) getOrLoad(category string, load func(key string) (*CategoryDefaults, error)) (*CategoryDefaults, error) {
	key := cacheKey(category)

	c.mu.RLock()
	cd, ok := c.entries[key]
	version := c.version
	c.mu.RUnlock()
	if ok {
		return cd, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%d/%s", version, key), func() (any, error) {
		cd, err := load(key)
		if err != nil {
			return nil, err
		}
		cd.LoadedAt = c.now()

		c.mu.Lock()
		if c.version == version {
			c.entries[key] = cd
		}
		c.mu.Unlock()
		return cd, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CategoryDefaults), nil
}

func cacheKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
