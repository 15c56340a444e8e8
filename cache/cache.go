// Package cache keeps authentication-derived server responses consistent
// across mutations without a full re-fetch of everything. It is an explicit
// key/value cache with a three-state freshness machine plus a Coordinator
// that encodes which mutations overwrite which entries and which merely
// mark them stale.
package cache

import (
	"strings"
	"sync"
)

// Freshness describes how much an entry can be trusted.
type Freshness int

const (
	// Absent means the key has never been populated.
	Absent Freshness = iota
	// Fresh means the value is the most recent server response.
	Fresh
	// Stale means a mutation is known to have affected this entry
	// indirectly; the value is kept but must be re-fetched before
	// being trusted again.
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "absent"
	}
}

// Entry is a cached value together with its freshness.
type Entry struct {
	Value     any
	Freshness Freshness
}

// Cache is a thread-safe key-addressed cache. Writers are last-write-wins;
// no versioning token is kept for concurrent mutations of the same key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Get returns the entry for key. Missing keys report Absent.
func (c *Cache) Get(key string) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return Entry{Freshness: Absent}
	}
	return e
}

// Set stores value under key and marks it Fresh.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Value: value, Freshness: Fresh}
}

// Invalidate marks the entry for key Stale. The value is kept so callers
// can still render it while a re-fetch is in flight. Invalidating an
// absent key is a no-op.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(key)
}

func (c *Cache) invalidateLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	e.Freshness = Stale
	c.entries[key] = e
}

// InvalidatePrefix marks every entry whose key equals prefix or lives
// under it (prefix + "/") Stale.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidatePrefixLocked(prefix)
}

func (c *Cache) invalidatePrefixLocked(prefix string) {
	sub := prefix + "/"
	for k, e := range c.entries {
		if k != prefix && !strings.HasPrefix(k, sub) {
			continue
		}
		e.Freshness = Stale
		c.entries[k] = e
	}
}

// Delete removes the entry for key entirely.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of entries, regardless of freshness.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
