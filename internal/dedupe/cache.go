// ABOUTME: Thread-safe TTL cache for deduplicating realtime message notifications.
// ABOUTME: Bounded in size with O(1) oldest-entry eviction via a linked list.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry pairs an expiry deadline with the key's position in the age list.
type entry struct {
	expiresAt time.Time
	element   *list.Element
}

// Cache tracks message ids that have already been observed so duplicate
// notifications from an at-least-once transport can be dropped. Entries
// expire after a TTL and the cache never grows past maxSize; when full, the
// oldest entry is evicted.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	age     *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache with the given TTL and maximum size. A background
// goroutine sweeps expired entries once a minute until Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		age:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Observe atomically checks whether key has been seen and records it if not.
// Returns true if the key was already present and unexpired (a duplicate),
// false if it is new and is now recorded.
func (c *Cache) Observe(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		return true
	}

	c.recordLocked(key, now)
	return false
}

// Seen reports whether key is present and unexpired without recording it.
func (c *Cache) Seen(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return ok && now.Before(e.expiresAt)
}

// Record marks key as seen, refreshing its TTL if already present.
func (c *Cache) Record(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordLocked(key, time.Now())
}

// recordLocked requires c.mu to be held.
func (c *Cache) recordLocked(key string, now time.Time) {
	if e, ok := c.entries[key]; ok {
		e.expiresAt = now.Add(c.ttl)
		c.age.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		if front := c.age.Front(); front != nil {
			oldest, _ := front.Value.(string)
			c.age.Remove(front)
			delete(c.entries, oldest)
		}
	}

	c.entries[key] = &entry{
		expiresAt: now.Add(c.ttl),
		element:   c.age.PushBack(key),
	}
}

// Len returns the number of tracked keys, including expired ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweep periodically drops expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.dropExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) dropExpired() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var next *list.Element
	for el := c.age.Front(); el != nil; el = next {
		next = el.Next()
		key, _ := el.Value.(string)
		e := c.entries[key]
		if e != nil && now.Before(e.expiresAt) {
			// The age list is not strictly expiry-ordered after refreshes,
			// so keep scanning instead of stopping at the first live entry.
			continue
		}
		c.age.Remove(el)
		delete(c.entries, key)
	}
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
