package cache

import (
	"container/list"
	"encoding/hex"
	"hash/fnv"
	"sync"
	"time"
)

// Cache is a TTL cache with an LRU cap, safe for concurrent use. The assist
// layer keeps suggestion and summary results here so repeated requests for an
// unchanged conversation tail do not re-hit the model API.
type Cache struct {
	mu       sync.Mutex
	items    map[string]*entry
	order    *list.List // MRU at front
	maxItems int        // 0 = unlimited
}

type entry struct {
	key  string
	val  any
	exp  int64 // unix nanos; 0 = no expiry
	elem *list.Element
}

// New returns a cache holding at most maxItems entries (0 for unlimited) and
// starts a background sweep for expired entries.
func New(maxItems int) *Cache {
	c := &Cache{items: make(map[string]*entry), order: list.New(), maxItems: maxItems}
	go c.sweep(time.Minute)
	return c
}

// Get returns the value for key if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	now := time.Now().UnixNano()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if e.exp != 0 && e.exp < now {
		c.removeLocked(e)
		return nil, false
	}
	c.order.MoveToFront(e.elem)
	return e.val, true
}

// Set stores a value; ttl <= 0 means no expiry.
func (c *Cache) Set(key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		e.val, e.exp = v, exp
		c.order.MoveToFront(e.elem)
		return
	}
	e := &entry{key: key, val: v, exp: exp}
	e.elem = c.order.PushFront(e)
	c.items[key] = e
	for c.maxItems > 0 && c.order.Len() > c.maxItems {
		if back := c.order.Back(); back != nil {
			c.removeLocked(back.Value.(*entry))
		}
	}
}

// Delete removes a key if present.
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.removeLocked(e)
	}
}

// Len reports the number of live entries, counting expired but unswept ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.items, e.key)
}

func (c *Cache) sweep(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for range t.C {
		now := time.Now().UnixNano()
		c.mu.Lock()
		for _, e := range c.items {
			if e.exp != 0 && e.exp < now {
				c.removeLocked(e)
			}
		}
		c.mu.Unlock()
	}
}

// Key builds a compact stable key from parts.
func Key(parts ...string) string {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
