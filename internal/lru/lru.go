// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lru provides an LRU cache.
package lru

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Cache is an LRU cache. Entries may also expire after a period without
// access; see NewExpiring.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	size    int
	ttl     time.Duration    // zero means entries never expire
	now     func() time.Time // for testing
	entries map[K]*entry[V]
	tick    uint // increases every time an entry is used
}

type entry[V any] struct {
	lastUsed   uint      // the tick of the last operation
	lastAccess time.Time // the time of the last operation, if c.ttl > 0
	v          V
}

// New returns a new Cache. Size must be positive or it will panic.
func New[K comparable, V any](size int) *Cache[K, V] {
	return NewExpiring[K, V](size, 0)
}

// NewExpiring returns a new Cache whose entries are dropped once they have
// not been read or written for ttl. Size must be positive or it will panic.
func NewExpiring[K comparable, V any](size int, ttl time.Duration) *Cache[K, V] {
	if size < 1 {
		panic(fmt.Errorf("lru.New called with non-positive size %v", size))
	}
	return &Cache[K, V]{
		size:    size,
		ttl:     ttl,
		now:     time.Now,
		entries: map[K]*entry[V]{},
	}
}

func (c *Cache[K, V]) expired(e *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.lastAccess) >= c.ttl
}

// Get gets the entry for k in the Cache.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	entry, ok := c.entries[k]
	if !ok {
		return zero, false
	}
	now := c.now()
	if c.expired(entry, now) {
		delete(c.entries, k)
		return zero, false
	}
	c.tick++
	entry.lastUsed = c.tick
	entry.lastAccess = now
	return entry.v, true
}

// Put puts in an entry for k, v in Cache, evicting
// the least recently used entry if necessary.
func (c *Cache[K, V]) Put(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	_, ok := c.entries[k]
	if !ok {
		// k not already in c.entries. We need to evict the least recently
		// used entry.
		if c.size < 1 {
			panic("attempting to insert into an uninitialized cache.")
		}
		if len(c.entries) > c.size {
			panic(fmt.Errorf("size of cache, %d, has grown beyond size limit %d", len(c.entries), c.size))
		}
		if len(c.entries) == c.size {
			c.evict(now)
		}
	}
	c.tick++
	c.entries[k] = &entry[V]{lastUsed: c.tick, lastAccess: now, v: v}
}

// evict removes every expired entry. If none has expired, it removes the
// least recently used one.
func (c *Cache[K, V]) evict(now time.Time) {
	var oldestTick uint = math.MaxUint
	var oldestKey K
	removed := false
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
			removed = true
			continue
		}
		if e.lastUsed <= oldestTick {
			oldestTick = e.lastUsed
			oldestKey = k
		}
	}
	if !removed {
		delete(c.entries, oldestKey)
	}
}

// Delete removes the entry for k, if any.
func (c *Cache[K, V]) Delete(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, k)
}

// Len returns the number of entries, including any that have expired but
// not yet been removed.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
