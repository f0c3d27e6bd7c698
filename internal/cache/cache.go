// © 2023 Microglot LLC
//
// SPDX-License-Identifier: Apache-2.0

// Package cache records which UDFs have been compiled successfully.
//
// Membership is monotonic: a key, once added, stays for the lifetime of the
// Cache. There is no removal and no invalidation when source code changes. A
// process restart is the only way to force a recompile.
package cache

import (
	"sort"
	"sync"
)

type Option func(c *Cache)

// WithCapacity bounds the number of keys held. Once full, new keys are
// refused rather than evicting old ones. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// Cache is a concurrent-safe set of compiled cache keys.
type Cache struct {
	mu       sync.RWMutex
	keys     map[string]struct{}
	capacity int
}

func New(opts ...Option) *Cache {
	c := &Cache{
		keys: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.keys[key]
	return ok
}

// MarkCompiled adds key to the set. Marking a present key is a no-op. It
// returns false only when the key is absent and the cache is at capacity.
func (c *Cache) MarkCompiled(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.keys[key]; ok {
		return true
	}
	if c.capacity > 0 && len(c.keys) >= c.capacity {
		return false
	}
	c.keys[key] = struct{}{}
	return true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Keys returns the cached keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, k)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
