/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


/*
Package cache provides result caching for dataset reads.

Cache Overview:
===============

Computing property ranges scans every column of a dataset, so the result is
kept per dataset file version. Keys carry the file's modification time and
size, so a rewritten file misses. Entries are also tagged with the dataset
path; replacing a dataset invalidates every entry carrying its tag.

Features:
=========

  - LRU eviction when the cache is full
  - TTL-based expiration
  - Tag-based invalidation on dataset replacement
  - Hit and miss statistics

Usage Example:
==============

	c := cache.New[map[string]query.Range](cache.DefaultConfig())
	defer c.Close()

	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	if props, ok := c.Get(key); ok {
		return props
	}
	props := compute(path)
	c.Set(key, props, path)
*/
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config holds the configuration for a cache.
type Config struct {
	// MaxEntries is the maximum number of cached results.
	// When exceeded, the least recently used entries are evicted.
	MaxEntries int

	// TTL is the time-to-live for cached entries.
	TTL time.Duration

	// Enabled controls whether caching is active.
	Enabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 64,
		TTL:        10 * time.Minute,
		Enabled:    true,
	}
}

type entry[V any] struct {
	key       string
	value     V
	tags      []string
	expiresAt time.Time
	element   *list.Element
}

// Cache caches values with LRU eviction and TTL expiration.
type Cache[V any] struct {
	config Config

	mu    sync.Mutex
	items map[string]*entry[V]
	lru   *list.List

	// tagIndex maps a tag to the keys carrying it.
	tagIndex map[string]map[string]struct{}

	hits   int64
	misses int64

	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// New creates a cache and starts its expiry sweeper. Close stops it.
func New[V any](config Config) *Cache[V] {
	if config.MaxEntries <= 0 {
		config.MaxEntries = 64
	}
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}

	c := &Cache[V]{
		config:   config,
		items:    make(map[string]*entry[V]),
		lru:      list.New(),
		tagIndex: make(map[string]map[string]struct{}),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go c.cleanupExpired()
	return c
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled {
		return zero, false
	}

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.removeEntry(e)
		c.misses++
		return zero, false
	}

	c.lru.MoveToFront(e.element)
	c.hits++
	return e.value, true
}

// Set stores value under key. Tags name the datasets the value was computed
// from.
func (c *Cache[V]) Set(key string, value V, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Enabled {
		return
	}

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
	}
	for len(c.items) >= c.config.MaxEntries {
		c.evictOldest()
	}

	e := &entry[V]{
		key:       key,
		value:     value,
		tags:      tags,
		expiresAt: c.now().Add(c.config.TTL),
	}
	e.element = c.lru.PushFront(e)
	c.items[key] = e

	for _, tag := range tags {
		if c.tagIndex[tag] == nil {
			c.tagIndex[tag] = make(map[string]struct{})
		}
		c.tagIndex[tag][key] = struct{}{}
	}
}

// Invalidate removes every entry carrying tag.
func (c *Cache[V]) Invalidate(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.tagIndex[tag] {
		if e, ok := c.items[key]; ok {
			c.removeEntry(e)
		}
	}
	delete(c.tagIndex, tag)
}

// removeEntry removes an entry (must hold lock).
func (c *Cache[V]) removeEntry(e *entry[V]) {
	delete(c.items, e.key)
	c.lru.Remove(e.element)

	for _, tag := range e.tags {
		if keys, ok := c.tagIndex[tag]; ok {
			delete(keys, e.key)
			if len(keys) == 0 {
				delete(c.tagIndex, tag)
			}
		}
	}
}

// evictOldest removes the least recently used entry (must hold lock).
func (c *Cache[V]) evictOldest() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.removeEntry(elem.Value.(*entry[V]))
}

func (c *Cache[V]) cleanupExpired() {
	ticker := time.NewTicker(c.config.TTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for _, e := range c.items {
				if now.After(e.expiresAt) {
					c.removeEntry(e)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the expiry sweeper.
func (c *Cache[V]) Close() {
	c.once.Do(func() { close(c.done) })
}

// Stats holds cache statistics.
type Stats struct {
	Hits       int64
	Misses     int64
	Entries    int
	MaxEntries int
	HitRate    float64
}

// Stats returns current cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Entries:    len(c.items),
		MaxEntries: c.config.MaxEntries,
		HitRate:    hitRate,
	}
}

// SetEnabled enables or disables the cache.
func (c *Cache[V]) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Enabled = enabled
}
