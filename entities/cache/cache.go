//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package cache implements the entity-keyed, loader-backed cache used by
// the policy enforcer and signal enrichment facade: size-and-TTL bounded,
// coalesces concurrent loads for the same key via singleflight, and
// supports invalidation.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Entry is one cached value: exists/revision/value, mirroring spec.md's
// Entry<V>.
type Entry[V any] struct {
	Exists   bool
	Revision int64
	Value    V
}

// Loader fetches the current Entry for key, or an error if unavailable.
type Loader[K comparable, V any] func(ctx context.Context, key K) (Entry[V], error)

type element[K comparable, V any] struct {
	key     K
	entry   Entry[V]
	expires time.Time
}

// Cache is a bounded, TTL-expiring, single-flight-coalesced map from K to
// Entry[V].
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	loader   Loader[K, V]
	group    singleflight.Group

	ll    *list.List // front = most recently used
	items map[K]*list.Element
}

// New constructs a Cache bounded to capacity entries, each expiring ttl
// after insertion, backed by loader.
func New[K comparable, V any](capacity int, ttl time.Duration, loader Loader[K, V]) *Cache[K, V] {
	return &Cache[K, V]{
		capacity: capacity,
		ttl:      ttl,
		loader:   loader,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
	}
}

// Get returns the cached entry for key, loading it (once, coalesced
// across concurrent callers) on miss or expiry. A loader failure
// propagates to every coalesced caller; nothing is cached on failure.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (Entry[V], error) {
	if entry, ok := c.peek(key); ok {
		return entry, nil
	}

	groupKey := fmt.Sprintf("%v", key)
	v, err, _ := c.group.Do(groupKey, func() (any, error) {
		// Re-check: another caller outside the singleflight window may
		// have populated the entry between our peek and this Do call.
		if entry, ok := c.peek(key); ok {
			return entry, nil
		}
		entry, err := c.loader(ctx, key)
		if err != nil {
			return Entry[V]{}, err
		}
		c.store(key, entry)
		return entry, nil
	})
	if err != nil {
		return Entry[V]{}, err
	}
	return v.(Entry[V]), nil
}

// Set inserts or replaces the cached entry for key directly, bypassing
// the loader. Used when a caller has already computed a fresher value
// (e.g. the enrichment facade after applying events incrementally).
func (c *Cache[K, V]) Set(key K, entry Entry[V]) {
	c.store(key, entry)
}

// Invalidate drops key from the cache unconditionally.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

func (c *Cache[K, V]) peek(key K) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Entry[V]{}, false
	}
	e := el.Value.(*element[K, V])
	if c.ttl > 0 && time.Now().After(e.expires) {
		c.ll.Remove(el)
		delete(c.items, key)
		return Entry[V]{}, false
	}
	c.ll.MoveToFront(el)
	return e.entry, true
}

func (c *Cache[K, V]) store(key K, entry Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := time.Time{}
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		el.Value.(*element[K, V]).entry = entry
		el.Value.(*element[K, V]).expires = expires
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&element[K, V]{key: key, entry: entry, expires: expires})
	c.items[key] = el

	if c.capacity > 0 {
		for len(c.items) > c.capacity {
			back := c.ll.Back()
			if back == nil {
				break
			}
			c.ll.Remove(back)
			delete(c.items, back.Value.(*element[K, V]).key)
		}
	}
}
