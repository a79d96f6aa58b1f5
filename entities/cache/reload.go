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

package cache

import (
	"context"
	"time"
)

// ShouldReload decides, per spec.md §4.1, whether the policy enforcer
// cache must reload before answering a request: only on the first
// iteration, and only if invalidation was requested, the entry is
// missing/nonexistent, or it is older than requiredRevision.
func ShouldReload[V any](entry Entry[V], hasEntry bool, requiredRevision int64, invalidate bool, iteration int) bool {
	if iteration != 0 {
		return false
	}
	if invalidate {
		return true
	}
	if !hasEntry {
		return true
	}
	if !entry.Exists {
		return true
	}
	return entry.Revision < requiredRevision
}

// GetWithReload implements the single-reload-attempt flow: Get, check
// ShouldReload, and if needed Invalidate + re-Get once after delay.
func GetWithReload[K comparable, V any](ctx context.Context, c *Cache[K, V], key K, requiredRevision int64, invalidate bool, delay time.Duration) (Entry[V], error) {
	entry, err := c.Get(ctx, key)
	hasEntry := err == nil

	if !ShouldReload(entry, hasEntry, requiredRevision, invalidate, 0) {
		return entry, err
	}

	c.Invalidate(key)
	if delay > 0 {
		select {
		case <-ctx.Done():
			return Entry[V]{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return c.Get(ctx, key)
}
