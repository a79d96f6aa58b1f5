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

package policy

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ATNoG/eclipse-ditto/entities/cache"
	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/monitoring"
)

// PolicyLoader fetches the current Policy for a PolicyId, or reports it
// as nonexistent.
type PolicyLoader func(ctx context.Context, id twinid.ID) (models.Policy, bool, error)

// Cache wraps entities/cache with Enforcer as the cached value, per
// spec.md §4.1 "cache-projected value converts full PolicyEnforcer to an
// Enforcer capability narrowing" — here the cache directly holds the
// compiled, stateless Enforcer.
type Cache struct {
	cache   *cache.Cache[twinid.ID, *Enforcer]
	logger  *logrus.Entry
	metrics *monitoring.Metrics
}

// NewCache constructs a policy Enforcer cache backed by load.
func NewCache(capacity int, ttl time.Duration, load PolicyLoader, logger *logrus.Entry, metrics *monitoring.Metrics) *Cache {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	loader := func(ctx context.Context, id twinid.ID) (cache.Entry[*Enforcer], error) {
		p, exists, err := load(ctx, id)
		if err != nil {
			return cache.Entry[*Enforcer]{}, err
		}
		if !exists {
			return cache.Entry[*Enforcer]{Exists: false}, nil
		}
		return cache.Entry[*Enforcer]{
			Exists:   true,
			Revision: p.Revision,
			Value:    Compile(p, logger.WithField("policyId", id.String())),
		}, nil
	}
	return &Cache{
		cache:   cache.New(capacity, ttl, loader),
		logger:  logger,
		metrics: metrics,
	}
}

// Get returns the Enforcer for policyID, applying the reload policy of
// spec.md §4.1: reload if invalidate is set, the entry is missing or
// nonexistent, or its revision is stale relative to requiredRevision.
//
// Cache-load failures are logged and treated as "nonexistent enforcer"
// (spec.md §4.4 failure policy), never propagated to poison the batch.
func (c *Cache) Get(ctx context.Context, policyID twinid.ID, requiredRevision int64, invalidate bool, retryDelay time.Duration) (*Enforcer, bool) {
	entry, err := cache.GetWithReload(ctx, c.cache, policyID, requiredRevision, invalidate, retryDelay)
	if err != nil {
		c.logger.WithError(err).WithField("policyId", policyID.String()).Warn("policy load failed, treating as nonexistent enforcer")
		c.observeMiss()
		return nil, false
	}
	if !entry.Exists {
		c.observeMiss()
		return nil, false
	}
	c.observeHit()
	return entry.Value, true
}

// Invalidate drops policyID from the cache.
func (c *Cache) Invalidate(policyID twinid.ID) {
	c.cache.Invalidate(policyID)
}

func (c *Cache) observeHit() {
	if c.metrics != nil {
		c.metrics.CacheHits.WithLabelValues("policy").Inc()
	}
}

func (c *Cache) observeMiss() {
	if c.metrics != nil {
		c.metrics.CacheMisses.WithLabelValues("policy").Inc()
	}
}
