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

// Package enrichment implements the signal enrichment facade of spec.md
// §4.3: RetrieveThing(twinId, knownEvents, expectedRevision), with
// single-flight-coalesced caching and incremental event application when
// the cached snapshot aligns with the requested events.
package enrichment

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ATNoG/eclipse-ditto/entities/cache"
	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/monitoring"
)

// FullFetcher issues a full sudoRetrieveThing fetch (spec.md §6) for
// twinID, returning ok=false if the twin does not exist.
type FullFetcher func(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, error)

// Facade is the signal enrichment facade: a cache of the last-known twin
// snapshot, incrementally advanced by events when possible, falling back
// to a full fetch otherwise.
type Facade struct {
	cache   *cache.Cache[twinid.ID, *models.Twin]
	fetch   FullFetcher
	logger  *logrus.Entry
	metrics *monitoring.Metrics
}

// New constructs a Facade backed by fetch, with a cache of the given
// capacity and ttl.
func New(capacity int, ttl time.Duration, fetch FullFetcher, logger *logrus.Entry, metrics *monitoring.Metrics) *Facade {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	f := &Facade{fetch: fetch, logger: logger, metrics: metrics}
	loader := func(ctx context.Context, id twinid.ID) (cache.Entry[*models.Twin], error) {
		twin, ok, err := fetch(ctx, id)
		if err != nil {
			return cache.Entry[*models.Twin]{}, err
		}
		if !ok {
			return cache.Entry[*models.Twin]{Exists: false}, nil
		}
		return cache.Entry[*models.Twin]{Exists: true, Revision: twin.Revision, Value: twin}, nil
	}
	f.cache = cache.New(capacity, ttl, loader)
	return f
}

// RetrieveThing returns the twin's current JSON-equivalent state.
//
// If expectedRevision == -1 or knownEvents is empty, a full fetch is
// issued. Otherwise, if the cached snapshot's revision plus the
// contiguous prefix of knownEvents reaches expectedRevision, the events
// are applied incrementally to a clone of the cached snapshot. If the
// cached snapshot is missing or the events don't chain from it, a full
// fetch is performed instead.
//
// The two failure modes of spec.md §4.3/§4.4/§7 are kept distinct: a
// transient fetch error returns ok=false (the surrounding pipeline skips
// this twin and retries on its next event — it must never be confused
// with a confirmed-absent twin, which would emit a Delete). A confirmed-
// absent twin returns ok=true, exists=false.
func (f *Facade) RetrieveThing(ctx context.Context, twinID twinid.ID, knownEvents []models.Event, expectedRevision int64) (twin *models.Twin, exists bool, ok bool) {
	if expectedRevision == -1 || len(knownEvents) == 0 {
		return f.fullFetch(ctx, twinID)
	}

	cached, err := f.cache.Get(ctx, twinID)
	if err != nil {
		f.logger.WithError(err).WithField("twinId", twinID.String()).Warn("enrichment cache load failed")
		return nil, false, false
	}
	if !cached.Exists {
		return f.fullFetch(ctx, twinID)
	}

	updated, applied := ApplyEvents(cached.Value, knownEvents)
	if !applied || updated.Revision != expectedRevision {
		return f.fullFetch(ctx, twinID)
	}

	for _, e := range knownEvents {
		if e.Kind == models.EventDeleted && e.Revision > cached.Value.Revision {
			f.cache.Invalidate(twinID)
			f.observeHit()
			return updated, true, true
		}
	}

	f.cache.Set(twinID, cache.Entry[*models.Twin]{Exists: true, Revision: updated.Revision, Value: updated})
	f.observeHit()
	return updated, true, true
}

func (f *Facade) fullFetch(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, bool) {
	f.cache.Invalidate(twinID)
	entry, err := f.cache.Get(ctx, twinID)
	if err != nil {
		f.logger.WithError(err).WithField("twinId", twinID.String()).Warn("enrichment full fetch failed")
		f.observeMiss()
		return nil, false, false
	}
	if !entry.Exists {
		f.observeMiss()
		return nil, false, true
	}
	f.observeHit()
	return entry.Value, true, true
}

// Invalidate drops twinID from the snapshot cache (spec.md
// Metadata.invalidateThing).
func (f *Facade) Invalidate(twinID twinid.ID) {
	f.cache.Invalidate(twinID)
}

func (f *Facade) observeHit() {
	if f.metrics != nil {
		f.metrics.CacheHits.WithLabelValues("thing").Inc()
	}
}

func (f *Facade) observeMiss() {
	if f.metrics != nil {
		f.metrics.CacheMisses.WithLabelValues("thing").Inc()
	}
}
