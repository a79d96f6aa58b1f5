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

// Package cluster provides the in-cluster bus client adapter behind
// usecases/clusterbus.Subscriber. spec.md §1 explicitly places "cluster
// membership and node discovery" and "distributed pub/sub transport" out
// of scope, treating the bus as a reliable external collaborator — so
// this package ships an in-memory test double (used by this package's own
// tests and by cmd/twinupdated's --demo mode) and a production
// stub documenting the boundary a real transport plugs into.
package cluster

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/ATNoG/eclipse-ditto/usecases/clusterbus"
)

var errNotImplemented = errors.New("cluster: production transport not wired in this module, see spec.md §1")

// InMemory is a Subscriber backed by an in-process fan-out list of
// handlers. Publish delivers synchronously to every current subscriber,
// in registration order.
type InMemory struct {
	mu       sync.RWMutex
	handlers map[int]clusterbus.Handler
	nextID   int
}

// NewInMemory constructs an empty in-memory bus.
func NewInMemory() *InMemory {
	return &InMemory{handlers: map[int]clusterbus.Handler{}}
}

// Subscribe implements clusterbus.Subscriber.
func (b *InMemory) Subscribe(ctx context.Context, handler clusterbus.Handler) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
	return unsubscribe, nil
}

// Publish delivers notification to every current subscriber.
func (b *InMemory) Publish(notification clusterbus.ChangeNotification) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]clusterbus.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(notification)
	}
}

// notImplementedSubscriber is returned by the production stub: the real
// transport (pub/sub over the cluster's distribution layer) is an
// external collaborator per spec.md §1 and is wired at deployment time,
// not implemented in this module.
type notImplementedSubscriber struct{}

// NewProductionStub returns a Subscriber that documents, but does not
// implement, the production transport boundary.
func NewProductionStub() clusterbus.Subscriber {
	return notImplementedSubscriber{}
}

func (notImplementedSubscriber) Subscribe(ctx context.Context, handler clusterbus.Handler) (func(), error) {
	return func() {}, errNotImplemented
}
