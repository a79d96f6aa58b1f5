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

// Package clusterbus models the inbound change-notification bus of
// spec.md §6 as an interface boundary (the cluster transport itself is
// an external collaborator, out of scope per spec.md §1), plus the
// ask-with-retry helper spec.md §9 calls for: "a small helper owning a
// timer wheel: one pending request per (destination, correlationId); on
// timeout, retry up to N times with exponential backoff."
package clusterbus

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
)

// ChangeNotification is the inbound message of spec.md §6: at-most-once
// delivered, idempotently processed via revision gating by the
// receiving twin update task.
type ChangeNotification struct {
	TwinID           twinid.ID
	ThingRevision    int64
	PolicyID         twinid.ID
	HasPolicyID      bool
	PolicyRevision   int64
	HasPolicyRev     bool
	Events           []models.Event
	UpdateReasons    []models.UpdateReason
	InvalidateThing  bool
	InvalidatePolicy bool
}

// ToMetadata converts a wire-level notification into the pipeline's
// internal accumulated Metadata shape.
func (c ChangeNotification) ToMetadata() models.Metadata {
	md := models.NewMetadata(c.TwinID)
	md.ThingRevision = c.ThingRevision
	md.PolicyID, md.HasPolicyID = c.PolicyID, c.HasPolicyID
	md.PolicyRevision, md.HasPolicyRev = c.PolicyRevision, c.HasPolicyRev
	md.Events = append(md.Events, c.Events...)
	md.InvalidateThing = c.InvalidateThing
	md.InvalidatePolicy = c.InvalidatePolicy
	for _, r := range c.UpdateReasons {
		md.AddReason(r)
	}
	return md
}

// Handler processes one ChangeNotification as it arrives off the bus.
type Handler func(ChangeNotification)

// Subscriber is the boundary to the in-cluster pub/sub transport
// (spec.md §1: "distributed pub/sub transport — we treat it as a
// reliable in-cluster bus"). No real transport is implemented here; see
// adapters/clients/cluster for the in-memory test double and the
// production stub.
type Subscriber interface {
	// Subscribe registers handler for every ChangeNotification delivered
	// on the bus, returning an unsubscribe function.
	Subscribe(ctx context.Context, handler Handler) (unsubscribe func(), err error)
}

// AskConfig bounds one AskWithRetry call.
type AskConfig struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// AskFunc performs one attempt of a request/response round-trip,
// correlated by correlationID (spec.md §5 "one pending request per
// (destination, correlationId)").
type AskFunc[T any] func(ctx context.Context, correlationID string) (T, error)

// AskWithRetry issues ask up to cfg.Retries+1 times, each attempt bound
// by cfg.Timeout and tagged with a fresh correlation id, backing off
// exponentially between attempts (spec.md §6 "Outbound ... with a
// configured timeout and retry policy", §9 design note).
//
// Grounded on the teacher's usecases/replica.coordinator two-phase
// ask/commit helper, generalized from "broadcast to replicas" to
// "retry a single destination with correlated, timed-out attempts".
func AskWithRetry[T any](ctx context.Context, cfg AskConfig, ask AskFunc[T]) (T, error) {
	var zero T

	bo := backoff.NewExponentialBackOff()
	if cfg.Backoff > 0 {
		bo.InitialInterval = cfg.Backoff
	}
	bo.MaxElapsedTime = 0

	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		correlationID := uuid.NewString()

		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		result, err := ask(attemptCtx, correlationID)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
	return zero, lastErr
}
