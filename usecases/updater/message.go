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

package updater

import (
	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/usecases/writer"
)

// message is the sealed set of mailbox items a Task's run loop
// understands. EventMessage, CommandMessage and ShutdownMessage are
// producer-facing (sent via Task.Send); the rest are internal.
type message interface {
	isMessage()
}

// EventMessage carries one or more revision-ordered events for the
// twin, as delivered by the cluster bus (spec.md §6 inbound
// notification). Events with revision <= the cached last model's
// revision are dropped during merge, unless force-update is set.
type EventMessage struct {
	Events []models.Event
}

// CommandMessage carries a non-event change: a manual update command, a
// policy-reference notice, or a periodic sync trigger. Unlike events,
// commands bypass the revision gate (spec.md §4.7 scenario 4: a
// policy-only notice at the current revision still produces a write).
type CommandMessage struct {
	Metadata models.Metadata
}

// ShutdownMessage requests cooperative termination (spec.md §5
// "Cancellation & timeouts").
type ShutdownMessage struct{}

// idleTimeoutMsg is raised internally by the idle timer when Ready has
// had nothing to do for Deps.IdleTimeout.
type idleTimeoutMsg struct{}

// writerResultMsg delivers the bulk writer's classified outcome for the
// write model currently in flight.
type writerResultMsg struct {
	result writer.Result
}

// retryTickMsg is raised internally by the retry backoff timer.
type retryTickMsg struct{}

func (EventMessage) isMessage()    {}
func (CommandMessage) isMessage()  {}
func (ShutdownMessage) isMessage() {}
func (idleTimeoutMsg) isMessage()  {}
func (writerResultMsg) isMessage() {}
func (retryTickMsg) isMessage()    {}
