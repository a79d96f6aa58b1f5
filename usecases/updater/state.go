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

// Package updater implements the twin update task of spec.md §4.7: one
// cooperative, single-owner state machine per twin id, event-sourcing
// revisions, stashing during persistence, recovering last-written
// state, and enforcing per-twin ordering.
//
// Grounded on the teacher's entities/cyclemanager run-until-stopped,
// drain-on-stop pattern, generalized from "one ticking background
// cycle" to "one mailbox loop per twin id" (spec.md §9 design note:
// "model each twin update task as an owned state machine with an
// explicit bounded inbox and an explicit stash").
package updater

// State is one of the five states of spec.md §4.7's table.
type State int

const (
	// Recovering is the initial state: loading the last-persisted write
	// model before accepting any mailbox item except shutdown.
	Recovering State = iota
	// Ready accepts events, commands and policy-change notices, merging
	// them until a flush trigger transitions to Persisting.
	Ready
	// Persisting has a write model in flight at the bulk writer; new
	// events are stashed, not dropped.
	Persisting
	// Retrying awaits a backoff timer before resubmitting a write model
	// that failed with a transient error.
	Retrying
	// ShuttingDown drains only the in-flight persistence round-trip (if
	// any) before the task terminates.
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Recovering:
		return "Recovering"
	case Ready:
		return "Ready"
	case Persisting:
		return "Persisting"
	case Retrying:
		return "Retrying"
	case ShuttingDown:
		return "ShuttingDown"
	default:
		return "Unknown"
	}
}
