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

// Package writer implements the bulk writer of spec.md §4.6: groups
// differed write models into bulk operations, partitions by twin-id
// hash to guarantee per-twin ordering, and reports per-model success,
// conflict, or error.
package writer

// Outcome classifies one write model's result, per spec.md §4.6.
type Outcome int

const (
	// OutcomeOK means the write was durably applied.
	OutcomeOK Outcome = iota
	// OutcomeConflict means a Patch's optimistic-concurrency filter did
	// not match; the caller should force a full refresh.
	OutcomeConflict
	// OutcomeTransientError means a retryable failure (timeout,
	// temporary unavailability). The writer retries it and hands it to the
	// ResultHandler only once its retry budget is exhausted.
	OutcomeTransientError
	// OutcomePermanentError means a non-retryable failure (validation,
	// an unreconcilable duplicate key).
	OutcomePermanentError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeConflict:
		return "conflict"
	case OutcomeTransientError:
		return "transient_error"
	case OutcomePermanentError:
		return "permanent_error"
	default:
		return "unknown"
	}
}

// Result is the classified outcome of one write model.
type Result struct {
	Outcome  Outcome
	Revision int64 // set when Outcome == OutcomeOK
	Err      error // set when Outcome is one of the error outcomes
}
