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

package models

import (
	"time"

	"github.com/ATNoG/eclipse-ditto/entities/twinid"
)

// UpdateReason tags why a write was produced, for observability.
type UpdateReason string

const (
	ReasonAttributeUpdate UpdateReason = "ATTRIBUTE_UPDATE"
	ReasonFeatureUpdate   UpdateReason = "FEATURE_UPDATE"
	ReasonPolicyUpdate    UpdateReason = "POLICY_UPDATE"
	ReasonManualReindex   UpdateReason = "MANUAL_REINDEXING"
	ReasonTwinDeleted     UpdateReason = "THING_DELETED"
)

// Metadata is the accumulated, per-twin change state carried through the
// pipeline for one flush window.
type Metadata struct {
	TwinID           twinid.ID
	ThingRevision    int64
	PolicyID         twinid.ID
	HasPolicyID      bool
	PolicyRevision   int64
	HasPolicyRev     bool
	Events           []Event
	Timers           []time.Duration
	UpdateReasons    map[UpdateReason]struct{}
	InvalidateThing  bool
	InvalidatePolicy bool
	ForceUpdate      bool
}

// NewMetadata returns an empty Metadata for twinID.
func NewMetadata(id twinid.ID) Metadata {
	return Metadata{
		TwinID:        id,
		UpdateReasons: make(map[UpdateReason]struct{}),
	}
}

// AddReason records reason in the update-reasons set.
func (m *Metadata) AddReason(reason UpdateReason) {
	if m.UpdateReasons == nil {
		m.UpdateReasons = make(map[UpdateReason]struct{})
	}
	m.UpdateReasons[reason] = struct{}{}
}

// HasReason reports whether reason is present.
func (m *Metadata) HasReason(reason UpdateReason) bool {
	_, ok := m.UpdateReasons[reason]
	return ok
}

// Merge combines other into m: the higher revision wins, reasons union,
// invalidation flags OR together, events and timers concatenate.
func (m *Metadata) Merge(other Metadata) {
	if other.ThingRevision > m.ThingRevision {
		m.ThingRevision = other.ThingRevision
	}
	if other.HasPolicyID {
		m.PolicyID, m.HasPolicyID = other.PolicyID, true
	}
	if other.HasPolicyRev {
		m.PolicyRevision, m.HasPolicyRev = other.PolicyRevision, true
	}
	m.Events = append(m.Events, other.Events...)
	m.Timers = append(m.Timers, other.Timers...)
	for reason := range other.UpdateReasons {
		m.AddReason(reason)
	}
	m.InvalidateThing = m.InvalidateThing || other.InvalidateThing
	m.InvalidatePolicy = m.InvalidatePolicy || other.InvalidatePolicy
	m.ForceUpdate = m.ForceUpdate || other.ForceUpdate
}
