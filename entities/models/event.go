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

// EventKind enumerates the event types the pipeline understands.
type EventKind string

const (
	EventCreated                  EventKind = "Created"
	EventModified                 EventKind = "Modified"
	EventDeleted                  EventKind = "Deleted"
	EventAttributeModified        EventKind = "AttributeModified"
	EventFeatureCreated           EventKind = "FeatureCreated"
	EventFeaturePropertiesCreated EventKind = "FeaturePropertiesCreated"
	EventFeaturePropertyModified  EventKind = "FeaturePropertyModified"
	EventFeatureDefinitionCreated EventKind = "FeatureDefinitionCreated"
	EventPolicyIDChanged          EventKind = "PolicyIdChanged"
)

// Event is one revision-ordered change to a twin.
type Event struct {
	TwinID    twinid.ID
	Revision  int64
	Timestamp time.Time
	Kind      EventKind
	Payload   EventPayload
}

// EventPayload carries the kind-specific data for an Event. Only the
// fields relevant to Kind are populated.
type EventPayload struct {
	// AttributeModified
	AttributePointer string
	AttributeValue   any

	// FeatureCreated / FeaturePropertiesCreated / FeaturePropertyModified /
	// FeatureDefinitionCreated
	FeatureID         string
	FeatureProperties map[string]any
	PropertyPointer   string
	PropertyValue     any
	FeatureDefinition []string

	// PolicyIdChanged
	PolicyID twinid.ID
}

// Latest returns the latest event by timestamp, ties broken by the higher
// revision (spec.md §4.4 step 2 resolves the "latest event" ambiguity
// this way). ok is false when events is empty.
func Latest(events []Event) (Event, bool) {
	if len(events) == 0 {
		return Event{}, false
	}
	latest := events[0]
	for _, e := range events[1:] {
		if e.Timestamp.After(latest.Timestamp) {
			latest = e
			continue
		}
		if e.Timestamp.Equal(latest.Timestamp) && e.Revision > latest.Revision {
			latest = e
		}
	}
	return latest, true
}
