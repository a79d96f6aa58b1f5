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

// Package models holds the logical data types shared across the twin
// update pipeline: Twin, Feature, Policy, Event, Metadata and WriteModel.
package models

import (
	"time"

	"github.com/ATNoG/eclipse-ditto/entities/twinid"
)

// Feature is a named aspect of a twin with its own properties and
// definition.
type Feature struct {
	Definition        []string       `json:"definition,omitempty"`
	Properties        map[string]any `json:"properties,omitempty"`
	DesiredProperties map[string]any `json:"desiredProperties,omitempty"`
}

// Twin is the authoritative, logical representation of a digital twin at
// some revision.
type Twin struct {
	TwinID     twinid.ID           `json:"thingId"`
	PolicyID   twinid.ID           `json:"policyId"`
	Revision   int64               `json:"_revision"`
	Attributes map[string]any      `json:"attributes,omitempty"`
	Features   map[string]*Feature `json:"features,omitempty"`
	Modified   time.Time           `json:"_modified"`
	Metadata   map[string]any      `json:"_metadata,omitempty"`
}

// Clone returns a deep-enough copy of t suitable for incremental event
// application without mutating the cached original.
func (t *Twin) Clone() *Twin {
	if t == nil {
		return nil
	}
	clone := &Twin{
		TwinID:   t.TwinID,
		PolicyID: t.PolicyID,
		Revision: t.Revision,
		Modified: t.Modified,
	}
	clone.Attributes = cloneJSONMap(t.Attributes)
	clone.Metadata = cloneJSONMap(t.Metadata)
	if t.Features != nil {
		clone.Features = make(map[string]*Feature, len(t.Features))
		for id, f := range t.Features {
			clone.Features[id] = f.clone()
		}
	}
	return clone
}

func (f *Feature) clone() *Feature {
	if f == nil {
		return nil
	}
	clone := &Feature{}
	if f.Definition != nil {
		clone.Definition = append([]string(nil), f.Definition...)
	}
	clone.Properties = cloneJSONMap(f.Properties)
	clone.DesiredProperties = cloneJSONMap(f.DesiredProperties)
	return clone
}

func cloneJSONMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneJSONValue(v)
	}
	return out
}

func cloneJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneJSONMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneJSONValue(e)
		}
		return out
	default:
		return v
	}
}
