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

package enrichment

import (
	"sort"
	"strings"

	"github.com/ATNoG/eclipse-ditto/entities/models"
)

// ApplyEvents incrementally advances current by events, per spec.md
// §4.3's idempotent-with-revision-guard rules:
//   - any event with revision <= current.revision is dropped
//   - an event with revision == current.revision+1 is applied
//   - a gap (missing intermediate revision) forces a full re-fetch,
//     signalled by returning ok=false
//
// Events need not arrive revision-sorted; they are sorted first.
func ApplyEvents(current *models.Twin, events []models.Event) (*models.Twin, bool) {
	if current == nil {
		return nil, false
	}

	sorted := append([]models.Event(nil), events...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Revision < sorted[j].Revision })

	twin := current.Clone()
	for _, e := range sorted {
		if e.Revision <= twin.Revision {
			continue
		}
		if e.Revision != twin.Revision+1 {
			return nil, false
		}
		applyOne(twin, e)
		twin.Revision = e.Revision
		twin.Modified = e.Timestamp
	}
	return twin, true
}

func applyOne(twin *models.Twin, e models.Event) {
	switch e.Kind {
	case models.EventDeleted:
		// Caller (Facade) treats a Deleted event as invalidating the
		// entry; ApplyEvents still advances the revision so a later
		// gap check behaves correctly, but leaves content untouched.
	case models.EventAttributeModified:
		if twin.Attributes == nil {
			twin.Attributes = map[string]any{}
		}
		setPointer(twin.Attributes, e.Payload.AttributePointer, e.Payload.AttributeValue)
	case models.EventFeatureCreated:
		if twin.Features == nil {
			twin.Features = map[string]*models.Feature{}
		}
		twin.Features[e.Payload.FeatureID] = &models.Feature{}
	case models.EventFeaturePropertiesCreated:
		f := ensureFeature(twin, e.Payload.FeatureID)
		f.Properties = e.Payload.FeatureProperties
	case models.EventFeaturePropertyModified:
		f := ensureFeature(twin, e.Payload.FeatureID)
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		setPointer(f.Properties, e.Payload.PropertyPointer, e.Payload.PropertyValue)
	case models.EventFeatureDefinitionCreated:
		f := ensureFeature(twin, e.Payload.FeatureID)
		f.Definition = e.Payload.FeatureDefinition
	case models.EventPolicyIDChanged:
		twin.PolicyID = e.Payload.PolicyID
	case models.EventCreated, models.EventModified:
		// full-document events carry no incremental payload in this
		// model; they are expected to arrive via a full fetch, not
		// incremental application, so there is nothing to do here.
	}
}

func ensureFeature(twin *models.Twin, featureID string) *models.Feature {
	if twin.Features == nil {
		twin.Features = map[string]*models.Feature{}
	}
	f, ok := twin.Features[featureID]
	if !ok {
		f = &models.Feature{}
		twin.Features[featureID] = f
	}
	return f
}

// setPointer sets the value at pointer in m. Nested JSON-pointer paths
// ("/a/b/c") are supported by walking/creating intermediate maps.
func setPointer(m map[string]any, pointer string, value any) {
	if pointer == "" {
		return
	}
	segments := splitPointer(pointer)
	cur := m
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

func splitPointer(pointer string) []string {
	return strings.Split(strings.TrimPrefix(pointer, "/"), "/")
}
