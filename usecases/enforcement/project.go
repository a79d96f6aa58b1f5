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

package enforcement

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/usecases/policy"
)

// subjectsOfFullAccess is the subject set used to compute the search
// projection: the pipeline always projects under a system-level subject
// with full read access, since the search index itself enforces
// per-request visibility at query time (out of scope here, per spec.md
// §1's external-collaborator list).
var subjectsOfFullAccess = []string{"system:search-indexer"}

// ProjectSearchDocument builds the outbound persistence document shape
// of spec.md §6: { _id, _revision, _policyRevision, f, t }, with arrays
// in the projected twin JSON longer than maxArraySize truncated and
// marked (spec.md §4.4 step 5, §8 boundary behavior).
func ProjectSearchDocument(enforcer *policy.Enforcer, twin *models.Twin, maxArraySize int) bson.M {
	twinJSON := twinToJSON(twin)
	projected := enforcer.Project(subjectsOfFullAccess, twinJSON, models.PermissionRead)
	bounded := boundArrays(projected, maxArraySize)

	featureIDs := make([]string, 0, len(twin.Features))
	for id := range twin.Features {
		featureIDs = append(featureIDs, id)
	}
	sort.Strings(featureIDs)

	return bson.M{
		"_id":             twin.TwinID.String(),
		"_revision":       twin.Revision,
		"_policyRevision": policyRevisionOf(enforcer),
		"f":               featureIDs,
		"t":               bounded,
	}
}

func policyRevisionOf(enforcer *policy.Enforcer) int64 {
	if enforcer == nil {
		return 0
	}
	return enforcer.Revision()
}

func twinToJSON(twin *models.Twin) map[string]any {
	doc := map[string]any{
		"thingId":  twin.TwinID.String(),
		"policyId": twin.PolicyID.String(),
	}
	if twin.Attributes != nil {
		doc["attributes"] = twin.Attributes
	}
	if twin.Features != nil {
		features := make(map[string]any, len(twin.Features))
		for id, f := range twin.Features {
			features[id] = featureToJSON(f)
		}
		doc["features"] = features
	}
	return doc
}

func featureToJSON(f *models.Feature) map[string]any {
	out := map[string]any{}
	if len(f.Definition) > 0 {
		defs := make([]any, len(f.Definition))
		for i, d := range f.Definition {
			defs[i] = d
		}
		out["definition"] = defs
	}
	if f.Properties != nil {
		out["properties"] = f.Properties
	}
	if f.DesiredProperties != nil {
		out["desiredProperties"] = f.DesiredProperties
	}
	return out
}

// boundArrays walks doc, truncating any array longer than maxArraySize
// to maxArraySize elements and marking it with a sibling
// "<key>__truncated" flag. maxArraySize <= 0 means unbounded.
func boundArrays(node map[string]any, maxArraySize int) map[string]any {
	if maxArraySize <= 0 {
		return node
	}
	out := make(map[string]any, len(node))
	for key, val := range node {
		switch v := val.(type) {
		case map[string]any:
			out[key] = boundArrays(v, maxArraySize)
		case []any:
			if len(v) > maxArraySize {
				out[key] = v[:maxArraySize]
				out[key+"__truncated"] = true
			} else {
				out[key] = v
			}
		default:
			out[key] = v
		}
	}
	return out
}
