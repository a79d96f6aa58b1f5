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

// Package differ implements the write-model differ of spec.md §4.5: a
// total function over pairs of write models that emits either a full
// Put, a conditional Patch, or a Delete, computed from a recursive
// structural BSON diff.
package differ

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/ATNoG/eclipse-ditto/entities/models"
)

// Config bounds the differ's patch-vs-put decision.
type Config struct {
	// PatchSizeThreshold is the BSON-encoded diff size above which a full
	// Put is emitted instead of a Patch (spec.md §4.5, §6
	// patchSizeThreshold, §8 boundary: size == threshold emits Patch,
	// one byte larger emits Put).
	PatchSizeThreshold int
}

// Diff computes the write model to emit for next, given the previously
// emitted write model for the same twin (or a zero WriteModel with
// Kind == KindDelete standing in for "no previous write model").
func Diff(cfg Config, previous, next models.WriteModel, hasPrevious bool) (models.WriteModel, bool) {
	if next.IsDelete() {
		return models.NewDelete(next.Metadata), true
	}

	if !hasPrevious || previous.IsDelete() {
		return models.NewPut(next.Metadata, next.Document), true
	}

	update, changed := structuralDiff(previous.Document, next.Document)
	if !changed {
		return models.WriteModel{}, false
	}

	if bsonSize(update) > cfg.PatchSizeThreshold {
		return models.NewPut(next.Metadata, next.Document), true
	}

	return models.NewPatch(next.Metadata, update, previous.Revision()), true
}

// structuralDiff recursively compares prev and next, producing a minimal
// update document with "$set" for added/changed leaf paths and "$unset"
// for removed paths. Scalar comparisons use semantic equality (numbers
// compared by value, not representation).
func structuralDiff(prev, next bson.M) (bson.M, bool) {
	sets := bson.M{}
	unsets := bson.M{}
	diffMaps("", prev, next, sets, unsets)

	if len(sets) == 0 && len(unsets) == 0 {
		return nil, false
	}

	update := bson.M{}
	if len(sets) > 0 {
		update["$set"] = sets
	}
	if len(unsets) > 0 {
		update["$unset"] = unsets
	}
	return update, true
}

func diffMaps(prefix string, prev, next bson.M, sets, unsets bson.M) {
	for key, nextVal := range next {
		path := joinPath(prefix, key)
		prevVal, existed := prev[key]
		if !existed {
			sets[path] = nextVal
			continue
		}
		diffValue(path, prevVal, nextVal, sets, unsets)
	}
	for key := range prev {
		if _, stillPresent := next[key]; !stillPresent {
			unsets[joinPath(prefix, key)] = ""
		}
	}
}

func diffValue(path string, prevVal, nextVal any, sets, unsets bson.M) {
	prevMap, prevIsMap := asMap(prevVal)
	nextMap, nextIsMap := asMap(nextVal)
	if prevIsMap && nextIsMap {
		diffMaps(path, prevMap, nextMap, sets, unsets)
		return
	}

	if !semanticEqual(prevVal, nextVal) {
		sets[path] = nextVal
	}
}

func asMap(v any) (bson.M, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return bson.M(m), true
	default:
		return nil, false
	}
}

// semanticEqual compares two BSON leaf values by value, not
// representation: e.g. int32(5), int64(5) and float64(5) compare equal.
// The final fallback uses reflect.DeepEqual rather than == because
// projected search documents carry concretely-typed slices (e.g. the
// "f" feature-id list is a []string, not a []any) and == panics on
// uncomparable types like slices.
func semanticEqual(a, b any) bool {
	af, aIsNum := toFloat(a)
	bf, bIsNum := toFloat(b)
	if aIsNum && bIsNum {
		return af == bf
	}

	aArr, aIsArr := toAnySlice(a)
	bArr, bIsArr := toAnySlice(b)
	if aIsArr && bIsArr {
		if len(aArr) != len(bArr) {
			return false
		}
		for i := range aArr {
			if !semanticEqual(aArr[i], bArr[i]) {
				return false
			}
		}
		return true
	}
	if aIsArr != bIsArr {
		return false
	}

	return reflect.DeepEqual(a, b)
}

// toAnySlice normalizes any slice-kinded value ([]any, []string, []int,
// ...) into a []any so element-wise comparison doesn't need a case per
// concrete element type.
func toAnySlice(v any) ([]any, bool) {
	if arr, ok := v.([]any); ok {
		return arr, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func bsonSize(doc bson.M) int {
	data, err := bson.Marshal(doc)
	if err != nil {
		return 0
	}
	return len(data)
}
