package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ATNoG/eclipse-ditto/entities/models"
)

func putModel(doc bson.M, revision int64) models.WriteModel {
	md := models.Metadata{ThingRevision: revision}
	return models.NewPut(md, doc)
}

func TestDiffNextDeleteAlwaysEmitsDelete(t *testing.T) {
	prev := putModel(bson.M{"a": 1}, 1)
	next := models.NewDelete(models.Metadata{ThingRevision: 2})

	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)
	assert.True(t, result.IsDelete())
}

func TestDiffNoPreviousEmitsPut(t *testing.T) {
	next := putModel(bson.M{"a": 1}, 1)
	result, ok := Diff(Config{PatchSizeThreshold: 1000}, models.WriteModel{}, next, false)
	require.True(t, ok)
	assert.Equal(t, models.KindPut, result.Kind)
}

func TestDiffPreviousWasDeleteEmitsPut(t *testing.T) {
	prev := models.NewDelete(models.Metadata{ThingRevision: 1})
	next := putModel(bson.M{"a": 1}, 2)
	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)
	assert.Equal(t, models.KindPut, result.Kind)
}

func TestDiffEqualDocumentsDrops(t *testing.T) {
	prev := putModel(bson.M{"a": 1}, 1)
	next := putModel(bson.M{"a": 1}, 2)
	_, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	assert.False(t, ok)
}

func TestDiffSemanticNumberEqualityDrops(t *testing.T) {
	prev := putModel(bson.M{"a": int32(5)}, 1)
	next := putModel(bson.M{"a": int64(5)}, 2)
	_, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	assert.False(t, ok)
}

func TestDiffEqualStringSliceFieldDrops(t *testing.T) {
	// "f" in the projected search document (spec.md §6) is a []string,
	// not a []any — semanticEqual must not fall through to `==` on it.
	prev := putModel(bson.M{"f": []string{"temperature", "humidity"}}, 1)
	next := putModel(bson.M{"f": []string{"temperature", "humidity"}}, 2)
	_, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	assert.False(t, ok)
}

func TestDiffChangedStringSliceFieldEmitsPatchWithSet(t *testing.T) {
	prev := putModel(bson.M{"f": []string{"temperature"}}, 1)
	next := putModel(bson.M{"f": []string{"temperature", "humidity"}}, 2)
	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)
	require.Equal(t, models.KindPatch, result.Kind)
	set, ok := result.Update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, []string{"temperature", "humidity"}, set["f"])
}

func TestDiffChangedFieldEmitsPatchWithSet(t *testing.T) {
	prev := putModel(bson.M{"a": 1, "b": 2}, 7)
	next := putModel(bson.M{"a": 1, "b": 3}, 8)

	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)
	require.Equal(t, models.KindPatch, result.Kind)
	set, ok := result.Update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, 3, set["b"])
	assert.Equal(t, int64(7), result.FilterRevision)
}

func TestDiffRemovedFieldEmitsUnset(t *testing.T) {
	prev := putModel(bson.M{"a": 1, "b": 2}, 1)
	next := putModel(bson.M{"a": 1}, 2)

	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)
	require.Equal(t, models.KindPatch, result.Kind)
	unset, ok := result.Update["$unset"].(bson.M)
	require.True(t, ok)
	_, hasB := unset["b"]
	assert.True(t, hasB)
}

func TestDiffNestedChangeUsesDottedPath(t *testing.T) {
	prev := putModel(bson.M{"t": bson.M{"attributes": bson.M{"x": 1}}}, 1)
	next := putModel(bson.M{"t": bson.M{"attributes": bson.M{"x": 2}}}, 2)

	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)
	set := result.Update["$set"].(bson.M)
	assert.Equal(t, 2, set["t.attributes.x"])
}

func TestDiffExceedsThresholdEmitsPut(t *testing.T) {
	prev := putModel(bson.M{"a": 1}, 1)
	next := putModel(bson.M{"a": 2}, 2)

	result, ok := Diff(Config{PatchSizeThreshold: 0}, prev, next, true)
	require.True(t, ok)
	assert.Equal(t, models.KindPut, result.Kind)
}

func TestDiffRoundTripPatchAppliesBackToNext(t *testing.T) {
	prev := putModel(bson.M{"a": 1, "b": 2}, 1)
	next := putModel(bson.M{"a": 1, "b": 3}, 2)

	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)
	require.Equal(t, models.KindPatch, result.Kind)

	applied := applyUpdate(prev.Document, result.Update)
	assert.Equal(t, next.Document, applied)
}

func TestDiffRoundTripOfAppliedPatchIsDrop(t *testing.T) {
	prev := putModel(bson.M{"a": 1, "b": 2}, 1)
	next := putModel(bson.M{"a": 1, "b": 3}, 2)

	result, ok := Diff(Config{PatchSizeThreshold: 1000}, prev, next, true)
	require.True(t, ok)

	applied := applyUpdate(prev.Document, result.Update)
	appliedModel := putModel(applied, 2)

	_, ok = Diff(Config{PatchSizeThreshold: 1000}, appliedModel, next, true)
	assert.False(t, ok)
}

// applyUpdate is a minimal $set/$unset interpreter over dotted paths, used
// only by the round-trip tests to verify Diff's output is self-consistent.
func applyUpdate(doc bson.M, update bson.M) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = v
	}
	if sets, ok := update["$set"].(bson.M); ok {
		for path, v := range sets {
			setDotted(out, path, v)
		}
	}
	if unsets, ok := update["$unset"].(bson.M); ok {
		for path := range unsets {
			unsetDotted(out, path)
		}
	}
	return out
}

func setDotted(m bson.M, path string, v any) {
	segs := splitDots(path)
	cur := m
	for i, s := range segs {
		if i == len(segs)-1 {
			cur[s] = v
			return
		}
		next, ok := cur[s].(bson.M)
		if !ok {
			next = bson.M{}
			cur[s] = next
		}
		cur = next
	}
}

func unsetDotted(m bson.M, path string) {
	segs := splitDots(path)
	cur := m
	for i, s := range segs {
		if i == len(segs)-1 {
			delete(cur, s)
			return
		}
		next, ok := cur[s].(bson.M)
		if !ok {
			return
		}
		cur = next
	}
}

func splitDots(path string) []string {
	var out []string
	seg := ""
	for _, c := range path {
		if c == '.' {
			out = append(out, seg)
			seg = ""
			continue
		}
		seg += string(c)
	}
	out = append(out, seg)
	return out
}
