package enforcement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/policy"
)

func allowAllEnforcer(revision int64) *policy.Enforcer {
	p := models.Policy{
		Revision: revision,
		Entries: []models.PolicyEntry{
			{
				Subjects: subjectsOfFullAccess,
				Targets: []models.PolicyTarget{
					{ResourcePointer: "/", Grant: models.GrantAllow, Permissions: []models.Permission{models.PermissionRead}},
				},
			},
		},
	}
	return policy.Compile(p, nil)
}

func TestProjectSearchDocumentShape(t *testing.T) {
	id, err := twinid.Parse("a:b")
	require.NoError(t, err)
	policyID, _ := twinid.Parse("a:policy")

	twin := &models.Twin{
		TwinID:     id,
		PolicyID:   policyID,
		Revision:   42,
		Attributes: map[string]any{"x": 1},
		Features:   map[string]*models.Feature{"temp": {}},
	}

	doc := ProjectSearchDocument(allowAllEnforcer(3), twin, 0)
	assert.Equal(t, "a:b", doc["_id"])
	assert.Equal(t, int64(42), doc["_revision"])
	assert.Equal(t, int64(3), doc["_policyRevision"])
	assert.Equal(t, []string{"temp"}, doc["f"])
}

func TestProjectSearchDocumentTruncatesLongArrays(t *testing.T) {
	id, _ := twinid.Parse("a:b")
	policyID, _ := twinid.Parse("a:policy")

	arr := make([]any, 5)
	for i := range arr {
		arr[i] = i
	}

	twin := &models.Twin{
		TwinID:     id,
		PolicyID:   policyID,
		Attributes: map[string]any{"list": arr},
	}

	doc := ProjectSearchDocument(allowAllEnforcer(1), twin, 3)
	t2, ok := doc["t"].(map[string]any)
	require.True(t, ok)
	attrs, ok := t2["attributes"].(map[string]any)
	require.True(t, ok)
	list, ok := attrs["list"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 3)
	assert.Equal(t, true, attrs["list__truncated"])
}

func TestProjectSearchDocumentExactLengthNotTruncated(t *testing.T) {
	id, _ := twinid.Parse("a:b")
	policyID, _ := twinid.Parse("a:policy")

	arr := make([]any, 3)
	for i := range arr {
		arr[i] = i
	}
	twin := &models.Twin{TwinID: id, PolicyID: policyID, Attributes: map[string]any{"list": arr}}

	doc := ProjectSearchDocument(allowAllEnforcer(1), twin, 3)
	t2 := doc["t"].(map[string]any)
	attrs := t2["attributes"].(map[string]any)
	list := attrs["list"].([]any)
	assert.Len(t, list, 3)
	_, truncated := attrs["list__truncated"]
	assert.False(t, truncated)
}
