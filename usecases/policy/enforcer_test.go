package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ATNoG/eclipse-ditto/entities/models"
)

func grantEntry(subjects []string, pointer string, grant models.Grant, perms ...models.Permission) models.PolicyEntry {
	return models.PolicyEntry{
		Subjects: subjects,
		Targets: []models.PolicyTarget{
			{ResourcePointer: pointer, Grant: grant, Permissions: perms},
		},
	}
}

func TestAuthorizeDefaultDeny(t *testing.T) {
	e := Compile(models.Policy{}, nil)
	assert.False(t, e.Authorize([]string{"user:x"}, "/attributes/foo", models.PermissionRead))
}

func TestAuthorizeRootGrantAppliesToChildren(t *testing.T) {
	p := models.Policy{Entries: []models.PolicyEntry{
		grantEntry([]string{"user:x"}, "/", models.GrantAllow, models.PermissionRead),
	}}
	e := Compile(p, nil)
	assert.True(t, e.Authorize([]string{"user:x"}, "/attributes/foo", models.PermissionRead))
}

func TestAuthorizeDeeperRevokeOverridesShallowerGrant(t *testing.T) {
	p := models.Policy{Entries: []models.PolicyEntry{
		grantEntry([]string{"user:x"}, "/", models.GrantAllow, models.PermissionRead),
		grantEntry([]string{"user:x"}, "/attributes/secret", models.GrantDeny, models.PermissionRead),
	}}
	e := Compile(p, nil)
	assert.True(t, e.Authorize([]string{"user:x"}, "/attributes/foo", models.PermissionRead))
	assert.False(t, e.Authorize([]string{"user:x"}, "/attributes/secret", models.PermissionRead))
}

func TestAuthorizeRevokeOverridesGrantAtSameDepth(t *testing.T) {
	p := models.Policy{Entries: []models.PolicyEntry{
		grantEntry([]string{"user:x"}, "/attributes/foo", models.GrantAllow, models.PermissionRead),
		grantEntry([]string{"group:admins"}, "/attributes/foo", models.GrantDeny, models.PermissionRead),
	}}
	e := Compile(p, nil)
	// the request's subjects match both the allow entry and the deny entry
	assert.False(t, e.Authorize([]string{"user:x", "group:admins"}, "/attributes/foo", models.PermissionRead))
}

func TestAuthorizeWrongPermissionDoesNotMatch(t *testing.T) {
	p := models.Policy{Entries: []models.PolicyEntry{
		grantEntry([]string{"user:x"}, "/attributes/foo", models.GrantAllow, models.PermissionWrite),
	}}
	e := Compile(p, nil)
	assert.False(t, e.Authorize([]string{"user:x"}, "/attributes/foo", models.PermissionRead))
}

func TestProjectFiltersDeniedSubtree(t *testing.T) {
	p := models.Policy{Entries: []models.PolicyEntry{
		grantEntry([]string{"user:x"}, "/", models.GrantAllow, models.PermissionRead),
		grantEntry([]string{"user:x"}, "/attributes/secret", models.GrantDeny, models.PermissionRead),
	}}
	e := Compile(p, nil)

	doc := map[string]any{
		"attributes": map[string]any{
			"foo":    "bar",
			"secret": "hidden",
		},
	}
	view := e.Project([]string{"user:x"}, doc, models.PermissionRead)

	attrs, ok := view["attributes"].(map[string]any)
	if assert.True(t, ok) {
		assert.Equal(t, "bar", attrs["foo"])
		_, hasSecret := attrs["secret"]
		assert.False(t, hasSecret)
	}
}

func TestRevisionIsCarried(t *testing.T) {
	e := Compile(models.Policy{Revision: 7}, nil)
	assert.Equal(t, int64(7), e.Revision())
}
