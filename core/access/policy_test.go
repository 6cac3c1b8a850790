package access

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePermission(t *testing.T) {
	tests := []struct {
		perm               string
		app, action, model string
		ok                 bool
	}{
		{perm: "suivi.view_driver", app: "suivi", action: "view", model: "driver", ok: true},
		{perm: "suivi.add_evaluationtype", app: "suivi", action: "add", model: "evaluationtype", ok: true},
		{perm: "auth.change_user", app: "auth", action: "change", model: "user", ok: true},
		{perm: "suivi.viewdriver", app: "suivi"},
		{perm: "suivi_view_driver"},
		{perm: ".view_driver"},
		{perm: ""},
	}
	for _, tt := range tests {
		t.Run(tt.perm, func(t *testing.T) {
			app, action, model, ok := ParsePermission(tt.perm)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.app, app)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.model, model)
		})
	}
}

func TestModelPermissions(t *testing.T) {
	assert.Equal(t, []string{"suivi.add_site", "suivi.change_site", "suivi.delete_site", "suivi.view_site"}, ModelPermissions(ModelSite))
	assert.Equal(t, []string{"suivi.view_note"}, ModelPermissions(ModelNote, ActionView))
}

func TestAllPermissions(t *testing.T) {
	all := AllPermissions()
	assert.Len(t, all, (len(SuiviModels)+len(authModels))*len(CRUDActions))
	assert.True(t, sort.StringsAreSorted(all))
	assert.True(t, IsKnownPermission("auth.view_group"))
	assert.True(t, IsKnownPermission("suivi.delete_note"))
	assert.False(t, IsKnownPermission("suivi.fly_driver"))

	for _, name := range GroupNames() {
		for _, perm := range Groups[name].Permissions {
			assert.True(t, IsKnownPermission(perm), "%s declares unknown permission %s", name, perm)
		}
	}
}

func TestPolicy(t *testing.T) {
	assert.Empty(t, ValidateConfig())
	assert.Equal(t, []string{GroupDirection, GroupExploitation, GroupRH}, GroupNames())

	assert.Len(t, GroupPermissions(GroupRH), len(SuiviModels)*len(CRUDActions))
	assert.Nil(t, GroupPermissions("Comptabilité"))
	for _, perm := range GroupPermissions(GroupDirection) {
		_, action, _, _ := ParsePermission(perm)
		assert.Equal(t, ActionView, action)
	}

	assert.Equal(t, []string{GroupExploitation, GroupRH}, EvaluatorGroups())
	assert.True(t, CanEvaluate([]string{GroupDirection, GroupExploitation}))
	assert.False(t, CanEvaluate([]string{GroupDirection, "lol"}))
	assert.False(t, CanEvaluate(nil))

	perm := Perm(AppSuivi, ActionChange, ModelDriver)
	assert.Equal(t, []string{GroupExploitation, GroupRH}, GroupsWithPermission(perm))
	assert.Equal(t, []string{GroupRH}, GroupsWithPermission(Perm(AppSuivi, ActionDelete, ModelDriver)))

	assert.Equal(t, 4, GroupLevel(GroupDirection))
	assert.Equal(t, DefaultGroupLevel, GroupLevel(GroupRH))
	assert.Equal(t, "Ressources Humaines", GroupDisplayName(GroupRH))
	assert.Equal(t, "lol", GroupDisplayName("lol"))
	assert.Equal(t, DefaultGroupColor, GroupColor("lol"))
}

func TestGroupPermissionsIsACopy(t *testing.T) {
	perms := GroupPermissions(GroupDirection)
	perms[0] = "lol"
	assert.NotEqual(t, "lol", Groups[GroupDirection].Permissions[0])
}
