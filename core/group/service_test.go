package group_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/apps/shared"
	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/user"
	inmemdb "github.com/fleetops/suivi/storage/database/inmem"
)

func setup(t *testing.T) shared.Services {
	svcs := shared.NewServices(shared.NewInMemRepositories(inmemdb.Open()), nil, core.NewTestConfig(), core.NopLogger{})
	_, err := svcs.Group.Sync(context.Background(), group.SyncOptions{})
	require.NoError(t, err)
	return svcs
}

func createUser(t *testing.T, svcs shared.Services, uname string) user.User {
	usr, err := svcs.User.Create(context.Background(), user.NewUser{
		Username:  uname,
		Email:     uname + "@transport.fr",
		FirstName: "Marie",
		LastName:  "Curie",
		Password:  "Pwd-1234",
	})
	require.NoError(t, err)
	return usr
}

func historyActions(t *testing.T, svcs shared.Services, filter group.HistoryFilter) []string {
	page, err := svcs.Group.History(context.Background(), filter, 1)
	require.NoError(t, err)
	actions := make([]string, 0, len(page.Entries))
	for _, h := range page.Entries {
		actions = append(actions, h.GroupName+":"+h.Action)
	}
	return actions
}

func TestService_Membership(t *testing.T) {
	ctx := context.Background()
	svcs := setup(t)
	admin := createUser(t, svcs, "admin")
	marie := createUser(t, svcs, "marie")

	t.Run("unknown group", func(t *testing.T) {
		_, err := svcs.Group.AddUser(ctx, admin, "Comptabilité", marie)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("add provisions the evaluator", func(t *testing.T) {
		usr, err := svcs.Group.AddUser(ctx, admin, access.GroupRH, marie)
		require.NoError(t, err)
		assert.Equal(t, []string{access.GroupRH}, usr.Groups)

		stored, err := svcs.User.GetByID(ctx, marie.ID)
		require.NoError(t, err)
		assert.True(t, stored.InGroup(access.GroupRH))
		assert.True(t, stored.CanEvaluate())

		ev, err := svcs.Evaluation.EvaluatorForUser(ctx, stored)
		require.NoError(t, err)
		assert.Equal(t, "Curie", ev.LastName)
		dept, err := svcs.Org.GetDepartment(ctx, ev.DepartmentID)
		require.NoError(t, err)
		assert.Equal(t, "RH", dept.Abbreviation)

		// adding twice is a no-op
		_, err = svcs.Group.AddUser(ctx, admin, access.GroupRH, stored)
		require.NoError(t, err)
		assert.Equal(t, []string{"RH:add_user"}, historyActions(t, svcs, group.HistoryFilter{TargetUserID: marie.ID}))
		assert.Equal(t, []string{"RH:add_user"}, historyActions(t, svcs, group.HistoryFilter{UserID: admin.ID}))
	})

	t.Run("move to another evaluator group", func(t *testing.T) {
		stored, err := svcs.User.GetByID(ctx, marie.ID)
		require.NoError(t, err)
		usr, err := svcs.Group.SetUserGroups(ctx, admin, stored, []string{access.GroupExploitation})
		require.NoError(t, err)
		assert.Equal(t, []string{access.GroupExploitation}, usr.Groups)

		ev, err := svcs.Evaluation.EvaluatorForUser(ctx, usr)
		require.NoError(t, err)
		dept, err := svcs.Org.GetDepartment(ctx, ev.DepartmentID)
		require.NoError(t, err)
		assert.Equal(t, "Exploitation", dept.Name)

		evs, err := svcs.Evaluation.QueryEvaluators(ctx)
		require.NoError(t, err)
		assert.Len(t, evs, 1)

		actions := historyActions(t, svcs, group.HistoryFilter{TargetUserID: marie.ID})
		assert.ElementsMatch(t, []string{"RH:add_user", "RH:remove_user", "Exploitation:add_user"}, actions)
	})

	t.Run("leaving every group keeps the evaluator", func(t *testing.T) {
		stored, err := svcs.User.GetByID(ctx, marie.ID)
		require.NoError(t, err)
		usr, err := svcs.Group.RemoveUser(ctx, admin, access.GroupExploitation, stored)
		require.NoError(t, err)
		assert.Empty(t, usr.Groups)
		assert.False(t, usr.CanEvaluate())

		_, err = svcs.Evaluation.EvaluatorForUser(ctx, usr)
		assert.Equal(t, core.ErrPermissionDenied, errors.Cause(err))
		evs, err := svcs.Evaluation.QueryEvaluators(ctx)
		require.NoError(t, err)
		assert.Len(t, evs, 1)
	})

	t.Run("non evaluator group", func(t *testing.T) {
		pierre := createUser(t, svcs, "pierre")
		_, err := svcs.Group.AddUser(ctx, user.User{}, access.GroupDirection, pierre)
		require.NoError(t, err)
		evs, err := svcs.Evaluation.QueryEvaluators(ctx)
		require.NoError(t, err)
		assert.Len(t, evs, 1)
	})
}

func TestService_Permissions(t *testing.T) {
	ctx := context.Background()
	svcs := setup(t)

	viewDriver := access.Perm(access.AppSuivi, access.ActionView, access.ModelDriver)
	deleteDriver := access.Perm(access.AppSuivi, access.ActionDelete, access.ModelDriver)

	dir, err := svcs.Group.SetUserGroups(ctx, user.User{}, createUser(t, svcs, "pierre"), []string{access.GroupDirection})
	require.NoError(t, err)
	both, err := svcs.Group.SetUserGroups(ctx, user.User{}, createUser(t, svcs, "jean"), []string{access.GroupDirection, access.GroupExploitation})
	require.NoError(t, err)
	inactive := dir
	inactive.IsActive = false
	super := createUser(t, svcs, "root")
	super.IsSuperuser = true

	tests := []struct {
		name string
		usr  user.User
		perm string
		want bool
	}{
		{name: "group permission", usr: dir, perm: viewDriver, want: true},
		{name: "missing permission", usr: dir, perm: deleteDriver},
		{name: "inactive", usr: inactive, perm: viewDriver},
		{name: "superuser", usr: super, perm: deleteDriver, want: true},
		{name: "inactive superuser", usr: func() user.User { u := super; u.IsActive = false; return u }(), perm: viewDriver},
		{name: "union of groups", usr: both, perm: access.Perm(access.AppSuivi, access.ActionChange, access.ModelDriver), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svcs.Group.HasPerm(ctx, tt.usr, tt.perm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	perms, err := svcs.Group.UserPermissions(ctx, super)
	require.NoError(t, err)
	assert.Equal(t, access.AllPermissions(), perms)

	perms, err = svcs.Group.UserPermissions(ctx, inactive)
	require.NoError(t, err)
	assert.Empty(t, perms)

	perms, err = svcs.Group.UserPermissions(ctx, both)
	require.NoError(t, err)
	// Direction only holds view permissions Exploitation already has
	assert.Len(t, perms, len(access.GroupPermissions(access.GroupExploitation)))
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()
	svcs := setup(t)

	_, err := svcs.Group.SetUserGroups(ctx, user.User{}, createUser(t, svcs, "marie"), []string{access.GroupRH})
	require.NoError(t, err)
	_, err = svcs.Group.SetUserGroups(ctx, user.User{}, createUser(t, svcs, "jean"), []string{access.GroupExploitation, access.GroupDirection})
	require.NoError(t, err)
	createUser(t, svcs, "nobody")

	t.Run("group", func(t *testing.T) {
		_, err := svcs.Group.VerifyGroup(ctx, "Comptabilité")
		assert.True(t, core.IsNotFound(err))

		v, err := svcs.Group.VerifyGroup(ctx, access.GroupExploitation)
		require.NoError(t, err)
		assert.Equal(t, 1, v.Users)
		assert.Equal(t, len(access.GroupPermissions(access.GroupExploitation)), v.TotalPermissions)
		assert.Equal(t, v.TotalPermissions, v.SuiviPermissions)
		assert.Equal(t, "[-RU-]", v.Models[access.ModelDriver].CRUD())
		assert.True(t, v.Policy.Compliant)
		assert.Equal(t, v.Policy.Required, v.Policy.Score)
	})

	t.Run("user", func(t *testing.T) {
		_, err := svcs.Group.VerifyUser(ctx, "lol")
		assert.True(t, core.IsNotFound(err))

		v, err := svcs.Group.VerifyUser(ctx, "jean")
		require.NoError(t, err)
		assert.Equal(t, "Curie Marie", v.FullName)
		assert.Equal(t, []string{access.GroupDirection, access.GroupExploitation}, v.Groups)
		assert.Equal(t, len(v.Effective), v.GroupPermissions)
		assert.Equal(t, len(v.Effective), v.SuiviPermissions)
	})

	t.Run("report", func(t *testing.T) {
		rep, err := svcs.Group.Report(ctx)
		require.NoError(t, err)
		assert.Equal(t, group.ReportSummary{TotalGroups: 3, UsersInGroups: 2, TotalUsers: 3}, rep.Summary)
		assert.Equal(t, 1, rep.Groups[access.GroupRH].UsersCount)
		assert.Equal(t, 36, rep.Groups[access.GroupRH].PermissionsCount)
		for _, name := range access.GroupNames() {
			assert.True(t, rep.Compliance[name].Compliant, name)
		}
		assert.Nil(t, rep.Metadata)
	})
}

func TestService_Read(t *testing.T) {
	ctx := context.Background()
	svcs := setup(t)

	marie, err := svcs.Group.SetUserGroups(ctx, user.User{}, createUser(t, svcs, "marie"), []string{access.GroupRH})
	require.NoError(t, err)

	list, err := svcs.Group.List(ctx, group.QueryFilter{Search: " exp "}, 1)
	require.NoError(t, err)
	if assert.Len(t, list.Groups, 1) {
		assert.Equal(t, access.GroupExploitation, list.Groups[0].Name)
	}

	det, err := svcs.Group.Detail(ctx, access.GroupRH)
	require.NoError(t, err)
	if assert.Len(t, det.Members, 1) {
		assert.Equal(t, marie.ID, det.Members[0].ID)
	}
	assert.NotEmpty(t, det.History)

	prof, err := svcs.Group.Profile(ctx, marie)
	require.NoError(t, err)
	assert.True(t, prof.CanEvaluate)
	assert.Equal(t, 36, prof.Permissions)
	assert.Len(t, prof.History, 1)

	page, err := svcs.Group.History(ctx, group.HistoryFilter{Action: group.ActionCreate}, 1)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)
	assert.Equal(t, 3, page.Page.Count)
}
