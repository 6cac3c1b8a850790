package group

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
)

// fakeRepo keeps groups and history in memory. Users are never needed by Sync.
type fakeRepo struct {
	groups  map[string]Group
	history []HistoryEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{groups: make(map[string]Group)}
}

func (r *fakeRepo) CreateGroup(_ context.Context, g Group) (Group, error) {
	if _, ok := r.groups[g.Name]; ok {
		return Group{}, errors.New("name taken")
	}
	g.ID = g.Name + "-id"
	r.groups[g.Name] = g
	return g, nil
}

func (r *fakeRepo) GetGroup(_ context.Context, name string) (Group, error) {
	g, ok := r.groups[name]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (r *fakeRepo) QueryGroups(context.Context) ([]Group, error) {
	var groups []Group
	for _, g := range r.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (r *fakeRepo) UpdateGroup(_ context.Context, g Group) (Group, error) {
	r.groups[g.Name] = g
	return g, nil
}

func (r *fakeRepo) DeleteGroup(_ context.Context, name string) error {
	delete(r.groups, name)
	return nil
}

func (r *fakeRepo) CreateHistory(_ context.Context, h HistoryEntry) (HistoryEntry, error) {
	r.history = append(r.history, h)
	return h, nil
}

func (r *fakeRepo) QueryHistory(_ context.Context, filter HistoryFilter) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	for _, h := range r.history {
		if filter.Match(h) {
			entries = append(entries, h)
		}
	}
	return entries, nil
}

func (r *fakeRepo) actions(group string) []string {
	var actions []string
	for _, h := range r.history {
		if h.GroupName == group {
			actions = append(actions, h.Action+" "+h.Permission)
		}
	}
	return actions
}

func newTestService(repo Repository, policy map[string]access.GroupConfig) *service {
	svc := NewService(repo, nil, nil, core.NopLogger{}).(*service)
	if policy != nil {
		svc.policy = policy
	}
	return svc
}

func TestService_Sync(t *testing.T) {
	ctx := context.Background()
	viewDriver := access.Perm(access.AppSuivi, access.ActionView, access.ModelDriver)
	addDriver := access.Perm(access.AppSuivi, access.ActionAdd, access.ModelDriver)
	viewSite := access.Perm(access.AppSuivi, access.ActionView, access.ModelSite)
	policy := map[string]access.GroupConfig{
		"Audit": {
			Description: "Audit",
			Color:       "#ff0000",
			Permissions: []string{viewDriver, viewSite, "view_driver", "suivi.fly_driver"},
		},
	}

	t.Run("unknown group", func(t *testing.T) {
		svc := newTestService(newFakeRepo(), policy)
		_, err := svc.Sync(ctx, SyncOptions{Group: "Comptabilité"})
		assert.Equal(t, ErrUnknownGroup, errors.Cause(err))
	})

	t.Run("dry run saves nothing", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newTestService(repo, policy)
		res, err := svc.Sync(ctx, SyncOptions{DryRun: true})
		require.NoError(t, err)
		if assert.Len(t, res, 1) {
			assert.True(t, res[0].Created)
			assert.False(t, res[0].Applied)
			assert.Equal(t, []string{viewDriver, viewSite}, res[0].ToAdd)
		}
		assert.Empty(t, repo.groups)
		assert.Empty(t, repo.history)
	})

	t.Run("create then reconcile", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newTestService(repo, policy)

		res, err := svc.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		require.Len(t, res, 1)
		want := SyncResult{
			Group:       "Audit",
			Description: "Audit",
			Created:     true,
			Invalid:     []string{"view_driver"},
			Unknown:     []string{"suivi.fly_driver"},
			ToAdd:       []string{viewDriver, viewSite},
			Target:      2,
			Applied:     true,
		}
		assert.Equal(t, want, res[0])

		g := repo.groups["Audit"]
		assert.Equal(t, []string{viewDriver, viewSite}, g.Permissions)
		assert.Equal(t, "#ff0000", g.Color)
		assert.Equal(t, access.DefaultGroupLevel, g.Level)
		assert.Equal(t, []string{"create ", "add_permission " + viewDriver, "add_permission " + viewSite}, repo.actions("Audit"))

		// drift: a permission was granted by hand and another one revoked
		g.Permissions = []string{addDriver, viewDriver}
		repo.groups["Audit"] = g
		repo.history = nil

		res, err = svc.Sync(ctx, SyncOptions{Group: "Audit"})
		require.NoError(t, err)
		assert.False(t, res[0].Created)
		assert.Equal(t, []string{viewSite}, res[0].ToAdd)
		assert.Equal(t, []string{addDriver}, res[0].ToRemove)
		assert.Equal(t, []string{viewDriver, viewSite}, repo.groups["Audit"].Permissions)
		assert.Equal(t, []string{"remove_permission " + addDriver, "add_permission " + viewSite}, repo.actions("Audit"))

		// idempotent
		res, err = svc.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		assert.True(t, res[0].InSync())
		assert.False(t, res[0].Applied)
	})

	t.Run("save error midway", func(t *testing.T) {
		policy := map[string]access.GroupConfig{
			"Audit": {Description: "Audit", Permissions: []string{viewDriver}},
			"Paie":  {Description: "Paie", Permissions: []string{viewSite}},
		}
		repo := new(mockRepo)
		repo.On("GetGroup", mock.Anything, "Audit").Return(Group{}, ErrNotFound)
		repo.On("CreateGroup", mock.Anything, named("Audit")).Return(Group{ID: "1", Name: "Audit"}, nil)
		repo.On("UpdateGroup", mock.Anything, named("Audit")).Return(Group{ID: "1", Name: "Audit"}, nil)
		repo.On("GetGroup", mock.Anything, "Paie").Return(Group{ID: "2", Name: "Paie", Permissions: []string{addDriver}}, nil)
		repo.On("UpdateGroup", mock.Anything, named("Paie")).Return(Group{}, errors.New("db down"))
		repo.On("CreateHistory", mock.Anything, historyOf("Audit")).Return(HistoryEntry{}, nil)
		svc := newTestService(repo, policy)

		res, err := svc.Sync(ctx, SyncOptions{})
		assert.EqualError(t, err, "synchronizing group Paie: saving group: db down")
		if assert.Len(t, res, 1) {
			assert.Equal(t, "Audit", res[0].Group)
			assert.True(t, res[0].Applied)
		}
		repo.AssertExpectations(t)
		repo.AssertNumberOfCalls(t, "CreateHistory", 2)
		repo.AssertNotCalled(t, "CreateHistory", mock.Anything, historyOf("Paie"))
	})

	t.Run("lookup error", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetGroup", mock.Anything, "Audit").Return(Group{}, errors.New("connection reset"))
		svc := newTestService(repo, policy)

		_, err := svc.Sync(ctx, SyncOptions{Group: "Audit"})
		assert.EqualError(t, err, "synchronizing group Audit: finding group: connection reset")
		repo.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateGroup", mock.Anything, mock.Anything)
	})

	t.Run("history error is not fatal", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetGroup", mock.Anything, "Audit").Return(Group{ID: "1", Name: "Audit"}, nil)
		repo.On("UpdateGroup", mock.Anything, named("Audit")).Return(Group{ID: "1", Name: "Audit"}, nil)
		repo.On("CreateHistory", mock.Anything, mock.Anything).Return(HistoryEntry{}, errors.New("disk full"))
		svc := newTestService(repo, policy)

		res, err := svc.Sync(ctx, SyncOptions{Group: "Audit"})
		require.NoError(t, err)
		assert.True(t, res[0].Applied)
		repo.AssertNumberOfCalls(t, "CreateHistory", 2)
	})

	t.Run("declared policy", func(t *testing.T) {
		repo := newFakeRepo()
		svc := newTestService(repo, nil)
		res, err := svc.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		names := make([]string, 0, len(res))
		for _, r := range res {
			names = append(names, r.Group)
			assert.Empty(t, r.Invalid)
			assert.Empty(t, r.Unknown)
		}
		assert.Equal(t, access.GroupNames(), names)
		assert.Equal(t, 4, repo.groups[access.GroupDirection].Level)
	})
}

func TestModelAccess_CRUD(t *testing.T) {
	assert.Equal(t, "[CRUD]", ModelAccess{Add: true, View: true, Change: true, Delete: true}.CRUD())
	assert.Equal(t, "[-R--]", ModelAccess{View: true}.CRUD())
	assert.Equal(t, "[-RU-]", ModelAccess{View: true, Change: true}.CRUD())
	assert.Equal(t, "[----]", ModelAccess{}.CRUD())
}

func TestAnalyze(t *testing.T) {
	perms := []string{"suivi.view_driver", "suivi.change_driver", "auth.view_user", "broken"}
	models := analyze(perms, access.AppSuivi)
	if assert.Len(t, models, 1) {
		assert.True(t, models[access.ModelDriver].View)
		assert.True(t, models[access.ModelDriver].Change)
		assert.False(t, models[access.ModelDriver].FullCRUD())
	}
	assert.Len(t, analyze(perms, ""), 2)
	assert.Equal(t, 2, countApp(perms, access.AppSuivi))
}

func TestCheckCompliance(t *testing.T) {
	policyModels := func(name string) map[string]*ModelAccess {
		return analyze(access.GroupPermissions(name), access.AppSuivi)
	}
	for _, name := range access.GroupNames() {
		t.Run(name+" policy", func(t *testing.T) {
			c := CheckCompliance(name, policyModels(name))
			assert.True(t, c.Compliant)
			assert.Equal(t, "compliant", c.Status)
			assert.Empty(t, c.Issues)
		})
	}

	rh := policyModels(access.GroupRH)
	delete(rh, access.ModelSite)
	rh[access.ModelCompany].Delete = false
	c := CheckCompliance(access.GroupRH, rh)
	assert.False(t, c.Compliant)
	assert.Equal(t, "non compliant (2 issues)", c.Status)
	assert.ElementsMatch(t, []string{"model site missing", "incomplete CRUD for company"}, c.Issues)

	exp := policyModels(access.GroupExploitation)
	exp[access.ModelDriver].Change = false
	delete(exp, access.ModelEvaluation)
	c = CheckCompliance(access.GroupExploitation, exp)
	assert.Equal(t, []string{"insufficient driver permissions", "no permission on evaluations"}, c.Issues)

	dir := policyModels(access.GroupDirection)
	dir[access.ModelNote].Delete = true
	dir[access.ModelDriver].Add = true
	c = CheckCompliance(access.GroupDirection, dir)
	assert.Equal(t, []string{"non-view permissions on driver", "non-view permissions on note"}, c.Issues)

	assert.True(t, CheckCompliance("Audit", nil).Compliant)
}

func TestCheckPolicy(t *testing.T) {
	for _, name := range access.GroupNames() {
		assert.True(t, checkPolicy(name, access.GroupPermissions(name)).Compliant, name)
	}

	extra := access.Perm(access.AppSuivi, access.ActionView, "lorry")
	rhPerms := append(access.GroupPermissions(access.GroupRH)[1:], extra, "auth.view_user")
	pc := checkPolicy(access.GroupRH, rhPerms)
	assert.False(t, pc.Compliant)
	assert.Equal(t, []string{access.GroupPermissions(access.GroupRH)[0]}, pc.Missing)
	assert.Equal(t, []string{extra}, pc.Extra)

	pc = checkPolicy(access.GroupExploitation, access.ModelPermissions(access.ModelEvaluation))
	assert.False(t, pc.Compliant)
	assert.Equal(t, 4, pc.Score)
	assert.Equal(t, len(exploitationRequired), pc.Required)
	assert.Len(t, pc.Missing, pc.Required-pc.Score)

	pc = checkPolicy(access.GroupDirection, access.ModelPermissions(access.ModelNote))
	assert.False(t, pc.Compliant)
	assert.Equal(t, []string{"suivi.add_note", "suivi.change_note", "suivi.delete_note"}, pc.NonView)

	assert.True(t, checkPolicy("Audit", []string{"suivi.delete_driver"}).Compliant)
}

func TestExportReport(t *testing.T) {
	at := time.Date(2021, 6, 14, 10, 0, 0, 0, time.UTC)
	rep := Report{
		Groups:     map[string]GroupReport{access.GroupRH: {UsersCount: 2, PermissionsCount: 36}},
		Summary:    ReportSummary{TotalGroups: 1, UsersInGroups: 2, TotalUsers: 3},
		Compliance: map[string]Compliance{access.GroupRH: {Compliant: true, Status: "compliant", Issues: []string{}}},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportReport(&buf, rep, at))
	assert.Nil(t, rep.Metadata)

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if assert.NotNil(t, got.Metadata) {
		assert.Equal(t, ReportMetadata{GeneratedAt: at, TotalGroups: 1, Command: "verifyperms"}, *got.Metadata)
	}
	assert.Equal(t, rep.Summary, got.Summary)
	assert.Contains(t, buf.String(), "\n  \"groups\"")
}

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		color   string
		want    string
		wantErr bool
	}{
		{color: "", want: ""},
		{color: "#007bff", want: "#007bff"},
		{color: " 007bff ", want: "#007bff"},
		{color: "#07f", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeColor(tt.color)
		if tt.wantErr {
			assert.Equal(t, errInvalidColor, err, tt.color)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
