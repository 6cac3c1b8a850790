package report

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/user"
)

type fakeRepo struct {
	Repository // unused methods panic
	counts     DriverCounts
	byType     []TypeCount
	since      []time.Time
}

func (r *fakeRepo) DriverCounts(context.Context) (DriverCounts, error) {
	return r.counts, nil
}

func (r *fakeRepo) CountEvaluations(_ context.Context, since time.Time) (int, error) {
	r.since = append(r.since, since)
	if since.IsZero() {
		return 42, nil
	}
	return 3, nil
}

func (r *fakeRepo) EvaluationsByType(context.Context) ([]TypeCount, error) { return r.byType, nil }

type fakeAuth struct {
	perms map[string][]string // username: permissions
}

func (a fakeAuth) HasPerm(_ context.Context, usr user.User, perm string) (bool, error) {
	for _, p := range a.perms[usr.Username] {
		if p == perm {
			return true, nil
		}
	}
	return false, nil
}

func (a fakeAuth) UserPermissions(_ context.Context, usr user.User) ([]string, error) {
	return a.perms[usr.Username], nil
}

type fakeEvals struct {
	evaluation.ServiceInterface
	evals   []evaluation.Evaluation
	filters []evaluation.QueryFilter
}

func (f *fakeEvals) Query(_ context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	f.filters = append(f.filters, filter)
	if filter.Limit > 0 && filter.Limit < len(f.evals) {
		return f.evals[:filter.Limit], nil
	}
	return f.evals, nil
}

func score(v float64) *float64 { return &v }

func withClock(t *testing.T, now time.Time) {
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = time.Now })
}

func TestService_Dashboard(t *testing.T) {
	withClock(t, time.Date(2021, 6, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	auth := fakeAuth{perms: map[string][]string{
		"rh":       {permViewDriver, permViewEvaluation},
		"planning": {permViewDriver},
	}}
	evals := &fakeEvals{evals: make([]evaluation.Evaluation, 8)}
	repo := &fakeRepo{counts: DriverCounts{Total: 12, Active: 9}}
	svc := NewService(repo, evals, auth)

	rh := user.User{Username: "rh", IsActive: true, Groups: []string{access.GroupRH}}
	dash, err := svc.Dashboard(ctx, rh)
	require.NoError(t, err)
	assert.True(t, dash.CanEvaluate)
	if assert.NotNil(t, dash.ActiveDrivers) {
		assert.Equal(t, 9, *dash.ActiveDrivers)
	}
	if assert.NotNil(t, dash.TotalEvaluations) && assert.NotNil(t, dash.MonthEvaluations) {
		assert.Equal(t, 42, *dash.TotalEvaluations)
		assert.Equal(t, 3, *dash.MonthEvaluations)
	}
	assert.Len(t, dash.RecentEvaluations, recentEvaluationsLen)
	assert.Equal(t, []time.Time{{}, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)}, repo.since)

	planning := user.User{Username: "planning", IsActive: true}
	dash, err = svc.Dashboard(ctx, planning)
	require.NoError(t, err)
	assert.False(t, dash.CanEvaluate)
	assert.NotNil(t, dash.ActiveDrivers)
	assert.Nil(t, dash.TotalEvaluations)
	assert.NotNil(t, dash.RecentEvaluations)
	assert.Empty(t, dash.RecentEvaluations)
}

func TestService_Dashboard_errors(t *testing.T) {
	withClock(t, time.Date(2021, 6, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()
	usr := user.User{Username: "rh", IsActive: true}
	month := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	errDB := errors.New("db down")

	tests := []struct {
		name    string
		setup   func(repo *mockRepo, auth *mockAuth)
		wantErr string
	}{
		{
			name: "driver permission",
			setup: func(repo *mockRepo, auth *mockAuth) {
				auth.On("HasPerm", mock.Anything, usr, permViewDriver).Return(false, errDB)
			},
			wantErr: "checking driver permission: db down",
		},
		{
			name: "driver counts",
			setup: func(repo *mockRepo, auth *mockAuth) {
				auth.On("HasPerm", mock.Anything, usr, permViewDriver).Return(true, nil)
				repo.On("DriverCounts", mock.Anything).Return(DriverCounts{}, errDB)
			},
			wantErr: "counting drivers: db down",
		},
		{
			name: "total evaluations",
			setup: func(repo *mockRepo, auth *mockAuth) {
				auth.On("HasPerm", mock.Anything, usr, permViewDriver).Return(false, nil)
				auth.On("HasPerm", mock.Anything, usr, permViewEvaluation).Return(true, nil)
				repo.On("CountEvaluations", mock.Anything, time.Time{}).Return(0, errDB)
			},
			wantErr: "counting evaluations: db down",
		},
		{
			name: "month evaluations",
			setup: func(repo *mockRepo, auth *mockAuth) {
				auth.On("HasPerm", mock.Anything, usr, permViewDriver).Return(false, nil)
				auth.On("HasPerm", mock.Anything, usr, permViewEvaluation).Return(true, nil)
				repo.On("CountEvaluations", mock.Anything, time.Time{}).Return(42, nil)
				repo.On("CountEvaluations", mock.Anything, month).Return(0, errDB)
			},
			wantErr: "counting month evaluations: db down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, auth := new(mockRepo), new(mockAuth)
			tt.setup(repo, auth)
			svc := NewService(repo, &fakeEvals{}, auth)

			_, err := svc.Dashboard(ctx, usr)
			assert.EqualError(t, err, tt.wantErr)
			repo.AssertExpectations(t)
			auth.AssertExpectations(t)
		})
	}
}

func TestService_Dashboard_gating(t *testing.T) {
	ctx := context.Background()
	usr := user.User{Username: "planning", IsActive: true}
	repo, auth := new(mockRepo), new(mockAuth)
	auth.On("HasPerm", mock.Anything, usr, permViewDriver).Return(false, nil)
	auth.On("HasPerm", mock.Anything, usr, permViewEvaluation).Return(false, nil)
	svc := NewService(repo, &fakeEvals{}, auth)

	dash, err := svc.Dashboard(ctx, usr)
	require.NoError(t, err)
	assert.Nil(t, dash.ActiveDrivers)
	assert.Nil(t, dash.TotalEvaluations)
	repo.AssertNotCalled(t, "DriverCounts", mock.Anything)
	repo.AssertNotCalled(t, "CountEvaluations", mock.Anything, mock.Anything)
}

func TestService_DashboardStats(t *testing.T) {
	withClock(t, time.Date(2021, 6, 15, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	repo := &fakeRepo{
		counts: DriverCounts{Total: 12, Active: 9},
		byType: []TypeCount{{TypeName: "Conduite", Count: 4}, {TypeName: "Sécurité", Count: 2}},
	}
	auth := fakeAuth{perms: map[string][]string{"dir": {permViewEvaluation}}}
	svc := NewService(repo, &fakeEvals{}, auth)

	stats, err := svc.DashboardStats(ctx, user.User{Username: "dir", Groups: []string{access.GroupDirection, access.GroupExploitation}})
	require.NoError(t, err)
	if assert.NotNil(t, stats.Evaluations) {
		assert.Equal(t, EvaluationStats{ThisMonth: 3, Total: 6, ByType: map[string]int{"Conduite": 4, "Sécurité": 2}}, *stats.Evaluations)
	}
	assert.Nil(t, stats.Drivers)
	assert.Equal(t, UserStats{Groups: []string{access.GroupDirection, access.GroupExploitation}, Permissions: 1}, stats.User)
}

func TestService_scoresByType(t *testing.T) {
	evals := &fakeEvals{evals: []evaluation.Evaluation{
		{TypeName: "Conduite", Score: score(80)},
		{TypeName: "Conduite", Score: score(60)},
		{TypeName: "Conduite"},
		{TypeName: "Sécurité"},
	}}
	svc := &service{repo: &fakeRepo{}, evalSvc: evals, auth: fakeAuth{}}

	scores, err := svc.scoresByType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]TypeScore{"Conduite": {Mean: 70, Count: 2, TotalEvaluations: 3}}, scores)
}

func Test_monthStart(t *testing.T) {
	paris := time.FixedZone("CEST", 2*3600)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), monthStart(time.Date(2021, 6, 30, 23, 59, 0, 0, paris)))
}
