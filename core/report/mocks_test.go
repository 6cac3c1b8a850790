package report

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fleetops/suivi/core/user"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) DriverCounts(ctx context.Context) (DriverCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(DriverCounts), args.Error(1)
}

func (m *mockRepo) CountEvaluations(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) EvaluationsByType(ctx context.Context) ([]TypeCount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]TypeCount), args.Error(1)
}

func (m *mockRepo) CountActiveCompanies(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) CountSites(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) DriversBySite(ctx context.Context) ([]SiteBreakdown, error) {
	args := m.Called(ctx)
	return args.Get(0).([]SiteBreakdown), args.Error(1)
}

func (m *mockRepo) DriversByCompany(ctx context.Context) ([]CompanyBreakdown, error) {
	args := m.Called(ctx)
	return args.Get(0).([]CompanyBreakdown), args.Error(1)
}

func (m *mockRepo) EvaluationsByMonth(ctx context.Context, since time.Time) ([]MonthCount, error) {
	args := m.Called(ctx, since)
	return args.Get(0).([]MonthCount), args.Error(1)
}

type mockAuth struct {
	mock.Mock
}

func (m *mockAuth) HasPerm(ctx context.Context, usr user.User, perm string) (bool, error) {
	args := m.Called(ctx, usr, perm)
	return args.Bool(0), args.Error(1)
}

func (m *mockAuth) UserPermissions(ctx context.Context, usr user.User) ([]string, error) {
	args := m.Called(ctx, usr)
	return args.Get(0).([]string), args.Error(1)
}
