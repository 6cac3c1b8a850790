package boiledrepos

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/core/report"
)

func newMockRepo(t *testing.T) (report.Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewReportRepository(db), mock
}

func TestReportRepository_DriverCounts(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM drivers")).WillReturnRows(
		sqlmock.NewRows([]string{"total", "active", "interims", "subcontractors", "permanents"}).AddRow(10, 7, 3, 2, 3),
	)

	got, err := repo.DriverCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.DriverCounts{Total: 10, Active: 7, Inactive: 3, Interims: 3, Subcontractors: 2, Permanents: 3}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_CountEvaluations(t *testing.T) {
	repo, mock := newMockRepo(t)
	q := regexp.QuoteMeta("SELECT COUNT(*) AS count FROM evaluations")
	since := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q).WithArgs(nil).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(q).WithArgs(since).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery(q).WithArgs(nil).WillReturnError(errors.New("connection reset"))

	ctx := context.Background()
	all, err := repo.CountEvaluations(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 12, all)

	month, err := repo.CountEvaluations(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, 4, month)

	_, err = repo.CountEvaluations(ctx, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "counting evaluations")
	assert.Equal(t, "connection reset", errors.Cause(err).Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_Breakdowns(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM sites s")).WillReturnRows(
		sqlmock.NewRows([]string{"site_id", "city", "total", "active"}).
			AddRow("s1", "Agen", 2, 2).
			AddRow("s2", "Bordeaux", 5, 3),
	)
	bySite, err := repo.DriversBySite(ctx)
	require.NoError(t, err)
	assert.Equal(t, []report.SiteBreakdown{
		{SiteID: "s1", City: "Agen", Total: 2, Active: 2},
		{SiteID: "s2", City: "Bordeaux", Total: 5, Active: 3, Inactive: 2},
	}, bySite)

	mock.ExpectQuery(regexp.QuoteMeta("FROM companies c")).WillReturnRows(
		sqlmock.NewRows([]string{"company_id", "name", "total", "active", "interims", "subcontractors", "permanents"}).
			AddRow("c1", "Acme", 4, 3, 1, 1, 1),
	)
	byComp, err := repo.DriversByCompany(ctx)
	require.NoError(t, err)
	assert.Equal(t, []report.CompanyBreakdown{
		{CompanyID: "c1", Name: "Acme", Total: 4, Active: 3, Inactive: 1, Interims: 1, Subcontractors: 1, Permanents: 1},
	}, byComp)

	mock.ExpectQuery(regexp.QuoteMeta("FROM evaluation_types t")).WillReturnRows(
		sqlmock.NewRows([]string{"type_id", "type_name", "count"}).AddRow("t1", "Conduite", 3).AddRow("t2", "Sécurité", 0),
	)
	byType, err := repo.EvaluationsByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, []report.TypeCount{{TypeID: "t1", TypeName: "Conduite", Count: 3}, {TypeID: "t2", TypeName: "Sécurité"}}, byType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_EvaluationsByMonth(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)

	paris := time.FixedZone("CEST", 2*3600)
	mock.ExpectQuery(regexp.QuoteMeta("date_trunc('month', date)")).WithArgs(since).WillReturnRows(
		sqlmock.NewRows([]string{"month", "count"}).
			AddRow(time.Date(2021, 5, 1, 0, 0, 0, 0, paris), 2).
			AddRow(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), 5),
	)

	got, err := repo.EvaluationsByMonth(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []report.MonthCount{
		{Month: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC), Count: 2},
		{Month: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), Count: 5},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_Counts(t *testing.T) {
	repo, mock := newMockRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM companies WHERE active")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sites")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(8))

	comps, err := repo.CountActiveCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, comps)
	sites, err := repo.CountSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, sites)
	assert.NoError(t, mock.ExpectationsWereMet())
}
