package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/core/group"
)

func newMockGroupRepo(t *testing.T) (group.Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewGroupRepository(sqlx.NewDb(db, "postgres")), mock
}

func groupRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "color", "level", "active", "permissions", "created_at", "updated_at"})
}

func namedArgs(n int) []driver.Value {
	args := make([]driver.Value, n)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	return args
}

func TestGroupRepository_CreateGroup(t *testing.T) {
	repo, mock := newMockGroupRepo(t)
	ctx := context.Background()
	now := time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC)
	g := group.Group{Name: "RH", Color: "#dc3545", Level: 1, Active: true, CreatedAt: now, UpdatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO groups")).WithArgs(namedArgs(9)...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM groups WHERE name = $1")).WithArgs("RH").WillReturnRows(
		groupRows().AddRow("g1", "RH", "", "#dc3545", 1, true, "{suivi.view_driver,suivi.add_driver}", now, now),
	)
	got, err := repo.CreateGroup(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, "g1", got.ID)
	assert.Equal(t, []string{"suivi.view_driver", "suivi.add_driver"}, got.Permissions)
	assert.Equal(t, now, got.CreatedAt)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO groups")).WithArgs(namedArgs(9)...).
		WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "groups_name_key"})
	_, err = repo.CreateGroup(ctx, g)
	assert.Equal(t, errGroupExists, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_GetGroup(t *testing.T) {
	repo, mock := newMockGroupRepo(t)
	q := regexp.QuoteMeta("FROM groups WHERE name = $1")

	mock.ExpectQuery(q).WithArgs("Audit").WillReturnError(sql.ErrNoRows)
	_, err := repo.GetGroup(context.Background(), "Audit")
	assert.Equal(t, group.ErrNotFound, err)

	now := time.Now().UTC()
	mock.ExpectQuery(q).WithArgs("Direction").WillReturnRows(
		groupRows().AddRow("g3", "Direction", "", "#28a745", 4, true, "{}", now, now),
	)
	got, err := repo.GetGroup(context.Background(), "Direction")
	require.NoError(t, err)
	assert.NotNil(t, got.Permissions)
	assert.Empty(t, got.Permissions)
	assert.Equal(t, 4, got.Level)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_UpdateAndDelete(t *testing.T) {
	repo, mock := newMockGroupRepo(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET")).WithArgs(namedArgs(7)...).
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := repo.UpdateGroup(ctx, group.Group{Name: "Ghost"})
	assert.Equal(t, group.ErrNotFound, err)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM groups WHERE name = $1")).WithArgs("Ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, group.ErrNotFound, repo.DeleteGroup(ctx, "Ghost"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM groups WHERE name = $1")).WithArgs("RH").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.DeleteGroup(ctx, "RH"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepository_History(t *testing.T) {
	repo, mock := newMockGroupRepo(t)
	ctx := context.Background()
	now := time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_history")).
		WithArgs(sqlmock.AnyArg(), "RH", group.ActionCreate, nil, nil, "", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h, err := repo.CreateHistory(ctx, group.HistoryEntry{GroupName: "RH", Action: group.ActionCreate, Date: now})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_history")).WithArgs(namedArgs(8)...).
		WillReturnError(&pq.Error{Code: foreignKeyViolation})
	_, err = repo.CreateHistory(ctx, group.HistoryEntry{GroupName: "Ghost", Action: group.ActionCreate, Date: now})
	assert.Equal(t, group.ErrNotFound, err)

	cols := []string{"id", "group_name", "action", "actor_id", "target_user_id", "permission", "details", "date"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM group_history WHERE group_name = $1 AND (actor_id::text = $2 OR target_user_id::text = $2) ORDER BY date DESC LIMIT $3")).
		WithArgs("RH", "u1", 5).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("h2", "RH", "add_user", nil, "u1", "", "", now).
			AddRow("h1", "RH", "add_permission", "u1", nil, "suivi.view_driver", "", now.Add(-time.Hour)))
	entries, err := repo.QueryHistory(ctx, group.HistoryFilter{GroupName: "RH", UserID: "u1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "", entries[0].ActorID)
	assert.Equal(t, "u1", entries[0].TargetUserID)
	assert.Equal(t, "suivi.view_driver", entries[1].Permission)

	mock.ExpectQuery(regexp.QuoteMeta("FROM group_history ORDER BY date DESC")).WithArgs().
		WillReturnRows(sqlmock.NewRows(cols))
	entries, err = repo.QueryHistory(ctx, group.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, mock.ExpectationsWereMet())
}
