package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fleetops/suivi/core/group"
)

var errGroupExists = errors.New("a group with this name already exists")

const (
	groupColumns   = "id, name, description, color, level, active, permissions, created_at, updated_at"
	historyColumns = "id, group_name, action, actor_id, target_user_id, permission, details, date"
)

type groupRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	Color       string         `db:"color"`
	Level       int            `db:"level"`
	Active      bool           `db:"active"`
	Permissions pq.StringArray `db:"permissions"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newGroupRow(g group.Group) groupRow {
	perms := g.Permissions
	if perms == nil {
		perms = []string{}
	}
	return groupRow{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Color:       g.Color,
		Level:       g.Level,
		Active:      g.Active,
		Permissions: perms,
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func (r groupRow) group() group.Group {
	perms := []string(r.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return group.Group{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Color:       r.Color,
		Level:       r.Level,
		Active:      r.Active,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type historyRow struct {
	ID           string      `db:"id"`
	GroupName    string      `db:"group_name"`
	Action       string      `db:"action"`
	ActorID      null.String `db:"actor_id"`
	TargetUserID null.String `db:"target_user_id"`
	Permission   string      `db:"permission"`
	Details      string      `db:"details"`
	Date         time.Time   `db:"date"`
}

func (r historyRow) entry() group.HistoryEntry {
	return group.HistoryEntry{
		ID:           r.ID,
		GroupName:    r.GroupName,
		Action:       r.Action,
		ActorID:      r.ActorID.String,
		TargetUserID: r.TargetUserID.String,
		Permission:   r.Permission,
		Details:      r.Details,
		Date:         r.Date.UTC(),
	}
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *sqlx.DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	g.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO groups (`+groupColumns+`)
		VALUES (:id, :name, :description, :color, :level, :active, :permissions, :created_at, :updated_at)`,
		newGroupRow(g))
	if err != nil {
		if uniqueViolated(err, "") {
			return group.Group{}, errGroupExists
		}
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return repo.GetGroup(ctx, g.Name)
}

func (repo *groupRepository) GetGroup(ctx context.Context, name string) (group.Group, error) {
	var row groupRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+groupColumns+" FROM groups WHERE name = $1", name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return group.Group{}, group.ErrNotFound
		}
		return group.Group{}, errors.Wrap(err, "getting group")
	}
	return row.group(), nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context) ([]group.Group, error) {
	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+groupColumns+" FROM groups ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.group())
	}
	return groups, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, g group.Group) (group.Group, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE groups SET description = :description, color = :color, level = :level, active = :active,
		    permissions = :permissions, updated_at = :updated_at
		WHERE name = :name`,
		newGroupRow(g))
	if err != nil {
		return group.Group{}, errors.Wrap(err, "updating group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return group.Group{}, group.ErrNotFound
	}
	return repo.GetGroup(ctx, g.Name)
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, name string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM groups WHERE name = $1", name)
	if err != nil {
		return errors.Wrap(err, "deleting group")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return group.ErrNotFound
	}
	return nil
}

func (repo *groupRepository) CreateHistory(ctx context.Context, h group.HistoryEntry) (group.HistoryEntry, error) {
	h.ID = newID()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO group_history ("+historyColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		h.ID, h.GroupName, h.Action, nullString(h.ActorID), nullString(h.TargetUserID), h.Permission, h.Details, h.Date)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == foreignKeyViolation {
			return group.HistoryEntry{}, group.ErrNotFound
		}
		return group.HistoryEntry{}, errors.Wrap(err, "inserting group history")
	}
	return h, nil
}

func (repo *groupRepository) QueryHistory(ctx context.Context, filter group.HistoryFilter) ([]group.HistoryEntry, error) {
	var conds conditions
	if filter.GroupName != "" {
		conds.add("group_name = ?", filter.GroupName)
	}
	if filter.Action != "" {
		conds.add("action = ?", filter.Action)
	}
	if filter.UserID != "" {
		conds.add("(actor_id::text = ? OR target_user_id::text = ?)", filter.UserID)
	}
	if filter.TargetUserID != "" {
		conds.add("target_user_id::text = ?", filter.TargetUserID)
	}
	q := "SELECT " + historyColumns + " FROM group_history" + conds.where() + " ORDER BY date DESC"
	q += conds.limit(filter.Limit)

	var rows []historyRow
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying group history")
	}
	entries := make([]group.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}
