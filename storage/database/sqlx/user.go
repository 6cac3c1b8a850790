package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/user"
)

const userColumns = `id, username, email, first_name, last_name, is_active, is_staff, is_superuser, groups,
phone, department_id, position, hire_date, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	Email        null.String    `db:"email"`
	FirstName    string         `db:"first_name"`
	LastName     string         `db:"last_name"`
	IsActive     bool           `db:"is_active"`
	IsStaff      bool           `db:"is_staff"`
	IsSuperuser  bool           `db:"is_superuser"`
	Groups       pq.StringArray `db:"groups"`
	Phone        string         `db:"phone"`
	DepartmentID null.String    `db:"department_id"`
	Position     string         `db:"position"`
	HireDate     null.Time      `db:"hire_date"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	groups := usr.Groups
	if groups == nil {
		groups = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Username:     usr.Username,
		Email:        nullString(usr.Email),
		FirstName:    usr.FirstName,
		LastName:     usr.LastName,
		IsActive:     usr.IsActive,
		IsStaff:      usr.IsStaff,
		IsSuperuser:  usr.IsSuperuser,
		Groups:       groups,
		Phone:        usr.Profile.Phone,
		DepartmentID: nullString(usr.Profile.DepartmentID),
		Position:     usr.Profile.Position,
		HireDate:     nullTimePtr(usr.Profile.HireDate),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    nullTime(usr.LastLogin),
	}
}

func (r userRow) user() user.User {
	groups := []string(r.Groups)
	if groups == nil {
		groups = []string{}
	}
	return user.User{
		ID:          r.ID,
		Username:    r.Username,
		Email:       r.Email.String,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		IsActive:    r.IsActive,
		IsStaff:     r.IsStaff,
		IsSuperuser: r.IsSuperuser,
		Groups:      groups,
		Profile: user.Profile{
			Phone:        r.Phone,
			DepartmentID: r.DepartmentID.String,
			Position:     r.Position,
			HireDate:     timePtr(r.HireDate),
		},
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excluded := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded = append(excluded, u.ID)
	}

	var found struct {
		Username string      `db:"username"`
		Email    null.String `db:"email"`
	}
	err := repo.db.GetContext(ctx, &found, `
		SELECT username, email FROM users
		WHERE (username = $1 OR ($2 <> '' AND email = $2)) AND NOT (id::text = ANY($3))
		LIMIT 1`,
		username, email, pq.Array(excluded))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case username != "" && found.Username == username:
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :username, :email, :first_name, :last_name, :is_active, :is_staff, :is_superuser, :groups,
		        :phone, :department_id, :position, :hire_date, :password_hash, :created_at, :updated_at, :last_login)`,
		newUserRow(usr))
	if err != nil {
		if uniqueViolated(err, "users_username_key") {
			return user.User{}, user.ErrUsernameExists
		}
		if uniqueViolated(err, "users_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

var userOrderings = map[string]string{
	"username":    "username",
	"email":       "email",
	"first_name":  "first_name",
	"last_name":   "last_name",
	"date_joined": "created_at",
	"last_login":  "last_login",
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var conds conditions
	if filter != nil {
		if filter.Search != "" {
			conds.add("(username ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)", "%"+filter.Search+"%")
		}
		if filter.Group != "" {
			conds.add("? = ANY(groups)", filter.Group)
		}
		if filter.IsActive != nil {
			conds.add("is_active = ?", *filter.IsActive)
		}
		if filter.IsStaff != nil {
			conds.add("is_staff = ?", *filter.IsStaff)
		}
		if !filter.JoinedFrom.IsZero() {
			conds.add("created_at >= ?", filter.JoinedFrom)
		}
	}
	order := core.OrderingClause(ordering, userOrderings, "last_name ASC, first_name ASC")

	var rows []userRow
	q := "SELECT " + userColumns + " FROM users" + conds.where() + " ORDER BY " + order + ", username ASC"
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		cond string
		arg  string
	)
	switch {
	case filter.ID != "":
		cond, arg = "id::text = $1", filter.ID
	case filter.Username != "":
		cond, arg = "username = $1", filter.Username
	case filter.Email != "":
		cond, arg = "email = $1", filter.Email
	case filter.UsernameOrEmail != "":
		cond, arg = "(username = $1 OR email = $1)", filter.UsernameOrEmail
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE "+cond+" LIMIT 1", arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE users SET username = :username, email = :email, first_name = :first_name, last_name = :last_name,
		    is_active = :is_active, is_staff = :is_staff, is_superuser = :is_superuser, groups = :groups,
		    phone = :phone, department_id = :department_id, position = :position, hire_date = :hire_date,
		    password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newUserRow(usr))
	if err != nil {
		if uniqueViolated(err, "users_email_key") {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM users WHERE id::text = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting deleted users")
}
