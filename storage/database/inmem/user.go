package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) copy(usr user.User) user.User {
	usr.Groups = copyStrings(usr.Groups)
	return usr
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr.ID = newID()
	usr = repo.copy(usr)
	repo.db.users[usr.ID] = usr
	return repo.copy(usr), nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" &&
		!(core.ContainsFold(usr.Username, filter.Search) || core.ContainsFold(usr.FirstName, filter.Search) ||
			core.ContainsFold(usr.LastName, filter.Search) || core.ContainsFold(usr.Email, filter.Search)) {
		return false
	}
	if filter.Group != "" && !usr.InGroup(filter.Group) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if filter.IsStaff != nil && usr.IsStaff != *filter.IsStaff {
		return false
	}
	if !filter.JoinedFrom.IsZero() && usr.CreatedAt.Before(filter.JoinedFrom) {
		return false
	}
	return true
}

// compareUsers compares a and b on the public ordering field. Unknown fields compare equal.
func compareUsers(a, b user.User, field string) int {
	strCmp := func(x, y string) int { return strings.Compare(strings.ToLower(x), strings.ToLower(y)) }
	switch field {
	case "username":
		return strCmp(a.Username, b.Username)
	case "email":
		return strCmp(a.Email, b.Email)
	case "first_name":
		return strCmp(a.FirstName, b.FirstName)
	case "last_name":
		return strCmp(a.LastName, b.LastName)
	case "date_joined":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	case "last_login":
		switch {
		case a.LastLogin.Before(b.LastLogin):
			return -1
		case a.LastLogin.After(b.LastLogin):
			return 1
		}
	}
	return 0
}

var defaultUserOrdering = []core.DBOrdering{{Field: "last_name", Ascending: true}, {Field: "first_name", Ascending: true}}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if matchUser(usr, filter) {
			users = append(users, repo.copy(usr))
		}
	}

	if len(ordering) == 0 {
		ordering = defaultUserOrdering
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return repo.copy(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return repo.copy(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	usr = repo.copy(usr)
	repo.db.users[usr.ID] = usr
	return repo.copy(usr), nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cnt := 0
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			repo.db.deleteUserCascade(id)
			cnt++
		}
	}
	return cnt, nil
}
