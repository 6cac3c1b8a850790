package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/group"
)

var errGroupExists = errors.New("a group with this name already exists")

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil)

func NewGroupRepository(db *DB) group.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) copy(g group.Group) group.Group {
	g.Permissions = copyStrings(g.Permissions)
	return g
}

func (repo *groupRepository) CreateGroup(_ context.Context, g group.Group) (group.Group, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.groups[g.Name]; ok {
		return group.Group{}, errGroupExists
	}
	g.ID = newID()
	g = repo.copy(g)
	repo.db.groups[g.Name] = g
	return repo.copy(g), nil
}

func (repo *groupRepository) GetGroup(_ context.Context, name string) (group.Group, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if g, ok := repo.db.groups[name]; ok {
		return repo.copy(g), nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) QueryGroups(_ context.Context) ([]group.Group, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	groups := make([]group.Group, 0, len(repo.db.groups))
	for _, g := range repo.db.groups {
		groups = append(groups, repo.copy(g))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups, nil
}

func (repo *groupRepository) UpdateGroup(_ context.Context, g group.Group) (group.Group, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.groups[g.Name]; !ok {
		return group.Group{}, group.ErrNotFound
	}
	g = repo.copy(g)
	repo.db.groups[g.Name] = g
	return repo.copy(g), nil
}

func (repo *groupRepository) DeleteGroup(_ context.Context, name string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.groups[name]; !ok {
		return group.ErrNotFound
	}
	repo.db.deleteGroupCascade(name)
	return nil
}

func (repo *groupRepository) CreateHistory(_ context.Context, h group.HistoryEntry) (group.HistoryEntry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.groups[h.GroupName]; !ok {
		return group.HistoryEntry{}, group.ErrNotFound
	}
	h.ID = newID()
	repo.db.history = append(repo.db.history, h)
	return h, nil
}

func (repo *groupRepository) QueryHistory(_ context.Context, filter group.HistoryFilter) ([]group.HistoryEntry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	entries := make([]group.HistoryEntry, 0)
	// most recent first: walk the log backwards so that entries of the same instant keep insertion order reversed
	for i := len(repo.db.history) - 1; i >= 0; i-- {
		if h := repo.db.history[i]; filter.Match(h) {
			entries = append(entries, h)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}
