package group

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateGroup(ctx context.Context, g Group) (Group, error) {
	args := m.Called(ctx, g)
	return args.Get(0).(Group), args.Error(1)
}

func (m *mockRepo) GetGroup(ctx context.Context, name string) (Group, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(Group), args.Error(1)
}

func (m *mockRepo) QueryGroups(ctx context.Context) ([]Group, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Group), args.Error(1)
}

func (m *mockRepo) UpdateGroup(ctx context.Context, g Group) (Group, error) {
	args := m.Called(ctx, g)
	return args.Get(0).(Group), args.Error(1)
}

func (m *mockRepo) DeleteGroup(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockRepo) CreateHistory(ctx context.Context, h HistoryEntry) (HistoryEntry, error) {
	args := m.Called(ctx, h)
	return args.Get(0).(HistoryEntry), args.Error(1)
}

func (m *mockRepo) QueryHistory(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]HistoryEntry), args.Error(1)
}

func named(name string) interface{} {
	return mock.MatchedBy(func(g Group) bool { return g.Name == name })
}

func historyOf(name string) interface{} {
	return mock.MatchedBy(func(h HistoryEntry) bool { return h.GroupName == name })
}
