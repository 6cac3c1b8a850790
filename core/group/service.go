package group

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/user"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError(errors.New("group not found"))
	ErrUnknownGroup = errors.New("group not found in the configuration")
)

// Page sizes
const (
	listPageSize    = 15
	historyPageSize = 30

	detailHistoryLen    = 15
	dashboardHistoryLen = 10
	profileHistoryLen   = 10
	recentUsersLen      = 5
	recentUsersWindow   = 30 * 24 * time.Hour
)

var memberOrdering = []core.DBOrdering{{Field: "last_name", Ascending: true}, {Field: "first_name", Ascending: true}}

type (
	Repository interface {
		// CreateGroup returns an error when the name is taken.
		CreateGroup(ctx context.Context, g Group) (Group, error)
		GetGroup(ctx context.Context, name string) (Group, error)
		// QueryGroups returns all the stored groups ordered by name.
		QueryGroups(ctx context.Context) ([]Group, error)
		// UpdateGroup persists the attributes and the permissions of g.
		UpdateGroup(ctx context.Context, g Group) (Group, error)
		DeleteGroup(ctx context.Context, name string) error

		CreateHistory(ctx context.Context, h HistoryEntry) (HistoryEntry, error)
		// QueryHistory returns the matching entries, most recent first.
		QueryHistory(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error)
	}

	// Provisioner reacts to the membership changes of evaluator groups.
	Provisioner interface {
		ProvisionEvaluator(ctx context.Context, usr user.User) (evaluation.Evaluator, bool, error)
	}

	ServiceInterface interface {
		Get(ctx context.Context, name string) (Group, error)
		List(ctx context.Context, filter QueryFilter, page int) (List, error)
		Detail(ctx context.Context, name string) (Detail, error)
		Update(ctx context.Context, actor user.User, g Group, ug UpdateGroup) (Group, error)
		Stats(ctx context.Context) ([]Stats, error)
		Dashboard(ctx context.Context) (Dashboard, error)
		History(ctx context.Context, filter HistoryFilter, page int) (HistoryPage, error)
		Profile(ctx context.Context, usr user.User) (Profile, error)

		AddUser(ctx context.Context, actor user.User, name string, usr user.User) (user.User, error)
		RemoveUser(ctx context.Context, actor user.User, name string, usr user.User) (user.User, error)
		// SetUserGroups adds and removes usr from groups so that it ends up a member of exactly `names`.
		SetUserGroups(ctx context.Context, actor user.User, usr user.User, names []string) (user.User, error)

		HasPerm(ctx context.Context, usr user.User, perm string) (bool, error)
		UserPermissions(ctx context.Context, usr user.User) ([]string, error)

		Sync(ctx context.Context, opts SyncOptions) ([]SyncResult, error)
		VerifyGroup(ctx context.Context, name string) (GroupVerification, error)
		VerifyUser(ctx context.Context, username string) (UserVerification, error)
		Report(ctx context.Context) (Report, error)
	}

	service struct {
		repo        Repository
		usrSvc      user.ServiceInterface
		provisioner Provisioner
		logger      core.Logger
		policy      map[string]access.GroupConfig
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, usrSvc user.ServiceInterface, provisioner Provisioner, logger core.Logger) ServiceInterface {
	return &service{
		repo:        repo,
		usrSvc:      usrSvc,
		provisioner: provisioner,
		logger:      logger,
		policy:      access.Groups,
	}
}

func (svc *service) record(ctx context.Context, h HistoryEntry) {
	h.Date = time.Now().UTC()
	if _, err := svc.repo.CreateHistory(ctx, h); err != nil {
		svc.logger.Error(fmt.Sprintf("recording %s history of group %s", h.Action, h.GroupName), err)
	}
}

func (svc *service) Get(ctx context.Context, name string) (Group, error) {
	return svc.repo.GetGroup(ctx, name)
}

func (svc *service) members(ctx context.Context, name string) ([]user.User, error) {
	return svc.usrSvc.Query(ctx, &user.QueryFilter{Group: name}, memberOrdering)
}

func (svc *service) List(ctx context.Context, filter QueryFilter, page int) (List, error) {
	filter.Search = core.CleanString(filter.Search)
	groups, err := svc.repo.QueryGroups(ctx)
	if err != nil {
		return List{}, errors.Wrap(err, "querying groups")
	}

	matching := make([]Group, 0, len(groups))
	for _, g := range groups {
		if filter.Match(g) {
			matching = append(matching, g)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].Level != matching[j].Level {
			return matching[i].Level > matching[j].Level
		}
		return matching[i].Name < matching[j].Name
	})

	info := core.Paginate(len(matching), page, listPageSize)
	start, end := info.Bounds()
	items := make([]ListItem, 0, end-start)
	for _, g := range matching[start:end] {
		members, err := svc.members(ctx, g.Name)
		if err != nil {
			return List{}, errors.Wrap(err, "querying group members")
		}
		items = append(items, ListItem{Group: g, UsersCount: len(members), PermissionsCount: len(g.Permissions)})
	}
	return List{Groups: items, Page: info}, nil
}

func (svc *service) Detail(ctx context.Context, name string) (Detail, error) {
	g, err := svc.repo.GetGroup(ctx, name)
	if err != nil {
		return Detail{}, err
	}
	members, err := svc.members(ctx, g.Name)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying group members")
	}
	hist, err := svc.repo.QueryHistory(ctx, HistoryFilter{GroupName: g.Name, Limit: detailHistoryLen})
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying group history")
	}
	sort.Strings(g.Permissions)
	return Detail{Group: g, Members: members, History: hist}, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, g Group, ug UpdateGroup) (Group, error) {
	ug.apply(&g)
	g.UpdatedAt = time.Now().UTC()
	updated, err := svc.repo.UpdateGroup(ctx, g)
	if err != nil {
		return Group{}, err
	}
	svc.record(ctx, HistoryEntry{
		GroupName: g.Name,
		Action:    ActionUpdate,
		ActorID:   actor.ID,
		Details:   fmt.Sprintf("Update of group %s", g.Name),
	})
	return updated, nil
}

func (svc *service) Stats(ctx context.Context) ([]Stats, error) {
	groups, err := svc.repo.QueryGroups(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	stats := make([]Stats, 0, len(groups))
	for _, g := range groups {
		members, err := svc.members(ctx, g.Name)
		if err != nil {
			return nil, errors.Wrap(err, "querying group members")
		}
		level, color := g.Level, g.Color
		if level == 0 {
			level = access.DefaultGroupLevel
		}
		if color == "" {
			color = access.DefaultGroupColor
		}
		stats = append(stats, Stats{
			Name:        g.Name,
			Users:       len(members),
			Permissions: len(g.Permissions),
			Level:       level,
			Color:       color,
			Active:      g.Active,
		})
	}
	return stats, nil
}

func (svc *service) Dashboard(ctx context.Context) (Dashboard, error) {
	users, err := svc.usrSvc.Query(ctx, nil, nil)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying users")
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	hist, err := svc.repo.QueryHistory(ctx, HistoryFilter{Limit: dashboardHistoryLen})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying history")
	}
	recent, err := svc.usrSvc.Query(
		ctx,
		&user.QueryFilter{JoinedFrom: time.Now().UTC().Add(-recentUsersWindow)},
		[]core.DBOrdering{{Field: "date_joined"}},
	)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying recent users")
	}
	if len(recent) > recentUsersLen {
		recent = recent[:recentUsersLen]
	}

	dash := Dashboard{
		TotalUsers:    len(users),
		TotalGroups:   len(stats),
		Groups:        stats,
		RecentHistory: hist,
		RecentUsers:   recent,
	}
	for _, u := range users {
		if u.IsActive {
			dash.ActiveUsers++
		}
		if u.IsStaff {
			dash.StaffUsers++
		}
	}
	return dash, nil
}

func (svc *service) History(ctx context.Context, filter HistoryFilter, page int) (HistoryPage, error) {
	filter.Limit = 0
	entries, err := svc.repo.QueryHistory(ctx, filter)
	if err != nil {
		return HistoryPage{}, errors.Wrap(err, "querying history")
	}
	info := core.Paginate(len(entries), page, historyPageSize)
	start, end := info.Bounds()
	return HistoryPage{Entries: entries[start:end], Page: info}, nil
}

func (svc *service) Profile(ctx context.Context, usr user.User) (Profile, error) {
	perms, err := svc.UserPermissions(ctx, usr)
	if err != nil {
		return Profile{}, err
	}
	hist, err := svc.repo.QueryHistory(ctx, HistoryFilter{TargetUserID: usr.ID, Limit: profileHistoryLen})
	if err != nil {
		return Profile{}, errors.Wrap(err, "querying user history")
	}
	return Profile{
		User:        usr,
		CanEvaluate: usr.CanEvaluate(),
		Permissions: len(perms),
		History:     hist,
	}, nil
}

// Membership

func (svc *service) provision(ctx context.Context, usr user.User) {
	if svc.provisioner == nil {
		return
	}
	ev, created, err := svc.provisioner.ProvisionEvaluator(ctx, usr)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("provisioning evaluator of %s", usr.Username), err)
		return
	}
	if created {
		svc.logger.Info(fmt.Sprintf("evaluator %s created for %s", ev.ID, usr.Username))
	}
}

func (svc *service) AddUser(ctx context.Context, actor user.User, name string, usr user.User) (user.User, error) {
	g, err := svc.repo.GetGroup(ctx, name)
	if err != nil {
		return user.User{}, err
	}
	if usr.InGroup(g.Name) {
		return usr, nil
	}
	usr.Groups = append(append([]string(nil), usr.Groups...), g.Name)
	if usr, err = svc.usrSvc.Save(ctx, usr); err != nil {
		return user.User{}, errors.Wrap(err, "saving user groups")
	}
	svc.record(ctx, HistoryEntry{
		GroupName:    g.Name,
		Action:       ActionAddUser,
		ActorID:      actor.ID,
		TargetUserID: usr.ID,
		Details:      fmt.Sprintf("Added %s to group %s", usr.Username, g.Name),
	})
	svc.provision(ctx, usr)
	return usr, nil
}

func (svc *service) RemoveUser(ctx context.Context, actor user.User, name string, usr user.User) (user.User, error) {
	g, err := svc.repo.GetGroup(ctx, name)
	if err != nil {
		return user.User{}, err
	}
	if !usr.InGroup(g.Name) {
		return usr, nil
	}
	groups := make([]string, 0, len(usr.Groups))
	for _, gn := range usr.Groups {
		if gn != g.Name {
			groups = append(groups, gn)
		}
	}
	usr.Groups = groups
	if usr, err = svc.usrSvc.Save(ctx, usr); err != nil {
		return user.User{}, errors.Wrap(err, "saving user groups")
	}
	svc.record(ctx, HistoryEntry{
		GroupName:    g.Name,
		Action:       ActionRemoveUser,
		ActorID:      actor.ID,
		TargetUserID: usr.ID,
		Details:      fmt.Sprintf("Removed %s from group %s", usr.Username, g.Name),
	})
	svc.provision(ctx, usr)
	return usr, nil
}

func (svc *service) SetUserGroups(ctx context.Context, actor user.User, usr user.User, names []string) (user.User, error) {
	var err error
	for _, gn := range append([]string(nil), usr.Groups...) {
		if !core.StringInSlice(gn, names) {
			if usr, err = svc.RemoveUser(ctx, actor, gn, usr); err != nil {
				return user.User{}, err
			}
		}
	}
	for _, gn := range names {
		if !usr.InGroup(gn) {
			if usr, err = svc.AddUser(ctx, actor, gn, usr); err != nil {
				return user.User{}, err
			}
		}
	}
	return usr, nil
}

// Permissions

func (svc *service) UserPermissions(ctx context.Context, usr user.User) ([]string, error) {
	if usr.IsSuperuser && usr.IsActive {
		return access.AllPermissions(), nil
	}
	if !usr.IsActive {
		return []string{}, nil
	}
	set := make(map[string]struct{})
	for _, name := range usr.Groups {
		g, err := svc.repo.GetGroup(ctx, name)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return nil, errors.Wrap(err, "finding user group")
		}
		for _, p := range g.Permissions {
			set[p] = struct{}{}
		}
	}
	return core.SortedKeys(set), nil
}

func (svc *service) HasPerm(ctx context.Context, usr user.User, perm string) (bool, error) {
	if !usr.IsActive {
		return false, nil
	}
	if usr.IsSuperuser {
		return true, nil
	}
	perms, err := svc.UserPermissions(ctx, usr)
	if err != nil {
		return false, err
	}
	return core.StringInSlice(perm, perms), nil
}
