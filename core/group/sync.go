package group

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
)

type SyncOptions struct {
	// Group restricts the synchronization to one configured group
	Group  string
	DryRun bool
}

// SyncResult reports the changes computed for one group.
type SyncResult struct {
	Group       string   `json:"group"`
	Description string   `json:"description"`
	Created     bool     `json:"created"`
	Invalid     []string `json:"invalid"`
	Unknown     []string `json:"unknown"`
	ToAdd       []string `json:"to_add"`
	ToRemove    []string `json:"to_remove"`
	Target      int      `json:"target"`
	Applied     bool     `json:"applied"`
}

func (r SyncResult) InSync() bool {
	return len(r.ToAdd) == 0 && len(r.ToRemove) == 0
}

// Sync reconciles the stored groups with the declared policy.
// In dry-run mode nothing is persisted, not even the groups that would be created.
func (svc *service) Sync(ctx context.Context, opts SyncOptions) ([]SyncResult, error) {
	names := make([]string, 0, len(svc.policy))
	for name := range svc.policy {
		names = append(names, name)
	}
	sort.Strings(names)

	if opts.Group != "" {
		if _, ok := svc.policy[opts.Group]; !ok {
			return nil, errors.Wrap(ErrUnknownGroup, opts.Group)
		}
		names = []string{opts.Group}
	}

	results := make([]SyncResult, 0, len(names))
	for _, name := range names {
		res, err := svc.syncGroup(ctx, name, svc.policy[name], opts.DryRun)
		if err != nil {
			return results, errors.Wrapf(err, "synchronizing group %s", name)
		}
		results = append(results, res)
	}
	return results, nil
}

func (svc *service) syncGroup(ctx context.Context, name string, conf access.GroupConfig, dryRun bool) (SyncResult, error) {
	res := SyncResult{Group: name, Description: conf.Description}

	g, created, err := svc.getOrCreate(ctx, name, conf, dryRun)
	if err != nil {
		return res, err
	}
	res.Created = created

	// refresh attributes
	if conf.Description != "" {
		g.Description = conf.Description
	}
	if conf.Color != "" {
		g.Color = conf.Color
	}
	if conf.Level > 0 {
		g.Level = conf.Level
	}

	target := make(map[string]struct{})
	for _, perm := range conf.Permissions {
		switch {
		case !strings.Contains(perm, "."):
			res.Invalid = append(res.Invalid, perm)
		case !access.IsKnownPermission(perm):
			res.Unknown = append(res.Unknown, perm)
		default:
			target[perm] = struct{}{}
		}
	}
	current := make(map[string]struct{}, len(g.Permissions))
	for _, perm := range g.Permissions {
		current[perm] = struct{}{}
	}

	for perm := range target {
		if _, ok := current[perm]; !ok {
			res.ToAdd = append(res.ToAdd, perm)
		}
	}
	for perm := range current {
		if _, ok := target[perm]; !ok {
			res.ToRemove = append(res.ToRemove, perm)
		}
	}
	sort.Strings(res.ToAdd)
	sort.Strings(res.ToRemove)
	res.Target = len(target)

	if dryRun {
		return res, nil
	}

	g.Permissions = core.SortedKeys(target)
	g.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateGroup(ctx, g); err != nil {
		return res, errors.Wrap(err, "saving group")
	}
	for _, perm := range res.ToRemove {
		svc.record(ctx, HistoryEntry{
			GroupName:  name,
			Action:     ActionRemovePermission,
			Permission: perm,
			Details:    fmt.Sprintf("Removed permission %s from group %s", perm, name),
		})
	}
	for _, perm := range res.ToAdd {
		svc.record(ctx, HistoryEntry{
			GroupName:  name,
			Action:     ActionAddPermission,
			Permission: perm,
			Details:    fmt.Sprintf("Added permission %s to group %s", perm, name),
		})
	}
	res.Applied = !res.InSync()
	return res, nil
}

// getOrCreate returns the stored group `name`, creating it with the configured attributes if needed.
// In dry-run mode a missing group is returned unsaved, with an empty ID.
func (svc *service) getOrCreate(ctx context.Context, name string, conf access.GroupConfig, dryRun bool) (Group, bool, error) {
	g, err := svc.repo.GetGroup(ctx, name)
	if err == nil {
		return g, false, nil
	}
	if !core.IsNotFound(err) {
		return Group{}, false, errors.Wrap(err, "finding group")
	}

	now := time.Now().UTC()
	g = Group{
		Name:        name,
		Description: conf.Description,
		Color:       conf.Color,
		Level:       conf.Level,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if g.Color == "" {
		g.Color = access.DefaultGroupColor
	}
	if g.Level <= 0 {
		g.Level = access.DefaultGroupLevel
	}
	if dryRun {
		return g, true, nil
	}
	if g, err = svc.repo.CreateGroup(ctx, g); err != nil {
		return Group{}, false, errors.Wrap(err, "creating group")
	}
	svc.record(ctx, HistoryEntry{
		GroupName: name,
		Action:    ActionCreate,
		Details:   fmt.Sprintf("Creation of group %s", name),
	})
	return g, true, nil
}
