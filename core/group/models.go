// Package group manages the stored user groups: their attributes, members, permissions and history.
package group

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/user"
)

// History actions
const (
	ActionCreate           = "create"
	ActionUpdate           = "update"
	ActionDelete           = "delete"
	ActionAddUser          = "add_user"
	ActionRemoveUser       = "remove_user"
	ActionAddPermission    = "add_permission"
	ActionRemovePermission = "remove_permission"
)

var Actions = []string{
	ActionCreate, ActionUpdate, ActionDelete, ActionAddUser, ActionRemoveUser, ActionAddPermission, ActionRemovePermission,
}

var errInvalidColor = errors.New("the color must be an hexadecimal code (#RRGGBB)")

// Group is a stored group along with its extended attributes.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Level       int       `json:"level"`
	Active      bool      `json:"active"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g Group) HasPermission(perm string) bool {
	return core.StringInSlice(perm, g.Permissions)
}

// NormalizeColor prefixes color with "#" when missing and checks its length.
func NormalizeColor(color string) (string, error) {
	color = core.CleanString(color)
	if color == "" {
		return "", nil
	}
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	if len(color) != 7 {
		return "", errInvalidColor
	}
	return color, nil
}

// UpdateGroup holds the editable attributes of a Group. Nil fields keep their current value.
type UpdateGroup struct {
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Level       *int    `json:"level" validate:"omitempty,min=1"`
	Active      *bool   `json:"active"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate) error {
	if err := validate.Struct(ug); err != nil {
		return err
	}
	if ug.Color != nil {
		color, err := NormalizeColor(*ug.Color)
		if err != nil {
			return core.NewFieldError("color", err.Error())
		}
		ug.Color = &color
	}
	return nil
}

func (ug UpdateGroup) apply(g *Group) {
	if ug.Description != nil {
		g.Description = core.CleanString(*ug.Description)
	}
	if ug.Color != nil && *ug.Color != "" {
		g.Color = *ug.Color
	}
	if ug.Level != nil {
		g.Level = *ug.Level
	}
	if ug.Active != nil {
		g.Active = *ug.Active
	}
}

// HistoryEntry records a change made to a group. ActorID is empty for system changes.
type HistoryEntry struct {
	ID           string    `json:"id"`
	GroupName    string    `json:"group"`
	Action       string    `json:"action"`
	ActorID      string    `json:"actor_id,omitempty"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	Permission   string    `json:"permission,omitempty"`
	Details      string    `json:"details"`
	Date         time.Time `json:"date"`
}

type QueryFilter struct {
	// Search matches the group name, case-insensitively
	Search string
	Level  int
	Active *bool
}

func (f QueryFilter) Match(g Group) bool {
	if f.Search != "" && !core.ContainsFold(g.Name, f.Search) {
		return false
	}
	if f.Level > 0 && g.Level != f.Level {
		return false
	}
	if f.Active != nil && g.Active != *f.Active {
		return false
	}
	return true
}

type HistoryFilter struct {
	GroupName string
	Action    string
	// UserID matches either the actor or the target user
	UserID string
	// TargetUserID only matches the target user
	TargetUserID string
	Limit        int
}

func (f HistoryFilter) Match(h HistoryEntry) bool {
	if f.GroupName != "" && h.GroupName != f.GroupName {
		return false
	}
	if f.Action != "" && h.Action != f.Action {
		return false
	}
	if f.UserID != "" && h.ActorID != f.UserID && h.TargetUserID != f.UserID {
		return false
	}
	if f.TargetUserID != "" && h.TargetUserID != f.TargetUserID {
		return false
	}
	return true
}

type Stats struct {
	Name        string `json:"name"`
	Users       int    `json:"users"`
	Permissions int    `json:"permissions"`
	Level       int    `json:"level"`
	Color       string `json:"color"`
	Active      bool   `json:"active"`
}

type ListItem struct {
	Group
	UsersCount       int `json:"users_count"`
	PermissionsCount int `json:"permissions_count"`
}

type List struct {
	Groups []ListItem    `json:"groups"`
	Page   core.PageInfo `json:"page"`
}

type HistoryPage struct {
	Entries []HistoryEntry `json:"entries"`
	Page    core.PageInfo  `json:"page"`
}

type Detail struct {
	Group   Group          `json:"group"`
	Members []user.User    `json:"members"`
	History []HistoryEntry `json:"history"`
}

type Dashboard struct {
	TotalUsers    int            `json:"total_users"`
	TotalGroups   int            `json:"total_groups"`
	ActiveUsers   int            `json:"active_users"`
	StaffUsers    int            `json:"staff_users"`
	Groups        []Stats        `json:"groups"`
	RecentHistory []HistoryEntry `json:"recent_history"`
	RecentUsers   []user.User    `json:"recent_users"`
}

// Profile is the authenticated user's own page.
type Profile struct {
	User        user.User      `json:"user"`
	CanEvaluate bool           `json:"can_evaluate"`
	Permissions int            `json:"permissions_count"`
	History     []HistoryEntry `json:"history"`
}
