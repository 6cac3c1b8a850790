// Package access holds the declared permission policy: the permission catalogue
// and the configuration of the RH, Exploitation and Direction groups.
package access

import (
	"fmt"
	"sort"
	"strings"
)

// App labels
const (
	AppSuivi = "suivi"
	AppAuth  = "auth"
)

// Actions
const (
	ActionAdd    = "add"
	ActionChange = "change"
	ActionDelete = "delete"
	ActionView   = "view"
)

// Models
const (
	ModelDriver         = "driver"
	ModelEvaluator      = "evaluator"
	ModelSite           = "site"
	ModelCompany        = "company"
	ModelDepartment     = "department"
	ModelCriterion      = "criterion"
	ModelEvaluation     = "evaluation"
	ModelEvaluationType = "evaluationtype"
	ModelNote           = "note"

	ModelUser  = "user"
	ModelGroup = "group"
)

// Groups
const (
	GroupRH           = "RH"
	GroupExploitation = "Exploitation"
	GroupDirection    = "Direction"
)

const (
	DefaultGroupLevel = 1
	DefaultGroupColor = "#6c757d"
)

var (
	CRUDActions = []string{ActionAdd, ActionChange, ActionDelete, ActionView}

	// SuiviModels are the models of the "suivi" app, in policy order.
	SuiviModels = []string{
		ModelDriver, ModelEvaluator, ModelSite, ModelCompany, ModelDepartment,
		ModelCriterion, ModelEvaluation, ModelEvaluationType, ModelNote,
	}

	authModels = []string{ModelUser, ModelGroup}
)

// GroupConfig is the declared configuration of a group.
type GroupConfig struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Level       int      `json:"level"`
	CanEvaluate bool     `json:"can_evaluate"`
	Permissions []string `json:"permissions"`
}

// Groups is the declared group policy, keyed by group name.
var Groups = map[string]GroupConfig{
	GroupRH: {
		Key:         GroupRH,
		DisplayName: "Ressources Humaines",
		Description: "Ressources Humaines - Gestion complète des données",
		Color:       "#007bff",
		CanEvaluate: true,
		Permissions: concat(
			ModelPermissions(ModelDriver),
			ModelPermissions(ModelEvaluator),
			ModelPermissions(ModelSite),
			ModelPermissions(ModelCompany),
			ModelPermissions(ModelDepartment),
			ModelPermissions(ModelCriterion),
			ModelPermissions(ModelEvaluation),
			ModelPermissions(ModelEvaluationType),
			ModelPermissions(ModelNote),
		),
	},
	GroupExploitation: {
		Key:         GroupExploitation,
		DisplayName: "Exploitation",
		Description: "Exploitation - Évaluations et consultation des conducteurs",
		Color:       "#28a745",
		CanEvaluate: true,
		Permissions: concat(
			ModelPermissions(ModelDriver, ActionView, ActionChange),
			ModelPermissions(ModelEvaluation),
			ModelPermissions(ModelNote),
			ModelPermissions(ModelEvaluator, ActionView),
			ModelPermissions(ModelSite, ActionView),
			ModelPermissions(ModelCompany, ActionView),
			ModelPermissions(ModelDepartment, ActionView),
			ModelPermissions(ModelCriterion, ActionView),
			ModelPermissions(ModelEvaluationType, ActionView),
		),
	},
	GroupDirection: {
		Key:         GroupDirection,
		DisplayName: "Direction",
		Description: "Direction - Consultation et rapports",
		Color:       "#6f42c1",
		Level:       4,
		CanEvaluate: false,
		Permissions: concat(
			ModelPermissions(ModelDriver, ActionView),
			ModelPermissions(ModelEvaluator, ActionView),
			ModelPermissions(ModelSite, ActionView),
			ModelPermissions(ModelCompany, ActionView),
			ModelPermissions(ModelDepartment, ActionView),
			ModelPermissions(ModelCriterion, ActionView),
			ModelPermissions(ModelEvaluation, ActionView),
			ModelPermissions(ModelEvaluationType, ActionView),
			ModelPermissions(ModelNote, ActionView),
		),
	},
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Perm builds the "<app>.<action>_<model>" permission string.
func Perm(app, action, model string) string {
	return fmt.Sprintf("%s.%s_%s", app, action, model)
}

// ModelPermissions generates the "suivi" permissions of a model for the given actions (all CRUD actions by default).
func ModelPermissions(model string, actions ...string) []string {
	if len(actions) == 0 {
		actions = CRUDActions
	}
	perms := make([]string, 0, len(actions))
	for _, action := range actions {
		perms = append(perms, Perm(AppSuivi, action, model))
	}
	return perms
}

// ParsePermission splits a permission in its app label, action and model.
// ok is false when the permission is malformed.
func ParsePermission(perm string) (app, action, model string, ok bool) {
	parts := strings.SplitN(perm, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	codename := strings.SplitN(parts[1], "_", 2)
	if len(codename) != 2 || codename[0] == "" || codename[1] == "" {
		return parts[0], "", "", false
	}
	return parts[0], codename[0], codename[1], true
}

// AllPermissions returns the permission catalogue, sorted.
func AllPermissions() []string {
	perms := make([]string, 0, (len(SuiviModels)+len(authModels))*len(CRUDActions))
	for _, model := range SuiviModels {
		perms = append(perms, ModelPermissions(model)...)
	}
	for _, model := range authModels {
		for _, action := range CRUDActions {
			perms = append(perms, Perm(AppAuth, action, model))
		}
	}
	sort.Strings(perms)
	return perms
}

// IsKnownPermission reports whether perm is part of the catalogue.
func IsKnownPermission(perm string) bool {
	all := AllPermissions()
	i := sort.SearchStrings(all, perm)
	return i < len(all) && all[i] == perm
}

// GroupNames returns the configured group names, sorted.
func GroupNames() []string {
	names := make([]string, 0, len(Groups))
	for name := range Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsConfiguredGroup reports whether name is a configured group.
func IsConfiguredGroup(name string) bool {
	_, ok := Groups[name]
	return ok
}

// GroupPermissions returns the declared permissions of a group, nil for unknown groups.
func GroupPermissions(key string) []string {
	conf, ok := Groups[key]
	if !ok {
		return nil
	}
	perms := make([]string, len(conf.Permissions))
	copy(perms, conf.Permissions)
	return perms
}

func GroupLevel(key string) int {
	if conf, ok := Groups[key]; ok && conf.Level > 0 {
		return conf.Level
	}
	return DefaultGroupLevel
}

func GroupDisplayName(key string) string {
	if conf, ok := Groups[key]; ok && conf.DisplayName != "" {
		return conf.DisplayName
	}
	return key
}

func GroupColor(key string) string {
	if conf, ok := Groups[key]; ok && conf.Color != "" {
		return conf.Color
	}
	return DefaultGroupColor
}

// GroupsWithPermission returns the configured groups declaring perm, sorted.
func GroupsWithPermission(perm string) []string {
	var groups []string
	for _, name := range GroupNames() {
		for _, p := range Groups[name].Permissions {
			if p == perm {
				groups = append(groups, name)
				break
			}
		}
	}
	return groups
}

// EvaluatorGroups returns the keys of the groups whose members can evaluate, sorted.
func EvaluatorGroups() []string {
	var groups []string
	for _, name := range GroupNames() {
		if Groups[name].CanEvaluate {
			groups = append(groups, name)
		}
	}
	return groups
}

// EvaluatorGroupDisplayNames returns the display names of the evaluator groups.
func EvaluatorGroupDisplayNames() []string {
	keys := EvaluatorGroups()
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, GroupDisplayName(key))
	}
	return names
}

// CanEvaluate reports whether any of groups is an evaluator group.
func CanEvaluate(groups []string) bool {
	for _, g := range groups {
		if conf, ok := Groups[g]; ok && conf.CanEvaluate {
			return true
		}
	}
	return false
}

// ValidateConfig checks the declared policy and returns one message per problem.
func ValidateConfig() []string {
	var problems []string
	for _, name := range GroupNames() {
		conf := Groups[name]
		if conf.DisplayName == "" {
			problems = append(problems, fmt.Sprintf("group %s: missing field 'display_name'", name))
		}
		if conf.Description == "" {
			problems = append(problems, fmt.Sprintf("group %s: missing field 'description'", name))
		}
		for _, perm := range conf.Permissions {
			if _, _, _, ok := ParsePermission(perm); !ok {
				problems = append(problems, fmt.Sprintf("group %s: invalid permission format '%s'", name, perm))
			}
		}
	}
	return problems
}
