package group

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
)

const (
	statusCompliant = "compliant"
	exportCommand   = "verifyperms"
)

// Models which must have full CRUD for RH to be compliant
var rhRequiredModels = []string{
	access.ModelDriver, access.ModelEvaluator, access.ModelSite, access.ModelCompany, access.ModelDepartment,
	access.ModelCriterion, access.ModelEvaluation, access.ModelEvaluationType,
}

// Permissions Exploitation relies on
var exploitationRequired = []string{
	access.Perm(access.AppSuivi, access.ActionView, access.ModelDriver),
	access.Perm(access.AppSuivi, access.ActionChange, access.ModelDriver),
	access.Perm(access.AppSuivi, access.ActionAdd, access.ModelEvaluation),
	access.Perm(access.AppSuivi, access.ActionChange, access.ModelEvaluation),
	access.Perm(access.AppSuivi, access.ActionDelete, access.ModelEvaluation),
	access.Perm(access.AppSuivi, access.ActionView, access.ModelEvaluation),
	access.Perm(access.AppSuivi, access.ActionAdd, access.ModelNote),
	access.Perm(access.AppSuivi, access.ActionChange, access.ModelNote),
	access.Perm(access.AppSuivi, access.ActionDelete, access.ModelNote),
	access.Perm(access.AppSuivi, access.ActionView, access.ModelNote),
}

// ModelAccess tells which CRUD actions a group holds on a model.
type ModelAccess struct {
	Add         bool     `json:"add"`
	Change      bool     `json:"change"`
	Delete      bool     `json:"delete"`
	View        bool     `json:"view"`
	Permissions []string `json:"permissions"`
}

// CRUD renders the access as "[CRUD]", with "-" for every missing action.
func (m ModelAccess) CRUD() string {
	flag := func(ok bool, c byte) byte {
		if ok {
			return c
		}
		return '-'
	}
	return string([]byte{'[', flag(m.Add, 'C'), flag(m.View, 'R'), flag(m.Change, 'U'), flag(m.Delete, 'D'), ']'})
}

func (m ModelAccess) FullCRUD() bool {
	return m.Add && m.Change && m.Delete && m.View
}

// analyze groups perms by model. Only perms of the `app` label are kept, unless app is empty.
func analyze(perms []string, app string) map[string]*ModelAccess {
	models := make(map[string]*ModelAccess)
	for _, perm := range perms {
		permApp, action, model, ok := access.ParsePermission(perm)
		if !ok || (app != "" && permApp != app) {
			continue
		}
		ma, found := models[model]
		if !found {
			ma = &ModelAccess{}
			models[model] = ma
		}
		switch action {
		case access.ActionAdd:
			ma.Add = true
		case access.ActionChange:
			ma.Change = true
		case access.ActionDelete:
			ma.Delete = true
		case access.ActionView:
			ma.View = true
		}
		ma.Permissions = append(ma.Permissions, perm)
	}
	return models
}

func countApp(perms []string, app string) int {
	n := 0
	for _, perm := range perms {
		if permApp, _, _, ok := access.ParsePermission(perm); ok && permApp == app {
			n++
		}
	}
	return n
}

// Compliance is the verdict of the policy rules for a group.
type Compliance struct {
	Compliant bool     `json:"compliant"`
	Status    string   `json:"status"`
	Issues    []string `json:"issues"`
}

// CheckCompliance applies the policy rules of the group `name` to its per-model access.
// Groups without rules are compliant.
func CheckCompliance(name string, models map[string]*ModelAccess) Compliance {
	var issues []string
	switch name {
	case access.GroupRH:
		for _, model := range rhRequiredModels {
			ma, ok := models[model]
			switch {
			case !ok:
				issues = append(issues, fmt.Sprintf("model %s missing", model))
			case !ma.FullCRUD():
				issues = append(issues, fmt.Sprintf("incomplete CRUD for %s", model))
			}
		}
	case access.GroupExploitation:
		if ma, ok := models[access.ModelDriver]; ok && !(ma.View && ma.Change) {
			issues = append(issues, "insufficient driver permissions")
		}
		if _, ok := models[access.ModelEvaluation]; !ok {
			issues = append(issues, "no permission on evaluations")
		}
	case access.GroupDirection:
		names := make([]string, 0, len(models))
		for model := range models {
			names = append(names, model)
		}
		sort.Strings(names)
		for _, model := range names {
			ma := models[model]
			if ma.Add || ma.Change || ma.Delete {
				issues = append(issues, fmt.Sprintf("non-view permissions on %s", model))
			}
		}
	}

	c := Compliance{Compliant: len(issues) == 0, Status: statusCompliant, Issues: issues}
	if !c.Compliant {
		c.Status = fmt.Sprintf("non compliant (%d issues)", len(issues))
	}
	if c.Issues == nil {
		c.Issues = []string{}
	}
	return c
}

// PolicyCheck is the detailed policy verification of a single group.
type PolicyCheck struct {
	Compliant bool     `json:"compliant"`
	Missing   []string `json:"missing,omitempty"`
	Extra     []string `json:"extra,omitempty"`
	Score     int      `json:"score,omitempty"`
	Required  int      `json:"required,omitempty"`
	NonView   []string `json:"non_view,omitempty"`
}

func checkPolicy(name string, perms []string) PolicyCheck {
	current := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if app, _, _, ok := access.ParsePermission(p); ok && app == access.AppSuivi {
			current[p] = struct{}{}
		}
	}

	var pc PolicyCheck
	switch name {
	case access.GroupRH:
		expected := make(map[string]struct{})
		for _, model := range access.SuiviModels {
			for _, p := range access.ModelPermissions(model) {
				expected[p] = struct{}{}
			}
		}
		for p := range expected {
			if _, ok := current[p]; !ok {
				pc.Missing = append(pc.Missing, p)
			}
		}
		for p := range current {
			if _, ok := expected[p]; !ok {
				pc.Extra = append(pc.Extra, p)
			}
		}
		sort.Strings(pc.Missing)
		sort.Strings(pc.Extra)
		pc.Compliant = len(pc.Missing) == 0 && len(pc.Extra) == 0
	case access.GroupExploitation:
		pc.Required = len(exploitationRequired)
		for _, p := range exploitationRequired {
			if _, ok := current[p]; ok {
				pc.Score++
			} else {
				pc.Missing = append(pc.Missing, p)
			}
		}
		pc.Compliant = pc.Score == pc.Required
	case access.GroupDirection:
		for _, p := range core.SortedKeys(current) {
			if _, action, _, _ := access.ParsePermission(p); action != access.ActionView {
				pc.NonView = append(pc.NonView, p)
			}
		}
		pc.Compliant = len(pc.NonView) == 0
	default:
		pc.Compliant = true
	}
	return pc
}

type GroupVerification struct {
	Name             string                  `json:"name"`
	Users            int                     `json:"users"`
	TotalPermissions int                     `json:"total_permissions"`
	SuiviPermissions int                     `json:"suivi_permissions"`
	Models           map[string]*ModelAccess `json:"models"`
	Policy           PolicyCheck             `json:"policy"`
}

func (svc *service) VerifyGroup(ctx context.Context, name string) (GroupVerification, error) {
	g, err := svc.repo.GetGroup(ctx, name)
	if err != nil {
		return GroupVerification{}, err
	}
	members, err := svc.members(ctx, g.Name)
	if err != nil {
		return GroupVerification{}, errors.Wrap(err, "querying group members")
	}
	perms := append([]string(nil), g.Permissions...)
	sort.Strings(perms)
	return GroupVerification{
		Name:             g.Name,
		Users:            len(members),
		TotalPermissions: len(perms),
		SuiviPermissions: countApp(perms, access.AppSuivi),
		Models:           analyze(perms, ""),
		Policy:           checkPolicy(g.Name, perms),
	}, nil
}

type UserVerification struct {
	Username         string   `json:"username"`
	FullName         string   `json:"full_name"`
	Groups           []string `json:"groups"`
	GroupPermissions int      `json:"group_permissions"`
	Effective        []string `json:"effective_permissions"`
	SuiviPermissions int      `json:"suivi_permissions"`
}

func (svc *service) VerifyUser(ctx context.Context, username string) (UserVerification, error) {
	usr, err := svc.usrSvc.GetByUsername(ctx, username)
	if err != nil {
		return UserVerification{}, err
	}

	groupPerms := make(map[string]struct{})
	for _, name := range usr.Groups {
		g, err := svc.repo.GetGroup(ctx, name)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return UserVerification{}, errors.Wrap(err, "finding user group")
		}
		for _, p := range g.Permissions {
			groupPerms[p] = struct{}{}
		}
	}
	effective, err := svc.UserPermissions(ctx, usr)
	if err != nil {
		return UserVerification{}, err
	}

	groups := append([]string{}, usr.Groups...)
	sort.Strings(groups)
	return UserVerification{
		Username:         usr.Username,
		FullName:         usr.FullName(),
		Groups:           groups,
		GroupPermissions: len(groupPerms),
		Effective:        effective,
		SuiviPermissions: countApp(effective, access.AppSuivi),
	}, nil
}

type GroupReport struct {
	UsersCount       int                     `json:"users_count"`
	PermissionsCount int                     `json:"permissions_count"`
	Models           map[string]*ModelAccess `json:"models"`
}

type ReportSummary struct {
	TotalGroups   int `json:"total_groups"`
	UsersInGroups int `json:"users_in_groups"`
	TotalUsers    int `json:"total_users"`
}

type ReportMetadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	TotalGroups int       `json:"total_groups"`
	Command     string    `json:"command"`
}

// Report is the permission verification of every stored group.
type Report struct {
	Groups     map[string]GroupReport `json:"groups"`
	Summary    ReportSummary          `json:"summary"`
	Compliance map[string]Compliance  `json:"compliance"`
	Metadata   *ReportMetadata        `json:"metadata,omitempty"`
}

// missingGroup is the compliance of a policy group which is not stored.
var missingGroup = Compliance{Status: "missing group", Issues: []string{}}

func (svc *service) Report(ctx context.Context) (Report, error) {
	groups, err := svc.repo.QueryGroups(ctx)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying groups")
	}
	users, err := svc.usrSvc.Query(ctx, nil, nil)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying users")
	}

	rep := Report{
		Groups:     make(map[string]GroupReport, len(groups)),
		Compliance: make(map[string]Compliance, 3),
	}
	for _, g := range groups {
		members := 0
		for _, u := range users {
			if u.InGroup(g.Name) {
				members++
			}
		}
		rep.Groups[g.Name] = GroupReport{
			UsersCount:       members,
			PermissionsCount: countApp(g.Permissions, access.AppSuivi),
			Models:           analyze(g.Permissions, access.AppSuivi),
		}
	}

	rep.Summary = ReportSummary{TotalGroups: len(groups), TotalUsers: len(users)}
	for _, u := range users {
		if len(u.Groups) > 0 {
			rep.Summary.UsersInGroups++
		}
	}

	for _, name := range []string{access.GroupRH, access.GroupExploitation, access.GroupDirection} {
		gr, ok := rep.Groups[name]
		if !ok {
			rep.Compliance[name] = missingGroup
			continue
		}
		rep.Compliance[name] = CheckCompliance(name, gr.Models)
	}
	return rep, nil
}

// ExportReport writes rep along with its metadata as indented JSON.
func ExportReport(w io.Writer, rep Report, generatedAt time.Time) error {
	rep.Metadata = &ReportMetadata{
		GeneratedAt: generatedAt,
		TotalGroups: len(rep.Groups),
		Command:     exportCommand,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return nil
}
