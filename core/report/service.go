package report

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/user"
)

const (
	recentEvaluationsLen = 5
	statisticsPeriod     = 365 * 24 * time.Hour
)

var (
	permViewDriver     = access.Perm(access.AppSuivi, access.ActionView, access.ModelDriver)
	permViewEvaluation = access.Perm(access.AppSuivi, access.ActionView, access.ModelEvaluation)
)

// nowFunc is mocked in tests
var nowFunc = time.Now

type (
	// Repository runs the aggregate queries. Dates are compared on the evaluation date.
	Repository interface {
		DriverCounts(ctx context.Context) (DriverCounts, error)
		// CountEvaluations counts the evaluations dated on or after `since`; all of them when since is zero.
		CountEvaluations(ctx context.Context, since time.Time) (int, error)
		// EvaluationsByType returns every evaluation type with its evaluation count, ordered by name.
		EvaluationsByType(ctx context.Context) ([]TypeCount, error)
		CountActiveCompanies(ctx context.Context) (int, error)
		CountSites(ctx context.Context) (int, error)
		// DriversBySite returns the sites holding at least one driver, ordered by city.
		DriversBySite(ctx context.Context) ([]SiteBreakdown, error)
		// DriversByCompany returns the active companies holding at least one driver, ordered by name.
		DriversByCompany(ctx context.Context) ([]CompanyBreakdown, error)
		// EvaluationsByMonth counts the evaluations dated on or after `since`, per month, oldest first.
		EvaluationsByMonth(ctx context.Context, since time.Time) ([]MonthCount, error)
	}

	// Authorizer tells what a user is allowed to see.
	Authorizer interface {
		HasPerm(ctx context.Context, usr user.User, perm string) (bool, error)
		UserPermissions(ctx context.Context, usr user.User) ([]string, error)
	}

	ServiceInterface interface {
		Dashboard(ctx context.Context, usr user.User) (Dashboard, error)
		DashboardStats(ctx context.Context, usr user.User) (DashboardStats, error)
		Statistics(ctx context.Context) (Statistics, error)
	}

	service struct {
		repo    Repository
		evalSvc evaluation.ServiceInterface
		auth    Authorizer
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, evalSvc evaluation.ServiceInterface, auth Authorizer) ServiceInterface {
	return &service{
		repo:    repo,
		evalSvc: evalSvc,
		auth:    auth,
	}
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func intPtr(i int) *int { return &i }

func (svc *service) Dashboard(ctx context.Context, usr user.User) (Dashboard, error) {
	dash := Dashboard{
		RecentEvaluations: []evaluation.Evaluation{},
		CanEvaluate:       usr.CanEvaluate(),
	}

	canViewDrivers, err := svc.auth.HasPerm(ctx, usr, permViewDriver)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "checking driver permission")
	}
	if canViewDrivers {
		counts, err := svc.repo.DriverCounts(ctx)
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "counting drivers")
		}
		dash.ActiveDrivers = intPtr(counts.Active)
	}

	canViewEvals, err := svc.auth.HasPerm(ctx, usr, permViewEvaluation)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "checking evaluation permission")
	}
	if canViewEvals {
		total, err := svc.repo.CountEvaluations(ctx, time.Time{})
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "counting evaluations")
		}
		month, err := svc.repo.CountEvaluations(ctx, monthStart(nowFunc()))
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "counting month evaluations")
		}
		recent, err := svc.evalSvc.Query(ctx, evaluation.QueryFilter{Limit: recentEvaluationsLen})
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "querying recent evaluations")
		}
		dash.TotalEvaluations = intPtr(total)
		dash.MonthEvaluations = intPtr(month)
		dash.RecentEvaluations = recent
	}
	return dash, nil
}

func (svc *service) DashboardStats(ctx context.Context, usr user.User) (DashboardStats, error) {
	var stats DashboardStats

	canViewEvals, err := svc.auth.HasPerm(ctx, usr, permViewEvaluation)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "checking evaluation permission")
	}
	if canViewEvals {
		month, err := svc.repo.CountEvaluations(ctx, monthStart(nowFunc()))
		if err != nil {
			return DashboardStats{}, errors.Wrap(err, "counting month evaluations")
		}
		byType, err := svc.repo.EvaluationsByType(ctx)
		if err != nil {
			return DashboardStats{}, errors.Wrap(err, "counting evaluations by type")
		}
		es := &EvaluationStats{ThisMonth: month, ByType: make(map[string]int, len(byType))}
		for _, tc := range byType {
			es.ByType[tc.TypeName] = tc.Count
			es.Total += tc.Count
		}
		stats.Evaluations = es
	}

	canViewDrivers, err := svc.auth.HasPerm(ctx, usr, permViewDriver)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "checking driver permission")
	}
	if canViewDrivers {
		counts, err := svc.repo.DriverCounts(ctx)
		if err != nil {
			return DashboardStats{}, errors.Wrap(err, "counting drivers")
		}
		stats.Drivers = &DriverStats{Total: counts.Total, Active: counts.Active}
	}

	perms, err := svc.auth.UserPermissions(ctx, usr)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "listing user permissions")
	}
	groups := append([]string{}, usr.Groups...)
	sort.Strings(groups)
	stats.User = UserStats{Groups: groups, Permissions: len(perms)}
	return stats, nil
}

func (svc *service) Statistics(ctx context.Context) (Statistics, error) {
	now := nowFunc().UTC()
	stats := Statistics{GeneratedAt: now, PeriodStart: now.Add(-statisticsPeriod)}

	var err error
	if stats.Drivers, err = svc.repo.DriverCounts(ctx); err != nil {
		return Statistics{}, errors.Wrap(err, "counting drivers")
	}
	evals, err := svc.repo.CountEvaluations(ctx, time.Time{})
	if err != nil {
		return Statistics{}, errors.Wrap(err, "counting evaluations")
	}
	companies, err := svc.repo.CountActiveCompanies(ctx)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "counting companies")
	}
	sites, err := svc.repo.CountSites(ctx)
	if err != nil {
		return Statistics{}, errors.Wrap(err, "counting sites")
	}
	stats.Totals = Totals{
		ActiveDrivers:   stats.Drivers.Active,
		Evaluations:     evals,
		ActiveCompanies: companies,
		Sites:           sites,
	}

	if stats.BySite, err = svc.repo.DriversBySite(ctx); err != nil {
		return Statistics{}, errors.Wrap(err, "counting drivers by site")
	}
	if stats.ByCompany, err = svc.repo.DriversByCompany(ctx); err != nil {
		return Statistics{}, errors.Wrap(err, "counting drivers by company")
	}
	if stats.ByMonth, err = svc.repo.EvaluationsByMonth(ctx, stats.PeriodStart); err != nil {
		return Statistics{}, errors.Wrap(err, "counting evaluations by month")
	}
	if stats.ScoresByType, err = svc.scoresByType(ctx); err != nil {
		return Statistics{}, err
	}
	return stats, nil
}

// scoresByType averages the scores of each evaluation type. Types without any score are left out.
func (svc *service) scoresByType(ctx context.Context) (map[string]TypeScore, error) {
	evals, err := svc.evalSvc.Query(ctx, evaluation.QueryFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	type acc struct {
		sum          float64
		scored, seen int
	}
	byType := make(map[string]*acc)
	for _, ev := range evals {
		a, ok := byType[ev.TypeName]
		if !ok {
			a = &acc{}
			byType[ev.TypeName] = a
		}
		a.seen++
		if ev.Score != nil {
			a.sum += *ev.Score
			a.scored++
		}
	}

	scores := make(map[string]TypeScore, len(byType))
	for name, a := range byType {
		if a.scored == 0 {
			continue
		}
		scores[name] = TypeScore{Mean: a.sum / float64(a.scored), Count: a.scored, TotalEvaluations: a.seen}
	}
	return scores, nil
}
