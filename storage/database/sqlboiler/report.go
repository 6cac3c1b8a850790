// Package boiledrepos runs the aggregate report queries through sqlboiler raw queries.
package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/report"
)

type reportRepository struct {
	exec core.DBExecutor
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(exec core.DBExecutor) report.Repository {
	return &reportRepository{exec: exec}
}

type count struct {
	Count int `boil:"count"`
}

func (repo reportRepository) count(ctx context.Context, q string, args ...interface{}) (int, error) {
	var c count
	if err := queries.Raw(q, args...).Bind(ctx, repo.exec, &c); err != nil {
		return 0, err
	}
	return c.Count, nil
}

func (repo reportRepository) DriverCounts(ctx context.Context) (report.DriverCounts, error) {
	var row struct {
		Total          int `boil:"total"`
		Active         int `boil:"active"`
		Interims       int `boil:"interims"`
		Subcontractors int `boil:"subcontractors"`
		Permanents     int `boil:"permanents"`
	}
	err := queries.Raw(`
		SELECT COUNT(*) AS total,
		    COUNT(*) FILTER (WHERE active) AS active,
		    COUNT(*) FILTER (WHERE active AND interim) AS interims,
		    COUNT(*) FILTER (WHERE active AND subcontractor) AS subcontractors,
		    COUNT(*) FILTER (WHERE active AND NOT interim AND NOT subcontractor) AS permanents
		FROM drivers`).Bind(ctx, repo.exec, &row)
	if err != nil {
		return report.DriverCounts{}, errors.Wrap(err, "counting drivers")
	}
	return report.DriverCounts{
		Total:          row.Total,
		Active:         row.Active,
		Inactive:       row.Total - row.Active,
		Interims:       row.Interims,
		Subcontractors: row.Subcontractors,
		Permanents:     row.Permanents,
	}, nil
}

func (repo reportRepository) CountEvaluations(ctx context.Context, since time.Time) (int, error) {
	cnt, err := repo.count(ctx, "SELECT COUNT(*) AS count FROM evaluations WHERE $1::date IS NULL OR date >= $1::date",
		null.NewTime(since, !since.IsZero()))
	return cnt, errors.Wrap(err, "counting evaluations")
}

func (repo reportRepository) EvaluationsByType(ctx context.Context) ([]report.TypeCount, error) {
	var rows []struct {
		TypeID   string `boil:"type_id"`
		TypeName string `boil:"type_name"`
		Count    int    `boil:"count"`
	}
	err := queries.Raw(`
		SELECT t.id::text AS type_id, t.name AS type_name, COUNT(ev.id) AS count
		FROM evaluation_types t
		LEFT JOIN evaluations ev ON ev.type_id = t.id
		GROUP BY t.id
		ORDER BY lower(t.name)`).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "counting evaluations by type")
	}
	counts := make([]report.TypeCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, report.TypeCount{TypeID: r.TypeID, TypeName: r.TypeName, Count: r.Count})
	}
	return counts, nil
}

func (repo reportRepository) CountActiveCompanies(ctx context.Context) (int, error) {
	cnt, err := repo.count(ctx, "SELECT COUNT(*) AS count FROM companies WHERE active")
	return cnt, errors.Wrap(err, "counting active companies")
}

func (repo reportRepository) CountSites(ctx context.Context) (int, error) {
	cnt, err := repo.count(ctx, "SELECT COUNT(*) AS count FROM sites")
	return cnt, errors.Wrap(err, "counting sites")
}

func (repo reportRepository) DriversBySite(ctx context.Context) ([]report.SiteBreakdown, error) {
	var rows []struct {
		SiteID string `boil:"site_id"`
		City   string `boil:"city"`
		Total  int    `boil:"total"`
		Active int    `boil:"active"`
	}
	err := queries.Raw(`
		SELECT s.id::text AS site_id, s.city, COUNT(d.id) AS total, COUNT(d.id) FILTER (WHERE d.active) AS active
		FROM sites s
		JOIN drivers d ON d.site_id = s.id
		GROUP BY s.id
		ORDER BY lower(s.city), s.id`).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "counting drivers by site")
	}
	out := make([]report.SiteBreakdown, 0, len(rows))
	for _, r := range rows {
		out = append(out, report.SiteBreakdown{
			SiteID:   r.SiteID,
			City:     r.City,
			Total:    r.Total,
			Active:   r.Active,
			Inactive: r.Total - r.Active,
		})
	}
	return out, nil
}

func (repo reportRepository) DriversByCompany(ctx context.Context) ([]report.CompanyBreakdown, error) {
	var rows []struct {
		CompanyID      string `boil:"company_id"`
		Name           string `boil:"name"`
		Total          int    `boil:"total"`
		Active         int    `boil:"active"`
		Interims       int    `boil:"interims"`
		Subcontractors int    `boil:"subcontractors"`
		Permanents     int    `boil:"permanents"`
	}
	err := queries.Raw(`
		SELECT c.id::text AS company_id, c.name, COUNT(d.id) AS total,
		    COUNT(d.id) FILTER (WHERE d.active) AS active,
		    COUNT(d.id) FILTER (WHERE d.active AND d.interim) AS interims,
		    COUNT(d.id) FILTER (WHERE d.active AND d.subcontractor) AS subcontractors,
		    COUNT(d.id) FILTER (WHERE d.active AND NOT d.interim AND NOT d.subcontractor) AS permanents
		FROM companies c
		JOIN drivers d ON d.company_id = c.id
		WHERE c.active
		GROUP BY c.id
		ORDER BY lower(c.name)`).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "counting drivers by company")
	}
	out := make([]report.CompanyBreakdown, 0, len(rows))
	for _, r := range rows {
		out = append(out, report.CompanyBreakdown{
			CompanyID:      r.CompanyID,
			Name:           r.Name,
			Total:          r.Total,
			Active:         r.Active,
			Inactive:       r.Total - r.Active,
			Interims:       r.Interims,
			Subcontractors: r.Subcontractors,
			Permanents:     r.Permanents,
		})
	}
	return out, nil
}

func (repo reportRepository) EvaluationsByMonth(ctx context.Context, since time.Time) ([]report.MonthCount, error) {
	var rows []struct {
		Month time.Time `boil:"month"`
		Count int       `boil:"count"`
	}
	err := queries.Raw(`
		SELECT date_trunc('month', date)::date AS month, COUNT(*) AS count
		FROM evaluations
		WHERE $1::date IS NULL OR date >= $1::date
		GROUP BY 1
		ORDER BY 1`,
		null.NewTime(since, !since.IsZero())).Bind(ctx, repo.exec, &rows)
	if err != nil {
		return nil, errors.Wrap(err, "counting evaluations by month")
	}
	out := make([]report.MonthCount, 0, len(rows))
	for _, r := range rows {
		y, m, _ := r.Month.Date()
		out = append(out, report.MonthCount{Month: time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), Count: r.Count})
	}
	return out, nil
}
