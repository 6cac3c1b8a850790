package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/fleetops/suivi/core/report"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil)

func NewReportRepository(db *DB) report.Repository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) DriverCounts(_ context.Context) (report.DriverCounts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var counts report.DriverCounts
	for _, d := range repo.db.drivers {
		counts.Total++
		if !d.Active {
			counts.Inactive++
			continue
		}
		counts.Active++
		if d.Interim {
			counts.Interims++
		}
		if d.Subcontractor {
			counts.Subcontractors++
		}
		if d.Permanent() {
			counts.Permanents++
		}
	}
	return counts, nil
}

func (repo *reportRepository) CountEvaluations(_ context.Context, since time.Time) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cnt := 0
	for _, ev := range repo.db.evaluations {
		if since.IsZero() || !ev.Date.Before(since) {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *reportRepository) EvaluationsByType(_ context.Context) ([]report.TypeCount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make([]report.TypeCount, 0, len(repo.db.types))
	for _, typ := range repo.db.types {
		tc := report.TypeCount{TypeID: typ.ID, TypeName: typ.Name}
		for _, ev := range repo.db.evaluations {
			if ev.TypeID == typ.ID {
				tc.Count++
			}
		}
		counts = append(counts, tc)
	}
	sort.Slice(counts, func(i, j int) bool { return lessFold(counts[i].TypeName, counts[j].TypeName) })
	return counts, nil
}

func (repo *reportRepository) CountActiveCompanies(_ context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cnt := 0
	for _, c := range repo.db.companies {
		if c.Active {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *reportRepository) CountSites(_ context.Context) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.db.sites), nil
}

func (repo *reportRepository) DriversBySite(_ context.Context) ([]report.SiteBreakdown, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	bySite := make(map[string]*report.SiteBreakdown)
	for _, d := range repo.db.drivers {
		sb, ok := bySite[d.SiteID]
		if !ok {
			sb = &report.SiteBreakdown{SiteID: d.SiteID, City: repo.db.sites[d.SiteID].City}
			bySite[d.SiteID] = sb
		}
		sb.Total++
		if d.Active {
			sb.Active++
		} else {
			sb.Inactive++
		}
	}

	out := make([]report.SiteBreakdown, 0, len(bySite))
	for _, sb := range bySite {
		out = append(out, *sb)
	}
	sort.Slice(out, func(i, j int) bool {
		if !strings.EqualFold(out[i].City, out[j].City) {
			return lessFold(out[i].City, out[j].City)
		}
		return out[i].SiteID < out[j].SiteID
	})
	return out, nil
}

func (repo *reportRepository) DriversByCompany(_ context.Context) ([]report.CompanyBreakdown, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byComp := make(map[string]*report.CompanyBreakdown)
	for _, d := range repo.db.drivers {
		comp, ok := repo.db.companies[d.CompanyID]
		if !ok || !comp.Active {
			continue
		}
		cb, ok := byComp[comp.ID]
		if !ok {
			cb = &report.CompanyBreakdown{CompanyID: comp.ID, Name: comp.Name}
			byComp[comp.ID] = cb
		}
		cb.Total++
		if !d.Active {
			cb.Inactive++
			continue
		}
		cb.Active++
		if d.Interim {
			cb.Interims++
		}
		if d.Subcontractor {
			cb.Subcontractors++
		}
		if d.Permanent() {
			cb.Permanents++
		}
	}

	out := make([]report.CompanyBreakdown, 0, len(byComp))
	for _, cb := range byComp {
		out = append(out, *cb)
	}
	sort.Slice(out, func(i, j int) bool { return lessFold(out[i].Name, out[j].Name) })
	return out, nil
}

func (repo *reportRepository) EvaluationsByMonth(_ context.Context, since time.Time) ([]report.MonthCount, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byMonth := make(map[time.Time]int)
	for _, ev := range repo.db.evaluations {
		if !since.IsZero() && ev.Date.Before(since) {
			continue
		}
		y, m, _ := ev.Date.UTC().Date()
		byMonth[time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)]++
	}

	out := make([]report.MonthCount, 0, len(byMonth))
	for month, cnt := range byMonth {
		out = append(out, report.MonthCount{Month: month, Count: cnt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out, nil
}
