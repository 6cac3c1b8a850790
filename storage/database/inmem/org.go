package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/org"
)

type orgRepository struct {
	db *DB
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *DB) org.Repository {
	return &orgRepository{db: db}
}

func lessFold(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

// Sites

func matchSite(s org.Site, filter org.SiteFilter) bool {
	if filter.Search != "" && !core.ContainsFold(s.City, filter.Search) && !strings.Contains(s.PostalCode, filter.Search) {
		return false
	}
	return filter.PostalCode == "" || s.PostalCode == filter.PostalCode
}

func (repo *orgRepository) CreateSite(_ context.Context, site org.Site) (org.Site, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	site.ID = newID()
	repo.db.sites[site.ID] = site
	return site, nil
}

func (repo *orgRepository) GetSite(_ context.Context, id string) (org.Site, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.sites[id]; ok {
		return s, nil
	}
	return org.Site{}, org.ErrSiteNotFound
}

func (repo *orgRepository) querySites(filter org.SiteFilter) []org.Site {
	sites := make([]org.Site, 0, len(repo.db.sites))
	for _, s := range repo.db.sites {
		if matchSite(s, filter) {
			sites = append(sites, s)
		}
	}
	sort.Slice(sites, func(i, j int) bool {
		if !strings.EqualFold(sites[i].City, sites[j].City) {
			return lessFold(sites[i].City, sites[j].City)
		}
		return sites[i].PostalCode < sites[j].PostalCode
	})
	return sites
}

func (repo *orgRepository) QuerySites(_ context.Context, filter org.SiteFilter) ([]org.Site, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.querySites(filter), nil
}

func (repo *orgRepository) UpdateSite(_ context.Context, site org.Site) (org.Site, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.sites[site.ID]; !ok {
		return org.Site{}, org.ErrSiteNotFound
	}
	repo.db.sites[site.ID] = site
	return site, nil
}

func (repo *orgRepository) DeleteSite(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.sites[id]; !ok {
		return org.ErrSiteNotFound
	}
	delete(repo.db.sites, id)
	for dID, d := range repo.db.drivers {
		if d.SiteID == id {
			repo.db.deleteDriverCascade(dID)
		}
	}
	return nil
}

func (repo *orgRepository) SiteStats(_ context.Context, filter org.SiteFilter, maxCompanies int) ([]org.SiteStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sites := repo.querySites(filter)
	stats := make([]org.SiteStats, 0, len(sites))
	for _, s := range sites {
		st := org.SiteStats{Site: s, Companies: []org.Company{}}
		activeComps := make(map[string]struct{})
		for _, d := range repo.db.drivers {
			if d.SiteID != s.ID {
				continue
			}
			st.Drivers++
			if !d.Active {
				continue
			}
			st.ActiveDrivers++
			if d.Interim {
				st.Interims++
			}
			if d.Subcontractor {
				st.Subcontractors++
			}
			if d.Permanent() {
				st.Permanents++
			}
			if comp, ok := repo.db.companies[d.CompanyID]; ok && comp.Active {
				activeComps[comp.ID] = struct{}{}
			}
		}
		st.ActiveCompanies = len(activeComps)
		for _, id := range core.SortedKeys(activeComps) {
			st.Companies = append(st.Companies, repo.db.companies[id])
		}
		sort.Slice(st.Companies, func(i, j int) bool { return lessFold(st.Companies[i].Name, st.Companies[j].Name) })
		if maxCompanies > 0 && len(st.Companies) > maxCompanies {
			st.Companies = st.Companies[:maxCompanies]
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func (repo *orgRepository) PostalCodes(_ context.Context) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	set := make(map[string]struct{})
	for _, s := range repo.db.sites {
		set[s.PostalCode] = struct{}{}
	}
	return core.SortedKeys(set), nil
}

// Companies

func (repo *orgRepository) CreateCompany(_ context.Context, comp org.Company) (org.Company, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, c := range repo.db.companies {
		if c.ExternalID == comp.ExternalID {
			return org.Company{}, org.ErrExternalIDExists
		}
	}
	comp.ID = newID()
	repo.db.companies[comp.ID] = comp
	return comp, nil
}

func (repo *orgRepository) GetCompany(_ context.Context, id string) (org.Company, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.companies[id]; ok {
		return c, nil
	}
	return org.Company{}, org.ErrCompanyNotFound
}

func (repo *orgRepository) GetCompanyByExternalID(_ context.Context, externalID int) (org.Company, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, c := range repo.db.companies {
		if c.ExternalID == externalID {
			return c, nil
		}
	}
	return org.Company{}, org.ErrCompanyNotFound
}

func matchCompany(c org.Company, filter org.CompanyFilter) bool {
	if filter.Search != "" && !core.ContainsFold(c.Name, filter.Search) && !core.ContainsFold(c.Code, filter.Search) &&
		!core.ContainsFold(c.City, filter.Search) {
		return false
	}
	switch filter.Status {
	case org.StatusActive:
		return c.Active
	case org.StatusInactive:
		return !c.Active
	}
	return true
}

func (repo *orgRepository) queryCompanies(filter org.CompanyFilter) []org.Company {
	comps := make([]org.Company, 0, len(repo.db.companies))
	for _, c := range repo.db.companies {
		if matchCompany(c, filter) {
			comps = append(comps, c)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return lessFold(comps[i].Name, comps[j].Name) })
	return comps
}

func (repo *orgRepository) QueryCompanies(_ context.Context, filter org.CompanyFilter) ([]org.Company, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.queryCompanies(filter), nil
}

func (repo *orgRepository) UpdateCompany(_ context.Context, comp org.Company) (org.Company, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.companies[comp.ID]; !ok {
		return org.Company{}, org.ErrCompanyNotFound
	}
	for _, c := range repo.db.companies {
		if c.ID != comp.ID && c.ExternalID == comp.ExternalID {
			return org.Company{}, org.ErrExternalIDExists
		}
	}
	repo.db.companies[comp.ID] = comp
	return comp, nil
}

func (repo *orgRepository) DeleteCompany(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.companies[id]; !ok {
		return org.ErrCompanyNotFound
	}
	delete(repo.db.companies, id)
	for dID, d := range repo.db.drivers {
		if d.CompanyID == id {
			repo.db.deleteDriverCascade(dID)
		}
	}
	return nil
}

func (repo *orgRepository) CompanyStats(_ context.Context, filter org.CompanyFilter) ([]org.CompanyStats, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	comps := repo.queryCompanies(filter)
	stats := make([]org.CompanyStats, 0, len(comps))
	for _, c := range comps {
		st := org.CompanyStats{Company: c}
		for _, d := range repo.db.drivers {
			if d.CompanyID != c.ID {
				continue
			}
			st.Drivers++
			if d.Active {
				st.ActiveDrivers++
			}
		}
		stats = append(stats, st)
	}
	return stats, nil
}

// Departments

func (repo *orgRepository) CreateDepartment(_ context.Context, dept org.Department) (org.Department, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	dept.ID = newID()
	repo.db.departments[dept.ID] = dept
	return dept, nil
}

func (repo *orgRepository) GetDepartment(_ context.Context, id string) (org.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if d, ok := repo.db.departments[id]; ok {
		return d, nil
	}
	return org.Department{}, org.ErrDepartmentNotFound
}

func (repo *orgRepository) GetDepartmentByName(_ context.Context, name string) (org.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, d := range repo.db.departments {
		if d.Name == name {
			return d, nil
		}
	}
	return org.Department{}, org.ErrDepartmentNotFound
}

func (repo *orgRepository) QueryDepartments(_ context.Context) ([]org.Department, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	depts := make([]org.Department, 0, len(repo.db.departments))
	for _, d := range repo.db.departments {
		depts = append(depts, d)
	}
	sort.Slice(depts, func(i, j int) bool { return lessFold(depts[i].Name, depts[j].Name) })
	return depts, nil
}

func (repo *orgRepository) UpdateDepartment(_ context.Context, dept org.Department) (org.Department, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.departments[dept.ID]; !ok {
		return org.Department{}, org.ErrDepartmentNotFound
	}
	repo.db.departments[dept.ID] = dept
	return dept, nil
}

func (repo *orgRepository) DeleteDepartment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.departments[id]; !ok {
		return org.ErrDepartmentNotFound
	}
	delete(repo.db.departments, id)
	for uID, u := range repo.db.users {
		if u.Profile.DepartmentID == id {
			u.Profile.DepartmentID = ""
			repo.db.users[uID] = u
		}
	}
	for eID, ev := range repo.db.evaluators {
		if ev.DepartmentID == id {
			ev.DepartmentID = ""
			repo.db.evaluators[eID] = ev
		}
	}
	return nil
}
