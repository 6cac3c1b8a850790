package org

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
)

var (
	// errors
	ErrSiteNotFound       = core.NewNotFoundError(errors.New("site not found"))
	ErrCompanyNotFound    = core.NewNotFoundError(errors.New("company not found"))
	ErrDepartmentNotFound = core.NewNotFoundError(errors.New("department not found"))
	ErrExternalIDExists   = errors.New("a company with this socid already exists")
)

const maxSiteCompanies = 10

type (
	Repository interface {
		CreateSite(ctx context.Context, site Site) (Site, error)
		GetSite(ctx context.Context, id string) (Site, error)
		QuerySites(ctx context.Context, filter SiteFilter) ([]Site, error)
		UpdateSite(ctx context.Context, site Site) (Site, error)
		DeleteSite(ctx context.Context, id string) error
		// SiteStats returns the filtered sites, ordered by city, along with up to `maxCompanies` active companies each.
		SiteStats(ctx context.Context, filter SiteFilter, maxCompanies int) ([]SiteStats, error)
		PostalCodes(ctx context.Context) ([]string, error)

		CreateCompany(ctx context.Context, comp Company) (Company, error)
		GetCompany(ctx context.Context, id string) (Company, error)
		GetCompanyByExternalID(ctx context.Context, externalID int) (Company, error)
		QueryCompanies(ctx context.Context, filter CompanyFilter) ([]Company, error)
		UpdateCompany(ctx context.Context, comp Company) (Company, error)
		DeleteCompany(ctx context.Context, id string) error
		CompanyStats(ctx context.Context, filter CompanyFilter) ([]CompanyStats, error)

		CreateDepartment(ctx context.Context, dept Department) (Department, error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		GetDepartmentByName(ctx context.Context, name string) (Department, error)
		QueryDepartments(ctx context.Context) ([]Department, error)
		UpdateDepartment(ctx context.Context, dept Department) (Department, error)
		DeleteDepartment(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		CreateSite(ctx context.Context, in SiteInput) (Site, error)
		GetSite(ctx context.Context, id string) (Site, error)
		QuerySites(ctx context.Context, filter SiteFilter) ([]Site, error)
		UpdateSite(ctx context.Context, site Site, in SiteInput) (Site, error)
		DeleteSite(ctx context.Context, id string) error
		SiteList(ctx context.Context, filter SiteFilter) (SiteList, error)

		CheckExternalID(externalID int, exclude ...Company) error
		CreateCompany(ctx context.Context, in CompanyInput) (Company, error)
		GetCompany(ctx context.Context, id string) (Company, error)
		QueryCompanies(ctx context.Context, filter CompanyFilter) ([]Company, error)
		UpdateCompany(ctx context.Context, comp Company, in CompanyInput) (Company, error)
		DeleteCompany(ctx context.Context, id string) error
		CompanyList(ctx context.Context, filter CompanyFilter) ([]CompanyStats, error)

		CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error)
		GetDepartment(ctx context.Context, id string) (Department, error)
		QueryDepartments(ctx context.Context) ([]Department, error)
		UpdateDepartment(ctx context.Context, dept Department, in DepartmentInput) (Department, error)
		DeleteDepartment(ctx context.Context, id string) error
		// GetOrCreateDepartment returns the department named `name`, creating it with `abbr` if needed.
		GetOrCreateDepartment(ctx context.Context, name, abbr string) (Department, bool, error)
	}

	SiteList struct {
		Sites       []SiteStats `json:"sites"`
		Count       int         `json:"count"`
		PostalCodes []string    `json:"postal_codes"`
	}

	service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository) ServiceInterface {
	return &service{repo: repo}
}

// Sites

func (svc *service) CreateSite(ctx context.Context, in SiteInput) (Site, error) {
	return svc.repo.CreateSite(ctx, Site{
		City:       in.City,
		PostalCode: in.PostalCode,
		CreatedAt:  time.Now().UTC(),
	})
}

func (svc *service) GetSite(ctx context.Context, id string) (Site, error) {
	return svc.repo.GetSite(ctx, id)
}

func (svc *service) QuerySites(ctx context.Context, filter SiteFilter) ([]Site, error) {
	return svc.repo.QuerySites(ctx, filter)
}

func (svc *service) UpdateSite(ctx context.Context, site Site, in SiteInput) (Site, error) {
	site.City = in.City
	site.PostalCode = in.PostalCode
	return svc.repo.UpdateSite(ctx, site)
}

func (svc *service) DeleteSite(ctx context.Context, id string) error {
	return svc.repo.DeleteSite(ctx, id)
}

func (svc *service) SiteList(ctx context.Context, filter SiteFilter) (SiteList, error) {
	filter.Search = core.CleanString(filter.Search)
	filter.PostalCode = core.CleanString(filter.PostalCode)

	sites, err := svc.repo.SiteStats(ctx, filter, maxSiteCompanies)
	if err != nil {
		return SiteList{}, errors.Wrap(err, "querying site stats")
	}
	codes, err := svc.repo.PostalCodes(ctx)
	if err != nil {
		return SiteList{}, errors.Wrap(err, "querying postal codes")
	}
	if sites == nil {
		sites = []SiteStats{}
	}
	return SiteList{Sites: sites, Count: len(sites), PostalCodes: codes}, nil
}

// Companies

func (svc *service) CheckExternalID(externalID int, exclude ...Company) error {
	comp, err := svc.repo.GetCompanyByExternalID(context.Background(), externalID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "finding company by socid")
	}
	for _, ex := range exclude {
		if ex.ID == comp.ID {
			return nil
		}
	}
	return core.NewValidationError(ErrExternalIDExists, core.FieldError{Field: "socid", Error: ErrExternalIDExists.Error()})
}

func (svc *service) CreateCompany(ctx context.Context, in CompanyInput) (Company, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return svc.repo.CreateCompany(ctx, Company{
		ExternalID: in.ExternalID,
		Name:       in.Name,
		Active:     active,
		Code:       in.Code,
		PostalCode: in.PostalCode,
		City:       in.City,
		CreatedAt:  time.Now().UTC(),
	})
}

func (svc *service) GetCompany(ctx context.Context, id string) (Company, error) {
	return svc.repo.GetCompany(ctx, id)
}

func (svc *service) QueryCompanies(ctx context.Context, filter CompanyFilter) ([]Company, error) {
	return svc.repo.QueryCompanies(ctx, filter)
}

func (svc *service) UpdateCompany(ctx context.Context, comp Company, in CompanyInput) (Company, error) {
	comp.ExternalID = in.ExternalID
	comp.Name = in.Name
	comp.Code = in.Code
	comp.PostalCode = in.PostalCode
	comp.City = in.City
	if in.Active != nil {
		comp.Active = *in.Active
	}
	return svc.repo.UpdateCompany(ctx, comp)
}

func (svc *service) DeleteCompany(ctx context.Context, id string) error {
	return svc.repo.DeleteCompany(ctx, id)
}

func (svc *service) CompanyList(ctx context.Context, filter CompanyFilter) ([]CompanyStats, error) {
	filter.Search = core.CleanString(filter.Search)
	if filter.Status != StatusActive && filter.Status != StatusInactive {
		filter.Status = ""
	}
	comps, err := svc.repo.CompanyStats(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying company stats")
	}
	if comps == nil {
		comps = []CompanyStats{}
	}
	return comps, nil
}

// Departments

func (svc *service) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	return svc.repo.CreateDepartment(ctx, Department{
		Name:         in.Name,
		Abbreviation: in.Abbreviation,
		CreatedAt:    time.Now().UTC(),
	})
}

func (svc *service) GetDepartment(ctx context.Context, id string) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *service) QueryDepartments(ctx context.Context) ([]Department, error) {
	return svc.repo.QueryDepartments(ctx)
}

func (svc *service) UpdateDepartment(ctx context.Context, dept Department, in DepartmentInput) (Department, error) {
	dept.Name = in.Name
	dept.Abbreviation = in.Abbreviation
	return svc.repo.UpdateDepartment(ctx, dept)
}

func (svc *service) DeleteDepartment(ctx context.Context, id string) error {
	return svc.repo.DeleteDepartment(ctx, id)
}

func (svc *service) GetOrCreateDepartment(ctx context.Context, name, abbr string) (Department, bool, error) {
	dept, err := svc.repo.GetDepartmentByName(ctx, name)
	if err == nil {
		return dept, false, nil
	}
	if !core.IsNotFound(err) {
		return Department{}, false, errors.Wrap(err, "finding department by name")
	}
	dept, err = svc.CreateDepartment(ctx, DepartmentInput{Name: name, Abbreviation: abbr})
	if err != nil {
		return Department{}, false, errors.Wrap(err, "creating department")
	}
	return dept, true, nil
}
