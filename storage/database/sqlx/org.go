package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/org"
)

const (
	siteColumns       = "s.id, s.city, s.postal_code, s.created_at"
	companyColumns    = "c.id, c.external_id, c.name, c.active, c.code, c.postal_code, c.city, c.created_at"
	departmentColumns = "id, name, abbreviation, created_at"
)

type siteRow struct {
	ID         string    `db:"id"`
	City       string    `db:"city"`
	PostalCode string    `db:"postal_code"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r siteRow) site() org.Site {
	return org.Site{ID: r.ID, City: r.City, PostalCode: r.PostalCode, CreatedAt: r.CreatedAt.UTC()}
}

type companyRow struct {
	ID         string    `db:"id"`
	ExternalID int       `db:"external_id"`
	Name       string    `db:"name"`
	Active     bool      `db:"active"`
	Code       string    `db:"code"`
	PostalCode string    `db:"postal_code"`
	City       string    `db:"city"`
	CreatedAt  time.Time `db:"created_at"`
}

func newCompanyRow(c org.Company) companyRow {
	return companyRow{
		ID:         c.ID,
		ExternalID: c.ExternalID,
		Name:       c.Name,
		Active:     c.Active,
		Code:       c.Code,
		PostalCode: c.PostalCode,
		City:       c.City,
		CreatedAt:  c.CreatedAt,
	}
}

func (r companyRow) company() org.Company {
	return org.Company{
		ID:         r.ID,
		ExternalID: r.ExternalID,
		Name:       r.Name,
		Active:     r.Active,
		Code:       r.Code,
		PostalCode: r.PostalCode,
		City:       r.City,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type departmentRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Abbreviation string    `db:"abbreviation"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r departmentRow) department() org.Department {
	return org.Department{ID: r.ID, Name: r.Name, Abbreviation: r.Abbreviation, CreatedAt: r.CreatedAt.UTC()}
}

type orgRepository struct {
	db *sqlx.DB
}

var _ org.Repository = (*orgRepository)(nil)

func NewOrgRepository(db *sqlx.DB) org.Repository {
	return &orgRepository{db: db}
}

func deleted(res sql.Result, err error, notFound error, what string) error {
	if err != nil {
		return errors.Wrap(err, "deleting "+what)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound
	}
	return nil
}

// Sites

func siteConditions(filter org.SiteFilter) *conditions {
	conds := new(conditions)
	if filter.Search != "" {
		conds.add("(s.city ILIKE ? OR s.postal_code LIKE ?)", "%"+filter.Search+"%")
	}
	if filter.PostalCode != "" {
		conds.add("s.postal_code = ?", filter.PostalCode)
	}
	return conds
}

func (repo *orgRepository) CreateSite(ctx context.Context, site org.Site) (org.Site, error) {
	site.ID = newID()
	_, err := repo.db.ExecContext(ctx, "INSERT INTO sites (id, city, postal_code, created_at) VALUES ($1, $2, $3, $4)",
		site.ID, site.City, site.PostalCode, site.CreatedAt)
	if err != nil {
		return org.Site{}, errors.Wrap(err, "inserting site")
	}
	return site, nil
}

func (repo *orgRepository) GetSite(ctx context.Context, id string) (org.Site, error) {
	var row siteRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+siteColumns+" FROM sites s WHERE s.id::text = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return org.Site{}, org.ErrSiteNotFound
		}
		return org.Site{}, errors.Wrap(err, "getting site")
	}
	return row.site(), nil
}

func (repo *orgRepository) QuerySites(ctx context.Context, filter org.SiteFilter) ([]org.Site, error) {
	conds := siteConditions(filter)
	var rows []siteRow
	q := "SELECT " + siteColumns + " FROM sites s" + conds.where() + " ORDER BY lower(s.city), s.postal_code"
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying sites")
	}
	sites := make([]org.Site, 0, len(rows))
	for _, r := range rows {
		sites = append(sites, r.site())
	}
	return sites, nil
}

func (repo *orgRepository) UpdateSite(ctx context.Context, site org.Site) (org.Site, error) {
	res, err := repo.db.ExecContext(ctx, "UPDATE sites SET city = $2, postal_code = $3 WHERE id = $1",
		site.ID, site.City, site.PostalCode)
	if err != nil {
		return org.Site{}, errors.Wrap(err, "updating site")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return org.Site{}, org.ErrSiteNotFound
	}
	return site, nil
}

func (repo *orgRepository) DeleteSite(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM sites WHERE id::text = $1", id)
	return deleted(res, err, org.ErrSiteNotFound, "site")
}

func (repo *orgRepository) SiteStats(ctx context.Context, filter org.SiteFilter, maxCompanies int) ([]org.SiteStats, error) {
	conds := siteConditions(filter)
	var rows []struct {
		siteRow
		Drivers         int `db:"drivers"`
		ActiveDrivers   int `db:"active_drivers"`
		Permanents      int `db:"permanents"`
		Interims        int `db:"interims"`
		Subcontractors  int `db:"subcontractors"`
		ActiveCompanies int `db:"active_companies"`
	}
	q := `
		SELECT ` + siteColumns + `,
		    COUNT(d.id) AS drivers,
		    COUNT(d.id) FILTER (WHERE d.active) AS active_drivers,
		    COUNT(d.id) FILTER (WHERE d.active AND NOT d.interim AND NOT d.subcontractor) AS permanents,
		    COUNT(d.id) FILTER (WHERE d.active AND d.interim) AS interims,
		    COUNT(d.id) FILTER (WHERE d.active AND d.subcontractor) AS subcontractors,
		    COUNT(DISTINCT c.id) FILTER (WHERE d.active AND c.active) AS active_companies
		FROM sites s
		LEFT JOIN drivers d ON d.site_id = s.id
		LEFT JOIN companies c ON c.id = d.company_id` + conds.where() + `
		GROUP BY s.id
		ORDER BY lower(s.city), s.postal_code`
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying site stats")
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var compRows []struct {
		SiteID string `db:"site_id"`
		companyRow
	}
	err := repo.db.SelectContext(ctx, &compRows, `
		SELECT DISTINCT d.site_id, `+companyColumns+`
		FROM drivers d JOIN companies c ON c.id = d.company_id
		WHERE d.active AND c.active AND d.site_id::text = ANY($1)
		ORDER BY c.name`,
		pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "querying site companies")
	}
	companies := make(map[string][]org.Company)
	for _, r := range compRows {
		if maxCompanies <= 0 || len(companies[r.SiteID]) < maxCompanies {
			companies[r.SiteID] = append(companies[r.SiteID], r.company())
		}
	}

	stats := make([]org.SiteStats, 0, len(rows))
	for _, r := range rows {
		comps := companies[r.ID]
		if comps == nil {
			comps = []org.Company{}
		}
		stats = append(stats, org.SiteStats{
			Site:            r.site(),
			Drivers:         r.Drivers,
			ActiveDrivers:   r.ActiveDrivers,
			Permanents:      r.Permanents,
			Interims:        r.Interims,
			Subcontractors:  r.Subcontractors,
			ActiveCompanies: r.ActiveCompanies,
			Companies:       comps,
		})
	}
	return stats, nil
}

func (repo *orgRepository) PostalCodes(ctx context.Context) ([]string, error) {
	codes := make([]string, 0)
	if err := repo.db.SelectContext(ctx, &codes, "SELECT DISTINCT postal_code FROM sites ORDER BY postal_code"); err != nil {
		return nil, errors.Wrap(err, "querying postal codes")
	}
	return codes, nil
}

// Companies

func (repo *orgRepository) CreateCompany(ctx context.Context, comp org.Company) (org.Company, error) {
	comp.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO companies (id, external_id, name, active, code, postal_code, city, created_at)
		VALUES (:id, :external_id, :name, :active, :code, :postal_code, :city, :created_at)`,
		newCompanyRow(comp))
	if err != nil {
		if uniqueViolated(err, "companies_external_id_key") {
			return org.Company{}, org.ErrExternalIDExists
		}
		return org.Company{}, errors.Wrap(err, "inserting company")
	}
	return comp, nil
}

func (repo *orgRepository) getCompany(ctx context.Context, cond string, arg interface{}) (org.Company, error) {
	var row companyRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+companyColumns+" FROM companies c WHERE "+cond, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return org.Company{}, org.ErrCompanyNotFound
		}
		return org.Company{}, errors.Wrap(err, "getting company")
	}
	return row.company(), nil
}

func (repo *orgRepository) GetCompany(ctx context.Context, id string) (org.Company, error) {
	return repo.getCompany(ctx, "c.id::text = $1", id)
}

func (repo *orgRepository) GetCompanyByExternalID(ctx context.Context, externalID int) (org.Company, error) {
	return repo.getCompany(ctx, "c.external_id = $1", externalID)
}

func companyConditions(filter org.CompanyFilter) *conditions {
	conds := new(conditions)
	if filter.Search != "" {
		conds.add("(c.name ILIKE ? OR c.code ILIKE ? OR c.city ILIKE ?)", "%"+filter.Search+"%")
	}
	switch filter.Status {
	case org.StatusActive:
		conds.add("c.active = ?", true)
	case org.StatusInactive:
		conds.add("c.active = ?", false)
	}
	return conds
}

func (repo *orgRepository) QueryCompanies(ctx context.Context, filter org.CompanyFilter) ([]org.Company, error) {
	conds := companyConditions(filter)
	var rows []companyRow
	q := "SELECT " + companyColumns + " FROM companies c" + conds.where() + " ORDER BY lower(c.name)"
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying companies")
	}
	comps := make([]org.Company, 0, len(rows))
	for _, r := range rows {
		comps = append(comps, r.company())
	}
	return comps, nil
}

func (repo *orgRepository) UpdateCompany(ctx context.Context, comp org.Company) (org.Company, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE companies SET external_id = :external_id, name = :name, active = :active, code = :code,
		    postal_code = :postal_code, city = :city
		WHERE id = :id`,
		newCompanyRow(comp))
	if err != nil {
		if uniqueViolated(err, "companies_external_id_key") {
			return org.Company{}, org.ErrExternalIDExists
		}
		return org.Company{}, errors.Wrap(err, "updating company")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return org.Company{}, org.ErrCompanyNotFound
	}
	return comp, nil
}

func (repo *orgRepository) DeleteCompany(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM companies WHERE id::text = $1", id)
	return deleted(res, err, org.ErrCompanyNotFound, "company")
}

func (repo *orgRepository) CompanyStats(ctx context.Context, filter org.CompanyFilter) ([]org.CompanyStats, error) {
	conds := companyConditions(filter)
	var rows []struct {
		companyRow
		Drivers       int `db:"drivers"`
		ActiveDrivers int `db:"active_drivers"`
	}
	q := `
		SELECT ` + companyColumns + `, COUNT(d.id) AS drivers, COUNT(d.id) FILTER (WHERE d.active) AS active_drivers
		FROM companies c
		LEFT JOIN drivers d ON d.company_id = c.id` + conds.where() + `
		GROUP BY c.id
		ORDER BY lower(c.name)`
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying company stats")
	}
	stats := make([]org.CompanyStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, org.CompanyStats{Company: r.company(), Drivers: r.Drivers, ActiveDrivers: r.ActiveDrivers})
	}
	return stats, nil
}

// Departments

func (repo *orgRepository) CreateDepartment(ctx context.Context, dept org.Department) (org.Department, error) {
	dept.ID = newID()
	_, err := repo.db.ExecContext(ctx, "INSERT INTO departments ("+departmentColumns+") VALUES ($1, $2, $3, $4)",
		dept.ID, dept.Name, dept.Abbreviation, dept.CreatedAt)
	if err != nil {
		return org.Department{}, errors.Wrap(err, "inserting department")
	}
	return dept, nil
}

func (repo *orgRepository) getDepartment(ctx context.Context, cond, arg string) (org.Department, error) {
	var row departmentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+departmentColumns+" FROM departments WHERE "+cond, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return org.Department{}, org.ErrDepartmentNotFound
		}
		return org.Department{}, errors.Wrap(err, "getting department")
	}
	return row.department(), nil
}

func (repo *orgRepository) GetDepartment(ctx context.Context, id string) (org.Department, error) {
	return repo.getDepartment(ctx, "id::text = $1", id)
}

func (repo *orgRepository) GetDepartmentByName(ctx context.Context, name string) (org.Department, error) {
	return repo.getDepartment(ctx, "name = $1", name)
}

func (repo *orgRepository) QueryDepartments(ctx context.Context) ([]org.Department, error) {
	var rows []departmentRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+departmentColumns+" FROM departments ORDER BY lower(name)"); err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	depts := make([]org.Department, 0, len(rows))
	for _, r := range rows {
		depts = append(depts, r.department())
	}
	return depts, nil
}

func (repo *orgRepository) UpdateDepartment(ctx context.Context, dept org.Department) (org.Department, error) {
	res, err := repo.db.ExecContext(ctx, "UPDATE departments SET name = $2, abbreviation = $3 WHERE id = $1",
		dept.ID, dept.Name, dept.Abbreviation)
	if err != nil {
		return org.Department{}, errors.Wrap(err, "updating department")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return org.Department{}, org.ErrDepartmentNotFound
	}
	return dept, nil
}

func (repo *orgRepository) DeleteDepartment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM departments WHERE id::text = $1", id)
	return deleted(res, err, org.ErrDepartmentNotFound, "department")
}
