package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fleetops/suivi/core/driver"
)

const driverSelect = `
	SELECT d.id, d.last_name, d.first_name, d.company_id, c.name AS company_name, d.active, d.site_id, s.city AS site_city,
	    d.interim, d.subcontractor, d.birth_date, d.created_at
	FROM drivers d
	JOIN companies c ON c.id = d.company_id
	JOIN sites s ON s.id = d.site_id`

type driverRow struct {
	ID            string    `db:"id"`
	LastName      string    `db:"last_name"`
	FirstName     string    `db:"first_name"`
	CompanyID     string    `db:"company_id"`
	CompanyName   string    `db:"company_name"`
	Active        bool      `db:"active"`
	SiteID        string    `db:"site_id"`
	SiteCity      string    `db:"site_city"`
	Interim       bool      `db:"interim"`
	Subcontractor bool      `db:"subcontractor"`
	BirthDate     null.Time `db:"birth_date"`
	CreatedAt     time.Time `db:"created_at"`
}

func newDriverRow(d driver.Driver) driverRow {
	return driverRow{
		ID:            d.ID,
		LastName:      d.LastName,
		FirstName:     d.FirstName,
		CompanyID:     d.CompanyID,
		Active:        d.Active,
		SiteID:        d.SiteID,
		Interim:       d.Interim,
		Subcontractor: d.Subcontractor,
		BirthDate:     nullTimePtr(d.BirthDate),
		CreatedAt:     d.CreatedAt,
	}
}

func (r driverRow) driver() driver.Driver {
	return driver.Driver{
		ID:            r.ID,
		LastName:      r.LastName,
		FirstName:     r.FirstName,
		CompanyID:     r.CompanyID,
		CompanyName:   r.CompanyName,
		Active:        r.Active,
		SiteID:        r.SiteID,
		SiteCity:      r.SiteCity,
		Interim:       r.Interim,
		Subcontractor: r.Subcontractor,
		BirthDate:     timePtr(r.BirthDate),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type driverRepository struct {
	db *sqlx.DB
}

var _ driver.Repository = (*driverRepository)(nil)

func NewDriverRepository(db *sqlx.DB) driver.Repository {
	return &driverRepository{db: db}
}

func (repo *driverRepository) CreateDriver(ctx context.Context, d driver.Driver) (driver.Driver, error) {
	d.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO drivers (id, last_name, first_name, company_id, active, site_id, interim, subcontractor, birth_date, created_at)
		VALUES (:id, :last_name, :first_name, :company_id, :active, :site_id, :interim, :subcontractor, :birth_date, :created_at)`,
		newDriverRow(d))
	if err != nil {
		return driver.Driver{}, errors.Wrap(err, "inserting driver")
	}
	return repo.GetDriver(ctx, d.ID)
}

func (repo *driverRepository) QueryDrivers(ctx context.Context, filter driver.QueryFilter) ([]driver.Driver, error) {
	var conds conditions
	if filter.Search != "" {
		conds.add("(d.last_name ILIKE ? OR d.first_name ILIKE ? OR c.name ILIKE ?)", "%"+filter.Search+"%")
	}
	if filter.CompanyID != "" {
		conds.add("d.company_id::text = ?", filter.CompanyID)
	}
	if filter.SiteID != "" {
		conds.add("d.site_id::text = ?", filter.SiteID)
	}
	switch filter.Status {
	case driver.StatusActive:
		conds.add("d.active = ?", true)
	case driver.StatusInactive:
		conds.add("d.active = ?", false)
	case driver.StatusInterim:
		conds.add("d.interim = ?", true)
	case driver.StatusSubcontractor:
		conds.add("d.subcontractor = ?", true)
	}

	var rows []driverRow
	q := driverSelect + conds.where() + " ORDER BY lower(d.last_name), lower(d.first_name), d.id"
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying drivers")
	}
	drivers := make([]driver.Driver, 0, len(rows))
	for _, r := range rows {
		drivers = append(drivers, r.driver())
	}
	return drivers, nil
}

func (repo *driverRepository) GetDriver(ctx context.Context, id string) (driver.Driver, error) {
	var row driverRow
	if err := repo.db.GetContext(ctx, &row, driverSelect+" WHERE d.id::text = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return driver.Driver{}, driver.ErrNotFound
		}
		return driver.Driver{}, errors.Wrap(err, "getting driver")
	}
	return row.driver(), nil
}

func (repo *driverRepository) UpdateDriver(ctx context.Context, d driver.Driver) (driver.Driver, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE drivers SET last_name = :last_name, first_name = :first_name, company_id = :company_id, active = :active,
		    site_id = :site_id, interim = :interim, subcontractor = :subcontractor, birth_date = :birth_date
		WHERE id = :id`,
		newDriverRow(d))
	if err != nil {
		return driver.Driver{}, errors.Wrap(err, "updating driver")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return driver.Driver{}, driver.ErrNotFound
	}
	return repo.GetDriver(ctx, d.ID)
}

func (repo *driverRepository) DeleteDriver(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM drivers WHERE id::text = $1", id)
	return deleted(res, err, driver.ErrNotFound, "driver")
}
