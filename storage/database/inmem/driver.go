package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/fleetops/suivi/core/driver"
)

type driverRepository struct {
	db *DB
}

var _ driver.Repository = (*driverRepository)(nil)

func NewDriverRepository(db *DB) driver.Repository {
	return &driverRepository{db: db}
}

// withRelations fills the read-only company and site fields. Callers hold a lock.
func (repo *driverRepository) withRelations(d driver.Driver) driver.Driver {
	d.CompanyName = repo.db.companies[d.CompanyID].Name
	d.SiteCity = repo.db.sites[d.SiteID].City
	return d
}

func (repo *driverRepository) CreateDriver(_ context.Context, d driver.Driver) (driver.Driver, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	d.ID = newID()
	d.CompanyName, d.SiteCity = "", ""
	repo.db.drivers[d.ID] = d
	return repo.withRelations(d), nil
}

func (repo *driverRepository) QueryDrivers(_ context.Context, filter driver.QueryFilter) ([]driver.Driver, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	drivers := make([]driver.Driver, 0, len(repo.db.drivers))
	for _, d := range repo.db.drivers {
		if d = repo.withRelations(d); filter.Match(d) {
			drivers = append(drivers, d)
		}
	}
	sort.Slice(drivers, func(i, j int) bool {
		a, b := drivers[i], drivers[j]
		if !strings.EqualFold(a.LastName, b.LastName) {
			return lessFold(a.LastName, b.LastName)
		}
		if !strings.EqualFold(a.FirstName, b.FirstName) {
			return lessFold(a.FirstName, b.FirstName)
		}
		return a.ID < b.ID
	})
	return drivers, nil
}

func (repo *driverRepository) GetDriver(_ context.Context, id string) (driver.Driver, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if d, ok := repo.db.drivers[id]; ok {
		return repo.withRelations(d), nil
	}
	return driver.Driver{}, driver.ErrNotFound
}

func (repo *driverRepository) UpdateDriver(_ context.Context, d driver.Driver) (driver.Driver, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.drivers[d.ID]; !ok {
		return driver.Driver{}, driver.ErrNotFound
	}
	d.CompanyName, d.SiteCity = "", ""
	repo.db.drivers[d.ID] = d
	return repo.withRelations(d), nil
}

func (repo *driverRepository) DeleteDriver(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.drivers[id]; !ok {
		return driver.ErrNotFound
	}
	repo.db.deleteDriverCascade(id)
	return nil
}
