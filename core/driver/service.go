package driver

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/org"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError(errors.New("driver not found"))
	ErrInvalidCompany = errors.New("select a valid company")
	ErrInvalidSite    = errors.New("select a valid site")
)

type (
	Repository interface {
		CreateDriver(ctx context.Context, d Driver) (Driver, error)
		// QueryDrivers returns the drivers matching filter, ordered by last name then first name, with their company name and site city.
		QueryDrivers(ctx context.Context, filter QueryFilter) ([]Driver, error)
		GetDriver(ctx context.Context, id string) (Driver, error)
		UpdateDriver(ctx context.Context, d Driver) (Driver, error)
		DeleteDriver(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		// CheckRelations returns a field ValidationError when the company or the site does not exist.
		CheckRelations(ctx context.Context, companyID, siteID string) error
		Create(ctx context.Context, in DriverInput) (Driver, error)
		Query(ctx context.Context, filter QueryFilter) ([]Driver, error)
		GetByID(ctx context.Context, id string) (Driver, error)
		Update(ctx context.Context, d Driver, in DriverInput) (Driver, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo   Repository
		orgSvc org.ServiceInterface
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, orgSvc org.ServiceInterface) ServiceInterface {
	return &service{repo: repo, orgSvc: orgSvc}
}

func (svc *service) CheckRelations(ctx context.Context, companyID, siteID string) error {
	var fields []core.FieldError
	if _, err := svc.orgSvc.GetCompany(ctx, companyID); err != nil {
		if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding company")
		}
		fields = append(fields, core.FieldError{Field: "company_id", Error: ErrInvalidCompany.Error()})
	}
	if _, err := svc.orgSvc.GetSite(ctx, siteID); err != nil {
		if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding site")
		}
		fields = append(fields, core.FieldError{Field: "site_id", Error: ErrInvalidSite.Error()})
	}
	if len(fields) > 0 {
		return core.NewValidationError(errors.New(fields[0].Error), fields...)
	}
	return nil
}

func (svc *service) Create(ctx context.Context, in DriverInput) (Driver, error) {
	d := Driver{
		Active:        true,
		Interim:       true,
		Subcontractor: true,
		CreatedAt:     time.Now().UTC(),
	}
	in.apply(&d)
	return svc.repo.CreateDriver(ctx, d)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Driver, error) {
	filter.Clean()
	drivers, err := svc.repo.QueryDrivers(ctx, filter)
	if err != nil {
		return nil, err
	}
	if drivers == nil {
		drivers = []Driver{}
	}
	return drivers, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Driver, error) {
	return svc.repo.GetDriver(ctx, id)
}

func (svc *service) Update(ctx context.Context, d Driver, in DriverInput) (Driver, error) {
	in.apply(&d)
	return svc.repo.UpdateDriver(ctx, d)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteDriver(ctx, id)
}
