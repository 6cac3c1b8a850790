// Package driver manages the drivers followed by the evaluations.
package driver

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/org"
)

// Driver list status filter values
const (
	StatusActive        = org.StatusActive
	StatusInactive      = org.StatusInactive
	StatusInterim       = "interim"
	StatusSubcontractor = "sous_traitant"
)

type Driver struct {
	ID            string     `json:"id"`
	LastName      string     `json:"last_name"`
	FirstName     string     `json:"first_name"`
	CompanyID     string     `json:"company_id"`
	CompanyName   string     `json:"company_name"`
	Active        bool       `json:"active"`
	SiteID        string     `json:"site_id"`
	SiteCity      string     `json:"site_city"`
	Interim       bool       `json:"interim"`
	Subcontractor bool       `json:"subcontractor"`
	BirthDate     *time.Time `json:"birth_date"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (d Driver) FullName() string {
	return d.LastName + " " + d.FirstName
}

// Permanent tells whether d is an active driver which is neither an interim nor a subcontractor.
func (d Driver) Permanent() bool {
	return d.Active && !d.Interim && !d.Subcontractor
}

// DriverInput is used to create or update a Driver. Nil flags keep their current value (true on creation).
type DriverInput struct {
	LastName      string     `json:"last_name" validate:"required,max=255"`
	FirstName     string     `json:"first_name" validate:"required,max=255"`
	CompanyID     string     `json:"company_id" validate:"required"`
	SiteID        string     `json:"site_id" validate:"required"`
	Active        *bool      `json:"active"`
	Interim       *bool      `json:"interim"`
	Subcontractor *bool      `json:"subcontractor"`
	BirthDate     *time.Time `json:"birth_date"`
}

func (in *DriverInput) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	in.LastName = core.CleanString(in.LastName)
	in.FirstName = core.CleanString(in.FirstName)
	in.CompanyID = core.CleanString(in.CompanyID)
	in.SiteID = core.CleanString(in.SiteID)
	if err := validate.Struct(in); err != nil {
		return err
	}
	return svc.CheckRelations(ctx, in.CompanyID, in.SiteID)
}

func (in DriverInput) apply(d *Driver) {
	d.LastName = in.LastName
	d.FirstName = in.FirstName
	d.CompanyID = in.CompanyID
	d.SiteID = in.SiteID
	d.BirthDate = in.BirthDate
	if in.Active != nil {
		d.Active = *in.Active
	}
	if in.Interim != nil {
		d.Interim = *in.Interim
	}
	if in.Subcontractor != nil {
		d.Subcontractor = *in.Subcontractor
	}
}

type QueryFilter struct {
	// Search matches last name, first name or company name
	Search    string
	CompanyID string
	SiteID    string
	Status    string
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.CompanyID = core.CleanString(f.CompanyID)
	f.SiteID = core.CleanString(f.SiteID)
	switch f.Status {
	case StatusActive, StatusInactive, StatusInterim, StatusSubcontractor:
	default:
		f.Status = ""
	}
}

// Match reports whether d satisfies the filter. Search is matched case-insensitively.
func (f QueryFilter) Match(d Driver) bool {
	if f.Search != "" && !core.ContainsFold(d.LastName, f.Search) && !core.ContainsFold(d.FirstName, f.Search) &&
		!core.ContainsFold(d.CompanyName, f.Search) {
		return false
	}
	if f.CompanyID != "" && d.CompanyID != f.CompanyID {
		return false
	}
	if f.SiteID != "" && d.SiteID != f.SiteID {
		return false
	}
	switch f.Status {
	case StatusActive:
		return d.Active
	case StatusInactive:
		return !d.Active
	case StatusInterim:
		return d.Interim
	case StatusSubcontractor:
		return d.Subcontractor
	}
	return true
}
