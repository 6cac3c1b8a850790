// Package org manages the sites, companies and departments drivers and evaluators belong to.
package org

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fleetops/suivi/core"
)

// Site is the place a driver is attached to.
type Site struct {
	ID         string    `json:"id"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// Company is the employer of a driver. ExternalID is the company ID of the payroll system.
type Company struct {
	ID         string    `json:"id"`
	ExternalID int       `json:"socid"`
	Name       string    `json:"name"`
	Active     bool      `json:"active"`
	Code       string    `json:"code"`
	PostalCode string    `json:"postal_code"`
	City       string    `json:"city"`
	CreatedAt  time.Time `json:"created_at"`
}

// Department is the service an evaluator or a user works in.
type Department struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Abbreviation string    `json:"abbreviation"`
	CreatedAt    time.Time `json:"created_at"`
}

type SiteInput struct {
	City       string `json:"city" validate:"required,max=255"`
	PostalCode string `json:"postal_code" validate:"required,postalcode"`
}

func (in *SiteInput) Validate(validate *validator.Validate) error {
	in.City = core.CleanString(in.City)
	in.PostalCode = core.CleanString(in.PostalCode)
	return validate.Struct(in)
}

type CompanyInput struct {
	ExternalID int    `json:"socid" validate:"required,gt=0"`
	Name       string `json:"name" validate:"required,max=255"`
	Active     *bool  `json:"active"`
	Code       string `json:"code" validate:"required,max=255"`
	PostalCode string `json:"postal_code" validate:"required,postalcode"`
	City       string `json:"city" validate:"required,max=255"`
}

func (in *CompanyInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Code = core.CleanString(in.Code)
	in.PostalCode = core.CleanString(in.PostalCode)
	in.City = core.CleanString(in.City)
	return validate.Struct(in)
}

type DepartmentInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Abbreviation string `json:"abbreviation" validate:"required,max=10"`
}

func (in *DepartmentInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Abbreviation = core.CleanString(in.Abbreviation)
	return validate.Struct(in)
}

// Company list status filter values
const (
	StatusActive   = "actif"
	StatusInactive = "inactif"
)

type CompanyFilter struct {
	Search string
	Status string
}

type SiteFilter struct {
	Search     string
	PostalCode string
}

// CompanyStats is a Company along with its driver counts.
type CompanyStats struct {
	Company
	Drivers       int `json:"drivers"`
	ActiveDrivers int `json:"active_drivers"`
}

// SiteStats is a Site along with its driver breakdown.
type SiteStats struct {
	Site
	Drivers         int       `json:"drivers"`
	ActiveDrivers   int       `json:"active_drivers"`
	Permanents      int       `json:"permanents"`
	Interims        int       `json:"interims"`
	Subcontractors  int       `json:"subcontractors"`
	ActiveCompanies int       `json:"active_companies"`
	Companies       []Company `json:"companies"` // up to maxSiteCompanies active companies
}
