// Package report computes the dashboards and the global statistics.
package report

import (
	"time"

	"github.com/fleetops/suivi/core/evaluation"
)

// DriverCounts breaks the drivers down by category.
// Interims, Subcontractors and Permanents only count active drivers.
type DriverCounts struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Inactive       int `json:"inactive"`
	Interims       int `json:"interims"`
	Subcontractors int `json:"subcontractors"`
	Permanents     int `json:"permanents"`
}

type TypeCount struct {
	TypeID   string `json:"type_id"`
	TypeName string `json:"type"`
	Count    int    `json:"count"`
}

type SiteBreakdown struct {
	SiteID   string `json:"site_id"`
	City     string `json:"city"`
	Total    int    `json:"total"`
	Active   int    `json:"active"`
	Inactive int    `json:"inactive"`
}

type CompanyBreakdown struct {
	CompanyID      string `json:"company_id"`
	Name           string `json:"name"`
	Total          int    `json:"total"`
	Active         int    `json:"active"`
	Inactive       int    `json:"inactive"`
	Interims       int    `json:"interims"`
	Subcontractors int    `json:"subcontractors"`
	Permanents     int    `json:"permanents"`
}

type MonthCount struct {
	Month time.Time `json:"month"` // first day of the month, UTC
	Count int       `json:"count"`
}

type TypeScore struct {
	Mean             float64 `json:"mean"`
	Count            int     `json:"count"`
	TotalEvaluations int     `json:"total_evaluations"`
}

// Dashboard is the home page summary. Counters are nil when the user may not see them.
type Dashboard struct {
	ActiveDrivers     *int                    `json:"active_drivers"`
	TotalEvaluations  *int                    `json:"total_evaluations"`
	MonthEvaluations  *int                    `json:"month_evaluations"`
	RecentEvaluations []evaluation.Evaluation `json:"recent_evaluations"`
	CanEvaluate       bool                    `json:"can_evaluate"`
}

type EvaluationStats struct {
	ThisMonth int            `json:"this_month"`
	Total     int            `json:"total"`
	ByType    map[string]int `json:"by_type"`
}

type DriverStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type UserStats struct {
	Groups      []string `json:"groups"`
	Permissions int      `json:"permissions_count"`
}

// DashboardStats is the per user statistics payload. Sections the user may not see are omitted.
type DashboardStats struct {
	Evaluations *EvaluationStats `json:"evaluations,omitempty"`
	Drivers     *DriverStats     `json:"drivers,omitempty"`
	User        UserStats        `json:"user"`
}

type Totals struct {
	ActiveDrivers   int `json:"active_drivers"`
	Evaluations     int `json:"evaluations"`
	ActiveCompanies int `json:"active_companies"`
	Sites           int `json:"sites"`
}

type Statistics struct {
	Totals       Totals               `json:"totals"`
	Drivers      DriverCounts         `json:"drivers"`
	BySite       []SiteBreakdown      `json:"by_site"`
	ByCompany    []CompanyBreakdown   `json:"by_company"`
	ByMonth      []MonthCount         `json:"by_month"`
	ScoresByType map[string]TypeScore `json:"scores_by_type"`
	GeneratedAt  time.Time            `json:"generated_at"`
	PeriodStart  time.Time            `json:"period_start"`
}
