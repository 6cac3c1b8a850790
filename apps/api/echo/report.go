package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/report"
	"github.com/fleetops/suivi/core/user"
)

type reportApi struct {
	svc    report.ServiceInterface
	usrSvc user.ServiceInterface
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, perm permFunc, deps ServerDeps) {
	api := reportApi{
		svc:    deps.ReportSvc,
		usrSvc: deps.UserSvc,
	}

	// the dashboards only show what the user is allowed to see
	g.GET("/dashboard", api.dashboard, jwt)
	g.GET("/dashboard/stats", api.dashboardStats, jwt)
	g.GET("/statistics", api.statistics, jwt, perm.suivi(access.ActionView, access.ModelEvaluation))
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dash, err := api.svc.Dashboard(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *reportApi) dashboardStats(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.DashboardStats(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *reportApi) statistics(ctx echo.Context) error {
	stats, err := api.svc.Statistics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}
