package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/driver"
	"github.com/fleetops/suivi/core/evaluation"
)

const driverPageSize = 25

type driverApi struct {
	svc      driver.ServiceInterface
	evalSvc  evaluation.ServiceInterface
	validate *validator.Validate
}

func registerDriverAPI(g *echo.Group, jwt echo.MiddlewareFunc, perm permFunc, deps ServerDeps) {
	api := driverApi{
		svc:      deps.DriverSvc,
		evalSvc:  deps.EvalSvc,
		validate: deps.Validate,
	}

	dg := g.Group("/drivers", jwt)
	dg.GET("", api.list, perm.suivi(access.ActionView, access.ModelDriver))
	dg.POST("", api.create, perm.suivi(access.ActionAdd, access.ModelDriver))
	dg.GET("/:id", api.retrieve, perm.suivi(access.ActionView, access.ModelDriver))
	dg.PUT("/:id", api.update, perm.suivi(access.ActionChange, access.ModelDriver))
	dg.DELETE("/:id", api.destroy, perm.suivi(access.ActionDelete, access.ModelDriver))
}

func (api *driverApi) list(ctx echo.Context) error {
	filter := driver.QueryFilter{
		Search:    ctx.QueryParam("search"),
		CompanyID: ctx.QueryParam("company_id"),
		SiteID:    ctx.QueryParam("site_id"),
		Status:    ctx.QueryParam("status"),
	}
	filter.Clean()

	list, err := api.evalSvc.DriverList(ctx.Request().Context(), filter, bindPage(ctx), driverPageSize)
	if err != nil {
		return errors.Wrap(err, "listing drivers")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *driverApi) create(ctx echo.Context) error {
	c := ctx.Request().Context()

	var data driver.DriverInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DriverInput")
	}
	if err := data.Validate(c, api.validate, api.svc); err != nil {
		return err
	}
	d, err := api.svc.Create(c, data)
	if err != nil {
		return errors.Wrap(err, "creating driver")
	}
	return ctx.JSON(http.StatusCreated, d)
}

// retrieve returns the driver along with its evaluation history.
func (api *driverApi) retrieve(ctx echo.Context) error {
	det, err := api.evalSvc.DriverDetail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting driver detail")
	}
	return ctx.JSON(http.StatusOK, det)
}

func (api *driverApi) update(ctx echo.Context) error {
	c := ctx.Request().Context()

	d, err := api.svc.GetByID(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding driver")
	}
	var data driver.DriverInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DriverInput")
	}
	if err = data.Validate(c, api.validate, api.svc); err != nil {
		return err
	}
	if d, err = api.svc.Update(c, d, data); err != nil {
		return errors.Wrap(err, "updating driver")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *driverApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting driver")
	}
	return ctx.NoContent(http.StatusNoContent)
}
