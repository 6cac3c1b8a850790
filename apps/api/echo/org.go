package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/org"
)

type orgApi struct {
	svc      org.ServiceInterface
	validate *validator.Validate
}

func registerOrgAPI(g *echo.Group, jwt echo.MiddlewareFunc, perm permFunc, deps ServerDeps) {
	api := orgApi{
		svc:      deps.OrgSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/sites", jwt)
	sg.GET("", api.listSites, perm.suivi(access.ActionView, access.ModelSite))
	sg.POST("", api.createSite, perm.suivi(access.ActionAdd, access.ModelSite))
	sg.GET("/:id", api.retrieveSite, perm.suivi(access.ActionView, access.ModelSite))
	sg.PUT("/:id", api.updateSite, perm.suivi(access.ActionChange, access.ModelSite))
	sg.DELETE("/:id", api.destroySite, perm.suivi(access.ActionDelete, access.ModelSite))

	cg := g.Group("/companies", jwt)
	cg.GET("", api.listCompanies, perm.suivi(access.ActionView, access.ModelCompany))
	cg.POST("", api.createCompany, perm.suivi(access.ActionAdd, access.ModelCompany))
	cg.GET("/:id", api.retrieveCompany, perm.suivi(access.ActionView, access.ModelCompany))
	cg.PUT("/:id", api.updateCompany, perm.suivi(access.ActionChange, access.ModelCompany))
	cg.DELETE("/:id", api.destroyCompany, perm.suivi(access.ActionDelete, access.ModelCompany))

	dg := g.Group("/departments", jwt)
	dg.GET("", api.listDepartments, perm.suivi(access.ActionView, access.ModelDepartment))
	dg.POST("", api.createDepartment, perm.suivi(access.ActionAdd, access.ModelDepartment))
	dg.GET("/:id", api.retrieveDepartment, perm.suivi(access.ActionView, access.ModelDepartment))
	dg.PUT("/:id", api.updateDepartment, perm.suivi(access.ActionChange, access.ModelDepartment))
	dg.DELETE("/:id", api.destroyDepartment, perm.suivi(access.ActionDelete, access.ModelDepartment))
}

// Sites

func (api *orgApi) listSites(ctx echo.Context) error {
	filter := org.SiteFilter{
		Search:     ctx.QueryParam("search"),
		PostalCode: ctx.QueryParam("postal_code"),
	}
	list, err := api.svc.SiteList(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing sites")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *orgApi) createSite(ctx echo.Context) error {
	var data org.SiteInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SiteInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	site, err := api.svc.CreateSite(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating site")
	}
	return ctx.JSON(http.StatusCreated, site)
}

func (api *orgApi) retrieveSite(ctx echo.Context) error {
	site, err := api.svc.GetSite(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding site")
	}
	return ctx.JSON(http.StatusOK, site)
}

func (api *orgApi) updateSite(ctx echo.Context) error {
	c := ctx.Request().Context()

	site, err := api.svc.GetSite(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding site")
	}
	var data org.SiteInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SiteInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if site, err = api.svc.UpdateSite(c, site, data); err != nil {
		return errors.Wrap(err, "updating site")
	}
	return ctx.JSON(http.StatusOK, site)
}

func (api *orgApi) destroySite(ctx echo.Context) error {
	if err := api.svc.DeleteSite(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting site")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Companies

func (api *orgApi) listCompanies(ctx echo.Context) error {
	filter := org.CompanyFilter{
		Search: ctx.QueryParam("search"),
		Status: ctx.QueryParam("status"),
	}
	comps, err := api.svc.CompanyList(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing companies")
	}
	return ctx.JSON(http.StatusOK, comps)
}

func (api *orgApi) createCompany(ctx echo.Context) error {
	c := ctx.Request().Context()

	var data org.CompanyInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompanyInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.CheckExternalID(data.ExternalID); err != nil {
		return err
	}
	comp, err := api.svc.CreateCompany(c, data)
	if err != nil {
		return errors.Wrap(err, "creating company")
	}
	return ctx.JSON(http.StatusCreated, comp)
}

func (api *orgApi) retrieveCompany(ctx echo.Context) error {
	comp, err := api.svc.GetCompany(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding company")
	}
	return ctx.JSON(http.StatusOK, comp)
}

func (api *orgApi) updateCompany(ctx echo.Context) error {
	c := ctx.Request().Context()

	comp, err := api.svc.GetCompany(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding company")
	}
	var data org.CompanyInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompanyInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if err = api.svc.CheckExternalID(data.ExternalID, comp); err != nil {
		return err
	}
	if comp, err = api.svc.UpdateCompany(c, comp, data); err != nil {
		return errors.Wrap(err, "updating company")
	}
	return ctx.JSON(http.StatusOK, comp)
}

func (api *orgApi) destroyCompany(ctx echo.Context) error {
	if err := api.svc.DeleteCompany(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting company")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Departments

func (api *orgApi) listDepartments(ctx echo.Context) error {
	depts, err := api.svc.QueryDepartments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing departments")
	}
	return ctx.JSON(http.StatusOK, depts)
}

func (api *orgApi) createDepartment(ctx echo.Context) error {
	var data org.DepartmentInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DepartmentInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	dept, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dept)
}

func (api *orgApi) retrieveDepartment(ctx echo.Context) error {
	dept, err := api.svc.GetDepartment(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding department")
	}
	return ctx.JSON(http.StatusOK, dept)
}

func (api *orgApi) updateDepartment(ctx echo.Context) error {
	c := ctx.Request().Context()

	dept, err := api.svc.GetDepartment(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding department")
	}
	var data org.DepartmentInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DepartmentInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if dept, err = api.svc.UpdateDepartment(c, dept, data); err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, dept)
}

func (api *orgApi) destroyDepartment(ctx echo.Context) error {
	if err := api.svc.DeleteDepartment(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}
