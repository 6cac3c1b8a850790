package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/user"
)

type groupApi struct {
	svc      group.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, perm permFunc, deps ServerDeps) {
	api := groupApi{
		svc:      deps.GroupSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}
	view := perm.auth(access.ActionView, access.ModelGroup)
	change := perm.auth(access.ActionChange, access.ModelGroup)

	gg := g.Group("/groups", jwt)
	gg.GET("", api.list, view)
	gg.GET("/stats", api.stats, view)
	gg.GET("/dashboard", api.dashboard, view)
	gg.GET("/history", api.history, view)
	gg.GET("/:name", api.detail, view)
	gg.PUT("/:name", api.update, change)
	gg.POST("/:name/users", api.addUser, change)
	gg.DELETE("/:name/users/:userID", api.removeUser, change)
}

func (api *groupApi) list(ctx echo.Context) error {
	filter := group.QueryFilter{
		Search: ctx.QueryParam("search"),
		Level:  bindInt(ctx, "level"),
		Active: bindBool(ctx, "active"),
	}
	list, err := api.svc.List(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *groupApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing group stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *groupApi) dashboard(ctx echo.Context) error {
	dash, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building groups dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *groupApi) history(ctx echo.Context) error {
	filter := group.HistoryFilter{
		GroupName: ctx.QueryParam("group"),
		Action:    ctx.QueryParam("action"),
		UserID:    ctx.QueryParam("user_id"),
	}
	page, err := api.svc.History(ctx.Request().Context(), filter, bindPage(ctx))
	if err != nil {
		return errors.Wrap(err, "querying group history")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *groupApi) detail(ctx echo.Context) error {
	det, err := api.svc.Detail(ctx.Request().Context(), ctx.Param("name"))
	if err != nil {
		return errors.Wrap(err, "getting group detail")
	}
	return ctx.JSON(http.StatusOK, det)
}

func (api *groupApi) update(ctx echo.Context) error {
	c := ctx.Request().Context()

	grp, err := api.svc.Get(c, ctx.Param("name"))
	if err != nil {
		return errors.Wrap(err, "finding group")
	}

	var data group.UpdateGroup
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if grp, err = api.svc.Update(c, actor, grp, data); err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) addUser(ctx echo.Context) error {
	var data MembershipRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MembershipRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	return api.changeMembership(ctx, data.UserID, api.svc.AddUser, http.StatusCreated)
}

func (api *groupApi) removeUser(ctx echo.Context) error {
	return api.changeMembership(ctx, ctx.Param("userID"), api.svc.RemoveUser, http.StatusOK)
}

type membershipFunc func(ctx context.Context, actor user.User, name string, usr user.User) (user.User, error)

func (api *groupApi) changeMembership(
	ctx echo.Context,
	userID string,
	change membershipFunc,
	code int,
) error {
	c := ctx.Request().Context()

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.usrSvc.GetByID(c, userID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if usr, err = change(c, actor, ctx.Param("name"), usr); err != nil {
		return errors.Wrap(err, "changing group membership")
	}
	return ctx.JSON(code, usr)
}

type MembershipRequest struct {
	UserID string `json:"user_id" validate:"required"`
}
