package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/user"
)

// permFunc returns a middleware letting through the users having the permission `app.action_model`.
type permFunc func(app, action, model string) echo.MiddlewareFunc

func newPermMiddleware(usrSvc user.ServiceInterface, groupSvc group.ServiceInterface) permFunc {
	return func(app, action, model string) echo.MiddlewareFunc {
		perm := access.Perm(app, action, model)

		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(ctx echo.Context) error {
				usr, err := getContextUser(ctx, usrSvc)
				if err != nil {
					return errors.Wrap(err, "getting context user")
				}
				ok, err := groupSvc.HasPerm(ctx.Request().Context(), usr, perm)
				if err != nil {
					return errors.Wrapf(err, "checking %s permission", perm)
				}
				if !ok {
					return errHttpForbidden
				}
				return next(ctx)
			}
		}
	}
}

// suivi is a shortcut for the permissions of the domain models.
func (pf permFunc) suivi(action, model string) echo.MiddlewareFunc {
	return pf(access.AppSuivi, action, model)
}

func (pf permFunc) auth(action, model string) echo.MiddlewareFunc {
	return pf(access.AppAuth, action, model)
}
