package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

func fieldMessages(vErrs validator.ValidationErrors, translator ut.Translator) map[string]string {
	msgs := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		msgs[vErr.Field()] = vErr.Translate(translator)
	}
	return msgs
}

// classify maps err to a status code and a response body. ok is false for unexpected errors (500).
func classify(err error, translator ut.Translator) (code int, body interface{}, ok bool) {
	cause := errors.Cause(err)
	switch e := cause.(type) {
	case *echo.HTTPError:
		if e == middleware.ErrJWTMissing {
			// echo reports it as a bad request
			return http.StatusUnauthorized, e.Message, true
		}
		if inner, isHTTP := e.Internal.(*echo.HTTPError); isHTTP {
			e = inner
		}
		return e.Code, e.Message, true
	case validator.ValidationErrors:
		return http.StatusBadRequest, fieldMessages(e, translator), true
	case *core.ValidationError:
		if len(e.Fields) == 0 {
			return http.StatusBadRequest, e.Error(), true
		}
		msgs := make(map[string]string, len(e.Fields))
		for _, f := range e.Fields {
			msgs[f.Field] = f.Error
		}
		return http.StatusBadRequest, msgs, true
	}

	switch {
	case cause == core.ErrPermissionDenied:
		return errHttpForbidden.Code, errHttpForbidden.Message, true
	case core.IsNotFound(err):
		return errHttpNotFound.Code, errHttpNotFound.Message, true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler returns the echo.HTTPErrorHandler rendering our errors as JSON.
// Unexpected errors are logged with the authenticated user; a core shutdown error also calls signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, ok := classify(err, translator)
		if !ok {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = user.User{ID: claims.Subject, Username: claims.Username, Email: claims.Email}
			}
			msg := http.StatusText(code)
			logger.Error(msg, errors.Wrap(err, msg), usr)

			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			body = err.Error()
		}
		if m, isStr := body.(string); isStr {
			body = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
