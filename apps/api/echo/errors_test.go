package echoapi

import (
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/driver"
)

func Test_classify(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	type site struct {
		City       string `json:"city" validate:"required"`
		PostalCode string `json:"postal_code" validate:"postalcode"`
	}
	vErr := validate.Struct(site{PostalCode: "123"})

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody interface{}
		wantOK   bool
	}{
		{name: "missing jwt", err: middleware.ErrJWTMissing, wantCode: http.StatusUnauthorized, wantBody: "missing or malformed jwt", wantOK: true},
		{name: "http error", err: errAccountDeactivated, wantCode: http.StatusForbidden, wantBody: "account deactivated", wantOK: true},
		{name: "wrapped http error", err: &echo.HTTPError{Code: http.StatusInternalServerError, Internal: errHttpNotFound}, wantCode: http.StatusNotFound, wantBody: "not found", wantOK: true},
		{
			name:     "validator errors",
			err:      errors.Wrap(vErr, "validating site"),
			wantCode: http.StatusBadRequest,
			wantBody: map[string]string{"city": "this field is required", "postal_code": "postal code must contain exactly 5 digits"},
			wantOK:   true,
		},
		{
			name:     "field errors",
			err:      core.NewValidationError(nil, core.FieldError{Field: "socid", Error: "taken"}),
			wantCode: http.StatusBadRequest,
			wantBody: map[string]string{"socid": "taken"},
			wantOK:   true,
		},
		{name: "validation message", err: core.NewValidationError(errors.New("all the required fields must be filled")), wantCode: http.StatusBadRequest, wantBody: "all the required fields must be filled", wantOK: true},
		{name: "permission denied", err: errors.Wrap(core.ErrPermissionDenied, "evaluating"), wantCode: http.StatusForbidden, wantBody: "permission denied", wantOK: true},
		{name: "not found", err: errors.Wrap(driver.ErrNotFound, "finding driver"), wantCode: http.StatusNotFound, wantBody: "not found", wantOK: true},
		{name: "unexpected", err: errors.New("connection refused"), wantCode: http.StatusInternalServerError, wantBody: "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body, ok := classify(tt.err, translator)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}
