package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/org"
)

func Test_orgApi_sites(t *testing.T) {
	app := setup(t)

	rh := createUser(t, "marie", access.GroupRH)
	dir := createUser(t, "pierre", access.GroupDirection)
	rhToken := getToken(t, rh)

	bdx := createSite(t, "Bordeaux", "33000")
	createSite(t, "Mérignac", "33700")

	runTests(t, app, []httpTest{
		{name: "auth required", path: "/v1/sites", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Direction can view", path: "/v1/sites", token: getToken(t, dir), wantCode: http.StatusOK},
		{
			name: "Direction cannot add", method: http.MethodPost, path: "/v1/sites", token: getToken(t, dir),
			body: marchallObj(t, org.SiteInput{City: "Pessac", PostalCode: "33600"}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid postal code", method: http.MethodPost, path: "/v1/sites", token: rhToken,
			body: marchallObj(t, org.SiteInput{City: "Pessac", PostalCode: "336"}), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"postal_code": "postal code must contain exactly 5 digits"}`),
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/sites", token: rhToken,
			body: marchallObj(t, org.SiteInput{City: " Pessac ", PostalCode: "33600"}), wantCode: http.StatusCreated,
		},
		{name: "retrieve", path: "/v1/sites/" + bdx.ID, token: rhToken, wantCode: http.StatusOK, wantData: marchallObj(t, bdx)},
		{name: "not found", path: "/v1/sites/lol", token: rhToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	})

	t.Run("list filtered by postal code", func(t *testing.T) {
		tt := httpTest{path: "/v1/sites?postal_code=33000", token: rhToken, wantCode: http.StatusOK}
		rec := tt.do(app)
		checkCodeAndData(t, tt, rec)

		var list org.SiteList
		unmarchall(t, rec, &list)
		if assert.Len(t, list.Sites, 1) {
			assert.Equal(t, bdx.ID, list.Sites[0].ID)
		}
		assert.ElementsMatch(t, []string{"33000", "33600", "33700"}, list.PostalCodes)
	})

	t.Run("update and delete", func(t *testing.T) {
		runTests(t, app, []httpTest{
			{
				name: "updated", method: http.MethodPut, path: "/v1/sites/" + bdx.ID, token: rhToken,
				body: marchallObj(t, org.SiteInput{City: "Bordeaux Lac", PostalCode: "33300"}), wantCode: http.StatusOK,
			},
			{name: "deleted", method: http.MethodDelete, path: "/v1/sites/" + bdx.ID, token: rhToken, wantCode: http.StatusNoContent},
		})
		_, err := svcs.Org.GetSite(context.Background(), bdx.ID)
		assert.True(t, core.IsNotFound(err))
	})
}

func Test_orgApi_companies(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	rh := createUser(t, "marie", access.GroupRH)
	token := getToken(t, rh)

	acme := createCompany(t, 42, "Acme")
	site := createSite(t, "Bordeaux", "33000")
	createDriver(t, "Martin", "Paul", acme, site)

	input := func(socid int, name string) []byte {
		return marchallObj(t, org.CompanyInput{ExternalID: socid, Name: name, Code: "X", PostalCode: "33000", City: "Bordeaux"})
	}
	socidTaken := marchallObj(t, map[string]string{"socid": org.ErrExternalIDExists.Error()})

	runTests(t, app, []httpTest{
		{name: "socid taken", method: http.MethodPost, path: "/v1/companies", token: token, body: input(42, "Other"), wantCode: http.StatusBadRequest, wantData: socidTaken},
		{name: "created", method: http.MethodPost, path: "/v1/companies", token: token, body: input(43, "Other"), wantCode: http.StatusCreated},
		{name: "update keeps its own socid", method: http.MethodPut, path: "/v1/companies/" + acme.ID, token: token, body: input(42, "Acme SA"), wantCode: http.StatusOK},
		{name: "update to a taken socid", method: http.MethodPut, path: "/v1/companies/" + acme.ID, token: token, body: input(43, "Acme SA"), wantCode: http.StatusBadRequest, wantData: socidTaken},
	})

	t.Run("list", func(t *testing.T) {
		tt := httpTest{path: "/v1/companies?search=acme", token: token, wantCode: http.StatusOK}
		rec := tt.do(app)
		checkCodeAndData(t, tt, rec)

		var comps []org.CompanyStats
		unmarchall(t, rec, &comps)
		if assert.Len(t, comps, 1) {
			assert.Equal(t, "Acme SA", comps[0].Name)
			assert.Equal(t, 1, comps[0].Drivers)
			assert.Equal(t, 1, comps[0].ActiveDrivers)
		}
	})

	t.Run("delete cascades to drivers", func(t *testing.T) {
		runTests(t, app, []httpTest{
			{name: "deleted", method: http.MethodDelete, path: "/v1/companies/" + acme.ID, token: token, wantCode: http.StatusNoContent},
		})
		drivers, err := svcs.Driver.Query(ctx, driverFilter(acme.ID))
		require.NoError(t, err)
		assert.Empty(t, drivers)
	})
}

func Test_orgApi_departments(t *testing.T) {
	app := setup(t)

	token := getToken(t, createUser(t, "marie", access.GroupRH))

	runTests(t, app, []httpTest{
		{
			name: "abbreviation too long", method: http.MethodPost, path: "/v1/departments", token: token,
			body: marchallObj(t, org.DepartmentInput{Name: "Qualité", Abbreviation: "QUALITE-SECU"}), wantCode: http.StatusBadRequest,
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/departments", token: token,
			body: marchallObj(t, org.DepartmentInput{Name: "Qualité", Abbreviation: "QUA"}), wantCode: http.StatusCreated,
		},
	})

	t.Run("list", func(t *testing.T) {
		tt := httpTest{path: "/v1/departments", token: token, wantCode: http.StatusOK}
		rec := tt.do(app)
		checkCodeAndData(t, tt, rec)

		var depts []org.Department
		unmarchall(t, rec, &depts)
		names := make([]string, 0, len(depts))
		for _, d := range depts {
			names = append(names, d.Name)
		}
		// the RH evaluator was provisioned in its department
		assert.ElementsMatch(t, []string{"Qualité", "Ressources Humaines"}, names)
	})
}
