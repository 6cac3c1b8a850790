package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/fleetops/suivi/apps/api/echo"
	"github.com/fleetops/suivi/apps/shared"
	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/driver"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/org"
	"github.com/fleetops/suivi/core/user"
	emailsvc "github.com/fleetops/suivi/services/email"
	inmemdb "github.com/fleetops/suivi/storage/database/inmem"
)

const testPassword = "Pwd-1234"

var (
	conf    *core.Config
	svcs    shared.Services
	mailSvc *emailsvc.ConsoleServiceMock

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}
)

// setup starts a server on a fresh in-memory database holding the synchronized groups.
func setup(t *testing.T) *Server {
	conf = core.NewTestConfig()
	mailSvc = emailsvc.NewConsoleServiceMock(conf)
	svcs = shared.NewServices(shared.NewInMemRepositories(inmemdb.Open()), mailSvc, conf, core.NopLogger{})

	_, err := svcs.Group.Sync(context.Background(), group.SyncOptions{})
	require.NoError(t, err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	return NewServer(
		ServerDeps{
			Conf:           conf,
			Logger:         core.NopLogger{},
			Validate:       validate,
			Translator:     translator,
			UserSvc:        svcs.User,
			GroupSvc:       svcs.Group,
			OrgSvc:         svcs.Org,
			DriverSvc:      svcs.Driver,
			EvalSvc:        svcs.Evaluation,
			ReportSvc:      svcs.Report,
			DisableReqLogs: true,
		},
	)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func (tt httpTest) do(app *Server) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData also checks the body when wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, app *Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, tt.do(app))
		})
	}
}

// Fixtures

func createUser(t *testing.T, uname string, groups ...string) user.User {
	ctx := context.Background()
	usr, err := svcs.User.Create(ctx, user.NewUser{
		Username:  uname,
		Email:     uname + "@transport.fr",
		FirstName: "Test",
		LastName:  uname,
		Password:  testPassword,
	})
	require.NoError(t, err)
	if len(groups) > 0 {
		usr, err = svcs.Group.SetUserGroups(ctx, user.User{}, usr, groups)
		require.NoError(t, err)
	}
	return usr
}

func createSuperuser(t *testing.T, uname string) user.User {
	usr, err := svcs.User.Create(context.Background(), user.NewUser{
		Username:    uname,
		Email:       uname + "@transport.fr",
		FirstName:   "Super",
		LastName:    uname,
		Password:    testPassword,
		IsStaff:     true,
		IsSuperuser: true,
	})
	require.NoError(t, err)
	return usr
}

func createSite(t *testing.T, city, postalCode string) org.Site {
	site, err := svcs.Org.CreateSite(context.Background(), org.SiteInput{City: city, PostalCode: postalCode})
	require.NoError(t, err)
	return site
}

func createCompany(t *testing.T, socid int, name string) org.Company {
	comp, err := svcs.Org.CreateCompany(context.Background(), org.CompanyInput{
		ExternalID: socid,
		Name:       name,
		Code:       "C" + name,
		PostalCode: "33000",
		City:       "Bordeaux",
	})
	require.NoError(t, err)
	return comp
}

func createDriver(t *testing.T, last, first string, comp org.Company, site org.Site) driver.Driver {
	d, err := svcs.Driver.Create(context.Background(), driver.DriverInput{
		LastName:  last,
		FirstName: first,
		CompanyID: comp.ID,
		SiteID:    site.ID,
	})
	require.NoError(t, err)
	return d
}

func createType(t *testing.T, name, abbr string) evaluation.EvaluationType {
	typ, err := svcs.Evaluation.CreateType(context.Background(), evaluation.TypeInput{
		Name:         name,
		Abbreviation: abbr,
		Description:  name + " evaluation",
	})
	require.NoError(t, err)
	return typ
}

func createCriterion(t *testing.T, typ evaluation.EvaluationType, name string, min, max int) evaluation.Criterion {
	crit, err := svcs.Evaluation.CreateCriterion(context.Background(), evaluation.CriterionInput{
		Name:     name,
		TypeID:   typ.ID,
		MinValue: min,
		MaxValue: max,
	})
	require.NoError(t, err)
	return crit
}
