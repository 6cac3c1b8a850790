package evaluation_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/suivi/apps/shared"
	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/driver"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/org"
	"github.com/fleetops/suivi/core/user"
	inmemdb "github.com/fleetops/suivi/storage/database/inmem"
)

type fixture struct {
	svcs  shared.Services
	comp  org.Company
	site  org.Site
	typ   evaluation.EvaluationType
	crits []evaluation.Criterion
}

func setup(t *testing.T) fixture {
	ctx := context.Background()
	svcs := shared.NewServices(shared.NewInMemRepositories(inmemdb.Open()), nil, core.NewTestConfig(), core.NopLogger{})
	_, err := svcs.Group.Sync(ctx, group.SyncOptions{})
	require.NoError(t, err)

	f := fixture{svcs: svcs}
	f.comp, err = svcs.Org.CreateCompany(ctx, org.CompanyInput{ExternalID: 1, Name: "Acme", Code: "ACM", PostalCode: "33000", City: "Bordeaux"})
	require.NoError(t, err)
	f.site, err = svcs.Org.CreateSite(ctx, org.SiteInput{City: "Bordeaux", PostalCode: "33000"})
	require.NoError(t, err)
	f.typ, err = svcs.Evaluation.CreateType(ctx, evaluation.TypeInput{Name: "Conduite", Abbreviation: "CDT", Description: "Conduite"})
	require.NoError(t, err)
	for _, name := range []string{"Freinage", "Vitesse", "Ceinture"} {
		crit, err := svcs.Evaluation.CreateCriterion(ctx, evaluation.CriterionInput{Name: name, TypeID: f.typ.ID, MinValue: 0, MaxValue: 10})
		require.NoError(t, err)
		f.crits = append(f.crits, crit)
	}
	return f
}

func (f fixture) user(t *testing.T, uname, first, last string, groups ...string) user.User {
	ctx := context.Background()
	usr, err := f.svcs.User.Create(ctx, user.NewUser{Username: uname, Email: uname + "@transport.fr", FirstName: first, LastName: last, Password: "Pwd-1234"})
	require.NoError(t, err)
	usr, err = f.svcs.Group.SetUserGroups(ctx, user.User{}, usr, groups)
	require.NoError(t, err)
	return usr
}

func (f fixture) driver(t *testing.T, last string) driver.Driver {
	d, err := f.svcs.Driver.Create(context.Background(), driver.DriverInput{LastName: last, FirstName: "Paul", CompanyID: f.comp.ID, SiteID: f.site.ID})
	require.NoError(t, err)
	return d
}

func (f fixture) notes(values ...interface{}) map[string]interface{} {
	notes := make(map[string]interface{}, len(values))
	for i, v := range values {
		notes[f.crits[i].ID] = v
	}
	return notes
}

func TestService_ProvisionEvaluator(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	t.Run("default names are not provisioned", func(t *testing.T) {
		usr := f.user(t, "anonymous", "", "", access.GroupRH)
		_, err := f.svcs.Evaluation.EvaluatorForUser(ctx, usr)
		assert.Equal(t, evaluation.ErrCannotEvaluate, err)
	})

	t.Run("only one evaluator per user", func(t *testing.T) {
		usr := f.user(t, "marie", "Marie", "Curie", access.GroupRH)
		ev, created, err := f.svcs.Evaluation.ProvisionEvaluator(ctx, usr)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, usr.ID, ev.UserID)

		err = f.svcs.Evaluation.CheckEvaluatorUser(ctx, usr.ID, "Marie")
		assert.EqualError(t, err, evaluation.ErrEvaluatorUserTaken.Error())
		assert.NoError(t, f.svcs.Evaluation.CheckEvaluatorUser(ctx, usr.ID, "Marie", ev))

		ok, err := f.svcs.Evaluation.EvaluatorCanEvaluate(ctx, ev)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("user outside evaluator groups", func(t *testing.T) {
		usr := f.user(t, "pierre", "Pierre", "Durand", access.GroupDirection)
		err := f.svcs.Evaluation.CheckEvaluatorUser(ctx, usr.ID, " Pierre ")
		assert.EqualError(t, err, "Pierre is not a member of a group allowed to evaluate drivers")
		assert.EqualError(t, f.svcs.Evaluation.CheckEvaluatorUser(ctx, "lol", "x"), "select a valid user")
		assert.NoError(t, f.svcs.Evaluation.CheckEvaluatorUser(ctx, "", "x"))
	})
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	usr := f.user(t, "jean", "Jean", "Martin", access.GroupExploitation)
	evaluator, err := f.svcs.Evaluation.EvaluatorForUser(ctx, usr)
	require.NoError(t, err)
	paul := f.driver(t, "Martin")

	in := func(notes map[string]interface{}) evaluation.SubmitInput {
		return evaluation.SubmitInput{DriverID: paul.ID, EvaluatorID: evaluator.ID, TypeID: f.typ.ID, Notes: notes}
	}

	_, err = f.svcs.Evaluation.Submit(ctx, evaluation.SubmitInput{})
	assert.EqualError(t, err, "all the required fields must be filled")

	_, err = f.svcs.Evaluation.Submit(ctx, evaluation.SubmitInput{DriverID: "lol", EvaluatorID: evaluator.ID, TypeID: "lol"})
	if vErr, ok := err.(*core.ValidationError); assert.True(t, ok) {
		assert.Equal(t, []core.FieldError{
			{Field: "driver_id", Error: "select a valid driver"},
			{Field: "type_id", Error: "select a valid evaluation type"},
		}, vErr.Fields)
	}

	_, err = f.svcs.Evaluation.Submit(ctx, in(f.notes(5, 11, 3)))
	assert.EqualError(t, err, "the note for Vitesse must be between 0 and 10")
	_, err = f.svcs.Evaluation.Submit(ctx, in(f.notes(5, "", 3)))
	assert.EqualError(t, err, "the note for the criterion Vitesse is required")

	ev, err := f.svcs.Evaluation.Submit(ctx, in(f.notes(5, "10", 9.0)))
	require.NoError(t, err)
	if assert.NotNil(t, ev.Score) {
		assert.Equal(t, 80.0, *ev.Score)
	}

	comp, err := f.svcs.Evaluation.Completion(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, evaluation.CompletionComplete, comp.Status)

	// a new active criterion makes existing evaluations incomplete
	_, err = f.svcs.Evaluation.CreateCriterion(ctx, evaluation.CriterionInput{Name: "Rétroviseurs", TypeID: f.typ.ID, MinValue: 0, MaxValue: 10})
	require.NoError(t, err)
	det, err := f.svcs.Evaluation.Detail(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, evaluation.Completion{Status: evaluation.CompletionIncomplete, Given: 3, Total: 4}, det.Completion)
	assert.Equal(t, 8.0, det.Mean)
	for i, n := range det.Notes {
		assert.Equal(t, f.crits[i].ID, n.CriterionID)
	}

	_, err = f.svcs.Evaluation.Submit(ctx, in(f.notes(1, 1, 1)))
	assert.EqualError(t, err, "the note for the criterion Rétroviseurs is required")
}

func TestService_DriverList(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for i := 0; i < 30; i++ {
		f.driver(t, fmt.Sprintf("Driver%02d", i))
	}
	usr := f.user(t, "jean", "Jean", "Martin", access.GroupExploitation)
	evaluator, err := f.svcs.Evaluation.EvaluatorForUser(ctx, usr)
	require.NoError(t, err)

	first, err := f.svcs.Evaluation.DriverList(ctx, driver.QueryFilter{}, 1, 25)
	require.NoError(t, err)
	assert.Len(t, first.Drivers, 25)
	assert.Equal(t, 1, first.Page.Number)
	assert.True(t, first.Page.HasNext)
	assert.Equal(t, 2, first.Page.NumPages)

	target := first.Drivers[0].Driver
	_, err = f.svcs.Evaluation.Submit(ctx, evaluation.SubmitInput{
		DriverID: target.ID, EvaluatorID: evaluator.ID, TypeID: f.typ.ID, Notes: f.notes(10, 10, 10),
	})
	require.NoError(t, err)

	first, err = f.svcs.Evaluation.DriverList(ctx, driver.QueryFilter{}, 1, 25)
	require.NoError(t, err)
	item := first.Drivers[0]
	assert.Equal(t, 1, item.EvaluationsCount)
	if assert.NotNil(t, item.LastScore) {
		assert.Equal(t, 100.0, *item.LastScore)
	}

	last, err := f.svcs.Evaluation.DriverList(ctx, driver.QueryFilter{}, 7, 25)
	require.NoError(t, err)
	assert.Len(t, last.Drivers, 5)
	assert.Equal(t, 2, last.Page.Number)
	assert.Equal(t, 0, last.Drivers[0].EvaluationsCount)

	det, err := f.svcs.Evaluation.DriverDetail(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, det.Count)
	assert.Len(t, det.ByType["Conduite"], 1)
	if assert.NotNil(t, det.MeanScore) {
		assert.Equal(t, 100.0, *det.MeanScore)
	}
}
