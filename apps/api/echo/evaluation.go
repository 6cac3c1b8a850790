package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/user"
)

type evaluationApi struct {
	svc      evaluation.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerEvaluationAPI(g *echo.Group, jwt echo.MiddlewareFunc, perm permFunc, deps ServerDeps) {
	api := evaluationApi{
		svc:      deps.EvalSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	eg := g.Group("/evaluators", jwt)
	eg.GET("", api.listEvaluators, perm.suivi(access.ActionView, access.ModelEvaluator))
	eg.POST("", api.createEvaluator, perm.suivi(access.ActionAdd, access.ModelEvaluator))
	eg.GET("/:id", api.retrieveEvaluator, perm.suivi(access.ActionView, access.ModelEvaluator))
	eg.PUT("/:id", api.updateEvaluator, perm.suivi(access.ActionChange, access.ModelEvaluator))
	eg.DELETE("/:id", api.destroyEvaluator, perm.suivi(access.ActionDelete, access.ModelEvaluator))

	tg := g.Group("/evaluation-types", jwt)
	tg.GET("", api.listTypes, perm.suivi(access.ActionView, access.ModelEvaluationType))
	tg.POST("", api.createType, perm.suivi(access.ActionAdd, access.ModelEvaluationType))
	tg.GET("/:id", api.retrieveType, perm.suivi(access.ActionView, access.ModelEvaluationType))
	tg.PUT("/:id", api.updateType, perm.suivi(access.ActionChange, access.ModelEvaluationType))
	tg.DELETE("/:id", api.destroyType, perm.suivi(access.ActionDelete, access.ModelEvaluationType))

	cg := g.Group("/criteria", jwt)
	cg.GET("", api.listCriteria, perm.suivi(access.ActionView, access.ModelCriterion))
	cg.POST("", api.createCriterion, perm.suivi(access.ActionAdd, access.ModelCriterion))
	cg.GET("/:id", api.retrieveCriterion, perm.suivi(access.ActionView, access.ModelCriterion))
	cg.PUT("/:id", api.updateCriterion, perm.suivi(access.ActionChange, access.ModelCriterion))
	cg.DELETE("/:id", api.destroyCriterion, perm.suivi(access.ActionDelete, access.ModelCriterion))

	vg := g.Group("/evaluations", jwt)
	vg.GET("", api.list, perm.suivi(access.ActionView, access.ModelEvaluation))
	vg.POST("", api.create, perm.suivi(access.ActionAdd, access.ModelEvaluation))
	vg.POST("/submit", api.submit, perm.suivi(access.ActionAdd, access.ModelEvaluation))
	vg.GET("/criteria", api.activeCriteria, perm.suivi(access.ActionView, access.ModelCriterion))
	vg.POST("/validate-note", api.validateNote, perm.suivi(access.ActionAdd, access.ModelNote))
	vg.GET("/:id", api.retrieve, perm.suivi(access.ActionView, access.ModelEvaluation))
	vg.PUT("/:id", api.update, perm.suivi(access.ActionChange, access.ModelEvaluation))
	vg.DELETE("/:id", api.destroy, perm.suivi(access.ActionDelete, access.ModelEvaluation))
	vg.POST("/:id/notes", api.createNote, perm.suivi(access.ActionAdd, access.ModelNote))
	vg.PUT("/:id/notes/:noteID", api.updateNote, perm.suivi(access.ActionChange, access.ModelNote))
	vg.DELETE("/:id/notes/:noteID", api.destroyNote, perm.suivi(access.ActionDelete, access.ModelNote))
}

// Evaluators

func (api *evaluationApi) listEvaluators(ctx echo.Context) error {
	evs, err := api.svc.QueryEvaluators(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing evaluators")
	}
	return ctx.JSON(http.StatusOK, evs)
}

func (api *evaluationApi) createEvaluator(ctx echo.Context) error {
	c := ctx.Request().Context()

	var data evaluation.EvaluatorInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EvaluatorInput")
	}
	if err := data.Validate(c, api.validate, api.svc); err != nil {
		return err
	}
	ev, err := api.svc.CreateEvaluator(c, data)
	if err != nil {
		return errors.Wrap(err, "creating evaluator")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

func (api *evaluationApi) retrieveEvaluator(ctx echo.Context) error {
	ev, err := api.svc.GetEvaluator(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding evaluator")
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evaluationApi) updateEvaluator(ctx echo.Context) error {
	c := ctx.Request().Context()

	ev, err := api.svc.GetEvaluator(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding evaluator")
	}
	var data evaluation.EvaluatorInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EvaluatorInput")
	}
	if err = data.Validate(c, api.validate, api.svc, ev); err != nil {
		return err
	}
	if ev, err = api.svc.UpdateEvaluator(c, ev, data); err != nil {
		return errors.Wrap(err, "updating evaluator")
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evaluationApi) destroyEvaluator(ctx echo.Context) error {
	if err := api.svc.DeleteEvaluator(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting evaluator")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Evaluation types

func (api *evaluationApi) listTypes(ctx echo.Context) error {
	types, err := api.svc.QueryTypes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing evaluation types")
	}
	return ctx.JSON(http.StatusOK, types)
}

func (api *evaluationApi) createType(ctx echo.Context) error {
	var data evaluation.TypeInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TypeInput")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	typ, err := api.svc.CreateType(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating evaluation type")
	}
	return ctx.JSON(http.StatusCreated, typ)
}

func (api *evaluationApi) retrieveType(ctx echo.Context) error {
	typ, err := api.svc.GetType(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding evaluation type")
	}
	return ctx.JSON(http.StatusOK, typ)
}

func (api *evaluationApi) updateType(ctx echo.Context) error {
	c := ctx.Request().Context()

	typ, err := api.svc.GetType(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding evaluation type")
	}
	var data evaluation.TypeInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TypeInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	if typ, err = api.svc.UpdateType(c, typ, data); err != nil {
		return errors.Wrap(err, "updating evaluation type")
	}
	return ctx.JSON(http.StatusOK, typ)
}

func (api *evaluationApi) destroyType(ctx echo.Context) error {
	if err := api.svc.DeleteType(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting evaluation type")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Criteria

func (api *evaluationApi) listCriteria(ctx echo.Context) error {
	filter := evaluation.CriterionFilter{
		TypeID: ctx.QueryParam("type_id"),
		Active: bindBool(ctx, "active"),
	}
	crits, err := api.svc.QueryCriteria(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing criteria")
	}
	return ctx.JSON(http.StatusOK, crits)
}

func (api *evaluationApi) createCriterion(ctx echo.Context) error {
	c := ctx.Request().Context()

	var data evaluation.CriterionInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CriterionInput")
	}
	if err := data.Validate(c, api.validate, api.svc); err != nil {
		return err
	}
	crit, err := api.svc.CreateCriterion(c, data)
	if err != nil {
		return errors.Wrap(err, "creating criterion")
	}
	return ctx.JSON(http.StatusCreated, crit)
}

func (api *evaluationApi) retrieveCriterion(ctx echo.Context) error {
	crit, err := api.svc.GetCriterion(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding criterion")
	}
	return ctx.JSON(http.StatusOK, crit)
}

func (api *evaluationApi) updateCriterion(ctx echo.Context) error {
	c := ctx.Request().Context()

	crit, err := api.svc.GetCriterion(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding criterion")
	}
	var data evaluation.CriterionInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CriterionInput")
	}
	if err = data.Validate(c, api.validate, api.svc); err != nil {
		return err
	}
	if crit, err = api.svc.UpdateCriterion(c, crit, data); err != nil {
		return errors.Wrap(err, "updating criterion")
	}
	return ctx.JSON(http.StatusOK, crit)
}

func (api *evaluationApi) destroyCriterion(ctx echo.Context) error {
	if err := api.svc.DeleteCriterion(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting criterion")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Evaluations

func (api *evaluationApi) list(ctx echo.Context) error {
	filter := evaluation.QueryFilter{
		EvaluatorID: ctx.QueryParam("evaluator_id"),
		TypeID:      ctx.QueryParam("type_id"),
	}
	if id := ctx.QueryParam("driver_id"); id != "" {
		filter.DriverIDs = []string{id}
	}
	evals, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying evaluations")
	}
	return ctx.JSON(http.StatusOK, evals)
}

func (api *evaluationApi) create(ctx echo.Context) error {
	var data evaluation.EvaluationInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EvaluationInput")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	ev, err := api.svc.CreateEvaluation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating evaluation")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

// submit records a complete evaluation on behalf of the evaluator of the authenticated user.
func (api *evaluationApi) submit(ctx echo.Context) error {
	c := ctx.Request().Context()

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	evaluator, err := api.svc.EvaluatorForUser(c, usr)
	if err != nil {
		return errors.Wrap(err, "finding evaluator of user")
	}

	var data evaluation.SubmitInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitInput")
	}
	data.EvaluatorID = evaluator.ID
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	ev, err := api.svc.Submit(c, data)
	if err != nil {
		return errors.Wrap(err, "submitting evaluation")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

// activeCriteria returns the criteria to fill for the `type_id` evaluation type.
func (api *evaluationApi) activeCriteria(ctx echo.Context) error {
	typeID := ctx.QueryParam("type_id")
	if typeID == "" {
		return ctx.JSON(http.StatusOK, []evaluation.Criterion{})
	}
	crits, err := api.svc.ActiveCriteria(ctx.Request().Context(), typeID)
	if err != nil {
		return errors.Wrap(err, "listing active criteria")
	}
	return ctx.JSON(http.StatusOK, crits)
}

func (api *evaluationApi) validateNote(ctx echo.Context) error {
	var data ValidateNoteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ValidateNoteRequest")
	}
	return ctx.JSON(http.StatusOK, api.svc.ValidateNote(ctx.Request().Context(), data.CriterionID, data.Value))
}

func (api *evaluationApi) retrieve(ctx echo.Context) error {
	det, err := api.svc.Detail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evaluation detail")
	}
	return ctx.JSON(http.StatusOK, det)
}

func (api *evaluationApi) update(ctx echo.Context) error {
	c := ctx.Request().Context()

	ev, err := api.svc.GetEvaluation(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding evaluation")
	}
	var data evaluation.EvaluationInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EvaluationInput")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}
	if ev, err = api.svc.UpdateEvaluation(c, ev, data); err != nil {
		return errors.Wrap(err, "updating evaluation")
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evaluationApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteEvaluation(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting evaluation")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Notes

func (api *evaluationApi) createNote(ctx echo.Context) error {
	var data evaluation.NoteInput
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NoteInput")
	}
	data.EvaluationID = ctx.Param("id")
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	n, err := api.svc.CreateNote(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, n)
}

// evaluationNote returns the :noteID note, provided it belongs to the :id evaluation.
func (api *evaluationApi) evaluationNote(ctx echo.Context) (evaluation.Note, error) {
	n, err := api.svc.GetNote(ctx.Request().Context(), ctx.Param("noteID"))
	if err != nil {
		return evaluation.Note{}, errors.Wrap(err, "finding note")
	}
	if n.EvaluationID != ctx.Param("id") {
		return evaluation.Note{}, errHttpNotFound
	}
	return n, nil
}

func (api *evaluationApi) updateNote(ctx echo.Context) error {
	n, err := api.evaluationNote(ctx)
	if err != nil {
		return err
	}
	var data UpdateNoteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNoteRequest")
	}
	if n, err = api.svc.UpdateNote(ctx.Request().Context(), n, data.Value); err != nil {
		return errors.Wrap(err, "updating note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *evaluationApi) destroyNote(ctx echo.Context) error {
	n, err := api.evaluationNote(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteNote(ctx.Request().Context(), n.ID); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	ValidateNoteRequest struct {
		CriterionID string      `json:"criterion_id"`
		Value       interface{} `json:"value"`
	}

	UpdateNoteRequest struct {
		Value *int `json:"value"`
	}
)
