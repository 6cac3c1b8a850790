package evaluation

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/driver"
	"github.com/fleetops/suivi/core/org"
	"github.com/fleetops/suivi/core/user"
)

var (
	// errors
	ErrEvaluatorNotFound   = core.NewNotFoundError(errors.New("evaluator not found"))
	ErrTypeNotFound        = core.NewNotFoundError(errors.New("evaluation type not found"))
	ErrCriterionNotFound   = core.NewNotFoundError(errors.New("criterion not found"))
	ErrNotFound            = core.NewNotFoundError(errors.New("evaluation not found"))
	ErrNoteNotFound        = core.NewNotFoundError(errors.New("note not found"))
	ErrDuplicateEvaluation = errors.New("an evaluation already exists for this driver, evaluator, type and date")
	ErrDuplicateNote       = errors.New("a note already exists for this criterion")
	ErrEvaluatorUserTaken  = errors.New("this user is already linked to another evaluator")
	ErrCannotEvaluate      = errors.Wrap(core.ErrPermissionDenied, "you are not allowed to submit evaluations")
)

// nowFunc is mocked in tests
var nowFunc = time.Now

// Provisioned departments, by priority
var evaluatorDepartments = []struct {
	group, name, abbr string
}{
	{group: access.GroupRH, name: "Ressources Humaines", abbr: "RH"},
	{group: access.GroupExploitation, name: "Exploitation", abbr: "EXP"},
}

type (
	Repository interface {
		CreateEvaluator(ctx context.Context, ev Evaluator) (Evaluator, error)
		GetEvaluator(ctx context.Context, id string) (Evaluator, error)
		GetEvaluatorByUserID(ctx context.Context, userID string) (Evaluator, error)
		// QueryEvaluators returns all the evaluators ordered by last name then first name.
		QueryEvaluators(ctx context.Context) ([]Evaluator, error)
		UpdateEvaluator(ctx context.Context, ev Evaluator) (Evaluator, error)
		DeleteEvaluator(ctx context.Context, id string) error

		CreateType(ctx context.Context, typ EvaluationType) (EvaluationType, error)
		GetType(ctx context.Context, id string) (EvaluationType, error)
		QueryTypes(ctx context.Context) ([]EvaluationType, error)
		UpdateType(ctx context.Context, typ EvaluationType) (EvaluationType, error)
		DeleteType(ctx context.Context, id string) error

		// CreateCriterion assigns the next order number, in the same transaction as the insert.
		CreateCriterion(ctx context.Context, crit Criterion) (Criterion, error)
		GetCriterion(ctx context.Context, id string) (Criterion, error)
		// QueryCriteria returns the criteria matching filter ordered by order number.
		QueryCriteria(ctx context.Context, filter CriterionFilter) ([]Criterion, error)
		// UpdateCriterion never changes the order number.
		UpdateCriterion(ctx context.Context, crit Criterion) (Criterion, error)
		DeleteCriterion(ctx context.Context, id string) error

		// CreateEvaluation inserts ev and ev.Notes in one transaction.
		// Returns ErrDuplicateEvaluation when (driver, date, evaluator, type) is taken.
		CreateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
		// GetEvaluation returns the evaluation with its notes and their criterion.
		GetEvaluation(ctx context.Context, id string) (Evaluation, error)
		// QueryEvaluations returns the evaluations with notes, most recent date first.
		QueryEvaluations(ctx context.Context, filter QueryFilter) ([]Evaluation, error)
		UpdateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
		DeleteEvaluation(ctx context.Context, id string) error

		// CreateNote returns ErrDuplicateNote when the criterion is already noted for the evaluation.
		CreateNote(ctx context.Context, n Note) (Note, error)
		GetNote(ctx context.Context, id string) (Note, error)
		UpdateNote(ctx context.Context, n Note) (Note, error)
		DeleteNote(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		// CheckEvaluatorUser returns a field ValidationError when userID is set but cannot evaluate.
		CheckEvaluatorUser(ctx context.Context, userID, name string, exclude ...Evaluator) error
		CreateEvaluator(ctx context.Context, in EvaluatorInput) (Evaluator, error)
		GetEvaluator(ctx context.Context, id string) (Evaluator, error)
		QueryEvaluators(ctx context.Context) ([]Evaluator, error)
		UpdateEvaluator(ctx context.Context, ev Evaluator, in EvaluatorInput) (Evaluator, error)
		DeleteEvaluator(ctx context.Context, id string) error
		EvaluatorCanEvaluate(ctx context.Context, ev Evaluator) (bool, error)
		// EvaluatorForUser returns the evaluator linked to usr, or ErrCannotEvaluate.
		EvaluatorForUser(ctx context.Context, usr user.User) (Evaluator, error)
		// ProvisionEvaluator creates or refreshes the evaluator of a member of an evaluator group.
		ProvisionEvaluator(ctx context.Context, usr user.User) (Evaluator, bool, error)

		CreateType(ctx context.Context, in TypeInput) (EvaluationType, error)
		GetType(ctx context.Context, id string) (EvaluationType, error)
		QueryTypes(ctx context.Context) ([]EvaluationType, error)
		UpdateType(ctx context.Context, typ EvaluationType, in TypeInput) (EvaluationType, error)
		DeleteType(ctx context.Context, id string) error

		CreateCriterion(ctx context.Context, in CriterionInput) (Criterion, error)
		GetCriterion(ctx context.Context, id string) (Criterion, error)
		QueryCriteria(ctx context.Context, filter CriterionFilter) ([]Criterion, error)
		ActiveCriteria(ctx context.Context, typeID string) ([]Criterion, error)
		UpdateCriterion(ctx context.Context, crit Criterion, in CriterionInput) (Criterion, error)
		DeleteCriterion(ctx context.Context, id string) error

		CreateEvaluation(ctx context.Context, in EvaluationInput) (Evaluation, error)
		GetEvaluation(ctx context.Context, id string) (Evaluation, error)
		Detail(ctx context.Context, id string) (EvaluationDetail, error)
		Query(ctx context.Context, filter QueryFilter) ([]Evaluation, error)
		UpdateEvaluation(ctx context.Context, ev Evaluation, in EvaluationInput) (Evaluation, error)
		DeleteEvaluation(ctx context.Context, id string) error
		Submit(ctx context.Context, in SubmitInput) (Evaluation, error)
		Completion(ctx context.Context, ev Evaluation) (Completion, error)

		CreateNote(ctx context.Context, in NoteInput) (Note, error)
		GetNote(ctx context.Context, id string) (Note, error)
		UpdateNote(ctx context.Context, n Note, value *int) (Note, error)
		DeleteNote(ctx context.Context, id string) error
		ValidateNote(ctx context.Context, criterionID string, raw interface{}) NoteCheck

		DriverList(ctx context.Context, filter driver.QueryFilter, page, pageSize int) (DriverList, error)
		DriverDetail(ctx context.Context, driverID string) (DriverDetail, error)
	}

	service struct {
		repo   Repository
		drvSvc driver.ServiceInterface
		orgSvc org.ServiceInterface
		usrSvc user.ServiceInterface
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, drvSvc driver.ServiceInterface, orgSvc org.ServiceInterface, usrSvc user.ServiceInterface) ServiceInterface {
	return &service{
		repo:   repo,
		drvSvc: drvSvc,
		orgSvc: orgSvc,
		usrSvc: usrSvc,
	}
}

// Evaluators

func (svc *service) CheckEvaluatorUser(ctx context.Context, userID, name string, exclude ...Evaluator) error {
	if userID == "" {
		return nil
	}
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("user_id", "select a valid user")
		}
		return errors.Wrap(err, "finding user")
	}
	if !usr.CanEvaluate() {
		return core.NewFieldError("user_id", fmt.Sprintf("%s is not a member of a group allowed to evaluate drivers", strings.TrimSpace(name)))
	}

	linked, err := svc.repo.GetEvaluatorByUserID(ctx, userID)
	switch {
	case err == nil:
		for _, ex := range exclude {
			if ex.ID == linked.ID {
				return nil
			}
		}
		return core.NewFieldError("user_id", ErrEvaluatorUserTaken.Error())
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "finding evaluator by user")
	}
}

func (svc *service) CreateEvaluator(ctx context.Context, in EvaluatorInput) (Evaluator, error) {
	return svc.repo.CreateEvaluator(ctx, Evaluator{
		LastName:     in.LastName,
		FirstName:    in.FirstName,
		UserID:       in.UserID,
		DepartmentID: in.DepartmentID,
		CreatedAt:    time.Now().UTC(),
	})
}

func (svc *service) GetEvaluator(ctx context.Context, id string) (Evaluator, error) {
	return svc.repo.GetEvaluator(ctx, id)
}

func (svc *service) QueryEvaluators(ctx context.Context) ([]Evaluator, error) {
	return svc.repo.QueryEvaluators(ctx)
}

func (svc *service) UpdateEvaluator(ctx context.Context, ev Evaluator, in EvaluatorInput) (Evaluator, error) {
	ev.LastName = in.LastName
	ev.FirstName = in.FirstName
	ev.UserID = in.UserID
	ev.DepartmentID = in.DepartmentID
	return svc.repo.UpdateEvaluator(ctx, ev)
}

func (svc *service) DeleteEvaluator(ctx context.Context, id string) error {
	return svc.repo.DeleteEvaluator(ctx, id)
}

func (svc *service) EvaluatorCanEvaluate(ctx context.Context, ev Evaluator) (bool, error) {
	if ev.UserID == "" {
		return false, nil
	}
	usr, err := svc.usrSvc.GetByID(ctx, ev.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "finding evaluator user")
	}
	return usr.CanEvaluate(), nil
}

func (svc *service) EvaluatorForUser(ctx context.Context, usr user.User) (Evaluator, error) {
	if !usr.CanEvaluate() {
		return Evaluator{}, ErrCannotEvaluate
	}
	ev, err := svc.repo.GetEvaluatorByUserID(ctx, usr.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return Evaluator{}, ErrCannotEvaluate
		}
		return Evaluator{}, errors.Wrap(err, "finding evaluator by user")
	}
	return ev, nil
}

// evaluatorDepartment resolves the department of an evaluator from its groups, creating it if needed.
func (svc *service) evaluatorDepartment(ctx context.Context, groups []string) (org.Department, bool, error) {
	for _, d := range evaluatorDepartments {
		if core.StringInSlice(d.group, groups) {
			dept, _, err := svc.orgSvc.GetOrCreateDepartment(ctx, d.name, d.abbr)
			return dept, true, err
		}
	}
	return org.Department{}, false, nil
}

func (svc *service) ProvisionEvaluator(ctx context.Context, usr user.User) (Evaluator, bool, error) {
	dept, ok, err := svc.evaluatorDepartment(ctx, usr.Groups)
	if err != nil {
		return Evaluator{}, false, errors.Wrap(err, "resolving evaluator department")
	}
	if !ok {
		// not in an evaluator group (anymore): existing evaluators are kept as is
		return Evaluator{}, false, nil
	}

	ev, err := svc.repo.GetEvaluatorByUserID(ctx, usr.ID)
	if err == nil {
		if ev.DepartmentID != dept.ID {
			ev.DepartmentID = dept.ID
			if ev, err = svc.repo.UpdateEvaluator(ctx, ev); err != nil {
				return Evaluator{}, false, errors.Wrap(err, "updating evaluator department")
			}
		}
		return ev, false, nil
	}
	if !core.IsNotFound(err) {
		return Evaluator{}, false, errors.Wrap(err, "finding evaluator by user")
	}

	last, first := evaluatorNames(usr)
	if !usr.IsActive || (last == DefaultLastName && first == DefaultFirstName) {
		return Evaluator{}, false, nil
	}
	ev, err = svc.repo.CreateEvaluator(ctx, Evaluator{
		LastName:     last,
		FirstName:    first,
		UserID:       usr.ID,
		DepartmentID: dept.ID,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return Evaluator{}, false, errors.Wrap(err, "creating evaluator")
	}
	return ev, true, nil
}

func evaluatorNames(usr user.User) (last, first string) {
	last = core.CleanString(usr.LastName)
	first = core.CleanString(usr.FirstName)
	if last == "" {
		last = DefaultLastName
	}
	if first == "" {
		first = DefaultFirstName
	}
	return last, first
}

// Types

func (svc *service) CreateType(ctx context.Context, in TypeInput) (EvaluationType, error) {
	return svc.repo.CreateType(ctx, EvaluationType{
		Name:         in.Name,
		Abbreviation: in.Abbreviation,
		Description:  in.Description,
	})
}

func (svc *service) GetType(ctx context.Context, id string) (EvaluationType, error) {
	return svc.repo.GetType(ctx, id)
}

func (svc *service) QueryTypes(ctx context.Context) ([]EvaluationType, error) {
	return svc.repo.QueryTypes(ctx)
}

func (svc *service) UpdateType(ctx context.Context, typ EvaluationType, in TypeInput) (EvaluationType, error) {
	typ.Name = in.Name
	typ.Abbreviation = in.Abbreviation
	typ.Description = in.Description
	return svc.repo.UpdateType(ctx, typ)
}

func (svc *service) DeleteType(ctx context.Context, id string) error {
	return svc.repo.DeleteType(ctx, id)
}

// Criteria

func (svc *service) CreateCriterion(ctx context.Context, in CriterionInput) (Criterion, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return svc.repo.CreateCriterion(ctx, Criterion{
		Name:      in.Name,
		TypeID:    in.TypeID,
		MinValue:  in.MinValue,
		MaxValue:  in.MaxValue,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) GetCriterion(ctx context.Context, id string) (Criterion, error) {
	return svc.repo.GetCriterion(ctx, id)
}

func (svc *service) QueryCriteria(ctx context.Context, filter CriterionFilter) ([]Criterion, error) {
	return svc.repo.QueryCriteria(ctx, filter)
}

func (svc *service) ActiveCriteria(ctx context.Context, typeID string) ([]Criterion, error) {
	if typeID == "" {
		return []Criterion{}, nil
	}
	active := true
	crits, err := svc.repo.QueryCriteria(ctx, CriterionFilter{TypeID: typeID, Active: &active})
	if err != nil {
		return nil, errors.Wrap(err, "querying active criteria")
	}
	if crits == nil {
		crits = []Criterion{}
	}
	return crits, nil
}

func (svc *service) UpdateCriterion(ctx context.Context, crit Criterion, in CriterionInput) (Criterion, error) {
	crit.Name = in.Name
	crit.TypeID = in.TypeID
	crit.MinValue = in.MinValue
	crit.MaxValue = in.MaxValue
	if in.Active != nil {
		crit.Active = *in.Active
	}
	return svc.repo.UpdateCriterion(ctx, crit)
}

func (svc *service) DeleteCriterion(ctx context.Context, id string) error {
	return svc.repo.DeleteCriterion(ctx, id)
}

// Evaluations

// checkRelations returns a field ValidationError for every missing related record.
func (svc *service) checkRelations(ctx context.Context, driverID, evaluatorID, typeID string) error {
	var fields []core.FieldError
	check := func(field, msg string, err error) error {
		if err == nil {
			return nil
		}
		if !core.IsNotFound(err) {
			return err
		}
		fields = append(fields, core.FieldError{Field: field, Error: msg})
		return nil
	}

	_, err := svc.drvSvc.GetByID(ctx, driverID)
	if err = check("driver_id", "select a valid driver", err); err != nil {
		return errors.Wrap(err, "finding driver")
	}
	_, err = svc.repo.GetEvaluator(ctx, evaluatorID)
	if err = check("evaluator_id", "select a valid evaluator", err); err != nil {
		return errors.Wrap(err, "finding evaluator")
	}
	_, err = svc.repo.GetType(ctx, typeID)
	if err = check("type_id", "select a valid evaluation type", err); err != nil {
		return errors.Wrap(err, "finding evaluation type")
	}
	if len(fields) > 0 {
		return core.NewValidationError(errors.New(fields[0].Error), fields...)
	}
	return nil
}

func duplicateErr(err error) error {
	if errors.Cause(err) == ErrDuplicateEvaluation {
		return core.NewValidationError(ErrDuplicateEvaluation)
	}
	return err
}

func (svc *service) CreateEvaluation(ctx context.Context, in EvaluationInput) (Evaluation, error) {
	if err := svc.checkRelations(ctx, in.DriverID, in.EvaluatorID, in.TypeID); err != nil {
		return Evaluation{}, err
	}
	ev, err := svc.repo.CreateEvaluation(ctx, Evaluation{
		Date:        core.DateOf(in.Date),
		EvaluatorID: in.EvaluatorID,
		DriverID:    in.DriverID,
		TypeID:      in.TypeID,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return Evaluation{}, duplicateErr(err)
	}
	return ev.withScore(), nil
}

func (svc *service) GetEvaluation(ctx context.Context, id string) (Evaluation, error) {
	ev, err := svc.repo.GetEvaluation(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}
	return ev.withScore(), nil
}

func (svc *service) Detail(ctx context.Context, id string) (EvaluationDetail, error) {
	ev, err := svc.GetEvaluation(ctx, id)
	if err != nil {
		return EvaluationDetail{}, err
	}
	sort.SliceStable(ev.Notes, func(i, j int) bool {
		return orderNumber(ev.Notes[i]) < orderNumber(ev.Notes[j])
	})

	det := EvaluationDetail{Evaluation: ev, TotalCriteria: len(ev.Notes)}
	sum := 0
	for _, n := range ev.Notes {
		if n.Value != nil {
			sum += *n.Value
			det.GivenNotes++
		}
	}
	if det.GivenNotes > 0 {
		det.Mean = float64(sum) / float64(det.GivenNotes)
	}
	if det.Completion, err = svc.Completion(ctx, ev); err != nil {
		return EvaluationDetail{}, err
	}
	return det, nil
}

func orderNumber(n Note) int {
	if n.Criterion == nil {
		return 0
	}
	return n.Criterion.OrderNumber
}

func (svc *service) Completion(ctx context.Context, ev Evaluation) (Completion, error) {
	crits, err := svc.ActiveCriteria(ctx, ev.TypeID)
	if err != nil {
		return Completion{}, err
	}
	return ev.CompletionStatus(len(crits)), nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Evaluation, error) {
	evals, err := svc.repo.QueryEvaluations(ctx, filter)
	if err != nil {
		return nil, err
	}
	scored := make([]Evaluation, 0, len(evals))
	for _, ev := range evals {
		scored = append(scored, ev.withScore())
	}
	return scored, nil
}

func (svc *service) UpdateEvaluation(ctx context.Context, ev Evaluation, in EvaluationInput) (Evaluation, error) {
	if err := svc.checkRelations(ctx, in.DriverID, in.EvaluatorID, in.TypeID); err != nil {
		return Evaluation{}, err
	}
	if in.TypeID != ev.TypeID {
		for _, n := range ev.Notes {
			if n.Criterion != nil && n.Criterion.TypeID != in.TypeID {
				return Evaluation{}, core.NewFieldError("type_id", "cannot change the evaluation type: notes exist for another type")
			}
		}
	}
	ev.Date = core.DateOf(in.Date)
	ev.EvaluatorID = in.EvaluatorID
	ev.DriverID = in.DriverID
	ev.TypeID = in.TypeID

	updated, err := svc.repo.UpdateEvaluation(ctx, ev)
	if err != nil {
		return Evaluation{}, duplicateErr(err)
	}
	return updated.withScore(), nil
}

func (svc *service) DeleteEvaluation(ctx context.Context, id string) error {
	return svc.repo.DeleteEvaluation(ctx, id)
}

func (svc *service) Submit(ctx context.Context, in SubmitInput) (Evaluation, error) {
	if in.DriverID == "" || in.EvaluatorID == "" || in.TypeID == "" {
		return Evaluation{}, core.NewValidationError(errors.New("all the required fields must be filled"))
	}
	if err := svc.checkRelations(ctx, in.DriverID, in.EvaluatorID, in.TypeID); err != nil {
		return Evaluation{}, err
	}
	crits, err := svc.ActiveCriteria(ctx, in.TypeID)
	if err != nil {
		return Evaluation{}, err
	}

	now := nowFunc()
	ev := Evaluation{
		Date:        core.DateOf(now),
		EvaluatorID: in.EvaluatorID,
		DriverID:    in.DriverID,
		TypeID:      in.TypeID,
		CreatedAt:   now.UTC(),
		Notes:       make([]Note, 0, len(crits)),
	}
	for i := range crits {
		crit := crits[i]
		raw, ok := in.Notes[crit.ID]
		if !ok || raw == nil || raw == "" {
			return Evaluation{}, core.NewFieldError(crit.ID, fmt.Sprintf("the note for the criterion %s is required", crit.Name))
		}
		val, err := parseNoteValue(raw)
		if err != nil {
			return Evaluation{}, core.NewFieldError(crit.ID, fmt.Sprintf("the note for %s must be a number", crit.Name))
		}
		if !crit.InRange(val) {
			return Evaluation{}, core.NewFieldError(crit.ID, fmt.Sprintf("the note for %s must be between %d and %d", crit.Name, crit.MinValue, crit.MaxValue))
		}
		ev.Notes = append(ev.Notes, Note{CriterionID: crit.ID, Value: &val, CreatedAt: now.UTC(), Criterion: &crit})
	}

	created, err := svc.repo.CreateEvaluation(ctx, ev)
	if err != nil {
		return Evaluation{}, duplicateErr(err)
	}
	return created.withScore(), nil
}

// parseNoteValue accepts JSON numbers holding a whole number or numeric strings.
func parseNoteValue(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, errors.New("not a whole number")
		}
		return int(v), nil
	case int:
		return v, nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	}
	return 0, errors.Errorf("unexpected note value type %T", raw)
}

// Notes

func (svc *service) checkNote(crit Criterion, ev Evaluation, value *int) error {
	if value != nil && !crit.InRange(*value) {
		return core.NewFieldError("value", fmt.Sprintf("the note must be between %d and %d", crit.MinValue, crit.MaxValue))
	}
	if crit.TypeID != ev.TypeID {
		return core.NewFieldError("criterion_id", fmt.Sprintf("the criterion must belong to the evaluation type %q", ev.TypeName))
	}
	return nil
}

func (svc *service) CreateNote(ctx context.Context, in NoteInput) (Note, error) {
	ev, err := svc.repo.GetEvaluation(ctx, in.EvaluationID)
	if err != nil {
		if core.IsNotFound(err) {
			return Note{}, core.NewFieldError("evaluation_id", "select a valid evaluation")
		}
		return Note{}, errors.Wrap(err, "finding evaluation")
	}
	crit, err := svc.repo.GetCriterion(ctx, in.CriterionID)
	if err != nil {
		if core.IsNotFound(err) {
			return Note{}, core.NewFieldError("criterion_id", "select a valid criterion")
		}
		return Note{}, errors.Wrap(err, "finding criterion")
	}
	if err = svc.checkNote(crit, ev, in.Value); err != nil {
		return Note{}, err
	}

	n, err := svc.repo.CreateNote(ctx, Note{
		EvaluationID: ev.ID,
		CriterionID:  crit.ID,
		Value:        in.Value,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrDuplicateNote {
			return Note{}, core.NewFieldError("criterion_id", ErrDuplicateNote.Error())
		}
		return Note{}, err
	}
	n.Criterion = &crit
	return n, nil
}

func (svc *service) GetNote(ctx context.Context, id string) (Note, error) {
	return svc.repo.GetNote(ctx, id)
}

func (svc *service) UpdateNote(ctx context.Context, n Note, value *int) (Note, error) {
	ev, err := svc.repo.GetEvaluation(ctx, n.EvaluationID)
	if err != nil {
		return Note{}, errors.Wrap(err, "finding evaluation")
	}
	crit, err := svc.repo.GetCriterion(ctx, n.CriterionID)
	if err != nil {
		return Note{}, errors.Wrap(err, "finding criterion")
	}
	if err = svc.checkNote(crit, ev, value); err != nil {
		return Note{}, err
	}
	n.Value = value
	if n, err = svc.repo.UpdateNote(ctx, n); err != nil {
		return Note{}, err
	}
	n.Criterion = &crit
	return n, nil
}

func (svc *service) DeleteNote(ctx context.Context, id string) error {
	return svc.repo.DeleteNote(ctx, id)
}

func (svc *service) ValidateNote(ctx context.Context, criterionID string, raw interface{}) NoteCheck {
	if criterionID == "" || raw == nil || raw == "" {
		return NoteCheck{Error: "missing data"}
	}
	crit, err := svc.repo.GetCriterion(ctx, criterionID)
	if err != nil {
		return NoteCheck{Error: "invalid criterion"}
	}
	val, err := parseNoteValue(raw)
	if err != nil {
		return NoteCheck{Error: "number required"}
	}
	if !crit.InRange(val) {
		return NoteCheck{Error: fmt.Sprintf("note between %d and %d", crit.MinValue, crit.MaxValue)}
	}
	return NoteCheck{Valid: true}
}

// Drivers

func (svc *service) DriverList(ctx context.Context, filter driver.QueryFilter, page, pageSize int) (DriverList, error) {
	drivers, err := svc.drvSvc.Query(ctx, filter)
	if err != nil {
		return DriverList{}, errors.Wrap(err, "querying drivers")
	}
	info := core.Paginate(len(drivers), page, pageSize)
	start, end := info.Bounds()
	drivers = drivers[start:end]

	ids := make([]string, 0, len(drivers))
	for _, d := range drivers {
		ids = append(ids, d.ID)
	}
	byDriver := make(map[string][]Evaluation, len(drivers))
	if len(ids) > 0 {
		evals, err := svc.Query(ctx, QueryFilter{DriverIDs: ids})
		if err != nil {
			return DriverList{}, errors.Wrap(err, "querying driver evaluations")
		}
		for _, ev := range evals {
			byDriver[ev.DriverID] = append(byDriver[ev.DriverID], ev)
		}
	}

	items := make([]DriverListItem, 0, len(drivers))
	for _, d := range drivers {
		item := DriverListItem{Driver: d}
		if evals := byDriver[d.ID]; len(evals) > 0 {
			last := evals[0]
			item.EvaluationsCount = len(evals)
			item.LastEvaluation = &last
			item.LastScore = last.Score
		}
		items = append(items, item)
	}
	return DriverList{Drivers: items, Page: info}, nil
}

func (svc *service) DriverDetail(ctx context.Context, driverID string) (DriverDetail, error) {
	d, err := svc.drvSvc.GetByID(ctx, driverID)
	if err != nil {
		return DriverDetail{}, err
	}
	evals, err := svc.Query(ctx, QueryFilter{DriverIDs: []string{d.ID}})
	if err != nil {
		return DriverDetail{}, errors.Wrap(err, "querying driver evaluations")
	}

	det := DriverDetail{
		Driver:      d,
		Evaluations: evals,
		Count:       len(evals),
		ByType:      make(map[string][]Evaluation),
	}
	var sum float64
	scores := 0
	for _, ev := range evals {
		det.ByType[ev.TypeName] = append(det.ByType[ev.TypeName], ev)
		if ev.Score != nil {
			sum += *ev.Score
			scores++
		}
	}
	if len(evals) > 0 {
		last := evals[0]
		det.LastEvaluation = &last
	}
	if scores > 0 {
		mean := sum / float64(scores)
		det.MeanScore = &mean
	}
	return det, nil
}
