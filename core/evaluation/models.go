// Package evaluation manages the evaluators, the evaluation types with their criteria,
// and the scored evaluation sessions of the drivers.
package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/driver"
)

// Provisioned evaluator default names
const (
	DefaultLastName  = "Nom"
	DefaultFirstName = "Prénom"
)

// Evaluator is the person performing evaluations. UserID is empty when no account is linked.
type Evaluator struct {
	ID           string    `json:"id"`
	LastName     string    `json:"last_name"`
	FirstName    string    `json:"first_name"`
	UserID       string    `json:"user_id"`
	DepartmentID string    `json:"department_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e Evaluator) FullName() string {
	return e.FirstName + " " + e.LastName
}

type EvaluatorInput struct {
	LastName     string `json:"last_name" validate:"required,max=255"`
	FirstName    string `json:"first_name" validate:"required,max=255"`
	UserID       string `json:"user_id"`
	DepartmentID string `json:"department_id"`
}

// Validate cleans and checks in. `exclude` holds the evaluator being updated.
func (in *EvaluatorInput) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface, exclude ...Evaluator) error {
	in.LastName = core.CleanString(in.LastName)
	in.FirstName = core.CleanString(in.FirstName)
	in.UserID = core.CleanString(in.UserID)
	if err := validate.Struct(in); err != nil {
		return err
	}
	return svc.CheckEvaluatorUser(ctx, in.UserID, in.FirstName+" "+in.LastName, exclude...)
}

type EvaluationType struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Description  string `json:"description"`
}

type TypeInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Abbreviation string `json:"abbreviation" validate:"required,max=10"`
	Description  string `json:"description" validate:"required"`
}

func (in *TypeInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.Abbreviation = core.CleanString(in.Abbreviation)
	in.Description = core.CleanString(in.Description)
	return validate.Struct(in)
}

// Criterion is one scored item of an EvaluationType.
// OrderNumber is assigned once at creation, globally increasing.
type Criterion struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OrderNumber int       `json:"order_number"`
	TypeID      string    `json:"type_id"`
	MinValue    int       `json:"min_value"`
	MaxValue    int       `json:"max_value"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

func (c Criterion) InRange(v int) bool {
	return v >= c.MinValue && v <= c.MaxValue
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s (%d-%d)", c.Name, c.MinValue, c.MaxValue)
}

type CriterionInput struct {
	Name     string `json:"name" validate:"required,max=255"`
	TypeID   string `json:"type_id" validate:"required"`
	MinValue int    `json:"min_value" validate:"min=0"`
	MaxValue int    `json:"max_value" validate:"min=0"`
	Active   *bool  `json:"active"`
}

func (in *CriterionInput) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	in.Name = core.CleanString(in.Name)
	in.TypeID = core.CleanString(in.TypeID)
	if err := validate.Struct(in); err != nil {
		return err
	}
	if in.MinValue >= in.MaxValue {
		return core.NewFieldError("max_value", "min_value must be lower than max_value")
	}
	if _, err := svc.GetType(ctx, in.TypeID); err != nil {
		if core.IsNotFound(err) {
			return core.NewFieldError("type_id", "select a valid evaluation type")
		}
		return err
	}
	return nil
}

// Note is the value given to a Criterion during an Evaluation.
// Criterion is loaded along with the note by the repositories.
type Note struct {
	ID           string     `json:"id"`
	EvaluationID string     `json:"evaluation_id"`
	CriterionID  string     `json:"criterion_id"`
	Value        *int       `json:"value"`
	CreatedAt    time.Time  `json:"created_at"`
	Criterion    *Criterion `json:"criterion,omitempty"`
}

type NoteInput struct {
	EvaluationID string `json:"evaluation_id" validate:"required"`
	CriterionID  string `json:"criterion_id" validate:"required"`
	Value        *int   `json:"value"`
}

// Evaluation groups the notes given to a driver by an evaluator on a given date.
// The *Name fields are read-only and filled by the repositories.
type Evaluation struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	EvaluatorID   string    `json:"evaluator_id"`
	EvaluatorName string    `json:"evaluator_name"`
	DriverID      string    `json:"driver_id"`
	DriverName    string    `json:"driver_name"`
	TypeID        string    `json:"type_id"`
	TypeName      string    `json:"type_name"`
	CreatedAt     time.Time `json:"created_at"`
	Notes         []Note    `json:"notes"`
	Score         *float64  `json:"score"`
}

// CalculateScore returns the percentage of the maximum reached by the notes which have
// a value and an active criterion, rounded to one decimal. Nil when there is nothing to score.
func (ev Evaluation) CalculateScore() *float64 {
	var total, max int
	scored := 0
	for _, n := range ev.Notes {
		if n.Value == nil || n.Criterion == nil || !n.Criterion.Active {
			continue
		}
		total += *n.Value
		max += n.Criterion.MaxValue
		scored++
	}
	if scored == 0 || max == 0 {
		return nil
	}
	score := core.Round(float64(total)/float64(max)*100, 1)
	return &score
}

// withScore returns ev with its Score set.
func (ev Evaluation) withScore() Evaluation {
	ev.Score = ev.CalculateScore()
	return ev
}

// Completion status values
const (
	CompletionNone       = "none"
	CompletionComplete   = "complete"
	CompletionIncomplete = "incomplete"
)

type Completion struct {
	Status string `json:"status"`
	Given  int    `json:"given"`
	Total  int    `json:"total"`
}

func (c Completion) String() string {
	switch c.Status {
	case CompletionNone:
		return "no active criterion"
	case CompletionComplete:
		return fmt.Sprintf("complete (%d/%d)", c.Given, c.Total)
	}
	return fmt.Sprintf("incomplete (%d/%d)", c.Given, c.Total)
}

// CompletionStatus compares the notes having a value with the `activeCriteria` count of the evaluation type.
func (ev Evaluation) CompletionStatus(activeCriteria int) Completion {
	given := 0
	for _, n := range ev.Notes {
		if n.Value != nil {
			given++
		}
	}
	c := Completion{Given: given, Total: activeCriteria}
	switch {
	case activeCriteria == 0:
		c.Status = CompletionNone
	case given == activeCriteria:
		c.Status = CompletionComplete
	default:
		c.Status = CompletionIncomplete
	}
	return c
}

// EvaluationInput is used by the back-office CRUD. Submissions go through SubmitInput.
type EvaluationInput struct {
	Date        time.Time `json:"date" validate:"required"`
	EvaluatorID string    `json:"evaluator_id" validate:"required"`
	DriverID    string    `json:"driver_id" validate:"required"`
	TypeID      string    `json:"type_id" validate:"required"`
}

// SubmitInput holds one raw value per active criterion of the type, keyed by criterion ID.
type SubmitInput struct {
	DriverID    string                 `json:"driver_id" validate:"required"`
	EvaluatorID string                 `json:"evaluator_id"`
	TypeID      string                 `json:"type_id" validate:"required"`
	Notes       map[string]interface{} `json:"notes"`
}

type CriterionFilter struct {
	TypeID string
	Active *bool
}

type QueryFilter struct {
	DriverIDs   []string
	EvaluatorID string
	TypeID      string
	// Since keeps evaluations dated on or after it
	Since time.Time
	// Limit caps the number of returned evaluations when > 0
	Limit int
}

// NoteCheck is the result of a single note validation.
type NoteCheck struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// EvaluationDetail is an evaluation with its notes ordered by criterion order number and their stats.
type EvaluationDetail struct {
	Evaluation
	Mean          float64    `json:"mean"`
	TotalCriteria int        `json:"total_criteria"`
	GivenNotes    int        `json:"given_notes"`
	Completion    Completion `json:"completion"`
}

// DriverListItem is a driver along with its evaluation summary.
type DriverListItem struct {
	driver.Driver
	EvaluationsCount int         `json:"evaluations_count"`
	LastEvaluation   *Evaluation `json:"last_evaluation"`
	LastScore        *float64    `json:"last_score"`
}

type DriverList struct {
	Drivers []DriverListItem `json:"drivers"`
	Page    core.PageInfo    `json:"page"`
}

// DriverDetail holds a driver and its evaluation history, most recent first.
type DriverDetail struct {
	Driver         driver.Driver           `json:"driver"`
	Evaluations    []Evaluation            `json:"evaluations"`
	Count          int                     `json:"count"`
	LastEvaluation *Evaluation             `json:"last_evaluation"`
	MeanScore      *float64                `json:"mean_score"`
	ByType         map[string][]Evaluation `json:"evaluations_by_type"`
}
