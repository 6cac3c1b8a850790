package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/fleetops/suivi/core/evaluation"
)

// Unique constraints of the evaluation tables
const (
	uniqueSession   = "evaluations_unique_session"
	uniqueCriterion = "notes_unique_criterion"
)

const (
	evaluatorColumns = "id, last_name, first_name, user_id, department_id, created_at"
	typeColumns      = "id, name, abbreviation, description"
	criterionColumns = "cr.id, cr.name, cr.order_number, cr.type_id, cr.min_value, cr.max_value, cr.active, cr.created_at"
	evaluationSelect = `
		SELECT ev.id, ev.date, ev.evaluator_id, e.first_name || ' ' || e.last_name AS evaluator_name,
		    ev.driver_id, d.last_name || ' ' || d.first_name AS driver_name, ev.type_id, t.name AS type_name, ev.created_at
		FROM evaluations ev
		JOIN evaluators e ON e.id = ev.evaluator_id
		JOIN drivers d ON d.id = ev.driver_id
		JOIN evaluation_types t ON t.id = ev.type_id`
	noteSelect = `
		SELECT n.id, n.evaluation_id, n.criterion_id, n.value, n.created_at, ` + criterionColumns + `
		FROM notes n
		JOIN criteria cr ON cr.id = n.criterion_id`
)

type evaluatorRow struct {
	ID           string      `db:"id"`
	LastName     string      `db:"last_name"`
	FirstName    string      `db:"first_name"`
	UserID       null.String `db:"user_id"`
	DepartmentID null.String `db:"department_id"`
	CreatedAt    time.Time   `db:"created_at"`
}

func (r evaluatorRow) evaluator() evaluation.Evaluator {
	return evaluation.Evaluator{
		ID:           r.ID,
		LastName:     r.LastName,
		FirstName:    r.FirstName,
		UserID:       r.UserID.String,
		DepartmentID: r.DepartmentID.String,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

type typeRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Abbreviation string `db:"abbreviation"`
	Description  string `db:"description"`
}

func (r typeRow) evaluationType() evaluation.EvaluationType {
	return evaluation.EvaluationType(r)
}

type criterionRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	OrderNumber int       `db:"order_number"`
	TypeID      string    `db:"type_id"`
	MinValue    int       `db:"min_value"`
	MaxValue    int       `db:"max_value"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r criterionRow) criterion() evaluation.Criterion {
	return evaluation.Criterion{
		ID:          r.ID,
		Name:        r.Name,
		OrderNumber: r.OrderNumber,
		TypeID:      r.TypeID,
		MinValue:    r.MinValue,
		MaxValue:    r.MaxValue,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type evaluationRow struct {
	ID            string    `db:"id"`
	Date          time.Time `db:"date"`
	EvaluatorID   string    `db:"evaluator_id"`
	EvaluatorName string    `db:"evaluator_name"`
	DriverID      string    `db:"driver_id"`
	DriverName    string    `db:"driver_name"`
	TypeID        string    `db:"type_id"`
	TypeName      string    `db:"type_name"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r evaluationRow) evaluation() evaluation.Evaluation {
	return evaluation.Evaluation{
		ID:            r.ID,
		Date:          r.Date.UTC(),
		EvaluatorID:   r.EvaluatorID,
		EvaluatorName: r.EvaluatorName,
		DriverID:      r.DriverID,
		DriverName:    r.DriverName,
		TypeID:        r.TypeID,
		TypeName:      r.TypeName,
		CreatedAt:     r.CreatedAt.UTC(),
		Notes:         []evaluation.Note{},
	}
}

// noteRow is scanned positionally from noteSelect: the note and criterion columns share names.
type noteRow struct {
	NoteID       string
	EvaluationID string
	CriterionID  string
	Value        null.Int
	NoteDate     time.Time
	Criterion    criterionRow
}

func (r *noteRow) scan(sc interface{ Scan(...interface{}) error }) error {
	return sc.Scan(&r.NoteID, &r.EvaluationID, &r.CriterionID, &r.Value, &r.NoteDate,
		&r.Criterion.ID, &r.Criterion.Name, &r.Criterion.OrderNumber, &r.Criterion.TypeID,
		&r.Criterion.MinValue, &r.Criterion.MaxValue, &r.Criterion.Active, &r.Criterion.CreatedAt)
}

func (r noteRow) note() evaluation.Note {
	crit := r.Criterion.criterion()
	return evaluation.Note{
		ID:           r.NoteID,
		EvaluationID: r.EvaluationID,
		CriterionID:  r.CriterionID,
		Value:        intPtr(r.Value),
		CreatedAt:    r.NoteDate.UTC(),
		Criterion:    &crit,
	}
}

type evaluationRepository struct {
	db *sqlx.DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *sqlx.DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

// Evaluators

func (repo *evaluationRepository) CreateEvaluator(ctx context.Context, ev evaluation.Evaluator) (evaluation.Evaluator, error) {
	ev.ID = newID()
	_, err := repo.db.ExecContext(ctx, "INSERT INTO evaluators ("+evaluatorColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		ev.ID, ev.LastName, ev.FirstName, nullString(ev.UserID), nullString(ev.DepartmentID), ev.CreatedAt)
	if err != nil {
		if uniqueViolated(err, "evaluators_user_id_key") {
			return evaluation.Evaluator{}, evaluation.ErrEvaluatorUserTaken
		}
		return evaluation.Evaluator{}, errors.Wrap(err, "inserting evaluator")
	}
	return ev, nil
}

func (repo *evaluationRepository) getEvaluator(ctx context.Context, cond, arg string) (evaluation.Evaluator, error) {
	var row evaluatorRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+evaluatorColumns+" FROM evaluators WHERE "+cond, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return evaluation.Evaluator{}, evaluation.ErrEvaluatorNotFound
		}
		return evaluation.Evaluator{}, errors.Wrap(err, "getting evaluator")
	}
	return row.evaluator(), nil
}

func (repo *evaluationRepository) GetEvaluator(ctx context.Context, id string) (evaluation.Evaluator, error) {
	return repo.getEvaluator(ctx, "id::text = $1", id)
}

func (repo *evaluationRepository) GetEvaluatorByUserID(ctx context.Context, userID string) (evaluation.Evaluator, error) {
	return repo.getEvaluator(ctx, "user_id::text = $1", userID)
}

func (repo *evaluationRepository) QueryEvaluators(ctx context.Context) ([]evaluation.Evaluator, error) {
	var rows []evaluatorRow
	q := "SELECT " + evaluatorColumns + " FROM evaluators ORDER BY lower(last_name), lower(first_name)"
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying evaluators")
	}
	evs := make([]evaluation.Evaluator, 0, len(rows))
	for _, r := range rows {
		evs = append(evs, r.evaluator())
	}
	return evs, nil
}

func (repo *evaluationRepository) UpdateEvaluator(ctx context.Context, ev evaluation.Evaluator) (evaluation.Evaluator, error) {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE evaluators SET last_name = $2, first_name = $3, user_id = $4, department_id = $5 WHERE id = $1",
		ev.ID, ev.LastName, ev.FirstName, nullString(ev.UserID), nullString(ev.DepartmentID))
	if err != nil {
		if uniqueViolated(err, "evaluators_user_id_key") {
			return evaluation.Evaluator{}, evaluation.ErrEvaluatorUserTaken
		}
		return evaluation.Evaluator{}, errors.Wrap(err, "updating evaluator")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.Evaluator{}, evaluation.ErrEvaluatorNotFound
	}
	return ev, nil
}

func (repo *evaluationRepository) DeleteEvaluator(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM evaluators WHERE id::text = $1", id)
	return deleted(res, err, evaluation.ErrEvaluatorNotFound, "evaluator")
}

// Types

func (repo *evaluationRepository) CreateType(ctx context.Context, typ evaluation.EvaluationType) (evaluation.EvaluationType, error) {
	typ.ID = newID()
	_, err := repo.db.ExecContext(ctx, "INSERT INTO evaluation_types ("+typeColumns+") VALUES ($1, $2, $3, $4)",
		typ.ID, typ.Name, typ.Abbreviation, typ.Description)
	return typ, errors.Wrap(err, "inserting evaluation type")
}

func (repo *evaluationRepository) GetType(ctx context.Context, id string) (evaluation.EvaluationType, error) {
	var row typeRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+typeColumns+" FROM evaluation_types WHERE id::text = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return evaluation.EvaluationType{}, evaluation.ErrTypeNotFound
		}
		return evaluation.EvaluationType{}, errors.Wrap(err, "getting evaluation type")
	}
	return row.evaluationType(), nil
}

func (repo *evaluationRepository) QueryTypes(ctx context.Context) ([]evaluation.EvaluationType, error) {
	var rows []typeRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT "+typeColumns+" FROM evaluation_types ORDER BY lower(name)"); err != nil {
		return nil, errors.Wrap(err, "querying evaluation types")
	}
	types := make([]evaluation.EvaluationType, 0, len(rows))
	for _, r := range rows {
		types = append(types, r.evaluationType())
	}
	return types, nil
}

func (repo *evaluationRepository) UpdateType(ctx context.Context, typ evaluation.EvaluationType) (evaluation.EvaluationType, error) {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE evaluation_types SET name = $2, abbreviation = $3, description = $4 WHERE id = $1",
		typ.ID, typ.Name, typ.Abbreviation, typ.Description)
	if err != nil {
		return evaluation.EvaluationType{}, errors.Wrap(err, "updating evaluation type")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.EvaluationType{}, evaluation.ErrTypeNotFound
	}
	return typ, nil
}

func (repo *evaluationRepository) DeleteType(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM evaluation_types WHERE id::text = $1", id)
	return deleted(res, err, evaluation.ErrTypeNotFound, "evaluation type")
}

// Criteria

func (repo *evaluationRepository) CreateCriterion(ctx context.Context, crit evaluation.Criterion) (evaluation.Criterion, error) {
	crit.ID = newID()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		// concurrent creations would otherwise read the same maximum
		if _, err := tx.ExecContext(ctx, "LOCK TABLE criteria IN EXCLUSIVE MODE"); err != nil {
			return errors.Wrap(err, "locking criteria")
		}
		if err := tx.GetContext(ctx, &crit.OrderNumber, "SELECT COALESCE(MAX(order_number), 0) + 1 FROM criteria"); err != nil {
			return errors.Wrap(err, "computing order number")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO criteria (id, name, order_number, type_id, min_value, max_value, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			crit.ID, crit.Name, crit.OrderNumber, crit.TypeID, crit.MinValue, crit.MaxValue, crit.Active, crit.CreatedAt)
		return errors.Wrap(err, "inserting criterion")
	})
	if err != nil {
		return evaluation.Criterion{}, err
	}
	return crit, nil
}

func (repo *evaluationRepository) GetCriterion(ctx context.Context, id string) (evaluation.Criterion, error) {
	var row criterionRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+criterionColumns+" FROM criteria cr WHERE cr.id::text = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return evaluation.Criterion{}, evaluation.ErrCriterionNotFound
		}
		return evaluation.Criterion{}, errors.Wrap(err, "getting criterion")
	}
	return row.criterion(), nil
}

func (repo *evaluationRepository) QueryCriteria(ctx context.Context, filter evaluation.CriterionFilter) ([]evaluation.Criterion, error) {
	var conds conditions
	if filter.TypeID != "" {
		conds.add("cr.type_id::text = ?", filter.TypeID)
	}
	if filter.Active != nil {
		conds.add("cr.active = ?", *filter.Active)
	}
	var rows []criterionRow
	q := "SELECT " + criterionColumns + " FROM criteria cr" + conds.where() + " ORDER BY cr.order_number"
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying criteria")
	}
	crits := make([]evaluation.Criterion, 0, len(rows))
	for _, r := range rows {
		crits = append(crits, r.criterion())
	}
	return crits, nil
}

func (repo *evaluationRepository) UpdateCriterion(ctx context.Context, crit evaluation.Criterion) (evaluation.Criterion, error) {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE criteria SET name = $2, type_id = $3, min_value = $4, max_value = $5, active = $6 WHERE id = $1",
		crit.ID, crit.Name, crit.TypeID, crit.MinValue, crit.MaxValue, crit.Active)
	if err != nil {
		return evaluation.Criterion{}, errors.Wrap(err, "updating criterion")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.Criterion{}, evaluation.ErrCriterionNotFound
	}
	return repo.GetCriterion(ctx, crit.ID)
}

func (repo *evaluationRepository) DeleteCriterion(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM criteria WHERE id::text = $1", id)
	return deleted(res, err, evaluation.ErrCriterionNotFound, "criterion")
}

// Evaluations

func duplicateError(err error, what string) error {
	switch {
	case uniqueViolated(err, uniqueSession):
		return evaluation.ErrDuplicateEvaluation
	case uniqueViolated(err, uniqueCriterion):
		return evaluation.ErrDuplicateNote
	}
	return errors.Wrap(err, what)
}

func (repo *evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	ev.ID = newID()
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evaluations (id, date, evaluator_id, driver_id, type_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			ev.ID, ev.Date, ev.EvaluatorID, ev.DriverID, ev.TypeID, ev.CreatedAt)
		if err != nil {
			return duplicateError(err, "inserting evaluation")
		}
		for _, n := range ev.Notes {
			created := n.CreatedAt
			if created.IsZero() {
				created = ev.CreatedAt
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO notes (id, evaluation_id, criterion_id, value, created_at) VALUES ($1, $2, $3, $4, $5)`,
				newID(), ev.ID, n.CriterionID, null.IntFromPtr(n.Value), created)
			if err != nil {
				return duplicateError(err, "inserting note")
			}
		}
		return nil
	})
	if err != nil {
		return evaluation.Evaluation{}, err
	}
	return repo.GetEvaluation(ctx, ev.ID)
}

// loadNotes attaches to each evaluation its notes, ordered by criterion order number.
func (repo *evaluationRepository) loadNotes(ctx context.Context, evs []evaluation.Evaluation) error {
	if len(evs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(evs))
	index := make(map[string]int, len(evs))
	for i, ev := range evs {
		ids = append(ids, ev.ID)
		index[ev.ID] = i
	}

	rows, err := repo.db.QueryxContext(ctx, noteSelect+" WHERE n.evaluation_id::text = ANY($1) ORDER BY cr.order_number", pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "querying notes")
	}
	defer rows.Close()
	for rows.Next() {
		var r noteRow
		if err := r.scan(rows); err != nil {
			return errors.Wrap(err, "scanning note")
		}
		i := index[r.EvaluationID]
		evs[i].Notes = append(evs[i].Notes, r.note())
	}
	return errors.Wrap(rows.Err(), "iterating notes")
}

func (repo *evaluationRepository) GetEvaluation(ctx context.Context, id string) (evaluation.Evaluation, error) {
	var row evaluationRow
	if err := repo.db.GetContext(ctx, &row, evaluationSelect+" WHERE ev.id::text = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return evaluation.Evaluation{}, evaluation.ErrNotFound
		}
		return evaluation.Evaluation{}, errors.Wrap(err, "getting evaluation")
	}
	evs := []evaluation.Evaluation{row.evaluation()}
	if err := repo.loadNotes(ctx, evs); err != nil {
		return evaluation.Evaluation{}, err
	}
	return evs[0], nil
}

func (repo *evaluationRepository) QueryEvaluations(ctx context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	var conds conditions
	if len(filter.DriverIDs) > 0 {
		conds.add("ev.driver_id::text = ANY(?)", pq.Array(filter.DriverIDs))
	}
	if filter.EvaluatorID != "" {
		conds.add("ev.evaluator_id::text = ?", filter.EvaluatorID)
	}
	if filter.TypeID != "" {
		conds.add("ev.type_id::text = ?", filter.TypeID)
	}
	if !filter.Since.IsZero() {
		conds.add("ev.date >= ?", filter.Since)
	}
	q := evaluationSelect + conds.where() + " ORDER BY ev.date DESC, ev.created_at DESC"
	q += conds.limit(filter.Limit)

	var rows []evaluationRow
	if err := repo.db.SelectContext(ctx, &rows, q, conds.args...); err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	evs := make([]evaluation.Evaluation, 0, len(rows))
	for _, r := range rows {
		evs = append(evs, r.evaluation())
	}
	if err := repo.loadNotes(ctx, evs); err != nil {
		return nil, err
	}
	return evs, nil
}

func (repo *evaluationRepository) UpdateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	res, err := repo.db.ExecContext(ctx,
		"UPDATE evaluations SET date = $2, evaluator_id = $3, driver_id = $4, type_id = $5 WHERE id = $1",
		ev.ID, ev.Date, ev.EvaluatorID, ev.DriverID, ev.TypeID)
	if err != nil {
		return evaluation.Evaluation{}, duplicateError(err, "updating evaluation")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	return repo.GetEvaluation(ctx, ev.ID)
}

func (repo *evaluationRepository) DeleteEvaluation(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM evaluations WHERE id::text = $1", id)
	return deleted(res, err, evaluation.ErrNotFound, "evaluation")
}

// Notes

func (repo *evaluationRepository) CreateNote(ctx context.Context, n evaluation.Note) (evaluation.Note, error) {
	n.ID = newID()
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO notes (id, evaluation_id, criterion_id, value, created_at) VALUES ($1, $2, $3, $4, $5)",
		n.ID, n.EvaluationID, n.CriterionID, null.IntFromPtr(n.Value), n.CreatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == foreignKeyViolation {
			return evaluation.Note{}, evaluation.ErrNotFound
		}
		return evaluation.Note{}, duplicateError(err, "inserting note")
	}
	return repo.GetNote(ctx, n.ID)
}

func (repo *evaluationRepository) GetNote(ctx context.Context, id string) (evaluation.Note, error) {
	var r noteRow
	if err := r.scan(repo.db.QueryRowxContext(ctx, noteSelect+" WHERE n.id::text = $1", id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return evaluation.Note{}, evaluation.ErrNoteNotFound
		}
		return evaluation.Note{}, errors.Wrap(err, "getting note")
	}
	return r.note(), nil
}

func (repo *evaluationRepository) UpdateNote(ctx context.Context, n evaluation.Note) (evaluation.Note, error) {
	res, err := repo.db.ExecContext(ctx, "UPDATE notes SET value = $2 WHERE id = $1", n.ID, null.IntFromPtr(n.Value))
	if err != nil {
		return evaluation.Note{}, errors.Wrap(err, "updating note")
	}
	if cnt, _ := res.RowsAffected(); cnt == 0 {
		return evaluation.Note{}, evaluation.ErrNoteNotFound
	}
	return repo.GetNote(ctx, n.ID)
}

func (repo *evaluationRepository) DeleteNote(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM notes WHERE id::text = $1", id)
	return deleted(res, err, evaluation.ErrNoteNotFound, "note")
}
