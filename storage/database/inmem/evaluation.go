package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/fleetops/suivi/core/evaluation"
)

type evaluationRepository struct {
	db *DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

// Evaluators

func (repo *evaluationRepository) CreateEvaluator(_ context.Context, ev evaluation.Evaluator) (evaluation.Evaluator, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ev.ID = newID()
	repo.db.evaluators[ev.ID] = ev
	return ev, nil
}

func (repo *evaluationRepository) GetEvaluator(_ context.Context, id string) (evaluation.Evaluator, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ev, ok := repo.db.evaluators[id]; ok {
		return ev, nil
	}
	return evaluation.Evaluator{}, evaluation.ErrEvaluatorNotFound
}

func (repo *evaluationRepository) GetEvaluatorByUserID(_ context.Context, userID string) (evaluation.Evaluator, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, ev := range repo.db.evaluators {
		if userID != "" && ev.UserID == userID {
			return ev, nil
		}
	}
	return evaluation.Evaluator{}, evaluation.ErrEvaluatorNotFound
}

func (repo *evaluationRepository) QueryEvaluators(_ context.Context) ([]evaluation.Evaluator, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	evs := make([]evaluation.Evaluator, 0, len(repo.db.evaluators))
	for _, ev := range repo.db.evaluators {
		evs = append(evs, ev)
	}
	sort.Slice(evs, func(i, j int) bool {
		if !strings.EqualFold(evs[i].LastName, evs[j].LastName) {
			return lessFold(evs[i].LastName, evs[j].LastName)
		}
		return lessFold(evs[i].FirstName, evs[j].FirstName)
	})
	return evs, nil
}

func (repo *evaluationRepository) UpdateEvaluator(_ context.Context, ev evaluation.Evaluator) (evaluation.Evaluator, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.evaluators[ev.ID]; !ok {
		return evaluation.Evaluator{}, evaluation.ErrEvaluatorNotFound
	}
	repo.db.evaluators[ev.ID] = ev
	return ev, nil
}

func (repo *evaluationRepository) DeleteEvaluator(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.evaluators[id]; !ok {
		return evaluation.ErrEvaluatorNotFound
	}
	repo.db.deleteEvaluatorCascade(id)
	return nil
}

// Types

func (repo *evaluationRepository) CreateType(_ context.Context, typ evaluation.EvaluationType) (evaluation.EvaluationType, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	typ.ID = newID()
	repo.db.types[typ.ID] = typ
	return typ, nil
}

func (repo *evaluationRepository) GetType(_ context.Context, id string) (evaluation.EvaluationType, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if typ, ok := repo.db.types[id]; ok {
		return typ, nil
	}
	return evaluation.EvaluationType{}, evaluation.ErrTypeNotFound
}

func (repo *evaluationRepository) QueryTypes(_ context.Context) ([]evaluation.EvaluationType, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	types := make([]evaluation.EvaluationType, 0, len(repo.db.types))
	for _, typ := range repo.db.types {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return lessFold(types[i].Name, types[j].Name) })
	return types, nil
}

func (repo *evaluationRepository) UpdateType(_ context.Context, typ evaluation.EvaluationType) (evaluation.EvaluationType, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.types[typ.ID]; !ok {
		return evaluation.EvaluationType{}, evaluation.ErrTypeNotFound
	}
	repo.db.types[typ.ID] = typ
	return typ, nil
}

func (repo *evaluationRepository) DeleteType(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.types[id]; !ok {
		return evaluation.ErrTypeNotFound
	}
	repo.db.deleteTypeCascade(id)
	return nil
}

// Criteria

func (repo *evaluationRepository) CreateCriterion(_ context.Context, crit evaluation.Criterion) (evaluation.Criterion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.lastOrderNumber++
	crit.ID = newID()
	crit.OrderNumber = repo.db.lastOrderNumber
	repo.db.criteria[crit.ID] = crit
	return crit, nil
}

func (repo *evaluationRepository) GetCriterion(_ context.Context, id string) (evaluation.Criterion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if crit, ok := repo.db.criteria[id]; ok {
		return crit, nil
	}
	return evaluation.Criterion{}, evaluation.ErrCriterionNotFound
}

func (repo *evaluationRepository) QueryCriteria(_ context.Context, filter evaluation.CriterionFilter) ([]evaluation.Criterion, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	crits := make([]evaluation.Criterion, 0)
	for _, crit := range repo.db.criteria {
		if filter.TypeID != "" && crit.TypeID != filter.TypeID {
			continue
		}
		if filter.Active != nil && crit.Active != *filter.Active {
			continue
		}
		crits = append(crits, crit)
	}
	sort.Slice(crits, func(i, j int) bool { return crits[i].OrderNumber < crits[j].OrderNumber })
	return crits, nil
}

func (repo *evaluationRepository) UpdateCriterion(_ context.Context, crit evaluation.Criterion) (evaluation.Criterion, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.criteria[crit.ID]
	if !ok {
		return evaluation.Criterion{}, evaluation.ErrCriterionNotFound
	}
	crit.OrderNumber = old.OrderNumber
	repo.db.criteria[crit.ID] = crit
	return crit, nil
}

func (repo *evaluationRepository) DeleteCriterion(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.criteria[id]; !ok {
		return evaluation.ErrCriterionNotFound
	}
	repo.db.deleteCriterionCascade(id)
	return nil
}

// Evaluations

func (repo *evaluationRepository) isDuplicate(ev evaluation.Evaluation) bool {
	for _, other := range repo.db.evaluations {
		if other.ID != ev.ID && other.DriverID == ev.DriverID && other.EvaluatorID == ev.EvaluatorID &&
			other.TypeID == ev.TypeID && other.Date.Equal(ev.Date) {
			return true
		}
	}
	return false
}

// load fills the read-only fields and the notes of ev, ordered by criterion order number. Callers hold a lock.
func (repo *evaluationRepository) load(ev evaluation.Evaluation) evaluation.Evaluation {
	if e, ok := repo.db.evaluators[ev.EvaluatorID]; ok {
		ev.EvaluatorName = e.FullName()
	}
	if d, ok := repo.db.drivers[ev.DriverID]; ok {
		ev.DriverName = d.FullName()
	}
	ev.TypeName = repo.db.types[ev.TypeID].Name

	ev.Notes = make([]evaluation.Note, 0)
	for _, n := range repo.db.notes {
		if n.EvaluationID == ev.ID {
			ev.Notes = append(ev.Notes, repo.loadNote(n))
		}
	}
	sort.Slice(ev.Notes, func(i, j int) bool {
		return ev.Notes[i].Criterion.OrderNumber < ev.Notes[j].Criterion.OrderNumber
	})
	return ev
}

func (repo *evaluationRepository) loadNote(n evaluation.Note) evaluation.Note {
	crit := repo.db.criteria[n.CriterionID]
	n.Criterion = &crit
	if n.Value != nil {
		v := *n.Value
		n.Value = &v
	}
	return n
}

func storedEvaluation(ev evaluation.Evaluation) evaluation.Evaluation {
	ev.EvaluatorName, ev.DriverName, ev.TypeName = "", "", ""
	ev.Notes = nil
	ev.Score = nil
	return ev
}

func storedNote(n evaluation.Note) evaluation.Note {
	n.Criterion = nil
	if n.Value != nil {
		v := *n.Value
		n.Value = &v
	}
	return n
}

func (repo *evaluationRepository) CreateEvaluation(_ context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	ev.ID = newID()
	if repo.isDuplicate(ev) {
		return evaluation.Evaluation{}, evaluation.ErrDuplicateEvaluation
	}
	seen := make(map[string]struct{}, len(ev.Notes))
	for _, n := range ev.Notes {
		if _, ok := seen[n.CriterionID]; ok {
			return evaluation.Evaluation{}, evaluation.ErrDuplicateNote
		}
		seen[n.CriterionID] = struct{}{}
	}

	repo.db.evaluations[ev.ID] = storedEvaluation(ev)
	for _, n := range ev.Notes {
		n.ID = newID()
		n.EvaluationID = ev.ID
		if n.CreatedAt.IsZero() {
			n.CreatedAt = ev.CreatedAt
		}
		repo.db.notes[n.ID] = storedNote(n)
	}
	return repo.load(repo.db.evaluations[ev.ID]), nil
}

func (repo *evaluationRepository) GetEvaluation(_ context.Context, id string) (evaluation.Evaluation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ev, ok := repo.db.evaluations[id]; ok {
		return repo.load(ev), nil
	}
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func matchEvaluation(ev evaluation.Evaluation, filter evaluation.QueryFilter) bool {
	if len(filter.DriverIDs) > 0 {
		found := false
		for _, id := range filter.DriverIDs {
			if ev.DriverID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.EvaluatorID != "" && ev.EvaluatorID != filter.EvaluatorID {
		return false
	}
	if filter.TypeID != "" && ev.TypeID != filter.TypeID {
		return false
	}
	return filter.Since.IsZero() || !ev.Date.Before(filter.Since)
}

func (repo *evaluationRepository) QueryEvaluations(_ context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	evs := make([]evaluation.Evaluation, 0)
	for _, ev := range repo.db.evaluations {
		if matchEvaluation(ev, filter) {
			evs = append(evs, ev)
		}
	}
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Date.Equal(evs[j].Date) {
			return evs[i].Date.After(evs[j].Date)
		}
		return evs[i].CreatedAt.After(evs[j].CreatedAt)
	})
	if filter.Limit > 0 && len(evs) > filter.Limit {
		evs = evs[:filter.Limit]
	}
	for i := range evs {
		evs[i] = repo.load(evs[i])
	}
	return evs, nil
}

func (repo *evaluationRepository) UpdateEvaluation(_ context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.evaluations[ev.ID]; !ok {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	if repo.isDuplicate(ev) {
		return evaluation.Evaluation{}, evaluation.ErrDuplicateEvaluation
	}
	repo.db.evaluations[ev.ID] = storedEvaluation(ev)
	return repo.load(repo.db.evaluations[ev.ID]), nil
}

func (repo *evaluationRepository) DeleteEvaluation(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.evaluations[id]; !ok {
		return evaluation.ErrNotFound
	}
	repo.db.deleteEvaluationCascade(id)
	return nil
}

// Notes

func (repo *evaluationRepository) CreateNote(_ context.Context, n evaluation.Note) (evaluation.Note, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.evaluations[n.EvaluationID]; !ok {
		return evaluation.Note{}, evaluation.ErrNotFound
	}
	if _, ok := repo.db.criteria[n.CriterionID]; !ok {
		return evaluation.Note{}, evaluation.ErrCriterionNotFound
	}
	for _, other := range repo.db.notes {
		if other.EvaluationID == n.EvaluationID && other.CriterionID == n.CriterionID {
			return evaluation.Note{}, evaluation.ErrDuplicateNote
		}
	}
	n.ID = newID()
	repo.db.notes[n.ID] = storedNote(n)
	return repo.loadNote(repo.db.notes[n.ID]), nil
}

func (repo *evaluationRepository) GetNote(_ context.Context, id string) (evaluation.Note, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if n, ok := repo.db.notes[id]; ok {
		return repo.loadNote(n), nil
	}
	return evaluation.Note{}, evaluation.ErrNoteNotFound
}

func (repo *evaluationRepository) UpdateNote(_ context.Context, n evaluation.Note) (evaluation.Note, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	old, ok := repo.db.notes[n.ID]
	if !ok {
		return evaluation.Note{}, evaluation.ErrNoteNotFound
	}
	old.Value = n.Value
	repo.db.notes[n.ID] = storedNote(old)
	return repo.loadNote(repo.db.notes[n.ID]), nil
}

func (repo *evaluationRepository) DeleteNote(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notes[id]; !ok {
		return evaluation.ErrNoteNotFound
	}
	delete(repo.db.notes, id)
	return nil
}
