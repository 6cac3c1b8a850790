// Package inmemdb implements every repository in memory. It backs the tests and local runs without PostgreSQL.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fleetops/suivi/core/driver"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/org"
	"github.com/fleetops/suivi/core/user"
)

// DB holds the tables. Rows are stored by value and copied in and out.
// Deletions cascade the way the SQL schema does.
type DB struct {
	mu sync.RWMutex

	users   map[string]user.User
	groups  map[string]group.Group // by name
	history []group.HistoryEntry

	sites       map[string]org.Site
	companies   map[string]org.Company
	departments map[string]org.Department
	drivers     map[string]driver.Driver

	evaluators  map[string]evaluation.Evaluator
	types       map[string]evaluation.EvaluationType
	criteria    map[string]evaluation.Criterion
	evaluations map[string]evaluation.Evaluation // without notes
	notes       map[string]evaluation.Note       // without criterion

	lastOrderNumber int
}

func Open() *DB {
	return &DB{
		users:       make(map[string]user.User),
		groups:      make(map[string]group.Group),
		sites:       make(map[string]org.Site),
		companies:   make(map[string]org.Company),
		departments: make(map[string]org.Department),
		drivers:     make(map[string]driver.Driver),
		evaluators:  make(map[string]evaluation.Evaluator),
		types:       make(map[string]evaluation.EvaluationType),
		criteria:    make(map[string]evaluation.Criterion),
		evaluations: make(map[string]evaluation.Evaluation),
		notes:       make(map[string]evaluation.Note),
	}
}

func newID() string {
	return uuid.New().String()
}

func copyStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append(make([]string, 0, len(s)), s...)
}

// Cascades. Callers hold the write lock.

func (db *DB) deleteUserCascade(id string) {
	delete(db.users, id)
	for evID, ev := range db.evaluators {
		if ev.UserID == id {
			db.deleteEvaluatorCascade(evID)
		}
	}
	for i := range db.history {
		if db.history[i].ActorID == id {
			db.history[i].ActorID = ""
		}
		if db.history[i].TargetUserID == id {
			db.history[i].TargetUserID = ""
		}
	}
}

func (db *DB) deleteGroupCascade(name string) {
	delete(db.groups, name)
	kept := db.history[:0]
	for _, h := range db.history {
		if h.GroupName != name {
			kept = append(kept, h)
		}
	}
	db.history = kept
}

func (db *DB) deleteDriverCascade(id string) {
	delete(db.drivers, id)
	for evID, ev := range db.evaluations {
		if ev.DriverID == id {
			db.deleteEvaluationCascade(evID)
		}
	}
}

func (db *DB) deleteEvaluatorCascade(id string) {
	delete(db.evaluators, id)
	for evID, ev := range db.evaluations {
		if ev.EvaluatorID == id {
			db.deleteEvaluationCascade(evID)
		}
	}
}

func (db *DB) deleteTypeCascade(id string) {
	delete(db.types, id)
	for cID, c := range db.criteria {
		if c.TypeID == id {
			db.deleteCriterionCascade(cID)
		}
	}
	for evID, ev := range db.evaluations {
		if ev.TypeID == id {
			db.deleteEvaluationCascade(evID)
		}
	}
}

func (db *DB) deleteCriterionCascade(id string) {
	delete(db.criteria, id)
	for nID, n := range db.notes {
		if n.CriterionID == id {
			delete(db.notes, nID)
		}
	}
}

func (db *DB) deleteEvaluationCascade(id string) {
	delete(db.evaluations, id)
	for nID, n := range db.notes {
		if n.EvaluationID == id {
			delete(db.notes, nID)
		}
	}
}
