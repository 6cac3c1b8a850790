// Package shared wires the repositories and services common to the API and the admin CLI.
package shared

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/driver"
	"github.com/fleetops/suivi/core/evaluation"
	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/org"
	"github.com/fleetops/suivi/core/report"
	"github.com/fleetops/suivi/core/user"
	inmemdb "github.com/fleetops/suivi/storage/database/inmem"
	boiledrepos "github.com/fleetops/suivi/storage/database/sqlboiler"
	sqlxrepos "github.com/fleetops/suivi/storage/database/sqlx"
)

type (
	Repositories struct {
		User       user.Repository
		Group      group.Repository
		Org        org.Repository
		Driver     driver.Repository
		Evaluation evaluation.Repository
		Report     report.Repository
	}

	Services struct {
		User       user.ServiceInterface
		Group      group.ServiceInterface
		Org        org.ServiceInterface
		Driver     driver.ServiceInterface
		Evaluation evaluation.ServiceInterface
		Report     report.ServiceInterface
	}
)

// NewSQLRepositories returns the PostgreSQL repositories. Reports run on raw sqlboiler queries.
func NewSQLRepositories(db *sql.DB) Repositories {
	dbx := sqlx.NewDb(db, "postgres")
	return Repositories{
		User:       sqlxrepos.NewUserRepository(dbx),
		Group:      sqlxrepos.NewGroupRepository(dbx),
		Org:        sqlxrepos.NewOrgRepository(dbx),
		Driver:     sqlxrepos.NewDriverRepository(dbx),
		Evaluation: sqlxrepos.NewEvaluationRepository(dbx),
		Report:     boiledrepos.NewReportRepository(db),
	}
}

func NewInMemRepositories(db *inmemdb.DB) Repositories {
	return Repositories{
		User:       inmemdb.NewUserRepository(db),
		Group:      inmemdb.NewGroupRepository(db),
		Org:        inmemdb.NewOrgRepository(db),
		Driver:     inmemdb.NewDriverRepository(db),
		Evaluation: inmemdb.NewEvaluationRepository(db),
		Report:     inmemdb.NewReportRepository(db),
	}
}

func NewServices(repos Repositories, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Services {
	usrSvc := user.NewService(repos.User, mailSvc, conf)
	orgSvc := org.NewService(repos.Org)
	drvSvc := driver.NewService(repos.Driver, orgSvc)
	evalSvc := evaluation.NewService(repos.Evaluation, drvSvc, orgSvc, usrSvc)
	groupSvc := group.NewService(repos.Group, usrSvc, evalSvc, logger)

	return Services{
		User:       usrSvc,
		Group:      groupSvc,
		Org:        orgSvc,
		Driver:     drvSvc,
		Evaluation: evalSvc,
		Report:     report.NewService(repos.Report, evalSvc, groupSvc),
	}
}
