package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/fleetops/suivi/apps/shared"
	"github.com/fleetops/suivi/core"
	emailsvc "github.com/fleetops/suivi/services/email"
	logsvc "github.com/fleetops/suivi/services/logger"
	"github.com/fleetops/suivi/storage/database"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewStdRollbarLogger("ADMIN", conf)
	logger.Enable(!conf.Debug)

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// the CLI never sends emails
	svcs := shared.NewServices(shared.NewSQLRepositories(db), emailsvc.NewConsoleService(conf), conf, logger)

	cli := commandLine{
		db:       db,
		usrSvc:   svcs.User,
		groupSvc: svcs.Group,
		out:      os.Stdout,
		in:       bufio.NewReader(os.Stdin),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			errColor.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
