package main

import (
	"github.com/trezcool/goose"

	appfs "github.com/fleetops/suivi/fs"
)

var gooseRunFunc = goose.RunFS // mockable

// migrate runs the goose command args[0] with the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(args[0], cli.db, appfs.FS, "migrations", args[1:]...)
}
