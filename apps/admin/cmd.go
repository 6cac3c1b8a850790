package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/fleetops/suivi/core/group"
	"github.com/fleetops/suivi/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp      = errors.New("help provided")
	errPwdsMatch = errors.New("passwords do not match")
	errAborted   = errors.New("aborted")
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	headColor = color.New(color.Bold)
)

type commandLine struct {
	db       *sql.DB
	usrSvc   user.ServiceInterface
	groupSvc group.ServiceInterface
	out      io.Writer
	in       *bufio.Reader
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the database")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-superuser] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  syncperms [-group GROUP] [-dry-run] - synchronize the group permissions with the policy")
	fmt.Fprintln(cli.out, "  verifyperms [-group GROUP | -user USERNAME] [-detailed] [-export FILE] - verify the permissions")
	fmt.Fprintln(cli.out, "  seedusers [-reset] [-password PASSWORD] - create the test users of every group")
	fmt.Fprintln(cli.out, "  deletetestusers [-force] - delete the test users")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := cli.newFlagSet("adduser")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserSuper := addUserCmd.Bool("superuser", false, "Give every permission to the user.")

	resetPasswordCmd := cli.newFlagSet("resetpassword")
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	syncPermsCmd := cli.newFlagSet("syncperms")
	syncPermsGroup := syncPermsCmd.String("group", "", "Only synchronize this group.")
	syncPermsDryRun := syncPermsCmd.Bool("dry-run", false, "Show the changes without applying them.")

	verifyPermsCmd := cli.newFlagSet("verifyperms")
	verifyPermsGroup := verifyPermsCmd.String("group", "", "Verify a single group.")
	verifyPermsUser := verifyPermsCmd.String("user", "", "Verify the effective permissions of a user.")
	verifyPermsDetailed := verifyPermsCmd.Bool("detailed", false, "List every permission.")
	verifyPermsExport := verifyPermsCmd.String("export", "", "Write the JSON report to this file.")

	seedUsersCmd := cli.newFlagSet("seedusers")
	seedUsersReset := seedUsersCmd.Bool("reset", false, "Delete the existing test users first.")
	seedUsersPwd := seedUsersCmd.String("password", defaultTestPassword, "Password of every test user.")

	deleteTestUsersCmd := cli.newFlagSet("deletetestusers")
	deleteTestUsersForce := deleteTestUsersCmd.Bool("force", false, "Do not ask for confirmation.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(true)
		if err != nil {
			if err == errHelp {
				addUserCmd.Usage()
			}
			return err
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserSuper)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(false)
		if err != nil {
			if err == errHelp {
				resetPasswordCmd.Usage()
			}
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "syncperms":
		if err := syncPermsCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.syncPerms(group.SyncOptions{Group: *syncPermsGroup, DryRun: *syncPermsDryRun})

	case "verifyperms":
		if err := verifyPermsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *verifyPermsGroup != "" && *verifyPermsUser != "" {
			verifyPermsCmd.Usage()
			return errHelp
		}
		return cli.verifyPerms(verifyOptions{
			group:    *verifyPermsGroup,
			user:     *verifyPermsUser,
			detailed: *verifyPermsDetailed,
			export:   *verifyPermsExport,
		})

	case "seedusers":
		if err := seedUsersCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedUsersPwd == "" {
			seedUsersCmd.Usage()
			return errHelp
		}
		return cli.seedUsers(*seedUsersPwd, *seedUsersReset)

	case "deletetestusers":
		if err := deleteTestUsersCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.deleteTestUsers(*deleteTestUsersForce)

	default:
		cli.printUsage()
		return errHelp
	}
}

// promptPassword reads a non-empty password from the terminal, twice when confirm is set.
func (cli *commandLine) promptPassword(confirm bool) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	if !confirm {
		return string(pwd), nil
	}

	fmt.Fprint(cli.out, "Confirm password:")
	pwd2, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if string(pwd) != string(pwd2) {
		return "", errPwdsMatch
	}
	return string(pwd), nil
}

// confirm asks a yes/no question on the command line.
func (cli *commandLine) confirm(question string) bool {
	fmt.Fprintf(cli.out, "%s (yes/no): ", question)
	answer, _ := cli.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "yes", "y", "oui", "o":
		return true
	}
	return false
}
