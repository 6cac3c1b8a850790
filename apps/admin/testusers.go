package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/access"
	"github.com/fleetops/suivi/core/user"
)

const (
	defaultTestPassword = "password123"
	testSuperuser       = "admin.test"
)

type testUser struct {
	group    string
	username string
	first    string
	last     string
	email    string
	position string
	phone    string
}

// staff gets the admin access
func (tu testUser) staff() bool {
	return tu.group == access.GroupRH || tu.group == access.GroupDirection
}

var testUsers = []testUser{
	{access.GroupRH, "marie.rh", "Marie", "Dupont", "marie.dupont@transport.fr", "Responsable RH", "0556123456"},
	{access.GroupRH, "sophie.rh", "Sophie", "Martin", "sophie.martin@transport.fr", "Assistante RH", "0556123457"},
	{access.GroupExploitation, "jean.exploitation", "Jean", "Lefort", "jean.lefort@transport.fr", "Chef d'exploitation", "0556234567"},
	{access.GroupExploitation, "claire.exploitation", "Claire", "Dubois", "claire.dubois@transport.fr", "Superviseur terrain", "0556234568"},
	{access.GroupDirection, "pierre.direction", "Pierre", "Directeur", "pierre.directeur@transport.fr", "Directeur Général", "0556010203"},
	{access.GroupDirection, "isabelle.direction", "Isabelle", "Albert", "isabelle.albert@transport.fr", "Directrice Adjointe", "0556010204"},
}

func testUsernames() []string {
	names := make([]string, 0, len(testUsers)+1)
	for _, tu := range testUsers {
		names = append(names, tu.username)
	}
	return append(names, testSuperuser)
}

func (cli *commandLine) deleteUser(ctx context.Context, username string) (bool, error) {
	usr, err := cli.usrSvc.GetByUsername(ctx, username)
	if err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if _, err = cli.usrSvc.Delete(ctx, usr.ID); err != nil {
		return false, errors.Wrapf(err, "deleting %s", username)
	}
	return true, nil
}

// seedUsers creates two test users per group, plus a test superuser. The groups must exist.
func (cli *commandLine) seedUsers(pwd string, reset bool) error {
	ctx := context.Background()
	created, updated := 0, 0
	system := user.User{}

	for _, tu := range testUsers {
		if _, err := cli.groupSvc.Get(ctx, tu.group); err != nil {
			if core.IsNotFound(err) {
				errColor.Fprintf(cli.out, "group %s not found, run syncperms first\n", tu.group)
				continue
			}
			return err
		}

		if reset {
			deleted, err := cli.deleteUser(ctx, tu.username)
			if err != nil {
				return err
			}
			if deleted {
				warnColor.Fprintf(cli.out, "%s deleted\n", tu.username)
			}
		}

		usr, err := cli.usrSvc.GetByUsername(ctx, tu.username)
		switch {
		case err == nil:
			usr.IsActive = true
			usr.Profile.Position = tu.position
			usr.Profile.Phone = tu.phone
			if usr, err = cli.usrSvc.Save(ctx, usr); err != nil {
				return errors.Wrapf(err, "updating %s", tu.username)
			}
			updated++
			fmt.Fprintf(cli.out, "%s already exists\n", tu.username)
		case core.IsNotFound(err):
			usr, err = cli.usrSvc.Create(ctx, user.NewUser{
				Username:  tu.username,
				Email:     tu.email,
				FirstName: tu.first,
				LastName:  tu.last,
				Password:  pwd,
				IsStaff:   tu.staff(),
				Phone:     tu.phone,
				Position:  tu.position,
			})
			if err != nil {
				return errors.Wrapf(err, "creating %s", tu.username)
			}
			created++
			okColor.Fprintf(cli.out, "%s created\n", tu.username)
		default:
			return err
		}

		// evaluators of RH and Exploitation members are provisioned on membership
		if _, err = cli.groupSvc.AddUser(ctx, system, tu.group, usr); err != nil {
			return errors.Wrapf(err, "adding %s to %s", tu.username, tu.group)
		}
	}

	if err := cli.seedSuperuser(ctx, pwd, reset); err != nil {
		return err
	}

	headColor.Fprintf(cli.out, "\n%d users created, %d updated\n", created, updated)
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Group", "Username", "Name", "Position", "Email"})
	for _, tu := range testUsers {
		table.Append([]string{tu.group, tu.username, tu.first + " " + tu.last, tu.position, tu.email})
	}
	table.Render()
	fmt.Fprintf(cli.out, "Password of every test user: %s\n", pwd)
	warnColor.Fprintln(cli.out, "These accounts are meant for tests only, delete them with deletetestusers")
	return nil
}

func (cli *commandLine) seedSuperuser(ctx context.Context, pwd string, reset bool) error {
	if reset {
		if _, err := cli.deleteUser(ctx, testSuperuser); err != nil {
			return err
		}
	}
	_, err := cli.usrSvc.GetByUsername(ctx, testSuperuser)
	if err == nil {
		fmt.Fprintf(cli.out, "%s already exists\n", testSuperuser)
		return nil
	}
	if !core.IsNotFound(err) {
		return err
	}
	_, err = cli.usrSvc.Create(ctx, user.NewUser{
		Username:    testSuperuser,
		Email:       testSuperuser + "@transport.fr",
		FirstName:   "Admin",
		LastName:    "Test",
		Password:    pwd,
		IsStaff:     true,
		IsSuperuser: true,
		Position:    "Administrateur système",
		Phone:       "0556000000",
	})
	if err != nil {
		return errors.Wrapf(err, "creating %s", testSuperuser)
	}
	okColor.Fprintf(cli.out, "%s created\n", testSuperuser)
	return nil
}

// deleteTestUsers deletes the users created by seedUsers. Groups are kept.
func (cli *commandLine) deleteTestUsers(force bool) error {
	ctx := context.Background()

	var found []user.User
	for _, username := range testUsernames() {
		usr, err := cli.usrSvc.GetByUsername(ctx, username)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return err
		}
		found = append(found, usr)
	}
	if len(found) == 0 {
		fmt.Fprintln(cli.out, "No test user found")
		return nil
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Username", "Name", "Email", "Groups", "Last login"})
	for _, usr := range found {
		uname := usr.Username
		if usr.IsSuperuser {
			uname += " (superuser)"
		}
		lastLogin := "never"
		if !usr.LastLogin.IsZero() {
			lastLogin = usr.LastLogin.Format("02/01/2006 15:04")
		}
		table.Append([]string{uname, usr.FullName(), usr.Email, strings.Join(usr.Groups, ", "), lastLogin})
	}
	table.Render()

	if !force && !cli.confirm(fmt.Sprintf("Delete these %d test users?", len(found))) {
		return errAborted
	}

	ids := make([]string, len(found))
	for i, usr := range found {
		ids[i] = usr.ID
	}
	n, err := cli.usrSvc.Delete(ctx, ids...)
	if err != nil {
		return errors.Wrap(err, "deleting test users")
	}
	okColor.Fprintf(cli.out, "%d test users deleted\n", n)
	return nil
}
