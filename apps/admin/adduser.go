package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(uname, email, pwd string, isSuperuser bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByUsername(ctx, uname)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		if err = cli.usrSvc.CheckUniqueness(uname, email); err != nil {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Username:    uname,
			Email:       email,
			Password:    pwd,
			IsStaff:     isSuperuser,
			IsSuperuser: isSuperuser,
		})
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		okColor.Fprintf(cli.out, "User %s created\n", usr.Username)
		return nil
	}

	if email != usr.Email {
		if err = cli.usrSvc.CheckUniqueness("", email, usr); err != nil {
			return err
		}
		usr.Email = email
	}
	if isSuperuser {
		usr.IsStaff = true
		usr.IsSuperuser = true
	}
	usr.IsActive = true
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if _, err = cli.usrSvc.Save(ctx, usr); err != nil {
		return errors.Wrap(err, "saving user")
	}
	okColor.Fprintf(cli.out, "User %s updated\n", usr.Username)
	return nil
}
