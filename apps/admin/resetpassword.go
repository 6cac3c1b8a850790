package main

import (
	"context"

	"github.com/pkg/errors"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if _, err = cli.usrSvc.Save(ctx, usr); err != nil {
		return errors.Wrap(err, "saving user")
	}
	okColor.Fprintf(cli.out, "Password of %s updated\n", usr.Username)
	return nil
}
