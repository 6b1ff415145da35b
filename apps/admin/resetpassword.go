package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	if _, err = cli.usrSvc.ChangePassword(ctx, usr, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.output(), "password of %s changed\n", usr.Username)
	return nil
}
