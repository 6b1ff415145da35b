package main

import (
	"context"
	"fmt"

	"github.com/trezcool/cuota/core/user"
)

// addUser validates and creates an active staff user.User
func (cli *commandLine) addUser(nu user.NewUser) error {
	if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.output(), "user %d created\n", usr.ID)
	return nil
}
