package main

import "github.com/pkg/errors"

var errNoDatabase = errors.New("migrations need the postgres engine")

func (cli *commandLine) migrate(args []string) error {
	if cli.migrateFunc == nil {
		return errNoDatabase
	}
	return cli.migrateFunc(args[0], args[1:]...)
}
