package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc    *user.Service
	ledgerSvc *ledger.Service
	validate  *validator.Validate
	logger    core.Logger
	// migrateFunc runs a goose command against the app database.
	migrateFunc func(command string, args ...string) error
	out         io.Writer
}

func (cli *commandLine) printUsage() {
	w := cli.output()
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  adduser -name NAME [-username USERNAME] [-email EMAIL] - create a staff user; the password is prompted next")
	fmt.Fprintln(w, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(w, "  migrate COMMAND [ARGS...] - run a goose command: up, up-by-one, up-to, down, down-to, redo, reset, status, version")
	fmt.Fprintln(w, "  seed [-admin USERNAME] [-students N] - create the admin user if missing, then register N demo students")
}

func (cli *commandLine) output() io.Writer {
	if cli.out == nil {
		return os.Stdout
	}
	return cli.out
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.output())
	return fs
}

// parse returns errHelp when -h is given.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) promptPassword(label string) (string, error) {
	fmt.Fprint(cli.output(), label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.output())
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "adduser":
		cmd := cli.newFlagSet("adduser")
		name := cmd.String("name", "", "The user's full name.")
		uname := cmd.String("username", "", "The user's username; one of username or email is required.")
		email := cmd.String("email", "", "The user's email; one of username or email is required.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if *name == "" || (*uname == "" && *email == "") {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.addUser(user.NewUser{
			Name:            *name,
			Username:        *uname,
			Email:           *email,
			Password:        pwd,
			PasswordConfirm: confirm,
		})

	case "resetpassword":
		cmd := cli.newFlagSet("resetpassword")
		uname := cmd.String("username", "", "The user's username or email. The password will be prompted next.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			cmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*uname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		cmd := cli.newFlagSet("seed")
		admin := cmd.String("admin", "admin", "The admin username. Its password is prompted if the user does not exist yet.")
		count := cmd.Int("students", 10, "The number of demo students to register.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if *admin == "" || *count <= 0 {
			cmd.Usage()
			return errHelp
		}
		if err := cli.seedAdmin(*admin); err != nil {
			return err
		}
		return cli.seed(*count)

	default:
		cli.printUsage()
		return errHelp
	}
}
