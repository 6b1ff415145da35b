package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
)

var demoNames = []string{
	"Ana Quispe", "Beto Mamani", "Carla Huaman", "Diego Flores", "Elena Rojas",
	"Fabio Torres", "Gina Chavez", "Hugo Vargas", "Irma Castillo", "Jorge Ramos",
}

// seedAdmin creates the admin staff user unless it already exists.
func (cli *commandLine) seedAdmin(uname string) error {
	_, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), uname)
	if err == nil {
		fmt.Fprintf(cli.output(), "user %s already exists\n", uname)
		return nil
	}
	if !core.IsNotFound(err) {
		return err
	}
	pwd, err := cli.promptPassword("Enter admin password:")
	if err != nil {
		return err
	}
	return cli.addUser(user.NewUser{
		Name:            "Administrator",
		Username:        uname,
		Password:        pwd,
		PasswordConfirm: pwd,
	})
}

// seed registers `count` demo students. Every other student pays the first tuition period in full.
func (cli *commandLine) seed(count int) error {
	ctx := context.Background()
	first := ledger.AcademicPeriods[0].Concept()

	for i := 0; i < count; i++ {
		name := demoNames[i%len(demoNames)]
		if round := i / len(demoNames); round > 0 {
			name += " " + strconv.Itoa(round+1)
		}
		section := "A"
		if i%2 == 1 {
			section = "B"
		}
		ns := ledger.NewStudent{
			Name:          name,
			Guardian:      "Guardian of " + name,
			Grade:         strconv.Itoa(i%6 + 1),
			Section:       section,
			IsNewEnrollee: i%3 == 0,
		}
		if err := ns.Validate(cli.validate); err != nil {
			return err
		}
		st, err := cli.ledgerSvc.RegisterStudent(ctx, ns)
		if err != nil {
			return errors.Wrapf(err, "registering %s", name)
		}
		if i%2 == 0 {
			pp := ledger.PeriodPayment{Concept: first, Amount: st.MonthlyRate}
			if _, err = cli.ledgerSvc.PayPeriod(ctx, st.ID, pp); err != nil {
				return errors.Wrapf(err, "paying %s for %s", first, name)
			}
		}
	}
	cli.logger.Info(fmt.Sprintf("seeded %d students", count))
	fmt.Fprintf(cli.output(), "%d students registered\n", count)
	return nil
}
