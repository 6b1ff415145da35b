package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
	emailsvc "github.com/trezcool/cuota/services/email"
	logsvc "github.com/trezcool/cuota/services/logger"
	"github.com/trezcool/cuota/storage/database"
	sqlxrepos "github.com/trezcool/cuota/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("admin: building logger: %v", err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer func() { _ = logger.Sync() }()

	if conf.Database.Engine != "postgres" {
		logger.Fatal(fmt.Sprintf("admin: unsupported database engine %q", conf.Database.Engine))
	}

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	if err = core.InitValidators(validate, translator); err != nil {
		logger.Fatal(fmt.Sprintf("setting up validators: %v", err), err)
	}
	if err = user.InitValidators(validate, translator); err != nil {
		logger.Fatal(fmt.Sprintf("setting up validators: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		usrSvc:    user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewService(conf, logger), conf),
		ledgerSvc: ledger.NewService(sqlxrepos.NewLedgerRepository(db), conf),
		validate:  validate,
		logger:    logger,
		migrateFunc: func(command string, args ...string) error {
			return database.Migrate(db, command, logger, args...)
		},
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", describe(err, translator))
		}
		os.Exit(1)
	}
}
