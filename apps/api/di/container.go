// Package di wires the API dependencies with a dig.Container.
package di

import (
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/cuota/apps/api/echo"
	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
	emailsvc "github.com/trezcool/cuota/services/email"
	logsvc "github.com/trezcool/cuota/services/logger"
	"github.com/trezcool/cuota/storage/database"
	inmemdb "github.com/trezcool/cuota/storage/database/inmem"
	sqlxrepos "github.com/trezcool/cuota/storage/database/sqlx"
)

const (
	EngineInMemory = "inmem"
	EnginePostgres = "postgres"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database once the server is stopped.
	DBCloser func() error

	// Storage holds the repositories of the configured database engine.
	Storage struct {
		dig.Out
		Users  user.Repository
		Ledger ledger.Repository
		Close  DBCloser
	}

	serverParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    *user.Service
		LedgerSvc  *ledger.Service
		Validate   *validator.Validate
		Translator ut.Translator
	}
)

func newZapLogger(conf *core.Config) (*zap.Logger, error) {
	return logsvc.NewZapLogger(conf)
}

func newLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newDBLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("db"), conf)
}

// newStorage opens the configured engine. Postgres databases are created and migrated if needed.
func newStorage(conf *core.Config, loggerParam DBLoggerParam) (Storage, error) {
	switch conf.Database.Engine {
	case EngineInMemory:
		db := inmemdb.Open()
		return Storage{
			Users:  inmemdb.NewUserRepository(db),
			Ledger: inmemdb.NewLedgerRepository(db),
			Close:  func() error { return nil },
		}, nil

	case EnginePostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return Storage{}, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return Storage{}, err
		}
		if err = database.Migrate(db, "up", loggerParam.Logger); err != nil {
			_ = db.Close()
			return Storage{}, err
		}
		return Storage{
			Users:  sqlxrepos.NewUserRepository(db),
			Ledger: sqlxrepos.NewLedgerRepository(db),
			Close:  db.Close,
		}, nil
	}
	return Storage{}, fmt.Errorf("unknown database engine %q", conf.Database.Engine)
}

func newValidate(translator ut.Translator) (*validator.Validate, error) {
	validate := validator.New()
	if err := core.InitValidators(validate, translator); err != nil {
		return nil, err
	}
	if err := user.InitValidators(validate, translator); err != nil {
		return nil, err
	}
	return validate, nil
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		UserSvc:    p.UserSvc,
		LedgerSvc:  p.LedgerSvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container.
// The config is provided by the caller so the admin commands and tests can build their own.
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(user.NewService))
	must(c.Provide(ledger.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
