package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/cuota/core"
	"github.com/trezcool/cuota/core/ledger"
	"github.com/trezcool/cuota/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    *user.Service
		LedgerSvc  *ledger.Service
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		app      *echo.Echo
		address  string
		jwtConf  middleware.JWTConfig
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	srv := &Server{
		app:      echo.New(),
		address:  deps.Conf.Address(),
		jwtConf:  newJWTConfig(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	if !deps.Conf.TestMode {
		signal.Notify(srv.shutdown, os.Interrupt, syscall.SIGTERM)
	}
	srv.setup(deps)
	return srv
}

func (srv *Server) setup(deps ServerDeps) {
	conf := deps.Conf
	app := srv.app

	app.HideBanner = conf.TestMode
	app.HidePort = conf.TestMode
	app.Debug = conf.Debug
	app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, srv.signalShutdown)

	app.Pre(middleware.RemoveTrailingSlash())
	app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !conf.TestMode {
		app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	app.GET("/", home(conf.AppName))

	g := app.Group("/api")
	jwt := middleware.JWTWithConfig(srv.jwtConf)

	registerUserAPI(g, jwt, srv.jwtConf, deps)
	registerStudentAPI(g, jwt, deps)
	registerLedgerAPI(g, jwt, deps)
}

func (srv *Server) Start() {
	if err := srv.app.Start(srv.address); err != nil && err != http.ErrServerClosed {
		srv.errors <- err
	}
}

// Errors reports the error that stopped the server.
func (srv *Server) Errors() <-chan error {
	return srv.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and the shutdown requests of handlers.
func (srv *Server) ShutdownSignal() <-chan os.Signal {
	return srv.shutdown
}

func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.app.Shutdown(ctx)
}

func (srv *Server) Close() error {
	return srv.app.Close()
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	srv.app.ServeHTTP(w, r)
}

func (srv *Server) signalShutdown() {
	select {
	case srv.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func home(appName string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+appName+" API!")
	}
}
