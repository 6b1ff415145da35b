package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/trezcool/cuota/apps/api/di"
	echoapi "github.com/trezcool/cuota/apps/api/echo"
	"github.com/trezcool/cuota/assets"
	"github.com/trezcool/cuota/core"
)

type appParams struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	ZapLog   *zap.Logger
	CloseDB  di.DBCloser
	DBLogger core.Logger `name:"dbLogger"`
	Server   *echoapi.Server
}

func main() {
	c := di.New(core.NewConfig)
	if err := c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(p appParams) {
	conf, logger, server := p.Conf, p.Logger, p.Server
	defer func() { _ = p.ZapLog.Sync() }()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if err := core.ParseEmailTemplates(assets.FS, assets.EmailTemplatesDir, conf.Debug); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	defer func() {
		if err := p.CloseDB(); err != nil {
			p.DBLogger.Error("Failed to close", err)
		}
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dbEngine").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
