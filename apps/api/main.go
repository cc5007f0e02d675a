package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	dig_container "github.com/trezcool/microlms/apps/api/di/dig"
	echoapi "github.com/trezcool/microlms/apps/api/echo"
	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/user"
)

func main() {
	c := dig_container.New()
	if err := c.Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(
	conf *core.Config,
	logger core.Logger,
	dbLoggerParam dig_container.DBLoggerParam,
	db core.DB,
	usrSvc *user.Service,
	server *echoapi.Server,
) {
	logger.Info(fmt.Sprintf("MicroLMS API starting : version %q, env %q", conf.Build, conf.Env))
	defer logger.Info("MicroLMS API stopped")

	defer func() {
		if err := db.Close(); err != nil {
			dbLoggerParam.Logger.Fatal("closing database", err)
		}
	}()

	// roles are reference data: every start makes sure they exist
	if err := usrSvc.SeedRoles(context.Background()); err != nil {
		logger.Fatal(fmt.Sprintf("seeding roles: %v", err), err)
	}

	startDebugServer(conf, logger)
	go server.Start()

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: shutting down...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("graceful shutdown failed: %v", err), err)
			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("forced shutdown failed: %v", err), err)
			}
		}
	}
}

// startDebugServer serves /debug/pprof (net/http/pprof) and /debug/vars (expvar) on the debug host.
func startDebugServer(conf *core.Config, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage.Backend)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}
