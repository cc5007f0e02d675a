package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/user"
	emailsvc "github.com/trezcool/microlms/services/email"
	logsvc "github.com/trezcool/microlms/services/logger"
	storagesvc "github.com/trezcool/microlms/services/storage"
	"github.com/trezcool/microlms/storage/database"
	sqlxrepos "github.com/trezcool/microlms/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	ctx := context.Background()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer db.Close()
	errAndDie(logger, db.PingContext(ctx))

	// set up services
	files, err := storagesvc.New(ctx, conf)
	errAndDie(logger, err)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	usrSvc := user.NewService(
		conf,
		sqlxrepos.NewUserRepository(db),
		emailsvc.NewConsoleService(conf, logger),
		files,
		logger,
		validate,
	)

	// start CLI
	cli := commandLine{
		db:     db.DB,
		usrSvc: usrSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
