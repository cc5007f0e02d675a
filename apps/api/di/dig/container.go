package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/microlms/apps/api/echo"
	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/course"
	"github.com/trezcool/microlms/core/submission"
	"github.com/trezcool/microlms/core/user"
	emailsvc "github.com/trezcool/microlms/services/email"
	logsvc "github.com/trezcool/microlms/services/logger"
	storagesvc "github.com/trezcool/microlms/services/storage"
	"github.com/trezcool/microlms/storage/database"
	sqlxrepos "github.com/trezcool/microlms/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newFileStorage(conf *core.Config, logger core.Logger) core.FileStorage {
	files, err := storagesvc.New(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}
	return files
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func newUserRepository(db core.DB) user.Repository {
	return sqlxrepos.NewUserRepository(db)
}

// newCourseRepository also serves the submission service's read side of the course storage.
func newCourseRepository(db core.DB) (course.Repository, submission.CourseReader) {
	repo := sqlxrepos.NewCourseRepository(db)
	return repo, repo
}

func newSubmissionRepository(db core.DB) submission.Repository {
	return sqlxrepos.NewSubmissionRepository(db)
}

// userLookups exposes the user service to the components that only read users.
func userLookups(svc *user.Service) (course.UserGetter, auth.IdentityResolver) {
	return svc, svc
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newFileStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))

	must(c.Provide(newUserRepository))
	must(c.Provide(newCourseRepository))
	must(c.Provide(newSubmissionRepository))

	must(c.Provide(user.NewService))
	must(c.Provide(userLookups))
	must(c.Provide(course.NewService))
	must(c.Provide(submission.NewService))
	must(c.Provide(auth.NewTokenService))
	must(c.Provide(auth.NewGate))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
