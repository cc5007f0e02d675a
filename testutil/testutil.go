package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/course"
	"github.com/trezcool/microlms/core/submission"
	"github.com/trezcool/microlms/core/user"
	"github.com/trezcool/microlms/services/email"
	"github.com/trezcool/microlms/services/logger"
	"github.com/trezcool/microlms/services/storage"
	"github.com/trezcool/microlms/storage/database/inmem"
)

// Password passes the password policy for every fixture user.
const Password = "Xk9#mQ2$vL"

// Clock is a movable clock for service tests.
type Clock struct {
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now.UTC()} }

func (c *Clock) Now() time.Time          { return c.now }
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Env wires every service on top of the in-memory store.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB
	Mail       *emailsvc.ConsoleServiceMock
	Files      core.FileStorage
	Clock      *Clock
	Tokens     *auth.TokenService
	Gate       *auth.Gate

	UserRepo       user.Repository
	CourseRepo     course.Repository
	SubmissionRepo submission.Repository

	Users       *user.Service
	Courses     *course.Service
	Submissions *submission.Service
}

func NewID() string { return uuid.New().String() }

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Storage.UploadDir = t.TempDir()

	env := &Env{
		Conf:   conf,
		Logger: NewLogger(conf),
		DB:     inmemdb.Open(),
		Clock:  NewClock(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)),
	}
	env.Validate, env.Translator = NewValidator()
	env.Mail = emailsvc.NewConsoleServiceMock(conf, env.Logger)
	env.Files = storagesvc.NewDiskStorage(conf)

	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.CourseRepo = inmemdb.NewCourseRepository(env.DB)
	env.SubmissionRepo = inmemdb.NewSubmissionRepository(env.DB)

	env.Users = user.NewService(conf, env.UserRepo, env.Mail, env.Files, env.Logger, env.Validate)
	env.Users.SetNowFunc(env.Clock.Now)
	env.Courses = course.NewService(env.CourseRepo, env.Users, env.Mail, env.Files, env.Logger, env.Validate)
	env.Courses.SetNowFunc(env.Clock.Now)
	env.Submissions = submission.NewService(conf, env.SubmissionRepo, env.CourseRepo, env.Users, env.Mail, env.Files, env.Logger, env.Validate)
	env.Submissions.SetNowFunc(env.Clock.Now)

	env.Tokens = auth.NewTokenService(conf)
	env.Tokens.SetNowFunc(env.Clock.Now)
	env.Gate = auth.NewGate(env.Tokens, env.Users)

	if err := env.Users.SeedRoles(context.Background()); err != nil {
		t.Fatalf("SeedRoles() failed: %v", err)
	}
	return env
}

// CreateUser stores an enabled user with the fixture password.
func CreateUser(t *testing.T, repo user.Repository, name, email string, roles ...auth.Role) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	usr := user.User{
		ID:        NewID(),
		Email:     email,
		FullName:  name,
		Enabled:   true,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateTeacher(t *testing.T, name, email string) user.User {
	return CreateUser(t, env.UserRepo, name, email, auth.RoleTeacher)
}

func (env *Env) CreateStudent(t *testing.T, name, email string) user.User {
	return CreateUser(t, env.UserRepo, name, email, auth.RoleStudent)
}

func (env *Env) CreateCourse(t *testing.T, teacher user.User, title string) course.Course {
	t.Helper()
	crs, err := env.Courses.CreateCourse(context.Background(), teacher.Identity(), course.NewCourse{Title: title})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func (env *Env) Enroll(t *testing.T, student user.User, crs course.Course) {
	t.Helper()
	if err := env.Courses.Enroll(context.Background(), student.Identity(), crs.InviteCode); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

// CreateAssignment adds an assignment due in dueIn from the env clock.
func (env *Env) CreateAssignment(t *testing.T, teacher user.User, crs course.Course, title string, dueIn time.Duration, maxMarks int) course.Assignment {
	t.Helper()
	asg, err := env.Courses.CreateAssignment(context.Background(), teacher.Identity(), course.NewAssignment{
		CourseID: crs.ID,
		Title:    title,
		DueDate:  env.Clock.Now().Add(dueIn),
		MaxMarks: maxMarks,
	}, nil)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return asg
}

// PDF returns an upload sniffed as application/pdf.
func PDF(name string) core.Upload {
	return core.Upload{Filename: name, Content: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n")}
}

// Text returns an upload sniffed as text/plain.
func Text(name, content string) core.Upload {
	return core.Upload{Filename: name, Content: []byte(content)}
}
