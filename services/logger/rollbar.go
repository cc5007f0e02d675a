package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
)

// RollbarLogger reports to Rollbar and mirrors every entry to a std logger.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// report sends msg with args to Rollbar. Args are errors, map[string]interface{} extras or an auth.Identity;
// the first non-anonymous identity becomes the Rollbar person and its roles are added to the extras.
func (l RollbarLogger) report(send func(...interface{}), msg string, args []interface{}) {
	var person *auth.Identity
	items := make([]interface{}, 0, len(args)+2)
	items = append(items, msg)
	for _, arg := range args {
		id, ok := arg.(auth.Identity)
		if !ok {
			items = append(items, arg)
			continue
		}
		if person == nil && !id.IsAnonymous() {
			person = &id
		}
	}

	if person != nil {
		rollbar.SetPerson(person.UserID, person.Name, person.Email)
		items = append(items, map[string]interface{}{"roles": person.Roles.Strings()})
	} else {
		rollbar.ClearPerson()
	}
	send(items...)

	l.std.Println(msg)
	for _, item := range items[1:] {
		l.std.Printf("%+v\n", item)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.Debug, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.Info, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.Warning, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.Error, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.Critical, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
