// Package logsvc implements core.Logger on top of Rollbar, echoing every entry to a std logger.
package logsvc

import (
	"log"
	"os"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/fleetops/suivi/core"
	"github.com/fleetops/suivi/core/user"
)

const stdFlags = log.LstdFlags | log.Lmicroseconds | log.Lshortfile

type RollbarLogger struct {
	std     *log.Logger
	enabled bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger returns a logger reporting to the Rollbar project of conf.RollbarToken.
// Reporting starts disabled; see Enable.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(strings.ToLower(conf.Env))
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(false)
	return &RollbarLogger{std: std}
}

// NewStdRollbarLogger writes to stdout, every line starting with "<prefix> : ".
func NewStdRollbarLogger(prefix string, conf *core.Config) *RollbarLogger {
	return NewRollbarLogger(log.New(os.Stdout, prefix+" : ", stdFlags), conf)
}

// Enable turns the Rollbar reporting on or off. Entries are still printed when disabled.
func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled && rollbar.Token() != ""
	rollbar.SetEnabled(l.enabled)
}

// Close waits for the queued reports to be sent.
func (l *RollbarLogger) Close() {
	if l.enabled {
		rollbar.Wait()
	}
}

// prepare extracts the authenticated user (first one wins) from args and returns the rollbar arguments.
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		usr, ok := arg.(user.User)
		if !ok {
			rbArgs = append(rbArgs, arg)
			continue
		}
		if !usrSet {
			rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
			usrSet = true
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	_ = l.std.Output(3, level+" "+msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			l.std.Printf("\tuser: %s (%s)", a.Username, a.ID)
		case error:
			l.std.Printf("\t%+v", a)
		default:
			l.std.Printf("\t%v", a)
		}
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

// Fatal reports msg, flushes the pending reports and exits.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	l.Close()
	os.Exit(1)
}
