// Package logging wires the process-wide loggers: a structured zap logger
// for application logs and a standard access log for HTTP handlers.
package logging

import (
	golog "log"
	"net/http"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

// Setup installs a zap logger as the global logger and returns its flush
// function. Verbose selects the development config.
func Setup(verbose bool) func() {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		golog.Fatalf("cannot initialize logger: %v", err)
	}
	zap.ReplaceGlobals(logger)
	return func() {
		logger.Sync()
	}
}

// MakeAccessLogHandler wraps handler with a standard-format access log on
// the process log writer. Access logs keep the common format rather than
// JSON so existing tooling can parse them.
func MakeAccessLogHandler(handler http.Handler) http.Handler {
	return handlers.LoggingHandler(golog.Writer(), handler)
}
