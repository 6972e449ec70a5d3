// Package logger builds the process-wide zap logger.
package logger

import "go.uber.org/zap"

// New returns a development logger (console, debug level) when debug is set
// and a production JSON logger otherwise.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Must is New for main packages that cannot run without a logger.
func Must(debug bool) *zap.Logger {
	l, err := New(debug)
	if err != nil {
		panic(err)
	}
	return l
}
