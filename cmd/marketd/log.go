// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"github.com/orbitforge/worldmarket/admin"
	"github.com/orbitforge/worldmarket/db/driver/pg"
	"github.com/orbitforge/worldmarket/econ"
	"github.com/orbitforge/worldmarket/engine"
	"github.com/orbitforge/worldmarket/market"
	"github.com/orbitforge/worldmarket/notify"
	"github.com/orbitforge/worldmarket/price"
	"github.com/orbitforge/worldmarket/sweeper"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

// Write writes the data in p to standard out and the log rotator.
func (logWriter) Write(p []byte) (n int, err error) {
	if logRotator == nil {
		return os.Stdout.Write(p)
	}
	os.Stdout.Write(p)
	return logRotator.Write(p) // not safe concurrent writes, so only one logWriter{} allowed!
}

// Loggers per subsystem. A single backend logger is created and all subsystem
// loggers created from it will write to the backend.
//
// Loggers should not be used before the log rotator has been initialized with
// a log file. This must be performed early during application startup by
// calling initLogRotator.
var (
	// logRotator is one of the logging outputs. Use initLogRotator to set it.
	// It should be closed on application shutdown.
	logRotator *rotator.Rotator

	backendLog = slog.NewBackend(logWriter{})

	// package main's Logger.
	log = econ.Disabled

	// subsystemLoggers maps each subsystem identifier to its associated
	// logger. The loggers are disabled until parseAndSetDebugLevels is
	// called.
	subsystemLoggers = map[string]econ.Logger{
		"MAIN": econ.Disabled,
		"ENGN": econ.Disabled,
		"DB":   econ.Disabled,
		"MKT":  econ.Disabled,
		"PRCE": econ.Disabled,
		"SWPR": econ.Disabled,
		"NTFY": econ.Disabled,
		"ADMN": econ.Disabled,
	}
)

// initLogRotator initializes the logging rotator to write logs to logFile and
// create roll files in the same directory. It must be called before the
// package-global log rotator variables are used.
func initLogRotator(logFile string, maxRolls int) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		os.Exit(1)
	}
	logRotator, err = rotator.New(logFile, 32*1024, false, maxRolls)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %v\n", err)
		os.Exit(1)
	}
}

// setLogLevel sets the logging level for the provided subsystem.
func setLogLevel(subsystemID string, logLevel slog.Level) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	logger.SetLevel(logLevel)
}

// setLogLevels sets the log level for all subsystem loggers.
func setLogLevels(logLevel slog.Level) {
	for subsystemID := range subsystemLoggers {
		setLogLevel(subsystemID, logLevel)
	}
}

// makeSubsystemLoggers creates the subsystem loggers from the LoggerMaker and
// hands each package its logger.
func makeSubsystemLoggers(lm *econ.LoggerMaker) {
	for subsysID := range subsystemLoggers {
		if lvl, found := lm.Levels[subsysID]; found {
			subsystemLoggers[subsysID] = lm.NewLogger(subsysID, lvl)
		} else {
			subsystemLoggers[subsysID] = lm.NewLogger(subsysID)
		}
	}
	log = subsystemLoggers["MAIN"]
	engine.UseLogger(subsystemLoggers["ENGN"])
	pg.UseLogger(subsystemLoggers["DB"])
	market.UseLogger(subsystemLoggers["MKT"])
	price.UseLogger(subsystemLoggers["PRCE"])
	sweeper.UseLogger(subsystemLoggers["SWPR"])
	notify.UseLogger(subsystemLoggers["NTFY"])
	admin.UseLogger(subsystemLoggers["ADMN"])
}
