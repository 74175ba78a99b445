// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires the epicd subsystems onto a common logs.Backend
// and exposes the rotating-file writers used in production.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jrick/logrotate/rotator"

	"github.com/epic-project/epicd/logs"
)

// logWriter implements an io.Writer that outputs to both standard output
// and the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend logger is created and all
// subsystem loggers created from it write to the backend. Loggers must
// not be used before InitLogRotators has been called.
var (
	backendLog = logs.NewBackend(logWriter{})

	// LogRotator is the rotating log file. It should be closed on
	// application shutdown.
	LogRotator *rotator.Rotator

	chanLog = backendLog.Logger(SubsystemTags.CHAN)
	storLog = backendLog.Logger(SubsystemTags.STOR)
	obcLog  = backendLog.Logger(SubsystemTags.OBC)
	dagmLog = backendLog.Logger(SubsystemTags.DAGM)
	syncLog = backendLog.Logger(SubsystemTags.SYNC)
	ledgLog = backendLog.Logger(SubsystemTags.LEDG)

	initiated = false
)

// SubsystemTags is an enum of all subsystem tags.
var SubsystemTags = struct {
	CHAN,
	STOR,
	OBC,
	DAGM,
	SYNC,
	LEDG string
}{
	CHAN: "CHAN",
	STOR: "STOR",
	OBC:  "OBC",
	DAGM: "DAGM",
	SYNC: "SYNC",
	LEDG: "LEDG",
}

// subsystemLoggers maps each subsystem identifier to its associated logger.
var subsystemLoggers = map[string]*logs.Logger{
	SubsystemTags.CHAN: chanLog,
	SubsystemTags.STOR: storLog,
	SubsystemTags.OBC:  obcLog,
	SubsystemTags.DAGM: dagmLog,
	SubsystemTags.SYNC: syncLog,
	SubsystemTags.LEDG: ledgLog,
}

// InitLogRotators initializes the logging rotator to write logs to
// logFile, with roll files created in the same directory. It must be
// called before the package-global log rotator is used.
func InitLogRotators(logFile string) {
	initiated = true
	LogRotator = initLogRotator(logFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the logging level for the provided subsystem.
// Invalid subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	logger.SetLevel(logs.LevelFromString(logLevel))
}

// SetLogLevels sets the log level for all subsystem loggers.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// SupportedSubsystems returns a sorted slice of the supported
// subsystems for logging purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// Get returns the logger of a specific subsystem.
func Get(tag string) (logger *logs.Logger, ok bool) {
	logger, ok = subsystemLoggers[tag]
	return
}

// ParseAndSetDebugLevels attempts to parse the specified debug level
// string and set the levels accordingly. An error is returned if
// anything is invalid.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%s]", logLevelPair)
		}
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]
		if _, ok := subsystemLoggers[subsysID]; !ok {
			return fmt.Errorf("the specified subsystem [%s] is invalid", subsysID)
		}
		SetLogLevel(subsysID, logLevel)
	}
	return nil
}
