// Package logger owns the process-wide slog logger used by tiledb-cloud.
//
// Library code should accept a *slog.Logger by injection; Get is the
// fallback for callers that were not handed one.
package logger

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/spf13/viper"
	"github.com/stacklok/toolhive-core/env"
	"github.com/stacklok/toolhive-core/logging"
)

// UnstructuredLogsEnvVar switches between text (true, default) and JSON output.
const UnstructuredLogsEnvVar = "UNSTRUCTURED_LOGS"

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(logging.New(logging.WithFormat(logging.FormatText)))
}

// Get returns the current process logger.
func Get() *slog.Logger {
	return singleton.Load()
}

// Set replaces the process logger. Intended for tests that capture output.
func Set(l *slog.Logger) {
	singleton.Store(l)
}

// Initialize configures the process logger from the environment and the
// viper-bound "debug" flag.
func Initialize() {
	InitializeWithEnv(&env.OSReader{})
}

// InitializeWithEnv is Initialize with an injectable environment reader.
// extra options are applied last, e.g. logging.WithOutput for a CLI that
// writes diagnostics to its own stderr.
func InitializeWithEnv(envReader env.Reader, extra ...logging.Option) {
	var opts []logging.Option

	if unstructuredLogs(envReader) {
		opts = append(opts, logging.WithFormat(logging.FormatText))
	}

	if viper.GetBool("debug") {
		opts = append(opts, logging.WithLevel(slog.LevelDebug))
	}

	singleton.Store(logging.New(append(opts, extra...)...))
}

func unstructuredLogs(envReader env.Reader) bool {
	v, err := strconv.ParseBool(envReader.Getenv(UnstructuredLogsEnvVar))
	if err != nil {
		// unset or unparsable: default to human-readable output
		return true
	}
	return v
}
