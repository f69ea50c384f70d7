package config

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by AuthState.Err when neither a token
	// nor a username could be resolved.
	ErrNotAuthenticated = errors.New("not authenticated: must log in first")
	// ErrMissingHost indicates a settings file without a "host" key while
	// EnvHost is unset.
	ErrMissingHost = errors.New(`missing required key "host"`)
	// ErrNoConfiguration indicates there is no active configuration to persist.
	ErrNoConfiguration = errors.New("no active configuration")
	// ErrLockTimeout indicates the settings lock could not be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for settings file lock")

	errVerifySSLNull = errors.New("verify_ssl must be true or false, got null")
)

// ConfigurationError reports a settings file that exists but cannot be used.
type ConfigurationError struct {
	// Path is the settings file that failed to load.
	Path string
	// Reason is a short human-readable description.
	Reason string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid settings file %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid settings file %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func newConfigurationError(path, reason string, err error) *ConfigurationError {
	return &ConfigurationError{Path: path, Reason: reason, Err: err}
}
