// Package keyring stores TileDB Cloud secrets (API tokens, passwords) in the
// operating system's credential store.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/xabinapal/tiledb-cloud/internal/utils"
)

const (
	// ServicePrefix prefixes every keyring service name: "TileDB Cloud - <key>".
	ServicePrefix = "TileDB Cloud"

	// TestKeyringEnvVar, when set to a directory, selects a file-based store
	// instead of the OS keyring. Tests only.
	TestKeyringEnvVar = "TILEDB_CLOUD_TEST_KEYRING_DIR"

	availabilityProbeKey = "__availability_check__"
)

func serviceName(key string) string {
	return ServicePrefix + " - " + key
}

var (
	// ErrKeyringUnavailable is returned when no secure keyring is available.
	ErrKeyringUnavailable = errors.New("secure keyring is not available on this system")
	// ErrSecretNotFound is returned when no secret is stored under a key.
	ErrSecretNotFound = errors.New("secret not found in keyring")
	// ErrKeyringAccessDenied is returned when access to the keyring is denied.
	ErrKeyringAccessDenied = errors.New("access to keyring denied")
	// ErrEmptyKey is returned for operations on an empty key.
	ErrEmptyKey = errors.New("key cannot be empty")
	// ErrEmptySecret is returned when storing an empty secret.
	ErrEmptySecret = errors.New("secret cannot be empty")
)

// Store is a secret storage backend.
type Store interface {
	// Set stores a secret under key.
	Set(key, secret string) error
	// Get retrieves the secret stored under key.
	Get(key string) (string, error)
	// Delete removes the secret stored under key. Missing keys are not an error.
	Delete(key string) error
	// IsAvailable reports whether the backend can be used.
	IsAvailable() error
}

// DefaultStore returns the OS keyring, or a FileStore when TestKeyringEnvVar is set.
func DefaultStore() Store {
	if testDir := os.Getenv(TestKeyringEnvVar); testDir != "" {
		fileStore, err := NewFileStore(testDir)
		if err != nil {
			return &osKeyring{}
		}
		return fileStore
	}
	return &osKeyring{}
}

type osKeyring struct{}

// IsAvailable probes the keyring with a lookup that is expected to miss.
func (k *osKeyring) IsAvailable() error {
	_, err := gokeyring.Get(serviceName(availabilityProbeKey), availabilityProbeKey)
	if err == nil || errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}

	errStr := err.Error()
	switch runtime.GOOS {
	case "linux":
		if utils.ContainsAny(errStr, "secret service", "dbus", "org.freedesktop.secrets") {
			return fmt.Errorf("%w: D-Bus secret service not available - install and start gnome-keyring, kwallet, or another secret service provider", ErrKeyringUnavailable)
		}
	case "darwin":
		if utils.ContainsAny(errStr, "keychain", "security") {
			return fmt.Errorf("%w: macOS Keychain not accessible", ErrKeyringUnavailable)
		}
	case "windows":
		if utils.ContainsAny(errStr, "credential", "wincred") {
			return fmt.Errorf("%w: Windows Credential Manager not accessible", ErrKeyringUnavailable)
		}
	}

	// Unknown probe failures are left to the real operation to report.
	return nil
}

func (k *osKeyring) Set(key, secret string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if secret == "" {
		return ErrEmptySecret
	}
	if err := k.IsAvailable(); err != nil {
		return err
	}

	if err := gokeyring.Set(serviceName(key), key, secret); err != nil {
		return wrapKeyringError(err, "failed to store secret")
	}
	return nil
}

func (k *osKeyring) Get(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := k.IsAvailable(); err != nil {
		return "", err
	}

	secret, err := gokeyring.Get(serviceName(key), key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", wrapKeyringError(err, "failed to retrieve secret")
	}
	return secret, nil
}

func (k *osKeyring) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := k.IsAvailable(); err != nil {
		return err
	}

	if err := gokeyring.Delete(serviceName(key), key); err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil
		}
		return wrapKeyringError(err, "failed to delete secret")
	}
	return nil
}

// wrapKeyringError classifies a go-keyring error into one of the package sentinels.
func wrapKeyringError(err error, msg string) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if utils.ContainsAny(errStr, "denied", "permission", "not allowed", "unauthorized") {
		return fmt.Errorf("%w: %s: %v", ErrKeyringAccessDenied, msg, err)
	}
	if utils.ContainsAny(errStr, "no keyring", "unavailable", "secret service") {
		return fmt.Errorf("%w: %s: %v", ErrKeyringUnavailable, msg, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
