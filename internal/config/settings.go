package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockTimeout      = 1 * time.Second
	lockPollInterval = 100 * time.Millisecond
)

// StoredSettings is the on-disk form of the configuration.
// Absent keys decode to nil; it never carries an authenticated flag.
type StoredSettings struct {
	Host      *string `json:"host,omitempty"`
	APIKey    *string `json:"api_key,omitempty"`
	Username  *string `json:"username,omitempty"`
	Password  *string `json:"password,omitempty"`
	VerifySSL *bool   `json:"verify_ssl,omitempty"`

	hostSet bool
}

// SecretStore keeps api keys and passwords outside the settings file.
// keyring.Store satisfies it.
type SecretStore interface {
	Set(key, secret string) error
	Get(key string) (string, error)
	Delete(key string) error
}

const (
	secretAPIKey   = "api_key"
	secretPassword = "password"
)

// SecretKey returns the secret store key for a settings field of a host.
func SecretKey(field, host string) string {
	return field + "@" + host
}

// LoadSettings reads the settings file at path.
// A missing file yields (nil, nil). A file that exists but is not a JSON
// object with well-typed fields yields a *ConfigurationError. A missing
// "host" key is reported by Resolve, since an env host makes it optional.
func LoadSettings(path string) (*StoredSettings, error) {
	// #nosec G304 - path is the settings file path (user home or explicit flag)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newConfigurationError(path, "not a JSON object", err)
	}
	if v, ok := raw["verify_ssl"]; ok && string(bytes.TrimSpace(v)) == "null" {
		return nil, newConfigurationError(path, "unexpected field type", errVerifySSLNull)
	}

	var s StoredSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, newConfigurationError(path, "unexpected field type", err)
	}
	_, s.hostSet = raw["host"]
	return &s, nil
}

// HasHost reports whether the file had a "host" key, null included.
func (s *StoredSettings) HasHost() bool {
	return s != nil && s.hostSet
}

// VerifyTLS returns the stored verify_ssl value and whether the key was present.
func (s *StoredSettings) VerifyTLS() (bool, bool) {
	if s == nil || s.VerifySSL == nil {
		return true, false
	}
	return *s.VerifySSL, true
}

func (s *StoredSettings) host() string {
	if s == nil {
		return ""
	}
	return value(s.Host)
}

func (s *StoredSettings) apiKey() string {
	if s == nil {
		return ""
	}
	return value(s.APIKey)
}

func (s *StoredSettings) username() string {
	if s == nil {
		return ""
	}
	return value(s.Username)
}

func (s *StoredSettings) password() string {
	if s == nil {
		return ""
	}
	return value(s.Password)
}

func value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// fillSecrets fills empty api_key/password fields from the secret store.
// Lookup failures leave the field empty.
func (s *StoredSettings) fillSecrets(store SecretStore, host string) {
	if store == nil {
		return
	}
	if s.apiKey() == "" {
		if v, err := store.Get(SecretKey(secretAPIKey, host)); err == nil && v != "" {
			s.APIKey = &v
		}
	}
	if s.password() == "" {
		if v, err := store.Get(SecretKey(secretPassword, host)); err == nil && v != "" {
			s.Password = &v
		}
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// writeSettings writes s to path under an advisory lock, via a temp file and
// rename so an interrupted write never truncates the previous file.
func writeSettings(ctx context.Context, path string, s *StoredSettings) error {
	paths := Paths{ConfigDir: filepath.Dir(path), SettingsFile: path}
	if err := paths.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	fileLock := flock.New(path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, lockPollInterval)
	if err != nil {
		return fmt.Errorf("failed to acquire settings lock: %w", err)
	}
	if !locked {
		return ErrLockTimeout
	}
	defer func() { _ = fileLock.Unlock() }()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return atomicWriteFile(path, append(data, '\n'), 0600)
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set settings file permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
