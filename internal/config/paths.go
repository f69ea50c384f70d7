// Package config resolves the TileDB Cloud connection configuration from the
// environment and the user's settings file, and persists it back.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	// AppDirName is the settings directory under the user's home directory.
	AppDirName = ".tiledb"
	// SettingsFileName is the settings file name inside AppDirName.
	SettingsFileName = "cloud.json"
	// ConfigDirEnvVar overrides the settings directory.
	ConfigDirEnvVar = "TILEDB_CLOUD_CONFIG_DIR"
)

// Paths holds the locations used by the resolver.
type Paths struct {
	ConfigDir    string
	SettingsFile string
}

// GetPaths returns the settings locations for the current user.
func GetPaths() Paths {
	dir := getConfigDir()
	return Paths{
		ConfigDir:    dir,
		SettingsFile: filepath.Join(dir, SettingsFileName),
	}
}

// DefaultSettingsFile returns the path of the settings file for the current user.
func DefaultSettingsFile() string {
	return GetPaths().SettingsFile
}

func getConfigDir() string {
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		return dir
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, AppDirName)
	}

	if runtime.GOOS == "windows" {
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, AppDirName)
		}
	}

	// Last resort fallback
	return filepath.Join(".", AppDirName)
}

// EnsureDirs creates the settings directory if it doesn't exist.
func (p Paths) EnsureDirs() error {
	return os.MkdirAll(p.ConfigDir, 0700)
}
