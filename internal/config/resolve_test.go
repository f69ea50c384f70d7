package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stacklok/toolhive-core/env/mocks"
	"github.com/stacklok/toolhive-core/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newMockEnv returns an env.Reader that serves envVars and "" for anything else.
func newMockEnv(t *testing.T, envVars map[string]string) *mocks.MockReader {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockEnv := mocks.NewMockReader(ctrl)

	for key, value := range envVars {
		mockEnv.EXPECT().Getenv(key).Return(value).AnyTimes()
	}
	mockEnv.EXPECT().Getenv(gomock.Any()).Return("").AnyTimes()

	return mockEnv
}

func discardLogger() *slog.Logger {
	return logging.New(logging.WithOutput(io.Discard))
}

// writeSettingsFile writes content to cloud.json in a temp dir and returns its path.
// An empty content leaves the file absent.
func writeSettingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".tiledb", SettingsFileName)
	if content == "" {
		return path
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"True", true},
		{"TRUE", true},
		{"1", true},
		{"on", true},
		{"ON", true},
		{"On", true},
		{"", false},
		{"false", false},
		{"no", false},
		{"0", false},
		{"off", false},
		{"yes", false},
		{" true", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBool(tt.in))
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		file       string
		wantHost   string
		wantAPIKey string
		wantUser   string
		wantPass   string
		wantVerify bool
		wantAuth   bool
		wantMode   AuthMode
	}{
		{
			name:       "missing file uses default host",
			wantHost:   DefaultHost,
			wantVerify: true,
		},
		{
			name:       "missing file with env token",
			env:        map[string]string{EnvToken: "env-token"},
			wantHost:   DefaultHost,
			wantAPIKey: "env-token",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthAPIKey,
		},
		{
			name:       "env token wins over file api_key",
			env:        map[string]string{EnvToken: "env-token"},
			file:       `{"host": "https://file.example.com", "api_key": "file-key"}`,
			wantHost:   "https://file.example.com",
			wantAPIKey: "env-token",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthAPIKey,
		},
		{
			name:       "empty env token falls back to file api_key",
			env:        map[string]string{EnvToken: ""},
			file:       `{"host": "https://file.example.com", "api_key": "file-key"}`,
			wantHost:   "https://file.example.com",
			wantAPIKey: "file-key",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthAPIKey,
		},
		{
			name:       "env host wins over file host",
			env:        map[string]string{EnvHost: "https://env.example.com"},
			file:       `{"host": "https://file.example.com", "username": "alice"}`,
			wantHost:   "https://env.example.com",
			wantUser:   "alice",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthBasic,
		},
		{
			name:       "empty file host falls back to default",
			file:       `{"host": "", "api_key": "k"}`,
			wantHost:   DefaultHost,
			wantAPIKey: "k",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthAPIKey,
		},
		{
			name:       "env host stands in for a missing file host",
			env:        map[string]string{EnvHost: "https://env.example.com"},
			file:       `{"api_key": "file-key", "verify_ssl": false}`,
			wantHost:   "https://env.example.com",
			wantAPIKey: "file-key",
			wantVerify: false,
			wantAuth:   true,
			wantMode:   AuthAPIKey,
		},
		{
			name:       "null file host falls back to default",
			file:       `{"host": null}`,
			wantHost:   DefaultHost,
			wantVerify: true,
		},
		{
			name: "file username and password win over env",
			env: map[string]string{
				EnvUsername: "env-user",
				EnvPassword: "env-pass",
			},
			file:       `{"host": "https://h", "username": "file-user", "password": "file-pass"}`,
			wantHost:   "https://h",
			wantUser:   "file-user",
			wantPass:   "file-pass",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthBasic,
		},
		{
			name: "env username and password used when file lacks them",
			env: map[string]string{
				EnvUsername: "env-user",
				EnvPassword: "env-pass",
			},
			file:       `{"host": "https://h", "username": ""}`,
			wantHost:   "https://h",
			wantUser:   "env-user",
			wantPass:   "env-pass",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthBasic,
		},
		{
			name:       "file password with env username",
			env:        map[string]string{EnvUsername: "env-user"},
			file:       `{"host": "https://h", "password": "file-pass"}`,
			wantHost:   "https://h",
			wantUser:   "env-user",
			wantPass:   "file-pass",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthBasic,
		},
		{
			name:       "password alone is not authenticated",
			env:        map[string]string{EnvPassword: "env-pass"},
			wantHost:   DefaultHost,
			wantPass:   "env-pass",
			wantVerify: true,
		},
		{
			name:       "username without password is authenticated",
			env:        map[string]string{EnvUsername: "bob"},
			wantHost:   DefaultHost,
			wantUser:   "bob",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthBasic,
		},
		{
			name:       "token wins auth mode over username",
			env:        map[string]string{EnvToken: "t", EnvUsername: "bob"},
			wantHost:   DefaultHost,
			wantAPIKey: "t",
			wantUser:   "bob",
			wantVerify: true,
			wantAuth:   true,
			wantMode:   AuthAPIKey,
		},
		{
			name:       "ignore ssl env disables verification",
			env:        map[string]string{EnvIgnoreSSL: "on"},
			wantHost:   DefaultHost,
			wantVerify: false,
		},
		{
			name:       "ignore ssl env with unknown value keeps verification",
			env:        map[string]string{EnvIgnoreSSL: "yes"},
			wantHost:   DefaultHost,
			wantVerify: true,
		},
		{
			name:       "file verify_ssl true overrides ignore ssl env",
			env:        map[string]string{EnvIgnoreSSL: "true"},
			file:       `{"host": "https://h", "verify_ssl": true}`,
			wantHost:   "https://h",
			wantVerify: true,
		},
		{
			name:       "file verify_ssl false disables verification",
			file:       `{"host": "https://h", "verify_ssl": false}`,
			wantHost:   "https://h",
			wantVerify: false,
		},
		{
			name:       "file without verify_ssl keeps env default",
			env:        map[string]string{EnvIgnoreSSL: "1"},
			file:       `{"host": "https://h"}`,
			wantHost:   "https://h",
			wantVerify: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSettingsFile(t, tt.file)

			cfg, state, err := Resolve(newMockEnv(t, tt.env), path, WithLogger(discardLogger()))
			require.NoError(t, err)

			assert.Equal(t, tt.wantHost, cfg.Host)
			assert.Equal(t, tt.wantAPIKey, cfg.APIKey)
			assert.Equal(t, tt.wantUser, cfg.Username)
			assert.Equal(t, tt.wantPass, cfg.Password)
			assert.Equal(t, tt.wantVerify, cfg.VerifyTLS)
			assert.Equal(t, tt.wantAuth, state.Authenticated())
			assert.Equal(t, tt.wantMode, cfg.AuthMode())
			assert.Equal(t, DefaultRetryPolicy(), cfg.Retries)
		})
	}
}

func TestResolve_PrecedenceDirections(t *testing.T) {
	pairs := []struct{ env, file string }{
		{"a", "b"},
		{"token-1", "token-2"},
		{"x", "a-much-longer-value"},
	}

	for _, p := range pairs {
		t.Run(p.env+"/"+p.file, func(t *testing.T) {
			path := writeSettingsFile(t, `{"host": "https://h", "api_key": "`+p.file+`", "username": "`+p.file+`"}`)
			envReader := newMockEnv(t, map[string]string{
				EnvToken:    p.env,
				EnvUsername: p.env,
			})

			cfg, _, err := Resolve(envReader, path, WithLogger(discardLogger()))
			require.NoError(t, err)

			// token: environment first; username: file first
			assert.Equal(t, p.env, cfg.APIKey)
			assert.Equal(t, p.file, cfg.Username)
		})
	}
}

func TestResolve_WarnsWhenUnauthenticated(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(
		logging.WithOutput(&buf),
		logging.WithLevel(slog.LevelDebug),
		logging.WithFormat(logging.FormatText),
	)

	cfg, state, err := Resolve(newMockEnv(t, nil), writeSettingsFile(t, ""), WithLogger(log))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.False(t, state.Authenticated())
	assert.Contains(t, buf.String(), "must log in first")
	assert.ErrorIs(t, state.Err(), ErrNotAuthenticated)
	assert.Equal(t, "unauthenticated", state.String())
}

func TestResolve_NoWarningWhenAuthenticated(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.WithOutput(&buf))

	_, state, err := Resolve(newMockEnv(t, map[string]string{EnvToken: "t"}), writeSettingsFile(t, ""), WithLogger(log))
	require.NoError(t, err)

	assert.True(t, state.Authenticated())
	assert.NoError(t, state.Err())
	assert.Empty(t, buf.String())
}

func TestResolve_MalformedFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "invalid json", content: `{"host": `},
		{name: "json array", content: `["https://h"]`},
		{name: "json string", content: `"https://h"`},
		{name: "missing host key", content: `{"api_key": "k"}`, wantErr: ErrMissingHost},
		{name: "empty object", content: `{}`, wantErr: ErrMissingHost},
		{name: "host wrong type", content: `{"host": 42}`},
		{name: "verify_ssl wrong type", content: `{"host": "https://h", "verify_ssl": "yes"}`},
		{name: "verify_ssl null", content: `{"host": "https://h", "verify_ssl": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSettingsFile(t, tt.content)

			cfg, _, err := Resolve(newMockEnv(t, map[string]string{EnvToken: "t"}), path, WithLogger(discardLogger()))
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T", err)
			assert.Equal(t, path, cfgErr.Path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestResolve_UnreadableFile(t *testing.T) {
	// a directory where the file should be
	path := filepath.Join(t.TempDir(), SettingsFileName)
	require.NoError(t, os.Mkdir(path, 0700))

	_, _, err := Resolve(newMockEnv(t, nil), path, WithLogger(discardLogger()))
	require.Error(t, err)

	var cfgErr *ConfigurationError
	assert.False(t, errors.As(err, &cfgErr))
}

func TestConfiguration_APIKeyHeaders(t *testing.T) {
	cfg := &Configuration{}
	assert.Empty(t, cfg.APIKeyHeaders())

	cfg.APIKey = "secret"
	assert.Equal(t, map[string]string{"X-TILEDB-REST-API-KEY": "secret"}, cfg.APIKeyHeaders())
}

func TestConfiguration_Clone(t *testing.T) {
	cfg := &Configuration{Host: "https://h", Retries: DefaultRetryPolicy()}
	clone := cfg.Clone()

	clone.Retries.StatusForcelist[0] = 500
	clone.Host = "https://other"

	assert.Equal(t, 503, cfg.Retries.StatusForcelist[0])
	assert.Equal(t, "https://h", cfg.Host)
	assert.Nil(t, (*Configuration)(nil).Clone())
}

func TestAuthMode_String(t *testing.T) {
	assert.Equal(t, "none", AuthNone.String())
	assert.Equal(t, "api_key", AuthAPIKey.String())
	assert.Equal(t, "basic", AuthBasic.String())
}
