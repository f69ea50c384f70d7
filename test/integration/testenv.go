//go:build integration

// Package integration runs the tiledb-cloud binary against a fake REST service.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	validToken    = "integration-token-0123456789"
	validUser     = "alice"
	validPassword = "wonderland"
)

// FakeCloud is a minimal TileDB Cloud REST service.
type FakeCloud struct {
	*httptest.Server
	// Unavailable answers 503 to that many requests before recovering.
	Unavailable atomic.Int32
	Requests    atomic.Int32
}

// NewFakeCloud starts a FakeCloud that is closed with the test.
func NewFakeCloud(t *testing.T) *FakeCloud {
	t.Helper()
	fc := &FakeCloud{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", fc.handleUser)
	mux.HandleFunc("GET /", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	fc.Server = httptest.NewServer(mux)
	t.Cleanup(fc.Close)
	return fc
}

func (fc *FakeCloud) handleUser(w http.ResponseWriter, r *http.Request) {
	fc.Requests.Add(1)
	if fc.Unavailable.Load() > 0 {
		fc.Unavailable.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	user, pass, basic := r.BasicAuth()
	switch {
	case r.Header.Get("X-TILEDB-REST-API-KEY") == validToken:
	case basic && user == validUser && pass == validPassword:
	default:
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code": 1001, "message": "invalid credentials"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":       "00000000-0000-0000-0000-00000000a11c",
		"username": validUser,
		"email":    "alice@example.com",
	})
}

// BinaryPath returns the tiledb-cloud binary under test.
func BinaryPath(t *testing.T) string {
	t.Helper()

	if path := os.Getenv("TILEDB_CLOUD_BINARY"); path != "" {
		return path
	}

	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "failed to get caller information")

	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))
	binaryPath := filepath.Join(projectRoot, "bin", "tiledb-cloud")
	if runtime.GOOS == "windows" {
		binaryPath += ".exe"
	}

	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Fatalf("tiledb-cloud binary not found at %s - run 'go build -o bin/tiledb-cloud ./cmd/tiledb-cloud' first", binaryPath)
	}
	return binaryPath
}

// Sandbox is an isolated home directory for one test.
type Sandbox struct {
	t          *testing.T
	ConfigDir  string
	KeyringDir string
	Env        map[string]string
}

// NewSandbox creates an isolated config and keyring directory.
func NewSandbox(t *testing.T) *Sandbox {
	t.Helper()
	home := t.TempDir()
	sb := &Sandbox{
		t:          t,
		ConfigDir:  filepath.Join(home, ".tiledb"),
		KeyringDir: filepath.Join(home, "keyring"),
	}
	sb.Env = map[string]string{
		"HOME":                          home,
		"USERPROFILE":                   home,
		"TILEDB_CLOUD_CONFIG_DIR":       sb.ConfigDir,
		"TILEDB_CLOUD_TEST_KEYRING_DIR": sb.KeyringDir,
	}
	return sb
}

// SettingsFile is the settings file path inside the sandbox.
func (sb *Sandbox) SettingsFile() string {
	return filepath.Join(sb.ConfigDir, "cloud.json")
}

// Settings returns the decoded settings file.
func (sb *Sandbox) Settings() map[string]any {
	sb.t.Helper()
	data, err := os.ReadFile(sb.SettingsFile())
	require.NoError(sb.t, err)
	var m map[string]any
	require.NoError(sb.t, json.Unmarshal(data, &m))
	return m
}

// Run executes the binary with args inside the sandbox.
func (sb *Sandbox) Run(ctx context.Context, args ...string) (stdout, stderr string, err error) {
	sb.t.Helper()
	cmd := exec.CommandContext(ctx, BinaryPath(sb.t), args...)

	env := make([]string, 0, len(os.Environ())+len(sb.Env))
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "TILEDB_") {
			continue
		}
		env = append(env, kv)
	}
	for k, v := range sb.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	var out, errOut strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err = cmd.Run()
	return out.String(), errOut.String(), err
}
