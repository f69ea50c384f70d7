package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-core/env/mocks"

	"github.com/xabinapal/tiledb-cloud/internal/config"
	"github.com/xabinapal/tiledb-cloud/internal/keyring"
	"github.com/xabinapal/tiledb-cloud/internal/logger"
)

const testToken = "tok-0123456789abcdef"

type harness struct {
	t        *testing.T
	vars     map[string]string
	store    *keyring.MockStore
	settings string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	prev := logger.Get()
	t.Cleanup(func() {
		logger.Set(prev)
		config.ResetDefault()
	})

	return &harness{
		t:        t,
		vars:     map[string]string{},
		store:    keyring.NewMockStore(),
		settings: filepath.Join(t.TempDir(), ".tiledb", config.SettingsFileName),
	}
}

// run executes the CLI with args and the harness settings file.
func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()

	ctrl := gomock.NewController(h.t)
	mockEnv := mocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(gomock.Any()).DoAndReturn(func(key string) string {
		return h.vars[key]
	}).AnyTimes()

	var out, errOut bytes.Buffer
	c := New(
		WithOutput(&out),
		WithErrOutput(&errOut),
		WithEnv(mockEnv),
		WithKeyring(func() keyring.Store { return h.store }),
	)
	c.SetArgs(append([]string{"--config", h.settings}, args...))
	err = c.Execute(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) writeSettings(content string) {
	h.t.Helper()
	require.NoError(h.t, os.MkdirAll(filepath.Dir(h.settings), 0700))
	require.NoError(h.t, os.WriteFile(h.settings, []byte(content), 0600))
}

func (h *harness) readSettings() map[string]any {
	h.t.Helper()
	data, err := os.ReadFile(h.settings)
	require.NoError(h.t, err)
	var m map[string]any
	require.NoError(h.t, json.Unmarshal(data, &m))
	return m
}

// newCloud serves /v1/user, accepting testToken or alice:secret.
func newCloud(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if r.Header.Get(config.APIKeyHeader) != testToken && (!ok || user != "alice" || pass != "secret") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message": "bad credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id": "1", "username": "alice", "email": "alice@example.com",
			"organizations": [{"organization_name": "acme", "role": "owner"}]}`))
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}
