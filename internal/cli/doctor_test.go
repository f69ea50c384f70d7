package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xabinapal/tiledb-cloud/internal/config"
)

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		status CheckStatus
		str    string
		icon   string
	}{
		{CheckOK, "OK", "[OK]"},
		{CheckWarning, "WARN", "[!!]"},
		{CheckError, "ERROR", "[XX]"},
		{CheckSkipped, "SKIP", "[--]"},
		{CheckStatus(42), "UNKNOWN", "[??]"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.status.String())
			assert.Equal(t, tt.icon, tt.status.Icon())

			data, err := json.Marshal(tt.status)
			require.NoError(t, err)
			assert.Equal(t, `"`+tt.str+`"`, string(data))
		})
	}
}

func doctorChecks(t *testing.T, stdout string) map[string]CheckResult {
	t.Helper()

	var raw struct {
		Checks []struct {
			Name    string `json:"name"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &raw))

	statuses := map[string]CheckStatus{"OK": CheckOK, "WARN": CheckWarning, "ERROR": CheckError, "SKIP": CheckSkipped}
	checks := map[string]CheckResult{}
	for _, c := range raw.Checks {
		checks[c.Name] = CheckResult{Name: c.Name, Status: statuses[c.Status], Message: c.Message}
	}
	return checks
}

func TestDoctor_AllChecksPass(t *testing.T) {
	h := newHarness(t)
	srv := newCloud(t)
	h.writeSettings(`{"host": "` + srv.URL + `", "api_key": "` + testToken + `", "verify_ssl": true}`)

	stdout, _, err := h.run("doctor", "-o", "json")
	require.NoError(t, err)

	checks := doctorChecks(t, stdout)
	assert.Equal(t, CheckOK, checks["Settings file"].Status)
	assert.Equal(t, CheckOK, checks["Keyring"].Status)
	assert.Equal(t, "OS keyring, not in use", checks["Keyring"].Message)
	assert.Equal(t, CheckOK, checks["Credentials"].Status)
	assert.Equal(t, CheckOK, checks["TLS verification"].Status)
	assert.Equal(t, CheckOK, checks["Server connectivity"].Status)
	assert.Equal(t, CheckOK, checks["Authentication"].Status)
	assert.Equal(t, "logged in as alice", checks["Authentication"].Message)
}

func TestDoctor_NotLoggedIn(t *testing.T) {
	h := newHarness(t)
	srv := newCloud(t)
	h.vars[config.EnvHost] = srv.URL

	stdout, _, err := h.run("doctor")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[!!] Settings file")
	assert.Contains(t, stdout, "[!!] Credentials")
	assert.Contains(t, stdout, "[--] Authentication")
	assert.Contains(t, stdout, "All critical checks passed with some warnings.")
}

func TestDoctor_RejectedCredentials(t *testing.T) {
	h := newHarness(t)
	srv := newCloud(t)
	h.writeSettings(`{"host": "` + srv.URL + `", "api_key": "wrong"}`)

	stdout, _, err := h.run("doctor", "--verbose")
	assert.ErrorIs(t, err, errDiagnosticsFailed)
	assert.Contains(t, stdout, "[XX] Authentication: credentials rejected")
	assert.Contains(t, stdout, "-> Run 'tiledb-cloud login' with valid credentials")
}

func TestDoctor_MalformedSettings(t *testing.T) {
	h := newHarness(t)
	h.writeSettings(`not json`)

	stdout, _, err := h.run("doctor", "-o", "json")
	assert.ErrorIs(t, err, errDiagnosticsFailed)

	checks := doctorChecks(t, stdout)
	assert.Equal(t, CheckError, checks["Settings file"].Status)
	assert.Equal(t, CheckSkipped, checks["Credentials"].Status)
	assert.Equal(t, CheckSkipped, checks["Authentication"].Status)
}

func TestDoctor_KeyringRequestedButUnavailable(t *testing.T) {
	h := newHarness(t)
	srv := newCloud(t)
	h.store.SetFailing(true)
	h.vars[KeyringEnvVar] = "true"
	h.vars[config.EnvHost] = srv.URL
	h.vars[config.EnvToken] = testToken

	stdout, _, err := h.run("doctor", "-o", "json")
	assert.ErrorIs(t, err, errDiagnosticsFailed)

	checks := doctorChecks(t, stdout)
	assert.Equal(t, CheckError, checks["Keyring"].Status)
	assert.Equal(t, CheckOK, checks["Authentication"].Status)
}

func TestCheckTLS(t *testing.T) {
	assert.Equal(t, CheckOK, checkTLS(&config.Configuration{VerifyTLS: true}).Status)
	assert.Equal(t, CheckWarning, checkTLS(&config.Configuration{}).Status)
}

func TestDoctor_UsernameWithoutPassword(t *testing.T) {
	h := newHarness(t)
	srv := newCloud(t)
	h.writeSettings(`{"host": "` + srv.URL + `", "username": "alice"}`)

	stdout, _, err := h.run("doctor", "-o", "json")
	assert.ErrorIs(t, err, errDiagnosticsFailed)

	checks := doctorChecks(t, stdout)
	assert.Equal(t, CheckWarning, checks["Credentials"].Status)
	assert.Equal(t, `username "alice" without a password`, checks["Credentials"].Message)
	assert.Equal(t, CheckError, checks["Authentication"].Status)
}

func TestDoctor_SettingsWithoutHost(t *testing.T) {
	h := newHarness(t)
	srv := newCloud(t)
	h.writeSettings(`{"api_key": "` + testToken + `"}`)

	stdout, _, err := h.run("doctor", "-o", "json")
	assert.ErrorIs(t, err, errDiagnosticsFailed)
	assert.Equal(t, CheckError, doctorChecks(t, stdout)["Settings file"].Status)

	h.vars[config.EnvHost] = srv.URL
	stdout, _, err = h.run("doctor", "-o", "json")
	require.NoError(t, err)

	checks := doctorChecks(t, stdout)
	assert.Equal(t, CheckWarning, checks["Settings file"].Status)
	assert.Contains(t, checks["Settings file"].Message, config.EnvHost)
	assert.Equal(t, CheckOK, checks["Authentication"].Status)
}
