package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xabinapal/tiledb-cloud/internal/config"
	"github.com/xabinapal/tiledb-cloud/internal/keyring"
	"github.com/xabinapal/tiledb-cloud/internal/logger"
	"github.com/xabinapal/tiledb-cloud/internal/rest"
)

// doctorTimeout bounds the network checks of the doctor command.
const doctorTimeout = 30 * time.Second

// CheckResult represents the result of a diagnostic check.
type CheckResult struct {
	Name    string      `json:"name" yaml:"name"`
	Status  CheckStatus `json:"status" yaml:"status"`
	Message string      `json:"message" yaml:"message"`
	Fix     string      `json:"fix,omitempty" yaml:"fix,omitempty"`
}

// CheckStatus represents the status of a diagnostic check.
type CheckStatus int

const (
	// CheckOK indicates the check passed.
	CheckOK CheckStatus = iota
	// CheckWarning indicates a non-critical issue.
	CheckWarning
	// CheckError indicates a critical failure.
	CheckError
	// CheckSkipped indicates the check was skipped.
	CheckSkipped
)

func (s CheckStatus) String() string {
	switch s {
	case CheckOK:
		return "OK"
	case CheckWarning:
		return "WARN"
	case CheckError:
		return "ERROR"
	case CheckSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Icon returns the status marker for text output.
func (s CheckStatus) Icon() string {
	switch s {
	case CheckOK:
		return "[OK]"
	case CheckWarning:
		return "[!!]"
	case CheckError:
		return "[XX]"
	case CheckSkipped:
		return "[--]"
	default:
		return "[??]"
	}
}

// MarshalJSON implements json.Marshaler.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML implements yaml.Marshaler.
func (s CheckStatus) MarshalYAML() (any, error) {
	return s.String(), nil
}

// DoctorOutput represents the doctor command output.
type DoctorOutput struct {
	Checks      []CheckResult `json:"checks" yaml:"checks"`
	HasErrors   bool          `json:"has_errors" yaml:"has_errors"`
	HasWarnings bool          `json:"has_warnings" yaml:"has_warnings"`
}

// errDiagnosticsFailed is returned when at least one check errors.
var errDiagnosticsFailed = errors.New("diagnostics failed")

// newDoctorCmd creates the doctor command.
func (cli *CLI) newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose common issues",
		Long: `Run diagnostic checks to identify and troubleshoot common issues.

The doctor command checks:
  - Settings file validity
  - Keyring availability
  - Configured credentials and TLS verification
  - Server connectivity
  - Whether the service accepts the credentials

Examples:
  # Run diagnostics
  tiledb-cloud doctor

  # Show suggested fixes
  tiledb-cloud doctor --verbose

  # Output as JSON
  tiledb-cloud doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			output := DoctorOutput{Checks: cli.runDiagnostics(ctx)}
			for _, r := range output.Checks {
				switch r.Status {
				case CheckError:
					output.HasErrors = true
				case CheckWarning:
					output.HasWarnings = true
				}
			}

			if err := cli.write(output, func(w io.Writer) error {
				writeDoctorText(w, &output, verbose)
				return nil
			}); err != nil {
				return err
			}

			if output.HasErrors {
				return errDiagnosticsFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Show suggested fixes")

	return cmd
}

func writeDoctorText(w io.Writer, output *DoctorOutput, verbose bool) {
	fmt.Fprintln(w, "TileDB Cloud Diagnostics")
	fmt.Fprintln(w, "========================")
	fmt.Fprintln(w)

	for _, r := range output.Checks {
		fmt.Fprintf(w, "%s %s", r.Status.Icon(), r.Name)
		if r.Message != "" {
			fmt.Fprintf(w, ": %s", r.Message)
		}
		fmt.Fprintln(w)

		if verbose && r.Fix != "" && (r.Status == CheckError || r.Status == CheckWarning) {
			fmt.Fprintf(w, "      -> %s\n", r.Fix)
		}
	}

	fmt.Fprintln(w)
	switch {
	case output.HasErrors:
		fmt.Fprintln(w, "Some checks failed. Run with --verbose for suggested fixes.")
	case output.HasWarnings:
		fmt.Fprintln(w, "All critical checks passed with some warnings.")
	default:
		fmt.Fprintln(w, "All checks passed!")
	}
}

func (cli *CLI) runDiagnostics(ctx context.Context) []CheckResult {
	results := []CheckResult{
		cli.checkSettingsFile(),
		cli.checkKeyring(),
	}

	cfg, state, err := cli.resolveQuiet()
	if err != nil {
		for _, name := range []string{"Credentials", "TLS verification", "Server connectivity", "Authentication"} {
			results = append(results, CheckResult{Name: name, Status: CheckSkipped, Message: "configuration could not be resolved"})
		}
		return results
	}

	results = append(results,
		checkCredentials(cfg, state),
		checkTLS(cfg),
	)

	client, err := rest.NewClient(cfg, rest.WithLogger(logger.Get()))
	if err != nil {
		return append(results,
			CheckResult{
				Name:    "Server connectivity",
				Status:  CheckError,
				Message: err.Error(),
				Fix:     "Set a valid http(s) URL with 'tiledb-cloud login --host' or " + config.EnvHost,
			},
			CheckResult{Name: "Authentication", Status: CheckSkipped, Message: "no usable host"},
		)
	}

	health := checkConnectivity(ctx, client)
	results = append(results, health)
	if health.Status != CheckOK {
		return append(results, CheckResult{Name: "Authentication", Status: CheckSkipped, Message: "server not reachable"})
	}
	return append(results, checkAuthentication(ctx, client, state))
}

func (cli *CLI) checkSettingsFile() CheckResult {
	const name = "Settings file"
	path := cli.session.Path()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: fmt.Sprintf("%s not found", path),
			Fix:     "Run 'tiledb-cloud login' to create it",
		}
	}

	stored, err := config.LoadSettings(path)
	if err != nil {
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: err.Error(),
			Fix:     fmt.Sprintf("Fix or remove %s, then run 'tiledb-cloud login'", path),
		}
	}

	if !stored.HasHost() {
		result := CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: fmt.Sprintf("%s has no \"host\" key", path),
			Fix:     "Run 'tiledb-cloud login --host <url>' to add it",
		}
		if cli.env.Getenv(config.EnvHost) != "" {
			result.Status = CheckWarning
			result.Message += ", using " + config.EnvHost
		}
		return result
	}

	return CheckResult{Name: name, Status: CheckOK, Message: path}
}

func (cli *CLI) checkKeyring() CheckResult {
	const name = "Keyring"
	store := cli.secrets
	enabled := store != nil
	if store == nil {
		store = cli.newKeyring()
	}

	if err := store.IsAvailable(); err != nil {
		status := CheckSkipped
		if cli.keyringFlag || config.ParseBool(cli.env.Getenv(KeyringEnvVar)) {
			status = CheckError
		}
		return CheckResult{
			Name:    name,
			Status:  status,
			Message: fmt.Sprintf("unavailable: %v", err),
			Fix:     "Install and configure a keyring service (gnome-keyring, kwallet, or macOS Keychain)",
		}
	}

	kind := "OS keyring"
	if _, ok := store.(*keyring.FileStore); ok {
		kind = "file-based (test mode)"
	}
	if !enabled {
		kind += ", not in use"
	}
	return CheckResult{Name: name, Status: CheckOK, Message: kind}
}

func checkCredentials(cfg *config.Configuration, state config.AuthState) CheckResult {
	const name = "Credentials"
	if !state.Authenticated() {
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: state.Reason,
			Fix:     "Run 'tiledb-cloud login' or set " + config.EnvToken,
		}
	}

	msg := "API token"
	if cfg.AuthMode() == config.AuthBasic {
		msg = fmt.Sprintf("username %q", cfg.Username)
		if cfg.Password == "" {
			return CheckResult{
				Name:    name,
				Status:  CheckWarning,
				Message: msg + " without a password",
				Fix:     "Run 'tiledb-cloud login --username --password' or set " + config.EnvPassword,
			}
		}
	}
	return CheckResult{Name: name, Status: CheckOK, Message: msg}
}

func checkTLS(cfg *config.Configuration) CheckResult {
	if cfg.VerifyTLS {
		return CheckResult{Name: "TLS verification", Status: CheckOK, Message: "enabled"}
	}
	return CheckResult{
		Name:    "TLS verification",
		Status:  CheckWarning,
		Message: "disabled",
		Fix:     "Unset " + config.EnvIgnoreSSL + " and set verify_ssl to true in the settings file",
	}
}

func checkConnectivity(ctx context.Context, client *rest.Client) CheckResult {
	const name = "Server connectivity"
	health := client.CheckHealth(ctx)

	switch health.Status {
	case rest.HealthReachable:
		return CheckResult{Name: name, Status: CheckOK, Message: fmt.Sprintf("%s %s", client.Host(), health.Message)}
	case rest.HealthDegraded:
		return CheckResult{
			Name:    name,
			Status:  CheckWarning,
			Message: fmt.Sprintf("%s %s", client.Host(), health.Message),
			Fix:     "The service reported a server error, try again later",
		}
	default:
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: health.Message,
			Fix:     "Check the host and your network connection",
		}
	}
}

func checkAuthentication(ctx context.Context, client *rest.Client, state config.AuthState) CheckResult {
	const name = "Authentication"
	if !state.Authenticated() {
		return CheckResult{Name: name, Status: CheckSkipped, Message: "no credentials"}
	}

	user, err := client.GetUser(ctx)
	switch {
	case err == nil:
		return CheckResult{Name: name, Status: CheckOK, Message: fmt.Sprintf("logged in as %s", user.Username)}
	case rest.IsUnauthorized(err):
		return CheckResult{
			Name:    name,
			Status:  CheckError,
			Message: "credentials rejected",
			Fix:     "Run 'tiledb-cloud login' with valid credentials",
		}
	default:
		return CheckResult{Name: name, Status: CheckWarning, Message: err.Error()}
	}
}
