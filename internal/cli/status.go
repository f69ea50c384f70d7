package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xabinapal/tiledb-cloud/internal/config"
	"github.com/xabinapal/tiledb-cloud/internal/logger"
	"github.com/xabinapal/tiledb-cloud/internal/rest"
	"github.com/xabinapal/tiledb-cloud/internal/utils"
)

// StatusOutput represents status information for JSON and YAML output.
type StatusOutput struct {
	Host          string            `json:"host" yaml:"host"`
	Authenticated bool              `json:"authenticated" yaml:"authenticated"`
	AuthMode      string            `json:"auth_mode" yaml:"auth_mode"`
	APIKey        string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Username      string            `json:"username,omitempty" yaml:"username,omitempty"`
	VerifyTLS     bool              `json:"verify_tls" yaml:"verify_tls"`
	SettingsFile  string            `json:"settings_file" yaml:"settings_file"`
	SettingsFound bool              `json:"settings_found" yaml:"settings_found"`
	Keyring       bool              `json:"keyring" yaml:"keyring"`
	User          *rest.UserProfile `json:"user,omitempty" yaml:"user,omitempty"`
}

// newStatusCmd creates the status command.
func (cli *CLI) newStatusCmd() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active TileDB Cloud credentials",
		Long: `Show the host and credentials that would be used to talk to TileDB Cloud,
after applying environment variables and the settings file. Secrets are masked.

With --remote the user profile is fetched from the service as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, state, err := cli.session.Ensure()
			if err != nil {
				return err
			}

			out := StatusOutput{
				Host:          cfg.Host,
				Authenticated: state.Authenticated(),
				AuthMode:      cfg.AuthMode().String(),
				APIKey:        utils.Mask(cfg.APIKey),
				Username:      cfg.Username,
				VerifyTLS:     cfg.VerifyTLS,
				SettingsFile:  cli.session.Path(),
				Keyring:       cli.secrets != nil,
			}
			if _, err := os.Stat(out.SettingsFile); err == nil {
				out.SettingsFound = true
			}

			if remote {
				if err := state.Err(); err != nil {
					return err
				}
				client, err := rest.NewClient(cfg, rest.WithLogger(logger.Get()))
				if err != nil {
					return err
				}
				user, err := client.GetUser(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to fetch user profile: %w", err)
				}
				out.User = user
			}

			return cli.write(out, func(w io.Writer) error {
				return writeStatusText(w, &out)
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch the user profile from the service")

	return cmd
}

func writeStatusText(w io.Writer, out *StatusOutput) error {
	settings := out.SettingsFile
	if !out.SettingsFound {
		settings += " (not found)"
	}

	rows := [][]string{
		{"Host", out.Host},
		{"Authenticated", yesNo(out.Authenticated)},
		{"Auth mode", out.AuthMode},
		{"API token", utils.OrDefault(out.APIKey, "-")},
		{"Username", utils.OrDefault(out.Username, "-")},
		{"Verify TLS", yesNo(out.VerifyTLS)},
		{"Settings file", settings},
		{"Keyring", yesNo(out.Keyring)},
	}
	if out.User != nil {
		rows = append(rows,
			[]string{"User", out.User.Username},
			[]string{"Email", utils.OrDefault(out.User.Email, "-")},
		)
		for _, org := range out.User.Organizations {
			rows = append(rows, []string{"Organization", org.OrganizationName + " (" + org.Role + ")"})
		}
	}

	if err := renderTable(w, []string{"Setting", "Value"}, rows); err != nil {
		return err
	}
	if !out.Authenticated {
		_, err := fmt.Fprintln(w, "Not logged in. Run 'tiledb-cloud login' or set "+config.EnvToken+".")
		return err
	}
	return nil
}
