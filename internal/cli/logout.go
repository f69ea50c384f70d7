package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xabinapal/tiledb-cloud/internal/config"
)

type logoutOutput struct {
	Host          string   `json:"host" yaml:"host"`
	SettingsFile  string   `json:"settings_file" yaml:"settings_file"`
	LoggedOut     bool     `json:"logged_out" yaml:"logged_out"`
	EnvCredential []string `json:"env_credentials,omitempty" yaml:"env_credentials,omitempty"`
}

// newLogoutCmd creates the logout command.
func (cli *CLI) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long: `Remove the API token, username and password from the settings file,
keeping the stored host and TLS setting. Secrets held in the system keyring
for the stored host are deleted as well when the keyring is enabled.

Credentials supplied through TILEDB_REST_* environment variables are not
affected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := cli.session.Path()
			out := logoutOutput{SettingsFile: path}

			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return cli.write(out, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, "Not logged in: no settings file.")
					return err
				})
			}

			var opts []config.Option
			if cli.secrets != nil {
				opts = append(opts, config.WithSecretStore(cli.secrets))
			}
			host, err := config.ClearCredentials(cmd.Context(), path, opts...)
			if err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}
			out.Host = host
			out.LoggedOut = true

			for _, name := range []string{config.EnvToken, config.EnvUsername, config.EnvPassword} {
				if cli.env.Getenv(name) != "" {
					out.EnvCredential = append(out.EnvCredential, name)
				}
			}

			return cli.write(out, func(w io.Writer) error {
				fmt.Fprintf(w, "Logged out from %s.\n", out.Host)
				for _, name := range out.EnvCredential {
					fmt.Fprintf(w, "Note: %s is still set in the environment.\n", name)
				}
				return nil
			})
		},
	}
}
