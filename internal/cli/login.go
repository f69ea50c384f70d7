package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xabinapal/tiledb-cloud/internal/config"
	"github.com/xabinapal/tiledb-cloud/internal/keyring"
	"github.com/xabinapal/tiledb-cloud/internal/logger"
	"github.com/xabinapal/tiledb-cloud/internal/rest"
	"github.com/xabinapal/tiledb-cloud/internal/utils"
)

type loginFlags struct {
	token       string
	username    string
	password    string
	host        string
	noVerifySSL bool
	skipCheck   bool
}

// loginOutput is the machine-readable result of a login.
type loginOutput struct {
	Host         string `json:"host" yaml:"host"`
	AuthMode     string `json:"auth_mode" yaml:"auth_mode"`
	Username     string `json:"username,omitempty" yaml:"username,omitempty"`
	VerifyTLS    bool   `json:"verify_tls" yaml:"verify_tls"`
	Verified     bool   `json:"verified" yaml:"verified"`
	SettingsFile string `json:"settings_file" yaml:"settings_file"`
	Keyring      bool   `json:"keyring" yaml:"keyring"`
}

// newLoginCmd creates the login command.
func (cli *CLI) newLoginCmd() *cobra.Command {
	var flags loginFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store TileDB Cloud credentials",
		Long: `Store credentials for TileDB Cloud in the settings file.

Either an API token or a username and password are required. Values not
given on the command line fall back to the environment and the current
settings file. Unless --skip-check is set, the credentials are verified
against the service before they are saved.

With --keyring (or TILEDB_CLOUD_KEYRING=true) the token and password are
kept in the system credential store instead of the settings file.

Examples:
  # API token
  tiledb-cloud login --token "$TOKEN"

  # Username and password against a private deployment
  tiledb-cloud login --username alice --password s3cret --host https://tiledb.example.com

  # Keep secrets out of the settings file
  tiledb-cloud login --token "$TOKEN" --keyring`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.runLogin(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.token, "token", "", "API token")
	cmd.Flags().StringVar(&flags.username, "username", "", "Username for basic authentication")
	cmd.Flags().StringVar(&flags.password, "password", "", "Password for basic authentication")
	cmd.Flags().StringVar(&flags.host, "host", "", "TileDB Cloud REST URL (default "+config.DefaultHost+")")
	cmd.Flags().BoolVar(&flags.noVerifySSL, "no-verify-ssl", false, "Disable TLS certificate verification")
	cmd.Flags().BoolVar(&cli.keyringFlag, "keyring", false, "Store secrets in the system keyring")
	cmd.Flags().BoolVar(&flags.skipCheck, "skip-check", false, "Save without verifying the credentials")
	cmd.MarkFlagsMutuallyExclusive("token", "username")
	cmd.MarkFlagsMutuallyExclusive("token", "password")

	return cmd
}

// setupOptions merges explicit flags over the resolved configuration.
func (f loginFlags) setupOptions(base *config.Configuration) (config.SetupOptions, error) {
	opts := config.SetupOptions{
		Host:      utils.OrDefault(f.host, base.Host),
		VerifyTLS: base.VerifyTLS && !f.noVerifySSL,
	}

	switch {
	case f.token != "":
		opts.APIKey = f.token
	case f.username != "":
		if f.password == "" {
			return opts, errors.New("--password is required with --username")
		}
		opts.Username = f.username
		opts.Password = f.password
	case f.password != "":
		return opts, errors.New("--username is required with --password")
	default:
		opts.APIKey = base.APIKey
		opts.Username = base.Username
		opts.Password = base.Password
	}
	return opts, nil
}

// runLogin handles the login command execution.
func (cli *CLI) runLogin(cmd *cobra.Command, flags loginFlags) error {
	if cli.keyringFlag && cli.secrets == nil {
		return fmt.Errorf("cannot store secrets: %w", keyring.ErrKeyringUnavailable)
	}

	base, _, err := cli.resolveQuiet()
	if err != nil {
		return err
	}

	opts, err := flags.setupOptions(base)
	if err != nil {
		return err
	}

	cfg, state := cli.session.Setup(opts)
	if !state.Authenticated() {
		return fmt.Errorf("%w: pass --token, or --username and --password", config.ErrNotAuthenticated)
	}

	out := loginOutput{
		Host:         cfg.Host,
		AuthMode:     cfg.AuthMode().String(),
		Username:     cfg.Username,
		VerifyTLS:    cfg.VerifyTLS,
		SettingsFile: cli.session.Path(),
		Keyring:      cli.secrets != nil,
	}

	if !flags.skipCheck {
		client, err := rest.NewClient(cfg, rest.WithLogger(logger.Get()))
		if err != nil {
			return err
		}
		user, err := client.GetUser(cmd.Context())
		if err != nil {
			if rest.IsUnauthorized(err) {
				return fmt.Errorf("credentials rejected by %s: %w", cfg.Host, err)
			}
			return fmt.Errorf("failed to verify credentials: %w", err)
		}
		out.Verified = true
		out.Username = user.Username
	}

	if err := cli.session.Save(cmd.Context()); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	return cli.write(out, func(w io.Writer) error {
		if out.Verified {
			fmt.Fprintf(w, "Logged in to %s as %s.\n", out.Host, out.Username)
		} else {
			fmt.Fprintf(w, "Credentials for %s saved without verification.\n", out.Host)
		}
		if out.Keyring {
			fmt.Fprintln(w, "Secrets stored in the system credential store.")
		}
		fmt.Fprintf(w, "Settings written to %s\n", out.SettingsFile)
		if !out.VerifyTLS {
			fmt.Fprintln(w, "Warning: TLS certificate verification is disabled.")
		}
		return nil
	})
}
