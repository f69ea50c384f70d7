// Package cli implements the tiledb-cloud command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stacklok/toolhive-core/env"
	"github.com/stacklok/toolhive-core/logging"

	"github.com/xabinapal/tiledb-cloud/internal/config"
	"github.com/xabinapal/tiledb-cloud/internal/keyring"
	"github.com/xabinapal/tiledb-cloud/internal/logger"
)

// KeyringEnvVar enables the OS keyring for secrets when set to a true value.
const KeyringEnvVar = "TILEDB_CLOUD_KEYRING"

// CLI holds the application state for the CLI.
type CLI struct {
	rootCmd *cobra.Command
	out     io.Writer
	errOut  io.Writer
	env     env.Reader

	newKeyring func() keyring.Store
	secrets    keyring.Store
	session    *config.Session
	format     OutputFormat

	// Flags
	configFlag  string
	debugFlag   bool
	outputFlag  string
	keyringFlag bool
}

// Option configures a CLI.
type Option func(*CLI)

// WithOutput redirects command output.
func WithOutput(w io.Writer) Option {
	return func(c *CLI) {
		c.out = w
	}
}

// WithErrOutput redirects diagnostics and log output.
func WithErrOutput(w io.Writer) Option {
	return func(c *CLI) {
		c.errOut = w
	}
}

// WithEnv replaces the process environment.
func WithEnv(r env.Reader) Option {
	return func(c *CLI) {
		c.env = r
	}
}

// WithKeyring replaces the keyring constructor.
func WithKeyring(newStore func() keyring.Store) Option {
	return func(c *CLI) {
		c.newKeyring = newStore
	}
}

// New creates a new CLI instance.
func New(opts ...Option) *CLI {
	cli := &CLI{
		out:        os.Stdout,
		errOut:     os.Stderr,
		env:        &env.OSReader{},
		newKeyring: keyring.DefaultStore,
	}
	for _, opt := range opts {
		opt(cli)
	}

	cli.rootCmd = &cobra.Command{
		Use:   "tiledb-cloud",
		Short: "Manage TileDB Cloud credentials",
		Long: `tiledb-cloud stores and inspects the credentials used to talk to the
TileDB Cloud REST service.

Credentials are resolved from the environment and from the settings file
(~/.tiledb/cloud.json by default):

  TILEDB_REST_TOKEN     API token, overrides the stored api_key
  TILEDB_REST_HOST      service URL, overrides the stored host
  TILEDB_REST_USERNAME  used when the settings file has no username
  TILEDB_REST_PASSWORD  used when the settings file has no password
  TILEDB_REST_IGNORE_SSL_VALIDATION
                        disables TLS verification unless the settings
                        file sets verify_ssl`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cli.initialize(cmd)
		},
	}
	cli.rootCmd.SetOut(cli.out)
	cli.rootCmd.SetErr(cli.errOut)

	// Global flags
	cli.rootCmd.PersistentFlags().StringVar(&cli.configFlag, "config", "", "Settings file (default ~/.tiledb/cloud.json)")
	cli.rootCmd.PersistentFlags().BoolVar(&cli.debugFlag, "debug", false, "Enable debug logging")
	cli.rootCmd.PersistentFlags().StringVarP(&cli.outputFlag, "output", "o", "text", "Output format (text, json, yaml)")

	cli.addCommands()

	return cli
}

// addCommands adds all subcommands to the root command.
func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newVersionCmd(),
		cli.newLoginCmd(),
		cli.newLogoutCmd(),
		cli.newStatusCmd(),
		cli.newConfigCmd(),
		cli.newDoctorCmd(),
		cli.newCompletionCmd(),
	)
}

// initialize sets up logging and the session before any subcommand runs.
func (cli *CLI) initialize(cmd *cobra.Command) error {
	format, err := ParseOutputFormat(cli.outputFlag)
	if err != nil {
		return err
	}
	cli.format = format

	if err := viper.BindPFlag("debug", cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	logger.InitializeWithEnv(cli.env, logging.WithOutput(cli.errOut))

	path := cli.configFlag
	if path == "" {
		path = config.GetPaths().SettingsFile
	}

	opts := []config.Option{config.WithLogger(logger.Get())}
	if cli.keyringFlag || config.ParseBool(cli.env.Getenv(KeyringEnvVar)) {
		store := cli.newKeyring()
		if err := store.IsAvailable(); err != nil {
			logger.Get().Warn("keyring requested but not available, secrets stay in the settings file",
				"error", err)
		} else {
			cli.secrets = store
			opts = append(opts, config.WithSecretStore(store))
		}
	}

	cli.session = config.NewSession(path, cli.env, opts...)
	config.SetDefault(cli.session)
	return nil
}

// SetArgs sets the command line arguments, for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

// Execute runs the CLI.
func (cli *CLI) Execute(ctx context.Context) error {
	return cli.rootCmd.ExecuteContext(ctx)
}

// resolveQuiet resolves the session's settings without the "must log in
// first" warning, for commands that are about to change the credentials.
func (cli *CLI) resolveQuiet() (*config.Configuration, config.AuthState, error) {
	opts := []config.Option{config.WithLogger(discardLogger())}
	if cli.secrets != nil {
		opts = append(opts, config.WithSecretStore(cli.secrets))
	}
	return config.Resolve(cli.env, cli.session.Path(), opts...)
}
