package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xabinapal/tiledb-cloud/internal/utils"
)

// configPathOutput represents config path output for JSON.
type configPathOutput struct {
	SettingsFile string `json:"settings_file" yaml:"settings_file"`
	ConfigDir    string `json:"config_dir" yaml:"config_dir"`
	Exists       bool   `json:"exists" yaml:"exists"`
}

// configShowOutput is the effective configuration.
type configShowOutput struct {
	Host      string      `json:"host" yaml:"host"`
	APIKey    string      `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Username  string      `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string      `json:"password,omitempty" yaml:"password,omitempty"`
	VerifyTLS bool        `json:"verify_ssl" yaml:"verify_ssl"`
	AuthMode  string      `json:"auth_mode" yaml:"auth_mode"`
	Retries   retryOutput `json:"retries" yaml:"retries"`
}

type retryOutput struct {
	Total           int      `json:"total" yaml:"total"`
	BackoffFactor   string   `json:"backoff_factor" yaml:"backoff_factor"`
	MaxBackoff      string   `json:"max_backoff" yaml:"max_backoff"`
	StatusForcelist []int    `json:"status_forcelist" yaml:"status_forcelist"`
	AllowedMethods  []string `json:"allowed_methods" yaml:"allowed_methods"`
}

// newConfigCmd creates the config command group.
func (cli *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the tiledb-cloud configuration",
	}

	cmd.AddCommand(
		cli.newConfigPathCmd(),
		cli.newConfigShowCmd(),
	)

	return cmd
}

func (cli *CLI) newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := cli.session.Path()
			out := configPathOutput{
				SettingsFile: path,
				ConfigDir:    filepath.Dir(path),
			}
			if _, err := os.Stat(path); err == nil {
				out.Exists = true
			}

			return cli.write(out, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, out.SettingsFile)
				return err
			})
		},
	}
}

func (cli *CLI) newConfigShowCmd() *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after applying environment variables and the
settings file, including the retry policy used for requests. Secrets are
masked unless --show-secrets is given.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := cli.session.Ensure()
			if err != nil {
				return err
			}

			token, password := utils.Mask, utils.Redact
			if showSecrets {
				token = func(s string) string { return s }
				password = token
			}

			out := configShowOutput{
				Host:      cfg.Host,
				APIKey:    token(cfg.APIKey),
				Username:  cfg.Username,
				Password:  password(cfg.Password),
				VerifyTLS: cfg.VerifyTLS,
				AuthMode:  cfg.AuthMode().String(),
				Retries: retryOutput{
					Total:           cfg.Retries.Total,
					BackoffFactor:   cfg.Retries.BackoffFactor.String(),
					MaxBackoff:      cfg.Retries.MaxBackoff.String(),
					StatusForcelist: cfg.Retries.StatusForcelist,
					AllowedMethods:  cfg.Retries.AllowedMethods,
				},
			}

			return cli.write(out, func(w io.Writer) error {
				return renderTable(w, []string{"Key", "Value"}, configShowRows(&out))
			})
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print the API token and password in clear")

	return cmd
}

func configShowRows(out *configShowOutput) [][]string {
	statuses := make([]string, 0, len(out.Retries.StatusForcelist))
	for _, s := range out.Retries.StatusForcelist {
		statuses = append(statuses, strconv.Itoa(s))
	}

	return [][]string{
		{"host", out.Host},
		{"api_key", utils.OrDefault(out.APIKey, "-")},
		{"username", utils.OrDefault(out.Username, "-")},
		{"password", utils.OrDefault(out.Password, "-")},
		{"verify_ssl", strconv.FormatBool(out.VerifyTLS)},
		{"auth_mode", out.AuthMode},
		{"retries.total", strconv.Itoa(out.Retries.Total)},
		{"retries.backoff_factor", out.Retries.BackoffFactor},
		{"retries.max_backoff", out.Retries.MaxBackoff},
		{"retries.status_forcelist", strings.Join(statuses, ",")},
		{"retries.allowed_methods", strings.Join(out.Retries.AllowedMethods, ",")},
	}
}
