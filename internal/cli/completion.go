package cli

import (
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the completion command.
func (cli *CLI) newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for tiledb-cloud to standard output.

  bash:        source <(tiledb-cloud completion bash)
  zsh:         tiledb-cloud completion zsh > "${fpath[1]}/_tiledb-cloud"
  fish:        tiledb-cloud completion fish > ~/.config/fish/completions/tiledb-cloud.fish
  powershell:  tiledb-cloud completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// completion scripts do not need a session
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(cli.out, true)
			case "zsh":
				return root.GenZshCompletion(cli.out)
			case "fish":
				return root.GenFishCompletion(cli.out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(cli.out)
			}
			return nil
		},
	}
	return cmd
}
