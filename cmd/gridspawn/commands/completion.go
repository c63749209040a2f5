package commands

import (
	"github.com/spf13/cobra"
)

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:
  $ source <(gridspawn completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ gridspawn completion bash > /etc/bash_completion.d/gridspawn
  # macOS:
  $ gridspawn completion bash > /usr/local/etc/bash_completion.d/gridspawn

Zsh:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  $ gridspawn completion zsh > "${fpath[1]}/_gridspawn"

Fish:
  $ gridspawn completion fish > ~/.config/fish/completions/gridspawn.fish
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Completion needs no settings.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletionV2(out, true)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
