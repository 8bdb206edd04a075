package commands

import (
	"github.com/spf13/cobra"
)

// NewCompletionCommand creates the completion command for shell completions
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion script for the layercatalog CLI.

To load completions:

Bash:

  $ source <(layercatalog completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ layercatalog completion bash > /etc/bash_completion.d/layercatalog
  # macOS:
  $ layercatalog completion bash > $(brew --prefix)/etc/bash_completion.d/layercatalog

Zsh:

  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ layercatalog completion zsh > "${fpath[1]}/_layercatalog"

  # You will need to start a new shell for this setup to take effect.

Fish:

  $ layercatalog completion fish | source

  # To load completions for each session, execute once:
  $ layercatalog completion fish > ~/.config/fish/completions/layercatalog.fish

PowerShell:

  PS> layercatalog completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> layercatalog completion powershell > layercatalog.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := args[0]
			out := cmd.OutOrStdout()
			root := cmd.Root()

			switch shell {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
