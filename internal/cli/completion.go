package cli

import (
	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/archive"
	"github.com/jaenvtix/jaenvtix/pkg/checksum"
)

// completionCommand emits a completion script for the requested shell.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for jaenvtix.

Completions cover subcommands, the --format values accepted by extract
and inspect, the --policy and --algorithm values accepted by download,
and archive paths.

  $ source <(jaenvtix completion bash)
  $ jaenvtix completion zsh > "${fpath[1]}/_jaenvtix"
  $ jaenvtix completion fish > ~/.config/fish/completions/jaenvtix.fish
  PS> jaenvtix completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeFormats offers the archive formats the extractor understands.
func completeFormats(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, 0, len(archive.Formats))
	for _, f := range archive.Formats {
		names = append(names, f.String())
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func completePolicies(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(checksum.Strict) + "\trefuse downloads without a digest",
		string(checksum.BestEffort) + "\twarn and continue without a digest",
	}, cobra.ShellCompDirectiveNoFileComp
}

func completeAlgorithms(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(checksum.SHA256), string(checksum.SHA512), string(checksum.SHA1), string(checksum.MD5),
	}, cobra.ShellCompDirectiveNoFileComp
}

var archiveExtensions = []string{"zip", "tar", "gz", "tgz"}

// completeArchive completes the single archive argument of inspect.
func completeArchive(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return archiveExtensions, cobra.ShellCompDirectiveFilterFileExt
}

// completeExtractArgs completes an archive, then a destination directory.
func completeExtractArgs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return archiveExtensions, cobra.ShellCompDirectiveFilterFileExt
	case 1:
		return nil, cobra.ShellCompDirectiveFilterDirs
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
