package cli

import (
	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/buildinfo"
	"github.com/jaenvtix/jaenvtix/pkg/config"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// Before any subcommand runs, the root command applies --verbose, loads the
// configuration file (--config, or the default location) and attaches the
// logger to the command context.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "jaenvtix installs verified JDKs for Maven projects",
		Long: `jaenvtix downloads JDK distributions, verifies their checksums, and extracts
them into a per-version layout under ~/.jaenvtix, falling back from native
tools to an in-process extractor to manual extraction when needed.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := LogInfo
			if c.verbose {
				level = LogDebug
			}
			c.SetLogLevel(level)

			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/jaenvtix/config.toml)")

	root.AddCommand(c.downloadCommand())
	root.AddCommand(c.extractCommand())
	root.AddCommand(c.provisionCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.mirrorCommand())
	root.AddCommand(c.pathsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
