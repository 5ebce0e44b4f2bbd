package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the verified artifact index",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheForgetCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every recorded archive",
		Long:  "Clear drops the index records. Downloaded archives stay on disk.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.Config.CacheOptions()
			if err != nil {
				return err
			}
			if opts.Backend == cache.BackendNone {
				printInfo("Artifact index is disabled")
				return nil
			}

			backend, err := cache.Open(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("open artifact index: %w", err)
			}
			defer backend.Close()

			clearer, ok := backend.(cache.Clearer)
			if !ok {
				return fmt.Errorf("backend %q cannot be cleared", opts.Backend)
			}
			count, err := clearer.Clear(cmd.Context())
			if err != nil {
				return err
			}

			printSuccess("Cleared %d index records", count)
			printDetail("Backend: %s", backendLabel(opts))
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the artifact index location",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.Config.CacheOptions()
			if err != nil {
				return err
			}
			fmt.Println(backendLabel(opts))
			return nil
		},
	}
}

// cacheForgetCommand creates the "cache forget" subcommand.
func (c *CLI) cacheForgetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <url>",
		Short: "Forget the archive recorded for one URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ix := c.openIndex(cmd.Context(), false)
			if ix == nil {
				printInfo("Artifact index is disabled")
				return nil
			}
			defer ix.Cache.Close()

			if err := ix.Forget(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Forgot %s", StyleLink.Render(args[0]))
			return nil
		},
	}
}

func backendLabel(opts cache.Options) string {
	switch opts.Backend {
	case cache.BackendRedis:
		return "redis://" + opts.RedisAddr
	case cache.BackendNone:
		return "disabled"
	}
	return opts.Dir
}
