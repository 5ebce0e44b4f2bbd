package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/errors"
	"github.com/jaenvtix/jaenvtix/pkg/mirror"
)

// mirrorCommand creates the mirror command.
func (c *CLI) mirrorCommand() *cobra.Command {
	var dir, addr string

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Serve a directory of JDK archives over HTTP",
		Long: `Mirror serves the archives in --dir so other machines can provision without
reaching vendor servers. Each archive is also available with a ".sha256"
suffix, which returns its digest in sidecar format for --checksum-url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if dir == "" {
				var err error
				if dir, err = c.Config.MirrorDir(); err != nil {
					return err
				}
			}
			if addr == "" {
				addr = c.Config.Mirror.Addr
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "create mirror directory")
			}

			printInfo("Serving %s", StyleValue.Render(dir))
			printDetail("Listening on %s", StyleLink.Render("http://"+addr+"/artifacts/"))
			printDetail("Press Ctrl+C to stop")

			return mirror.New(dir, logger).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory to serve (default from config, or <base>/mirror)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}
