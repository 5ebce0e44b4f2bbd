package cli

import (
	"runtime"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/layout"
)

// pathsCommand creates the paths command.
func (c *CLI) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths <version>",
		Short: "Print where a Java version is installed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := c.Config.Base()
			if err != nil {
				return err
			}
			p, err := layout.For(base, args[0], runtime.GOOS)
			if err != nil {
				return err
			}

			printKeyValue("Version", p.Version)
			printKeyValue("Major", StyleNumber.Render(strconv.Itoa(p.Major)))
			printKeyValue("JDK home", p.JDKHome)
			printKeyValue("Downloads", p.Downloads)
			printKeyValue("Maven", p.MavenWrapper)
			printKeyValue("mvnd", p.Mvnd)
			return nil
		},
	}
}
