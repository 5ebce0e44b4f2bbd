package cli

import (
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/archive"
	"github.com/jaenvtix/jaenvtix/pkg/extract"
)

// extractCommand creates the extract command.
func (c *CLI) extractCommand() *cobra.Command {
	var (
		format string
		flags  extractFlags
	)

	cmd := &cobra.Command{
		Use:   "extract <archive> <dest>",
		Short: "Extract an archive through the strategy cascade",
		Long: `Extract unpacks <archive> into <dest>. It tries the platform tool first
(tar, unzip or PowerShell), then the built-in extractor, and finally asks you
to extract the archive by hand and pick the resulting folder.

Every entry is validated before anything is written: absolute names,
".." components and links are rejected.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			ex := c.newExtractor(flags)
			logger.Debug("extracting", "archive", args[0], "strategies", ex.Strategies())

			prog := newProgress(logger)
			dir, err := ex.Extract(ctx, args[0], args[1], format)
			if err != nil {
				printExtractFailure(err)
				return err
			}
			prog.done("Extraction complete")

			printSuccess("Extracted %s", StyleHighlight.Render(args[0]))
			printFile(dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "archive format: "+archive.FormatNames()+" (default: from extension)")
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
	cmd.ValidArgsFunction = completeExtractArgs
	cmd.Flags().BoolVar(&flags.noNative, "no-native", false, "skip the platform extraction tool")
	cmd.Flags().BoolVar(&flags.noManual, "no-manual", false, "never ask for manual extraction")

	return cmd
}

// printExtractFailure lists each strategy's failure.
func printExtractFailure(err error) {
	var agg *extract.AggregateError
	if !stderrors.As(err, &agg) {
		return
	}
	printError("All extraction strategies failed")
	for _, cause := range agg.Causes {
		var se *extract.StrategyError
		if stderrors.As(cause, &se) {
			printDetail("%s: %v", se.Strategy, se.Err)
			continue
		}
		printDetail("%v", cause)
	}
}
