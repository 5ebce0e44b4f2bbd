package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/archive"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		format   string
		problems bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "List archive entries and their validation verdicts",
		Long: `Inspect parses <archive> with the built-in ZIP and TAR readers and prints
every entry with the verdict extraction would reach, without writing anything.
It exits non-zero when any entry would be rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := archive.Detect(args[0], format)
			if err != nil {
				return err
			}

			var entries []archive.Entry
			err = c.spinner(cmd.Context(), fmt.Sprintf("Reading %s...", args[0])).run(func() error {
				entries, err = archive.List(args[0], f)
				return err
			})
			if err != nil {
				return err
			}

			rejected := 0
			var total int64
			for _, e := range entries {
				total += e.Size
				if e.Problem != nil {
					rejected++
				}
			}

			shown := entries
			if problems {
				shown = nil
				for _, e := range entries {
					if e.Problem != nil {
						shown = append(shown, e)
					}
				}
			}
			if len(shown) > 0 {
				fmt.Println(renderEntries(shown))
			}
			printDetail("%s entries · %s · %s", StyleNumber.Render(strconv.Itoa(len(entries))), humanize.Bytes(uint64(total)), f)

			if rejected > 0 {
				printWarning("%d entries would be rejected", rejected)
				return errors.New(errors.ErrCodeInvalidInput, "%s has %d unsafe or unsupported entries", args[0], rejected)
			}
			printSuccess("All entries are safe to extract")
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "archive format: "+archive.FormatNames()+" (default: from extension)")
	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
	cmd.ValidArgsFunction = completeArchive
	cmd.Flags().BoolVar(&problems, "problems", false, "only list rejected entries")

	return cmd
}

// renderEntries formats entries as a table.
func renderEntries(entries []archive.Entry) string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		size := ""
		if !e.Dir {
			size = humanize.Bytes(uint64(e.Size))
		}
		verdict := "ok"
		if e.Problem != nil {
			verdict = string(errors.GetCode(e.Problem))
		}
		rows[i] = []string{e.Name, e.Kind, e.Mode.String(), size, verdict}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Name", "Kind", "Mode", "Size", "Verdict").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < 0 || row >= len(entries) {
				return base
			}
			if entries[row].Problem != nil {
				return base.Foreground(colorRed)
			}
			if col == 4 {
				return base.Foreground(colorGreen)
			}
			if col > 0 {
				return base.Foreground(colorGray)
			}
			return base
		})
	return t.Render()
}
