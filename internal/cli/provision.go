package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jaenvtix/jaenvtix/pkg/provision"
	"github.com/jaenvtix/jaenvtix/pkg/retry"
)

// maxWholeRunAttempts bounds how often an interactive user can restart a
// failed download.
const maxWholeRunAttempts = 5

// provisionCommand creates the provision command.
func (c *CLI) provisionCommand() *cobra.Command {
	var (
		desc    provision.Descriptor
		sums    checksumFlags
		flags   extractFlags
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "provision --version <version> --url <url>",
		Short: "Download, verify and install a JDK",
		Long: `Provision installs a JDK distribution into <base>/jdk-<major>/<version>/.

A previously downloaded archive is reused when the artifact index still
vouches for it. When every download attempt fails and a terminal is attached,
you are asked whether to start over.`,
		Example: `  jaenvtix provision --version 21.0.2+13 \
    --url https://example.com/OpenJDK21U-jdk_x64_linux_hotspot_21.0.2_13.tar.gz \
    --checksum-url https://example.com/OpenJDK21U-jdk_x64_linux_hotspot_21.0.2_13.tar.gz.sha256.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			base, err := c.Config.Base()
			if err != nil {
				return err
			}
			policy, err := c.resolvePolicy(sums.policy)
			if err != nil {
				return err
			}
			desc.Checksum = sums.checksum
			desc.ChecksumURL = sums.checksumURL
			desc.Algorithm = sums.algorithm
			desc.OS = runtime.GOOS
			desc.Arch = runtime.GOARCH

			bar := newDownloadBar(os.Stderr, "Downloading JDK "+desc.Version)
			p := &provision.Provisioner{
				Base:       base,
				Downloader: c.newDownloader(),
				Extractor:  c.newExtractor(flags),
				Index:      c.openIndex(ctx, noCache),
				Policy:     policy,
				OnProgress: bar.Report,
				Logger:     logger,
			}
			if p.Index != nil {
				defer p.Index.Cache.Close()
			}
			if c.interactive {
				p.Retry = retry.Policy{MaxAttempts: maxWholeRunAttempts, BeforeRetry: confirmRetry}
			}

			prog := newProgress(logger)
			res, err := p.Provision(ctx, desc)
			bar.Finish()
			if err != nil {
				printExtractFailure(err)
				return err
			}

			switch {
			case res.Installed:
				printSuccess("JDK %s is already installed", StyleHighlight.Render(res.Version))
			default:
				printSuccess("Installed JDK %s in %s", StyleHighlight.Render(res.Version), prog.elapsed())
			}
			printKeyValue("JAVA_HOME", res.JavaHome)
			if res.Archive != "" {
				printKeyValue("Archive", res.Archive)
			}
			if !res.Installed {
				parts := []string{desc.OS + "/" + desc.Arch}
				if desc.Vendor != "" {
					parts = append([]string{desc.Vendor}, parts...)
				}
				printSummary(parts, res.Reused)
			}
			printNewline()
			printNextStep("Use it", fmt.Sprintf("export JAVA_HOME=%q", res.JavaHome))
			return nil
		},
	}

	cmd.Flags().StringVar(&desc.Version, "version", "", "Java version, e.g. 21.0.2+13 (required)")
	cmd.Flags().StringVar(&desc.URL, "url", "", "archive download URL (required)")
	cmd.Flags().StringVar(&desc.Vendor, "vendor", "", "distribution vendor, e.g. temurin")
	cmd.Flags().StringVar(&desc.License, "license", "", "distribution license")
	sums.register(cmd)
	cmd.Flags().BoolVar(&flags.noNative, "no-native", false, "skip the platform extraction tool")
	cmd.Flags().BoolVar(&flags.noManual, "no-manual", false, "never ask for manual extraction")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "ignore the artifact index")
	cmd.MarkFlagRequired("version")
	cmd.MarkFlagRequired("url")

	return cmd
}
