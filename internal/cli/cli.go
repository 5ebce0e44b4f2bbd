// Package cli implements the jaenvtix command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/jaenvtix/jaenvtix/pkg/buildinfo"
	"github.com/jaenvtix/jaenvtix/pkg/cache"
	"github.com/jaenvtix/jaenvtix/pkg/config"
	"github.com/jaenvtix/jaenvtix/pkg/download"
	"github.com/jaenvtix/jaenvtix/pkg/extract"
	"github.com/jaenvtix/jaenvtix/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "jaenvtix"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded by the root command before any subcommand runs.
	Config config.Config

	configPath  string
	verbose     bool
	interactive bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:      newLogger(w, level),
		Config:      config.Default(),
		interactive: isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// =============================================================================
// Component Factories
// =============================================================================

// newDownloader builds a downloader using the configured retry policy.
func (c *CLI) newDownloader() *download.Downloader {
	d := download.New(download.NewHTTPClient(), c.Logger)
	d.Retry = c.Config.RetryPolicy()
	d.UserAgent = appName + "/" + buildinfo.Version
	if c.verbose {
		d.Hooks = observability.NewLogHooks(c.Logger)
	}
	return d
}

// extractFlags are the per-invocation overrides of the [extract] table.
type extractFlags struct {
	noNative bool
	noManual bool
}

// newExtractor builds the strategy cascade. The manual strategy prompts
// only when stdin is a terminal.
func (c *CLI) newExtractor(f extractFlags) *extract.Extractor {
	cfg := extract.Config{
		Logger:   c.Logger,
		NoNative: f.noNative || !c.Config.Extract.Native,
		NoManual: f.noManual || !c.Config.Extract.Manual,
	}
	if c.interactive {
		cfg.Picker = folderPicker{}
	}
	if c.verbose {
		cfg.Hooks = observability.NewLogHooks(c.Logger)
	}
	return extract.New(cfg)
}

// openIndex opens the artifact index. Failing backends degrade to no
// reuse rather than failing the command.
func (c *CLI) openIndex(ctx context.Context, noCache bool) *cache.Index {
	if noCache || c.Config.Cache.Backend == cache.BackendNone {
		return nil
	}
	opts, err := c.Config.CacheOptions()
	if err != nil {
		c.Logger.Warn("artifact index disabled", "err", err)
		return nil
	}
	backend, err := cache.Open(ctx, opts)
	if err != nil {
		c.Logger.Warn("artifact index disabled", "err", err)
		return nil
	}
	ix := cache.NewIndex(backend, c.Logger)
	ix.TTL = c.Config.Cache.TTL.Std()
	if scope := c.Config.Cache.Scope; scope != "" {
		ix.Keyer = cache.NewScopedKeyer(cache.NewDefaultKeyer(), scope)
	}
	if c.verbose {
		ix.Hooks = observability.NewLogHooks(c.Logger)
	}
	return ix
}
