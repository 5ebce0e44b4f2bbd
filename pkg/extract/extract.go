// Package extract unpacks JDK archives into a destination directory.
//
// Extraction runs a fixed cascade of strategies and stops at the first one
// that succeeds:
//
//  1. native: the platform archiver (tar, unzip, or Expand-Archive)
//  2. in-process: the parsers in [archive], no external process
//  3. manual: a [FolderPicker] asks a human for an already-extracted folder
//
// Every archive entry is validated before any strategy writes to the
// filesystem, and the first two strategies write into a private temporary
// directory inside the destination that is only merged into the
// destination after the strategy succeeds. When every strategy fails the
// returned [*AggregateError] lists each failure in order.
//
// # Usage
//
//	x := extract.New(extract.Config{Logger: logger})
//	home, err := x.Extract(ctx, "/dl/jdk-21.tar.gz", "/opt/jdk-21/21.0.2", "")
package extract

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jaenvtix/jaenvtix/pkg/archive"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
	"github.com/jaenvtix/jaenvtix/pkg/observability"
)

// Config wires the collaborators of an [Extractor]. The zero value is
// usable: commands run through os/exec and the manual fallback declines.
type Config struct {
	// Runner starts the platform archiver (ExecRunner if nil).
	Runner CommandRunner

	// Picker asks for an already-extracted folder (declines if nil).
	Picker FolderPicker

	// Logger receives strategy failures (log.Default() if nil).
	Logger *log.Logger

	// Hooks observes each strategy (no-op if nil).
	Hooks observability.ExtractHooks

	// NoNative skips the platform archiver.
	NoNative bool

	// NoManual skips the manual fallback.
	NoManual bool

	// GOOS selects the native command set (runtime.GOOS if empty).
	GOOS string
}

// Job is one extraction request as seen by a [Strategy].
type Job struct {
	Archive string
	Format  archive.Format
	// Dest is the absolute, existing destination directory.
	Dest string
}

// Strategy is one step of the cascade.
type Strategy interface {
	// Name is the short label used in logs and aggregate errors.
	Name() string

	// Extract materializes the job and returns the directory holding the
	// extracted tree.
	Extract(ctx context.Context, job Job) (string, error)
}

// Extractor runs the strategy cascade.
type Extractor struct {
	strategies []Strategy
	logger     *log.Logger
	hooks      observability.ExtractHooks
}

// New builds an Extractor from cfg.
func New(cfg Config) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	var strategies []Strategy
	if !cfg.NoNative {
		runner := cfg.Runner
		if runner == nil {
			runner = ExecRunner{}
		}
		goos := cfg.GOOS
		if goos == "" {
			goos = runtime.GOOS
		}
		strategies = append(strategies, &NativeStrategy{Runner: runner, GOOS: goos, Logger: logger})
	}
	strategies = append(strategies, &InProcessStrategy{Logger: logger})
	if !cfg.NoManual {
		picker := cfg.Picker
		if picker == nil {
			picker = DeclinePicker{}
		}
		strategies = append(strategies, &ManualStrategy{Picker: picker})
	}
	return NewWithStrategies(logger, cfg.Hooks, strategies...)
}

// NewWithStrategies builds an Extractor around an explicit cascade.
func NewWithStrategies(logger *log.Logger, hooks observability.ExtractHooks, strategies ...Strategy) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{strategies: strategies, logger: logger, hooks: observability.Extract(hooks)}
}

// Strategies returns the names of the configured strategies in order.
func (x *Extractor) Strategies() []string {
	names := make([]string, len(x.strategies))
	for i, s := range x.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract unpacks archivePath into dest and returns the directory holding
// the result: the absolute destination, or the folder chosen by the manual
// fallback. hint, when non-empty, overrides format detection by extension.
//
// Strategies are not cancellable once started; ctx is checked before the
// cascade begins and is handed to the manual picker.
func (x *Extractor) Extract(ctx context.Context, archivePath, dest, hint string) (string, error) {
	format, err := archive.Detect(archivePath, hint)
	if err != nil {
		return "", err
	}
	if dest == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "extraction destination is required")
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve destination %s", dest)
	}
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(errors.ErrCodeAborted, err, "extraction aborted")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "create destination %s", abs)
	}

	job := Job{Archive: archivePath, Format: format, Dest: abs}
	name := filepath.Base(archivePath)
	agg := &AggregateError{Archive: name}
	for _, s := range x.strategies {
		x.hooks.OnStrategyStart(ctx, s.Name(), name)
		start := time.Now()
		out, err := s.Extract(ctx, job)
		x.hooks.OnStrategyComplete(ctx, s.Name(), name, time.Since(start), err)
		if err == nil {
			x.logger.Debug("extraction complete", "archive", name, "strategy", s.Name(), "path", out)
			return out, nil
		}
		x.logger.Warn(s.Name()+" extraction failed", "archive", name, "err", err)
		agg.Causes = append(agg.Causes, &StrategyError{Strategy: s.Name(), Err: err})
	}
	return "", agg
}

// Extract runs the default cascade once.
func Extract(ctx context.Context, archivePath, dest, hint string) (string, error) {
	return New(Config{}).Extract(ctx, archivePath, dest, hint)
}
