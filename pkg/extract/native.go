package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jaenvtix/jaenvtix/pkg/archive"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// CommandRunner starts an external process and waits for it. A non-nil
// error means the command could not start or exited non-zero.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// RunnerFunc adapts a function to [CommandRunner].
type RunnerFunc func(ctx context.Context, name string, args ...string) error

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) error {
	return f(ctx, name, args...)
}

// ExecRunner runs commands with os/exec and reports their stderr on failure.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// NativeStrategy unpacks with the platform archiver.
type NativeStrategy struct {
	Runner CommandRunner
	GOOS   string
	Logger *log.Logger
}

func (s *NativeStrategy) Name() string { return "native" }

func (s *NativeStrategy) Extract(ctx context.Context, job Job) (string, error) {
	// The tool never sees an archive whose names could leave the root.
	if _, err := archive.NewRoot(job.Dest); err != nil {
		return "", err
	}
	if err := archive.ValidateForTool(job.Archive, job.Format); err != nil {
		return "", err
	}

	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	ws, err := newWorkspace(job.Dest, logger)
	if err != nil {
		return "", err
	}
	defer ws.remove()

	name, args := NativeCommand(s.GOOS, job.Format, job.Archive, ws.dir)
	logger.Debug("running native archiver", "cmd", name, "args", strings.Join(args, " "))
	if err := s.Runner.Run(context.WithoutCancel(ctx), name, args...); err != nil {
		return "", errors.Wrap(errors.ErrCodeExtraction, err, "%s", name)
	}
	if err := ws.promote(); err != nil {
		return "", err
	}
	return job.Dest, nil
}

// NativeCommand returns the archiver invocation that unpacks archivePath
// into dir on goos.
func NativeCommand(goos string, format archive.Format, archivePath, dir string) (string, []string) {
	switch format {
	case archive.Tar:
		return "tar", []string{"-xf", archivePath, "-C", dir}
	case archive.TarGz:
		return "tar", []string{"-xzf", archivePath, "-C", dir}
	}
	if goos == "windows" {
		script := fmt.Sprintf("Expand-Archive -LiteralPath %s -DestinationPath %s -Force",
			psQuote(archivePath), psQuote(dir))
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	}
	return "unzip", []string{"-qq", "-d", dir, "--", archivePath}
}

// psQuote single-quotes s for PowerShell.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
