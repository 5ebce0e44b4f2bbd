package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaenvtix/jaenvtix/pkg/buildinfo"
	"github.com/jaenvtix/jaenvtix/pkg/errors"
)

// newTestCLI returns a non-interactive CLI that logs nowhere.
func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	c := New(io.Discard, LogInfo)
	c.interactive = false
	return c
}

// writeConfig writes a config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newTestCLI(t).RootCommand()

	want := []string{"download", "extract", "provision", "inspect", "mirror", "paths", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRootLoadsConfig(t *testing.T) {
	c := newTestCLI(t)
	base := t.TempDir()
	root := c.RootCommand()
	root.SetArgs([]string{"--config", writeConfig(t, "base_dir = "+quote(base)), "paths", "17.0.9"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if c.Config.BaseDir != base {
		t.Errorf("Config.BaseDir = %q, want %q", c.Config.BaseDir, base)
	}
}

func TestRootRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.toml") }},
		{"invalid", func(t *testing.T) string { return writeConfig(t, "[checksum]\npolicy = \"sometimes\"") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newTestCLI(t).RootCommand()
			root.SetArgs([]string{"--config", tt.path(t), "paths", "21"})
			root.SetErr(io.Discard)
			if err := root.Execute(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Execute() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestVersionFlag(t *testing.T) {
	root := newTestCLI(t).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), buildinfo.Version) {
		t.Errorf("version output %q does not mention %q", out.String(), buildinfo.Version)
	}
}

func TestVerboseSetsDebugLevel(t *testing.T) {
	c := newTestCLI(t)
	root := c.RootCommand()
	root.SetArgs([]string{"-v", "paths", "21"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if c.Logger.GetLevel() != LogDebug {
		t.Errorf("level = %v, want debug", c.Logger.GetLevel())
	}
}

// quote renders s as a TOML literal string.
func quote(s string) string {
	return "'" + s + "'"
}
