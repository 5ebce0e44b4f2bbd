package cli

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jaenvtix/jaenvtix/pkg/download"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m tea.Model, keys ...string) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(key(k))
	}
	return m, cmd
}

func TestFolderModel(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"b-jdk", "a-jdk/bin", ".hidden"} {
		os.MkdirAll(filepath.Join(root, d), 0o755)
	}
	os.WriteFile(filepath.Join(root, "notes.txt"), nil, 0o644)

	m := NewFolderModel(root)
	if want := []string{parentEntry, "a-jdk", "b-jdk"}; !slices.Equal(m.Entries, want) {
		t.Fatalf("Entries = %v, want %v", m.Entries, want)
	}

	t.Run("descend and select", func(t *testing.T) {
		final, cmd := press(m, "down", "enter", "s")
		fm := final.(FolderModel)
		if want := filepath.Join(root, "a-jdk"); fm.Selected != want {
			t.Errorf("Selected = %q, want %q", fm.Selected, want)
		}
		if cmd == nil {
			t.Error("selecting should quit the program")
		}
	})

	t.Run("back to parent", func(t *testing.T) {
		final, _ := press(m, "down", "enter", "backspace")
		if fm := final.(FolderModel); fm.Dir != root {
			t.Errorf("Dir = %q, want %q", fm.Dir, root)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		final, cmd := press(m, "esc")
		if fm := final.(FolderModel); fm.Selected != "" || cmd == nil {
			t.Errorf("cancel: Selected = %q, quit = %v", fm.Selected, cmd != nil)
		}
	})

	t.Run("cursor bounds", func(t *testing.T) {
		final, _ := press(m, "up", "down", "down", "down", "down")
		if fm := final.(FolderModel); fm.Cursor != 2 {
			t.Errorf("Cursor = %d, want 2", fm.Cursor)
		}
	})

	if v := m.View(); v == "" {
		t.Error("View() is empty")
	}
}

func TestConfirmModel(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"y", true},
		{"Y", true},
		{"n", false},
		{"enter", false},
		{"esc", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			final, cmd := press(ConfirmModel{Question: "Retry?"}, tt.key)
			if got := final.(ConfirmModel).Confirmed; got != tt.want {
				t.Errorf("Confirmed = %v, want %v", got, tt.want)
			}
			if cmd == nil {
				t.Error("answering should quit the program")
			}
		})
	}

	final, cmd := press(ConfirmModel{}, "x")
	if final.(ConfirmModel).Confirmed || cmd != nil {
		t.Error("unrelated keys should be ignored")
	}
}

func TestDownloadBar(t *testing.T) {
	bar := newDownloadBar(io.Discard, "Downloading")
	bar.Finish()

	bar.Report(download.Progress{Downloaded: 10, Total: 100, Percentage: 10})
	bar.Report(download.Progress{Downloaded: 100, Total: 100, Percentage: 100})
	bar.Report(download.Progress{Downloaded: 5, Total: 100, Percentage: 5})
	bar.Finish()

	unknown := newDownloadBar(io.Discard, "Downloading")
	unknown.Report(download.Progress{Downloaded: 42})
	unknown.Finish()
}
