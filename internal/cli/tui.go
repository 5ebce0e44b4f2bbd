package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	listTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorTeal)
)

const parentEntry = ".."

// =============================================================================
// FolderModel - Interactive folder selection for manual extraction
// =============================================================================

// FolderModel is the bubbletea model for browsing to the folder a user
// extracted an archive into.
type FolderModel struct {
	Dir     string
	Entries []string
	Cursor  int
	Height  int
	Offset  int

	// Selected is set when the user picks a folder.
	Selected string
	Err      error
}

// NewFolderModel creates a folder browser rooted at dir.
func NewFolderModel(dir string) FolderModel {
	m := FolderModel{Height: 15}
	return m.open(dir)
}

// open lists the subdirectories of dir, skipping hidden ones.
func (m FolderModel) open(dir string) FolderModel {
	entries, err := os.ReadDir(dir)
	if err != nil {
		m.Err = err
		return m
	}
	names := []string{}
	if parent := filepath.Dir(dir); parent != dir {
		names = append(names, parentEntry)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, e.Name())
		}
	}
	slices.Sort(dirs)

	m.Dir = dir
	m.Entries = append(names, dirs...)
	m.Cursor = 0
	m.Offset = 0
	m.Err = nil
	return m
}

func (m FolderModel) Init() tea.Cmd {
	return nil
}

func (m FolderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", "right", "l":
			if len(m.Entries) == 0 {
				return m, nil
			}
			name := m.Entries[m.Cursor]
			if name == parentEntry {
				return m.open(filepath.Dir(m.Dir)), nil
			}
			return m.open(filepath.Join(m.Dir, name)), nil
		case "backspace", "left", "h":
			return m.open(filepath.Dir(m.Dir)), nil
		case "s", " ":
			m.Selected = m.Dir
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m FolderModel) View() string {
	var b strings.Builder

	b.WriteString(listTitleStyle.Render("Select Extracted Folder"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ open  ← up  s select this folder  q cancel"))
	b.WriteString("\n\n")
	b.WriteString(StyleValue.Render(m.Dir))
	b.WriteString("\n")
	if m.Err != nil {
		b.WriteString(StyleWarning.Render(m.Err.Error()))
		b.WriteString("\n")
	}

	end := min(m.Offset+m.Height, len(m.Entries))
	for i := m.Offset; i < end; i++ {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := cursor + m.Entries[i] + string(filepath.Separator)
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.Entries) == 0 {
		b.WriteString(listDimStyle.Render("  (no subfolders)"))
		b.WriteString("\n")
	}
	return b.String()
}

// folderPicker asks the user to extract an archive by hand and browse to
// the result. It implements extract.FolderPicker.
type folderPicker struct{}

func (folderPicker) PickFolder(ctx context.Context, archivePath, dest string) (string, bool, error) {
	printNewline()
	printWarning("Automatic extraction failed")
	printInfo("Extract %s manually, then select the folder it produced", StyleHighlight.Render(filepath.Base(archivePath)))
	printDetail("Archive: %s", archivePath)
	printNewline()

	final, err := tea.NewProgram(NewFolderModel(dest), tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", false, err
	}
	fm, ok := final.(FolderModel)
	if !ok || fm.Selected == "" {
		return "", false, nil
	}
	return fm.Selected, true, nil
}

// =============================================================================
// ConfirmModel - Yes/no prompt
// =============================================================================

// ConfirmModel asks a yes/no question. Anything but an explicit yes
// declines.
type ConfirmModel struct {
	Question  string
	Detail    string
	Confirmed bool
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "y", "Y":
			m.Confirmed = true
			return m, tea.Quit
		case "n", "N", "enter", "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	var b strings.Builder
	if m.Detail != "" {
		b.WriteString(StyleDim.Render(m.Detail))
		b.WriteString("\n")
	}
	b.WriteString(StyleWarning.Render(iconWarning) + " " + m.Question + " " + listDimStyle.Render("[y/N]"))
	b.WriteString("\n")
	return b.String()
}

// confirmRetry is a retry.Policy BeforeRetry gate that asks the user
// whether to start the download over.
func confirmRetry(ctx context.Context, err error, nextAttempt int) (bool, error) {
	m := ConfirmModel{
		Question: fmt.Sprintf("Download failed. Start attempt %d?", nextAttempt),
		Detail:   err.Error(),
	}
	final, runErr := tea.NewProgram(m, tea.WithContext(ctx), tea.WithOutput(os.Stderr)).Run()
	if runErr != nil {
		return false, runErr
	}
	cm, ok := final.(ConfirmModel)
	return ok && cm.Confirmed, nil
}
