// Package picker is the "open file" overlay: a filesystem browser
// restricted to the extensions of a filter.
package picker

import (
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mindmark/tui/internal/session"
	"github.com/mindmark/tui/internal/theme"
)

// Outcome reports what the overlay decided after an update.
type Outcome int

const (
	Pending Outcome = iota
	Selected
	Cancelled
)

var cancelKey = key.NewBinding(key.WithKeys("esc", "ctrl+g"), key.WithHelp("esc", "cancel"))

// Model wraps a bubbles file picker.
type Model struct {
	fp     filepicker.Model
	filter session.Filter
	// Path is set once Outcome is Selected.
	Path string
	// Notice is shown when the user tries to pick a file the filter excludes.
	Notice string
}

// chrome is the rows the overlay draws around the file list.
const chrome = 3

// New creates a picker rooted at dir that fits a screen height rows tall.
func New(dir string, filter session.Filter, showHidden bool, height int) Model {
	fp := filepicker.New()
	fp.CurrentDirectory = dir
	fp.AllowedTypes = filter.Extensions
	fp.ShowHidden = showHidden
	fp.ShowPermissions = false
	fp.ShowSize = true
	m := Model{fp: fp, filter: filter}
	m.SetHeight(height)
	return m
}

// SetHeight fits the file list to a screen height rows tall.
func (m *Model) SetHeight(height int) {
	m.fp, _ = m.fp.Update(tea.WindowSizeMsg{Height: max(height-chrome, 1)})
}

// Init reads the starting directory.
func (m Model) Init() tea.Cmd {
	return m.fp.Init()
}

// Update forwards msg to the file picker and reports the outcome.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd, Outcome) {
	if kmsg, ok := msg.(tea.KeyMsg); ok && key.Matches(kmsg, cancelKey) {
		return m, nil, Cancelled
	}
	var cmd tea.Cmd
	m.fp, cmd = m.fp.Update(msg)
	if ok, path := m.fp.DidSelectFile(msg); ok {
		m.Path = path
		return m, cmd, Selected
	}
	if ok, path := m.fp.DidSelectDisabledFile(msg); ok {
		m.Notice = path + " is not a " + strings.Join(m.filter.Extensions, "/") + " file"
	}
	return m, cmd, Pending
}

// View renders the overlay.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("Open " + m.filter.Name + " file"))
	b.WriteString("\n")
	b.WriteString(theme.StyleDimmed.Render(m.fp.CurrentDirectory))
	b.WriteString("\n\n")
	b.WriteString(m.fp.View())
	if m.Notice != "" {
		b.WriteString("\n" + theme.StyleError.Render(m.Notice))
	}
	b.WriteString("\n" + theme.StyleDimmed.Render("enter:open  h/←:up  esc:cancel"))
	return theme.StyleDialog.Render(b.String())
}
