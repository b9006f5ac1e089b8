// Package saveas is the "save file" overlay: a single path input prefilled
// with a suggested name.
package saveas

import (
	"path/filepath"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mindmark/tui/internal/dialog"
	"github.com/mindmark/tui/internal/session"
	"github.com/mindmark/tui/internal/theme"
)

// Outcome reports what the overlay decided after an update.
type Outcome int

const (
	Pending Outcome = iota
	Confirmed
	Cancelled
)

// Model holds the save overlay state.
type Model struct {
	input  textinput.Model
	base   string
	filter session.Filter
	title  string
}

// New creates a save overlay. A non-empty defaultName is placed under base.
func New(base, defaultName string, filter session.Filter) Model {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = filepath.Join(base, "name"+firstExt(filter))
	in.Width = 60
	title := "Save as"
	if defaultName != "" {
		in.SetValue(filepath.Join(base, defaultName))
		in.CursorEnd()
		title = "Save"
	}
	in.Focus()
	return Model{input: in, base: base, filter: filter, title: title}
}

// Value returns the current input text.
func (m Model) Value() string { return m.input.Value() }

// Handle converts the input into a selection; nil when blank.
func (m Model) Handle() session.Handle {
	return dialog.ParseTyped(m.input.Value(), m.base, m.filter)
}

// Update handles editing, enter and esc.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd, Outcome) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.Type {
		case tea.KeyEsc, tea.KeyCtrlG:
			return m, nil, Cancelled
		case tea.KeyEnter:
			if m.Handle() == nil {
				return m, nil, Pending
			}
			return m, nil, Confirmed
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd, Pending
}

// View renders the overlay.
func (m Model) View() string {
	body := theme.StyleHeader.Render(m.title+" "+m.filter.Name) + "\n\n" +
		m.input.View() + "\n\n" +
		theme.StyleDimmed.Render("enter:save  esc:cancel")
	return theme.StyleDialog.Render(body)
}

func firstExt(f session.Filter) string {
	if len(f.Extensions) == 0 {
		return ""
	}
	return f.Extensions[0]
}
