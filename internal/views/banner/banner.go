// Package banner renders the status message line.
package banner

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mindmark/tui/internal/present"
	"github.com/mindmark/tui/internal/theme"
)

// Model holds the banner state. Busy animates a spinner in front of the text.
type Model struct {
	Banner present.Banner
	Busy   bool
	Width  int

	spin spinner.Model
}

// New creates a banner model.
func New() Model {
	s := spinner.New(spinner.WithSpinner(spinner.MiniDot))
	s.Style = theme.StyleInfo
	return Model{spin: s}
}

// Tick starts the spinner animation.
func (m Model) Tick() tea.Cmd {
	return m.spin.Tick
}

// Update advances the spinner while busy. Ticks stop when idle and are
// restarted with Tick.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return m, nil
	}
	if !m.Busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.spin, cmd = m.spin.Update(msg)
	return m, cmd
}

// View renders the banner, or an empty line when there is nothing to show.
func (m Model) View() string {
	if m.Banner.Text == "" && !m.Busy {
		return ""
	}
	kind := m.Banner.Kind.String()
	prefix := theme.BannerGlyph(kind)
	if m.Busy {
		prefix = m.spin.View()
	}
	style := lipgloss.NewStyle().Foreground(theme.BannerColor(kind))
	if m.Width > 4 {
		style = style.MaxWidth(m.Width)
	}
	return style.Render(prefix + " " + m.Banner.Text)
}
