// Package preview shows the rendered markdown in a scrollable pane. Scroll
// jumps are eased with a critically damped spring.
package preview

import (
	"math"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/mindmark/tui/internal/theme"
)

const fps = 60

// FrameMsg advances the scroll animation.
type FrameMsg struct{}

// Model is the preview pane.
type Model struct {
	vp     viewport.Model
	spring harmonica.Spring

	pos, vel  float64
	target    float64
	animating bool
}

// New creates a preview pane of the given size.
func New(width, height int) Model {
	return Model{
		vp:     viewport.New(width, height),
		spring: harmonica.NewSpring(harmonica.FPS(fps), 8.0, 1.0),
	}
}

// SetSize resizes the pane and keeps the scroll position in range.
func (m *Model) SetSize(width, height int) {
	m.vp.Width = width
	m.vp.Height = height
	m.target = m.clamp(m.target)
	m.pos = m.target
	m.vp.SetYOffset(int(m.pos))
}

// SetContent replaces the content. placeholder content is dimmed. The pane
// returns to the top when the content changes.
func (m *Model) SetContent(content string, placeholder bool) {
	if placeholder {
		content = theme.StyleDimmed.Render(content)
	}
	m.vp.SetContent(content)
	m.pos, m.vel, m.target = 0, 0, 0
	m.animating = false
	m.vp.SetYOffset(0)
}

// ScrollBy moves the scroll target by n lines.
func (m *Model) ScrollBy(n int) tea.Cmd {
	m.target = m.clamp(m.target + float64(n))
	return m.animate()
}

// PageDown scrolls by one page.
func (m *Model) PageDown() tea.Cmd { return m.ScrollBy(m.vp.Height) }

// PageUp scrolls back by one page.
func (m *Model) PageUp() tea.Cmd { return m.ScrollBy(-m.vp.Height) }

// Top scrolls to the first line.
func (m *Model) Top() tea.Cmd {
	m.target = 0
	return m.animate()
}

// Bottom scrolls to the last page.
func (m *Model) Bottom() tea.Cmd {
	m.target = m.maxOffset()
	return m.animate()
}

// Target returns the line the pane is scrolling towards.
func (m Model) Target() int { return int(m.target) }

// Offset returns the current top line.
func (m Model) Offset() int { return m.vp.YOffset }

func (m *Model) animate() tea.Cmd {
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg { return FrameMsg{} })
}

// Update steps the spring on each frame until it settles.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok || !m.animating {
		return m, nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if math.Abs(m.pos-m.target) < 0.5 && math.Abs(m.vel) < 0.5 {
		m.pos, m.vel = m.target, 0
		m.animating = false
	}
	m.vp.SetYOffset(int(math.Round(m.pos)))
	if !m.animating {
		return m, nil
	}
	return m, frame()
}

// View renders the pane.
func (m Model) View() string {
	return m.vp.View()
}

func (m Model) maxOffset() float64 {
	return math.Max(0, float64(m.vp.TotalLineCount()-m.vp.Height))
}

func (m Model) clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), m.maxOffset())
}
