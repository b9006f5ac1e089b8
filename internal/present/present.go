// Package present projects a session snapshot onto what the UI shows.
package present

import (
	"github.com/mindmark/tui/internal/session"
)

// Placeholder is shown in the preview when there is no output.
const Placeholder = "Markdown preview appears here after conversion"

// Renderer turns markdown into displayable text.
type Renderer interface {
	Render(markdown string) string
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(string) string

func (f RendererFunc) Render(md string) string { return f(md) }

// Banner is the status line.
type Banner struct {
	Text string
	Kind session.Kind
}

// Affordances is everything the UI needs to draw one frame.
type Affordances struct {
	Banner  Banner
	Source  string
	Preview string
	// Empty is true when Preview holds the placeholder.
	Empty bool

	CanConvert bool
	CanExport  bool
	Converting bool
	Exporting  bool
	Selecting  bool
}

// Render computes the affordances for s. It has no side effects beyond
// calling r.
func Render(s session.Snapshot, r Renderer) Affordances {
	a := Affordances{
		Banner:     Banner{Text: s.Status.Text, Kind: s.Status.Kind},
		CanConvert: s.HasSource(),
		CanExport:  s.HasOutput(),
		Converting: s.InFlight(session.OpConvert),
		Exporting:  s.InFlight(session.OpExport),
		Selecting:  s.InFlight(session.OpSelect),
	}
	if s.HasSource() {
		a.Source = s.Source.Base()
	}
	if s.HasOutput() && r != nil {
		a.Preview = r.Render(s.Output)
	} else if s.HasOutput() {
		a.Preview = s.Output
	} else {
		a.Preview = Placeholder
		a.Empty = true
	}
	return a
}
