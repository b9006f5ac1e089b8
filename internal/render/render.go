// Package render displays markdown in the terminal using glamour.
package render

import (
	"fmt"
	"log"
	"sync"

	"github.com/charmbracelet/glamour"
)

const (
	StyleAuto  = "auto"
	StyleNoTTY = "notty"

	DefaultWordWrap = 80
	minWordWrap     = 20
)

// Renderer converts markdown to styled terminal text. Render never fails;
// when glamour returns an error the raw markdown is shown instead.
type Renderer struct {
	style string

	mu       sync.Mutex
	wrap     int
	term     *glamour.TermRenderer
	lastIn   string
	lastOut  string
	lastWrap int
}

// New creates a renderer with the given style (a glamour standard style
// name, "auto", or a path to a JSON style file) and word-wrap width.
func New(style string, wrap int) (*Renderer, error) {
	if style == "" {
		style = StyleAuto
	}
	r := &Renderer{style: style}
	if err := r.build(clampWrap(wrap)); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) build(wrap int) error {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap), glamour.WithEmoji()}
	if r.style == StyleAuto {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStylePath(r.style))
	}
	term, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("render: style %q: %w", r.style, err)
	}
	r.term = term
	r.wrap = wrap
	return nil
}

// SetWidth changes the word-wrap width. Keeps the previous renderer if the
// new one cannot be built.
func (r *Renderer) SetWidth(width int) {
	width = clampWrap(width)
	r.mu.Lock()
	defer r.mu.Unlock()
	if width == r.wrap {
		return
	}
	if err := r.build(width); err != nil {
		log.Printf("render: resize to %d: %v", width, err)
	}
}

// Width returns the current word-wrap width.
func (r *Renderer) Width() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wrap
}

// Render returns markdown rendered for display.
func (r *Renderer) Render(markdown string) string {
	if markdown == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if markdown == r.lastIn && r.wrap == r.lastWrap {
		return r.lastOut
	}
	out, err := r.term.Render(markdown)
	if err != nil {
		log.Printf("render: %v", err)
		out = markdown
	}
	r.lastIn, r.lastOut, r.lastWrap = markdown, out, r.wrap
	return out
}

func clampWrap(w int) int {
	if w <= 0 {
		return DefaultWordWrap
	}
	if w < minWordWrap {
		return minWordWrap
	}
	return w
}
