// Package dialog bridges the controller's blocking picker calls and the
// Bubble Tea event loop. A picker call enqueues a Request and waits; the UI
// receives it as a RequestMsg, shows an overlay and resolves the request.
package dialog

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mindmark/tui/internal/config"
	"github.com/mindmark/tui/internal/docpath"
	"github.com/mindmark/tui/internal/session"
)

// ErrClosed is returned to pickers once the service is closed.
var ErrClosed = errors.New("dialog service closed")

// Kind selects the overlay to show.
type Kind int

const (
	KindOpen Kind = iota
	KindSave
)

// URI is a selection that names a resource by URI rather than by local
// path. The controller rejects it.
type URI string

func (u URI) String() string { return string(u) }

// Result is the answer to a Request. A nil Handle and nil Err means cancel.
type Result struct {
	Handle session.Handle
	Err    error
}

// Request is a pending picker call.
type Request struct {
	Kind        Kind
	DefaultName string
	Filter      session.Filter

	once  sync.Once
	reply chan Result
}

func newRequest(kind Kind, defaultName string, filter session.Filter) *Request {
	return &Request{Kind: kind, DefaultName: defaultName, Filter: filter, reply: make(chan Result, 1)}
}

// Resolve answers the request with h.
func (r *Request) Resolve(h session.Handle) { r.answer(Result{Handle: h}) }

// Cancel answers the request as cancelled.
func (r *Request) Cancel() { r.answer(Result{}) }

// Fail answers the request with err.
func (r *Request) Fail(err error) { r.answer(Result{Err: err}) }

// Only the first answer counts.
func (r *Request) answer(res Result) {
	r.once.Do(func() { r.reply <- res })
}

// RequestMsg delivers a Request to the UI.
type RequestMsg struct{ Request *Request }

// Service implements session.SourcePicker and session.DestinationPicker.
type Service struct {
	requests chan *Request
	done     chan struct{}
	close    sync.Once
}

// NewService creates a service.
func NewService() *Service {
	return &Service{
		requests: make(chan *Request),
		done:     make(chan struct{}),
	}
}

// ChooseSource asks the UI for a file to open.
func (s *Service) ChooseSource(ctx context.Context, filter session.Filter) (session.Handle, error) {
	return s.ask(ctx, newRequest(KindOpen, "", filter))
}

// ChooseDestination asks the UI where to save.
func (s *Service) ChooseDestination(ctx context.Context, defaultName string, filter session.Filter) (session.Handle, error) {
	return s.ask(ctx, newRequest(KindSave, defaultName, filter))
}

func (s *Service) ask(ctx context.Context, req *Request) (session.Handle, error) {
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	}
	select {
	case res := <-req.reply:
		return res.Handle, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	}
}

// Next returns a command that waits for the next request. Re-issue it after
// each RequestMsg.
func (s *Service) Next(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case req := <-s.requests:
			return RequestMsg{Request: req}
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}

// Close releases all waiting pickers.
func (s *Service) Close() {
	s.close.Do(func() { close(s.done) })
}

// ParseTyped interprets a path typed into the save overlay. Relative paths
// resolve against base, ~ expands to the home directory, and a name without
// an extension gets the filter's first extension. A URI with a scheme other
// than file is returned as a URI handle.
func ParseTyped(input, base string, filter session.Filter) session.Handle {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}
	if i := strings.Index(s, "://"); i > 0 {
		if !strings.EqualFold(s[:i], "file") {
			return URI(s)
		}
		u, err := url.Parse(s)
		if err != nil {
			return URI(s)
		}
		s = u.Path
	}
	s = config.ExpandHome(s)
	if !filepath.IsAbs(s) {
		s = filepath.Join(base, s)
	}
	p := docpath.New(s)
	if p.Ext() == "" && len(filter.Extensions) > 0 {
		p = p.WithExt(filter.Extensions[0])
	}
	return p
}
