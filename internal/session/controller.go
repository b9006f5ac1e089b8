package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/mindmark/tui/internal/docpath"
)

// SourceExt is the mind-map extension accepted as a source document.
const SourceExt = ".xmind"

// Banner texts for non-error outcomes.
const (
	MsgConverting = "Converting…"
	MsgConverted  = "Conversion succeeded"
	MsgSavedFmt   = "Saved: "
)

// ErrStale is returned by Convert and the exports when the source or its
// output changed while the operation was pending. The result is discarded.
var ErrStale = errors.New("source changed while pending; result discarded")

// Filter restricts a picker to files with one of Extensions.
type Filter struct {
	Name       string
	Extensions []string
}

// Match reports whether name carries one of the filter's extensions. An
// empty filter matches everything.
func (f Filter) Match(name string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	for _, ext := range f.Extensions {
		if docpath.HasExt(name, ext) {
			return true
		}
	}
	return false
}

// Filters used by the controller.
var (
	SourceFilter   = Filter{Name: "XMind", Extensions: []string{SourceExt}}
	MarkdownFilter = Filter{Name: "Markdown", Extensions: []string{".md"}}
)

// Handle is an opaque selection returned by a picker. Only docpath.Path is
// accepted as a plain filesystem path; every other kind is rejected.
type Handle interface {
	String() string
}

// SourcePicker asks the user for a source document. A nil Handle with a nil
// error means the user cancelled.
type SourcePicker interface {
	ChooseSource(ctx context.Context, filter Filter) (Handle, error)
}

// DestinationPicker asks the user where to save. defaultName may be empty.
// A nil Handle with a nil error means the user cancelled.
type DestinationPicker interface {
	ChooseDestination(ctx context.Context, defaultName string, filter Filter) (Handle, error)
}

// Converter turns a source document into markdown.
type Converter interface {
	Convert(ctx context.Context, src docpath.Path) (string, error)
}

// Writer persists markdown to dest.
type Writer interface {
	Write(ctx context.Context, dest docpath.Path, content string) error
}

// Opener opens a saved file with the host's default handler.
type Opener interface {
	Open(ctx context.Context, dest docpath.Path) error
}

// Gate reports whether privileged host operations are usable.
type Gate interface {
	Ready() bool
}

// Collaborators bundles the external services the controller drives.
type Collaborators struct {
	Sources      SourcePicker
	Destinations DestinationPicker
	Converter    Converter
	Writer       Writer
	Opener       Opener
}

// DroppedItem is a file dropped onto the application.
type DroppedItem struct {
	// Name is the file name as reported by the host.
	Name string
	// Path is the resolved local path, empty when the host could not
	// provide one.
	Path string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithObserver registers fn to receive a Snapshot after every mutation.
// fn runs with the controller locked and must not block or call back into
// the controller.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observer = fn }
}

// WithOpenAfterSave controls whether ExportDefault opens the saved file.
func WithOpenAfterSave(open bool) Option {
	return func(c *Controller) { c.openAfterSave = open }
}

// Controller owns the session and exposes the user actions over it.
type Controller struct {
	gate          Gate
	collab        Collaborators
	observer      func(Snapshot)
	openAfterSave bool

	mu sync.Mutex
	st state
}

// New creates a controller with an empty session.
func New(gate Gate, collab Collaborators, opts ...Option) *Controller {
	c := &Controller{
		gate:          gate,
		collab:        collab,
		openAfterSave: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.snapshot()
}

// SelectSource lets the user pick a source document. Cancelling leaves the
// session unchanged. A selection that is not a plain path clears the source.
func (c *Controller) SelectSource(ctx context.Context) error {
	if !c.gate.Ready() {
		return c.refuse(ErrHostUnavailable)
	}
	if err := c.begin(OpSelect); err != nil {
		return err
	}

	h, err := c.collab.Sources.ChooseSource(ctx, SourceFilter)
	if err != nil {
		err = wrap(ErrSelect, err)
		log.Printf("session: select: %v", err)
		c.end(OpSelect, func(s *state) { s.status = errorStatus(err) })
		return err
	}
	if h == nil {
		c.end(OpSelect, nil)
		return nil
	}
	p, ok := h.(docpath.Path)
	if !ok || p.IsZero() {
		log.Printf("session: select: rejected handle %q", h.String())
		c.end(OpSelect, func(s *state) {
			s.setSource(docpath.Path{})
			s.status = errorStatus(ErrInvalidHandle)
		})
		return ErrInvalidHandle
	}

	log.Printf("session: selected %s", p)
	c.end(OpSelect, func(s *state) { s.setSource(p) })
	return nil
}

// Drop selects a source dropped onto the application. The item must carry
// the mind-map extension and a resolvable path; otherwise the source is left
// untouched.
func (c *Controller) Drop(item DroppedItem) error {
	if !c.gate.Ready() {
		return c.refuse(ErrHostUnavailable)
	}
	name := item.Name
	if name == "" {
		name = docpath.New(item.Path).Base()
	}
	if !docpath.HasExt(name, SourceExt) {
		return c.refuse(ErrWrongType)
	}
	if strings.TrimSpace(item.Path) == "" {
		return c.refuse(ErrUnresolvablePath)
	}

	p := docpath.New(item.Path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.busy[OpSelect] {
		return ErrBusy
	}
	c.st.setSource(p)
	c.publish()
	log.Printf("session: dropped %s", p)
	return nil
}

// Convert runs the conversion service on the current source. Only one
// conversion runs at a time; a second call while one is pending returns
// ErrBusy without touching the session.
func (c *Controller) Convert(ctx context.Context) error {
	c.mu.Lock()
	if c.st.source.IsZero() {
		c.mu.Unlock()
		return c.refuse(ErrNoSource)
	}
	c.mu.Unlock()
	if !c.gate.Ready() {
		return c.refuse(ErrHostUnavailable)
	}

	c.mu.Lock()
	if c.st.busy[OpConvert] {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.st.source.IsZero() {
		c.mu.Unlock()
		return c.refuse(ErrNoSource)
	}
	c.st.busy[OpConvert] = true
	c.st.status = Status{Text: MsgConverting}
	src, gen := c.st.source, c.st.gen
	c.publish()
	c.mu.Unlock()

	out, err := c.collab.Converter.Convert(ctx, src)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.busy[OpConvert] = false
	if c.st.gen != gen {
		log.Printf("session: convert %s: discarded, source changed", src)
		c.publish()
		return ErrStale
	}
	if err != nil {
		err = wrap(ErrConvert, err)
		log.Printf("session: convert %s: %v", src, err)
		c.st.output = ""
		c.st.converted = false
		c.st.failed = true
		c.st.status = errorStatus(err)
		c.publish()
		return err
	}
	log.Printf("session: converted %s (%d bytes)", src, len(out))
	c.st.output = out
	c.st.converted = true
	c.st.failed = false
	c.st.status = Status{Text: MsgConverted, Kind: KindSuccess}
	c.publish()
	return nil
}

// ExportDefault saves the output to a destination prefilled with the source
// name and then tries to open it. A failure to open is logged and ignored.
func (c *Controller) ExportDefault(ctx context.Context) error {
	return c.export(ctx, true)
}

// ExportAs saves the output to a destination chosen from scratch.
func (c *Controller) ExportAs(ctx context.Context) error {
	return c.export(ctx, false)
}

func (c *Controller) export(ctx context.Context, byDefault bool) error {
	failure := ErrSaveAs
	if byDefault {
		failure = ErrSave
	}
	if !c.gate.Ready() {
		return c.refuse(ErrHostUnavailable)
	}

	c.mu.Lock()
	if c.st.output == "" {
		c.mu.Unlock()
		return c.refuse(ErrNoOutput)
	}
	if c.st.busy[OpExport] {
		c.mu.Unlock()
		return ErrBusy
	}
	c.st.busy[OpExport] = true
	content, source, gen := c.st.output, c.st.source, c.st.gen
	c.publish()
	c.mu.Unlock()

	defaultName := ""
	if byDefault {
		defaultName = docpath.ExportName(source)
	}
	h, err := c.collab.Destinations.ChooseDestination(ctx, defaultName, MarkdownFilter)
	if err != nil {
		err = wrap(failure, err)
		log.Printf("session: export: %v", err)
		c.end(OpExport, func(s *state) { s.status = errorStatus(err) })
		return err
	}
	if h == nil {
		c.end(OpExport, nil)
		return nil
	}
	dest, ok := h.(docpath.Path)
	if !ok || dest.IsZero() {
		err := wrap(failure, ErrInvalidHandle)
		log.Printf("session: export: rejected handle %q", h.String())
		c.end(OpExport, func(s *state) { s.status = errorStatus(err) })
		return err
	}

	c.mu.Lock()
	stale := c.st.gen != gen || c.st.output != content
	c.mu.Unlock()
	if stale {
		log.Printf("session: export %s: discarded, output changed", dest)
		c.end(OpExport, nil)
		return ErrStale
	}

	if err := c.collab.Writer.Write(ctx, dest, content); err != nil {
		err = wrap(failure, err)
		log.Printf("session: export %s: %v", dest, err)
		c.end(OpExport, func(s *state) { s.status = errorStatus(err) })
		return err
	}
	log.Printf("session: saved %s", dest)
	c.end(OpExport, func(s *state) {
		s.status = Status{Text: MsgSavedFmt + dest.String(), Kind: KindSuccess}
	})

	if byDefault && c.openAfterSave && c.collab.Opener != nil {
		if err := c.collab.Opener.Open(ctx, dest); err != nil {
			log.Printf("session: open %s: %v (ignored)", dest, err)
		}
	}
	return nil
}

// refuse records err as the banner without changing any other field.
func (c *Controller) refuse(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.status = errorStatus(err)
	c.publish()
	return err
}

// begin marks op as in flight, or returns ErrBusy.
func (c *Controller) begin(op Op) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.busy[op] {
		return ErrBusy
	}
	c.st.busy[op] = true
	c.publish()
	return nil
}

// end clears the in-flight mark for op and applies fn in the same step.
func (c *Controller) end(op Op, fn func(*state)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.busy[op] = false
	if fn != nil {
		fn(&c.st)
	}
	c.publish()
}

// publish bumps the version and notifies the observer. Callers hold mu.
func (c *Controller) publish() {
	c.st.seq++
	if c.observer != nil {
		c.observer(c.st.snapshot())
	}
}

func errorStatus(err error) Status {
	return Status{Text: err.Error(), Kind: KindError}
}
