package app

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mindmark/tui/internal/dialog"
	"github.com/mindmark/tui/internal/docpath"
	"github.com/mindmark/tui/internal/host"
	"github.com/mindmark/tui/internal/present"
	"github.com/mindmark/tui/internal/session"
	"github.com/mindmark/tui/internal/theme"
	"github.com/mindmark/tui/internal/views/banner"
	"github.com/mindmark/tui/internal/views/picker"
	"github.com/mindmark/tui/internal/views/preview"
	"github.com/mindmark/tui/internal/views/saveas"
)

// chrome is the number of rows around the preview pane: title, source,
// banner, footer and the two panel borders.
const chrome = 6

var errDialogOpen = errors.New("another dialog is already open")

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayOpen
	OverlaySave
)

// Gate is the readiness check the UI waits on before enabling actions.
type Gate interface {
	Await(ctx context.Context) host.State
	Ready() bool
}

// Renderer renders markdown for a given pane width.
type Renderer interface {
	present.Renderer
	SetWidth(width int)
}

// Deps wires the model to the rest of the program.
type Deps struct {
	Controller *session.Controller
	Gate       Gate
	// Bridge is signalled once the terminal has reported its size.
	Bridge   *host.Bridge
	Dialogs  *dialog.Service
	Feed     *Feed
	Renderer Renderer

	StartDir   string
	ShowHidden bool
	// WordWrap caps the preview wrap width; 0 wraps at the pane width.
	WordWrap int
	// Initial is a source path given on the command line.
	Initial string
}

type gateResolvedMsg struct{ state host.State }

type opDoneMsg struct {
	op       session.Op
	err      error
	snapshot session.Snapshot
}

// Model is the root Bubble Tea model.
type Model struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	gate host.State
	// resolved is set once the gate has left the pending state.
	resolved bool

	snap session.Snapshot
	aff  present.Affordances
	// shown is the preview text currently loaded into the pane.
	shown string

	overlay Overlay
	request *dialog.Request
	open    picker.Model
	save    saveas.Model

	banner  banner.Model
	preview preview.Model
}

// New creates the root model.
func New(deps Deps) Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		deps:    deps,
		ctx:     ctx,
		cancel:  cancel,
		keys:    DefaultKeyMap(),
		banner:  banner.New(),
		preview: preview.New(0, 0),
	}
	m.apply(deps.Controller.Snapshot())
	return m
}

// Init waits for the host gate and starts listening for dialog requests and
// session snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.awaitGate(),
		m.deps.Dialogs.Next(m.ctx),
		m.deps.Feed.Next(m.ctx),
	)
}

func (m Model) awaitGate() tea.Cmd {
	gate, ctx := m.deps.Gate, m.ctx
	return func() tea.Msg {
		return gateResolvedMsg{state: gate.Await(ctx)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		if m.deps.Bridge != nil {
			m.deps.Bridge.Signal()
		}
		return m, nil

	case gateResolvedMsg:
		m.gate = msg.state
		if msg.state == host.StatePending {
			return m, nil
		}
		m.resolved = true
		if m.deps.Initial != "" {
			m.dropPath(m.deps.Initial)
			m.deps.Initial = ""
		}
		return m, nil

	case SnapshotMsg:
		cmd := m.apply(msg.Snapshot)
		return m, tea.Batch(cmd, m.deps.Feed.Next(m.ctx))

	case opDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			log.Printf("app: %s: %v", msg.op, msg.err)
		}
		return m, m.apply(msg.snapshot)

	case dialog.RequestMsg:
		cmd := m.openDialog(msg.Request)
		return m, tea.Batch(cmd, m.deps.Dialogs.Next(m.ctx))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.banner, cmd = m.banner.Update(msg)
		return m, cmd

	case preview.FrameMsg:
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.overlay != OverlayNone {
		return m.updateOverlay(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}
	if m.overlay != OverlayNone {
		return m.updateOverlay(msg)
	}
	if key.Matches(msg, m.keys.Quit) && !msg.Paste {
		return m.quit()
	}
	if !m.resolved {
		return m, nil
	}
	if msg.Paste {
		m.dropPath(string(msg.Runes))
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Open):
		return m, m.run(session.OpSelect, m.deps.Controller.SelectSource)
	case key.Matches(msg, m.keys.Convert):
		return m, m.run(session.OpConvert, m.deps.Controller.Convert)
	case key.Matches(msg, m.keys.Save):
		return m, m.run(session.OpExport, m.deps.Controller.ExportDefault)
	case key.Matches(msg, m.keys.SaveAs):
		return m, m.run(session.OpExport, m.deps.Controller.ExportAs)
	case key.Matches(msg, m.keys.Down):
		return m, m.preview.ScrollBy(1)
	case key.Matches(msg, m.keys.Up):
		return m, m.preview.ScrollBy(-1)
	case key.Matches(msg, m.keys.PageDown):
		return m, m.preview.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		return m, m.preview.PageUp()
	case key.Matches(msg, m.keys.Top):
		return m, m.preview.Top()
	case key.Matches(msg, m.keys.Bottom):
		return m, m.preview.Bottom()
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.request != nil {
		m.request.Cancel()
		m.request = nil
	}
	m.deps.Dialogs.Close()
	m.cancel()
	return m, tea.Quit
}

// run executes a blocking controller action off the event loop.
func (m Model) run(op session.Op, action func(context.Context) error) tea.Cmd {
	ctx, ctrl := m.ctx, m.deps.Controller
	return func() tea.Msg {
		err := action(ctx)
		return opDoneMsg{op: op, err: err, snapshot: ctrl.Snapshot()}
	}
}

// dropPath treats raw as a dropped file. A path that does not exist on disk
// is passed on with an empty Path so the controller reports it as
// unresolvable.
func (m *Model) dropPath(raw string) {
	p, err := docpath.ParseDropped(raw)
	if err != nil {
		return
	}
	item := session.DroppedItem{Name: p.Base()}
	if info, err := os.Stat(p.String()); err == nil && !info.IsDir() {
		item.Path = p.String()
	}
	if err := m.deps.Controller.Drop(item); err != nil {
		log.Printf("app: drop %q: %v", raw, err)
	}
	m.apply(m.deps.Controller.Snapshot())
}

func (m *Model) openDialog(req *dialog.Request) tea.Cmd {
	if m.overlay != OverlayNone {
		req.Fail(errDialogOpen)
		return nil
	}
	m.request = req
	switch req.Kind {
	case dialog.KindOpen:
		m.overlay = OverlayOpen
		m.open = picker.New(m.deps.StartDir, req.Filter, m.deps.ShowHidden, m.height)
		return m.open.Init()
	default:
		m.overlay = OverlaySave
		m.save = saveas.New(m.deps.StartDir, req.DefaultName, req.Filter)
		return nil
	}
}

func (m Model) updateOverlay(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.overlay {
	case OverlayOpen:
		var out picker.Outcome
		m.open, cmd, out = m.open.Update(msg)
		switch out {
		case picker.Selected:
			m.deps.StartDir = filepath.Dir(m.open.Path)
			m.closeDialog(docpath.New(m.open.Path))
		case picker.Cancelled:
			m.closeDialog(nil)
		}
	case OverlaySave:
		var out saveas.Outcome
		m.save, cmd, out = m.save.Update(msg)
		switch out {
		case saveas.Confirmed:
			h := m.save.Handle()
			if p, ok := h.(docpath.Path); ok {
				m.deps.StartDir = p.Dir()
			}
			m.closeDialog(h)
		case saveas.Cancelled:
			m.closeDialog(nil)
		}
	}
	return m, cmd
}

// closeDialog answers the pending request. A nil handle cancels.
func (m *Model) closeDialog(h session.Handle) {
	if m.request != nil {
		if h == nil {
			m.request.Cancel()
		} else {
			m.request.Resolve(h)
		}
	}
	m.request = nil
	m.overlay = OverlayNone
}

// apply shows s unless a newer snapshot is already on screen.
func (m *Model) apply(s session.Snapshot) tea.Cmd {
	if s.Seq < m.snap.Seq {
		return nil
	}
	m.snap = s
	return m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	m.aff = present.Render(m.snap, m.deps.Renderer)
	if m.aff.Preview != m.shown {
		m.shown = m.aff.Preview
		m.preview.SetContent(m.aff.Preview, m.aff.Empty)
	}
	wasBusy := m.banner.Busy
	m.banner.Banner = m.aff.Banner
	m.banner.Busy = m.aff.Converting || m.aff.Exporting
	if m.banner.Busy && !wasBusy {
		return m.banner.Tick()
	}
	return nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.banner.Width = width
	if m.overlay == OverlayOpen {
		m.open.SetHeight(height)
	}
	paneWidth := max(width-4, 1)
	m.preview.SetSize(paneWidth, max(height-chrome, 1))
	if m.deps.Renderer != nil {
		wrap := paneWidth
		if m.deps.WordWrap > 0 {
			wrap = min(wrap, m.deps.WordWrap)
		}
		m.deps.Renderer.SetWidth(wrap)
	}
	m.refresh()
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay != OverlayNone {
		var box string
		if m.overlay == OverlayOpen {
			box = m.open.View()
		} else {
			box = m.save.View()
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	sections := []string{
		m.renderTitle(),
		m.renderSource(),
		m.banner.View(),
		theme.StylePanel.Width(max(m.width-2, 1)).Render(m.preview.View()),
		m.renderFooter(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitle() string {
	title := theme.StyleHeader.Render("mindmark") + theme.StyleDimmed.Render("  xmind → markdown")
	switch {
	case !m.resolved:
		title += theme.StyleDimmed.Render("  waiting for terminal…")
	case m.gate == host.StateTimedOut && !m.deps.Gate.Ready():
		title += lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("  host file access unavailable")
	}
	return title
}

func (m Model) renderSource() string {
	if m.aff.Source == "" {
		return theme.StyleDimmed.Render("No file selected. Press o to open or paste a path.")
	}
	return theme.StyleDimmed.Render("Source: ") + theme.StyleAccent.Render(m.aff.Source)
}

func (m Model) renderFooter() string {
	ready := m.resolved
	items := []struct {
		b  key.Binding
		on bool
	}{
		{m.keys.Open, ready && !m.aff.Selecting},
		{m.keys.Convert, ready && m.aff.CanConvert && !m.aff.Converting},
		{m.keys.Save, ready && m.aff.CanExport && !m.aff.Exporting},
		{m.keys.SaveAs, ready && m.aff.CanExport && !m.aff.Exporting},
		{m.keys.Down, m.aff.CanExport},
		{m.keys.Quit, true},
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		h := it.b.Help()
		if it.on {
			parts = append(parts, theme.StyleKey.Render(h.Key)+theme.StyleDimmed.Render(":"+h.Desc))
		} else {
			parts = append(parts, theme.StyleDimmed.Faint(true).Render(h.Key+":"+h.Desc))
		}
	}
	return "  " + strings.Join(parts, "  ")
}
