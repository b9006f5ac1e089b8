package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mindmark/tui/internal/docpath"
)

type fakeGate struct{ ready bool }

func (g *fakeGate) Ready() bool { return g.ready }

// fakePicker returns a canned handle or error for both pickers.
type fakePicker struct {
	// gate, when non-nil, blocks ChooseDestination until closed.
	gate        chan struct{}
	handle      Handle
	err         error
	calls       int
	defaultName string
	filter      Filter
}

func (f *fakePicker) ChooseSource(ctx context.Context, filter Filter) (Handle, error) {
	f.calls++
	f.filter = filter
	return f.handle, f.err
}

func (f *fakePicker) ChooseDestination(ctx context.Context, defaultName string, filter Filter) (Handle, error) {
	f.calls++
	f.defaultName = defaultName
	f.filter = filter
	if f.gate != nil {
		<-f.gate
	}
	return f.handle, f.err
}

// fakeConverter returns canned markdown or an error. When gate is non-nil
// Convert blocks until it is closed.
type fakeConverter struct {
	output string
	err    error
	gate   chan struct{}
	calls  int
	mu     sync.Mutex
}

func (f *fakeConverter) Convert(ctx context.Context, src docpath.Path) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

type fakeWriter struct {
	err     error
	dest    docpath.Path
	content string
}

func (f *fakeWriter) Write(ctx context.Context, dest docpath.Path, content string) error {
	f.dest = dest
	f.content = content
	return f.err
}

type fakeOpener struct {
	err    error
	opened []docpath.Path
}

func (f *fakeOpener) Open(ctx context.Context, dest docpath.Path) error {
	f.opened = append(f.opened, dest)
	return f.err
}

type uriHandle string

func (u uriHandle) String() string { return string(u) }

type harness struct {
	gate    *fakeGate
	sources *fakePicker
	dests   *fakePicker
	conv    *fakeConverter
	writer  *fakeWriter
	opener  *fakeOpener
	ctrl    *Controller
	seen    []Snapshot
}

func newHarness() *harness {
	h := &harness{
		gate:    &fakeGate{ready: true},
		sources: &fakePicker{handle: docpath.New("/docs/plan.xmind")},
		dests:   &fakePicker{handle: docpath.New("/docs/plan.md")},
		conv:    &fakeConverter{output: "# Plan\n..."},
		writer:  &fakeWriter{},
		opener:  &fakeOpener{},
	}
	h.ctrl = New(h.gate, Collaborators{
		Sources:      h.sources,
		Destinations: h.dests,
		Converter:    h.conv,
		Writer:       h.writer,
		Opener:       h.opener,
	}, WithObserver(func(s Snapshot) { h.seen = append(h.seen, s) }))
	return h
}

func (h *harness) converted(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := h.ctrl.SelectSource(ctx); err != nil {
		t.Fatalf("SelectSource() error: %v", err)
	}
	if err := h.ctrl.Convert(ctx); err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
}

func TestInitialSnapshot(t *testing.T) {
	h := newHarness()
	s := h.ctrl.Snapshot()
	if s.HasSource() || s.HasOutput() {
		t.Error("new session should be empty")
	}
	if s.Phase() != PhaseEmpty {
		t.Errorf("Phase() = %v, want empty", s.Phase())
	}
	if s.Status != (Status{}) {
		t.Errorf("Status = %+v, want zero", s.Status)
	}
}

func TestSelectConvertScenario(t *testing.T) {
	h := newHarness()
	h.converted(t)

	s := h.ctrl.Snapshot()
	if s.Source.String() != "/docs/plan.xmind" {
		t.Errorf("Source = %q, want /docs/plan.xmind", s.Source)
	}
	if s.Output != "# Plan\n..." {
		t.Errorf("Output = %q, want %q", s.Output, "# Plan\n...")
	}
	if s.Status.Kind != KindSuccess || s.Status.Text != MsgConverted {
		t.Errorf("Status = %+v, want conversion success", s.Status)
	}
	if s.Phase() != PhaseConverted {
		t.Errorf("Phase() = %v, want converted", s.Phase())
	}
	if got := h.sources.filter.Extensions; len(got) != 1 || got[0] != SourceExt {
		t.Errorf("source filter = %v, want [%s]", got, SourceExt)
	}
}

func TestConvertShowsProgressBanner(t *testing.T) {
	h := newHarness()
	h.converted(t)
	found := false
	for _, s := range h.seen {
		if s.Status.Text == MsgConverting && s.InFlight(OpConvert) {
			found = true
		}
	}
	if !found {
		t.Error("observer should see the in-progress banner while converting")
	}
}

func TestConvertFailureKeepsSource(t *testing.T) {
	h := newHarness()
	h.converted(t)

	h.conv.err = errors.New("corrupt archive")
	err := h.ctrl.Convert(context.Background())
	if !errors.Is(err, ErrConvert) {
		t.Fatalf("Convert() err = %v, want ErrConvert", err)
	}
	s := h.ctrl.Snapshot()
	if !strings.Contains(s.Status.Text, "corrupt archive") {
		t.Errorf("banner %q should contain the failure detail", s.Status.Text)
	}
	if s.Status.Kind != KindError {
		t.Errorf("Kind = %v, want error", s.Status.Kind)
	}
	if s.Output != "" {
		t.Errorf("Output = %q, want empty after failure", s.Output)
	}
	if s.Source.String() != "/docs/plan.xmind" {
		t.Errorf("Source = %q, want it retained", s.Source)
	}
	if s.Phase() != PhaseConvertFailed {
		t.Errorf("Phase() = %v, want convert failed", s.Phase())
	}

	// Retry without reselecting.
	h.conv.err = nil
	if err := h.ctrl.Convert(context.Background()); err != nil {
		t.Fatalf("retry Convert() error: %v", err)
	}
	if h.ctrl.Snapshot().Phase() != PhaseConverted {
		t.Error("retry should reach converted")
	}
}

func TestConvertEmptyResultIsSuccess(t *testing.T) {
	h := newHarness()
	h.conv.output = ""
	h.converted(t)
	s := h.ctrl.Snapshot()
	if s.Status.Kind != KindSuccess {
		t.Errorf("Kind = %v, want success", s.Status.Kind)
	}
	if s.HasOutput() {
		t.Error("empty conversion should leave nothing to export")
	}
}

func TestConvertWithoutSource(t *testing.T) {
	h := newHarness()
	err := h.ctrl.Convert(context.Background())
	if !errors.Is(err, ErrNoSource) {
		t.Fatalf("Convert() err = %v, want ErrNoSource", err)
	}
	if h.conv.calls != 0 {
		t.Error("converter must not run without a source")
	}
	s := h.ctrl.Snapshot()
	if s.HasSource() || s.HasOutput() {
		t.Error("Convert without source must not mutate fields")
	}
	if s.Status.Kind != KindError {
		t.Error("Convert without source should explain the refusal")
	}
}

func TestGateNotReady(t *testing.T) {
	h := newHarness()
	h.converted(t)
	h.gate.ready = false
	ctx := context.Background()

	for name, op := range map[string]func() error{
		"select":        func() error { return h.ctrl.SelectSource(ctx) },
		"convert":       func() error { return h.ctrl.Convert(ctx) },
		"exportDefault": func() error { return h.ctrl.ExportDefault(ctx) },
		"exportAs":      func() error { return h.ctrl.ExportAs(ctx) },
		"drop":          func() error { return h.ctrl.Drop(DroppedItem{Name: "a.xmind", Path: "/a.xmind"}) },
	} {
		if err := op(); !errors.Is(err, ErrHostUnavailable) {
			t.Errorf("%s err = %v, want ErrHostUnavailable", name, err)
		}
	}
	s := h.ctrl.Snapshot()
	if s.Output != "# Plan\n..." || s.Source.String() != "/docs/plan.xmind" {
		t.Error("refused operations must not mutate the session")
	}
	if s.Status.Text != ErrHostUnavailable.Error() {
		t.Errorf("banner = %q, want guidance message", s.Status.Text)
	}
}

func TestSelectionClearsOutput(t *testing.T) {
	h := newHarness()
	h.converted(t)

	h.sources.handle = docpath.New("/docs/other.xmind")
	if err := h.ctrl.SelectSource(context.Background()); err != nil {
		t.Fatalf("SelectSource() error: %v", err)
	}
	s := h.ctrl.Snapshot()
	if s.Output != "" {
		t.Error("new source must invalidate output")
	}
	if s.Source.String() != "/docs/other.xmind" {
		t.Errorf("Source = %q", s.Source)
	}
	if s.Status != (Status{}) {
		t.Errorf("Status = %+v, want cleared banner", s.Status)
	}
	if s.Phase() != PhaseSourceSelected {
		t.Errorf("Phase() = %v, want source selected", s.Phase())
	}
}

func TestSelectCancelled(t *testing.T) {
	h := newHarness()
	h.converted(t)
	before := h.ctrl.Snapshot()

	h.sources.handle = nil
	if err := h.ctrl.SelectSource(context.Background()); err != nil {
		t.Fatalf("cancelled SelectSource() error: %v", err)
	}
	after := h.ctrl.Snapshot()
	if after.Source != before.Source || after.Output != before.Output || after.Status != before.Status {
		t.Error("cancelled selection must leave the session unchanged")
	}
}

func TestSelectNonPathHandle(t *testing.T) {
	h := newHarness()
	h.converted(t)

	h.sources.handle = uriHandle("content://provider/doc")
	err := h.ctrl.SelectSource(context.Background())
	if !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("SelectSource() err = %v, want ErrInvalidHandle", err)
	}
	s := h.ctrl.Snapshot()
	if s.HasSource() {
		t.Error("non-path handle should leave the source unset")
	}
	if s.HasOutput() {
		t.Error("source change should clear output")
	}
}

func TestSelectPickerError(t *testing.T) {
	h := newHarness()
	h.converted(t)

	h.sources.err = errors.New("dialog crashed")
	err := h.ctrl.SelectSource(context.Background())
	if !errors.Is(err, ErrSelect) {
		t.Fatalf("SelectSource() err = %v, want ErrSelect", err)
	}
	s := h.ctrl.Snapshot()
	if !strings.Contains(s.Status.Text, "dialog crashed") {
		t.Errorf("banner = %q, want picker detail", s.Status.Text)
	}
	if s.Source.String() != "/docs/plan.xmind" || s.Output == "" {
		t.Error("picker failure must not mutate source or output")
	}
}

func TestDrop(t *testing.T) {
	tests := []struct {
		name    string
		item    DroppedItem
		wantErr error
	}{
		{"wrong type", DroppedItem{Name: "notes.txt", Path: "/docs/notes.txt"}, ErrWrongType},
		{"no path", DroppedItem{Name: "plan.xmind"}, ErrUnresolvablePath},
		{"upper case ext", DroppedItem{Name: "PLAN.XMIND", Path: "/docs/PLAN.XMIND"}, nil},
		{"name from path", DroppedItem{Path: "/docs/dropped.xmind"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.converted(t)
			before := h.ctrl.Snapshot()

			err := h.ctrl.Drop(tt.item)
			s := h.ctrl.Snapshot()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Drop() err = %v, want %v", err, tt.wantErr)
				}
				if s.Source != before.Source || s.Output != before.Output {
					t.Error("rejected drop must not mutate source or output")
				}
				if s.Status.Kind != KindError {
					t.Error("rejected drop should show an error banner")
				}
				return
			}
			if err != nil {
				t.Fatalf("Drop() error: %v", err)
			}
			if s.Source.String() != tt.item.Path {
				t.Errorf("Source = %q, want %q", s.Source, tt.item.Path)
			}
			if s.HasOutput() {
				t.Error("drop should invalidate output")
			}
		})
	}
}

func TestDropTypeMismatchMessage(t *testing.T) {
	h := newHarness()
	h.ctrl.Drop(DroppedItem{Name: "notes.txt", Path: "/docs/notes.txt"})
	if s := h.ctrl.Snapshot(); s.Status.Text != ErrWrongType.Error() {
		t.Errorf("banner = %q, want %q", s.Status.Text, ErrWrongType.Error())
	}
}

func TestExportDefaultScenario(t *testing.T) {
	h := newHarness()
	h.converted(t)
	h.opener.err = errors.New("no handler for .md")

	if err := h.ctrl.ExportDefault(context.Background()); err != nil {
		t.Fatalf("ExportDefault() error: %v", err)
	}
	if h.dests.defaultName != "plan.md" {
		t.Errorf("default name = %q, want plan.md", h.dests.defaultName)
	}
	if h.writer.dest.String() != "/docs/plan.md" || h.writer.content != "# Plan\n..." {
		t.Errorf("wrote %q to %q", h.writer.content, h.writer.dest)
	}
	if len(h.opener.opened) != 1 {
		t.Fatalf("opener called %d times, want 1", len(h.opener.opened))
	}
	s := h.ctrl.Snapshot()
	if s.Status.Kind != KindSuccess || s.Status.Text != MsgSavedFmt+"/docs/plan.md" {
		t.Errorf("Status = %+v, want save success despite open failure", s.Status)
	}
}

func TestExportAs(t *testing.T) {
	h := newHarness()
	h.converted(t)
	if err := h.ctrl.ExportAs(context.Background()); err != nil {
		t.Fatalf("ExportAs() error: %v", err)
	}
	if h.dests.defaultName != "" {
		t.Errorf("ExportAs default name = %q, want empty", h.dests.defaultName)
	}
	if len(h.opener.opened) != 0 {
		t.Error("ExportAs must not open the file")
	}
	if h.ctrl.Snapshot().Status.Kind != KindSuccess {
		t.Error("ExportAs should report success")
	}
}

func TestExportOpenDisabled(t *testing.T) {
	h := newHarness()
	h.ctrl.openAfterSave = false
	h.converted(t)
	if err := h.ctrl.ExportDefault(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(h.opener.opened) != 0 {
		t.Error("opener should not run when open-after-save is off")
	}
}

func TestExportWithoutOutput(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if err := h.ctrl.SelectSource(ctx); err != nil {
		t.Fatal(err)
	}
	for _, op := range []func(context.Context) error{h.ctrl.ExportDefault, h.ctrl.ExportAs} {
		if err := op(ctx); !errors.Is(err, ErrNoOutput) {
			t.Errorf("export err = %v, want ErrNoOutput", err)
		}
	}
	if h.dests.calls != 0 {
		t.Error("destination picker must not open without output")
	}
}

func TestExportCancelled(t *testing.T) {
	h := newHarness()
	h.converted(t)
	before := h.ctrl.Snapshot()
	h.dests.handle = nil
	if err := h.ctrl.ExportDefault(context.Background()); err != nil {
		t.Fatalf("cancelled export error: %v", err)
	}
	after := h.ctrl.Snapshot()
	if after.Status != before.Status {
		t.Errorf("cancelled export changed banner to %+v", after.Status)
	}
	if h.writer.dest != (docpath.Path{}) {
		t.Error("cancelled export must not write")
	}
}

func TestExportFailure(t *testing.T) {
	h := newHarness()
	h.converted(t)
	h.writer.err = errors.New("permission denied")

	err := h.ctrl.ExportDefault(context.Background())
	if !errors.Is(err, ErrSave) {
		t.Fatalf("ExportDefault() err = %v, want ErrSave", err)
	}
	s := h.ctrl.Snapshot()
	if !strings.Contains(s.Status.Text, "permission denied") {
		t.Errorf("banner = %q, want write detail", s.Status.Text)
	}
	if s.Output != "# Plan\n..." || s.Source.String() != "/docs/plan.xmind" {
		t.Error("failed export must not mutate output or source")
	}
	if len(h.opener.opened) != 0 {
		t.Error("failed export must not open anything")
	}

	err = h.ctrl.ExportAs(context.Background())
	if !errors.Is(err, ErrSaveAs) {
		t.Errorf("ExportAs() err = %v, want ErrSaveAs", err)
	}
}

func TestExportNonPathDestination(t *testing.T) {
	h := newHarness()
	h.converted(t)
	h.dests.handle = uriHandle("s3://bucket/plan.md")
	err := h.ctrl.ExportDefault(context.Background())
	if !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("err = %v, want ErrInvalidHandle", err)
	}
	if h.ctrl.Snapshot().Output == "" {
		t.Error("rejected destination must not clear output")
	}
}

func TestConvertSingleFlight(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if err := h.ctrl.SelectSource(ctx); err != nil {
		t.Fatal(err)
	}
	h.conv.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Convert(ctx) }()
	waitFor(t, func() bool { return h.ctrl.Snapshot().InFlight(OpConvert) })

	if err := h.ctrl.Convert(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("second Convert() err = %v, want ErrBusy", err)
	}
	if s := h.ctrl.Snapshot(); s.Status.Text != MsgConverting {
		t.Errorf("rejected call changed banner to %q", s.Status.Text)
	}

	close(h.conv.gate)
	if err := <-done; err != nil {
		t.Fatalf("first Convert() error: %v", err)
	}
	h.conv.mu.Lock()
	calls := h.conv.calls
	h.conv.mu.Unlock()
	if calls != 1 {
		t.Errorf("converter ran %d times, want 1", calls)
	}
}

func TestConvertDiscardedAfterSourceChange(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	if err := h.ctrl.SelectSource(ctx); err != nil {
		t.Fatal(err)
	}
	h.conv.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Convert(ctx) }()
	waitFor(t, func() bool { return h.ctrl.Snapshot().InFlight(OpConvert) })

	if err := h.ctrl.Drop(DroppedItem{Name: "next.xmind", Path: "/docs/next.xmind"}); err != nil {
		t.Fatalf("Drop() error: %v", err)
	}
	close(h.conv.gate)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("Convert() err = %v, want ErrStale", err)
	}
	s := h.ctrl.Snapshot()
	if s.HasOutput() {
		t.Error("stale conversion must not set output for the new source")
	}
	if s.Source.String() != "/docs/next.xmind" {
		t.Errorf("Source = %q, want the dropped file", s.Source)
	}
	if s.InFlight(OpConvert) {
		t.Error("convert should no longer be in flight")
	}
}

func TestExportDiscardedAfterSourceChange(t *testing.T) {
	h := newHarness()
	h.converted(t)
	h.dests.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.ExportDefault(context.Background()) }()
	waitFor(t, func() bool { return h.ctrl.Snapshot().InFlight(OpExport) })

	if err := h.ctrl.Drop(DroppedItem{Name: "other.xmind", Path: "/docs/other.xmind"}); err != nil {
		t.Fatalf("Drop() error: %v", err)
	}
	close(h.dests.gate)
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Fatalf("ExportDefault() err = %v, want ErrStale", err)
	}
	if h.writer.content != "" || !h.writer.dest.IsZero() {
		t.Errorf("writer got %q for %q, want nothing written", h.writer.content, h.writer.dest)
	}
	if len(h.opener.opened) != 0 {
		t.Error("opener should not run for a discarded export")
	}
	s := h.ctrl.Snapshot()
	if strings.HasPrefix(s.Status.Text, MsgSavedFmt) {
		t.Errorf("banner = %q, must not report a save", s.Status.Text)
	}
	if s.InFlight(OpExport) {
		t.Error("export should no longer be in flight")
	}
}

func TestObserverSeqIncreases(t *testing.T) {
	h := newHarness()
	h.converted(t)
	h.ctrl.ExportDefault(context.Background())
	h.ctrl.Convert(context.Background())
	if len(h.seen) == 0 {
		t.Fatal("observer never called")
	}
	for i := 1; i < len(h.seen); i++ {
		if h.seen[i].Seq <= h.seen[i-1].Seq {
			t.Fatalf("Seq not increasing at %d: %d after %d", i, h.seen[i].Seq, h.seen[i-1].Seq)
		}
	}
	if last := h.seen[len(h.seen)-1]; last.Seq != h.ctrl.Snapshot().Seq {
		t.Error("last observed snapshot should match the current session")
	}
}

// TestOutputIffLastConversionSucceeded drives a mixed sequence of
// operations and checks the output invariant after each step.
func TestOutputIffLastConversionSucceeded(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	lastOK := false

	steps := []struct {
		name string
		run  func()
	}{
		{"select", func() { h.ctrl.SelectSource(ctx); lastOK = false }},
		{"convert ok", func() { h.conv.err = nil; h.ctrl.Convert(ctx); lastOK = true }},
		{"export", func() { h.ctrl.ExportDefault(ctx) }},
		{"convert fail", func() { h.conv.err = errors.New("boom"); h.ctrl.Convert(ctx); lastOK = false }},
		{"export refused", func() { h.ctrl.ExportAs(ctx) }},
		{"convert ok again", func() { h.conv.err = nil; h.ctrl.Convert(ctx); lastOK = true }},
		{"bad drop", func() { h.ctrl.Drop(DroppedItem{Name: "x.txt", Path: "/x.txt"}) }},
		{"good drop", func() { h.ctrl.Drop(DroppedItem{Name: "y.xmind", Path: "/y.xmind"}); lastOK = false }},
		{"convert ok last", func() { h.ctrl.Convert(ctx); lastOK = true }},
	}
	for _, st := range steps {
		st.run()
		if got := h.ctrl.Snapshot().HasOutput(); got != lastOK {
			t.Fatalf("after %s: HasOutput() = %v, want %v", st.name, got, lastOK)
		}
	}
}

func TestFilterMatch(t *testing.T) {
	if !SourceFilter.Match("/a/b.XMind") {
		t.Error("SourceFilter should match .XMind")
	}
	if SourceFilter.Match("/a/b.md") {
		t.Error("SourceFilter should not match .md")
	}
	if !(Filter{}).Match("anything") {
		t.Error("empty filter should match everything")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
