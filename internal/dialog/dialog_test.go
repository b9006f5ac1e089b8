package dialog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindmark/tui/internal/docpath"
	"github.com/mindmark/tui/internal/session"
)

// serve runs one Next command and hands the request to answer.
func serve(t *testing.T, s *Service, answer func(*Request)) {
	t.Helper()
	go func() {
		msg := s.Next(context.Background())()
		rm, ok := msg.(RequestMsg)
		if !ok {
			return
		}
		answer(rm.Request)
	}()
}

func TestChooseSourceResolved(t *testing.T) {
	s := NewService()
	defer s.Close()
	var got *Request
	serve(t, s, func(r *Request) {
		got = r
		r.Resolve(docpath.New("/docs/plan.xmind"))
	})

	h, err := s.ChooseSource(context.Background(), session.SourceFilter)
	if err != nil {
		t.Fatalf("ChooseSource() error: %v", err)
	}
	if h.String() != "/docs/plan.xmind" {
		t.Errorf("handle = %q", h)
	}
	if got.Kind != KindOpen {
		t.Errorf("Kind = %v, want open", got.Kind)
	}
}

func TestChooseDestinationCancelled(t *testing.T) {
	s := NewService()
	defer s.Close()
	var got *Request
	serve(t, s, func(r *Request) {
		got = r
		r.Cancel()
		r.Resolve(docpath.New("/ignored.md"))
	})

	h, err := s.ChooseDestination(context.Background(), "plan.md", session.MarkdownFilter)
	if err != nil || h != nil {
		t.Fatalf("ChooseDestination() = %v, %v; want cancel", h, err)
	}
	if got.Kind != KindSave || got.DefaultName != "plan.md" {
		t.Errorf("request = %+v", got)
	}
}

func TestRequestFail(t *testing.T) {
	s := NewService()
	defer s.Close()
	boom := errors.New("boom")
	serve(t, s, func(r *Request) { r.Fail(boom) })

	if _, err := s.ChooseSource(context.Background(), session.SourceFilter); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestAskContextCancelled(t *testing.T) {
	s := NewService()
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.ChooseSource(ctx, session.SourceFilter); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestCloseReleasesWaiters(t *testing.T) {
	s := NewService()
	errc := make(chan error, 1)
	go func() {
		_, err := s.ChooseSource(context.Background(), session.SourceFilter)
		errc <- err
	}()
	time.Sleep(5 * time.Millisecond)
	s.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not release the waiting picker")
	}
	if msg := s.Next(context.Background())(); msg != nil {
		t.Errorf("Next after Close = %v, want nil", msg)
	}
}

func TestParseTyped(t *testing.T) {
	base := "/work"
	tests := []struct {
		in   string
		want string
	}{
		{"plan.md", "/work/plan.md"},
		{"out/plan", "/work/out/plan.md"},
		{"/abs/plan.markdown", "/abs/plan.markdown"},
		{"file:///abs/my%20plan.md", "/abs/my plan.md"},
	}
	for _, tt := range tests {
		h := ParseTyped(tt.in, base, session.MarkdownFilter)
		p, ok := h.(docpath.Path)
		if !ok {
			t.Errorf("ParseTyped(%q) = %T, want docpath.Path", tt.in, h)
			continue
		}
		if p.String() != filepath.FromSlash(tt.want) {
			t.Errorf("ParseTyped(%q) = %q, want %q", tt.in, p, tt.want)
		}
	}

	if h := ParseTyped("s3://bucket/plan.md", base, session.MarkdownFilter); h != URI("s3://bucket/plan.md") {
		t.Errorf("ParseTyped(s3://...) = %#v, want URI handle", h)
	}
	if h := ParseTyped("   ", base, session.MarkdownFilter); h != nil {
		t.Errorf("ParseTyped(blank) = %v, want nil", h)
	}
}
