package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mindmark/tui/internal/session"
)

// SnapshotMsg carries a session snapshot published by the controller.
type SnapshotMsg struct{ Snapshot session.Snapshot }

// Feed hands controller snapshots to the event loop. It holds at most one
// pending snapshot; a newer one replaces an unread older one.
type Feed struct {
	ch chan session.Snapshot
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{ch: make(chan session.Snapshot, 1)}
}

// Publish never blocks. Use it as the controller's observer.
func (f *Feed) Publish(s session.Snapshot) {
	for {
		select {
		case f.ch <- s:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// Next waits for the next snapshot. Re-issue it after each SnapshotMsg.
func (f *Feed) Next(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-f.ch:
			return SnapshotMsg{Snapshot: s}
		case <-ctx.Done():
			return nil
		}
	}
}
