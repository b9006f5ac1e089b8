// Package host decides whether privileged host operations (file dialogs,
// filesystem access, launching the default opener) can be used. A Gate
// waits a bounded time for the host bridge to come up and then lets the
// application continue in a degraded mode instead of blocking forever.
package host

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultTimeout      = 5 * time.Second
)

// State is the outcome of waiting for the bridge.
type State int

const (
	StatePending State = iota
	StateReady
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateTimedOut:
		return "timed out"
	default:
		return "pending"
	}
}

// Probe reports whether the host bridge is currently usable.
type Probe interface {
	Available() bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func() bool

func (f ProbeFunc) Available() bool { return f() }

// Bridge is a Probe that becomes available once Signal is called. The UI
// signals it when the terminal program is up and able to show dialogs.
type Bridge struct {
	up atomic.Bool
}

// Signal marks the bridge as available. Safe to call more than once.
func (b *Bridge) Signal() { b.up.Store(true) }

func (b *Bridge) Available() bool { return b.up.Load() }

// TerminalProbe reports available when f is attached to a terminal.
func TerminalProbe(f *os.File) Probe {
	return ProbeFunc(func() bool {
		fd := f.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	})
}

// All returns a Probe that is available when every probe is.
func All(probes ...Probe) Probe {
	return ProbeFunc(func() bool {
		for _, p := range probes {
			if !p.Available() {
				return false
			}
		}
		return true
	})
}

// Option customizes a Gate.
type Option func(*Gate)

// WithPollInterval sets how often the probe is checked while pending.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithTimeout sets the ceiling after which the gate gives up.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// Gate tracks bridge readiness.
type Gate struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration

	start sync.Once
	done  chan struct{}

	mu    sync.Mutex
	state State
}

// NewGate creates a gate over probe.
func NewGate(probe Probe, opts ...Option) *Gate {
	g := &Gate{
		probe:    probe,
		interval: DefaultPollInterval,
		timeout:  DefaultTimeout,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Await blocks until the bridge is available, the timeout elapses or ctx is
// done, and returns the resulting state. The first call starts a single
// poll that runs to completion regardless of any caller's ctx; every caller
// waits on it. A cancelled ctx returns the current state, usually
// StatePending.
func (g *Gate) Await(ctx context.Context) State {
	g.start.Do(func() { go g.run() })
	select {
	case <-g.done:
	case <-ctx.Done():
	}
	return g.State()
}

func (g *Gate) run() {
	s := g.poll()
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
	close(g.done)
	log.Printf("host gate: %s", s)
}

func (g *Gate) poll() State {
	if g.probe.Available() {
		return StateReady
	}
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(g.timeout)
	defer deadline.Stop()
	for {
		select {
		case <-deadline.C:
			if g.probe.Available() {
				return StateReady
			}
			return StateTimedOut
		case <-ticker.C:
			if g.probe.Available() {
				return StateReady
			}
		}
	}
}

// State returns the last resolved state without probing.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ready reports whether gated operations may run. After a timeout the probe
// is consulted again on every call so a late bridge is still honoured.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateReady:
		return true
	case StateTimedOut:
		if g.probe.Available() {
			g.state = StateReady
			return true
		}
	}
	return false
}
