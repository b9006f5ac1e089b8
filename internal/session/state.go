// Package session holds the single active conversion session and the
// controller that is the only writer of it. The controller sequences the
// picker, conversion and persistence collaborators, keeps at most one
// operation of each class in flight, and never leaves the session half
// updated when a collaborator fails.
package session

import (
	"github.com/mindmark/tui/internal/docpath"
)

// Kind classifies the status banner.
type Kind int

const (
	KindNone Kind = iota
	KindError
	KindSuccess
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindSuccess:
		return "success"
	default:
		return "none"
	}
}

// Status is the transient banner shown after an operation attempt.
type Status struct {
	Text string
	Kind Kind
}

// Op identifies an operation class for single-flight tracking.
type Op int

const (
	OpSelect Op = iota
	OpConvert
	OpExport
	opCount
)

func (o Op) String() string {
	switch o {
	case OpSelect:
		return "select"
	case OpConvert:
		return "convert"
	case OpExport:
		return "export"
	default:
		return "unknown"
	}
}

// Phase is the session state derived from the data in a Snapshot.
type Phase int

const (
	PhaseEmpty Phase = iota
	PhaseSourceSelected
	PhaseConverted
	PhaseConvertFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSourceSelected:
		return "source selected"
	case PhaseConverted:
		return "converted"
	case PhaseConvertFailed:
		return "convert failed"
	default:
		return "empty"
	}
}

// Snapshot is an immutable copy of the session.
type Snapshot struct {
	Source docpath.Path
	Output string
	Status Status
	Busy   [opCount]bool
	// Seq increases with every mutation so observers can drop stale copies.
	Seq uint64

	converted bool
	failed    bool
}

// HasSource reports whether a source document is selected.
func (s Snapshot) HasSource() bool { return !s.Source.IsZero() }

// HasOutput reports whether there is markdown to preview or export.
func (s Snapshot) HasOutput() bool { return s.Output != "" }

// InFlight reports whether an operation of class op is pending.
func (s Snapshot) InFlight(op Op) bool {
	if op < 0 || op >= opCount {
		return false
	}
	return s.Busy[op]
}

// Phase derives the state machine position.
func (s Snapshot) Phase() Phase {
	switch {
	case !s.HasSource():
		return PhaseEmpty
	case s.failed:
		return PhaseConvertFailed
	case s.converted:
		return PhaseConverted
	default:
		return PhaseSourceSelected
	}
}

// state is the mutable session owned by the Controller.
type state struct {
	source docpath.Path
	output string
	status Status
	busy   [opCount]bool
	seq    uint64
	// gen changes whenever the source changes; conversions started under an
	// older generation are discarded.
	gen       uint64
	converted bool
	failed    bool
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Source:    s.source,
		Output:    s.output,
		Status:    s.status,
		Busy:      s.busy,
		Seq:       s.seq,
		converted: s.converted,
		failed:    s.failed,
	}
}

// setSource replaces the source and invalidates any output.
func (s *state) setSource(p docpath.Path) {
	s.source = p
	s.output = ""
	s.converted = false
	s.failed = false
	s.status = Status{}
	s.gen++
}
