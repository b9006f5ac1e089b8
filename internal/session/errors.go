package session

import "errors"

// Precondition and environment errors. Collaborator failures are wrapped in
// ErrSelect, ErrConvert or ErrSave together with the collaborator's error.
var (
	ErrHostUnavailable  = errors.New("host file access is not available; run mindmark in an interactive terminal")
	ErrNoSource         = errors.New("select a .xmind file first")
	ErrNoOutput         = errors.New("nothing to save yet; convert a file first")
	ErrBusy             = errors.New("operation already in progress")
	ErrWrongType        = errors.New("please choose a .xmind file")
	ErrUnresolvablePath = errors.New("the dropped file has no local path; use the file picker instead")
	ErrInvalidHandle    = errors.New("the selection is not a local file path")

	ErrSelect  = errors.New("failed to select file")
	ErrConvert = errors.New("conversion failed")
	ErrSave    = errors.New("save failed")
	ErrSaveAs  = errors.New("save as failed")
)

// opError joins an operation sentinel with the collaborator's cause so that
// both errors.Is(err, ErrConvert) and errors.Is(err, cause) hold.
type opError struct {
	kind  error
	cause error
}

func (e *opError) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

func (e *opError) Unwrap() []error { return []error{e.kind, e.cause} }

func wrap(kind, cause error) error {
	return &opError{kind: kind, cause: cause}
}
