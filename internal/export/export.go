// Package export writes converted markdown to disk and hands saved files
// to the host's default application.
package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/mindmark/tui/internal/docpath"
)

// ErrNoOpener is returned when no opener command is available.
var ErrNoOpener = errors.New("no default opener available")

// FileWriter writes files atomically: it writes a temp file next to the
// destination and renames it into place.
type FileWriter struct {
	// Perm is the mode of created files. Zero means 0o644.
	Perm os.FileMode
}

// Write stores content at dest.
func (w FileWriter) Write(ctx context.Context, dest docpath.Path, content string) error {
	if dest.IsZero() {
		return errors.New("empty destination")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	dir := dest.Dir()

	tmp, err := os.CreateTemp(dir, "."+dest.Base()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write failed: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest.String()); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	committed = true
	return nil
}

// SystemOpener launches the platform's default handler for a file.
type SystemOpener struct {
	// Command overrides the platform default. The file path is appended as
	// the last argument.
	Command []string

	lookPath func(string) (string, error)
	start    func(*exec.Cmd) error
}

// DefaultOpenCommand returns the opener for goos.
func DefaultOpenCommand(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

// Open starts the opener for dest without waiting for it to finish.
func (o SystemOpener) Open(ctx context.Context, dest docpath.Path) error {
	argv := o.Command
	if len(argv) == 0 {
		argv = DefaultOpenCommand(runtime.GOOS)
	}
	lookPath := o.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	bin, err := lookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoOpener, argv[0], err)
	}
	abs, err := filepath.Abs(dest.String())
	if err != nil {
		abs = dest.String()
	}
	args := append(append([]string{}, argv[1:]...), abs)
	// The opener may outlive the request, so it is not bound to ctx.
	cmd := exec.Command(bin, args...)

	start := o.start
	if start == nil {
		start = startDetached
	}
	if err := start(cmd); err != nil {
		return fmt.Errorf("starting %s: %w", argv[0], err)
	}
	return nil
}

func startDetached(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("export: opener exited: %v", err)
		}
	}()
	return nil
}
