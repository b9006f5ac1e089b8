// Package docpath provides a structured filesystem path used as the source
// and destination identifier throughout mindmark. It replaces ad-hoc string
// slicing with filepath-aware operations.
package docpath

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
)

// DefaultExportName is used when no source document is selected.
const DefaultExportName = "output.md"

// ErrEmptyDrop is returned by ParseDropped when the paste holds no path.
var ErrEmptyDrop = errors.New("docpath: empty drop")

// Path is a cleaned filesystem path. The zero value is "no path".
type Path struct {
	p string
}

// New returns a Path for raw. An empty raw yields the zero Path.
func New(raw string) Path {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Path{}
	}
	return Path{p: filepath.Clean(raw)}
}

// String returns the path as a string.
func (p Path) String() string { return p.p }

// IsZero reports whether p holds no path.
func (p Path) IsZero() bool { return p.p == "" }

// Base returns the last element of the path.
func (p Path) Base() string {
	if p.IsZero() {
		return ""
	}
	return filepath.Base(p.p)
}

// Dir returns all but the last element of the path.
func (p Path) Dir() string {
	if p.IsZero() {
		return ""
	}
	return filepath.Dir(p.p)
}

// Ext returns the extension including the leading dot, as written.
func (p Path) Ext() string { return filepath.Ext(p.p) }

// HasExt reports whether p ends in ext, ignoring case. ext may be given
// with or without the leading dot.
func (p Path) HasExt(ext string) bool {
	return HasExt(p.p, ext)
}

// WithExt returns p with its extension replaced by ext (appended when p has
// none).
func (p Path) WithExt(ext string) Path {
	if p.IsZero() {
		return p
	}
	ext = dotted(ext)
	return Path{p: strings.TrimSuffix(p.p, filepath.Ext(p.p)) + ext}
}

// Join returns p with elem appended.
func (p Path) Join(elem ...string) Path {
	return New(filepath.Join(append([]string{p.p}, elem...)...))
}

// HasExt reports whether name ends in ext, ignoring case.
func HasExt(name, ext string) bool {
	ext = dotted(ext)
	if ext == "." {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ext)
}

// ExportName returns the suggested file name for saving markdown converted
// from source: the source base name with a .md extension.
func ExportName(source Path) string {
	if source.IsZero() {
		return DefaultExportName
	}
	return source.WithExt(".md").Base()
}

// ParseDropped interprets text pasted into the terminal when a file is
// dragged onto it. Terminals quote paths, escape spaces with backslashes or
// send a file:// URL depending on platform.
func ParseDropped(raw string) (Path, error) {
	s := strings.TrimSpace(raw)
	// Some terminals paste a newline-separated list; only the first item counts.
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			s = s[1 : len(s)-1]
		}
	}
	if strings.HasPrefix(s, "file://") {
		u, err := url.Parse(s)
		if err != nil {
			return Path{}, err
		}
		s = u.Path
	} else {
		s = unescapeShell(s)
	}
	if s == "" {
		return Path{}, ErrEmptyDrop
	}
	return New(s), nil
}

func unescapeShell(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(" ()'\"&[]", s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func dotted(ext string) string {
	if strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}
