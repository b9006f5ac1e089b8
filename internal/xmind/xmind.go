// Package xmind converts XMind mind maps to markdown.
//
// An .xmind file is a ZIP archive. XMind Zen and later store the sheets as
// content.json; XMind 8 used content.xml, which is not supported.
package xmind

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mindmark/tui/internal/docpath"
)

const (
	contentJSON = "content.json"
	contentXML  = "content.xml"
	// maxListedEntries bounds the archive listing in "not found" errors.
	maxListedEntries = 20
	maxHeadingLevel  = 6
)

// maxContentSize caps how much of content.json is decompressed.
var maxContentSize int64 = 64 << 20

var (
	ErrNotXMind       = errors.New("please choose a .xmind file")
	ErrOpen           = errors.New("cannot open file")
	ErrNotArchive     = errors.New("not a valid ZIP/xmind file")
	ErrLegacyFormat   = errors.New("this is an XMind 8 file (content.xml); only XMind Zen and newer (content.json) are supported, re-save it in a newer XMind and try again")
	ErrNoContent      = errors.New("content.json not found, the XMind version may be unsupported")
	ErrRead           = errors.New("failed to read content.json")
	ErrTooLarge       = errors.New("content.json is too large")
	ErrParse          = errors.New("failed to parse content.json")
	ErrEmptySheets    = errors.New("content.json is an empty array")
	ErrNoRootTopic    = errors.New("rootTopic missing from content.json")
	ErrRootTopicShape = errors.New("rootTopic has an unexpected structure")
)

// Topic is a node of the mind map.
type Topic struct {
	Title    string    `json:"title"`
	Notes    *Notes    `json:"notes"`
	Children *Children `json:"children"`
}

// Notes holds a topic's notes. Only the plain variant is used.
type Notes struct {
	Plain *struct {
		Content string `json:"content"`
	} `json:"plain"`
}

// Children holds the attached subtopics. Detached (floating) topics are
// ignored.
type Children struct {
	Attached []Topic `json:"attached"`
}

// Converter implements session.Converter for .xmind files.
type Converter struct {
	policy *bluemonday.Policy
}

// NewConverter creates a converter.
func NewConverter() *Converter {
	return &Converter{policy: bluemonday.StrictPolicy()}
}

// Convert reads the archive at src and returns its first sheet as markdown.
func (c *Converter) Convert(ctx context.Context, src docpath.Path) (string, error) {
	if !src.HasExt(".xmind") {
		return "", ErrNotXMind
	}
	zr, err := zip.OpenReader(src.String())
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return "", fmt.Errorf("%w: %v", ErrNotArchive, err)
		}
		return "", fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer zr.Close()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	root, err := readRoot(&zr.Reader)
	if err != nil {
		return "", err
	}
	return c.Markdown(root), nil
}

func readRoot(zr *zip.Reader) (Topic, error) {
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	name, ok := findEntry(names, contentJSON)
	if !ok {
		if _, legacy := findEntry(names, contentXML); legacy {
			return Topic{}, ErrLegacyFormat
		}
		return Topic{}, fmt.Errorf("%w; archive entries: %s", ErrNoContent, listEntries(names))
	}

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == name {
			entry = f
			break
		}
	}
	rc, err := entry.Open()
	if err != nil {
		return Topic{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxContentSize+1))
	if err != nil {
		return Topic{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if int64(len(data)) > maxContentSize {
		return Topic{}, fmt.Errorf("%w: over %d bytes", ErrTooLarge, maxContentSize)
	}
	return ParseContent(data)
}

// ParseContent extracts the root topic from content.json. The document is
// either an array of sheets, of which the first is used, or a single sheet
// object.
func ParseContent(data []byte) (Topic, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Topic{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var sheet map[string]json.RawMessage
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return Topic{}, ErrEmptySheets
		}
		var sheets []map[string]json.RawMessage
		if err := json.Unmarshal(data, &sheets); err != nil {
			return Topic{}, fmt.Errorf("%w: %v", ErrNoRootTopic, err)
		}
		sheet = sheets[0]
	case map[string]any:
		if err := json.Unmarshal(data, &sheet); err != nil {
			return Topic{}, fmt.Errorf("%w: %v", ErrParse, err)
		}
	default:
		return Topic{}, ErrNoRootTopic
	}

	rootRaw, ok := sheet["rootTopic"]
	if !ok {
		return Topic{}, ErrNoRootTopic
	}
	var root Topic
	if err := json.Unmarshal(rootRaw, &root); err != nil {
		return Topic{}, fmt.Errorf("%w: %v", ErrRootTopicShape, err)
	}
	return root, nil
}

// Markdown renders root as a heading tree. Depths 1-6 become headings;
// deeper topics become nested bullet items.
func (c *Converter) Markdown(root Topic) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(singleLine(root.Title))
	b.WriteByte('\n')
	c.writeNotes(&b, root.Notes)
	for _, child := range root.attached() {
		c.writeTopic(&b, child, 2)
	}
	return b.String()
}

func (c *Converter) writeTopic(b *strings.Builder, t Topic, level int) {
	b.WriteByte('\n')
	if level <= maxHeadingLevel {
		b.WriteString(strings.Repeat("#", level))
		b.WriteByte(' ')
	} else {
		b.WriteString(strings.Repeat("  ", level-maxHeadingLevel-1))
		b.WriteString("- ")
	}
	b.WriteString(singleLine(t.Title))
	b.WriteByte('\n')
	c.writeNotes(b, t.Notes)
	for _, child := range t.attached() {
		c.writeTopic(b, child, level+1)
	}
}

func (c *Converter) writeNotes(b *strings.Builder, n *Notes) {
	text, ok := c.plainNotes(n)
	if !ok {
		return
	}
	b.WriteString("\n> ")
	b.WriteString(strings.ReplaceAll(text, "\n", "\n> "))
	b.WriteString("\n\n")
}

func (c *Converter) plainNotes(n *Notes) (string, bool) {
	if n == nil || n.Plain == nil {
		return "", false
	}
	s := strings.TrimSpace(n.Plain.Content)
	if s == "" {
		return "", false
	}
	return c.stripHTML(s), true
}

// stripHTML removes markup from note content and decodes entities.
func (c *Converter) stripHTML(s string) string {
	s = html.UnescapeString(c.policy.Sanitize(s))
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}

func (t Topic) attached() []Topic {
	if t.Children == nil {
		return nil
	}
	return t.Children.Attached
}

func singleLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

func normalizeEntry(name string) string {
	return strings.Trim(strings.ReplaceAll(name, `\`, "/"), "/")
}

// findEntry returns the archive entry called base, preferring the root
// entry over nested ones.
func findEntry(names []string, base string) (string, bool) {
	for _, n := range names {
		if normalizeEntry(n) == base {
			return n, true
		}
	}
	for _, n := range names {
		if strings.HasSuffix(normalizeEntry(n), "/"+base) {
			return n, true
		}
	}
	return "", false
}

func listEntries(names []string) string {
	if len(names) <= maxListedEntries {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:maxListedEntries], ", ") + " ..."
}
