// Package manifest edits a Gemfile-style dependency manifest.
//
// Directives are keyed by (name, group). Adding a directive whose key already
// exists replaces the existing declaration in place; it never duplicates it.
// Runtime directives are written ungrouped, after the last top-level
// declaration. Grouped directives go inside the matching `group ... do` block,
// which is created at the end of the file on first use. Existing blocks keep
// their order. Every byte not touched by an edit is preserved.
//
// All edits go through the mutate primitives: removal is a substitute with an
// empty replacement and additions into a block are an append before the
// block's closing `end`.
package manifest

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/simonhull/firebird-suite/hatch/internal/mutate"
)

const indentUnit = "  "

// Editor holds a manifest's content and applies directive edits to it.
type Editor struct {
	path    string
	content string
	mode    os.FileMode
	dirty   bool
}

// New creates an editor over in-memory content.
func New(content string) *Editor {
	return &Editor{content: content, mode: 0o644}
}

// Open reads the manifest at path.
func Open(path string) (*Editor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return &Editor{path: path, content: string(data), mode: info.Mode().Perm()}, nil
}

// Path returns the manifest path ("" for in-memory editors).
func (e *Editor) Path() string { return e.path }

// Content returns the current manifest text.
func (e *Editor) Content() string { return e.content }

// Dirty reports whether the content changed since Open or the last Save.
func (e *Editor) Dirty() bool { return e.dirty }

// Directives lists the declarations currently in the manifest, in file order.
func (e *Editor) Directives() []Directive {
	p := parse(e.content)
	out := make([]Directive, len(p.entries))
	for i, en := range p.entries {
		out[i] = en.Directive
	}
	return out
}

// Lookup returns the directive with key k.
func (e *Editor) Lookup(k Key) (Directive, bool) {
	for _, d := range e.Directives() {
		if d.Key() == k {
			return d, true
		}
	}
	return Directive{}, false
}

// Add declares d, replacing any declaration with the same key.
func (e *Editor) Add(d Directive) error {
	if err := d.Validate(); err != nil {
		return err
	}
	d.Group = d.Key().Group

	p := parse(e.content)
	if e.replace(p, d) {
		return nil
	}

	if d.Group.IsRuntime() {
		return e.addRuntime(p, d)
	}
	return e.addGrouped(p, d)
}

// replace rewrites the first declaration with d's key and drops any later
// duplicates. It reports whether a declaration existed.
func (e *Editor) replace(p parsed, d Directive) bool {
	key := d.Key()
	var matches []entry
	for _, en := range p.entries {
		if en.Key() == key {
			matches = append(matches, en)
		}
	}
	if len(matches) == 0 {
		return false
	}

	var b strings.Builder
	last := 0
	for i, m := range matches {
		ln := p.lines[m.line]
		b.WriteString(e.content[last:ln.start])
		if i == 0 {
			b.WriteString(m.indent + d.Render() + lineEnding(e.content[ln.start:ln.end]))
		}
		last = ln.end
	}
	b.WriteString(e.content[last:])

	e.set(b.String())
	return true
}

func (e *Editor) addRuntime(p parsed, d Directive) error {
	var anchor *entry
	for i := range p.entries {
		if p.entries[i].topLevel {
			anchor = &p.entries[i]
		}
	}

	if anchor == nil {
		out, err := mutate.Apply(e.content, mutate.Operation{Kind: mutate.Append, File: e.path, Payload: d.Render()})
		if err != nil {
			return err
		}
		e.set(out)
		return nil
	}

	ln := p.lines[anchor.line]
	payload := anchor.indent + d.Render() + "\n"
	if !strings.HasSuffix(e.content[ln.start:ln.end], "\n") {
		e.set(e.content + "\n" + strings.TrimSuffix(payload, "\n"))
		return nil
	}
	e.set(e.content[:ln.end] + payload + e.content[ln.end:])
	return nil
}

func (e *Editor) addGrouped(p parsed, d Directive) error {
	for _, g := range p.groups {
		if g.group != d.Group || g.endIdx < 0 {
			continue
		}

		// Append before the block's own `end`: restrict the content to the
		// prefix ending at that line so it is the last marker in view.
		cut := p.lines[g.endIdx].end
		prefix, err := mutate.Apply(e.content[:cut], mutate.Operation{
			Kind:    mutate.Append,
			File:    e.path,
			Anchor:  `^\s*end\b`,
			Payload: g.indent + indentUnit + d.Render(),
		})
		if err != nil {
			return err
		}
		e.set(prefix + e.content[cut:])
		return nil
	}

	blockText := d.Group.header() + "\n" + indentUnit + d.Render() + "\nend\n"
	sep := "\n"
	if e.content == "" || strings.HasSuffix(e.content, "\n\n") {
		sep = ""
	}
	out, err := mutate.Apply(e.content, mutate.Operation{Kind: mutate.Append, File: e.path, Payload: sep + blockText})
	if err != nil {
		return err
	}
	if e.content != "" && !strings.HasSuffix(e.content, "\n") {
		// Append joined the block onto a final line without terminator.
		out = e.content + "\n" + sep + blockText
	}
	e.set(out)
	return nil
}

// RemoveMatching deletes every match of pattern (e.g. `gem 'jbuilder'.*\n`)
// and returns how many were removed.
func (e *Editor) RemoveMatching(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compiling removal pattern %q: %w", pattern, err)
	}
	n := len(re.FindAllStringIndex(e.content, -1))
	if n == 0 {
		return 0, nil
	}

	out, err := mutate.Apply(e.content, mutate.Operation{
		Kind:    mutate.Substitute,
		File:    e.path,
		Anchor:  pattern,
		Literal: false,
		Payload: "",
	})
	if err != nil {
		return 0, err
	}
	e.set(out)
	return n, nil
}

// Save writes the manifest atomically if it changed.
func (e *Editor) Save() error {
	if !e.dirty {
		return nil
	}
	if e.path == "" {
		return fmt.Errorf("manifest has no path")
	}
	if err := mutate.WriteFileAtomic(e.path, []byte(e.content), e.mode); err != nil {
		return err
	}
	e.dirty = false
	return nil
}

func (e *Editor) set(content string) {
	if content != e.content {
		e.content = content
		e.dirty = true
	}
}

func lineEnding(s string) string {
	switch {
	case strings.HasSuffix(s, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(s, "\n"):
		return "\n"
	default:
		return ""
	}
}
