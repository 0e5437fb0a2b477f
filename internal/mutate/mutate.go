// Package mutate applies anchor-based text edits.
//
// Apply is a pure function over file content, so every edit can be tested
// without a filesystem. ApplyFile is the thin I/O wrapper: it reads a file,
// applies operations in memory and writes the result atomically. If any
// operation fails the file on disk is left untouched.
//
// Scoping rules:
//   - insert-before and insert-after use the FIRST matching line only
//   - append uses the LAST line matching its terminal marker
//   - substitute replaces ALL matches anywhere in the content, including
//     inside comments or strings; anchors must be specific enough
package mutate

import (
	"fmt"
	"regexp"
	"strings"
)

// Apply returns content with op applied.
func Apply(content string, op Operation) (string, error) {
	switch op.Kind {
	case Substitute:
		return substitute(content, op)
	case Append:
		return appendBefore(content, op)
	case InsertBefore, InsertAfter:
		return insert(content, op)
	default:
		return content, fmt.Errorf("unknown mutation kind %d", int(op.Kind))
	}
}

// ApplyAll applies ops in order. The first failure aborts and the original
// content is returned with the error.
func ApplyAll(content string, ops ...Operation) (string, error) {
	out := content
	for _, op := range ops {
		next, err := Apply(out, op)
		if err != nil {
			return content, err
		}
		out = next
	}
	return out, nil
}

func substitute(content string, op Operation) (string, error) {
	re, err := op.compile()
	if err != nil {
		return content, err
	}
	if !re.MatchString(content) {
		if op.fails() {
			return content, &PatternMismatchError{File: op.File, Pattern: op.Anchor}
		}
		return content, nil
	}
	if op.Literal {
		return re.ReplaceAllLiteralString(content, op.Payload), nil
	}
	return re.ReplaceAllString(content, op.Payload), nil
}

func insert(content string, op Operation) (string, error) {
	re, err := op.compile()
	if err != nil {
		return content, err
	}

	for _, ln := range splitLines(content) {
		if !ln.matches(re) {
			continue
		}
		if op.Kind == InsertBefore {
			return content[:ln.start] + asLines(op.Payload) + content[ln.start:], nil
		}
		return insertAt(content, ln.end, op.Payload), nil
	}

	return missing(content, op)
}

func appendBefore(content string, op Operation) (string, error) {
	if op.Anchor == "" {
		return insertAt(content, len(content), op.Payload), nil
	}

	re, err := op.compile()
	if err != nil {
		return content, err
	}

	lines := splitLines(content)
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].matches(re) {
			start := lines[i].start
			return content[:start] + asLines(op.Payload) + content[start:], nil
		}
	}

	return missing(content, op)
}

func missing(content string, op Operation) (string, error) {
	if op.fails() {
		return content, &AnchorNotFoundError{Kind: op.Kind, File: op.File, Anchor: op.Anchor}
	}
	return content, nil
}

// insertAt inserts payload as whole lines at offset, which must be a line
// boundary or end of content. A final line without a terminator gets one
// first; the result then keeps the original no-trailing-newline shape.
func insertAt(content string, offset int, payload string) string {
	if payload == "" {
		return content
	}
	if offset == len(content) && content != "" && !strings.HasSuffix(content, "\n") {
		return content + "\n" + strings.TrimSuffix(payload, "\n")
	}
	return content[:offset] + asLines(payload) + content[offset:]
}

// asLines makes payload end with a newline so it occupies whole lines.
func asLines(payload string) string {
	if payload == "" || strings.HasSuffix(payload, "\n") {
		return payload
	}
	return payload + "\n"
}

type line struct {
	start int // Offset of the first byte
	end   int // Offset just past the terminator (or end of content)
	text  string
}

// matches tries the line without and with its terminator, so both "^end$"
// and "'spec_helper'\n" style anchors work.
func (l line) matches(re *regexp.Regexp) bool {
	bare := strings.TrimSuffix(strings.TrimSuffix(l.text, "\n"), "\r")
	return re.MatchString(bare) || re.MatchString(l.text)
}

func splitLines(content string) []line {
	var lines []line
	for start := 0; start < len(content); {
		end := strings.IndexByte(content[start:], '\n')
		if end < 0 {
			end = len(content)
		} else {
			end = start + end + 1
		}
		lines = append(lines, line{start: start, end: end, text: content[start:end]})
		start = end
	}
	return lines
}
