// Package diff renders line diffs between two versions of a file.
//
// hatch uses it to preview mutations in dry-run mode and to show what a
// forced directory merge would overwrite. Output is a unified diff styled
// with lipgloss; Plain returns the same text without styling for tests and
// logs.
package diff

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Options configures how diffs are rendered. All fields are optional.
type Options struct {
	// ContextLines is the number of unchanged lines around each change.
	// Default: 3
	ContextLines int

	// Styled applies lipgloss colours to headers and changed lines.
	Styled bool

	// Width truncates long lines. Zero means the terminal width (or 120).
	Width int
}

// maxLines bounds the quadratic line comparison.
const maxLines = 5000

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("22"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("52"))
)

type op int

const (
	opEqual op = iota
	opAdd
	opDel
)

type edit struct {
	op      op
	text    string
	oldLine int // 1-based, 0 when added
	newLine int // 1-based, 0 when removed
}

// Unified returns a styled unified diff of old and newer labelled path, or ""
// when they are identical.
func Unified(path string, old, newer []byte) string {
	return Render(path, old, newer, Options{Styled: true})
}

// Plain returns an unstyled unified diff.
func Plain(path string, old, newer []byte) string {
	return Render(path, old, newer, Options{})
}

// Render returns a unified diff using opts.
func Render(path string, old, newer []byte, opts Options) string {
	if bytes.Equal(old, newer) {
		return ""
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = 3
	}
	if opts.Width <= 0 {
		opts.Width = terminalWidth()
	}

	if isBinary(old) || isBinary(newer) {
		return fmt.Sprintf("Binary file %s differs\n", path)
	}

	a, b := splitLines(string(old)), splitLines(string(newer))
	if len(a) > maxLines || len(b) > maxLines {
		return fmt.Sprintf("File %s too large for diff (%d and %d lines)\n", path, len(a), len(b))
	}

	edits := editScript(a, b)

	style := func(s lipgloss.Style, text string) string {
		if opts.Styled {
			return s.Render(text)
		}
		return text
	}

	var buf strings.Builder
	buf.WriteString(style(headerStyle, "--- a/"+path) + "\n")
	buf.WriteString(style(headerStyle, "+++ b/"+path) + "\n")

	for _, h := range hunks(edits, opts.ContextLines) {
		buf.WriteString(style(hunkStyle, h.header()) + "\n")
		for _, e := range h.edits {
			text := truncate(e.text, opts.Width-2)
			switch e.op {
			case opAdd:
				buf.WriteString(style(addedStyle, "+"+text) + "\n")
			case opDel:
				buf.WriteString(style(removedStyle, "-"+text) + "\n")
			default:
				buf.WriteString(" " + text + "\n")
			}
		}
	}

	return buf.String()
}

// editScript computes a shortest edit script with a longest-common-
// subsequence table.
func editScript(a, b []string) []edit {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var edits []edit
	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && a[i] == b[j]:
			edits = append(edits, edit{op: opEqual, text: a[i], oldLine: i + 1, newLine: j + 1})
			i++
			j++
		case i < n && (j == m || lcs[i+1][j] >= lcs[i][j+1]):
			edits = append(edits, edit{op: opDel, text: a[i], oldLine: i + 1})
			i++
		default:
			edits = append(edits, edit{op: opAdd, text: b[j], newLine: j + 1})
			j++
		}
	}
	return edits
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	edits              []edit
}

func (h hunk) header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.oldStart, h.oldCount, h.newStart, h.newCount)
}

// hunks groups edits into hunks, merging changes separated by at most
// 2*context unchanged lines.
func hunks(edits []edit, context int) []hunk {
	var out []hunk
	i := 0
	for i < len(edits) {
		for i < len(edits) && edits[i].op == opEqual {
			i++
		}
		if i == len(edits) {
			break
		}

		start := max(i-context, 0)
		end := i
		for end < len(edits) {
			if edits[end].op != opEqual {
				end++
				continue
			}
			run := end
			for run < len(edits) && edits[run].op == opEqual {
				run++
			}
			if run == len(edits) || run-end > 2*context {
				end = min(end+context, len(edits))
				break
			}
			end = run
		}

		out = append(out, newHunk(edits[start:end]))
		i = end
	}
	return out
}

func newHunk(edits []edit) hunk {
	h := hunk{edits: edits}
	for _, e := range edits {
		if e.op != opAdd {
			if h.oldStart == 0 {
				h.oldStart = e.oldLine
			}
			h.oldCount++
		}
		if e.op != opDel {
			if h.newStart == 0 {
				h.newStart = e.newLine
			}
			h.newCount++
		}
	}
	return h
}

// isBinary checks if content appears to be binary (contains null bytes)
func isBinary(data []byte) bool {
	checkLen := min(len(data), 8192)
	return bytes.IndexByte(data[:checkLen], 0) != -1
}

// splitLines splits content into lines, dropping the empty tail after a
// final newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func truncate(s string, width int) string {
	if width <= 3 {
		width = 80
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 120
	}
	return width
}
