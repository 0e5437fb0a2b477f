package manifest

import (
	"regexp"
	"strings"
)

var (
	gemLine   = regexp.MustCompile(`^(\s*)gem\s+['"]([^'"]+)['"]\s*(.*)$`)
	groupLine = regexp.MustCompile(`^(\s*)group\s+(.+?)\s+do\s*(?:#.*)?$`)
	blockOpen = regexp.MustCompile(`\bdo\s*(?:\|[^|]*\|)?\s*(?:#.*)?$`)
	blockEnd  = regexp.MustCompile(`^\s*end\b`)
)

// line is one physical line of the manifest.
type line struct {
	start, end int // Byte offsets; end is past the terminator
	text       string
}

// entry is a parsed gem declaration.
type entry struct {
	Directive
	line     int    // Index into lines
	indent   string // Leading whitespace
	topLevel bool   // Not nested in any block
}

// block is a top-level group block.
type block struct {
	group   Group
	indent  string
	openIdx int
	endIdx  int // -1 when the block is never closed
}

type parsed struct {
	lines   []line
	entries []entry
	groups  []block
}

func splitLines(content string) []line {
	var out []line
	for start := 0; start < len(content); {
		end := strings.IndexByte(content[start:], '\n')
		if end < 0 {
			end = len(content)
		} else {
			end = start + end + 1
		}
		out = append(out, line{start: start, end: end, text: strings.TrimRight(content[start:end], "\r\n")})
		start = end
	}
	return out
}

// parse reads gem declarations and top-level group blocks. Other blocks
// (platforms, source, if) are tracked only so their `end` lines pair up.
func parse(content string) parsed {
	p := parsed{lines: splitLines(content)}

	type frame struct {
		group    Group
		isGroup  bool
		blockIdx int
	}
	var stack []frame

	currentGroup := func() Group {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].isGroup {
				return stack[i].group
			}
		}
		return GroupRuntime
	}

	for i, ln := range p.lines {
		text := ln.text
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := groupLine.FindStringSubmatch(text); m != nil {
			f := frame{group: NormalizeGroup(m[2]), isGroup: true, blockIdx: -1}
			if len(stack) == 0 {
				p.groups = append(p.groups, block{group: f.group, indent: m[1], openIdx: i, endIdx: -1})
				f.blockIdx = len(p.groups) - 1
			}
			stack = append(stack, f)
			continue
		}

		if m := gemLine.FindStringSubmatch(text); m != nil {
			versions, options := splitArgs(m[3])
			p.entries = append(p.entries, entry{
				Directive: Directive{Name: m[2], Versions: versions, Group: currentGroup(), Options: options},
				line:      i,
				indent:    m[1],
				topLevel:  len(stack) == 0,
			})
			continue
		}

		if blockEnd.MatchString(text) {
			if n := len(stack); n > 0 {
				top := stack[n-1]
				if top.blockIdx >= 0 {
					p.groups[top.blockIdx].endIdx = i
				}
				stack = stack[:n-1]
			}
			continue
		}

		if blockOpen.MatchString(stripComment(text)) {
			stack = append(stack, frame{blockIdx: -1})
		}
	}

	return p
}

// splitArgs splits the text after a gem name into quoted version constraints
// and raw options, respecting quotes and brackets and dropping comments.
func splitArgs(rest string) (versions, options []string) {
	rest = strings.TrimSpace(stripComment(rest))
	rest = strings.TrimPrefix(rest, ",")

	var (
		parts []string
		cur   strings.Builder
		depth int
		quote rune
	)
	for _, r := range rest {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '{' || r == '(':
			depth++
		case r == ']' || r == '}' || r == ')':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	parts = append(parts, cur.String())

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if len(part) >= 2 && (part[0] == '\'' || part[0] == '"') && part[len(part)-1] == part[0] {
			versions = append(versions, part[1:len(part)-1])
			continue
		}
		options = append(options, part)
	}
	return versions, options
}

// stripComment removes a trailing # comment that is not inside quotes.
func stripComment(s string) string {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			return strings.TrimRight(s[:i], " \t")
		}
	}
	return s
}
