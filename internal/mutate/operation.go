package mutate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind selects how an Operation edits content.
type Kind int

const (
	// InsertBefore inserts the payload above the first line matching the anchor.
	InsertBefore Kind = iota
	// InsertAfter inserts the payload below the first line matching the anchor.
	InsertAfter
	// Substitute replaces every match of the anchor across the whole content.
	Substitute
	// Append inserts the payload above the last line matching the terminal
	// marker (the anchor), or at end of file when the anchor is empty.
	Append
)

var kindNames = map[Kind]string{
	InsertBefore: "insert-before",
	InsertAfter:  "insert-after",
	Substitute:   "substitute",
	Append:       "append",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses a kind name such as "insert-after".
func ParseKind(s string) (Kind, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for k, name := range kindNames {
		if name == norm {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown mutation kind %q", s)
}

// Policy decides what happens when the anchor does not match.
type Policy int

const (
	// PolicyDefault fails for inserts and append, and skips for substitute.
	PolicyDefault Policy = iota
	// PolicyFail always fails when the anchor does not match.
	PolicyFail
	// PolicySkip leaves the content unchanged when the anchor does not match.
	PolicySkip
)

func (p Policy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	case PolicySkip:
		return "skip"
	default:
		return "default"
	}
}

// ParsePolicy parses "fail", "skip" or "" (default).
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PolicyDefault, nil
	case "fail":
		return PolicyFail, nil
	case "skip":
		return PolicySkip, nil
	default:
		return 0, fmt.Errorf("unknown anchor policy %q", s)
	}
}

// Operation is one anchor-based edit.
type Operation struct {
	Kind      Kind
	File      string // Target path relative to the project (used by callers)
	Anchor    string // Regular expression, or literal text when Literal is set
	Literal   bool   // Quote Anchor; for Substitute, also insert Payload verbatim
	Payload   string
	OnMissing Policy
}

// fails reports whether a missing anchor is an error for this operation.
func (op Operation) fails() bool {
	switch op.OnMissing {
	case PolicyFail:
		return true
	case PolicySkip:
		return false
	default:
		return op.Kind != Substitute
	}
}

func (op Operation) compile() (*regexp.Regexp, error) {
	pattern := op.Anchor
	if op.Literal {
		pattern = regexp.QuoteMeta(pattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling anchor %q: %w", op.Anchor, err)
	}
	return re, nil
}

// Validate checks that the operation is well formed: a known kind, an
// anchor for everything but an end-of-file append, and an anchor that
// compiles.
func (op Operation) Validate() error {
	if _, ok := kindNames[op.Kind]; !ok {
		return fmt.Errorf("unknown mutation kind %d", int(op.Kind))
	}
	if op.Anchor == "" && op.Kind != Append {
		return fmt.Errorf("%s needs an anchor", op.Kind)
	}
	_, err := op.compile()
	return err
}

// Describe returns a short human-readable summary.
func (op Operation) Describe() string {
	return fmt.Sprintf("%s %s at %q", op.Kind, op.File, op.Anchor)
}

// ErrAnchorNotFound is matched by every missing-anchor error.
var ErrAnchorNotFound = errors.New("anchor not found")

// AnchorNotFoundError reports an insert or append whose anchor matched no line.
type AnchorNotFoundError struct {
	Kind   Kind
	File   string
	Anchor string
}

func (e *AnchorNotFoundError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s: anchor %q not found", e.Kind, e.Anchor)
	}
	return fmt.Sprintf("%s %s: anchor %q not found", e.Kind, e.File, e.Anchor)
}

func (e *AnchorNotFoundError) Is(target error) bool { return target == ErrAnchorNotFound }

// PatternMismatchError reports a substitute that required a match and found
// none.
type PatternMismatchError struct {
	File    string
	Pattern string
}

func (e *PatternMismatchError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("substitute: pattern %q matched nothing", e.Pattern)
	}
	return fmt.Sprintf("substitute %s: pattern %q matched nothing", e.File, e.Pattern)
}

func (e *PatternMismatchError) Is(target error) bool { return target == ErrAnchorNotFound }
