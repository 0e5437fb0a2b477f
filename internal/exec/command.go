package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Criticality decides whether a failing command halts the pipeline.
type Criticality int

const (
	// Fatal commands halt the pipeline on non-zero exit.
	Fatal Criticality = iota
	// BestEffort commands are logged and ignored on non-zero exit.
	BestEffort
)

func (c Criticality) String() string {
	switch c {
	case Fatal:
		return "fatal"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// Command describes one external process invocation.
type Command struct {
	Name        string
	Args        []string
	Dir         string        // Working directory (empty means current)
	Criticality Criticality   // Fatal or BestEffort
	Timeout     time.Duration // Zero uses the executor default
	Env         []string      // Additional environment variables
}

// String returns the command line for display and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Command  Command
	ExitCode int
	Stdout   string // Tail of captured stdout
	Stderr   string // Tail of captured stderr
	Duration time.Duration
}

// Runner executes commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExitCodeNotFound is reported when the executable cannot be located,
// matching the shell convention.
const ExitCodeNotFound = 127

// ExternalCommandFailure reports a command that exited non-zero, could not be
// started, or was cancelled.
type ExternalCommandFailure struct {
	Command   string
	ExitCode  int
	Stderr    string
	Cancelled bool
	Err       error
}

func (e *ExternalCommandFailure) Error() string {
	switch {
	case e.Cancelled:
		return fmt.Sprintf("%s cancelled: %v", e.Command, e.Err)
	case e.ExitCode == ExitCodeNotFound:
		return fmt.Sprintf("%s: command not found\n💡 Please install it and try again", e.Command)
	default:
		msg := fmt.Sprintf("%s failed with exit code %d", e.Command, e.ExitCode)
		if s := strings.TrimSpace(e.Stderr); s != "" {
			msg += ": " + lastLine(s)
		}
		return msg
	}
}

func (e *ExternalCommandFailure) Unwrap() error { return e.Err }

// AsFailure extracts an *ExternalCommandFailure from err.
func AsFailure(err error) (*ExternalCommandFailure, bool) {
	var f *ExternalCommandFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
