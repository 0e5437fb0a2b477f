package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
)

// ErrGateClosed is returned when a deferred phase is reached before the
// phases it waits for have completed.
var ErrGateClosed = errors.New("deferred phase gate closed")

// PhaseError is the fatal error that stopped a run.
type PhaseError struct {
	Phase Phase
	Step  string // Step description; empty for phase-level failures
	Err   error
}

func (e *PhaseError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s failed at %q: %v", e.Phase, e.Step, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// ExitCode returns the failing command's exit code, or a generic code.
func (e *PhaseError) ExitCode() int {
	return ExitCode(e.Err)
}

// Exit codes used when no command exit code applies.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInterrupted = 130
)

// ExitCode maps an error to a process exit code: 0 for nil, the exit code
// of a failed external command when there is one, 130 for interrupts, and
// 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if f, ok := exec.AsFailure(err); ok {
		if f.Cancelled {
			if errors.Is(err, context.Canceled) {
				return ExitInterrupted
			}
			return ExitFailure
		}
		if f.ExitCode > 0 {
			return f.ExitCode
		}
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitFailure
}
