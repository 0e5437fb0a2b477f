package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/term"
)

// DefaultTimeout bounds a single command when neither the command nor the
// executor sets one.
const DefaultTimeout = 30 * time.Minute

// tailSize is how much of each stream is kept for error reporting.
const tailSize = 8 * 1024

// Executor runs external commands.
type Executor struct {
	stdout  io.Writer
	stderr  io.Writer
	env     []string
	timeout time.Duration
	spinner bool

	// For mocking in tests
	commandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Options configures command execution
type Options struct {
	Stdout  io.Writer     // Streamed stdout (nil means os.Stdout)
	Stderr  io.Writer     // Streamed stderr (nil means os.Stderr)
	Env     []string      // Additional environment variables
	Timeout time.Duration // Default per-command timeout
	Spinner bool          // Show a spinner instead of streaming when stderr is a terminal
}

// NewExecutor creates an executor with sensible defaults
func NewExecutor(opts *Options) *Executor {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Executor{
		stdout:      opts.Stdout,
		stderr:      opts.Stderr,
		env:         opts.Env,
		timeout:     opts.Timeout,
		spinner:     opts.Spinner,
		commandFunc: exec.CommandContext,
	}
}

// Run executes cmd and blocks until it exits.
func (e *Executor) Run(ctx context.Context, cmd Command) (Result, error) {
	if e.spinner && isTerminal(e.stderr) {
		return e.runWithSpinner(ctx, cmd)
	}
	return e.run(ctx, cmd, e.stdout, e.stderr)
}

func (e *Executor) run(ctx context.Context, cmd Command, stdout, stderr io.Writer) (Result, error) {
	res := Result{Command: cmd}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := e.commandFunc(runCtx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}
	if env := append(append([]string{}, e.env...), cmd.Env...); len(env) > 0 {
		c.Env = append(c.Environ(), env...)
	}

	outTail := newTailBuffer(tailSize)
	errTail := newTailBuffer(tailSize)
	c.Stdout = io.MultiWriter(stdout, outTail)
	c.Stderr = io.MultiWriter(stderr, errTail)
	// Grandchildren holding the pipes open must not block Wait forever.
	c.WaitDelay = 5 * time.Second

	start := time.Now()
	err := c.Run()
	res.Duration = time.Since(start)
	res.Stdout = outTail.String()
	res.Stderr = errTail.String()

	if err == nil {
		return res, nil
	}

	if ctxErr := runCtx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, &ExternalCommandFailure{
			Command:   cmd.String(),
			ExitCode:  -1,
			Stderr:    res.Stderr,
			Cancelled: true,
			Err:       ctxErr,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExternalCommandFailure{
			Command:  cmd.String(),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}

	if isCommandNotFound(err) {
		res.ExitCode = ExitCodeNotFound
		return res, &ExternalCommandFailure{
			Command:  cmd.String(),
			ExitCode: ExitCodeNotFound,
			Err:      err,
		}
	}

	res.ExitCode = -1
	return res, &ExternalCommandFailure{
		Command:  cmd.String(),
		ExitCode: -1,
		Err:      fmt.Errorf("failed to start %s: %w", cmd.Name, err),
	}
}

// isCommandNotFound checks if an error indicates a command was not found
func isCommandNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "command not found")
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
