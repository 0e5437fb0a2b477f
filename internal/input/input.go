// Package input provides interactive terminal input utilities.
//
// hatch asks yes/no questions in two places: whether to continue after a
// precondition mismatch, and whether to overwrite a file in interactive
// mode. Confirmer abstracts that so non-interactive runs and tests can
// answer without a terminal.
package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Confirmer asks yes/no questions. A cancelled ctx abandons the question
// and returns ctx.Err().
type Confirmer interface {
	Confirm(ctx context.Context, message string, defaultYes bool) (bool, error)
}

// Terminal reads answers from In and writes prompts to Out. Answers are read
// through one buffered reader, so several lines piped at once serve several
// prompts.
type Terminal struct {
	In  io.Reader
	Out io.Writer

	mu      sync.Mutex
	reader  *bufio.Reader
	pending chan line // In-flight read left behind by a cancelled prompt
}

type line struct {
	text string
	err  error
}

// NewTerminal returns a Confirmer bound to stdin/stdout.
func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stdout}
}

// Confirm asks the user a yes/no question.
// Returns true if the user answers yes (y/Y/yes/YES), false otherwise.
// If defaultYes is true, pressing Enter returns true. Otherwise, returns false.
//
// Example:
//
//	ok, err := term.Confirm(ctx, "This recipe requires rails ^6.0. Continue anyway?", false)
//	// Displays: This recipe requires rails ^6.0. Continue anyway? [y/N]: _
func (t *Terminal) Confirm(ctx context.Context, message string, defaultYes bool) (bool, error) {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}

	fmt.Fprint(t.Out, promptStyle.Render(message)+" "+hintStyle.Render(hint)+": ")

	answer, err := t.readLine(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		fmt.Fprintln(t.Out)
		return false, ctxErr
	}
	if err != nil && answer == "" {
		return defaultYes, nil
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer == "" {
		return defaultYes, nil
	}

	return answer == "y" || answer == "yes", nil
}

// readLine waits for the next line of input or for ctx to end. A read
// abandoned by cancellation is picked up by the next call.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	ch := t.pending
	if ch == nil {
		ch = make(chan line, 1)
		r := t.reader
		go func() {
			text, err := r.ReadString('\n')
			ch <- line{text: text, err: err}
		}()
		t.pending = ch
	}
	t.mu.Unlock()

	select {
	case l := <-ch:
		t.mu.Lock()
		t.pending = nil
		t.mu.Unlock()
		return l.text, l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Always answers every question with the same value. Used for --yes and for
// non-interactive runs.
type Always bool

// Confirm returns the fixed answer.
func (a Always) Confirm(context.Context, string, bool) (bool, error) { return bool(a), nil }
