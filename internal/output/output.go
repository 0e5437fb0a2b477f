// Package output provides styled terminal output for hatch.
//
// Functions use lipgloss for styling but abstract away the details from callers.
// Package-level helpers write to stdout through a default Reporter; code that
// needs a different destination (tests, the pipeline) holds its own Reporter.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Reporter writes styled messages to an io.Writer.
type Reporter struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewReporter creates a reporter writing to w. A nil writer means stdout.
func NewReporter(w io.Writer, verbose bool) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{out: w, verbose: verbose}
}

// Writer returns the underlying writer, used to stream command output.
func (r *Reporter) Writer() io.Writer {
	return r.out
}

// SetVerbose enables or disables verbose output.
func (r *Reporter) SetVerbose(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verbose = v
}

// IsVerbose reports whether verbose output is enabled.
func (r *Reporter) IsVerbose() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.verbose
}

func (r *Reporter) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

// Success prints a success message with 🐣 emoji and green color.
// Use this for completed operations.
func (r *Reporter) Success(msg string) {
	r.println(successStyle.Render("🐣 " + msg))
}

// Error prints an error message with ❌ emoji and red color.
func (r *Reporter) Error(msg string) {
	r.println(errorStyle.Render("❌ " + msg))
}

// Warn prints a warning for problems that do not stop the run, such as a
// best-effort command failing or a cleanup error.
func (r *Reporter) Warn(msg string) {
	r.println(warnStyle.Render("⚠️  " + msg))
}

// Info prints an informational message with ℹ️ emoji and cyan color.
func (r *Reporter) Info(msg string) {
	r.println(infoStyle.Render("ℹ️  " + msg))
}

// Phase prints a pipeline phase header.
func (r *Reporter) Phase(name string) {
	r.println(phaseStyle.Render("▸ " + name))
}

// Step prints an indented step message in gray.
func (r *Reporter) Step(msg string) {
	r.println(stepStyle.Render("   " + msg))
}

// Verbose prints a debug message only if verbose mode is enabled.
func (r *Reporter) Verbose(msg string) {
	if r.IsVerbose() {
		r.println(stepStyle.Render("🔍 " + msg))
	}
}

// Raw writes s without styling. Diffs are already styled.
func (r *Reporter) Raw(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, s)
}

var std = NewReporter(os.Stdout, false)

// Default returns the process-wide reporter used by the package-level helpers.
func Default() *Reporter { return std }

// SetVerbose enables or disables verbose output for debugging.
// This should be called by the CLI when the --verbose flag is set.
func SetVerbose(v bool) { std.SetVerbose(v) }

// Success prints a success message on the default reporter.
//
// Example:
//
//	output.Success("Bootstrapped project in ./myapp")
func Success(msg string) { std.Success(msg) }

// Error prints an error message on the default reporter.
func Error(msg string) { std.Error(msg) }

// Warn prints a warning on the default reporter.
func Warn(msg string) { std.Warn(msg) }

// Info prints an informational message on the default reporter.
func Info(msg string) { std.Info(msg) }

// Step prints an indented step on the default reporter.
//
// Example:
//
//	output.Step("cd myapp")
func Step(msg string) { std.Step(msg) }

// Verbose prints a debug message on the default reporter when verbose mode
// is enabled.
func Verbose(msg string) { std.Verbose(msg) }
