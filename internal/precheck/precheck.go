// Package precheck validates the environment before hatch mutates anything.
//
// Two things are checked: that the host tool (e.g. rails) satisfies a semver
// range, and that the dependency manifest already declares a required entry.
// The checker only reads; a failure leaves the target untouched.
package precheck

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
)

// Requirement describes what the environment must provide.
type Requirement struct {
	Tool           string   // Display name of the host tool
	VersionCommand []string // Command printing the tool version
	Constraint     string   // Semver range the version must satisfy
	ManifestMarker string   // Regexp a manifest line must match
}

// PreconditionError wraps any failed check. Nothing has been modified when
// it is returned.
type PreconditionError struct {
	Err error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %v", e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// VersionMismatchError reports a tool version outside the required range.
type VersionMismatchError struct {
	Tool     string
	Required string
	Actual   string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%s %s required, found %s", e.Tool, e.Required, e.Actual)
}

// MissingDeclarationError reports a manifest without the required entry.
type MissingDeclarationError struct {
	Marker   string
	Manifest string
}

func (e *MissingDeclarationError) Error() string {
	return fmt.Sprintf("%s has no line matching %s", e.Manifest, e.Marker)
}

// ErrDeclined is wrapped when the user refuses to continue after a mismatch.
var ErrDeclined = errors.New("declined to continue")

var versionToken = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// Checker runs precondition checks.
type Checker struct {
	runner  exec.Runner
	confirm input.Confirmer
}

// NewChecker creates a checker. runner executes the version command; confirm
// is asked whether to continue after a version mismatch.
func NewChecker(runner exec.Runner, confirm input.Confirmer) *Checker {
	return &Checker{runner: runner, confirm: confirm}
}

// Check verifies req against the environment. dir is where the version
// command runs; manifestPath is the manifest to inspect.
func (c *Checker) Check(ctx context.Context, req Requirement, dir, manifestPath string) error {
	if err := c.checkVersion(ctx, req, dir); err != nil {
		return &PreconditionError{Err: err}
	}
	if err := CheckMarker(req.ManifestMarker, manifestPath); err != nil {
		return &PreconditionError{Err: err}
	}
	return nil
}

func (c *Checker) checkVersion(ctx context.Context, req Requirement, dir string) error {
	if req.Constraint == "" || len(req.VersionCommand) == 0 {
		return nil
	}

	constraint, err := semver.NewConstraint(req.Constraint)
	if err != nil {
		return fmt.Errorf("parsing version constraint %q: %w", req.Constraint, err)
	}

	res, err := c.runner.Run(ctx, exec.Command{
		Name:        req.VersionCommand[0],
		Args:        req.VersionCommand[1:],
		Dir:         dir,
		Criticality: exec.Fatal,
	})
	if err != nil {
		return fmt.Errorf("checking %s version: %w", req.Tool, err)
	}

	raw := versionToken.FindString(res.Stdout)
	if raw == "" {
		return fmt.Errorf("no version found in %s output %q", req.Tool, strings.TrimSpace(res.Stdout))
	}
	actual, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("parsing %s version %q: %w", req.Tool, raw, err)
	}

	if constraint.Check(actual) {
		return nil
	}

	mismatch := &VersionMismatchError{Tool: req.Tool, Required: req.Constraint, Actual: actual.Original()}
	prompt := fmt.Sprintf("This template requires %s %s. You are using %s. Continue anyway?",
		req.Tool, req.Constraint, actual.Original())
	if c.confirm != nil {
		ok, err := c.confirm.Confirm(ctx, prompt, false)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %w", mismatch, ErrDeclined)
}

// CheckMarker verifies that some line of the manifest matches marker. An
// empty marker always passes.
func CheckMarker(marker, manifestPath string) error {
	if marker == "" {
		return nil
	}
	re, err := regexp.Compile("(?m)" + marker)
	if err != nil {
		return fmt.Errorf("compiling manifest marker %q: %w", marker, err)
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	if !re.Match(data) {
		return &MissingDeclarationError{Marker: marker, Manifest: manifestPath}
	}
	return nil
}
