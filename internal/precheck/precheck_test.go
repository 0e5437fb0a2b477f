package precheck

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type versionRunner struct {
	out string
	err error
}

func (v versionRunner) Run(ctx context.Context, cmd exec.Command) (exec.Result, error) {
	return exec.Result{Command: cmd, Stdout: v.out}, v.err
}

// recordingConfirmer remembers the prompt it was shown.
type recordingConfirmer struct {
	answer bool
	prompt string
}

func (r *recordingConfirmer) Confirm(ctx context.Context, message string, defaultYes bool) (bool, error) {
	r.prompt = message
	return r.answer, nil
}

var railsReq = Requirement{
	Tool:           "rails",
	VersionCommand: []string{"rails", "--version"},
	Constraint:     "^6.0",
	ManifestMarker: `^\s*gem ['"]pg['"]`,
}

func writeGemfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Gemfile")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCheck_Satisfied(t *testing.T) {
	gemfile := writeGemfile(t, "source 'https://rubygems.org'\ngem 'rails', '~> 6.1'\ngem 'pg', '>= 0.18'\n")
	c := NewChecker(versionRunner{out: "Rails 6.1.4\n"}, input.Always(false))

	require.NoError(t, c.Check(context.Background(), railsReq, "", gemfile))
}

func TestCheck_VersionMismatchDeclined(t *testing.T) {
	gemfile := writeGemfile(t, "gem 'pg'\n")
	confirm := &recordingConfirmer{answer: false}
	c := NewChecker(versionRunner{out: "Rails 7.0.4\n"}, confirm)

	err := c.Check(context.Background(), railsReq, "", gemfile)

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	var mismatch *VersionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "^6.0", mismatch.Required)
	assert.Equal(t, "7.0.4", mismatch.Actual)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Contains(t, confirm.prompt, "requires rails ^6.0")
	assert.Contains(t, confirm.prompt, "You are using 7.0.4")
}

func TestCheck_VersionMismatchAccepted(t *testing.T) {
	gemfile := writeGemfile(t, "gem 'pg'\n")
	c := NewChecker(versionRunner{out: "Rails 5.2.8\n"}, input.Always(true))

	assert.NoError(t, c.Check(context.Background(), railsReq, "", gemfile))
}

func TestCheck_MissingMarker(t *testing.T) {
	gemfile := writeGemfile(t, "gem 'rails'\ngem 'sqlite3'\n")
	c := NewChecker(versionRunner{out: "Rails 6.0.0"}, input.Always(true))

	err := c.Check(context.Background(), railsReq, "", gemfile)

	var missing *MissingDeclarationError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, gemfile, missing.Manifest)
}

func TestCheck_MarkerIgnoresCommentedOutGem(t *testing.T) {
	gemfile := writeGemfile(t, "# gem 'pg'\n")

	err := CheckMarker(railsReq.ManifestMarker, gemfile)

	var missing *MissingDeclarationError
	assert.ErrorAs(t, err, &missing)
}

func TestCheck_VersionCommandFails(t *testing.T) {
	gemfile := writeGemfile(t, "gem 'pg'\n")
	c := NewChecker(versionRunner{err: &exec.ExternalCommandFailure{Command: "rails --version", ExitCode: 127}}, input.Always(true))

	err := c.Check(context.Background(), railsReq, "", gemfile)

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Contains(t, err.Error(), "checking rails version")
}

func TestCheck_UnparseableVersion(t *testing.T) {
	gemfile := writeGemfile(t, "gem 'pg'\n")
	c := NewChecker(versionRunner{out: "command not understood"}, input.Always(true))

	err := c.Check(context.Background(), railsReq, "", gemfile)
	assert.ErrorContains(t, err, "no version found")
}

func TestCheck_EmptyRequirementPasses(t *testing.T) {
	c := NewChecker(versionRunner{}, nil)
	assert.NoError(t, c.Check(context.Background(), Requirement{}, "", "/does/not/matter"))
}
