package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/hatch/internal/manifest"
	"github.com/simonhull/firebird-suite/hatch/internal/mutate"
	"github.com/simonhull/firebird-suite/hatch/internal/output"
)

func TestManifestSteps_KeepEditsMadeBetweenThem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Gemfile")
	writeFile(t, path, "source 'https://rubygems.org'\n\ngem 'pg'\n")
	env := &Env{Dir: dir, ManifestPath: "Gemfile", Out: output.NewReporter(&bytes.Buffer{}, false)}
	ctx := context.Background()

	require.NoError(t, (&DirectiveStep{Directive: manifest.Directive{Name: "devise"}}).Execute(ctx, env))
	require.NoError(t, (&MutationStep{Op: mutate.Operation{
		Kind:    mutate.InsertAfter,
		File:    "Gemfile",
		Anchor:  `^source `,
		Payload: "ruby '2.7.1'",
	}}).Execute(ctx, env))
	require.NoError(t, (&DirectiveStep{Directive: manifest.Directive{Name: "sidekiq"}}).Execute(ctx, env))
	require.NoError(t, (&RemoveStep{Pattern: `gem 'pg'\n`}).Execute(ctx, env))

	got := readFile(t, path)
	assert.Contains(t, got, "source 'https://rubygems.org'\nruby '2.7.1'\n")
	assert.Contains(t, got, "gem 'devise'\ngem 'sidekiq'\n")
	assert.NotContains(t, got, "gem 'pg'")
}

func TestManifestSteps_DryRunAccumulates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Gemfile")
	writeFile(t, path, "gem 'pg'\n")
	var out bytes.Buffer
	env := &Env{Dir: dir, ManifestPath: "Gemfile", Out: output.NewReporter(&out, false), DryRun: true}
	ctx := context.Background()

	require.NoError(t, (&DirectiveStep{Directive: manifest.Directive{Name: "devise"}}).Execute(ctx, env))
	require.NoError(t, (&DirectiveStep{Directive: manifest.Directive{Name: "devise"}}).Execute(ctx, env))

	assert.Equal(t, "gem 'pg'\n", readFile(t, path))
	assert.Equal(t, 1, bytes.Count(out.Bytes(), []byte("+gem 'devise'")), "the second add is a no-op against the pending edit")
}
