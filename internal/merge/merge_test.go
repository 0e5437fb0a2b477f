package merge

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/simonhull/firebird-suite/hatch/internal/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func templateTree(t *testing.T) string {
	src := t.TempDir()
	write(t, filepath.Join(src, "lib", "templates", "erb", "scaffold", "_form.html.erb"), "<%= form %>\n", 0o644)
	write(t, filepath.Join(src, "lib", "tasks", "auto_annotate.rake"), "task :annotate\n", 0o644)
	write(t, filepath.Join(src, "lib", ".keep"), "", 0o644)
	write(t, filepath.Join(src, "lib", "bin", "setup"), "#!/bin/sh\n", 0o755)
	write(t, filepath.Join(src, "lib", ".git", "HEAD"), "ref\n", 0o644)
	return filepath.Join(src, "lib")
}

func TestMerge_CopiesTreeWithHiddenFiles(t *testing.T) {
	src := templateTree(t)
	dst := filepath.Join(t.TempDir(), "lib")

	written, err := New().Merge(context.Background(), src, dst, false)

	require.NoError(t, err)
	assert.Equal(t, []string{
		".keep",
		filepath.Join("bin", "setup"),
		filepath.Join("tasks", "auto_annotate.rake"),
		filepath.Join("templates", "erb", "scaffold", "_form.html.erb"),
	}, written)
	assert.Equal(t, "task :annotate\n", read(t, filepath.Join(dst, "tasks", "auto_annotate.rake")))
	assert.NoDirExists(t, filepath.Join(dst, ".git"))

	info, err := os.Stat(filepath.Join(dst, "bin", "setup"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestMerge_SkipKeepsExisting(t *testing.T) {
	src := templateTree(t)
	dst := t.TempDir()
	write(t, filepath.Join(dst, "tasks", "auto_annotate.rake"), "custom\n", 0o644)

	m := New()
	written, err := m.Merge(context.Background(), src, dst, false)

	require.NoError(t, err)
	assert.NotContains(t, written, filepath.Join("tasks", "auto_annotate.rake"))
	assert.Equal(t, "custom\n", read(t, filepath.Join(dst, "tasks", "auto_annotate.rake")))
	assert.Equal(t, []string{filepath.Join(dst, "tasks", "auto_annotate.rake")}, m.Report().Skipped)
}

func TestMerge_ForceOverwritesByteForByte(t *testing.T) {
	src := templateTree(t)
	dst := t.TempDir()
	target := filepath.Join(dst, "tasks", "auto_annotate.rake")
	write(t, target, "custom content that is longer\n", 0o600)

	written, err := New().Merge(context.Background(), src, dst, true)

	require.NoError(t, err)
	assert.Contains(t, written, filepath.Join("tasks", "auto_annotate.rake"))
	assert.Equal(t, "task :annotate\n", read(t, target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestMerge_PreservesUnrelatedTargetFiles(t *testing.T) {
	src := templateTree(t)
	dst := t.TempDir()
	write(t, filepath.Join(dst, "assets", "app.css"), "body{}\n", 0o644)

	_, err := New().Merge(context.Background(), src, dst, true)

	require.NoError(t, err)
	assert.Equal(t, "body{}\n", read(t, filepath.Join(dst, "assets", "app.css")))
}

func TestMerge_DryRunWritesNothing(t *testing.T) {
	src := templateTree(t)
	dst := filepath.Join(t.TempDir(), "lib")

	m := New()
	m.DryRun = true
	written, err := m.Merge(context.Background(), src, dst, true)

	require.NoError(t, err)
	assert.Len(t, written, 4)
	assert.NoDirExists(t, dst)
}

func TestMerge_SourceErrors(t *testing.T) {
	_, err := New().Merge(context.Background(), filepath.Join(t.TempDir(), "absent"), t.TempDir(), false)
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "file")
	write(t, file, "x", 0o644)
	_, err = New().Merge(context.Background(), file, t.TempDir(), false)
	assert.ErrorContains(t, err, "not a directory")
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, ".rubocop.yml")
	dst := filepath.Join(dir, "app", ".rubocop.yml")
	write(t, src, "AllCops: {}\n", 0o644)

	m := New()
	ok, err := m.CopyFile(context.Background(), src, dst, false)
	require.NoError(t, err)
	assert.True(t, ok)

	write(t, src, "changed\n", 0o644)
	ok, err = m.CopyFile(context.Background(), src, dst, false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "AllCops: {}\n", read(t, dst))

	ok, err = m.CopyFile(context.Background(), src, dst, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "changed\n", read(t, dst))

	r := m.Report()
	assert.Equal(t, []string{dst, dst}, r.Written)
	assert.Equal(t, []string{dst}, r.Skipped)
}

func TestPromptStrategy(t *testing.T) {
	var out bytes.Buffer

	res, err := PromptStrategy{Confirm: input.Always(true), Out: &out}.Resolve(context.Background(), "Gemfile", []byte("a\n"), []byte("b\n"))
	require.NoError(t, err)
	assert.Equal(t, Overwrite, res)
	assert.Contains(t, out.String(), "+b")

	res, err = PromptStrategy{Confirm: input.Always(false)}.Resolve(context.Background(), "Gemfile", []byte("a\n"), []byte("b\n"))
	require.NoError(t, err)
	assert.Equal(t, Skip, res)

	res, err = PromptStrategy{Confirm: input.Always(true)}.Resolve(context.Background(), "Gemfile", []byte("a\n"), []byte("a\n"))
	require.NoError(t, err)
	assert.Equal(t, Skip, res, "identical files are left alone")
}

func TestStrategyFor(t *testing.T) {
	assert.IsType(t, ForceStrategy{}, StrategyFor(true))
	assert.IsType(t, SkipStrategy{}, StrategyFor(false))
	assert.Equal(t, "overwrite", Overwrite.String())
}

func TestMerge_StrategyOnlyWithoutForce(t *testing.T) {
	src := t.TempDir()
	write(t, filepath.Join(src, "a.rb"), "new\n", 0o644)
	dst := t.TempDir()
	write(t, filepath.Join(dst, "a.rb"), "old\n", 0o644)
	m := &Merger{Strategy: PromptStrategy{Confirm: input.Always(false)}}

	_, err := m.Merge(context.Background(), src, dst, false)
	require.NoError(t, err)
	assert.Equal(t, "old\n", read(t, filepath.Join(dst, "a.rb")))

	_, err = m.Merge(context.Background(), src, dst, true)
	require.NoError(t, err)
	assert.Equal(t, "new\n", read(t, filepath.Join(dst, "a.rb")))
}

func TestPromptStrategy_Cancelled(t *testing.T) {
	in, answer := io.Pipe()
	defer answer.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := PromptStrategy{Confirm: &input.Terminal{In: in, Out: io.Discard}}.Resolve(ctx, "Gemfile", []byte("a\n"), []byte("b\n"))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Skip, res)
}

func TestMerge_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dst := t.TempDir()

	_, err := New().Merge(ctx, templateTree(t), dst, false)

	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dst, ".keep"))
}
