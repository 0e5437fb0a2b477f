// Package source resolves where a template's files come from.
//
// A template origin is either a local directory, used in place, or a remote
// git repository, cloned into an ephemeral directory owned by a guard.Guard.
// The ephemeral directory is registered with the guard before the clone
// starts, so a failed clone is cleaned up the same way as a successful one.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/simonhull/firebird-suite/hatch/internal/exec"
	"github.com/simonhull/firebird-suite/hatch/internal/guard"
)

// TemplateSource is a resolved template origin.
type TemplateSource struct {
	Origin    string // As given: local path or remote URL
	Dir       string // Local directory holding the template files
	Ephemeral bool   // Dir is a temporary clone released by the guard
}

// FetchError reports a failed remote clone.
type FetchError struct {
	Origin string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching template source %s: %v", e.Origin, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options tune remote clones.
type Options struct {
	Ref     string // Branch or tag to clone (empty means default branch)
	Shallow bool   // Clone with --depth 1
	Git     string // git executable (default "git")
}

// Resolver turns origins into TemplateSources.
type Resolver struct {
	runner exec.Runner
	guard  *guard.Guard
	opts   Options
}

// NewResolver creates a resolver. Clones run through runner; their
// directories are owned by g.
func NewResolver(runner exec.Runner, g *guard.Guard, opts Options) *Resolver {
	if opts.Git == "" {
		opts.Git = "git"
	}
	return &Resolver{runner: runner, guard: g, opts: opts}
}

// Resolve materializes origin. fallback is used when origin is empty.
func (r *Resolver) Resolve(ctx context.Context, origin, fallback string) (*TemplateSource, error) {
	if origin == "" {
		origin = fallback
	}
	if origin == "" {
		return nil, fmt.Errorf("no template source given")
	}

	if IsRemote(origin) {
		return r.clone(ctx, origin)
	}
	return resolveLocal(origin)
}

func resolveLocal(origin string) (*TemplateSource, error) {
	abs, err := filepath.Abs(origin)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", origin, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("template source %s: %w", origin, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("template source %s is not a directory", origin)
	}
	return &TemplateSource{Origin: origin, Dir: abs}, nil
}

func (r *Resolver) clone(ctx context.Context, origin string) (*TemplateSource, error) {
	res, err := r.guard.Acquire("template clone", guard.TempDir("hatch-template-*"))
	if err != nil {
		return nil, &FetchError{Origin: origin, Err: err}
	}
	dir := res.ID()

	args := []string{"clone", "--quiet"}
	if r.opts.Shallow {
		args = append(args, "--depth", "1")
	}
	if r.opts.Ref != "" {
		args = append(args, "--branch", r.opts.Ref)
	}
	args = append(args, origin, dir)

	if _, err := r.runner.Run(ctx, exec.Command{Name: r.opts.Git, Args: args, Criticality: exec.Fatal}); err != nil {
		return nil, &FetchError{Origin: origin, Err: err}
	}

	return &TemplateSource{Origin: origin, Dir: dir, Ephemeral: true}, nil
}

// IsRemote reports whether origin names a remote repository rather than a
// local path.
func IsRemote(origin string) bool {
	for _, prefix := range []string{"http://", "https://", "ssh://", "git://", "file://", "git@"} {
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	if strings.HasSuffix(origin, ".git") {
		if _, err := os.Stat(origin); err != nil {
			return true
		}
	}
	return false
}
