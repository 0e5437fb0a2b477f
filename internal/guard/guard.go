// Package guard releases ephemeral resources on every exit path.
//
// A Guard owns resources acquired through it. Release runs each finalizer
// exactly once, newest first, whether the owning scope returns normally,
// fails, or is interrupted. Callers bind Release to the scope with defer:
//
//	g := guard.New()
//	defer g.Release()
//	dir, err := g.Acquire("template clone", guard.TempDir("hatch-template-*"))
//
// Interrupts are turned into context cancellation by NotifyContext so the
// deferred Release still runs; the process is never torn down underneath it.
package guard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Resource is something that must be released.
type Resource interface {
	// ID identifies the resource in logs (e.g. a directory path).
	ID() string
	Release() error
}

// Factory creates a resource. A factory that fails halfway may return the
// partially created resource together with the error; it is still released.
type Factory func() (Resource, error)

// Guard tracks acquired resources and releases them once.
type Guard struct {
	mu      sync.Mutex
	entries []*entry
}

type entry struct {
	name string
	res  Resource
	once sync.Once
	err  error
}

// New creates an empty guard.
func New() *Guard {
	return &Guard{}
}

// Acquire runs factory and registers the resource for release before
// returning it.
func (g *Guard) Acquire(name string, factory Factory) (Resource, error) {
	res, err := factory()
	if res != nil {
		g.mu.Lock()
		g.entries = append(g.entries, &entry{name: name, res: res})
		g.mu.Unlock()
	}
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", name, err)
	}
	return res, nil
}

// Len returns the number of registered resources.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Release releases all registered resources, newest first. Each resource is
// released exactly once even if Release is called again. Failures are
// collected into a *CleanupError; they never stop the remaining releases.
func (g *Guard) Release() error {
	g.mu.Lock()
	entries := make([]*entry, len(g.entries))
	copy(entries, g.entries)
	g.mu.Unlock()

	var failures []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		e.once.Do(func() {
			if err := e.res.Release(); err != nil {
				e.err = &ResourceError{Name: e.name, ID: e.res.ID(), Err: err}
				failures = append(failures, e.err)
			}
		})
	}

	if len(failures) == 0 {
		return nil
	}
	return &CleanupError{Errs: failures}
}

// ResourceError is the failure to release one resource.
type ResourceError struct {
	Name string
	ID   string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("releasing %s (%s): %v", e.Name, e.ID, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// CleanupError aggregates release failures. It is reported, never escalated
// into a pipeline failure.
type CleanupError struct {
	Errs []error
}

func (e *CleanupError) Error() string {
	return errors.Join(e.Errs...).Error()
}

func (e *CleanupError) Unwrap() []error { return e.Errs }

// NotifyContext returns a context cancelled on SIGINT or SIGTERM.
func NotifyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
