package guard

import (
	"fmt"
	"os"
)

// Dir is a directory removed on release.
type Dir struct {
	Path string
}

// ID returns the directory path.
func (d *Dir) ID() string { return d.Path }

// Release removes the directory tree. A directory already gone is not an
// error.
func (d *Dir) Release() error {
	if err := os.RemoveAll(d.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// TempDir returns a factory creating a fresh temporary directory matching
// pattern (see os.MkdirTemp).
func TempDir(pattern string) Factory {
	return func() (Resource, error) {
		path, err := os.MkdirTemp("", pattern)
		if err != nil {
			return nil, fmt.Errorf("creating temp dir: %w", err)
		}
		return &Dir{Path: path}, nil
	}
}

// Func adapts a plain function into a Resource.
type Func struct {
	Name string
	Fn   func() error
}

// ID returns the function's name.
func (f Func) ID() string { return f.Name }

// Release calls the function.
func (f Func) Release() error { return f.Fn() }
