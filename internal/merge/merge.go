// Package merge copies template directories into a generated project.
//
// Directories are mirrored, files are copied with their source mode, and
// hidden files are included. When a target file already exists the
// ConflictStrategy decides: force overwrites byte for byte, skip keeps the
// target and records it in the Report.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/simonhull/firebird-suite/hatch/internal/filesystem"
	"github.com/simonhull/firebird-suite/hatch/internal/mutate"
)

// Report lists what a merge did, relative to the target directory.
type Report struct {
	Written []string
	Skipped []string
}

// Merger copies files and directories.
type Merger struct {
	// Strategy replaces skipping for calls made without force.
	Strategy ConflictStrategy
	// DryRun computes the report without touching the target.
	DryRun bool

	mu     sync.Mutex
	report Report
}

// New creates a merger.
func New() *Merger {
	return &Merger{}
}

// Report returns the accumulated results of every Merge and CopyFile call.
func (m *Merger) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Report{
		Written: append([]string(nil), m.report.Written...),
		Skipped: append([]string(nil), m.report.Skipped...),
	}
}

func (m *Merger) strategy(force bool) ConflictStrategy {
	if !force && m.Strategy != nil {
		return m.Strategy
	}
	return StrategyFor(force)
}

// Merge copies the tree at src into dst and returns the files written,
// relative to dst, in walk order.
func (m *Merger) Merge(ctx context.Context, src, dst string, force bool) ([]string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("merge source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("merge source %s is not a directory", src)
	}

	strategy := m.strategy(force)
	var written []string

	err = filesystem.Walk(src, filesystem.WalkOptions{IncludeHidden: true}, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		from := filepath.Join(src, rel)
		to := filepath.Join(dst, rel)

		if d.IsDir() {
			if m.DryRun {
				return nil
			}
			dirInfo, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(to, dirInfo.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("creating directory %s: %w", to, err)
			}
			return nil
		}

		ok, err := m.copy(ctx, from, to, strategy)
		if err != nil {
			return err
		}
		if ok {
			written = append(written, rel)
			m.record(&m.report.Written, filepath.Join(dst, rel))
		} else {
			m.record(&m.report.Skipped, filepath.Join(dst, rel))
		}
		return nil
	})
	if err != nil {
		return written, fmt.Errorf("merging %s into %s: %w", src, dst, err)
	}
	return written, nil
}

// CopyFile copies a single file, applying the same conflict rules as Merge.
// It reports whether the target was written.
func (m *Merger) CopyFile(ctx context.Context, src, dst string, force bool) (bool, error) {
	ok, err := m.copy(ctx, src, dst, m.strategy(force))
	if err != nil {
		return false, err
	}
	if ok {
		m.record(&m.report.Written, dst)
	} else {
		m.record(&m.report.Skipped, dst)
	}
	return ok, nil
}

func (m *Merger) record(list *[]string, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*list = append(*list, path)
}

func (m *Merger) copy(ctx context.Context, src, dst string, strategy ConflictStrategy) (bool, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", src, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return m.copySymlink(ctx, src, dst, strategy)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("%s is not a regular file", src)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", src, err)
	}

	existing, err := os.ReadFile(dst)
	switch {
	case err == nil:
		res, err := strategy.Resolve(ctx, dst, existing, data)
		if err != nil {
			return false, fmt.Errorf("resolving conflict for %s: %w", dst, err)
		}
		if res == Skip {
			return false, nil
		}
		if bytes.Equal(existing, data) && !m.DryRun {
			// Content already matches; only the mode may need updating.
			return true, os.Chmod(dst, info.Mode().Perm())
		}
	case !os.IsNotExist(err):
		return false, fmt.Errorf("reading %s: %w", dst, err)
	}

	if m.DryRun {
		return true, nil
	}
	if err := mutate.WriteFileAtomic(dst, data, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("writing %s: %w", dst, err)
	}
	return true, nil
}

func (m *Merger) copySymlink(ctx context.Context, src, dst string, strategy ConflictStrategy) (bool, error) {
	target, err := os.Readlink(src)
	if err != nil {
		return false, fmt.Errorf("reading link %s: %w", src, err)
	}
	if _, err := os.Lstat(dst); err == nil {
		res, err := strategy.Resolve(ctx, dst, nil, []byte(target))
		if err != nil {
			return false, err
		}
		if res == Skip {
			return false, nil
		}
		if !m.DryRun {
			if err := os.Remove(dst); err != nil {
				return false, fmt.Errorf("replacing %s: %w", dst, err)
			}
		}
	}
	if m.DryRun {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, err
	}
	if err := os.Symlink(target, dst); err != nil {
		return false, fmt.Errorf("linking %s: %w", dst, err)
	}
	return true, nil
}
