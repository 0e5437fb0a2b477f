package mutate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/simonhull/firebird-suite/hatch/internal/diff"
)

// Result describes what ApplyFile did to one file.
type Result struct {
	Path    string
	Changed bool
	Before  []byte
	After   []byte
}

// Diff renders the change as an unstyled unified diff.
func (r Result) Diff(label string) string {
	return diff.Plain(label, r.Before, r.After)
}

// ApplyFile applies ops to the file at path and writes the result
// atomically. On any error the file is not written.
func ApplyFile(path string, ops ...Operation) (Result, error) {
	res, mode, err := preview(path, ops...)
	if err != nil || !res.Changed {
		return res, err
	}
	if err := WriteFileAtomic(path, res.After, mode); err != nil {
		return res, err
	}
	return res, nil
}

// Preview computes what ApplyFile would write without writing it.
func Preview(path string, ops ...Operation) (Result, error) {
	res, _, err := preview(path, ops...)
	return res, err
}

func preview(path string, ops ...Operation) (Result, fs.FileMode, error) {
	res := Result{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return res, 0, fmt.Errorf("reading %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return res, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	out, err := ApplyAll(string(data), ops...)
	if err != nil {
		return res, 0, err
	}

	res.Before = data
	res.After = []byte(out)
	res.Changed = out != string(data)
	return res, info.Mode().Perm(), nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".hatch-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if mode == 0 {
		mode = 0o644
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	committed = true
	return nil
}
