package filesystem

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultIgnoreDirs are skipped unless WalkOptions.IgnoreDirs is set.
var DefaultIgnoreDirs = []string{".git", ".svn", ".hg"}

// WalkOptions configures directory traversal behavior
type WalkOptions struct {
	IgnoreDirs     []string // Directories to skip (default: DefaultIgnoreDirs)
	IgnorePatterns []string // File name patterns to skip (e.g., "*.tmp")
	IncludeHidden  bool     // Include dot files and dirs
}

// Visitor receives the path relative to the walk root ("." for the root
// itself) and its directory entry. Returning fs.SkipDir skips a directory.
type Visitor func(rel string, d fs.DirEntry) error

// Walk traverses root in lexical order, applying the ignore rules.
func Walk(root string, opts WalkOptions, visit Visitor) error {
	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return visit(rel, d)
		}

		if !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			for _, ignore := range ignoreDirs {
				if d.Name() == ignore {
					return fs.SkipDir
				}
			}
			return visit(rel, d)
		}

		for _, pattern := range opts.IgnorePatterns {
			if matched, _ := filepath.Match(pattern, d.Name()); matched {
				return nil
			}
		}

		return visit(rel, d)
	})
}

// Files returns the relative paths of every regular file and symlink under
// root that Walk would visit.
func Files(root string, opts WalkOptions) ([]string, error) {
	var files []string
	err := Walk(root, opts, func(rel string, d fs.DirEntry) error {
		if !d.IsDir() {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}
