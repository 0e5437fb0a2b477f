// Package lock guards a target directory against concurrent hatch runs.
//
// The lock is a kernel file lock (gofrs/flock) on a small file holding the
// owner's pid. The kernel drops the lock when the owning process dies, so a
// file left behind by a killed run does not block the next one.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

// DefaultName is the lock file name used when Acquire is given none.
const DefaultName = ".hatch.lock"

// ErrLocked is returned when another run holds the lock.
var ErrLocked = errors.New("target directory is locked by another hatch run")

// Lock is a held lock file. It implements guard.Resource.
type Lock struct {
	path string
	fl   *flock.Flock

	once sync.Once
	err  error
}

// Acquire locks name inside dir without blocking and records the current
// pid in it.
func Acquire(dir, name string) (*Lock, error) {
	if name == "" {
		name = DefaultName
	}
	path := filepath.Join(dir, name)

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s held by pid %s)", ErrLocked, path, holder(path))
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	return &Lock{path: path, fl: fl}, nil
}

// ID returns the lock file path.
func (l *Lock) ID() string { return l.path }

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file and drops the lock. The file is removed
// while the lock is still held. Later calls return the first result.
func (l *Lock) Release() error {
	l.once.Do(func() {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			l.err = err
		}
		if err := l.fl.Unlock(); err != nil && l.err == nil {
			l.err = err
		}
	})
	return l.err
}

func holder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	if pid := strings.TrimSpace(string(data)); pid != "" {
		return pid
	}
	return "unknown"
}

// PathFor returns the default lock path for a target directory. It lives in
// the system temp directory, keyed by the target's absolute path, and is
// never part of the project tree.
func PathFor(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), "hatch-"+hex.EncodeToString(sum[:8])+".lock"), nil
}

// AcquirePath acquires the lock file at path.
func AcquirePath(path string) (*Lock, error) {
	return Acquire(filepath.Dir(path), filepath.Base(path))
}
