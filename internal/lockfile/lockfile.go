// Package lockfile guards a workspace against concurrent sync cycles with an
// advisory file lock.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrHeld is returned when another process (or another Lock in this
// process) already holds the lock.
var ErrHeld = errors.New("lock is held by another process")

// Lock is an acquired advisory lock.
type Lock struct {
	fl *flock.Flock
}

// DefaultPath returns the lock path used for workspace when none is
// configured: a sibling file named "<workspace>.lock", kept outside the
// workspace so it never shows up as an untracked change.
func DefaultPath(workspace string) string {
	return filepath.Clean(workspace) + ".lock"
}

// Acquire takes the lock at path without blocking. The parent directory is
// created if needed. Returns ErrHeld when the lock is taken.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrHeld, path)
	}

	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}
