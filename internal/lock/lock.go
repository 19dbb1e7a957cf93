// Package lock serializes deploys of the same stack, in-process with a
// keyed mutex and across processes with a lock file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrLocked indicates the lock is held by someone else.
var ErrLocked = errors.New("lock is held")

// Lock represents a file-based lock.
type Lock struct {
	path string
	name string
	file *os.File
}

// New creates a lock named name under stateDir/locks.
func New(stateDir, name string) *Lock {
	name = sanitize(name)
	return &Lock{
		path: filepath.Join(stateDir, "locks", name+".lock"),
		name: name,
	}
}

// ForStack creates the lock guarding deploys of one stack.
func ForStack(stateDir string, environmentID int64, stackName string) *Lock {
	return New(stateDir, StackKey(environmentID, stackName))
}

// StackKey is the lock key of a stack.
func StackKey(environmentID int64, stackName string) string {
	return fmt.Sprintf("%d-%s", environmentID, stackName)
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire attempts to acquire the lock without blocking. It returns an
// error wrapping ErrLocked if another process holds it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		l.file = nil
		if errors.Is(err, ErrLocked) {
			return fmt.Errorf("another deploy of %s is already running: %w", l.name, ErrLocked)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	// PID for debugging
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	l.file = f
	return nil
}

// Release releases the lock and removes the lock file.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := unlockFile(l.file); err != nil {
		l.file.Close()
		l.file = nil
		return fmt.Errorf("release lock: %w", err)
	}

	l.file.Close()
	os.Remove(l.path)
	l.file = nil

	return nil
}

// WithLock executes fn while holding the named lock.
func WithLock(stateDir, name string, fn func() error) error {
	lock := New(stateDir, name)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	return fn()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
