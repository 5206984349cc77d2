// Package filelock provides cross-process run locks so that two far
// processes never rewrite the same tree at the same time.
//
// Lock files live in a dedicated directory (see config.GetLockDir), never
// inside the tree being rewritten. Each root is identified by its canonical
// path; the lock file name is a hash of that path.
package filelock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// FileLock wraps a flock file lock for coordinating access to files.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock for the given path.
// The lock file will be created at the specified path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock acquires an exclusive lock on the file, blocking until the lock is available.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire an exclusive lock on the file without blocking.
// Returns true if the lock was acquired, false if the lock is held elsewhere.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// LockedError is returned when a root is already locked by another run.
type LockedError struct {
	Root  string // Canonical root path
	Owner string // Description of the holder, if known
}

// Error implements the error interface.
func (e *LockedError) Error() string {
	if e.Owner != "" {
		return fmt.Sprintf("%s is being rewritten by another far run (%s)", e.Root, e.Owner)
	}
	return fmt.Sprintf("%s is being rewritten by another far run", e.Root)
}

// IsLockedError reports whether err is a *LockedError.
func IsLockedError(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}

// RootLocks holds the locks of every root of one run.
type RootLocks struct {
	locks []*FileLock
}

// LockRoots takes a non-blocking lock for each root. If any root is already
// locked, every lock taken so far is released and a *LockedError is
// returned. Roots that resolve to the same canonical path share one lock.
func LockRoots(lockDir string, roots []string) (*RootLocks, error) {
	held := &RootLocks{}
	seen := make(map[string]bool)

	for _, root := range roots {
		canonical := CanonicalRoot(root)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true

		lock := NewFileLock(LockPath(lockDir, canonical))
		acquired, err := lock.TryLock()
		if err != nil {
			held.Release()
			return nil, err
		}
		if !acquired {
			held.Release()
			return nil, &LockedError{Root: canonical, Owner: readOwner(lock.Path())}
		}
		held.locks = append(held.locks, lock)

		// The owner file only improves the contention message.
		_ = AtomicWrite(ownerPath(lock.Path()), []byte(fmt.Sprintf("pid %d\n%s\n", os.Getpid(), canonical)))
	}

	return held, nil
}

// Len returns the number of locks held.
func (r *RootLocks) Len() int {
	return len(r.locks)
}

// Release unlocks every held lock and removes the owner files. Errors are
// joined.
func (r *RootLocks) Release() error {
	var errs []error
	for i := len(r.locks) - 1; i >= 0; i-- {
		lock := r.locks[i]
		os.Remove(ownerPath(lock.Path()))
		if err := lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	r.locks = nil
	return errors.Join(errs...)
}

// CanonicalRoot resolves root to an absolute path with symlinks evaluated,
// falling back to the cleaned absolute path.
func CanonicalRoot(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// LockPath returns the lock file used for a canonical root.
func LockPath(lockDir, canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:12])+".lock")
}

func ownerPath(lockPath string) string {
	return strings.TrimSuffix(lockPath, ".lock") + ".owner"
}

// readOwner returns the first line of the owner file, or "".
func readOwner(lockPath string) string {
	data, err := os.ReadFile(ownerPath(lockPath))
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(data), "\n")
	if pid, ok := strings.CutPrefix(line, "pid "); ok {
		if _, err := strconv.Atoi(pid); err == nil {
			return line
		}
	}
	return ""
}

// AtomicWrite writes data to a file atomically using a temp file and rename strategy.
// This ensures that readers never see partial writes, even if the write is interrupted.
//
// If the operation fails at any point, the original file (if it exists) remains unchanged.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Same directory as the target, so the rename stays on one filesystem.
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}
