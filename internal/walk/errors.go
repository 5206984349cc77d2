package walk

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error is a path-tagged traversal failure. When returned by New it is the
// construction error for an unreadable root; when carried by a Result it
// describes one entry that could not be read and never stops its siblings.
type Error struct {
	Op   string // "open", "readdir", "close" or "abs"
	Path string // Absolute path of the entry or directory involved
	Err  error  // Underlying filesystem error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Op, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError tags err with op and path, dropping a redundant *fs.PathError
// layer so the path is not printed twice.
func newError(op, path string, err error) *Error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return &Error{Op: op, Path: path, Err: err}
}

// IsTraversalError reports whether err is or wraps a traversal Error.
func IsTraversalError(err error) bool {
	if err == nil {
		return false
	}
	var we *Error
	return errors.As(err, &we)
}
