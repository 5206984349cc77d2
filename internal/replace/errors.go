package replace

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a replacement failure.
type Kind int

const (
	// KindIO is a filesystem failure while reading, staging, writing or
	// publishing. The original file is preserved where possible.
	KindIO Kind = iota
	// KindTooBig means the file exceeds the size ceiling (whole-file mode).
	KindTooBig
	// KindNotPrintable means the file failed the printable-text gate.
	KindNotPrintable
	// KindSubstitute means the pattern engine failed, e.g. on a match timeout.
	KindSubstitute
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindTooBig:
		return "too big"
	case KindNotPrintable:
		return "not printable"
	case KindSubstitute:
		return "substitute"
	default:
		return "unknown"
	}
}

// Sentinel gate errors; a gate *Error matches them with errors.Is.
var (
	ErrFileTooBig       = errors.New("the file is too big")
	ErrFileNotPrintable = errors.New("the file is not printable")
)

// Error is a classified per-file replacement failure.
type Error struct {
	Kind Kind
	Path string // Target file
	Op   string // Step that failed: "gate", "stage", "write", "publish" or "cleanup"
	Err  error  // Underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindTooBig, KindNotPrintable:
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match gate errors against the sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrFileTooBig:
		return e.Kind == KindTooBig
	case ErrFileNotPrintable:
		return e.Kind == KindNotPrintable
	}
	return false
}

// KindOf returns the Kind of err, or KindIO for errors not produced here.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindIO
}

// IsGateError reports whether err rejected the file before any mutation.
func IsGateError(err error) bool {
	k := KindOf(err)
	return err != nil && (k == KindTooBig || k == KindNotPrintable)
}

func gateError(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Op: "gate", Err: cause}
}

func ioError(op, path string, err error) *Error {
	var pe *fs.PathError
	if errors.As(err, &pe) && pe.Path == path {
		err = pe.Err
	}
	return &Error{Kind: KindIO, Path: path, Op: op, Err: err}
}
