// Package replace rewrites a file's contents in place without ever leaving
// it half-written or missing.
//
// Every replacement runs four steps in order: gate, stage, write, publish.
// The gate rejects files that are too big or not printable text before
// anything is mutated. The new content is staged in a scratch file beside the
// target (target.newN), fsynced, and then published by moving the original
// to a backup name (target.oldN), moving the scratch file onto the target
// name and deleting the backup. Any failure before publish removes the
// scratch file and leaves the target untouched.
package replace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/harrison/far/internal/textgate"
)

// DefaultMaxSize is the whole-file mode size ceiling (4 MiB).
const DefaultMaxSize int64 = 4 * 1024 * 1024

const (
	// gateWindow is the read window for the incremental printable check.
	gateWindow = 256 * 1024
	// lineBuffer is the buffered reader size used in line mode.
	lineBuffer = 16 * 1024
)

// Mode selects how the substitution is applied.
type Mode int

const (
	// ModeAll applies the substitution to the whole file at once.
	ModeAll Mode = iota
	// ModeLines applies the substitution to each line separately.
	ModeLines
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeLines:
		return "lines"
	default:
		return "unknown"
	}
}

// ParseMode converts "all" or "lines" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "":
		return ModeAll, nil
	case "lines", "line":
		return ModeLines, nil
	default:
		return ModeAll, fmt.Errorf("unknown mode %q, must be one of: all, lines", s)
	}
}

// Substituter rewrites a string. *pattern.Substitution implements it.
type Substituter interface {
	Apply(input string) (string, error)
}

// SubstituterFunc adapts a function to the Substituter interface.
type SubstituterFunc func(string) (string, error)

// Apply calls f.
func (f SubstituterFunc) Apply(input string) (string, error) {
	return f(input)
}

// Task is one unit of replacement work. It is stateless and may be run by
// any goroutine.
type Task struct {
	Path        string
	Substituter Substituter
	Mode        Mode
}

// Replacer applies substitutions to files.
type Replacer struct {
	// MaxSize is the whole-file size ceiling; zero means DefaultMaxSize.
	MaxSize int64
}

// New creates a Replacer with the given whole-file size ceiling.
func New(maxSize int64) *Replacer {
	return &Replacer{MaxSize: maxSize}
}

// Run executes t. It returns nil on success or an *Error.
func (r *Replacer) Run(t Task) error {
	switch t.Mode {
	case ModeLines:
		return r.replaceLines(t.Path, t.Substituter)
	default:
		return r.replaceAll(t.Path, t.Substituter)
	}
}

// ReplaceOne rewrites path with sub in the given mode using the default
// ceiling. It returns nil on success or an *Error.
func ReplaceOne(path string, sub Substituter, mode Mode) error {
	return New(DefaultMaxSize).Run(Task{Path: path, Substituter: sub, Mode: mode})
}

// ReplaceAll rewrites path as a whole using the default ceiling.
func ReplaceAll(path string, sub Substituter) error {
	return New(DefaultMaxSize).replaceAll(path, sub)
}

// ReplaceLines rewrites path line by line.
func ReplaceLines(path string, sub Substituter) error {
	return New(DefaultMaxSize).replaceLines(path, sub)
}

func (r *Replacer) maxSize() int64 {
	if r.MaxSize <= 0 {
		return DefaultMaxSize
	}
	return r.MaxSize
}

func (r *Replacer) replaceAll(path string, sub Substituter) error {
	info, err := os.Stat(path)
	if err != nil {
		return ioError("gate", path, err)
	}
	if info.Size() > r.maxSize() {
		return gateError(KindTooBig, path, fmt.Errorf("%w (%s, limit %s)",
			ErrFileTooBig, humanize.IBytes(uint64(info.Size())), humanize.IBytes(uint64(r.maxSize()))))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return ioError("gate", path, err)
	}
	if !textgate.Printable(content) {
		return gateError(KindNotPrintable, path, ErrFileNotPrintable)
	}

	replaced, err := sub.Apply(string(content))
	if err != nil {
		return &Error{Kind: KindSubstitute, Path: path, Op: "write", Err: err}
	}

	return stageAndPublish(path, info.Mode().Perm(), func(w io.Writer) error {
		_, err := io.WriteString(w, replaced)
		return err
	})
}

func (r *Replacer) replaceLines(path string, sub Substituter) error {
	info, err := os.Stat(path)
	if err != nil {
		return ioError("gate", path, err)
	}
	if err := checkPrintable(path); err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return ioError("write", path, err)
	}
	defer src.Close()

	return stageAndPublish(path, info.Mode().Perm(), func(w io.Writer) error {
		return substituteLines(src, w, sub)
	})
}

// checkPrintable streams path through the printable gate in bounded windows
// and stops at the first disqualifying window.
func checkPrintable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return ioError("gate", path, err)
	}
	defer f.Close()

	var scanner textgate.Scanner
	buf := make([]byte, gateWindow)
	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 && !scanner.Write(buf[:n]) {
			return gateError(KindNotPrintable, path, ErrFileNotPrintable)
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return ioError("gate", path, readErr)
		}
	}
	if !scanner.Close() {
		return gateError(KindNotPrintable, path, ErrFileNotPrintable)
	}
	return nil
}

// substituteLines applies sub to every line of src, excluding its
// terminator, and writes the result followed by the original terminator.
func substituteLines(src io.Reader, dst io.Writer, sub Substituter) error {
	br := bufio.NewReaderSize(src, lineBuffer)
	for {
		line, readErr := br.ReadString('\n')
		if len(line) > 0 {
			body, eol := splitTerminator(line)
			replaced, err := sub.Apply(body)
			if err != nil {
				return &substituteError{err: err}
			}
			if _, err := io.WriteString(dst, replaced+eol); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func splitTerminator(line string) (body, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}

// substituteError marks a pattern engine failure inside the write step.
type substituteError struct {
	err error
}

func (e *substituteError) Error() string { return e.err.Error() }
func (e *substituteError) Unwrap() error { return e.err }

// stageAndPublish writes new content through write into a scratch file
// beside path and publishes it. The scratch file is removed on any failure.
func stageAndPublish(path string, perm os.FileMode, write func(io.Writer) error) error {
	tmp, err := createTemp(path, stageSuffix, perm)
	if err != nil {
		return ioError("stage", path, err)
	}
	defer tmp.discard()

	if err := write(tmp.file); err != nil {
		var se *substituteError
		if errors.As(err, &se) {
			return &Error{Kind: KindSubstitute, Path: path, Op: "write", Err: se.err}
		}
		return ioError("write", path, err)
	}
	// The umask may have narrowed the requested bits.
	if err := tmp.file.Chmod(perm); err != nil {
		return ioError("write", path, err)
	}
	if err := tmp.close(); err != nil {
		return ioError("write", path, err)
	}

	published, err := publish(tmp.name, path)
	if published {
		tmp.consume()
	}
	return err
}
