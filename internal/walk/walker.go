// Package walk enumerates the regular files below a directory root lazily.
//
// A Walker behaves as one flat, single-pass sequence over an arbitrarily deep
// tree. It never materializes the tree: the only state is a stack of open
// directory listings, one frame per directory between the root and the entry
// currently being read. Only the top frame is ever read, so each listing has
// at most one live child.
//
// Symbolic links are skipped silently, whether they point at files or
// directories, and so are sockets, FIFOs and devices. Every I/O failure below
// the root is reported as a Result carrying a path-tagged *Error and the walk
// continues with the next entry; only an unreadable root is fatal, and that
// is reported by New.
package walk

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/harrison/far/internal/seq"
)

// readBatch is the number of entries requested from the OS per listing read.
const readBatch = 64

// Result is one traversal item: either the absolute path of a regular file or
// the error for an entry that could not be read. Path is set in both cases;
// for an error it names the directory whose open or listing failed.
type Result struct {
	Path string
	Err  error
}

// state tracks where the walker is in its lifecycle.
type state int

const (
	stateListing state = iota // reading the top frame, no child open
	stateNested               // a child frame was pushed and is being read
	stateDone                 // every frame is closed; terminal
)

// lister is the part of *os.File a frame reads from.
type lister interface {
	ReadDir(n int) ([]fs.DirEntry, error)
	Close() error
}

// frame is one open directory listing.
type frame struct {
	dir     lister
	path    string
	pending []fs.DirEntry
	failed  bool // the last read failed and its error was reported
}

// Walker is the lazy depth-first file iterator for one root.
type Walker struct {
	root  string
	stack []*frame
	state state
}

var _ seq.Iterator[Result] = (*Walker)(nil)

// New opens root for traversal. The returned error, if any, is an *Error
// and means no traversal was started.
func New(root string) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &Error{Op: "abs", Path: root, Err: err}
	}

	f, err := openDir(abs)
	if err != nil {
		return nil, err
	}

	return &Walker{
		root:  abs,
		stack: []*frame{f},
		state: stateListing,
	}, nil
}

// NewAll opens a Walker for every root, in order. If any root cannot be
// opened the walkers opened so far are closed and the error is returned.
func NewAll(roots []string) ([]*Walker, error) {
	walkers := make([]*Walker, 0, len(roots))
	for _, root := range roots {
		w, err := New(root)
		if err != nil {
			for _, opened := range walkers {
				opened.Close()
			}
			return nil, err
		}
		walkers = append(walkers, w)
	}
	return walkers, nil
}

// Root returns the absolute root path of the walk.
func (w *Walker) Root() string {
	return w.root
}

// Iter lets a Walker be chained by seq.Flatten.
func (w *Walker) Iter() seq.Iterator[Result] {
	return w
}

// Next returns the next regular file or traversal error in pre-order
// depth-first order. It returns false once the root listing is exhausted.
func (w *Walker) Next() (Result, bool) {
	for w.state != stateDone {
		top := w.stack[len(w.stack)-1]

		entry, ok, err := top.next()
		if !ok {
			w.pop()
			continue
		}
		if err != nil {
			return Result{Path: top.path, Err: err}, true
		}

		path := filepath.Join(top.path, entry.Name())
		switch typ := entry.Type(); {
		case typ&fs.ModeSymlink != 0:
			continue
		case typ.IsDir():
			child, err := openDir(path)
			if err != nil {
				return Result{Path: path, Err: err}, true
			}
			w.stack = append(w.stack, child)
			w.state = stateNested
		case typ.IsRegular():
			return Result{Path: path}, true
		default:
			// sockets, pipes, devices
		}
	}
	return Result{}, false
}

// Close releases every open directory handle. The walker is exhausted
// afterwards. Close is safe to call more than once.
func (w *Walker) Close() error {
	var errs []error
	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		if err := top.dir.Close(); err != nil {
			errs = append(errs, newError("close", top.path, err))
		}
	}
	w.state = stateDone
	return errors.Join(errs...)
}

func (w *Walker) pop() {
	top := w.stack[len(w.stack)-1]
	_ = top.dir.Close()
	w.stack = w.stack[:len(w.stack)-1]

	switch {
	case len(w.stack) == 0:
		w.state = stateDone
	case len(w.stack) == 1:
		w.state = stateListing
	}
}

// openDir opens path as a directory listing.
func openDir(path string) (*frame, error) {
	dir, err := os.Open(path)
	if err != nil {
		return nil, newError("open", path, err)
	}

	info, err := dir.Stat()
	if err != nil {
		dir.Close()
		return nil, newError("open", path, err)
	}
	if !info.IsDir() {
		dir.Close()
		return nil, &Error{Op: "open", Path: path, Err: errNotDir}
	}

	return &frame{dir: dir, path: path}, nil
}

var errNotDir = errors.New("not a directory")

// next returns the next raw entry of the listing. ok is false when the
// listing is exhausted. A read error is returned once; the following call
// retries the listing and abandons it if it fails again. A successful read
// clears the failure, so a later error is reported again.
func (f *frame) next() (entry fs.DirEntry, ok bool, err error) {
	if len(f.pending) == 0 {
		entries, readErr := f.dir.ReadDir(readBatch)
		f.pending = entries
		if readErr != nil && !errors.Is(readErr, io.EOF) && len(entries) == 0 {
			if f.failed {
				return nil, false, nil
			}
			f.failed = true
			return nil, true, newError("readdir", f.path, readErr)
		}
		f.failed = false
		if len(f.pending) == 0 {
			return nil, false, nil
		}
	}

	entry = f.pending[0]
	f.pending = f.pending[1:]
	return entry, true, nil
}
