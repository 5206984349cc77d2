package replace

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
)

// Suffixes of the colocated scratch files. The final name is the target path
// followed by the suffix and a counter starting at 1.
const (
	stageSuffix  = ".new"
	backupSuffix = ".old"
)

// tempFile owns a freshly created scratch file beside a target. Unless
// consume is called, discard removes it from disk.
type tempFile struct {
	file     *os.File
	name     string
	consumed bool
}

// createTemp creates target+suffix+N exclusively, trying N = 1, 2, ... until
// a free name is found. Errors other than a name collision are returned.
func createTemp(target, suffix string, perm fs.FileMode) (*tempFile, error) {
	for i := 1; ; i++ {
		name := tempName(target, suffix, i)
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return &tempFile{file: f, name: name}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
	}
}

// reserveName creates and closes a placeholder so the name is taken, and
// returns it. The caller moves a file over the placeholder.
func reserveName(target, suffix string) (string, error) {
	tmp, err := createTemp(target, suffix, 0600)
	if err != nil {
		return "", err
	}
	if err := tmp.file.Close(); err != nil {
		os.Remove(tmp.name)
		return "", err
	}
	tmp.file = nil
	return tmp.name, nil
}

func tempName(target, suffix string, index int) string {
	return target + suffix + strconv.Itoa(index)
}

// close flushes the file to stable storage and closes it.
func (t *tempFile) close() error {
	if t.file == nil {
		return nil
	}
	f := t.file
	t.file = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// consume marks the scratch file as published; discard becomes a no-op.
func (t *tempFile) consume() {
	t.consumed = true
}

// discard closes and removes the scratch file unless it was consumed.
func (t *tempFile) discard() {
	if t.file != nil {
		t.file.Close()
		t.file = nil
	}
	if !t.consumed {
		os.Remove(t.name)
		t.consumed = true
	}
}
