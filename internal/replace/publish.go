package replace

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// publish swaps staged into place at target. The target is first moved to a
// reserved backup name, then staged is moved onto the target name, then the
// backup is deleted. At every instant target is either the complete original
// or the complete new content; while the backup exists it holds the original.
//
// published reports whether staged now lives at target, which is true even
// when only the final backup removal failed.
func publish(staged, target string) (published bool, err error) {
	backup, err := reserveName(target, backupSuffix)
	if err != nil {
		return false, ioError("publish", target, fmt.Errorf("reserve backup name: %w", err))
	}

	if err := moveFile(target, backup); err != nil {
		os.Remove(backup)
		return false, ioError("publish", target, fmt.Errorf("move original to %s: %w", backup, err))
	}

	if err := moveFile(staged, target); err != nil {
		if restoreErr := moveFile(backup, target); restoreErr != nil {
			return false, ioError("publish", target, fmt.Errorf(
				"move new content into place: %w (original kept at %s: %v)", err, backup, restoreErr))
		}
		return false, ioError("publish", target, fmt.Errorf("move new content into place: %w", err))
	}

	if err := os.Remove(backup); err != nil {
		return true, ioError("cleanup", target, fmt.Errorf("remove backup %s: %w", backup, err))
	}
	return true, nil
}

// moveFile renames from to to, falling back to copy-then-delete when the
// rename fails, e.g. across devices.
func moveFile(from, to string) error {
	renameErr := os.Rename(from, to)
	if renameErr == nil {
		return nil
	}
	if err := copyAndDelete(from, to); err != nil {
		return errors.Join(renameErr, err)
	}
	return nil
}

// copyAndDelete copies from into a scratch file beside to and renames the
// scratch file onto to, so to always holds either its previous content or
// the complete copy. from is removed once the copy is in place. The
// permission bits of from are preserved.
func copyAndDelete(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	perm := info.Mode().Perm()

	tmp, err := createTemp(to, stageSuffix, perm)
	if err != nil {
		return err
	}
	defer tmp.discard()

	if _, err := io.Copy(tmp.file, src); err != nil {
		return err
	}
	if err := tmp.file.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.name, to); err != nil {
		return err
	}
	tmp.consume()

	src.Close()
	return os.Remove(from)
}
