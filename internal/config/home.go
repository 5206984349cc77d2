package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the far home directory.
const HomeEnv = "FAR_HOME"

// GetFarHome returns the far home directory, where run locks and the
// default journal live. It is never inside a tree far rewrites.
// Priority order:
//  1. FAR_HOME environment variable (if set)
//  2. <user cache dir>/far
//  3. .far in the current working directory (fallback)
//
// The directory is created if it doesn't exist
func GetFarHome() (string, error) {
	home := os.Getenv(HomeEnv)
	if home == "" {
		if cache, err := os.UserCacheDir(); err == nil {
			home = filepath.Join(cache, "far")
		}
	}
	if home == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		home = filepath.Join(cwd, ".far")
	}

	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create far home directory: %w", err)
	}
	return home, nil
}

// GetJournalDBPath returns the path to the journal database.
// An explicitly configured path wins; otherwise $FAR_HOME/journal.db.
func GetJournalDBPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := GetFarHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "journal.db"), nil
}

// GetLockDir returns the directory holding per-root run locks
func GetLockDir() (string, error) {
	home, err := GetFarHome()
	if err != nil {
		return "", err
	}

	lockDir := filepath.Join(home, "locks")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return "", fmt.Errorf("create lock directory: %w", err)
	}
	return lockDir, nil
}
