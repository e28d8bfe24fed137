// Package workspace owns the two run-scoped directories: the staging area
// holding the materialized submission and the log area holding one boot log
// per sub-project. Both are destructively reset at the start of every run.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Layout names the run-scoped directories.
type Layout struct {
	Staging string
	Logs    string
}

// Prepare resets every directory in the layout.
func (l Layout) Prepare() error {
	return Reset(l.Staging, l.Logs)
}

// Reset removes each dir with all of its contents and recreates it empty.
// Missing directories are fine; the call is idempotent.
func Reset(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			return errors.New("workspace: empty directory path")
		}
		clean := filepath.Clean(dir)
		if clean == "." || clean == string(filepath.Separator) {
			return fmt.Errorf("workspace: refusing to reset %q", dir)
		}
		if err := os.RemoveAll(clean); err != nil {
			return fmt.Errorf("workspace: remove %s: %w", clean, err)
		}
		if err := os.MkdirAll(clean, 0o755); err != nil {
			return fmt.Errorf("workspace: create %s: %w", clean, err)
		}
	}
	return nil
}
