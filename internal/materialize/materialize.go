// Package materialize produces an extracted copy of a submission inside the
// staging area. A submission is either a zip archive or a directory.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedSource is returned for a path that is neither a directory nor an archive.
	ErrUnsupportedSource = errors.New("materialize: source is neither a directory nor a zip archive")
	// ErrUnsupportedEntry is returned for special files (devices, sockets, pipes).
	ErrUnsupportedEntry = errors.New("materialize: unsupported file type")
	// ErrIllegalPath is returned for archive entries that would land outside the staging area.
	ErrIllegalPath = errors.New("materialize: entry escapes destination")
)

// IsArchive reports whether path names a zip archive. Any base name
// containing ".zip" qualifies, so "hw1.zip.bak" is treated as an archive too.
func IsArchive(path string) bool {
	return strings.Contains(filepath.Base(path), ".zip")
}

// Materialize mirrors src into dst. dst must already exist.
func Materialize(ctx context.Context, src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	switch {
	case info.IsDir():
		return CopyDir(ctx, src, dst)
	case IsArchive(src):
		return ExtractZip(ctx, src, dst)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSource, src)
	}
}

// safeJoin resolves an archive entry name below root.
func safeJoin(root, name string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(name))
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrIllegalPath, name)
	}
	return target, nil
}

// within reports whether path, taken lexically, stays at or below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
