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

	"github.com/klauspost/compress/zip"
)

// ExtractZip streams every entry of the archive at src into dst, preserving
// relative paths. Entries are read one at a time; each entry's stream is
// drained to EOF even when nothing is written for it.
func ExtractZip(ctx context.Context, src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("materialize: open archive %s: %w", src, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractEntry(f, dst); err != nil {
			return fmt.Errorf("materialize: %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractEntry(f *zip.File, dst string) error {
	target, err := safeJoin(dst, f.Name)
	if err != nil {
		return err
	}
	if err := noSymlinkParents(dst, target); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode()
	switch {
	case mode.IsDir():
		if err := os.MkdirAll(target, 0o755); err != nil {
			return err
		}
	case mode&fs.ModeSymlink != 0:
		link, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		if err := checkLink(dst, target, string(link)); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.Symlink(string(link), target); err != nil {
			return err
		}
	case mode.IsRegular():
		if fi, err := os.Lstat(target); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s overwrites a symlink", ErrIllegalPath, f.Name)
		}
		if err := writeFile(target, rc, mode.Perm()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedEntry, mode.Type())
	}

	// Leave the decompressor at EOF before the next entry is opened.
	_, err = io.Copy(io.Discard, rc)
	return err
}

// checkLink rejects a symlink at target whose link text is absolute or
// points outside root.
func checkLink(root, target, link string) error {
	if filepath.IsAbs(link) || !within(root, filepath.Join(filepath.Dir(target), link)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrIllegalPath, target, link)
	}
	return nil
}

// noSymlinkParents fails if any existing directory between root and target
// is a symlink. An earlier entry may have planted one to redirect later writes.
func noSymlinkParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil || rel == "." {
		return err
	}
	cur := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is a symlink", ErrIllegalPath, cur)
		}
	}
	return nil
}
