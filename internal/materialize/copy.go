package materialize

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyDir recursively copies the contents of src into dst. Regular files keep
// their permission bits and symlinks are recreated as symlinks. If dst lies
// inside src it is not copied into itself.
func CopyDir(ctx context.Context, src, dst string) error {
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); abs == absDst {
				return fs.SkipDir
			}
		}
		return copyEntry(path, filepath.Join(dst, rel), d)
	})
	if err != nil {
		return fmt.Errorf("materialize: copy %s: %w", src, err)
	}
	return nil
}

func copyEntry(path, target string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return os.MkdirAll(target, mode.Perm()|0o700)
	case mode&fs.ModeSymlink != 0:
		link, err := os.Readlink(path)
		if err != nil {
			return err
		}
		return os.Symlink(link, target)
	case mode.IsRegular():
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		return writeFile(target, in, mode.Perm())
	default:
		return fmt.Errorf("%w: %s (%v)", ErrUnsupportedEntry, path, mode.Type())
	}
}
