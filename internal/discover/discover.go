// Package discover finds the dependency manifests inside a staged submission.
package discover

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"classboot/internal/manifest"
)

// Options controls which files count as manifests and which directories are
// never entered.
type Options struct {
	ManifestName string
	SkipDirs     []string
}

// Manifests walks root in lexical order and returns every file named
// opts.ManifestName. Directories named in opts.SkipDirs are not descended
// into at any depth. An empty result is not an error.
func Manifests(root string, opts Options) ([]manifest.Location, error) {
	if opts.ManifestName == "" {
		return nil, fmt.Errorf("discover: manifest name must not be empty")
	}
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, name := range opts.SkipDirs {
		skip[name] = true
	}

	var locs []manifest.Location
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skip[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() != opts.ManifestName || !d.Type().IsRegular() {
			return nil
		}
		loc, err := manifest.NewLocation(path)
		if err != nil {
			return err
		}
		locs = append(locs, loc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: walk %s: %w", root, err)
	}
	return locs, nil
}
