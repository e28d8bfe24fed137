// Package manifest models a discovered sub-project: where its dependency
// manifest lives, what the manifest declares, and which entry script boots it.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry scripts, in check order. A later match overrides an earlier one.
const (
	ScriptStart = "start"
	ScriptDev   = "dev"
)

// ErrNoLaunchScript means the manifest declares neither entry script.
var ErrNoLaunchScript = errors.New("no start or dev script")

// Location is the absolute path of one manifest file. It is immutable once
// discovered.
type Location struct {
	path string
}

// NewLocation makes path absolute.
func NewLocation(path string) (Location, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Location{}, fmt.Errorf("manifest: %w", err)
	}
	return Location{path: abs}, nil
}

// Path is the manifest file path.
func (l Location) Path() string { return l.path }

// Dir is the sub-project root.
func (l Location) Dir() string { return filepath.Dir(l.path) }

// DirName is the final segment of the sub-project root.
func (l Location) DirName() string { return filepath.Base(l.Dir()) }

// RelDir is the sub-project root relative to root, in slash form.
// Falls back to DirName when the location is not under root.
func (l Location) RelDir(root string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return l.DirName()
	}
	rel, err := filepath.Rel(absRoot, l.Dir())
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return l.DirName()
	}
	return filepath.ToSlash(rel)
}

func (l Location) String() string { return l.path }

// Manifest is the subset of a package manifest classboot reads.
type Manifest struct {
	Name    string            `json:"name"`
	Scripts map[string]string `json:"scripts"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// HasScript reports whether the manifest declares a script with that name.
func (m *Manifest) HasScript(name string) bool {
	_, ok := m.Scripts[name]
	return ok
}

// LaunchSpec is the resolved way to boot a sub-project.
type LaunchSpec struct {
	Script string
}

// LaunchSpec picks the entry script: "start" if declared, then "dev" if
// declared. When both exist "dev" wins.
func (m *Manifest) LaunchSpec() (LaunchSpec, bool) {
	var spec LaunchSpec
	for _, name := range []string{ScriptStart, ScriptDev} {
		if m.HasScript(name) {
			spec.Script = name
		}
	}
	return spec, spec.Script != ""
}

// Resolve loads the manifest at loc and resolves its LaunchSpec.
// The error names the manifest path.
func Resolve(loc Location) (*Manifest, LaunchSpec, error) {
	m, err := Load(loc.Path())
	if err != nil {
		return nil, LaunchSpec{}, err
	}
	spec, ok := m.LaunchSpec()
	if !ok {
		return m, LaunchSpec{}, fmt.Errorf("%w in %s", ErrNoLaunchScript, loc.Path())
	}
	return m, spec, nil
}
