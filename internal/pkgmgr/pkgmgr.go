// Package pkgmgr builds the commands classboot runs through a package
// manager: installing a sub-project's dependencies and running one of its
// named scripts.
package pkgmgr

import (
	"fmt"
	"os/exec"
	"sort"
)

// Manager constructs unstarted commands scoped to a sub-project directory.
type Manager interface {
	Name() string
	// InstallCommand installs dependencies, preferring cached artifacts.
	InstallCommand(dir string) *exec.Cmd
	// RunCommand runs the named script.
	RunCommand(dir, script string) *exec.Cmd
}

// CLI drives a package manager binary found on PATH.
type CLI struct {
	Binary      string
	InstallArgs []string
	RunArgs     []string
}

var presets = map[string]CLI{
	"npm":  {Binary: "npm", InstallArgs: []string{"install", "--prefer-offline"}, RunArgs: []string{"run"}},
	"yarn": {Binary: "yarn", InstallArgs: []string{"install", "--prefer-offline"}, RunArgs: []string{"run"}},
	"pnpm": {Binary: "pnpm", InstallArgs: []string{"install", "--prefer-offline"}, RunArgs: []string{"run"}},
}

// Names lists the known package managers.
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the preset for name. A non-empty installArgs replaces the
// preset's install arguments.
func Lookup(name string, installArgs []string) (*CLI, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("pkgmgr: unknown package manager %q (known: %v)", name, Names())
	}
	cli := p
	cli.InstallArgs = append([]string(nil), p.InstallArgs...)
	if len(installArgs) > 0 {
		cli.InstallArgs = append([]string(nil), installArgs...)
	}
	cli.RunArgs = append([]string(nil), p.RunArgs...)
	return &cli, nil
}

func (c *CLI) Name() string { return c.Binary }

func (c *CLI) InstallCommand(dir string) *exec.Cmd {
	cmd := exec.Command(c.Binary, c.InstallArgs...)
	cmd.Dir = dir
	return cmd
}

func (c *CLI) RunCommand(dir, script string) *exec.Cmd {
	args := append(append([]string(nil), c.RunArgs...), script)
	cmd := exec.Command(c.Binary, args...)
	cmd.Dir = dir
	return cmd
}
