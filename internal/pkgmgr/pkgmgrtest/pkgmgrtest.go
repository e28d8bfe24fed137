// Package pkgmgrtest provides a shell-backed pkgmgr.Manager for tests, so
// boot and install behaviour can be exercised without a real package manager.
package pkgmgrtest

import (
	"os/exec"
	"path/filepath"
	"sync"

	"classboot/internal/manifest"
)

// Shell runs manifest scripts with /bin/sh. Install commands are looked up
// by the sub-project's directory name in Installs; directories without an
// entry run DefaultInstall (or "true").
type Shell struct {
	Installs       map[string]string
	DefaultInstall string

	mu        sync.Mutex
	installed []string
}

func (s *Shell) Name() string { return "sh" }

func (s *Shell) InstallCommand(dir string) *exec.Cmd {
	s.mu.Lock()
	s.installed = append(s.installed, filepath.Base(dir))
	s.mu.Unlock()

	script, ok := s.Installs[filepath.Base(dir)]
	if !ok {
		script = s.DefaultInstall
	}
	if script == "" {
		script = "true"
	}
	cmd := exec.Command("/bin/sh", "-c", script)
	cmd.Dir = dir
	return cmd
}

// RunCommand executes the body of the named script from dir/package.json.
// A missing manifest or script yields a command that exits 127.
func (s *Shell) RunCommand(dir, script string) *exec.Cmd {
	body := "echo 'missing script' >&2; exit 127"
	if m, err := manifest.Load(filepath.Join(dir, "package.json")); err == nil {
		if b, ok := m.Scripts[script]; ok {
			body = b
		}
	}
	cmd := exec.Command("/bin/sh", "-c", body)
	cmd.Dir = dir
	return cmd
}

// Installed returns directory names whose install command was built, in order.
func (s *Shell) Installed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.installed...)
}
