// Package install runs the dependency-install step for each discovered
// sub-project, one at a time. Any failure aborts the whole run: later
// manifests are not installed and nothing is booted.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"classboot/internal/console"
	"classboot/internal/manifest"
	"classboot/internal/pkgmgr"
)

// ErrInstallFailed is matched by every *Error.
var ErrInstallFailed = errors.New("dependency install failed")

// Error is a whole-run-fatal install failure.
type Error struct {
	Manifest string
	ExitCode int // -1 when the command never produced an exit status
	Err      error
}

func (e *Error) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("install %s: exit status %d", e.Manifest, e.ExitCode)
	}
	return fmt.Sprintf("install %s: %v", e.Manifest, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrInstallFailed, e.Err} }

// Metrics observes install attempts. Implementations must be safe for
// concurrent use.
type Metrics interface {
	InstallFinished(project string, d time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) InstallFinished(string, time.Duration, error) {}

// Config wires an Installer.
type Config struct {
	Manager pkgmgr.Manager
	Console *console.Console
	// Output receives the install command's stdout and stderr; defaults to
	// the console writer. It is never captured into a boot log.
	Output  io.Writer
	Logger  *slog.Logger
	Metrics Metrics
}

// Installer runs install commands sequentially.
type Installer struct {
	cfg Config
	log *slog.Logger
}

// New returns an Installer. Console must be set.
func New(cfg Config) *Installer {
	if cfg.Output == nil {
		cfg.Output = cfg.Console.Writer()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Installer{cfg: cfg, log: log}
}

// InstallAll installs each location in order and stops at the first failure.
func (in *Installer) InstallAll(ctx context.Context, locs []manifest.Location) error {
	for i, loc := range locs {
		if err := ctx.Err(); err != nil {
			in.cfg.Console.Error("Dependency install interrupted before %s: %v", loc.DirName(), err)
			return err
		}
		in.cfg.Console.Await("Installing dependencies for %s (%d/%d)", loc.DirName(), i+1, len(locs))
		if err := in.Install(loc); err != nil {
			in.cfg.Console.Error("Dependency install failed for %s: %v", loc.Path(), err)
			return err
		}
		in.cfg.Console.Success("Dependencies installed for %s", loc.DirName())
	}
	return nil
}

// Install blocks until the install command for loc exits.
func (in *Installer) Install(loc manifest.Location) error {
	cmd := in.cfg.Manager.InstallCommand(loc.Dir())
	cmd.Stdout = in.cfg.Output
	cmd.Stderr = in.cfg.Output

	start := time.Now()
	in.log.Debug("install started", "dir", loc.Dir(), "cmd", cmd.Args)
	err := cmd.Run()
	elapsed := time.Since(start)
	in.cfg.Metrics.InstallFinished(loc.DirName(), elapsed, err)
	if err == nil {
		in.log.Debug("install finished", "dir", loc.Dir(), "elapsed", elapsed)
		return nil
	}

	ierr := &Error{Manifest: loc.Path(), ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ierr.ExitCode = exitErr.ExitCode()
	}
	in.log.Error("install failed", "dir", loc.Dir(), "exit_code", ierr.ExitCode, "error", err)
	return ierr
}
