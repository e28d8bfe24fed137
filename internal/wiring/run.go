// Package wiring runs the whole boot pipeline: prepare workspace, materialize
// the submission, discover sub-projects, install each one's dependencies,
// then launch them all and wait for them to exit.
//
// Input, materialize and install failures abort the run. A sub-project that
// cannot be launched is recorded in Result.Outcomes and the run continues.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"classboot/internal/config"
	"classboot/internal/console"
	"classboot/internal/discover"
	"classboot/internal/format"
	"classboot/internal/install"
	"classboot/internal/manifest"
	"classboot/internal/materialize"
	"classboot/internal/orchestrate"
	"classboot/internal/pkgmgr"
	"classboot/internal/workspace"
)

var (
	// ErrMissingInput means no submission path was given.
	ErrMissingInput = errors.New("missing submission path")
	// ErrInputNotFound means the submission path does not exist under the assignments root.
	ErrInputNotFound = errors.New("submission not found")
)

// Metrics is satisfied by metrics.Collector.
type Metrics interface {
	install.Metrics
	orchestrate.Metrics
}

// Deps are the collaborators a run is built from. Config, Manager and
// Console are required.
type Deps struct {
	Config  config.Config
	Manager pkgmgr.Manager
	Console *console.Console
	Logger  *slog.Logger
	Metrics Metrics
	// InstallOutput receives install command output; defaults to the console.
	InstallOutput io.Writer
}

// Result describes a completed run.
type Result struct {
	RunID     string
	Input     string
	Manifests []manifest.Location
	Outcomes  []orchestrate.Outcome
}

// Failed counts sub-projects that were skipped or did not exit cleanly.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			n++
		}
	}
	return n
}

// Run boots the submission named by arg, relative to the assignments root,
// and returns once every launched process has exited. A returned error has
// already been reported on the console.
func Run(ctx context.Context, d Deps, arg string) (*Result, error) {
	input, err := resolveInput(d, arg)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString(), Input: input}
	log := logger(d).With("run_id", res.RunID)
	cfg := d.Config
	con := d.Console

	con.Await("Preparing workspace")
	layout := workspace.Layout{Staging: cfg.StagingDir, Logs: cfg.LogDir}
	if err := layout.Prepare(); err != nil {
		con.Error("Could not prepare workspace: %v", err)
		return res, fmt.Errorf("prepare workspace: %w", err)
	}
	log.Debug("workspace ready", "staging", cfg.StagingDir, "logs", cfg.LogDir)

	locs, err := stage(ctx, d, log, input)
	if err != nil {
		return res, err
	}
	res.Manifests = locs
	if len(locs) == 0 {
		return res, nil
	}

	installer := install.New(install.Config{
		Manager: d.Manager,
		Console: con,
		Output:  d.InstallOutput,
		Logger:  log.With("component", "install"),
		Metrics: d.Metrics,
	})
	if err := installer.InstallAll(ctx, locs); err != nil {
		return res, fmt.Errorf("install: %w", err)
	}

	orch := orchestrate.New(orchestrate.Options{
		Runner:      d.Manager,
		Console:     con,
		Logger:      log.With("component", "orchestrate"),
		Metrics:     d.Metrics,
		LogDir:      cfg.LogDir,
		LogNaming:   cfg.LogNaming,
		StagingRoot: cfg.StagingDir,
	})
	con.Await("Booting %d sub-project(s)", len(locs))
	orch.LaunchAll(locs)
	res.Outcomes = orch.Wait()

	if failed := res.Failed(); failed > 0 {
		con.Warn("%d of %d sub-project(s) did not exit cleanly", failed, len(res.Outcomes))
	} else {
		con.Success("All %d sub-project(s) exited cleanly", len(res.Outcomes))
	}
	log.Info("run finished", "projects", len(res.Outcomes), "failed", res.Failed())
	return res, nil
}

// Discover materializes the submission and reports what Run would boot,
// without installing or launching anything. Only the staging area is reset.
// Like Run, it reports its own errors on the console.
func Discover(ctx context.Context, d Deps, arg string) ([]format.DiscoveryRow, error) {
	input, err := resolveInput(d, arg)
	if err != nil {
		return nil, err
	}
	log := logger(d).With("run_id", uuid.NewString())

	if err := workspace.Reset(d.Config.StagingDir); err != nil {
		d.Console.Error("Could not prepare staging area: %v", err)
		return nil, fmt.Errorf("prepare staging: %w", err)
	}
	locs, err := stage(ctx, d, log, input)
	if err != nil {
		return nil, err
	}

	rows := make([]format.DiscoveryRow, 0, len(locs))
	for _, loc := range locs {
		row := format.DiscoveryRow{Dir: loc.RelDir(d.Config.StagingDir)}
		m, spec, err := manifest.Resolve(loc)
		if m != nil {
			row.Name = m.Name
		}
		row.Script = spec.Script
		row.Err = err
		rows = append(rows, row)
	}
	return rows, nil
}

// resolveInput checks the argument before anything on disk is touched.
func resolveInput(d Deps, arg string) (string, error) {
	if strings.TrimSpace(arg) == "" {
		d.Console.Error("Please provide the path of a submission under %s", d.Config.AssignmentsRoot)
		return "", ErrMissingInput
	}
	input := d.Config.InputPath(arg)
	info, err := os.Stat(input)
	if errors.Is(err, os.ErrNotExist) {
		d.Console.Error("Submission %s does not exist", input)
		return "", fmt.Errorf("%w: %s", ErrInputNotFound, input)
	}
	if err != nil {
		d.Console.Error("Cannot read submission %s: %v", input, err)
		return "", fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() && !materialize.IsArchive(input) {
		d.Console.Error("Submission %s is neither a directory nor a .zip archive", input)
		return "", fmt.Errorf("%w: %s", materialize.ErrUnsupportedSource, input)
	}
	return input, nil
}

// stage materializes input into the staging area and discovers manifests there.
func stage(ctx context.Context, d Deps, log *slog.Logger, input string) ([]manifest.Location, error) {
	cfg := d.Config
	con := d.Console

	con.Await("Staging %s", input)
	if err := materialize.Materialize(ctx, input, cfg.StagingDir); err != nil {
		con.Error("Could not stage %s: %v", input, err)
		return nil, fmt.Errorf("materialize: %w", err)
	}
	con.Success("Submission staged in %s", cfg.StagingDir)

	locs, err := discover.Manifests(cfg.StagingDir, discover.Options{
		ManifestName: cfg.ManifestName,
		SkipDirs:     cfg.SkipDirs,
	})
	if err != nil {
		con.Error("Could not scan %s: %v", cfg.StagingDir, err)
		return nil, fmt.Errorf("discover: %w", err)
	}
	if len(locs) == 0 {
		con.Warn("No %s found in the submission; nothing to boot", cfg.ManifestName)
		return nil, nil
	}
	con.Info("Found %d sub-project(s)", len(locs))
	for _, loc := range locs {
		log.Debug("discovered", "manifest", loc.Path())
	}
	return locs, nil
}

func logger(d Deps) *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
