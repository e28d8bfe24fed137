// Package orchestrate boots every discovered sub-project as a long-running
// child process and multiplexes its output into a per-project log file and
// the shared console.
//
// Launch never blocks on the child. Each process gets one event channel fed
// by two stream pumps; a single handler goroutine drains it, so the handler is
// the only writer to that process's log file. Wait returns once every handler
// has seen its process exit.
//
// There is no cancellation, deadline or restart. Children are started with
// exec.Command and run until they exit on their own.
package orchestrate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"classboot/internal/config"
	"classboot/internal/console"
	"classboot/internal/manifest"
	"classboot/internal/pkgmgr"
)

// Metrics observes process lifecycles. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ProcessLaunched(project string)
	ProcessSkipped(project string)
	OutputStreamed(project, stream string, n int)
	ProcessExited(project, result string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ProcessLaunched(string)                      {}
func (noopMetrics) ProcessSkipped(string)                       {}
func (noopMetrics) OutputStreamed(string, string, int)          {}
func (noopMetrics) ProcessExited(string, string, time.Duration) {}

// Options wires an Orchestrator. Runner, Console and LogDir are required.
type Options struct {
	Runner  pkgmgr.Manager
	Console *console.Console
	Logger  *slog.Logger
	Metrics Metrics

	LogDir    string
	LogNaming config.LogNaming
	// StagingRoot anchors relative log names under LogNamingRelpath.
	StagingRoot string
	// Drain bounds how long output is read after a child exits, for
	// grandchildren still holding its pipes. Defaults to DefaultDrain.
	Drain time.Duration
}

// Orchestrator owns every process it launches until that process exits.
type Orchestrator struct {
	opts Options
	log  *slog.Logger

	mu    sync.Mutex
	procs []*Process
}

// New returns an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Drain <= 0 {
		opts.Drain = DefaultDrain
	}
	if opts.LogNaming == "" {
		opts.LogNaming = config.LogNamingDirname
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{opts: opts, log: log}
}

// LaunchAll launches every location in order without waiting on any of them.
// A location that cannot be launched is reported and skipped; its siblings
// still launch.
func (o *Orchestrator) LaunchAll(locs []manifest.Location) {
	for _, loc := range locs {
		_, _ = o.Launch(loc)
	}
}

// Launch resolves the entry script for loc, opens its log file and starts
// the child. It returns as soon as the child is running. The returned error
// is scoped to this sub-project only; the skip is also recorded as an
// Outcome so Wait reports it in launch order.
func (o *Orchestrator) Launch(loc manifest.Location) (*Process, error) {
	p := &Process{
		loc:  loc,
		done: make(chan struct{}),
		outcome: Outcome{
			Project: console.UnnamedProject,
			Dir:     loc.Dir(),
			State:   StatePending,
		},
	}
	o.track(p)

	m, spec, err := manifest.Resolve(loc)
	if m != nil && m.Name != "" {
		p.outcome.Project = m.Name
	}
	if err != nil {
		return nil, o.skip(p, err)
	}
	p.outcome.Script = spec.Script
	p.console = o.opts.Console.Project(p.outcome.Project)

	p.outcome.LogPath = filepath.Join(o.opts.LogDir, LogFileName(loc, o.opts.LogNaming, o.opts.StagingRoot))
	f, err := os.OpenFile(p.outcome.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, o.skip(p, fmt.Errorf("open log for %s: %w", loc.Path(), err))
	}
	p.logFile = f

	cmd := o.opts.Runner.RunCommand(loc.Dir(), spec.Script)
	if err := p.start(cmd); err != nil {
		_ = f.Close()
		return nil, o.skip(p, fmt.Errorf("start %q for %s: %w", spec.Script, loc.Path(), err))
	}

	p.outcome.State = StateLaunched
	p.outcome.PID = cmd.Process.Pid
	p.outcome.Started = time.Now()
	o.opts.Metrics.ProcessLaunched(loc.DirName())
	o.opts.Console.Await("Booting %s with %q (pid %d, log %s)", p.outcome.Project, spec.Script, p.outcome.PID, p.outcome.LogPath)
	o.log.Info("process launched",
		"project", p.outcome.Project,
		"dir", loc.Dir(),
		"script", spec.Script,
		"pid", p.outcome.PID,
		"log", p.outcome.LogPath)

	go p.pump(o.log, o.opts.Drain)
	go o.handle(p)
	return p, nil
}

// Wait blocks until every launched process has exited and its log is closed,
// then returns all outcomes in launch order.
func (o *Orchestrator) Wait() []Outcome {
	o.mu.Lock()
	procs := append([]*Process(nil), o.procs...)
	o.mu.Unlock()

	out := make([]Outcome, 0, len(procs))
	for _, p := range procs {
		<-p.done
		out = append(out, p.outcome)
	}
	return out
}

func (o *Orchestrator) track(p *Process) {
	o.mu.Lock()
	o.procs = append(o.procs, p)
	o.mu.Unlock()
}

func (o *Orchestrator) skip(p *Process, err error) error {
	p.outcome.State = StateSkipped
	p.outcome.Err = err
	close(p.done)

	o.opts.Metrics.ProcessSkipped(p.loc.DirName())
	o.opts.Console.Error("Skipping %s: %v", p.loc.DirName(), err)
	o.log.Warn("process skipped", "manifest", p.loc.Path(), "error", err)
	return err
}

// handle is the only consumer of p.events.
func (o *Orchestrator) handle(p *Process) {
	defer close(p.done)
	for ev := range p.events {
		switch {
		case ev.Chunk != nil:
			o.deliver(p, *ev.Chunk)
		case ev.Exit != nil:
			o.finish(p, *ev.Exit)
		}
	}
}

func (o *Orchestrator) deliver(p *Process, c Chunk) {
	p.outcome.State = StateStreaming

	data := c.Data
	if c.Stream == Stderr {
		data = p.prefixStderr(data)
	} else {
		p.lineStart = len(data) == 0 || data[len(data)-1] == '\n'
	}
	p.lastStream = c.Stream

	n, err := p.logFile.Write(data)
	p.outcome.Bytes += int64(n)
	if err != nil {
		o.log.Error("log write failed", "log", p.outcome.LogPath, "error", err)
	}
	o.opts.Metrics.OutputStreamed(p.loc.DirName(), c.Stream.String(), len(c.Data))

	for _, line := range splitLines(c.Data) {
		if c.Stream == Stderr {
			p.console.Error(line)
		} else {
			p.console.Info(line)
		}
	}
}

func (o *Orchestrator) finish(p *Process, st ExitStatus) {
	p.outcome.State = StateExited
	p.outcome.Finished = time.Now()
	p.outcome.ExitCode = st.Code
	p.outcome.Signal = st.Signal
	elapsed := p.outcome.Finished.Sub(p.outcome.Started)

	result := "success"
	switch {
	case st.Signal != "":
		result = "signal"
		p.outcome.Err = &ExitError{Signal: st.Signal}
		p.console.Failure("Process exited by signal %s", st.Signal)
	case st.Code != 0:
		result = "failure"
		p.outcome.Err = &ExitError{Code: st.Code}
		p.console.Failure("Process exited with code %d", st.Code)
	default:
		p.console.Success("Process exited with code 0")
	}
	o.opts.Metrics.ProcessExited(p.loc.DirName(), result, elapsed)
	o.log.Info("process exited",
		"project", p.outcome.Project,
		"pid", p.outcome.PID,
		"code", st.Code,
		"signal", st.Signal,
		"elapsed", elapsed)

	if err := p.logFile.Close(); err != nil {
		o.log.Error("close log", "log", p.outcome.LogPath, "error", err)
	}
}
