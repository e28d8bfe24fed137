package orchestrate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"classboot/internal/console"
	"classboot/internal/manifest"
)

// StderrPrefix marks stderr output in a log file.
const StderrPrefix = "ERROR: "

const chunkSize = 32 * 1024

// DefaultDrain is how long output is still read after a child exits.
const DefaultDrain = time.Second

// State is a process's position in its lifecycle.
type State int

const (
	StatePending State = iota
	StateLaunched
	StateStreaming
	StateExited
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateLaunched:
		return "launched"
	case StateStreaming:
		return "streaming"
	case StateExited:
		return "exited"
	case StateSkipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Stream identifies which child pipe a chunk came from.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Chunk is one read from a child pipe, in delivery order.
type Chunk struct {
	Stream Stream
	Data   []byte
}

// ExitStatus is how a child terminated. Code is -1 when Signal is set.
type ExitStatus struct {
	Code   int
	Signal string
}

// Event is either a Chunk or the final ExitStatus of a process.
type Event struct {
	Chunk *Chunk
	Exit  *ExitStatus
}

// ExitError is recorded on an Outcome when a child exits unsuccessfully.
type ExitError struct {
	Code   int
	Signal string
}

func (e *ExitError) Error() string {
	if e.Signal != "" {
		return "terminated by signal " + e.Signal
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// Outcome is the final record of one launch attempt.
type Outcome struct {
	Project  string
	Dir      string
	Script   string
	LogPath  string
	State    State
	PID      int
	ExitCode int
	Signal   string
	// Bytes is what was appended to the log file, prefixes included.
	Bytes    int64
	Started  time.Time
	Finished time.Time
	Err      error
}

// Succeeded reports a clean exit with code 0.
func (o Outcome) Succeeded() bool {
	return o.State == StateExited && o.ExitCode == 0 && o.Signal == ""
}

// Process is one managed child.
type Process struct {
	loc     manifest.Location
	console *console.Project
	cmd     *exec.Cmd
	logFile *os.File
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	events  chan Event
	done    chan struct{}
	outcome Outcome

	// Handler-only state for stderr prefixing.
	lineStart  bool
	lastStream Stream
}

// Location is the manifest this process was booted from.
func (p *Process) Location() manifest.Location { return p.loc }

// PID of the child.
func (p *Process) PID() int { return p.outcome.PID }

// Done is closed once the process has exited and its log is closed.
func (p *Process) Done() <-chan struct{} { return p.done }

// Outcome is only complete after Done is closed.
func (p *Process) Outcome() Outcome {
	<-p.done
	return p.outcome
}

// start gives the child the write ends of two pipes owned by p. A grandchild
// that inherits them can keep them open after the child has exited; pump
// bounds how long it reads after that.
func (p *Process) start(cmd *exec.Cmd) error {
	outR, outW, err := os.Pipe()
	if err != nil {
		return err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return err
	}
	cmd.Stdout = outW
	cmd.Stderr = errW
	err = cmd.Start()
	outW.Close()
	errW.Close()
	if err != nil {
		outR.Close()
		errR.Close()
		return err
	}
	p.cmd = cmd
	p.stdout = outR
	p.stderr = errR
	p.events = make(chan Event, 64)
	p.lineStart = true
	return nil
}

// pump feeds p.events from both pipes and reaps the child concurrently.
// Once the child has exited, the pipes get up to drain to reach EOF before
// they are closed. The ExitStatus is always the last event.
func (p *Process) pump(log *slog.Logger, drain time.Duration) {
	var g errgroup.Group
	g.Go(func() error { return readChunks(p.stdout, Stdout, p.events) })
	g.Go(func() error { return readChunks(p.stderr, Stderr, p.events) })
	read := make(chan error, 1)
	go func() { read <- g.Wait() }()

	if err := p.cmd.Wait(); err != nil && p.cmd.ProcessState == nil {
		log.Error("wait for child", "pid", p.outcome.PID, "error", err)
	}

	var err error
	select {
	case err = <-read:
	case <-time.After(drain):
		log.Warn("output still open after exit, closing pipes", "pid", p.outcome.PID, "drain", drain)
		p.stdout.Close()
		p.stderr.Close()
		err = <-read
	}
	if err != nil {
		log.Warn("read child output", "pid", p.outcome.PID, "error", err)
	}
	p.stdout.Close()
	p.stderr.Close()

	st := exitStatus(p.cmd.ProcessState)
	p.events <- Event{Exit: &st}
	close(p.events)
}

func readChunks(r io.Reader, s Stream, out chan<- Event) error {
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			out <- Event{Chunk: &Chunk{Stream: s, Data: data}}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", s, err)
		}
	}
}

func exitStatus(ps *os.ProcessState) ExitStatus {
	if ps == nil {
		return ExitStatus{Code: -1}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: -1, Signal: ws.Signal().String()}
	}
	return ExitStatus{Code: ps.ExitCode()}
}

// prefixStderr inserts StderrPrefix at the start of every log line that
// stderr text begins, including a line whose earlier part came from stdout.
func (p *Process) prefixStderr(data []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(data) + len(StderrPrefix))
	if !p.lineStart && p.lastStream != Stderr {
		b.WriteString(StderrPrefix)
	}
	for len(data) > 0 {
		if p.lineStart {
			b.WriteString(StderrPrefix)
		}
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			b.Write(data)
			p.lineStart = false
			break
		}
		b.Write(data[:i+1])
		data = data[i+1:]
		p.lineStart = true
	}
	return b.Bytes()
}

func splitLines(data []byte) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(string(data), "\r\n"), "\n") {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
