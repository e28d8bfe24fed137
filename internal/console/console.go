// Package console renders the user-facing, leveled progress lines of a run.
//
// Lines are written whole under a mutex, so concurrent process handlers never
// interleave inside a line. Colour is decided by the destination writer: a
// plain buffer or redirected file gets no escape codes.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// UnnamedProject is shown when a manifest declares no name.
const UnnamedProject = "undefined"

// Level tags one console line.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
	LevelAwait
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelAwait:
		return "await"
	default:
		return "info"
	}
}

var badges = map[Level]string{
	LevelInfo:    "ℹ info",
	LevelSuccess: "✔ success",
	LevelWarn:    "⚠ warn",
	LevelError:   "✖ error",
	LevelAwait:   "… await",
}

// Console writes leveled lines to a single destination.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	styles  map[Level]lipgloss.Style
	project lipgloss.Style
}

// New returns a Console writing to w.
func New(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w: w,
		styles: map[Level]lipgloss.Style{
			LevelInfo:    r.NewStyle().Foreground(lipgloss.Color("12")),
			LevelSuccess: r.NewStyle().Foreground(lipgloss.Color("10")),
			LevelWarn:    r.NewStyle().Foreground(lipgloss.Color("11")),
			LevelError:   r.NewStyle().Foreground(lipgloss.Color("9")),
			LevelAwait:   r.NewStyle().Foreground(lipgloss.Color("14")),
		},
		project: r.NewStyle().Foreground(lipgloss.Color("13")),
	}
}

func (c *Console) Info(format string, args ...any)    { c.line(LevelInfo, "", format, args...) }
func (c *Console) Success(format string, args ...any) { c.line(LevelSuccess, "", format, args...) }
func (c *Console) Warn(format string, args ...any)    { c.line(LevelWarn, "", format, args...) }
func (c *Console) Error(format string, args ...any)   { c.line(LevelError, "", format, args...) }
func (c *Console) Await(format string, args ...any)   { c.line(LevelAwait, "", format, args...) }

// Project returns a view whose lines are prefixed with the project name.
func (c *Console) Project(name string) *Project {
	if strings.TrimSpace(name) == "" {
		name = UnnamedProject
	}
	return &Project{c: c, name: name}
}

// Writer returns an io.Writer that shares the console's lock. Child processes
// whose output is not captured (the install phase) write through it.
func (c *Console) Writer() io.Writer {
	return lockedWriter{c}
}

func (c *Console) line(level Level, project, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	msg = strings.TrimRight(msg, "\r\n")

	var b strings.Builder
	b.WriteString(c.styles[level].Render(badges[level]))
	b.WriteByte(' ')
	if project != "" {
		b.WriteString(c.project.Render("[" + project + "]"))
		b.WriteByte(' ')
	}
	b.WriteString(msg)
	b.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.w, b.String())
}

// Project is a Console scoped to one sub-project.
type Project struct {
	c    *Console
	name string
}

// Name is the attribution prefix used for this project.
func (p *Project) Name() string { return p.name }

// Info emits raw text, typically a stdout chunk, as an info line.
func (p *Project) Info(text string) { p.c.line(LevelInfo, p.name, "%s", text) }

// Error emits raw text, typically a stderr chunk, as an error line.
func (p *Project) Error(text string) { p.c.line(LevelError, p.name, "%s", text) }

func (p *Project) Success(format string, args ...any) {
	p.c.line(LevelSuccess, p.name, format, args...)
}

func (p *Project) Failure(format string, args ...any) {
	p.c.line(LevelError, p.name, format, args...)
}

type lockedWriter struct{ c *Console }

func (l lockedWriter) Write(p []byte) (int, error) {
	l.c.mu.Lock()
	defer l.c.mu.Unlock()
	return l.c.w.Write(p)
}
