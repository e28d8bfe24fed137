package format

import (
	"fmt"
	"time"

	"classboot/internal/console"
	"classboot/internal/orchestrate"
)

// RunSummary tabulates boot outcomes in launch order, with a footer counting
// clean exits and total bytes logged.
func RunSummary(outcomes []orchestrate.Outcome, m Mode) string {
	tb := newReport(m, "Project", "Script", "State", "Exit", "Runtime", "Logged", "Log")

	var ok int
	var logged int64
	for _, o := range outcomes {
		exit, runtime := "-", "-"
		if o.State == orchestrate.StateExited {
			exit = FmtExit(o.ExitCode, o.Signal)
			runtime = FmtDuration(o.Finished.Sub(o.Started).Round(time.Second))
		}
		script := o.Script
		if script == "" {
			script = "-"
		}
		logPath := o.LogPath
		if logPath == "" {
			logPath = "-"
		}
		if o.Succeeded() {
			ok++
		}
		logged += o.Bytes
		tb.row(o.Project, script, stateLabel(o), exit, runtime, FmtBytes(o.Bytes), logPath)
	}
	tb.footer("TOTAL", "", "", okRatio(ok, len(outcomes)), "", FmtBytes(logged), "")
	tb.rightAlign(4, 5, 6)
	return tb.String()
}

func stateLabel(o orchestrate.Outcome) string {
	switch {
	case o.Succeeded():
		return BoolMark(true) + " " + o.State.String()
	case o.State == orchestrate.StateSkipped, o.State == orchestrate.StateExited:
		return BoolMark(false) + " " + o.State.String()
	default:
		return o.State.String()
	}
}

func okRatio(ok, total int) string {
	return fmt.Sprintf("%d/%d ok", ok, total)
}

// DiscoveryRow is one sub-project found by a dry run.
type DiscoveryRow struct {
	Dir    string
	Name   string
	Script string
	Err    error
}

// Discovery tabulates a dry run: where each sub-project lives, what it is
// called and which script would boot it.
func Discovery(rows []DiscoveryRow, m Mode) string {
	tb := newReport(m, "Directory", "Name", "Script", "Bootable")
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = console.UnnamedProject
		}
		script := r.Script
		if r.Err != nil {
			script = Truncate(r.Err.Error(), 60)
		}
		tb.row(r.Dir, name, script, BoolMark(r.Err == nil))
	}
	tb.clip(3, 60)
	return tb.String()
}
