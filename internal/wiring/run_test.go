package wiring

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"classboot/internal/config"
	"classboot/internal/console"
	"classboot/internal/format"
	"classboot/internal/materialize"
	"classboot/internal/orchestrate"
	"classboot/internal/pkgmgr/pkgmgrtest"
)

func testDeps(t *testing.T) (Deps, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.AssignmentsRoot = filepath.Join(root, "assignments")
	cfg.StagingDir = filepath.Join(root, "staging")
	cfg.LogDir = filepath.Join(root, "logs")
	if err := os.MkdirAll(cfg.AssignmentsRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	return Deps{Config: cfg, Manager: &pkgmgrtest.Shell{}, Console: console.New(&out), InstallOutput: &bytes.Buffer{}}, &out
}

func TestResolveInput(t *testing.T) {
	d, _ := testDeps(t)
	if err := os.MkdirAll(filepath.Join(d.Config.AssignmentsRoot, "hw1"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"hw2.zip", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(d.Config.AssignmentsRoot, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		arg     string
		wantErr error
	}{
		{"hw1", nil},
		{"hw2.zip", nil},
		{"", ErrMissingInput},
		{"   ", ErrMissingInput},
		{"hw9", ErrInputNotFound},
		{"notes.txt", materialize.ErrUnsupportedSource},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := resolveInput(d, tt.arg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("resolveInput(%q) err = %v, want %v", tt.arg, err, tt.wantErr)
			}
			if tt.wantErr == nil && got != filepath.Join(d.Config.AssignmentsRoot, tt.arg) {
				t.Errorf("resolveInput(%q) = %q", tt.arg, got)
			}
		})
	}
}

func TestRun_NoManifests(t *testing.T) {
	d, out := testDeps(t)
	sub := filepath.Join(d.Config.AssignmentsRoot, "empty")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "README.md"), []byte("nothing here"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Run(context.Background(), d, "empty")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Manifests) != 0 || len(res.Outcomes) != 0 {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(out.String(), "nothing to boot") {
		t.Errorf("console:\n%s", out.String())
	}
}

func TestRun_CorruptArchiveAbortsAfterReset(t *testing.T) {
	d, _ := testDeps(t)
	if err := os.WriteFile(filepath.Join(d.Config.AssignmentsRoot, "bad.zip"), []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Run(context.Background(), d, "bad.zip")
	if err == nil || !strings.HasPrefix(err.Error(), "materialize:") {
		t.Fatalf("err = %v, want materialize error", err)
	}
	for _, dir := range []string{d.Config.StagingDir, d.Config.LogDir} {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) != 0 {
			t.Errorf("%s should exist and be empty: %v %v", dir, entries, err)
		}
	}
}

func TestDiscover(t *testing.T) {
	d, _ := testDeps(t)
	files := map[string]string{
		"api/package.json":                `{"name":"api","scripts":{"start":"node ."}}`,
		"web/package.json":                `{"scripts":{"start":"vite","dev":"vite --host"}}`,
		"lib/package.json":                `{"name":"lib"}`,
		"web/node_modules/z/package.json": `{"name":"z","scripts":{"start":"x"}}`,
	}
	for rel, content := range files {
		path := filepath.Join(d.Config.AssignmentsRoot, "hw1", rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := Discover(context.Background(), d, "hw1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	type row struct{ Dir, Name, Script string }
	var got []row
	for _, r := range rows {
		got = append(got, row{r.Dir, r.Name, r.Script})
	}
	want := []row{{"api", "api", "start"}, {"lib", "lib", ""}, {"web", "", "dev"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	if rows[1].Err == nil {
		t.Error("lib should carry a resolution error")
	}
	if _, err := os.Stat(d.Config.LogDir); !os.IsNotExist(err) {
		t.Errorf("discover must not touch the log dir, stat err = %v", err)
	}
	if !strings.Contains(format.Discovery(rows, format.ASCII), "web") {
		t.Error("discovery rows should render")
	}
}

func TestResult_Failed(t *testing.T) {
	res := &Result{Outcomes: []orchestrate.Outcome{
		{State: orchestrate.StateExited},
		{State: orchestrate.StateExited, ExitCode: 1},
		{State: orchestrate.StateSkipped},
		{State: orchestrate.StateExited, ExitCode: -1, Signal: "killed"},
	}}
	if got := res.Failed(); got != 3 {
		t.Errorf("Failed() = %d, want 3", got)
	}
}
