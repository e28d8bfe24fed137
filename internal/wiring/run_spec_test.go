package wiring

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"classboot/internal/config"
	"classboot/internal/console"
	"classboot/internal/install"
	"classboot/internal/manifest"
	"classboot/internal/orchestrate"
	"classboot/internal/pkgmgr/pkgmgrtest"
)

var _ = ginkgo.Describe("Run", func() {
	var (
		root string
		cfg  config.Config
		mgr  *pkgmgrtest.Shell
		out  *bytes.Buffer
		deps Deps
	)

	ginkgo.BeforeEach(func() {
		root = ginkgo.GinkgoT().TempDir()
		cfg = config.Default()
		cfg.AssignmentsRoot = filepath.Join(root, "assignments")
		cfg.StagingDir = filepath.Join(root, "staging")
		cfg.LogDir = filepath.Join(root, "logs")
		mgr = &pkgmgrtest.Shell{}
		out = &bytes.Buffer{}
		deps = Deps{Config: cfg, Manager: mgr, Console: console.New(out), InstallOutput: &bytes.Buffer{}}
	})

	ginkgo.It("stages a zip submission as an exact copy of its contents", func() {
		files := map[string]string{
			"README.md":                     "# hw2\n",
			"api/package.json":              `{"name":"api","scripts":{"start":"echo up"}}`,
			"api/node_modules/x/index.js":   "module.exports = 1\n",
			"api/src/server.js":             "// server\n",
			"docs/notes/2026-10-01/todo.md": "- grade\n",
		}
		writeSubmissionZip(filepath.Join(cfg.AssignmentsRoot, "hw2.zip"), files)

		res, err := Run(context.Background(), deps, "hw2.zip")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(snapshotTree(cfg.StagingDir)).To(gomega.Equal(files))
		gomega.Expect(res.RunID).NotTo(gomega.BeEmpty())
		gomega.Expect(res.Outcomes).To(gomega.HaveLen(1))
		gomega.Expect(res.Outcomes[0].Succeeded()).To(gomega.BeTrue())
	})

	ginkgo.It("never discovers manifests below vendored or version-control directories", func() {
		writeSubmission(filepath.Join(cfg.AssignmentsRoot, "hw1"), map[string]string{
			"app/package.json":                                   `{"name":"app","scripts":{"start":"true"}}`,
			"app/node_modules/dep/package.json":                  `{"name":"dep","scripts":{"start":"exit 9"}}`,
			"app/lib/node_modules/a/b/node_modules/package.json": `{"name":"deep"}`,
			".git/modules/sub/package.json":                      `{"name":"vcs"}`,
			"tools/cli/package.json":                             `{"name":"cli","scripts":{"dev":"true"}}`,
		})

		res, err := Run(context.Background(), deps, "hw1")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(relDirs(res.Manifests, cfg.StagingDir)).To(gomega.ConsistOf("app", "tools/cli"))
		gomega.Expect(mgr.Installed()).To(gomega.Equal([]string{"app", "cli"}))
	})

	ginkgo.It("resolves entry scripts and skips only the project without one", func() {
		writeSubmission(filepath.Join(cfg.AssignmentsRoot, "hw3"), map[string]string{
			"a-start/package.json": `{"name":"a","scripts":{"start":"echo start"}}`,
			"b-dev/package.json":   `{"name":"b","scripts":{"dev":"echo dev"}}`,
			"c-both/package.json":  `{"name":"c","scripts":{"start":"echo start","dev":"echo dev"}}`,
			"d-none/package.json":  `{"name":"d","scripts":{"test":"true"}}`,
			"e-last/package.json":  `{"name":"e","scripts":{"start":"echo last"}}`,
		})

		res, err := Run(context.Background(), deps, "hw3")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(res.Outcomes).To(gomega.HaveLen(5))

		scripts := []string{}
		for _, o := range res.Outcomes {
			scripts = append(scripts, o.Script)
		}
		gomega.Expect(scripts).To(gomega.Equal([]string{"start", "dev", "dev", "", "start"}))

		skipped := res.Outcomes[3]
		gomega.Expect(skipped.State).To(gomega.Equal(orchestrate.StateSkipped))
		gomega.Expect(skipped.Err).To(gomega.MatchError(manifest.ErrNoLaunchScript))
		gomega.Expect(out.String()).To(gomega.ContainSubstring(filepath.Join(cfg.StagingDir, "d-none", "package.json")))
		gomega.Expect(res.Outcomes[4].Succeeded()).To(gomega.BeTrue())
		gomega.Expect(readFile(filepath.Join(cfg.LogDir, "e-last.log"))).To(gomega.Equal("last\n"))
		gomega.Expect(res.Failed()).To(gomega.Equal(1))
	})

	ginkgo.It("halts the whole run when an install fails", func() {
		writeSubmission(filepath.Join(cfg.AssignmentsRoot, "hw4"), map[string]string{
			"first/package.json":  `{"name":"first","scripts":{"start":"echo one"}}`,
			"second/package.json": `{"name":"second","scripts":{"start":"echo two"}}`,
			"third/package.json":  `{"name":"third","scripts":{"start":"echo three"}}`,
		})
		mgr.Installs = map[string]string{"second": "echo 'ERR! network' >&2; exit 1"}

		res, err := Run(context.Background(), deps, "hw4")
		gomega.Expect(err).To(gomega.MatchError(install.ErrInstallFailed))
		gomega.Expect(mgr.Installed()).To(gomega.Equal([]string{"first", "second"}))
		gomega.Expect(res.Outcomes).To(gomega.BeEmpty())

		entries, readErr := os.ReadDir(cfg.LogDir)
		gomega.Expect(readErr).To(gomega.Succeed())
		gomega.Expect(entries).To(gomega.BeEmpty(), "no boot phase may run")
	})

	ginkgo.It("gives each concurrently booted project its own log and result line", func() {
		writeSubmission(filepath.Join(cfg.AssignmentsRoot, "hw5"), map[string]string{
			"client/package.json": `{"name":"client","scripts":{"start":"echo client-1; sleep 0.2; echo client-2"}}`,
			"server/package.json": `{"name":"server","scripts":{"start":"echo server-1; sleep 0.2; echo server-2"}}`,
		})

		res, err := Run(context.Background(), deps, "hw5")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(res.Failed()).To(gomega.BeZero())

		gomega.Expect(readFile(filepath.Join(cfg.LogDir, "client.log"))).To(gomega.Equal("client-1\nclient-2\n"))
		gomega.Expect(readFile(filepath.Join(cfg.LogDir, "server.log"))).To(gomega.Equal("server-1\nserver-2\n"))
		gomega.Expect(out.String()).To(gomega.And(
			gomega.ContainSubstring("[client] Process exited with code 0"),
			gomega.ContainSubstring("[server] Process exited with code 0"),
		))
	})

	ginkgo.It("prefixes stderr in the log and reports exit codes", func() {
		writeSubmission(filepath.Join(cfg.AssignmentsRoot, "hw6"), map[string]string{
			"noisy/package.json": `{"name":"noisy","scripts":{"start":"echo warming up >&2; exit 7"}}`,
			"quiet/package.json": `{"name":"quiet","scripts":{"start":"echo ready"}}`,
		})

		res, err := Run(context.Background(), deps, "hw6")
		gomega.Expect(err).To(gomega.Succeed())

		gomega.Expect(readFile(filepath.Join(cfg.LogDir, "noisy.log"))).To(gomega.Equal("ERROR: warming up\n"))
		gomega.Expect(readFile(filepath.Join(cfg.LogDir, "quiet.log"))).To(gomega.Equal("ready\n"))
		gomega.Expect(res.Outcomes[0].ExitCode).To(gomega.Equal(7))
		gomega.Expect(out.String()).To(gomega.ContainSubstring("✖ error [noisy] Process exited with code 7"))
		gomega.Expect(out.String()).To(gomega.ContainSubstring("✔ success [quiet] Process exited with code 0"))
	})

	ginkgo.It("qualifies log names by relative path when configured", func() {
		deps.Config.LogNaming = config.LogNamingRelpath
		writeSubmission(filepath.Join(cfg.AssignmentsRoot, "hw7"), map[string]string{
			"part1/app/package.json": `{"name":"one","scripts":{"start":"echo one"}}`,
			"part2/app/package.json": `{"name":"two","scripts":{"start":"echo two"}}`,
		})

		_, err := Run(context.Background(), deps, "hw7")
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(readFile(filepath.Join(cfg.LogDir, "part1__app.log"))).To(gomega.Equal("one\n"))
		gomega.Expect(readFile(filepath.Join(cfg.LogDir, "part2__app.log"))).To(gomega.Equal("two\n"))
	})

	ginkgo.It("refuses a missing argument without touching the workspace", func() {
		_, err := Run(context.Background(), deps, "")
		gomega.Expect(err).To(gomega.MatchError(ErrMissingInput))
		gomega.Expect(cfg.StagingDir).NotTo(gomega.BeADirectory())
		gomega.Expect(cfg.LogDir).NotTo(gomega.BeADirectory())
	})

	ginkgo.It("refuses a nonexistent submission without touching the workspace", func() {
		gomega.Expect(os.MkdirAll(cfg.LogDir, 0o755)).To(gomega.Succeed())
		stale := filepath.Join(cfg.LogDir, "old.log")
		gomega.Expect(os.WriteFile(stale, []byte("previous run\n"), 0o644)).To(gomega.Succeed())

		_, err := Run(context.Background(), deps, "missing.zip")
		gomega.Expect(err).To(gomega.MatchError(ErrInputNotFound))
		gomega.Expect(stale).To(gomega.BeARegularFile())
		gomega.Expect(out.String()).To(gomega.ContainSubstring("does not exist"))
	})
})

func writeSubmission(root string, files map[string]string) {
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		gomega.Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(gomega.Succeed())
		gomega.Expect(os.WriteFile(path, []byte(content), 0o644)).To(gomega.Succeed())
	}
}

func writeSubmissionZip(path string, files map[string]string) {
	gomega.Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(gomega.Succeed())
	f, err := os.Create(path)
	gomega.Expect(err).To(gomega.Succeed())
	defer f.Close()

	zw := zip.NewWriter(f)
	for rel, content := range files {
		w, err := zw.Create(rel)
		gomega.Expect(err).To(gomega.Succeed())
		_, err = w.Write([]byte(content))
		gomega.Expect(err).To(gomega.Succeed())
	}
	gomega.Expect(zw.Close()).To(gomega.Succeed())
}

func snapshotTree(root string) map[string]string {
	got := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		got[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	gomega.Expect(err).To(gomega.Succeed())
	return got
}

func relDirs(locs []manifest.Location, root string) []string {
	dirs := make([]string, 0, len(locs))
	for _, l := range locs {
		dirs = append(dirs, l.RelDir(root))
	}
	return dirs
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	gomega.Expect(err).To(gomega.Succeed())
	return string(data)
}
