// classboot stages a student submission, installs every sub-project it
// contains and boots them all, capturing each one's output in its own log.
//
// Usage:
//
//	classboot <submission>                 boot a directory or .zip under the assignments root
//	classboot boot <submission> [--strict]
//	classboot discover <submission>        list what would be booted
//	classboot version
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"classboot/internal/config"
	"classboot/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath     string
	assignments    string
	stagingDir     string
	logDir         string
	packageManager string
	logNaming      string
	logLevel       string
	logFormat      string
}

// cfg is loaded in PersistentPreRunE and read by every subcommand.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "classboot [submission]",
	Short: "Boot every sub-project of a student submission",
	Long: "classboot extracts a submission (directory or .zip) into a clean staging area,\n" +
		"installs each sub-project's dependencies one by one, then starts them all and\n" +
		"writes each one's output to <log_dir>/<project>.log.",
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: loadConfig,
	RunE:              runBoot,
	SilenceErrors:     true,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "Config file (default ./"+config.DefaultFile+" if present)")
	pf.StringVar(&rootFlags.assignments, "assignments", "", "Directory submissions are resolved against")
	pf.StringVar(&rootFlags.stagingDir, "staging-dir", "", "Staging directory, wiped on every run")
	pf.StringVar(&rootFlags.logDir, "log-dir", "", "Boot log directory, wiped on every run")
	pf.StringVar(&rootFlags.packageManager, "package-manager", "", "npm, yarn or pnpm")
	pf.StringVar(&rootFlags.logNaming, "log-naming", "", "Log file naming: dirname or relpath")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "Diagnostic log level: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "Diagnostic log format: pretty, text, json")

	addBootFlags(rootCmd)

	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

// loadConfig layers explicitly set flags over the config file over defaults.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadOptional(rootFlags.configPath)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	applyOverrides(cmd, &c)
	if err := c.Validate(); err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid config: %w", err)}
	}
	logging.Init(logging.ParseLevel(c.LogLevel), c.LogFormat, cmd.ErrOrStderr())
	cfg = c
	return nil
}

func applyOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("assignments", &c.AssignmentsRoot, rootFlags.assignments)
	set("staging-dir", &c.StagingDir, rootFlags.stagingDir)
	set("log-dir", &c.LogDir, rootFlags.logDir)
	set("package-manager", &c.PackageManager, rootFlags.packageManager)
	set("log-level", &c.LogLevel, rootFlags.logLevel)
	set("log-format", &c.LogFormat, rootFlags.logFormat)
	if flags.Changed("log-naming") {
		c.LogNaming = config.LogNaming(rootFlags.logNaming)
	}
}

// ExitError carries the process exit status for main. Reported is set when
// the console has already shown Err.
type ExitError struct {
	Code     int
	Err      error
	Reported bool
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode maps an Execute error to a process status: usage and config
// problems are 2, everything else is 1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// printError writes err to w unless the console already reported it.
func printError(w io.Writer, err error) {
	var ee *ExitError
	if err == nil || errors.As(err, &ee) && ee.Reported {
		return
	}
	fmt.Fprintln(w, err)
}

func main() {
	err := rootCmd.Execute()
	printError(os.Stderr, err)
	os.Exit(exitCode(err))
}
