package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"classboot/internal/console"
	"classboot/internal/format"
	"classboot/internal/logging"
	"classboot/internal/metrics"
	"classboot/internal/pkgmgr"
	"classboot/internal/wiring"
)

var bootFlags struct {
	strict      bool
	metricsAddr string
	summary     string
}

var bootCmd = &cobra.Command{
	Use:   "boot <submission>",
	Short: "Stage, install and boot a submission",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBoot,
}

func init() {
	addBootFlags(bootCmd)
}

// addBootFlags is shared by the root command, which boots when given a
// bare submission path, and the boot subcommand.
func addBootFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&bootFlags.strict, "strict", false, "Exit 1 if any sub-project is skipped or exits non-zero")
	f.StringVar(&bootFlags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on host:port while booting")
	f.StringVar(&bootFlags.summary, "summary", "ascii", "Summary table format: ascii, markdown or none")
}

func runBoot(cmd *cobra.Command, args []string) error {
	strict := cfg.StrictExit
	if cmd.Flags().Changed("strict") {
		strict = bootFlags.strict
	}
	metricsAddr := cfg.MetricsAddr
	if cmd.Flags().Changed("metrics-addr") {
		metricsAddr = bootFlags.metricsAddr
	}

	var summaryMode format.Mode
	if bootFlags.summary != "none" {
		m, err := format.ParseMode(bootFlags.summary)
		if err != nil {
			return &ExitError{Code: 2, Err: err}
		}
		summaryMode = m
	}

	mgr, err := pkgmgr.Lookup(cfg.PackageManager, cfg.InstallArgs)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	log := logging.New("boot")
	out := cmd.OutOrStdout()
	deps := wiring.Deps{
		Config:  cfg,
		Manager: mgr,
		Console: console.New(out),
		Logger:  log,
	}

	if metricsAddr != "" {
		collector := metrics.NewCollector(metrics.DefaultNamespace)
		srv := collector.Serve(metricsAddr, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		deps.Metrics = collector
	}

	res, err := wiring.Run(cmd.Context(), deps, firstArg(args))
	if err != nil {
		return &ExitError{Code: 1, Err: err, Reported: true}
	}

	if len(res.Outcomes) > 0 && bootFlags.summary != "none" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, format.RunSummary(res.Outcomes, summaryMode))
	}
	if failed := res.Failed(); strict && failed > 0 {
		// wiring.Run has already warned with the same count.
		return &ExitError{Code: 1, Err: fmt.Errorf("%d of %d sub-project(s) did not exit cleanly", failed, len(res.Outcomes)), Reported: true}
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
