package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"classboot/internal/console"
	"classboot/internal/format"
	"classboot/internal/logging"
	"classboot/internal/wiring"
)

var discoverFlags struct {
	format string
}

var discoverCmd = &cobra.Command{
	Use:   "discover <submission>",
	Short: "Stage a submission and list the sub-projects that would be booted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverFlags.format, "format", "ascii", "Table format: ascii or markdown")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	mode, err := format.ParseMode(discoverFlags.format)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	out := cmd.OutOrStdout()
	deps := wiring.Deps{
		Config:  cfg,
		Console: console.New(cmd.ErrOrStderr()),
		Logger:  logging.New("discover"),
	}
	rows, err := wiring.Discover(cmd.Context(), deps, firstArg(args))
	if err != nil {
		return &ExitError{Code: 1, Err: err, Reported: true}
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No sub-projects found.")
		return nil
	}
	fmt.Fprintln(out, format.Discovery(rows, mode))
	return nil
}
