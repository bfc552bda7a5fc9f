// Command cp2kit is a run orchestrator for CP2K simulations.
package main

import (
	"os"

	"github.com/glasslab/cp2kit/internal/cli/cobra"
	"github.com/glasslab/cp2kit/internal/errors"
)

func main() {
	err := cobra.Execute(os.Stdout, os.Stderr)
	if err != nil {
		// Use verbose mode if --verbose global flag was set
		opts := errors.PrintOptions{
			Verbose: cobra.GetGlobalOpts().Verbose,
		}
		errors.PrintWithOptions(os.Stderr, err, opts)
		os.Exit(errors.ExitCode(err))
	}
}
