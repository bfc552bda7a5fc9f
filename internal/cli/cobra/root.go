// Package cobra provides the Cobra-based CLI command tree for cp2kit.
package cobra

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose bool
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for cp2kit.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cp2kit",
		Short: "Run orchestrator for CP2K simulations",
		Long: `cp2kit - run orchestrator for CP2K simulations

cp2kit drives multi-phase CP2K runs with restart hand-off between phases,
tails the engine log live, and scores finished runs against configurable
thresholds. Phases run strictly in sequence; a failed phase stops the chain.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // We handle error printing in main.go
		SilenceUsage:  true, // We handle usage printing manually
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show detailed error context")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add all subcommands
	rootCmd.AddCommand(
		newRunCmd(),
		newEvalCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute parses args and runs the selected command.
// Returns the command's error for main.go to print and map to an exit code.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

// newLogger builds the zap logger subcommands log through. Verbose enables
// debug output.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
