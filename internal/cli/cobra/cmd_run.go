package cobra

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/glasslab/cp2kit/internal/commands"
	"github.com/glasslab/cp2kit/internal/errors"
)

func newRunCmd() *cobra.Command {
	var project string
	var mode string
	var profile string
	var engine string
	var workDir string
	var timeout time.Duration
	var clean bool
	var noDashboard bool

	cmd := &cobra.Command{
		Use:   "run <deck> [deck...]",
		Short: "Run a phase chain with restart hand-off",
		Long: `Run one or more CP2K phases in sequence, one input deck per phase.
Each later phase resumes from the previous phase's restart and wavefunction
files. The engine log streams to stdout unless --no-dashboard is given.
Ctrl-C interrupts the engine cleanly and leaves partial artifacts in place.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()

			if project == "" {
				_ = cmd.Help()
				return errors.New(errors.EUsage, "--project is required")
			}

			cwd, err := os.Getwd()
			if err != nil {
				return errors.Wrap(errors.EInternal, "failed to get working directory", err)
			}

			logger := newLogger(GetGlobalOpts().Verbose)
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := commands.RunOpts{
				Decks:       args,
				Project:     project,
				Mode:        mode,
				Profile:     profile,
				Engine:      engine,
				WorkDir:     workDir,
				Timeout:     timeout,
				Clean:       clean,
				NoDashboard: noDashboard,
			}

			return commands.Run(ctx, cwd, opts, logger, stdout, stderr)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "engine PROJECT name (required, becomes the artifact filename prefix)")
	cmd.Flags().StringVar(&mode, "mode", "md", "simulation mode: sp or md")
	cmd.Flags().StringVar(&profile, "profile", "compat", "configuration preset: compat or fast")
	cmd.Flags().StringVar(&engine, "engine", "", "engine binary (default: cp2k.psmp or cp2k on PATH)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "directory to run in (default: current directory)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-phase wall-time limit (default: from config)")
	cmd.Flags().BoolVar(&clean, "clean", false, "remove a previous run's artifacts before starting")
	cmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "suppress the live log view and state snapshot")

	return cmd
}
