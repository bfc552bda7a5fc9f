package cobra

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/glasslab/cp2kit/internal/commands"
	"github.com/glasslab/cp2kit/internal/errors"
)

func newDoctorCmd() *cobra.Command {
	var engine string
	var workDir string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites and show resolved paths",
		Long: `Check prerequisites and show resolved paths.
Verifies the engine binary, CP2K_DATA_DIR, configuration, and the reports
directory. Every check runs even after one fails; the exit code is non-zero
when any check failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()

			cwd, err := os.Getwd()
			if err != nil {
				return errors.Wrap(errors.EInternal, "failed to get working directory", err)
			}

			logger := newLogger(GetGlobalOpts().Verbose)
			defer func() { _ = logger.Sync() }()

			opts := commands.DoctorOpts{
				Engine:  engine,
				WorkDir: workDir,
			}

			return commands.Doctor(cwd, opts, logger, stdout, stderr)
		},
	}

	cmd.Flags().StringVar(&engine, "engine", "", "engine binary (default: cp2k.psmp or cp2k on PATH)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "directory to diagnose (default: current directory)")

	return cmd
}
