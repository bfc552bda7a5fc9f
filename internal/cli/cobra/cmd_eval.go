package cobra

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/glasslab/cp2kit/internal/commands"
	"github.com/glasslab/cp2kit/internal/errors"
)

func newEvalCmd() *cobra.Command {
	var project string
	var profile string
	var workDir string
	var reportsDir string
	var maxSCF float64
	var targetTemp float64
	var tempTolerance float64
	var maxTempStd float64

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score a finished run against thresholds",
		Long: `Parse a finished run's log, compute summary statistics, and score them
against the profile's thresholds. Writes a report record to the reports
directory. Exits non-zero when any threshold fails or the log is unparsable.
Flag overrides take precedence over the profile and cp2kit.yaml.`,
		Args: cobra.NoArgs,
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

			opts := commands.EvalOpts{
				Project:       project,
				Profile:       profile,
				WorkDir:       workDir,
				ReportsDir:    reportsDir,
				MaxSCF:        maxSCF,
				TargetTempK:   targetTemp,
				TempTolerance: tempTolerance,
				MaxTempStd:    maxTempStd,
			}

			return commands.Eval(cwd, opts, logger, stdout, stderr)
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "engine PROJECT name of the run to score (required)")
	cmd.Flags().StringVar(&profile, "profile", "compat", "threshold preset: compat or fast")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "directory holding the run's log (default: current directory)")
	cmd.Flags().StringVar(&reportsDir, "reports-dir", "", "where to write the report record (default: from config)")
	cmd.Flags().Float64Var(&maxSCF, "max-scf", -1, "override: maximum mean SCF cycles per step")
	cmd.Flags().Float64Var(&targetTemp, "target-temp", -1, "override: thermostat target temperature [K]")
	cmd.Flags().Float64Var(&tempTolerance, "temp-tolerance", -1, "override: allowed deviation of mean temperature [K]")
	cmd.Flags().Float64Var(&maxTempStd, "max-temp-std", -1, "override: maximum temperature standard deviation [K]")

	return cmd
}
