package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/artifact"
	"github.com/glasslab/cp2kit/internal/config"
	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/evaluate"
	"github.com/glasslab/cp2kit/internal/events"
	"github.com/glasslab/cp2kit/internal/plan"
	"github.com/glasslab/cp2kit/internal/report"
)

// EvalOpts holds options for the eval command.
type EvalOpts struct {
	// Project names the run to evaluate.
	Project string

	// Profile selects the threshold preset when no overrides are given.
	Profile string

	// WorkDir is where the log lives; empty means the current directory.
	WorkDir string

	// ReportsDir overrides the configured reports directory.
	ReportsDir string

	// Threshold overrides; negative means "use the profile value".
	MaxSCF        float64
	TargetTempK   float64
	TempTolerance float64
	MaxTempStd    float64
}

// Eval implements the `cp2kit eval` command: parses the finished log,
// scores it, persists the report record, and exits non-zero when the run
// fails its thresholds.
func Eval(cwd string, opts EvalOpts, logger *zap.Logger, stdout, stderr io.Writer) error {
	if opts.Project == "" {
		return errors.New(errors.EUsage, "--project is required")
	}
	if err := plan.ValidateProject(opts.Project); err != nil {
		return err
	}
	profile, err := plan.ParseProfile(opts.Profile)
	if err != nil {
		return err
	}

	workDir := cwd
	if opts.WorkDir != "" {
		workDir = opts.WorkDir
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return errors.Wrap(errors.EInternal, "resolving work directory", err)
	}

	cfg, _, err := config.Load(workDir)
	if err != nil {
		return err
	}

	th := cfg.ThresholdsFor(profile)
	if opts.MaxSCF >= 0 {
		th.MaxSCF = opts.MaxSCF
	}
	if opts.TargetTempK >= 0 {
		th.TargetTempK = opts.TargetTempK
	}
	if opts.TempTolerance >= 0 {
		th.TempToleranceK = opts.TempTolerance
	}
	if opts.MaxTempStd >= 0 {
		th.MaxTempStdK = opts.MaxTempStd
	}

	logPath := artifact.Path(workDir, opts.Project, artifact.Log, 0)
	series, err := evaluate.Parse(logPath)
	if err != nil {
		return err
	}
	rep := evaluate.Evaluate(opts.Project, series, th)

	reportsDir := opts.ReportsDir
	if reportsDir == "" {
		reportsDir = cfg.ReportsDir
	}
	if !filepath.IsAbs(reportsDir) {
		reportsDir = filepath.Join(workDir, reportsDir)
	}
	store := report.NewStore(reportsDir)
	recordPath, err := store.Write(rep, logPath)
	if err != nil {
		return err
	}
	logger.Info("report written",
		zap.String("project", opts.Project),
		zap.Bool("pass", rep.Pass),
		zap.String("path", recordPath))

	// Event persistence is best-effort, same as during runs.
	e := events.Event{
		SchemaVersion: "1.0",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Project:       opts.Project,
		Event:         "eval_finished",
		Data:          events.EvalFinishedData(rep.Pass, recordPath, rep.Reasons),
	}
	if aerr := events.AppendEvent(filepath.Join(workDir, "runs", "events.jsonl"), e); aerr != nil {
		logger.Warn("event append failed", zap.Error(aerr))
	}

	writeEvalOutput(stdout, rep, recordPath)

	if !rep.Pass {
		return errors.NewWithDetails(
			errors.EThresholdFailed,
			fmt.Sprintf("evaluation failed: %s", strings.Join(rep.Reasons, "; ")),
			map[string]string{"project": opts.Project, "report": recordPath},
		)
	}
	return nil
}

func writeEvalOutput(w io.Writer, r evaluate.Report, recordPath string) {
	_, _ = fmt.Fprintf(w, "project: %s\n", r.Project)
	_, _ = fmt.Fprintf(w, "pass: %s\n", boolStr(r.Pass))
	_, _ = fmt.Fprintf(w, "steps: %d\n", r.Metrics.Steps)
	writeMetric(w, "scf_cycles_mean", r.Metrics.SCFCyclesMean)
	writeMetric(w, "temperature_mean", r.Metrics.TemperatureMean)
	writeMetric(w, "temperature_std", r.Metrics.TemperatureStd)
	writeMetric(w, "energy_mean", r.Metrics.EnergyMean)
	_, _ = fmt.Fprintf(w, "report: %s\n", recordPath)
	for _, reason := range r.Reasons {
		_, _ = fmt.Fprintf(w, "reason: %s\n", reason)
	}
}

func writeMetric(w io.Writer, key string, v *float64) {
	if v == nil {
		_, _ = fmt.Fprintf(w, "%s: -\n", key)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: %.6f\n", key, *v)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
