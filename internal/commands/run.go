// Package commands implements cp2kit CLI commands.
package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/config"
	"github.com/glasslab/cp2kit/internal/dashboard"
	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/fs"
	"github.com/glasslab/cp2kit/internal/launch"
	"github.com/glasslab/cp2kit/internal/orchestrator"
	"github.com/glasslab/cp2kit/internal/plan"
)

// RunOpts holds options for the run command.
type RunOpts struct {
	// Decks are the input deck paths, one per phase, in execution order.
	Decks []string

	// Project is the engine PROJECT name.
	Project string

	// Mode is "sp" or "md".
	Mode string

	// Profile is "compat" or "fast".
	Profile string

	// Engine overrides the engine binary; empty means PATH lookup.
	Engine string

	// WorkDir is where phases run; empty means the current directory.
	WorkDir string

	// Timeout overrides the configured per-phase wall-time limit when
	// positive.
	Timeout time.Duration

	// Clean removes a previous run's artifacts before starting.
	Clean bool

	// NoDashboard disables the live view and snapshot file.
	NoDashboard bool
}

// RunResultSummary is the data printed on success.
type RunResultSummary struct {
	Project string
	Phases  int
	WorkDir string
	LogPath string
	Events  string
	Profile plan.Profile
	Mode    plan.Mode
}

// Run implements the `cp2kit run` command: builds the phase chain, clears
// stale artifacts when asked, and drives the orchestrator to completion.
func Run(ctx context.Context, cwd string, opts RunOpts, logger *zap.Logger, stdout, stderr io.Writer) error {
	if len(opts.Decks) == 0 {
		return errors.New(errors.EUsage, "at least one input deck is required")
	}
	if opts.Project == "" {
		return errors.New(errors.EUsage, "--project is required")
	}

	mode, err := plan.ParseMode(opts.Mode)
	if err != nil {
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

	cfg, found, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if found {
		logger.Debug("loaded config", zap.String("path", filepath.Join(workDir, config.ConfigFileName)))
	}

	engine := opts.Engine
	if engine == "" {
		engine = cfg.Engine
	}

	p, err := plan.ChainPlan(opts.Project, opts.Decks, mode, profile)
	if err != nil {
		return err
	}

	if opts.Clean {
		removed, err := fs.ClearArtifacts(workDir, opts.Project)
		if err != nil {
			return err
		}
		for _, path := range removed {
			fmt.Fprintf(stderr, "removed: %s\n", path)
		}
	}

	timeout := cfg.PhaseTimeout.Std()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	launcher := launch.NewLauncher(engine, workDir, timeout, logger)
	if _, err := launcher.ResolveEngine(); err != nil {
		return err
	}

	var sink orchestrator.LineSink = dashboard.Discard{}
	if !opts.NoDashboard {
		sink = dashboard.New(stdout, filepath.Join(workDir, "runs"), opts.Project, logger)
	}

	eventsPath := filepath.Join(workDir, "runs", "events.jsonl")
	orc := orchestrator.New(workDir, launcher, sink, eventsPath, logger)

	results, err := orc.Run(ctx, p)
	if err != nil {
		if msg := describeFailure(results, err); msg != "" {
			fmt.Fprintf(stderr, "%s (project %s)\n", msg, opts.Project)
		}
		return err
	}

	writeRunOutput(stdout, RunResultSummary{
		Project: opts.Project,
		Phases:  len(results),
		WorkDir: workDir,
		LogPath: results[len(results)-1].LogPath,
		Events:  eventsPath,
		Profile: profile,
		Mode:    mode,
	})
	return nil
}

// describeFailure names the phase a failed run stopped at, for stderr.
// Empty when the failure happened before any phase was identified.
func describeFailure(results []launch.Result, err error) string {
	phase := ""
	detail := ""
	if ke, ok := errors.AsKitError(err); ok {
		phase = ke.Details["phase"]
		if ec := ke.Details["exit_code"]; ec != "" {
			detail = ", exit code " + ec
		}
	}
	if phase == "" {
		if len(results) == 0 {
			return ""
		}
		phase = strconv.Itoa(results[len(results)-1].Phase)
	}
	return fmt.Sprintf("phase %s failed%s", phase, detail)
}

func writeRunOutput(w io.Writer, s RunResultSummary) {
	_, _ = fmt.Fprintf(w, "project: %s\n", s.Project)
	_, _ = fmt.Fprintf(w, "phases_completed: %d\n", s.Phases)
	_, _ = fmt.Fprintf(w, "mode: %s\n", s.Mode)
	_, _ = fmt.Fprintf(w, "profile: %s\n", s.Profile)
	_, _ = fmt.Fprintf(w, "work_dir: %s\n", s.WorkDir)
	_, _ = fmt.Fprintf(w, "log: %s\n", s.LogPath)
	_, _ = fmt.Fprintf(w, "events: %s\n", s.Events)
}
