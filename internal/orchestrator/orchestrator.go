// Package orchestrator drives a multi-phase run plan to completion.
//
// Phases run strictly sequentially. Before each phase the restart gate
// verifies the predecessor's artifacts and produces the hand-off
// environment; the log tailer is attached before the engine starts so no
// early output is lost, and detached on every exit path. The first gate or
// launch failure short-circuits the remainder of the plan.
package orchestrator

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/artifact"
	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/events"
	"github.com/glasslab/cp2kit/internal/fs"
	"github.com/glasslab/cp2kit/internal/gate"
	"github.com/glasslab/cp2kit/internal/launch"
	"github.com/glasslab/cp2kit/internal/plan"
	"github.com/glasslab/cp2kit/internal/tail"
	"github.com/glasslab/cp2kit/internal/watchdog"
)

// eventSchemaVersion stamps every appended event record.
const eventSchemaVersion = "1.0"

// LineSink receives tailed log lines during a phase. Implemented by the
// dashboard; a discard sink disables live output.
type LineSink interface {
	Line(string)
	SetPhase(int)
	Flush()
}

// TailHandle is the part of the tailer the orchestrator drives.
type TailHandle interface {
	Lines() <-chan string
	Detach()
}

// AttachFunc attaches a tailer to a log path. Injected so tests can
// substitute a fake.
type AttachFunc func(path string, logger *zap.Logger) (TailHandle, error)

// Orchestrator owns one run plan execution.
type Orchestrator struct {
	WorkDir    string
	Launcher   launch.PhaseLauncher
	Sink       LineSink
	EventsPath string
	Logger     *zap.Logger

	// Attach defaults to the fsnotify tailer.
	Attach AttachFunc

	// StallThreshold tunes the log-growth watchdog; zero uses the default.
	StallThreshold time.Duration
}

// New builds an orchestrator with the real tailer wired in.
func New(workDir string, launcher launch.PhaseLauncher, sink LineSink, eventsPath string, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		WorkDir:    workDir,
		Launcher:   launcher,
		Sink:       sink,
		EventsPath: eventsPath,
		Logger:     logger,
		Attach: func(path string, lg *zap.Logger) (TailHandle, error) {
			return tail.Attach(path, lg)
		},
	}
}

// Run executes the plan phase by phase. It returns the results of every
// phase that was launched, even when the run fails partway. Results for
// phases that never started are absent, not zero-valued.
func (o *Orchestrator) Run(ctx context.Context, p plan.RunPlan) ([]launch.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := o.checkStale(p); err != nil {
		return nil, err
	}

	var results []launch.Result
	var prior *launch.Result
	for i, ph := range p.Phases {
		env, err := gate.Check(o.WorkDir, ph, i, prior)
		if err != nil {
			o.recordGateFailure(p.Project, i, err)
			return results, err
		}

		merged := ph.Spec.CloneEnv()
		for k, v := range env {
			merged[k] = v
		}
		ph.Spec.ExtraEnv = merged

		res, err := o.runPhase(ctx, ph, i)
		results = append(results, res)
		if err != nil {
			if errors.GetCode(err) == errors.ECancelled {
				o.record(p.Project, "run_cancelled", events.RunCancelledData(i))
			}
			return results, err
		}
		prior = &results[len(results)-1]
	}
	return results, nil
}

// runPhase launches one phase with the tailer attached for its full
// lifetime.
func (o *Orchestrator) runPhase(ctx context.Context, ph plan.PhaseDescriptor, index int) (launch.Result, error) {
	logPath := artifact.Path(o.WorkDir, ph.Spec.Project, artifact.Log, 0)

	// Every phase of a chain writes the same log path, and a leftover log
	// alone does not trip the stale check. Reset it before attaching so the
	// tailer only ever sees this phase's output.
	if err := os.Truncate(logPath, 0); err != nil && !os.IsNotExist(err) {
		return launch.Result{Phase: index, ExitCode: -1}, errors.Wrap(
			errors.EInternal, "resetting engine log", err)
	}

	o.Sink.SetPhase(index)
	handle, err := o.Attach(logPath, o.Logger)
	if err != nil {
		return launch.Result{Phase: index, ExitCode: -1}, errors.Wrap(
			errors.EInternal, "attaching log tailer", err)
	}

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for line := range handle.Lines() {
			o.Sink.Line(line)
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	go watchdog.Watch(watchCtx, logPath, o.stallThreshold(), o.Logger)

	o.record(ph.Spec.Project, "phase_started",
		events.PhaseStartedData(index, ph.Spec.InputDeck, logPath))

	res, launchErr := o.Launcher.Launch(ctx, ph, index)

	stopWatch()
	handle.Detach()
	<-pumpDone
	o.Sink.Flush()

	o.record(ph.Spec.Project, "phase_finished", events.PhaseFinishedData(
		index, res.ExitCode, res.Duration.Milliseconds(), res.Cancelled,
		kindNames(res.ArtifactsPresent)))

	return res, launchErr
}

// checkStale rejects a work directory holding leftovers that the first
// phase would clobber. Only phase 0 is checked; later phases legitimately
// reuse the same artifact names as their predecessor's hand-off.
func (o *Orchestrator) checkStale(p plan.RunPlan) error {
	seen := map[artifact.Kind]bool{}
	var kinds []artifact.Kind
	for _, ph := range p.Phases {
		for _, k := range ph.Produces {
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}

	if path, found := fs.AnyArtifactsPresent(o.WorkDir, p.Project, kinds); found {
		return errors.NewWithDetails(
			errors.EStaleArtifacts,
			"work directory holds output files from a previous run",
			map[string]string{
				"project": p.Project,
				"found":   path,
				"hint":    "re-run with --clean to remove prior outputs",
			},
		)
	}
	return nil
}

func (o *Orchestrator) recordGateFailure(project string, index int, err error) {
	kind, expected := "", ""
	if ke, ok := errors.AsKitError(err); ok {
		kind = ke.Details["kind"]
		expected = ke.Details["expected_path"]
	}
	o.record(project, "gate_failed", events.GateFailedData(index, kind, expected))
}

// record appends one event. Event persistence is best-effort; a failure is
// logged and the run continues.
func (o *Orchestrator) record(project, name string, data map[string]any) {
	if o.EventsPath == "" {
		return
	}
	e := events.Event{
		SchemaVersion: eventSchemaVersion,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Project:       project,
		Event:         name,
		Data:          data,
	}
	if err := events.AppendEvent(o.EventsPath, e); err != nil {
		o.Logger.Warn("event append failed", zap.String("event", name), zap.Error(err))
	}
}

func (o *Orchestrator) stallThreshold() time.Duration {
	if o.StallThreshold > 0 {
		return o.StallThreshold
	}
	return watchdog.DefaultStallThreshold
}

func kindNames(kinds []artifact.Kind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k.String())
	}
	return out
}
