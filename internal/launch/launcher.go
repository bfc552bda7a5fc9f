// Package launch starts the CP2K engine for one phase and waits for it.
package launch

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	osexec "os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/artifact"
	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/plan"
)

// engineCandidates are tried in order when no explicit engine path is given.
var engineCandidates = []string{"cp2k.psmp", "cp2k"}

// GracePeriod is the duration to wait between SIGINT and SIGKILL when
// terminating an engine process (timeout or cancellation). SIGINT first so
// CP2K gets a chance to flush its restart file.
const GracePeriod = 5 * time.Second

// Result describes one completed (or terminated) phase.
// Immutable after creation.
type Result struct {
	// Phase is the zero-based index within the run plan.
	Phase int

	// ExitCode is the engine's exit code; -1 when the process was signaled
	// before reporting one.
	ExitCode int

	// LogPath is the engine log this phase wrote.
	LogPath string

	// ArtifactsPresent lists the expected artifact kinds found on disk
	// after the engine exited.
	ArtifactsPresent []artifact.Kind

	// Duration is the phase wall time.
	Duration time.Duration

	// Cancelled is true when the phase was terminated by user cancellation.
	Cancelled bool

	// TimedOut is true when the phase hit the configured wall-time limit.
	TimedOut bool

	// Signal is the terminating signal name, if any.
	Signal string
}

// Has reports whether the result observed the given artifact kind.
func (r Result) Has(kind artifact.Kind) bool {
	for _, k := range r.ArtifactsPresent {
		if k == kind {
			return true
		}
	}
	return false
}

// PhaseLauncher is the orchestrator's view of a launcher, substituted by
// fakes in tests.
type PhaseLauncher interface {
	Launch(ctx context.Context, ph plan.PhaseDescriptor, index int) (Result, error)
}

// Launcher runs engine phases as child processes.
type Launcher struct {
	// Engine is an explicit engine binary path; empty means PATH lookup
	// over cp2k.psmp then cp2k.
	Engine string

	// WorkDir is where the engine runs and writes its artifacts.
	WorkDir string

	// Timeout bounds each phase's wall time; zero means no limit.
	Timeout time.Duration

	Logger *zap.Logger
}

// NewLauncher creates a launcher. A nil logger is replaced with a no-op.
func NewLauncher(engine, workDir string, timeout time.Duration, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{Engine: engine, WorkDir: workDir, Timeout: timeout, Logger: logger}
}

// ResolveEngine locates the engine binary. Returns E_ENGINE_NOT_FOUND when
// no candidate is resolvable or the explicit path is not executable.
func (l *Launcher) ResolveEngine() (string, error) {
	if l.Engine != "" {
		path, err := osexec.LookPath(l.Engine)
		if err != nil {
			return "", errors.WrapWithDetails(
				errors.EEngineNotFound,
				fmt.Sprintf("engine %q is not executable", l.Engine),
				err,
				map[string]string{"engine": l.Engine},
			)
		}
		return path, nil
	}
	for _, candidate := range engineCandidates {
		if path, err := osexec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", errors.New(errors.EEngineNotFound, "cp2k not found on PATH (tried cp2k.psmp, cp2k)")
}

// Launch spawns exactly one engine process for the phase, bound to its input
// deck, and waits synchronously for it to terminate. The engine's combined
// stdout/stderr stream goes to <project>.out untouched: the log must stay
// byte-identical engine output so the evaluator and the engine's own restart
// discovery can parse it. Live log content is the tailer's job, not ours.
//
// On ctx cancellation the process group receives SIGINT, then SIGKILL after
// GracePeriod; partially-written artifacts stay in place for diagnosis.
func (l *Launcher) Launch(ctx context.Context, ph plan.PhaseDescriptor, index int) (Result, error) {
	spec := ph.Spec
	result := Result{
		Phase:    index,
		ExitCode: -1,
		LogPath:  artifact.Path(l.WorkDir, spec.Project, artifact.Log, 0),
	}

	engine, err := l.ResolveEngine()
	if err != nil {
		return result, err
	}

	logFile, err := os.OpenFile(result.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return result, errors.WrapWithDetails(
			errors.EInternal,
			"failed to open engine log",
			err,
			map[string]string{"log": result.LogPath, "phase": fmt.Sprintf("%d", index)},
		)
	}

	runCtx := ctx
	cancelTimeout := func() {}
	if l.Timeout > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, l.Timeout)
	}
	defer cancelTimeout()

	cmd := osexec.Command(engine, "-i", spec.InputDeck)
	cmd.Dir = l.WorkDir
	cmd.Env = mergedEnv(spec)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	devnull, err := os.Open(os.DevNull)
	if err != nil {
		_ = logFile.Close()
		return result, errors.Wrap(errors.EInternal, "failed to open /dev/null", err)
	}
	cmd.Stdin = devnull

	// Own process group so SIGINT/SIGKILL reach MPI/OpenMP children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = devnull.Close()
		_ = logFile.Close()
		return result, errors.WrapWithDetails(
			errors.EEngineNotFound,
			"failed to start engine process",
			err,
			map[string]string{"engine": engine, "deck": spec.InputDeck, "phase": fmt.Sprintf("%d", index)},
		)
	}
	pgid := cmd.Process.Pid

	l.Logger.Info("engine started",
		zap.String("project", spec.Project),
		zap.Int("phase", index),
		zap.String("engine", engine),
		zap.String("deck", spec.InputDeck),
		zap.Int("pid", pgid),
	)

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- cmd.Wait()
	}()

	var runErr error
	select {
	case runErr = <-waitDone:
		// Engine terminated on its own.
	case <-runCtx.Done():
		if ctx.Err() != nil {
			result.Cancelled = true
		} else {
			result.TimedOut = true
		}
		// SIGINT first so CP2K can flush its restart file; SIGKILL only if
		// the group is still alive after the grace period.
		_ = syscall.Kill(-pgid, syscall.SIGINT)
		select {
		case runErr = <-waitDone:
		case <-time.After(GracePeriod):
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
			runErr = <-waitDone
		}
	}

	_ = devnull.Close()
	_ = logFile.Close()

	result.Duration = time.Since(start)
	result.ArtifactsPresent = presentArtifacts(l.WorkDir, spec.Project, ph.Produces)

	if runErr == nil {
		result.ExitCode = 0
	} else {
		var exitErr *osexec.ExitError
		if stderrors.As(runErr, &exitErr) {
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				result.Signal = status.Signal().String()
			} else {
				result.ExitCode = exitErr.ExitCode()
			}
		}
	}

	l.Logger.Info("engine finished",
		zap.String("project", spec.Project),
		zap.Int("phase", index),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("cancelled", result.Cancelled),
		zap.Bool("timed_out", result.TimedOut),
		zap.Duration("duration", result.Duration),
	)

	switch {
	case result.Cancelled:
		return result, errors.NewWithDetails(
			errors.ECancelled,
			fmt.Sprintf("phase %d cancelled; partial artifacts left in place", index),
			resultDetails(spec, result),
		)
	case result.TimedOut:
		return result, errors.NewWithDetails(
			errors.EEngineFailed,
			fmt.Sprintf("phase %d exceeded wall-time limit %s", index, l.Timeout),
			withKV(resultDetails(spec, result), "timed_out", "true"),
		)
	case runErr != nil:
		return result, errors.NewWithDetails(
			errors.EEngineFailed,
			fmt.Sprintf("phase %d engine exited with code %d", index, result.ExitCode),
			resultDetails(spec, result),
		)
	}
	return result, nil
}

// mergedEnv overlays the phase's ExtraEnv on the ambient environment.
// CP2K_DATA_DIR, OMP_NUM_THREADS and MKL_NUM_THREADS pass through untouched
// unless the phase overrides them explicitly.
func mergedEnv(spec plan.RunSpec) []string {
	env := os.Environ()
	for k, v := range spec.ExtraEnv {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// presentArtifacts returns which expected kinds actually exist with size > 0.
func presentArtifacts(workDir, project string, expected []artifact.Kind) []artifact.Kind {
	var present []artifact.Kind
	for _, kind := range expected {
		path := artifact.Discover(workDir, project, kind)
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			present = append(present, kind)
		}
	}
	return present
}

// resultDetails builds the stable error context for a failed phase.
func resultDetails(spec plan.RunSpec, r Result) map[string]string {
	return map[string]string{
		"project":   spec.Project,
		"deck":      spec.InputDeck,
		"phase":     fmt.Sprintf("%d", r.Phase),
		"exit_code": fmt.Sprintf("%d", r.ExitCode),
		"duration":  r.Duration.Round(time.Millisecond).String(),
		"log":       r.LogPath,
	}
}

func withKV(m map[string]string, k, v string) map[string]string {
	m[k] = v
	return m
}
