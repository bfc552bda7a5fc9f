// Package gate checks restart hand-off preconditions between phases.
package gate

import (
	"fmt"
	"os"

	"github.com/glasslab/cp2kit/internal/artifact"
	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/launch"
	"github.com/glasslab/cp2kit/internal/plan"
)

// Hand-off environment variables consumed by the engine wrapper decks.
const (
	EnvRestartFile = "CP2K_RESTART_FILE"
	EnvWfnRestart  = "CP2K_WFN_RESTART"
)

// handoffEnv maps artifact kinds to the environment variable carrying their
// concrete path into the next phase. Only stateful kinds hand off.
var handoffEnv = map[artifact.Kind]string{
	artifact.RestartState:      EnvRestartFile,
	artifact.WavefunctionState: EnvWfnRestart,
}

// Check verifies that every artifact the phase requires exists with size > 0
// and returns the hand-off environment mapping each required stateful
// artifact to its concrete path.
//
// For the first phase prior is nil and a non-empty requirement set is a
// plan construction error (plan.Validate reports it earlier). Check never
// spawns anything; a missing artifact must surface before the engine
// starts.
func Check(workDir string, ph plan.PhaseDescriptor, index int, prior *launch.Result) (map[string]string, error) {
	if prior == nil {
		if len(ph.Requires) > 0 {
			return nil, errors.NewWithDetails(
				errors.EInvalidPlan,
				"initial phase must not require predecessor artifacts",
				map[string]string{"project": ph.Spec.Project, "phase": fmt.Sprintf("%d", index)},
			)
		}
		return map[string]string{}, nil
	}

	env := map[string]string{}
	for _, kind := range ph.Requires {
		path := artifact.Path(workDir, ph.Spec.Project, kind, 0)
		if kind.Indexed() {
			path = artifact.Discover(workDir, ph.Spec.Project, kind)
		}

		info, err := os.Stat(path)
		if path == "" || err != nil || info.Size() == 0 {
			return nil, errors.NewWithDetails(
				errors.EMissingArtifact,
				fmt.Sprintf("phase %d requires %s from phase %d, but it is missing or empty", index, kind, index-1),
				map[string]string{
					"project":       ph.Spec.Project,
					"phase":         fmt.Sprintf("%d", index),
					"kind":          kind.String(),
					"expected_path": expectedPath(workDir, ph.Spec.Project, kind, path),
				},
			)
		}

		if envVar, ok := handoffEnv[kind]; ok {
			env[envVar] = path
		}
	}
	return env, nil
}

// expectedPath names the path we looked for, falling back to the canonical
// name when indexed discovery found nothing.
func expectedPath(workDir, project string, kind artifact.Kind, found string) string {
	if found != "" {
		return found
	}
	return artifact.Path(workDir, project, kind, 1)
}
