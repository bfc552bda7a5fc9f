// Package plan defines run specifications and multi-phase run plans.
package plan

import (
	"fmt"
	"regexp"

	"github.com/glasslab/cp2kit/internal/artifact"
	"github.com/glasslab/cp2kit/internal/errors"
)

// Profile selects a named threshold/configuration preset.
type Profile string

const (
	// ProfileCompat validates strictly against the reference engine.
	ProfileCompat Profile = "compat"

	// ProfileFast trades strict validation for quicker iteration.
	ProfileFast Profile = "fast"
)

// ParseProfile validates a profile flag value.
func ParseProfile(s string) (Profile, error) {
	switch Profile(s) {
	case ProfileCompat, ProfileFast:
		return Profile(s), nil
	}
	return "", errors.New(errors.EUsage, fmt.Sprintf("unknown profile %q (want compat or fast)", s))
}

// Mode selects the simulation type.
type Mode string

const (
	// ModeSinglePoint runs one single-point energy calculation.
	ModeSinglePoint Mode = "sp"

	// ModeMolecularDynamics runs a molecular dynamics trajectory.
	ModeMolecularDynamics Mode = "md"
)

// ParseMode validates a mode flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSinglePoint, ModeMolecularDynamics:
		return Mode(s), nil
	}
	return "", errors.New(errors.EUsage, fmt.Sprintf("unknown mode %q (want sp or md)", s))
}

// Project name validation constants.
const (
	ProjectMinLen = 2
	ProjectMaxLen = 64
)

// projectPattern validates project names: starts with a letter, then
// letters, digits, hyphens or underscores. The name becomes a filename
// prefix, so anything looser risks colliding with the engine's own
// output naming.
var projectPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateProject checks a project name. Returns nil if valid.
func ValidateProject(name string) error {
	if len(name) < ProjectMinLen || len(name) > ProjectMaxLen {
		return errors.NewWithDetails(
			errors.EUsage,
			fmt.Sprintf("project name must be %d-%d characters", ProjectMinLen, ProjectMaxLen),
			map[string]string{"project": name},
		)
	}
	if !projectPattern.MatchString(name) {
		return errors.NewWithDetails(
			errors.EUsage,
			"project name must start with a letter and contain only letters, digits, hyphens, underscores",
			map[string]string{"project": name},
		)
	}
	return nil
}

// RunSpec describes one engine invocation. Immutable once a phase starts:
// the orchestrator copies ExtraEnv before mutating its own view.
type RunSpec struct {
	// InputDeck is the path to the engine input file, passed through
	// byte-identical.
	InputDeck string

	// Project is the engine PROJECT name; all artifact names derive from it.
	Project string

	// Profile is the configuration preset (compat or fast).
	Profile Profile

	// Mode is the simulation type (sp or md).
	Mode Mode

	// ExtraEnv holds environment overrides for this phase, including the
	// restart hand-off variables populated by the gate.
	ExtraEnv map[string]string
}

// CloneEnv returns a copy of ExtraEnv; never nil.
func (s RunSpec) CloneEnv() map[string]string {
	cp := make(map[string]string, len(s.ExtraEnv))
	for k, v := range s.ExtraEnv {
		cp[k] = v
	}
	return cp
}

// PhaseDescriptor binds a RunSpec to its hand-off contract.
type PhaseDescriptor struct {
	Spec RunSpec

	// Requires lists artifact kinds that must exist (non-empty) from the
	// previous phase before this phase may start.
	Requires []artifact.Kind

	// Produces lists artifact kinds this phase is expected to write.
	Produces []artifact.Kind
}

// RunPlan is an ordered sequence of phases. Phases run strictly
// sequentially; phase i consumes artifacts of phase i-1.
type RunPlan struct {
	Project string
	Phases  []PhaseDescriptor
}

// Validate checks the plan's structural invariants. Called at plan
// construction time so configuration errors surface before any process is
// spawned.
func (p RunPlan) Validate() error {
	if len(p.Phases) == 0 {
		return errors.New(errors.EInvalidPlan, "run plan has no phases")
	}
	if err := ValidateProject(p.Project); err != nil {
		return err
	}

	for i, phase := range p.Phases {
		if phase.Spec.InputDeck == "" {
			return errors.NewWithDetails(
				errors.EInvalidPlan,
				fmt.Sprintf("phase %d has no input deck", i),
				map[string]string{"project": p.Project, "phase": fmt.Sprintf("%d", i)},
			)
		}
		if phase.Spec.Project != p.Project {
			return errors.NewWithDetails(
				errors.EInvalidPlan,
				fmt.Sprintf("phase %d project %q does not match plan project %q", i, phase.Spec.Project, p.Project),
				map[string]string{"project": p.Project, "phase": fmt.Sprintf("%d", i)},
			)
		}

		if i == 0 {
			if len(phase.Requires) > 0 {
				return errors.NewWithDetails(
					errors.EInvalidPlan,
					"initial phase must not require predecessor artifacts",
					map[string]string{"project": p.Project, "phase": "0"},
				)
			}
			continue
		}

		produced := make(map[artifact.Kind]bool)
		for _, k := range p.Phases[i-1].Produces {
			produced[k] = true
		}
		for _, k := range phase.Requires {
			if !produced[k] {
				return errors.NewWithDetails(
					errors.EInvalidPlan,
					fmt.Sprintf("phase %d requires %s which phase %d never produces", i, k, i-1),
					map[string]string{"project": p.Project, "phase": fmt.Sprintf("%d", i), "kind": k.String()},
				)
			}
		}
	}
	return nil
}

// ChainPlan builds the standard restart chain: one phase per input deck,
// each later phase resuming from the previous phase's restart and
// wavefunction state. Returns a validated plan.
func ChainPlan(project string, decks []string, mode Mode, profile Profile) (RunPlan, error) {
	p := RunPlan{Project: project}
	for i, deck := range decks {
		phase := PhaseDescriptor{
			Spec: RunSpec{
				InputDeck: deck,
				Project:   project,
				Profile:   profile,
				Mode:      mode,
				ExtraEnv:  map[string]string{},
			},
			Produces: producedKinds(mode),
		}
		if i > 0 {
			// MD phases resume from the full restart file; single-point
			// chains hand off only the converged wavefunction.
			if mode == ModeMolecularDynamics {
				phase.Requires = []artifact.Kind{artifact.RestartState, artifact.WavefunctionState}
			} else {
				phase.Requires = []artifact.Kind{artifact.WavefunctionState}
			}
		}
		p.Phases = append(p.Phases, phase)
	}
	if err := p.Validate(); err != nil {
		return RunPlan{}, err
	}
	return p, nil
}

// producedKinds returns the artifact kinds a phase writes for the given mode.
// Single-point runs produce no trajectory or MD restart files.
func producedKinds(mode Mode) []artifact.Kind {
	if mode == ModeSinglePoint {
		return []artifact.Kind{artifact.Log, artifact.WavefunctionState}
	}
	return []artifact.Kind{
		artifact.Log,
		artifact.RestartState,
		artifact.WavefunctionState,
		artifact.PositionTrajectory,
		artifact.VelocityTrajectory,
	}
}
