// Package artifact derives the output filenames CP2K produces for a project.
//
// The engine discovers restart files by name, so these conventions must be
// reproduced bit-exact. Every component that touches run outputs (gate,
// launcher, evaluator, dashboard) goes through this package rather than
// composing paths itself.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Kind identifies one class of engine output file.
type Kind int

const (
	// Log is the engine's main output log, <project>.out.
	Log Kind = iota

	// RestartState is the full simulation restart file, <project>-1.restart.
	RestartState

	// WavefunctionState is the SCF wavefunction restart, <project>-RESTART.wfn.
	WavefunctionState

	// PositionTrajectory is the position trajectory, <project>-pos-<index>.xyz.
	PositionTrajectory

	// VelocityTrajectory is the velocity trajectory, <project>-vel-<index>.xyz.
	VelocityTrajectory
)

// kindNames maps kinds to their stable string form used in errors and events.
var kindNames = map[Kind]string{
	Log:                "log",
	RestartState:       "restart",
	WavefunctionState:  "wavefunction",
	PositionTrajectory: "pos_trajectory",
	VelocityTrajectory: "vel_trajectory",
}

// String returns the stable name for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Indexed reports whether the kind carries a running index in its filename.
func (k Kind) Indexed() bool {
	return k == PositionTrajectory || k == VelocityTrajectory
}

// Name returns the engine filename for the given project, kind and index.
// Pure function: identical inputs always yield identical names. The index is
// ignored for non-indexed kinds.
func Name(project string, kind Kind, index int) string {
	switch kind {
	case Log:
		return project + ".out"
	case RestartState:
		return project + "-1.restart"
	case WavefunctionState:
		return project + "-RESTART.wfn"
	case PositionTrajectory:
		return fmt.Sprintf("%s-pos-%d.xyz", project, index)
	case VelocityTrajectory:
		return fmt.Sprintf("%s-vel-%d.xyz", project, index)
	}
	return ""
}

// Path returns the full path for the artifact inside dir.
func Path(dir, project string, kind Kind, index int) string {
	return filepath.Join(dir, Name(project, kind, index))
}

// Discover locates an indexed artifact with an unknown index by globbing.
// Returns the lexically first match, or "" when nothing matches. Non-indexed
// kinds resolve to their fixed path when the file exists.
//
// CP2K restarts append to trajectory files with a fresh index, so the first
// match is the one the evaluator wants.
func Discover(dir, project string, kind Kind) string {
	if !kind.Indexed() {
		p := Path(dir, project, kind, 0)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		return ""
	}

	var pattern string
	switch kind {
	case PositionTrajectory:
		pattern = filepath.Join(dir, project+"-pos-*.xyz")
	case VelocityTrajectory:
		pattern = filepath.Join(dir, project+"-vel-*.xyz")
	}
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return matches[0]
}

// All returns every kind, in declaration order.
func All() []Kind {
	return []Kind{Log, RestartState, WavefunctionState, PositionTrajectory, VelocityTrajectory}
}
