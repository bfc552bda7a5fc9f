// This file implements guarded removal of a project's engine outputs.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glasslab/cp2kit/internal/artifact"
)

// ErrOutsideWorkDir is returned when a computed artifact path escapes the
// work directory. Artifact names are pure functions of the project name, so
// this only fires on a hostile project string that slipped past validation.
type ErrOutsideWorkDir struct {
	Target  string
	WorkDir string
}

func (e *ErrOutsideWorkDir) Error() string {
	return fmt.Sprintf("artifact path %q is not under work dir %q", e.Target, e.WorkDir)
}

// ClearArtifacts removes every engine output file for the project inside
// workDir: the log, restart, wavefunction, and all trajectory indices.
// Only paths derived from the artifact namer are ever touched.
//
// Returns the list of removed paths. Missing files are not an error.
func ClearArtifacts(workDir, project string) ([]string, error) {
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}

	var targets []string
	for _, kind := range artifact.All() {
		if kind.Indexed() {
			// Trajectory indices are open-ended; glob for all of them.
			for {
				p := artifact.Discover(absWork, project, kind)
				if p == "" {
					break
				}
				targets = append(targets, p)
				if err := removeGuarded(p, absWork); err != nil {
					return nil, err
				}
			}
			continue
		}
		p := artifact.Path(absWork, project, kind, 0)
		if _, serr := os.Stat(p); serr != nil {
			continue
		}
		targets = append(targets, p)
		if err := removeGuarded(p, absWork); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

// removeGuarded removes target only if it resolves inside workDir.
func removeGuarded(target, workDir string) error {
	cleanTarget := filepath.Clean(target)
	if !isUnder(cleanTarget, workDir) {
		return &ErrOutsideWorkDir{Target: target, WorkDir: workDir}
	}
	return os.Remove(cleanTarget)
}

// isUnder returns true if target is a proper subpath of dir.
func isUnder(target, dir string) bool {
	withSep := dir
	if !strings.HasSuffix(withSep, string(filepath.Separator)) {
		withSep = dir + string(filepath.Separator)
	}
	return strings.HasPrefix(target, withSep) && len(target) > len(dir)
}

// AnyArtifactsPresent reports whether any of the given artifact kinds
// already exist (non-empty or empty alike) for the project in workDir.
// The launcher uses this to fail fast on stale outputs.
func AnyArtifactsPresent(workDir, project string, kinds []artifact.Kind) (string, bool) {
	for _, kind := range kinds {
		if kind == artifact.Log {
			// The launcher truncates the log itself; a leftover log is not
			// a restart-discovery hazard.
			continue
		}
		if p := artifact.Discover(workDir, project, kind); p != "" {
			return p, true
		}
	}
	return "", false
}
