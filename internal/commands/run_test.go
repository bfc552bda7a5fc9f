package commands

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/errors"
)

// fakeEngine writes an executable script that stands in for cp2k.
func fakeEngine(t *testing.T, dir, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine scripts require a POSIX shell")
	}
	path := filepath.Join(dir, "cp2k-fake")
	content := "#!/bin/sh\n" + script
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func writeDeck(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("&GLOBAL\n&END GLOBAL\n"), 0o644))
	return path
}

// mdEngineScript emits a minimal MD log and the artifacts of one phase.
const mdEngineScript = `
echo " GLOBAL| Run type MD"
echo " *** SCF run converged in     6 steps ***"
echo " MD| Temperature [K]                         300.000000"
printf 'state' > water-1.restart
printf 'wfn' > water-RESTART.wfn
printf 'pos' > water-pos-1.xyz
printf 'vel' > water-vel-1.xyz
exit 0
`

func TestRunUsageErrors(t *testing.T) {
	logger := zap.NewNop()
	dir := t.TempDir()
	deck := writeDeck(t, dir, "md.inp")

	tests := []struct {
		name string
		opts RunOpts
		code errors.Code
	}{
		{"no decks", RunOpts{Project: "water", Mode: "md", Profile: "compat"}, errors.EUsage},
		{"no project", RunOpts{Decks: []string{deck}, Mode: "md", Profile: "compat"}, errors.EUsage},
		{"bad mode", RunOpts{Decks: []string{deck}, Project: "water", Mode: "nvt", Profile: "compat"}, errors.EUsage},
		{"bad profile", RunOpts{Decks: []string{deck}, Project: "water", Mode: "md", Profile: "turbo"}, errors.EUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Run(context.Background(), dir, tt.opts, logger, os.Stdout, os.Stderr)
			require.Error(t, err)
			require.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestRunEngineNotFound(t *testing.T) {
	dir := t.TempDir()
	deck := writeDeck(t, dir, "md.inp")
	t.Setenv("PATH", dir)

	var out, errOut strings.Builder
	opts := RunOpts{Decks: []string{deck}, Project: "water", Mode: "md", Profile: "compat", NoDashboard: true}
	err := Run(context.Background(), dir, opts, zap.NewNop(), &out, &errOut)
	require.Error(t, err)
	require.Equal(t, errors.EEngineNotFound, errors.GetCode(err))
}

func TestRunSinglePhaseSuccess(t *testing.T) {
	dir := t.TempDir()
	engine := fakeEngine(t, dir, mdEngineScript)
	deck := writeDeck(t, dir, "md.inp")

	var out, errOut strings.Builder
	opts := RunOpts{
		Decks:       []string{deck},
		Project:     "water",
		Mode:        "md",
		Profile:     "compat",
		Engine:      engine,
		WorkDir:     dir,
		NoDashboard: true,
	}
	err := Run(context.Background(), dir, opts, zap.NewNop(), &out, &errOut)
	require.NoError(t, err)

	require.Contains(t, out.String(), "project: water\n")
	require.Contains(t, out.String(), "phases_completed: 1\n")
	require.FileExists(t, filepath.Join(dir, "water.out"))
	require.FileExists(t, filepath.Join(dir, "water-1.restart"))
	require.FileExists(t, filepath.Join(dir, "runs", "events.jsonl"))
}

func TestRunRefusesStaleWorkDir(t *testing.T) {
	dir := t.TempDir()
	engine := fakeEngine(t, dir, mdEngineScript)
	deck := writeDeck(t, dir, "md.inp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "water-1.restart"), []byte("old"), 0o644))

	var out, errOut strings.Builder
	opts := RunOpts{
		Decks: []string{deck}, Project: "water", Mode: "md", Profile: "compat",
		Engine: engine, WorkDir: dir, NoDashboard: true,
	}
	err := Run(context.Background(), dir, opts, zap.NewNop(), &out, &errOut)
	require.Error(t, err)
	require.Equal(t, errors.EStaleArtifacts, errors.GetCode(err))
}

func TestRunCleanClearsPriorOutputs(t *testing.T) {
	dir := t.TempDir()
	engine := fakeEngine(t, dir, mdEngineScript)
	deck := writeDeck(t, dir, "md.inp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "water-1.restart"), []byte("old"), 0o644))

	var out, errOut strings.Builder
	opts := RunOpts{
		Decks: []string{deck}, Project: "water", Mode: "md", Profile: "compat",
		Engine: engine, WorkDir: dir, NoDashboard: true, Clean: true,
	}
	err := Run(context.Background(), dir, opts, zap.NewNop(), &out, &errOut)
	require.NoError(t, err)
	require.Contains(t, errOut.String(), "removed: ")
}

func TestRunFailingPhaseNamedOnStderr(t *testing.T) {
	dir := t.TempDir()
	engine := fakeEngine(t, dir, "echo ' GLOBAL| boot'\nexit 7\n")
	deck := writeDeck(t, dir, "md.inp")

	var out, errOut strings.Builder
	opts := RunOpts{
		Decks: []string{deck}, Project: "water", Mode: "md", Profile: "compat",
		Engine: engine, WorkDir: dir, NoDashboard: true,
	}
	err := Run(context.Background(), dir, opts, zap.NewNop(), &out, &errOut)
	require.Error(t, err)
	require.Equal(t, errors.EEngineFailed, errors.GetCode(err))
	require.Contains(t, errOut.String(), "phase 0 failed")
	require.Contains(t, errOut.String(), "exit code 7")
}

func TestRunDashboardWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	engine := fakeEngine(t, dir, mdEngineScript)
	deck := writeDeck(t, dir, "md.inp")

	var out, errOut strings.Builder
	opts := RunOpts{
		Decks: []string{deck}, Project: "water", Mode: "md", Profile: "compat",
		Engine: engine, WorkDir: dir,
	}
	err := Run(context.Background(), dir, opts, zap.NewNop(), &out, &errOut)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "runs", "state.json"))
}
