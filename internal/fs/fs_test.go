package fs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/glasslab/cp2kit/internal/artifact"
)

func TestWriteJSONAtomic_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "record.json")

	in := map[string]any{"project": "as2se3", "pass": true}
	if err := WriteJSONAtomic(path, in, 0o644); err != nil {
		t.Fatalf("WriteJSONAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out["project"] != "as2se3" || out["pass"] != true {
		t.Errorf("round trip mismatch: %v", out)
	}

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the record file, found %d entries", len(entries))
	}
}

func TestClearArtifacts(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"proj.out",
		"proj-1.restart",
		"proj-RESTART.wfn",
		"proj-pos-1.xyz",
		"proj-pos-2.xyz",
		"proj-vel-1.xyz",
		"other.out", // different project, must survive
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := ClearArtifacts(dir, "proj")
	if err != nil {
		t.Fatalf("ClearArtifacts failed: %v", err)
	}
	if len(removed) != 6 {
		t.Errorf("removed %d files, want 6: %v", len(removed), removed)
	}

	if _, err := os.Stat(filepath.Join(dir, "other.out")); err != nil {
		t.Error("unrelated project file was removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "proj-1.restart")); !os.IsNotExist(err) {
		t.Error("restart file still present after clear")
	}
}

func TestClearArtifacts_NothingToRemove(t *testing.T) {
	removed, err := ClearArtifacts(t.TempDir(), "proj")
	if err != nil {
		t.Fatalf("ClearArtifacts failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("expected no removals, got %v", removed)
	}
}

func TestAnyArtifactsPresent(t *testing.T) {
	dir := t.TempDir()

	kinds := []artifact.Kind{artifact.Log, artifact.RestartState, artifact.PositionTrajectory}

	if p, present := AnyArtifactsPresent(dir, "proj", kinds); present {
		t.Errorf("empty dir reported stale artifact %q", p)
	}

	// A leftover log alone is not stale: the launcher truncates it.
	if err := os.WriteFile(filepath.Join(dir, "proj.out"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if p, present := AnyArtifactsPresent(dir, "proj", kinds); present {
		t.Errorf("log-only dir reported stale artifact %q", p)
	}

	if err := os.WriteFile(filepath.Join(dir, "proj-pos-1.xyz"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, present := AnyArtifactsPresent(dir, "proj", kinds)
	if !present {
		t.Fatal("expected stale trajectory to be detected")
	}
	if filepath.Base(p) != "proj-pos-1.xyz" {
		t.Errorf("stale path = %q", p)
	}
}
