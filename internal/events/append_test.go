package events

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAppendEvent_CreatesFileAndAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs", "events.jsonl")

	first := Event{
		SchemaVersion: "1.0",
		Timestamp:     "2026-08-29T12:00:00Z",
		Project:       "as2se3",
		Event:         "phase_started",
		Data:          PhaseStartedData(0, "inputs/md.inp", "as2se3.out"),
	}
	second := Event{
		SchemaVersion: "1.0",
		Timestamp:     "2026-08-29T12:05:00Z",
		Project:       "as2se3",
		Event:         "phase_finished",
		Data:          PhaseFinishedData(0, 0, 300000, false, []string{"as2se3-1.restart"}),
	}

	if err := AppendEvent(path, first); err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	if err := AppendEvent(path, second); err != nil {
		t.Fatalf("second append failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, e)
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got %d", len(lines))
	}
	if lines[0].Event != "phase_started" || lines[1].Event != "phase_finished" {
		t.Errorf("events out of order: %v, %v", lines[0].Event, lines[1].Event)
	}
	if lines[1].Data["exit_code"] != float64(0) {
		t.Errorf("exit_code = %v, want 0", lines[1].Data["exit_code"])
	}
}

func TestPhaseFinishedData_OmitsFalseCancelled(t *testing.T) {
	data := PhaseFinishedData(1, 2, 1000, false, nil)
	if _, ok := data["cancelled"]; ok {
		t.Error("cancelled=false must be omitted")
	}
	data = PhaseFinishedData(1, -1, 1000, true, nil)
	if data["cancelled"] != true {
		t.Error("cancelled=true must be present")
	}
}
