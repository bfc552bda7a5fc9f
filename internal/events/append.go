// Package events provides per-project run event logging for cp2kit.
// Events are stored in append-only JSONL files.
package events

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Event represents a single event in events.jsonl.
// This is the public contract for the events file format.
type Event struct {
	SchemaVersion string         `json:"schema_version"`
	Timestamp     string         `json:"timestamp"` // RFC3339
	Project       string         `json:"project"`
	Event         string         `json:"event"` // "phase_started", "phase_finished", "run_cancelled", "eval_finished"
	Data          map[string]any `json:"data,omitempty"`
}

// AppendEvent appends a single event to the events.jsonl file.
// The file is created lazily if it doesn't exist.
//
// Best-effort: errors are returned but callers should typically ignore them
// and continue with the main operation.
func AppendEvent(path string, e Event) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = f.Write(data)
	return err
}

// PhaseStartedData returns the data map for a phase_started event.
func PhaseStartedData(phase int, deck, logPath string) map[string]any {
	return map[string]any{
		"phase":    phase,
		"deck":     deck,
		"log_path": logPath,
	}
}

// PhaseFinishedData returns the data map for a phase_finished event.
func PhaseFinishedData(phase int, exitCode int, durationMS int64, cancelled bool, artifacts []string) map[string]any {
	data := map[string]any{
		"phase":       phase,
		"exit_code":   exitCode,
		"duration_ms": durationMS,
	}
	if cancelled {
		data["cancelled"] = true
	}
	if len(artifacts) > 0 {
		data["artifacts"] = artifacts
	}
	return data
}

// GateFailedData returns the data map for a gate_failed event.
func GateFailedData(phase int, kind, expectedPath string) map[string]any {
	return map[string]any{
		"phase":         phase,
		"kind":          kind,
		"expected_path": expectedPath,
	}
}

// RunCancelledData returns the data map for a run_cancelled event.
func RunCancelledData(phase int) map[string]any {
	return map[string]any{
		"phase": phase,
	}
}

// EvalFinishedData returns the data map for an eval_finished event.
func EvalFinishedData(pass bool, reportPath string, reasons []string) map[string]any {
	data := map[string]any{
		"pass":        pass,
		"report_path": reportPath,
	}
	if len(reasons) > 0 {
		data["reasons"] = reasons
	}
	return data
}
