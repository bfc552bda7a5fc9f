// Package report persists evaluation reports as JSON records.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/glasslab/cp2kit/internal/errors"
	"github.com/glasslab/cp2kit/internal/evaluate"
	"github.com/glasslab/cp2kit/internal/fs"
)

const recordSchemaVersion = "1.0"

// Record is one persisted evaluation outcome.
type Record struct {
	SchemaVersion string          `json:"schema_version"`
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	LogPath       string          `json:"log_path"`
	Report        evaluate.Report `json:"report"`
}

// Store writes records under a reports directory. The directory is created
// on first write.
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// PathFor returns the record path for a project. One record per project;
// re-evaluation overwrites it.
func (s *Store) PathFor(project string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_summary.json", project))
}

// Write persists the report atomically and returns the record path.
// Returns E_PERSIST_FAILED when the reports directory is not writable.
func (s *Store) Write(r evaluate.Report, logPath string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", errors.WrapWithDetails(
			errors.EPersistFailed, "creating reports directory", err,
			map[string]string{"project": r.Project, "report": s.Dir})
	}

	rec := Record{
		SchemaVersion: recordSchemaVersion,
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		LogPath:       logPath,
		Report:        r,
	}
	path := s.PathFor(r.Project)
	if err := fs.WriteJSONAtomic(path, rec, 0o644); err != nil {
		return "", errors.WrapWithDetails(
			errors.EPersistFailed, "writing report record", err,
			map[string]string{"project": r.Project, "report": path})
	}
	return path, nil
}

// Load reads a project's record back. Missing record returns os.ErrNotExist
// via the wrapped cause.
func (s *Store) Load(project string) (Record, error) {
	data, err := os.ReadFile(s.PathFor(project))
	if err != nil {
		return Record{}, errors.WrapWithDetails(
			errors.EPersistFailed, "reading report record", err,
			map[string]string{"project": project, "report": s.PathFor(project)})
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, errors.WrapWithDetails(
			errors.EPersistFailed, "decoding report record", err,
			map[string]string{"project": project, "report": s.PathFor(project)})
	}
	return rec, nil
}
