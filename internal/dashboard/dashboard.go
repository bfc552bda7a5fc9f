package dashboard

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasslab/cp2kit/internal/fs"
)

// StateFileName is the on-disk snapshot a monitoring session can poll.
const StateFileName = "state.json"

// snapshotInterval throttles state file rewrites.
const snapshotInterval = 500 * time.Millisecond

const sparkWidth = 40

// Snapshot is the persisted view of an in-flight run. It is rewritten
// atomically so a concurrent reader never sees a torn file.
type Snapshot struct {
	SchemaVersion int       `json:"schema_version"`
	Project       string    `json:"project"`
	Phase         int       `json:"phase"`
	UpdatedAt     time.Time `json:"updated_at"`
	Steps         int       `json:"steps"`
	LastBlock     *Block    `json:"last_block,omitempty"`
	TempSpark     string    `json:"temp_sparkline,omitempty"`
	EnergySpark   string    `json:"energy_sparkline,omitempty"`
}

// Dashboard consumes tailed log lines, echoes them, and maintains a
// rolling metrics snapshot. Safe for a single producer; Line and SetPhase
// may be called from different goroutines.
type Dashboard struct {
	out      io.Writer
	stateDir string
	project  string
	logger   *zap.Logger

	mu        sync.Mutex
	phase     int
	parser    blockParser
	steps     int
	last      *Block
	temps     []float64
	potential []float64
	lastWrite time.Time
}

// New builds a dashboard writing echoed lines to out and snapshots under
// stateDir. A nil logger disables diagnostics.
func New(out io.Writer, stateDir, project string, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{out: out, stateDir: stateDir, project: project, logger: logger}
}

// SetPhase records the phase index stamped into snapshots.
func (d *Dashboard) SetPhase(index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phase = index
}

// Line consumes one raw log line.
func (d *Dashboard) Line(line string) {
	if d.out != nil {
		fmt.Fprintln(d.out, line)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	block, done := d.parser.feed(line)
	if done {
		d.steps++
		b := block
		d.last = &b
		d.temps = append(d.temps, block.Temperature)
		d.potential = append(d.potential, block.Potential)
		if len(d.temps) > sparkWidth {
			d.temps = d.temps[1:]
			d.potential = d.potential[1:]
		}
	}
	if done || time.Since(d.lastWrite) >= snapshotInterval {
		d.writeSnapshotLocked()
	}
}

// Flush forces a final snapshot write.
func (d *Dashboard) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeSnapshotLocked()
}

func (d *Dashboard) writeSnapshotLocked() {
	if d.stateDir == "" {
		return
	}
	snap := Snapshot{
		SchemaVersion: 1,
		Project:       d.project,
		Phase:         d.phase,
		UpdatedAt:     time.Now().UTC(),
		Steps:         d.steps,
		LastBlock:     d.last,
		TempSpark:     Sparkline(d.temps, sparkWidth),
		EnergySpark:   Sparkline(d.potential, sparkWidth),
	}
	path := filepath.Join(d.stateDir, StateFileName)
	if err := fs.WriteJSONAtomic(path, snap, 0o644); err != nil {
		d.logger.Debug("snapshot write failed", zap.String("path", path), zap.Error(err))
		return
	}
	d.lastWrite = time.Now()
}

// Discard is a line sink that drops everything. Used when the live view
// is disabled.
type Discard struct{}

func (Discard) Line(string)  {}
func (Discard) SetPhase(int) {}
func (Discard) Flush()       {}
