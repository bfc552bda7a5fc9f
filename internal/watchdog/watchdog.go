// Package watchdog provides stall detection for engine runs.
//
// A phase is considered stalled when the engine process is still alive but
// its log file has stopped growing for longer than the configured
// threshold. Stalls are reported, never acted on: long SCF cycles and slow
// shared filesystems produce false positives.
package watchdog

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// DefaultStallThreshold is the default duration of log silence after which
// a phase is reported stalled.
const DefaultStallThreshold = 10 * time.Minute

const pollInterval = 30 * time.Second

// ActivitySignals contains the signals used to decide whether a phase is
// stalled.
type ActivitySignals struct {
	// LogModTime is the modification time of the phase log file.
	// Nil if the file does not exist yet.
	LogModTime *time.Time

	// EngineRunning is true while the engine process is alive.
	EngineRunning bool
}

// StallResult contains the result of a stall check.
type StallResult struct {
	// IsStalled is true if the phase is considered stalled.
	IsStalled bool

	// StalledDuration is the duration since the log last grew.
	// Only meaningful when IsStalled is true.
	StalledDuration time.Duration
}

// CheckStall determines whether a phase is stalled.
//
// A phase is stalled when:
//   - the engine process is alive, and
//   - the log file exists and has not been modified within the threshold.
//
// A missing log file never counts as a stall; the engine may still be in
// startup before the first write.
func CheckStall(signals ActivitySignals, threshold time.Duration) StallResult {
	if !signals.EngineRunning {
		return StallResult{IsStalled: false}
	}
	if signals.LogModTime == nil {
		return StallResult{IsStalled: false}
	}

	stalledDuration := time.Since(*signals.LogModTime)
	if stalledDuration >= threshold {
		return StallResult{
			IsStalled:       true,
			StalledDuration: stalledDuration,
		}
	}
	return StallResult{IsStalled: false}
}

// CheckStallWithDefault calls CheckStall with the DefaultStallThreshold.
func CheckStallWithDefault(signals ActivitySignals) StallResult {
	return CheckStall(signals, DefaultStallThreshold)
}

// Watch polls the log file at logPath until ctx is cancelled, logging a
// warning each time the phase crosses from live to stalled. Returns when
// ctx is done. Intended to run as a goroutine alongside a launch.
func Watch(ctx context.Context, logPath string, threshold time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		signals := ActivitySignals{EngineRunning: true}
		if info, err := os.Stat(logPath); err == nil {
			mod := info.ModTime()
			signals.LogModTime = &mod
		}

		res := CheckStall(signals, threshold)
		switch {
		case res.IsStalled && !warned:
			logger.Warn("engine log has stopped growing",
				zap.String("log", logPath),
				zap.Duration("silent_for", res.StalledDuration))
			warned = true
		case !res.IsStalled:
			warned = false
		}
	}
}
