package evaluate

import (
	"fmt"
	"math"

	"github.com/glasslab/cp2kit/internal/config"
)

// Metrics are the aggregate statistics computed from a Series. A nil
// pointer means the underlying stream was absent from the log.
type Metrics struct {
	SCFCyclesMean   *float64 `json:"scf_cycles_mean"`
	TemperatureMean *float64 `json:"temperature_mean"`
	TemperatureStd  *float64 `json:"temperature_std"`
	EnergyMean      *float64 `json:"energy_mean"`
	Steps           int      `json:"steps"`
}

// Report is the outcome of one evaluation. Deterministic for a given
// series and thresholds.
type Report struct {
	Project    string            `json:"project"`
	Pass       bool              `json:"pass"`
	Metrics    Metrics           `json:"metrics"`
	Thresholds config.Thresholds `json:"thresholds"`

	// Reasons lists every failed predicate in evaluation order. Empty on
	// pass.
	Reasons []string `json:"reasons,omitempty"`
}

// Evaluate scores a parsed series. Every predicate is evaluated even after
// one fails, so the report names all violations at once. A predicate whose
// metric is absent from the log is skipped rather than failed; the
// zero-steps rule fails the run before any threshold is consulted.
func Evaluate(project string, s Series, th config.Thresholds) Report {
	r := Report{
		Project:    project,
		Pass:       true,
		Thresholds: th,
		Metrics: Metrics{
			SCFCyclesMean:   meanInts(s.SCFCycles),
			TemperatureMean: mean(s.Temperatures),
			TemperatureStd:  stddev(s.Temperatures),
			EnergyMean:      mean(s.Energies),
			Steps:           s.Steps(),
		},
	}

	if s.Steps() == 0 {
		r.fail("no steps completed")
	}

	if m := r.Metrics.SCFCyclesMean; m != nil && *m >= th.MaxSCF {
		r.fail(fmt.Sprintf("mean SCF cycles %.1f not below limit %.1f", *m, th.MaxSCF))
	}
	if m := r.Metrics.TemperatureMean; m != nil {
		if dev := math.Abs(*m - th.TargetTempK); dev > th.TempToleranceK {
			r.fail(fmt.Sprintf("mean temperature %.1f K deviates %.1f K from target %.1f K (tolerance %.1f K)",
				*m, dev, th.TargetTempK, th.TempToleranceK))
		}
	}
	if sd := r.Metrics.TemperatureStd; sd != nil && *sd > th.MaxTempStdK {
		r.fail(fmt.Sprintf("temperature standard deviation %.1f K exceeds limit %.1f K", *sd, th.MaxTempStdK))
	}

	return r
}

func (r *Report) fail(reason string) {
	r.Pass = false
	r.Reasons = append(r.Reasons, reason)
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(len(vals))
	return &m
}

func meanInts(vals []int) *float64 {
	if len(vals) == 0 {
		return nil
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	m := float64(sum) / float64(len(vals))
	return &m
}

// stddev is the population standard deviation, matching the original
// kit's statistics. Nil for fewer than two samples.
func stddev(vals []float64) *float64 {
	if len(vals) < 2 {
		return nil
	}
	m := *mean(vals)
	sum := 0.0
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	sd := math.Sqrt(sum / float64(len(vals)))
	return &sd
}
