// Package dashboard renders live feedback for an active engine run.
//
// The engine writes MD step summaries as "MD|" blocks bracketed by
// "MD| ***" separator lines. The dashboard parses those incrementally from
// the tailer's line stream; the evaluator re-parses the finished log
// independently, so nothing here is authoritative.
package dashboard

import (
	"strconv"
	"strings"
)

// Block holds the metrics of one completed MD step block.
type Block struct {
	Step        int     `json:"step"`
	TimeFS      float64 `json:"time_fs"`
	Temperature float64 `json:"temperature"`
	Potential   float64 `json:"potential"`
	Kinetic     float64 `json:"kinetic"`
	Conserved   float64 `json:"conserved"`
	CPUPerStep  float64 `json:"cpu_time_per_step"`
}

// blockParser accumulates MD| lines into completed blocks.
type blockParser struct {
	open    bool
	current Block
	hasStep bool
}

// feed consumes one log line and returns a completed block when the line
// closes one.
func (p *blockParser) feed(line string) (Block, bool) {
	text := strings.TrimRight(line, "\n")
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "MD|") {
		return Block{}, false
	}

	if strings.HasPrefix(trimmed, "MD| ***") {
		if p.open {
			p.open = false
			if p.hasStep {
				done := p.current
				p.current = Block{}
				p.hasStep = false
				return done, true
			}
			p.current = Block{}
			return Block{}, false
		}
		p.open = true
		p.current = Block{}
		p.hasStep = false
		return Block{}, false
	}

	if !p.open {
		return Block{}, false
	}

	lower := strings.ToLower(trimmed)
	nums := floatTokens(trimmed)
	switch {
	case strings.Contains(lower, "step number"):
		if len(nums) > 0 {
			p.current.Step = int(nums[len(nums)-1] + 0.5)
			p.hasStep = true
		}
	case strings.Contains(lower, "time [fs]"):
		if len(nums) > 0 {
			p.current.TimeFS = nums[0]
		}
	case strings.Contains(lower, "conserved quantity"):
		if len(nums) > 0 {
			p.current.Conserved = nums[0]
		}
	case strings.Contains(lower, "cpu time per md step"):
		if len(nums) > 0 {
			p.current.CPUPerStep = nums[0]
		}
	case strings.Contains(lower, "potential energy"):
		if len(nums) > 0 {
			p.current.Potential = nums[0]
		}
	case strings.Contains(lower, "kinetic energy"):
		if len(nums) > 0 {
			p.current.Kinetic = nums[0]
		}
	case strings.Contains(lower, "temperature"):
		if len(nums) > 0 {
			p.current.Temperature = nums[0]
		}
	}
	return Block{}, false
}

// floatTokens extracts every numeric token from a line. CP2K prints
// Fortran-style exponents ("0.123D+01"), normalized here to "E".
func floatTokens(line string) []float64 {
	var out []float64
	for _, tok := range strings.Fields(line) {
		norm := strings.ReplaceAll(tok, "D", "E")
		if v, err := strconv.ParseFloat(norm, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}
