// Package evaluate parses a finished engine log and scores it against the
// configured thresholds. Parsing works on the raw log bytes, never on the
// dashboard's live snapshot, so evaluation is reproducible after the fact.
package evaluate

import (
	"bufio"
	"os"
	"regexp"
	"strconv"

	"github.com/glasslab/cp2kit/internal/errors"
)

// Series holds the raw metric streams extracted from one log, in log
// order.
type Series struct {
	Energies     []float64
	Temperatures []float64
	SCFCycles    []int
}

// Empty reports whether no metrics of any kind were found.
func (s Series) Empty() bool {
	return len(s.Energies) == 0 && len(s.Temperatures) == 0 && len(s.SCFCycles) == 0
}

// Steps is the number of completed engine steps. MD logs report one
// temperature per step; single-point logs have no temperature stream, so
// their SCF convergences count instead.
func (s Series) Steps() int {
	if len(s.Temperatures) >= len(s.SCFCycles) {
		return len(s.Temperatures)
	}
	return len(s.SCFCycles)
}

// The engine prints the same quantity in several formats depending on
// version and print level, so every metric matches a set of patterns.
var (
	energyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`ENERGY\| Total FORCE_EVAL \( QS \) energy =\s+(-?\d+\.\d+)`),
		regexp.MustCompile(`Total FORCE_EVAL \( QS \) energy =\s+(-?\d+\.\d+)`),
		regexp.MustCompile(`Total energy:\s+(-?\d+\.\d+)`),
	}
	tempPatterns = []*regexp.Regexp{
		regexp.MustCompile(`MD\| Temperature \[K\]\s+(\d+\.\d+)`),
		regexp.MustCompile(`TEMPERATURE \[K\]\s+(\d+\.\d+)`),
		regexp.MustCompile(`Temperature:\s+(\d+\.\d+)`),
	}
	scfPatterns = []*regexp.Regexp{
		regexp.MustCompile(`SCF run converged in\s+(\d+)\s+steps`),
		regexp.MustCompile(`SCF\s+(\d+)\s+.*Convergence`),
	}
)

// Parse extracts metric series from the log at logPath. Returns E_PARSE
// when the log is absent, empty, or contains none of the known markers. A
// log that parsed but completed zero steps is not a parse error; the
// evaluator fails it on its own terms.
func Parse(logPath string) (Series, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return Series{}, errors.WrapWithDetails(
			errors.EParse, "engine log is not readable", err,
			map[string]string{"log": logPath})
	}
	defer f.Close()

	var s Series
	sawAny := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line != "" {
			sawAny = true
		}
		if v, ok := firstFloat(energyPatterns, line); ok {
			s.Energies = append(s.Energies, v)
		}
		if v, ok := firstFloat(tempPatterns, line); ok {
			s.Temperatures = append(s.Temperatures, v)
		}
		if v, ok := firstFloat(scfPatterns, line); ok {
			s.SCFCycles = append(s.SCFCycles, int(v))
		}
	}
	if err := sc.Err(); err != nil {
		return Series{}, errors.WrapWithDetails(
			errors.EParse, "reading engine log", err,
			map[string]string{"log": logPath})
	}

	if !sawAny {
		return Series{}, errors.NewWithDetails(
			errors.EParse, "engine log is empty",
			map[string]string{"log": logPath})
	}
	if s.Empty() {
		return Series{}, errors.NewWithDetails(
			errors.EParse, "engine log has no recognizable output",
			map[string]string{"log": logPath})
	}
	return s, nil
}

// firstFloat returns the capture of the first pattern matching line. One
// line feeds at most one sample per metric even when several patterns
// would match it.
func firstFloat(patterns []*regexp.Regexp, line string) (float64, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}
