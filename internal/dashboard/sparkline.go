package dashboard

import "strings"

const sparkRamp = " .:-=+*#%@"

// Sparkline renders values as a fixed-width ASCII strip. Width counts
// characters; when there are more values than columns the most recent
// values win. A flat series renders at mid ramp.
func Sparkline(values []float64, width int) string {
	if width <= 0 || len(values) == 0 {
		return ""
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	ramp := []byte(sparkRamp)
	var b strings.Builder
	for _, v := range values {
		idx := len(ramp) / 2
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(ramp)-1))
		}
		b.WriteByte(ramp[idx])
	}
	return b.String()
}
