package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var mdBlock = []string{
	" MD| ***************************************************************************",
	" MD| Step number                                                              3",
	" MD| Time [fs]                                                        1.500000",
	" MD| Conserved quantity [hartree]                            -0.344816094E+02",
	" MD| CPU time per MD step [s]                                         1.920000",
	" MD| Potential energy [hartree]                              -0.344820000E+02",
	" MD| Kinetic energy [hartree]                                 0.000388000E+00",
	" MD| Temperature [K]                                               298.150000",
	" MD| ***************************************************************************",
}

func TestBlockParserCompletesOnClosingSeparator(t *testing.T) {
	var p blockParser
	var got Block
	var done bool
	for _, line := range mdBlock {
		if b, ok := p.feed(line); ok {
			got, done = b, true
		}
	}
	require.True(t, done)
	require.Equal(t, 3, got.Step)
	require.InDelta(t, 1.5, got.TimeFS, 1e-9)
	require.InDelta(t, 298.15, got.Temperature, 1e-6)
	require.InDelta(t, -34.482, got.Potential, 1e-6)
	require.InDelta(t, 1.92, got.CPUPerStep, 1e-9)
}

func TestBlockParserIgnoresLinesOutsideBlocks(t *testing.T) {
	var p blockParser
	_, ok := p.feed(" MD| Temperature [K]  300.0")
	require.False(t, ok)
	_, ok = p.feed(" ENERGY| Total FORCE_EVAL ( QS ) energy =   -34.480")
	require.False(t, ok)
}

func TestFloatTokensNormalizesFortranExponent(t *testing.T) {
	nums := floatTokens("value -0.344816094D+02 end")
	require.Len(t, nums, 1)
	require.InDelta(t, -34.4816094, nums[0], 1e-9)
}

func TestSparkline(t *testing.T) {
	t.Run("maps range onto ramp", func(t *testing.T) {
		s := Sparkline([]float64{0, 1}, 2)
		require.Equal(t, " @", s)
	})
	t.Run("flat series renders mid ramp", func(t *testing.T) {
		s := Sparkline([]float64{5, 5, 5}, 3)
		require.Equal(t, "+++", s)
	})
	t.Run("keeps most recent values when over width", func(t *testing.T) {
		s := Sparkline([]float64{9, 0, 1}, 2)
		require.Equal(t, " @", s)
	})
	t.Run("empty", func(t *testing.T) {
		require.Equal(t, "", Sparkline(nil, 10))
	})
}

func TestDashboardEchoesAndSnapshots(t *testing.T) {
	dir := t.TempDir()
	var echo strings.Builder
	d := New(&echo, dir, "water", nil)
	d.SetPhase(1)

	for _, line := range mdBlock {
		d.Line(line)
	}
	d.Flush()

	require.Contains(t, echo.String(), "Step number")

	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Equal(t, "water", snap.Project)
	require.Equal(t, 1, snap.Phase)
	require.Equal(t, 1, snap.Steps)
	require.NotNil(t, snap.LastBlock)
	require.Equal(t, 3, snap.LastBlock.Step)
	require.NotEmpty(t, snap.TempSpark)
}

func TestDiscardIsSilent(t *testing.T) {
	var d Discard
	d.Line("anything")
	d.SetPhase(2)
	d.Flush()
}
