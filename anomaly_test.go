package sgdive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// anomalyScenario builds a benign 100-sample dive leg: constant T and S,
// conductivity consistent with both, 1 m per 5 s descent.
func anomalyScenario(n int) (temp, cond, depth, times []float64) {
	temp = fill(n, 10.0)
	cond = make([]float64, n)
	depth = make([]float64, n)
	times = make([]float64, n)
	for i := 0; i < n; i++ {
		depth[i] = float64(i)
		times[i] = float64(i) * 5
		cond[i] = SwCondFromSalinity(35, 10, depth[i])
	}
	return temp, cond, depth, times
}

func TestDetectCondAnomaliesCleanProfile(t *testing.T) {
	cc := DefaultCalibConsts()
	d := NewProfileDirectives(1)
	sink := &QcLog{}
	temp, cond, depth, times := anomalyScenario(100)
	condQc := InitQcVector(100, QcGood)

	res := DetectCondAnomalies(temp, cond, depth, times, 50, 2, 0.5, cc, d, condQc, sink)
	assert.Empty(t, res.DiveBubbles)
	assert.Empty(t, res.ClimbBubbles)
	assert.Empty(t, res.Snot)
	for i := range condQc {
		assert.Equal(t, QcGood, condQc[i])
	}
}

func TestDetectCondAnomaliesSurfaceBubble(t *testing.T) {
	cc := DefaultCalibConsts()
	d := NewProfileDirectives(1)
	sink := &QcLog{}
	temp, cond, depth, times := anomalyScenario(100)
	// a conductivity dropout in the first few metres with full recovery
	cond[1] -= 2.0
	cond[2] -= 2.0
	condQc := InitQcVector(100, QcGood)

	res := DetectCondAnomalies(temp, cond, depth, times, 50, 2, 0.5, cc, d, condQc, sink)
	require.NotEmpty(t, res.DiveBubbles)
	assert.Empty(t, res.ClimbBubbles)
	// bubbles are never interpolable
	assert.Equal(t, QcBad, condQc[1])
	assert.Equal(t, QcBad, condQc[3]) // the recovery edge is an excursion too
	assert.Equal(t, QcGood, condQc[50])
}

func TestDetectCondAnomaliesThermoclineNotFlagged(t *testing.T) {
	// a sharp but temperature-driven conductivity change is a
	// thermocline, not an anomaly
	cc := DefaultCalibConsts()
	d := NewProfileDirectives(1)
	sink := &QcLog{}
	n := 100
	temp := make([]float64, n)
	cond := make([]float64, n)
	depth := make([]float64, n)
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		depth[i] = float64(i) * 2
		times[i] = float64(i) * 5
		temp[i] = 20.0
		if i >= 30 {
			temp[i] = 10.0 // 10 degree thermocline at 60 m
		}
		if i == 30 {
			temp[i] = 15.0
		}
		cond[i] = SwCondFromSalinity(35, temp[i], depth[i])
	}
	condQc := InitQcVector(n, QcGood)

	DetectCondAnomalies(temp, cond, depth, times, 60, 2, 0.5, cc, d, condQc, sink)
	for i := 28; i <= 33; i++ {
		assert.Equal(t, QcGood, condQc[i], "index %d", i)
	}
}

func TestDetectCondAnomaliesSuspectBand(t *testing.T) {
	// a mid-sized excursion at depth lands in the empirically murky band
	// and is surfaced as a suggestion instead of auto-applied
	cc := DefaultCalibConsts()
	d := NewProfileDirectives(6)
	sink := &QcLog{}
	temp, cond, depth, times := anomalyScenario(100)
	s := condTempScale(10)
	cond[40] -= 0.9 / s // a ~0.9 degC-equivalent dip with recovery
	condQc := InitQcVector(100, QcGood)

	res := DetectCondAnomalies(temp, cond, depth, times, 50, 2, 0.5, cc, d, condQc, sink)
	require.NotEmpty(t, res.Suspects)
	assert.Equal(t, QcGood, condQc[40])
	assert.Equal(t, QcGood, condQc[41])
	require.NotEmpty(t, d.Suggestions)
	assert.Contains(t, d.Suggestions[0], "suspect conductivity anomaly")
}

func TestAnomalyBookkeeping(t *testing.T) {
	a := &Anomaly{}
	a.add(10, -0.5)
	a.add(11, -0.3)
	a.add(12, 0.6)
	assert.LessOrEqual(t, a.NegativeSum, 0.0)
	assert.GreaterOrEqual(t, a.PositiveSum, 0.0)
	assert.InDelta(t, -0.8, a.NegativeSum, 1e-12)
	assert.InDelta(t, 0.6, a.PositiveSum, 1e-12)
	assert.InDelta(t, 0.6, a.MaxExcursion, 1e-12)
	assert.Equal(t, len(a.Points), a.last()-a.first()+1)
}

func TestAnomalyVerdictByExtent(t *testing.T) {
	cc := DefaultCalibConsts()
	depth := make([]float64, 200)
	for i := range depth {
		depth[i] = float64(i)
	}

	short := &Anomaly{}
	short.add(10, -0.5)
	short.add(12, 0.5)
	short.finalize(depth, cc)
	assert.Equal(t, QcInterpolated, short.Verdict)

	long := &Anomaly{}
	long.add(10, -0.5)
	long.add(150, 0.5) // 140 m extent, beyond the allowable distance
	long.finalize(depth, cc)
	assert.Equal(t, QcBad, long.Verdict)
}

func TestCondTempScaleClamped(t *testing.T) {
	// the per-integer-degree table clamps outside -5..37
	assert.Equal(t, condTempScale(-20), condTempScale(-5))
	assert.Equal(t, condTempScale(50), condTempScale(37))
	// warmer water conducts better per degree, so the scale shrinks
	assert.Greater(t, condTempScale(0), condTempScale(30))
}
