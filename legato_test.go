package sgdive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothLegatoPressureNoSpikes(t *testing.T) {
	n := 50
	press := make([]float64, n)
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i)
		press[i] = float64(i) * 0.3 // 0.3 dbar/s, well under the dz/dt cap
	}
	smoothed, bad := SmoothLegatoPressure(press, times, 2.0, 0.5)
	assert.Empty(t, bad)
	assert.Equal(t, press, smoothed)
}

func TestSmoothLegatoPressureRemovesSpike(t *testing.T) {
	n := 50
	press := make([]float64, n)
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i)
		press[i] = float64(i) * 0.3
	}
	press[25] += 30 // a wild pressure spike
	smoothed, bad := SmoothLegatoPressure(press, times, 2.0, 0.5)
	require.NotEmpty(t, bad)
	assert.Contains(t, bad, 25)
	assert.InDelta(t, 25*0.3, smoothed[25], 0.5)
	// far away untouched
	assert.Equal(t, press[5], smoothed[5])
	assert.Equal(t, press[45], smoothed[45])
}

func TestLegatoCorrectCTSteadyState(t *testing.T) {
	cc := DefaultCalibConsts()
	n := 120
	times := make([]float64, n)
	press := make([]float64, n)
	temp := make([]float64, n)
	cond := make([]float64, n)
	condTemp := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i)
		press[i] = float64(i) * 0.5
		temp[i] = 8
		cond[i] = SwCondFromSalinity(35, 8, press[i]) / 10.0 // legato reports mS/cm style
		condTemp[i] = 8
	}
	sink := &QcLog{}
	out := LegatoCorrectCT(cc, times, press, temp, InitQcVector(n, QcGood),
		cond, InitQcVector(n, QcGood), condTemp, sink)

	require.Len(t, out.Temperature, n)
	require.Len(t, out.Salinity, n)
	require.Len(t, out.Conductivity, n)

	// constant temperature: the lag and thermal corrections are no-ops
	for i := 5; i < n-5; i++ {
		if math.IsNaN(out.Temperature[i]) {
			continue
		}
		assert.InDelta(t, 8.0, out.Temperature[i], 1e-6, "index %d", i)
	}
	for i := 5; i < n-5; i++ {
		if math.IsNaN(out.Salinity[i]) {
			continue
		}
		assert.InDelta(t, 35.0, out.Salinity[i], 0.05, "index %d", i)
	}
}

func TestLegatoCorrectCTTooFewPoints(t *testing.T) {
	cc := DefaultCalibConsts()
	n := 5
	nanV := nanSlice(n)
	times := []float64{0, 1, 2, 3, 4}
	out := LegatoCorrectCT(cc, times, nanV, nanV, InitQcVector(n, QcGood),
		nanV, InitQcVector(n, QcGood), nanV, nil)
	for i := 0; i < n; i++ {
		assert.Equal(t, QcBad, out.TemperatureQc[i])
		assert.True(t, math.IsNaN(out.Salinity[i]))
	}
}

func TestInterp1(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 10, 20}
	out := interp1(x, y, []float64{0.5, 1.5, 3}, false)
	assert.InDelta(t, 5.0, out[0], 1e-12)
	assert.InDelta(t, 15.0, out[1], 1e-12)
	assert.True(t, math.IsNaN(out[2]))

	out = interp1(x, y, []float64{3}, true)
	assert.InDelta(t, 30.0, out[0], 1e-12)

	out = interp1Extend(x, y, []float64{-1, 3})
	assert.InDelta(t, 0.0, out[0], 1e-12)
	assert.InDelta(t, 20.0, out[1], 1e-12)
}
