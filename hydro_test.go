package sgdive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flightCalib() *CalibConsts {
	cc := DefaultCalibConsts()
	cc.HdA = 3.836e-3
	cc.HdB = 1.0078e-2
	cc.HdC = 9.85e-6
	cc.GliderLength = 1.8
	cc.Mass = 52
	cc.Volmax = 50900
	return cc
}

func TestFindStalled(t *testing.T) {
	cc := flightCalib()
	speed := []float64{25, 0.5, 150, 150, 30}
	pitch := []float64{-30, -30, 2, 30, 30}
	stalled := FindStalled(speed, pitch, cc)
	// too slow at 1; too fast while nearly level at 2 (not 3: pitched)
	assert.Equal(t, []int{1, 2}, stalled)
}

func TestFindStalledIdempotent(t *testing.T) {
	// with every speed in range and no shallow pitch, nothing stalls
	cc := flightCalib()
	speed := fill(50, 25.0)
	pitch := fill(50, -30.0)
	assert.Empty(t, FindStalled(speed, pitch, cc))
}

func TestHydroModelSteadyFlight(t *testing.T) {
	cc := flightCalib()
	n := 40
	buoyancy := make([]float64, n)
	pitch := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < n/2 {
			buoyancy[i] = -300 // grams, heavy on the dive
			pitch[i] = -30
		} else {
			buoyancy[i] = 300
			pitch[i] = 30
		}
	}
	converged, speed, theta, stalled := HydroModel(buoyancy, pitch, cc)
	require.True(t, converged)
	assert.Empty(t, stalled)
	for i := 0; i < n; i++ {
		assert.Greater(t, speed[i], 5.0, "index %d", i)
		assert.Less(t, speed[i], 80.0, "index %d", i)
		// glide angle carries the buoyancy sign and is steeper than zero,
		// shallower than pitch plus a few degrees of attack
		if buoyancy[i] < 0 {
			assert.Less(t, theta[i], 0.0)
		} else {
			assert.Greater(t, theta[i], 0.0)
		}
		assert.Less(t, math.Abs(theta[i]), 45*deg2rad)
	}
	// symmetric forcing, symmetric solution
	assert.InDelta(t, speed[0], speed[n-1], 1e-6)
}

func TestHydroModelBuoyancyPitchMismatchStalls(t *testing.T) {
	cc := flightCalib()
	n := 10
	buoyancy := fill(n, 300.0) // buoyant...
	pitch := fill(n, -30.0)    // ...but pitched down: not flying
	converged, speed, theta, stalled := HydroModel(buoyancy, pitch, cc)
	assert.False(t, converged)
	assert.Len(t, stalled, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, 0.0, speed[i])
		assert.Equal(t, 0.0, theta[i])
	}
}

func TestHydroModelConvergesWithinCap(t *testing.T) {
	cc := flightCalib()
	buoyancy := fill(30, -250.0)
	pitch := fill(30, -25.0)
	converged, _, _, _ := HydroModel(buoyancy, pitch, cc)
	// the cap is 41 iterations; benign forcing converges well within it
	assert.True(t, converged)
}

func TestGlideSlopeMatchesObservedW(t *testing.T) {
	cc := flightCalib()
	n := 30
	w := fill(n, -12.0) // cm/s, sinking
	pitch := fill(n, -30.0*deg2rad)
	converged, speed, theta, stalled := GlideSlope(w, pitch, cc)
	require.True(t, converged)
	assert.Empty(t, stalled)
	for i := 0; i < n; i++ {
		// the solution reproduces the observed vertical rate exactly:
		// w = U * sin(theta)
		assert.InDelta(t, w[i], speed[i]*math.Sin(theta[i]), 0.5)
		assert.Greater(t, speed[i], math.Abs(w[i])) // total exceeds vertical
	}
}

func TestGlideSlopeStallsWhenBarelyMoving(t *testing.T) {
	cc := flightCalib()
	n := 10
	w := fill(n, -0.3) // cm/s, below any plausible flying speed
	pitch := fill(n, -30.0*deg2rad)
	_, speed, theta, stalled := GlideSlope(w, pitch, cc)
	assert.Len(t, stalled, n)
	for i := range speed {
		assert.Equal(t, 0.0, speed[i])
		assert.Equal(t, 0.0, theta[i])
	}
}

func TestFilterUnsteadySmooths(t *testing.T) {
	n := 60
	times := make([]float64, n)
	speed := make([]float64, n)
	glide := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i) * 5
		speed[i] = 25
		glide[i] = -30 * deg2rad
	}
	speed[30] = 45 // an acceleration blip
	fine := arange(times[0], times[n-1]+1, 1)
	smoothed, glideDeg := filterUnsteady(20, times, fine, 1, speed, glide)
	// the blip is spread out, not preserved
	assert.Less(t, smoothed[30], 45.0)
	assert.Greater(t, smoothed[30], 25.0)
	assert.Greater(t, smoothed[29], 25.0)
	// steady samples stay put
	assert.InDelta(t, 25.0, smoothed[5], 0.5)
	assert.InDelta(t, -30.0, glideDeg[5], 2.0)
}
