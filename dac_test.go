package sgdive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceDrift(t *testing.T) {
	coef := NewCoefWgs84()
	latSf, _ := coef.DegreeLengths(47)
	gps1 := &GpsFix{TimeS: 0, Lat: 47.0, Lon: -128.0, Valid: true}
	// drift 1000 s due north by exactly 100 m
	gps2 := &GpsFix{TimeS: 1000, Lat: 47.0 + 100/latSf, Lon: -128.0, Valid: true}

	speed, dir, qc := SurfaceDrift(gps1, gps2, coef)
	assert.Equal(t, QcGood, qc)
	assert.InDelta(t, 0.1, speed, 1e-4)
	assert.InDelta(t, 0.0, dir, 0.5)

	// an invalid fix kills the estimate
	gps1.Valid = false
	speed, _, qc = SurfaceDrift(gps1, gps2, coef)
	assert.Equal(t, QcBad, qc)
	assert.True(t, math.IsNaN(speed))
}

func TestCart2Pol(t *testing.T) {
	dir, mag := cart2pol(1, 0)
	assert.InDelta(t, 90.0, dir, 1e-9) // due east
	assert.InDelta(t, 1.0, mag, 1e-9)
	dir, _ = cart2pol(0, -1)
	assert.InDelta(t, 180.0, dir, 1e-9) // due south
	e, n := pol2cart(90, 2)
	assert.InDelta(t, 2.0, e, 1e-9)
	assert.InDelta(t, 0.0, n, 1e-9)
}

func TestWrapLonDelta(t *testing.T) {
	assert.InDelta(t, 0.2, wrapLonDelta(-179.9-179.9+360), 1e-9)
	assert.InDelta(t, -0.2, wrapLonDelta(179.9-(-179.9)-360), 1e-9)
	assert.InDelta(t, 5.0, wrapLonDelta(5.0), 1e-9)
}

// dacScenario: the vehicle swims due east at a steady 25 cm/s horizontal
// for 600 s while the current displaces it; the GPS fixes record the sum.
func dacScenario(currentEast, currentNorth float64) (*DiveRecord, *PreflightResult, []float64, []float64) {
	d := testDive()
	np := d.Np()
	coef := NewCoefWgs84()
	latSf, lonSf := coef.DegreeLengths(47.0)

	speed := fill(np, 25.0)
	glide := fill(np, 0.0)
	flightTime := d.TimeS[np-1] - d.TimeS[0]
	throughWaterEast := 0.25 * flightTime

	d.GPS2 = GpsFix{TimeS: d.StartTime - 1, Lat: 47.0, Lon: -128.0, Hdop: 1.0, Valid: true}
	d.GPSE = GpsFix{
		TimeS: d.StartTime + flightTime + 1,
		Lat:   47.0 + currentNorth*flightTime/latSf,
		Lon:   -128.0 + (throughWaterEast+currentEast*flightTime)/lonSf,
		Hdop:  1.0,
		Valid: true,
	}
	d.GPS1.Valid = true

	pf := &PreflightResult{
		MeanLat: (d.GPS2.Lat + d.GPSE.Lat) / 2,
		FlareI:  0,
	}
	return d, pf, speed, glide
}

func TestComputeDACRecoversCurrent(t *testing.T) {
	cc := DefaultCalibConsts()
	cc.GpsPositionError = 1 // keep the noise-floor gate quiet
	d, pf, speed, glide := dacScenario(0.05, -0.03)

	res := ComputeDAC(d, pf, speed, glide, QcGood, nil, nil, cc)
	assert.InDelta(t, 0.05, res.DacEastMS, 1e-3)
	assert.InDelta(t, -0.03, res.DacNorthMS, 1e-3)
	assert.Equal(t, QcGood, res.DacQc)
}

func TestComputeDACPositionsLandOnGps(t *testing.T) {
	// the per-sample adjusted positions integrated with the current land
	// exactly on the end-of-dive fix
	cc := DefaultCalibConsts()
	cc.GpsPositionError = 1
	d, pf, speed, glide := dacScenario(0.02, 0.04)

	res := ComputeDAC(d, pf, speed, glide, QcGood, nil, nil, cc)
	np := d.Np()
	require.Len(t, res.LatV, np)
	require.Len(t, res.LonV, np)
	assert.InDelta(t, d.GPS2.Lat, res.LatV[0], 1e-9)
	assert.InDelta(t, d.GPS2.Lon, res.LonV[0], 1e-9)
	// within a metre at the far end
	latSf, lonSf := NewCoefWgs84().DegreeLengths(pf.MeanLat)
	assert.InDelta(t, d.GPSE.Lat, res.LatV[np-1], 1.0/latSf)
	assert.InDelta(t, d.GPSE.Lon, res.LonV[np-1], 1.0/lonSf)
}

func TestComputeDACBadGps(t *testing.T) {
	cc := DefaultCalibConsts()
	d, pf, speed, glide := dacScenario(0.05, 0)
	d.GPS2.Valid = false // hdop 99 upstream

	res := ComputeDAC(d, pf, speed, glide, QcGood, nil, nil, cc)
	assert.Equal(t, QcBad, res.DacQc)
	assert.True(t, math.IsNaN(res.DacEastMS))
	assert.True(t, math.IsNaN(res.DacNorthMS))
	// positions still produced, anchored on the through-water track
	assert.Len(t, res.LatV, d.Np())
}

func TestComputeDACUnmodelledGate(t *testing.T) {
	cc := DefaultCalibConsts()
	cc.GpsPositionError = 1
	d, pf, speed, glide := dacScenario(0.0, 0.0)
	// stall out a third of the dive
	for i := 0; i < d.Np()/3; i++ {
		speed[i] = 0
	}
	res := ComputeDAC(d, pf, speed, glide, QcGood, nil, nil, cc)
	assert.Equal(t, QcProbablyBad, res.DacQc)
}

func TestComputeDACUpwellingGate(t *testing.T) {
	cc := DefaultCalibConsts()
	cc.GpsPositionError = 1
	// a real current keeps the noise-floor gate quiet
	d, pf, speed, glide := dacScenario(0.05, 0.0)
	np := d.Np()
	wObs := fill(np, -10.0)
	wHdm := fill(np, -10.0)
	for i := 0; i < np/5; i++ {
		wObs[i] = -25.0 // heaving well beyond the model
	}
	res := ComputeDAC(d, pf, speed, glide, QcGood, wObs, wHdm, cc)
	assert.Equal(t, QcProbablyBad, res.DacQc)
}
