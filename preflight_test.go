package sgdive

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDive builds a plausible 600 s V-shaped dive: 0-100 m and back,
// 10 s sampling, apogee pump at 290 s, climb pump at 310 s.
func testDive() *DiveRecord {
	const np = 61
	const start = 1e9
	d := &DiveRecord{
		ID:         "sg999",
		DiveNumber: 12,
		StartTime:  start,
	}
	for i := 0; i < np; i++ {
		ts := float64(i) * 10
		d.TimeS = append(d.TimeS, ts)
		var depth float64
		if ts <= 300 {
			depth = ts / 3.0
		} else {
			depth = 100 - (ts-300)/3.0
		}
		d.DepthM = append(d.DepthM, depth)
		d.PressureDbar = append(d.PressureDbar, depth*1.01)
		if ts <= 300 {
			d.PitchDeg = append(d.PitchDeg, -30)
		} else {
			d.PitchDeg = append(d.PitchDeg, 30)
		}
		d.RollDeg = append(d.RollDeg, 0)
		d.HeadingDeg = append(d.HeadingDeg, 90)
		d.TempRaw = append(d.TempRaw, 10)
		d.CondRaw = append(d.CondRaw, SwCondFromSalinity(35, 10, depth*1.01))
		d.VbdCC = append(d.VbdCC, -200)
	}
	d.GC = []GcRecord{
		{StSecs: start + 290, EndSecs: start + 305, PitchSecs: 5, VbdSecs: 8, VbdCcStart: -200, VbdCcEnd: 0},
		{StSecs: start + 310, EndSecs: start + 330, PitchSecs: 5, VbdSecs: 12, VbdCcStart: 0, VbdCcEnd: 200},
	}
	d.GPS1 = GpsFix{TimeS: start - 600, Lat: 47.0, Lon: -128.0, Hdop: 1.0}
	d.GPS2 = GpsFix{TimeS: start - 30, Lat: 47.001, Lon: -128.0, Hdop: 1.0}
	d.GPSE = GpsFix{TimeS: start + 640, Lat: 47.003, Lon: -128.002, Hdop: 1.0}
	return d
}

func TestPreflightEvents(t *testing.T) {
	d := testDive()
	cc := DefaultCalibConsts()
	pf, err := Preflight(d, cc, NewProfileDirectives(d.DiveNumber))
	require.NoError(t, err)

	// apogee pump at 290 s -> sample 29; climb pump at 310 s -> sample 31
	assert.Equal(t, 29, pf.ApogeePumpStartI)
	assert.Equal(t, 31, pf.StartOfClimbI)
	assert.GreaterOrEqual(t, pf.ApogeeClimbPumpEndI, pf.StartOfClimbI)
	// the vehicle is pitched over from the first sample in this record
	assert.Equal(t, 0, pf.FlareI)
	assert.True(t, pf.GpsOk)
	assert.InDelta(t, 47.002, pf.MeanLat, 1e-9)
}

func TestPreflightNoGcRecords(t *testing.T) {
	d := testDive()
	d.GC = nil
	_, err := Preflight(d, DefaultCalibConsts(), NewProfileDirectives(1))
	assert.ErrorIs(t, err, ErrEmptyGcRecords)
}

func TestValidateGps(t *testing.T) {
	cc := DefaultCalibConsts()
	d := testDive()
	assert.True(t, ValidateGps(d, cc, NewProfileDirectives(d.DiveNumber)))
	assert.True(t, d.GPS2.Valid)

	// a terrible hdop invalidates the fix and the triple
	d = testDive()
	d.GPS2.Hdop = 99
	assert.False(t, ValidateGps(d, cc, NewProfileDirectives(d.DiveNumber)))
	assert.False(t, d.GPS2.Valid)
	assert.True(t, d.GPS1.Valid)

	// directives can strike a fix manually
	d = testDive()
	dir := NewProfileDirectives(d.DiveNumber)
	dir.ParseString("12 bad_gps2")
	assert.False(t, ValidateGps(d, cc, dir))
	assert.False(t, d.GPS2.Valid)

	// non-increasing fix times
	d = testDive()
	d.GPSE.TimeS = d.GPS2.TimeS - 1
	assert.False(t, ValidateGps(d, cc, NewProfileDirectives(d.DiveNumber)))
}

func TestReconstructVbd(t *testing.T) {
	d := testDive()
	d.VbdCC = nil
	vbd := ReconstructVbd(d)
	require.Len(t, vbd, d.Np())

	// before the apogee pump: the first GC's starting value
	assert.Equal(t, -200.0, vbd[0])
	assert.Equal(t, -200.0, vbd[20])
	// after the climb pump finishes: the final value, held
	assert.Equal(t, 200.0, vbd[40])
	assert.Equal(t, 200.0, vbd[60])
	// in between the two pumps
	assert.Equal(t, 0.0, vbd[31])
	// monotone through the move windows
	for i := 1; i < len(vbd); i++ {
		assert.GreaterOrEqual(t, vbd[i], vbd[i-1])
	}
}

func TestMeanLongitudeWrap(t *testing.T) {
	m := meanLongitude(179.9, -179.9)
	assert.InDelta(t, 180.0, math.Abs(m), 1e-9)
	assert.InDelta(t, -0.05, meanLongitude(-0.1, 0.0), 1e-9)
}

func TestHullVolume(t *testing.T) {
	cc := DefaultCalibConsts()
	cc.Volmax = 50000
	temp := []float64{cc.TempRef, cc.TempRef}
	press := []float64{0, 1000}
	vbd := []float64{0, 0}
	vol := HullVolume(temp, press, vbd, cc)
	// at the reference temperature and surface pressure, the hull is at volmax
	assert.InDelta(t, 50000, vol[0], 1e-6)
	// compression shrinks the hull at depth
	assert.Less(t, vol[1], vol[0])
	assert.InDelta(t, 50000*math.Exp(-cc.AbsCompress*1000), vol[1], 1e-6)

	// pumping oil outboard adds displaced volume directly
	vbd = []float64{250, 250}
	vol = HullVolume(temp, press, vbd, cc)
	assert.InDelta(t, 50250, vol[0], 1e-6)
}

func TestPressureFromCounts(t *testing.T) {
	cc := DefaultCalibConsts()
	cc.PressureSlope = 0.1
	cc.PressureYint = -5
	out := PressureFromCounts([]float64{50, 150}, cc)
	assert.Equal(t, []float64{0, 10}, out)
}
