package sgdive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDepthGrid(n int) []float64 {
	depth := make([]float64, n)
	for i := range depth {
		depth[i] = float64(i) * 2 // 2 m per sample
	}
	return depth
}

func TestQcChecksTemperatureBounds(t *testing.T) {
	cc := DefaultCalibConsts()
	sink := &QcLog{}
	n := 20
	depth := testDepthGrid(n)
	temp := fill(n, 10.0)
	temp[5] = -4.0 // below QC_temp_min
	temp[9] = 50.0 // above QC_temp_max
	tempQc := InitQcVector(n, QcGood)

	QcChecks(temp, tempQc, nil, nil, nil, nil, depth, cc,
		cc.QcBoundAction, cc.QcSpikeAction, "", false, sink)

	assert.Equal(t, QcBad, tempQc[5])
	assert.Equal(t, QcBad, tempQc[9])
	assert.Equal(t, QcGood, tempQc[0])
	assert.Equal(t, QcGood, tempQc[10])
}

func TestQcChecksTemperatureSpike(t *testing.T) {
	cc := DefaultCalibConsts()
	sink := &QcLog{}
	n := 21
	depth := testDepthGrid(n)
	temp := fill(n, 10.0)
	temp[10] = 18.0 // an 8 degree one-sample excursion
	tempQc := InitQcVector(n, QcGood)

	QcChecks(temp, tempQc, nil, nil, nil, nil, depth, cc,
		cc.QcBoundAction, cc.QcSpikeAction, "", false, sink)

	assert.Equal(t, cc.QcSpikeAction, tempQc[10])
	assert.Equal(t, QcGood, tempQc[9])
	assert.Equal(t, QcGood, tempQc[11])
}

func TestQcChecksSalinityImpliesConductivity(t *testing.T) {
	// the conductivity values fluctuate too much with temperature and
	// pressure for a direct bound; an out-of-bounds salinity with a good
	// temperature indicts the conductivity instead
	cc := DefaultCalibConsts()
	sink := &QcLog{}
	n := 20
	depth := testDepthGrid(n)
	temp := fill(n, 10.0)
	cond := fill(n, 3.5)
	salin := fill(n, 35.0)
	salin[7] = 12.0 // below QC_salin_min
	tempQc := InitQcVector(n, QcGood)
	condQc := InitQcVector(n, QcGood)
	salinQc := InitQcVector(n, QcGood)

	QcChecks(temp, tempQc, cond, condQc, salin, salinQc, depth, cc,
		cc.QcBoundAction, cc.QcSpikeAction, "", false, sink)

	assert.Equal(t, QcBad, salinQc[7])
	assert.Equal(t, QcBad, condQc[7])
	assert.Equal(t, QcGood, tempQc[7])
}

func TestQcChecksSkipsBadPoints(t *testing.T) {
	cc := DefaultCalibConsts()
	sink := &QcLog{}
	n := 20
	depth := testDepthGrid(n)
	temp := fill(n, 10.0)
	temp[5] = 50.0
	tempQc := InitQcVector(n, QcGood)
	tempQc[5] = QcBad // already struck; the checks must not resurrect it

	QcChecks(temp, tempQc, nil, nil, nil, nil, depth, cc,
		cc.QcBoundAction, cc.QcSpikeAction, "", false, sink)
	assert.Equal(t, QcBad, tempQc[5])
	for i := range tempQc {
		if i != 5 {
			assert.Equal(t, QcGood, tempQc[i], "index %d", i)
		}
	}
}

func TestQcNoise(t *testing.T) {
	n := 101
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i) * 0.01 // smooth trend
	}
	data[50] += 5.0 // a single wild point
	bad := qcNoise(data, 15, 3)
	require.NotEmpty(t, bad)
	assert.Contains(t, bad, 50)
	// disabled window flags nothing
	assert.Empty(t, qcNoise(data, 0, 3))
}

func TestInterpolateDataQc(t *testing.T) {
	sink := &QcLog{}
	d := NewProfileDirectives(1)
	n := 10
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = float64(i) * 2
	}
	y[4] = 100 // garbage to be interpolated over
	y[5] = -50
	qcV := InitQcVector(n, QcGood)
	qcV[4] = QcInterpolated
	qcV[5] = QcInterpolated

	out := InterpolateDataQc(y, x, []int{4, 5}, "salinity", d, qcV, QcProbablyBad, sink)
	assert.InDelta(t, 8.0, out[4], 1e-9)
	assert.InDelta(t, 10.0, out[5], 1e-9)
	// anchors untouched
	assert.InDelta(t, 6.0, out[3], 1e-9)
	assert.InDelta(t, 12.0, out[6], 1e-9)
}

func TestInterpolateDataQcBadAnchors(t *testing.T) {
	sink := &QcLog{}
	d := NewProfileDirectives(7)
	n := 8
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = 1.0
	}
	qcV := InitQcVector(n, QcGood)
	qcV[2] = QcBad // the would-be left anchor
	qcV[3] = QcInterpolated
	qcV[4] = QcInterpolated

	out := InterpolateDataQc(y, x, []int{3, 4}, "salinity", d, qcV, QcProbablyBad, sink)
	// nothing interpolated, run downgraded, suggestion emitted
	assert.Equal(t, 1.0, out[3])
	assert.Equal(t, QcProbablyBad, qcV[3])
	assert.Equal(t, QcProbablyBad, qcV[4])
	require.NotEmpty(t, d.Suggestions)
	assert.Contains(t, d.Suggestions[0], "bad_salinity")
}
