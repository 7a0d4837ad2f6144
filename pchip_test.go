package sgdive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPchipAgainstReference(t *testing.T) {
	// reference values computed with the matlab pchip on the same knots
	x := []float64{0.5, 1, 2, 3, 4, 5}
	y := []float64{0.25, 1, 4, 9, 16, 25}
	xx := []float64{1, 4, 6, -2}
	expected := []float64{1.0000, 16.0000, 35.7500, 9.3571} // note the -2 extrapolation
	yy := Pchip(x, y, xx)
	require.Len(t, yy, len(xx))
	for i := range expected {
		assert.InDelta(t, expected[i], yy[i], 1e-3, "query %v", xx[i])
	}
}

func TestPchipPreservesMonotoneSteps(t *testing.T) {
	x := []float64{-3, -2, -1, 0, 1, 2, 3}
	y := []float64{-1, -1, -1, 0, 1, 1, 1}
	xx := []float64{3.01, 2.5, -3.1, 0.5, 0.8, 0.9, 1.1, 2.0, 2.1}
	expected := []float64{1.0000, 1.0000, -1.0000, 0.6250, 0.9280, 0.9810, 1.0000, 1.0000, 1.0000}
	yy := Pchip(x, y, xx)
	for i := range expected {
		assert.InDelta(t, expected[i], yy[i], 1e-3, "query %v", xx[i])
	}
	// shape preservation: no overshoot beyond the data range anywhere
	fine := arange(-3, 3, 0.01)
	for _, v := range Pchip(x, y, fine) {
		assert.GreaterOrEqual(t, v, -1.0-1e-12)
		assert.LessOrEqual(t, v, 1.0+1e-12)
	}
}

func TestPchipHitsKnots(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{2, -1, 0.5, 7}
	yy := Pchip(x, y, x)
	for i := range x {
		assert.InDelta(t, y[i], yy[i], 1e-12)
	}
}

func TestPchipTwoKnotsIsLinear(t *testing.T) {
	yy := Pchip([]float64{0, 10}, []float64{5, 15}, []float64{2.5, 5, 7.5})
	assert.InDelta(t, 7.5, yy[0], 1e-12)
	assert.InDelta(t, 10.0, yy[1], 1e-12)
	assert.InDelta(t, 12.5, yy[2], 1e-12)
}

func TestTriang(t *testing.T) {
	w := Triang(5)
	expected := []float64{1.0 / 3, 2.0 / 3, 1, 2.0 / 3, 1.0 / 3}
	for i := range expected {
		assert.InDelta(t, expected[i], w[i], 1e-12)
	}
}

func TestTrifiltConstantSignal(t *testing.T) {
	// the endpoint area correction keeps a constant signal constant
	x := fill(50, 3.25)
	xf := Trifilt(x, 5)
	require.Len(t, xf, len(x))
	for i := range xf {
		assert.InDelta(t, 3.25, xf[i], 1e-9)
	}
}

func TestTrifiltSmooths(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		if i%2 == 0 {
			x[i] = 1
		}
	}
	xf := Trifilt(x, 10)
	// interior values pulled toward the mean
	for i := 30; i < 70; i++ {
		assert.InDelta(t, 0.5, xf[i], 0.1)
	}
}

func TestCumTrapz(t *testing.T) {
	tv := []float64{0, 1, 2, 3}
	f := []float64{0, 1, 2, 3}
	out := cumTrapz(f, tv)
	assert.Equal(t, 0.0, out[0])
	assert.InDelta(t, 0.5, out[1], 1e-12)
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 4.5, out[3], 1e-12)
}
