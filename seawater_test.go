package sgdive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmowCheckValues(t *testing.T) {
	// UNESCO Tech. Paper in Marine Sci. No. 44, p22
	assert.InDelta(t, 999.842594, swSmow(0), 1e-6)
	assert.InDelta(t, 995.65113374, swSmow(30), 1e-6)
}

func TestDens0CheckValue(t *testing.T) {
	// sigma(35, 5, 0) = 27.67547 per the UNESCO tables
	assert.InDelta(t, 1027.67547, SwDens0(35, 5), 1e-3)
	// fresher and warmer water is lighter
	assert.Less(t, SwDens0(33, 5), SwDens0(35, 5))
	assert.Less(t, SwDens0(35, 20), SwDens0(35, 5))
}

func TestDensIncreasesWithPressure(t *testing.T) {
	assert.Greater(t, SwDens(35, 5, 1000), SwDens(35, 5, 0))
	assert.Greater(t, SwDens(35, 5, 4000), SwDens(35, 5, 1000))
	// compression over 4000 dbar is on the order of 2%
	assert.InDelta(t, 1.018, SwDens(35, 5, 4000)/SwDens(35, 5, 0), 0.01)
}

func TestSaltReferencePoint(t *testing.T) {
	// conductivity ratio 1 at T=15, P=0 defines S=35 exactly
	assert.InDelta(t, 35.0, SwSalt(1.0, 15, 0), 1e-9)
}

func TestSaltNonPositiveConductivity(t *testing.T) {
	assert.Equal(t, 0.0, SwSalt(0, 10, 100))
	assert.Equal(t, 0.0, SwSalt(-0.5, 10, 100))
}

func TestSalinityConductivityRoundTrip(t *testing.T) {
	// salinity(cond_from(S,T,P), T, P) = S to 1e-6 psu over the
	// oceanographic envelope
	for _, s := range []float64{30, 33, 35, 37, 40} {
		for _, tc := range []float64{-1, 2, 10, 20, 30} {
			for _, p := range []float64{0, 500, 2000, 5000} {
				r := SwCndr(s, tc, p)
				assert.InDelta(t, s, SwSalt(r, tc, p), 1e-6,
					"S=%v T=%v P=%v", s, tc, p)
			}
		}
	}
}

func TestCondFromSalinityScales(t *testing.T) {
	// C(35, 15, 0) is the reference conductivity
	assert.InDelta(t, C3515, SwCondFromSalinity(35, 15, 0), 1e-6)
	// conductivity rises with temperature at fixed salinity
	assert.Greater(t, SwCondFromSalinity(35, 20, 0), SwCondFromSalinity(35, 10, 0))
}

func TestPtmpProperties(t *testing.T) {
	// no excursion, no change
	assert.InDelta(t, 10.0, SwPtmp(35, 10, 1000, 1000), 1e-9)
	// raising a parcel to the surface cools it adiabatically
	theta := SwPtmp(35, 10, 4000, 0)
	assert.Less(t, theta, 10.0)
	assert.InDelta(t, 10.0, theta, 0.6) // the effect is a few tenths of a degree
}

func TestDpth(t *testing.T) {
	assert.Equal(t, 0.0, SwDpth(0, 45))
	// roughly 0.99 m per dbar in the upper ocean
	d := SwDpth(1000, 30)
	assert.InDelta(t, 990, d, 5)
	// higher latitude, stronger gravity, shallower depth for same pressure
	assert.Less(t, SwDpth(1000, 80), SwDpth(1000, 0))
}
