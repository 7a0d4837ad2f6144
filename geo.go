package sgdive

import (
	"math"
)

// GeoCoefficients contains the coefficients used to convert between
// metre displacements and longitude/latitude degrees.
// See https://en.wikipedia.org/wiki/Geographic_coordinate_system for more information.
// These coeficients appear to be derived from an iterative process that is described here:
// https://gis.stackexchange.com/questions/75528/understanding-terms-in-length-of-degree-formula
type GeoCoefficients struct {
	A float64
	B float64
	C float64
	D float64
	E float64
	F float64
	G float64
}

// NewCoefWgs84 initialises a GeoCoefficients with coefficients set for WGS84.
// No thoughts, as of yet, to generate coefficients for other datums.
func NewCoefWgs84() *GeoCoefficients {
	g := new(GeoCoefficients)
	g.A = 111132.92
	g.B = 559.82
	g.C = 1.175
	g.D = 0.0023
	g.E = 111412.84
	g.F = 93.5
	g.G = 0.118

	return g
}

// DegreeLengths returns the metres per degree of latitude and longitude
// at the given latitude.
// For formulae details: https://gis.stackexchange.com/questions/75528/understanding-terms-in-length-of-degree-formula
func (g *GeoCoefficients) DegreeLengths(lat float64) (latSf, lonSf float64) {
	latRad := deg2rad * lat

	// latitude metres scale factor
	latSf = g.A -
		g.B*math.Cos(2.0*latRad) +
		g.C*math.Cos(4.0*latRad) -
		g.D*math.Cos(6.0*latRad)

	// longitude metres scale factor
	lonSf = g.E*math.Cos(latRad) -
		g.F*math.Cos(3.0*latRad) +
		g.G*math.Cos(5.0*latRad)

	return latSf, lonSf
}

// wrapLonDelta wraps a longitude difference into [-180, 180] so
// displacements across the dateline stay small.
func wrapLonDelta(d float64) float64 {
	for d > 180 {
		d -= 360
	}
	for d < -180 {
		d += 360
	}
	return d
}

// pol2cart converts a compass bearing [deg] and magnitude into east and
// north components.
func pol2cart(bearingDeg, magnitude float64) (east, north float64) {
	rad := bearingDeg * deg2rad
	return magnitude * math.Sin(rad), magnitude * math.Cos(rad)
}

// cart2pol converts east/north components into a compass bearing [deg]
// in [0, 360) and a magnitude.
func cart2pol(east, north float64) (bearingDeg, magnitude float64) {
	bearingDeg = math.Atan2(east, north) * rad2deg
	if bearingDeg < 0 {
		bearingDeg += 360
	}
	return bearingDeg, math.Hypot(east, north)
}
