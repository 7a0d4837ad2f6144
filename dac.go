package sgdive

import (
	"log"
	"math"

	"github.com/samber/lo"
)

// Depth-averaged current: integrate the modelled horizontal speeds along
// true heading over the dive, compare with the surface-fix-to-surface-fix
// GPS displacement, and attribute the residual uniformly in time to the
// water column.

// DacResult is the displacement and current solution for one dive.
type DacResult struct {
	// modelled through-water displacement [m]
	DisplacementEastM  float64
	DisplacementNorthM float64
	// GPS end-to-end displacement [m]
	GpsEastM  float64
	GpsNorthM float64

	DacEastMS  float64 // depth-averaged current [m/s]
	DacNorthMS float64
	DacQc      QcFlag

	// per-sample positions from the DAC-adjusted integration
	LatV []float64
	LonV []float64

	SurfaceCurrentMS     float64 // drift between GPS1 and GPS2
	SurfaceCurrentDirDeg float64
	SurfCurrQc           QcFlag
}

// SurfaceDrift computes the surface current between the pre-dive and
// start-of-dive fixes as a magnitude [m/s] and compass direction.
func SurfaceDrift(gps1, gps2 *GpsFix, coef *GeoCoefficients) (speedMS, dirDeg float64, qc QcFlag) {
	dt := gps2.TimeS - gps1.TimeS
	if !gps1.Valid || !gps2.Valid || dt <= 0 {
		return math.NaN(), math.NaN(), QcBad
	}
	latSf, lonSf := coef.DegreeLengths((gps1.Lat + gps2.Lat) / 2)
	east := wrapLonDelta(gps2.Lon-gps1.Lon) * lonSf
	north := (gps2.Lat - gps1.Lat) * latSf
	dirDeg, dist := cart2pol(east, north)
	return dist / dt, dirDeg, QcGood
}

// upwellingSpeedDiff is the vertical-rate disagreement [cm/s] beyond
// which a sample counts as unmodelled vertical water motion.
const upwellingSpeedDiff = 5.0

// ComputeDAC projects the horizontal component of the flight solution
// onto true heading, integrates the through-water displacement, deduces
// the depth-averaged current from the GPS residual, and produces the
// per-sample positions. Quality gates downgrade DacQc rather than
// suppress the outputs; an invalid fix anywhere in the GPS triple yields
// NaN currents.
//
// wObs and wHdm are the observed and modelled vertical rates [cm/s] used
// by the upwelling gate; either may be nil to skip it.
func ComputeDAC(
	dive *DiveRecord,
	pf *PreflightResult,
	speedCmS, glideRad []float64,
	hdmQc QcFlag,
	wObs, wHdm []float64,
	cc *CalibConsts,
) *DacResult {
	np := dive.Np()
	coef := NewCoefWgs84()
	res := &DacResult{DacQc: QcGood}

	res.SurfaceCurrentMS, res.SurfaceCurrentDirDeg, res.SurfCurrQc =
		SurfaceDrift(&dive.GPS1, &dive.GPS2, coef)

	// per-sample through-water velocity [m/s] along true heading
	velEast := make([]float64, np)
	velNorth := make([]float64, np)
	unmodelled := 0
	for i := 0; i < np; i++ {
		trueHeading := dive.HeadingDeg[i] + dive.MagVarDeg
		uh := speedCmS[i] * math.Cos(glideRad[i]) * cm2m
		if math.IsNaN(uh) {
			uh = 0
			unmodelled++
		} else if speedCmS[i] == 0 {
			unmodelled++
		}
		velEast[i], velNorth[i] = pol2cart(trueHeading, uh)
	}
	// The vehicle drifts with the surface current until the flare, so
	// integrate from the onset of submergence rather than the surface
	// fix. When the flight model is asked to solve flare and apogee
	// speeds itself, its values stand.
	if res.SurfCurrQc == QcGood && !cc.SolveFlareApogeeSpeed {
		de, dn := pol2cart(res.SurfaceCurrentDirDeg, res.SurfaceCurrentMS)
		for i := 0; i < pf.FlareI; i++ {
			velEast[i] = de
			velNorth[i] = dn
		}
	}

	dispEast := cumTrapz(velEast, dive.TimeS)
	dispNorth := cumTrapz(velNorth, dive.TimeS)
	res.DisplacementEastM = dispEast[np-1]
	res.DisplacementNorthM = dispNorth[np-1]

	latSf, lonSf := coef.DegreeLengths(pf.MeanLat)
	res.GpsEastM = wrapLonDelta(dive.GPSE.Lon-dive.GPS2.Lon) * lonSf
	res.GpsNorthM = (dive.GPSE.Lat - dive.GPS2.Lat) * latSf

	flightTime := dive.TimeS[np-1] - dive.TimeS[0]
	totalTime := flightTime + dive.SurfaceManeuverS
	res.DacEastMS = (res.GpsEastM - res.DisplacementEastM) / totalTime
	res.DacNorthMS = (res.GpsNorthM - res.DisplacementNorthM) / totalTime

	// Quality gates.
	if !dive.GPS1.Valid || !dive.GPS2.Valid || !dive.GPSE.Valid {
		res.DacQc = QcBad
		res.DacEastMS = math.NaN()
		res.DacNorthMS = math.NaN()
	}
	if lo.Contains(BadQcValues, hdmQc) {
		// a speed model this poor poisons the displacement residual
		res.DacQc = UpdateQc(QcProbablyBad, res.DacQc)
	}
	if frac := float64(unmodelled) / float64(np); frac > 0.2 {
		log.Printf("%.0f%% of flight unmodelled; depth-averaged current suspect", 100*frac)
		res.DacQc = UpdateQc(QcProbablyBad, res.DacQc)
	}
	if wObs != nil && wHdm != nil {
		upwelling := 0
		for i := range wObs {
			if math.Abs(wObs[i]-wHdm[i]) > upwellingSpeedDiff {
				upwelling++
			}
		}
		if float64(upwelling)/float64(len(wObs)) > 0.1 {
			log.Println("Vertical rates disagree with the flight model; possible upwelling")
			res.DacQc = UpdateQc(QcProbablyBad, res.DacQc)
		}
	}
	dacMag := math.Hypot(res.DacEastMS, res.DacNorthMS)
	if flightTime > 0 && dacMag < cc.GpsPositionError/flightTime {
		// the inferred current is below the GPS noise floor
		res.DacQc = UpdateQc(QcProbablyBad, res.DacQc)
	}

	// Per-sample positions: the through-water track plus the current,
	// anchored at the start-of-dive fix. The DAC split makes the final
	// sample land exactly on the end-of-dive fix when the triple is good.
	res.LatV = make([]float64, np)
	res.LonV = make([]float64, np)
	dacE, dacN := res.DacEastMS, res.DacNorthMS
	if math.IsNaN(dacE) {
		dacE, dacN = 0, 0
	}
	for i := 0; i < np; i++ {
		dt := dive.TimeS[i] - dive.TimeS[0]
		east := dispEast[i] + dacE*dt
		north := dispNorth[i] + dacN*dt
		res.LatV[i] = dive.GPS2.Lat + north/latSf
		res.LonV[i] = dive.GPS2.Lon + wrapLonDelta(east/lonSf)
	}
	return res
}
