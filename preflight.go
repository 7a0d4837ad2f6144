package sgdive

import (
	"errors"
	"log"
	"math"
)

// Preflight conditioning: pressure and depth grids, CT sensor depth,
// GC event anchors, VBD reconstruction and GPS validation. Everything
// downstream keys off the index anchors produced here.

// flareAttitudeDeg is the pitch magnitude at which the vehicle has
// finished its initial rotation and is considered flying.
const flareAttitudeDeg = 15.0

// PreflightResult is the conditioned per-dive state.
type PreflightResult struct {
	PressureDbar []float64
	DepthM       []float64
	DepthCtM     []float64 // depth at the thermistor

	VbdCC []float64

	FlareI              int
	ApogeePumpStartI    int
	StartOfClimbI       int
	ApogeeClimbPumpEndI int

	DflareM float64 // depth at the end of the flare maneuver
	DsurfM  float64 // depth of the final sample

	MeanLat float64
	MeanLon float64

	GpsOk bool // the full triple validated
}

// PressureFromCounts converts raw pressure sensor counts to dbar with
// the calibration slope and intercept.
func PressureFromCounts(counts []float64, cc *CalibConsts) []float64 {
	out := make([]float64, len(counts))
	for i, c := range counts {
		out[i] = c*cc.PressureSlope + cc.PressureYint
	}
	return out
}

// DepthFromPressure converts pressure [dbar] to depth [m] with the
// latitude-corrected gravity formula.
func DepthFromPressure(pressure []float64, lat float64) []float64 {
	out := make([]float64, len(pressure))
	for i, p := range pressure {
		out[i] = SwDpth(p, lat)
	}
	return out
}

// ctSensorDepth adjusts vehicle depth to the thermistor location by
// projecting the CT sail offsets through pitch.
func ctSensorDepth(depthM, pitchDeg []float64, cc *CalibConsts) []float64 {
	dx := cc.GliderXT - cc.GliderXP
	dz := cc.GliderZT - cc.GliderZP
	out := make([]float64, len(depthM))
	for i := range depthM {
		pr := pitchDeg[i] * deg2rad
		out[i] = depthM[i] - (dx*math.Sin(pr) + dz*math.Cos(pr))
	}
	return out
}

// findEvents locates the apogee pump and the climb pump in the GC
// record stream: the first GC after dive start moving both pitch and
// VBD is the apogee pump, the next is the climb pump.
func findEvents(dive *DiveRecord) (apogeeGc, climbGc *GcRecord, err error) {
	if len(dive.GC) == 0 {
		return nil, nil, ErrEmptyGcRecords
	}
	for gi := range dive.GC {
		gc := &dive.GC[gi]
		if gc.StSecs < dive.StartTime {
			continue
		}
		if gc.PitchSecs > 0 && gc.VbdSecs > 0 {
			if apogeeGc == nil {
				apogeeGc = gc
			} else if climbGc == nil {
				climbGc = gc
				break
			}
		}
	}
	if apogeeGc == nil {
		return nil, nil, errors.Join(ErrEmptyGcRecords,
			errors.New("no GC moved both pitch and VBD"))
	}
	return apogeeGc, climbGc, nil
}

// timeIndex returns the first sample at or after the given epoch time.
func timeIndex(dive *DiveRecord, epochS float64) int {
	elapsed := epochS - dive.StartTime
	for i, t := range dive.TimeS {
		if t >= elapsed {
			return i
		}
	}
	return len(dive.TimeS) - 1
}

// ReconstructVbd rebuilds the displaced-volume vector from the GC log
// when the vehicle did not sample it: piecewise linear over each GC's
// VBD move window (start offset by the pitch and roll motor seconds,
// end at motor stop), held between moves and extended by the last value.
func ReconstructVbd(dive *DiveRecord) []float64 {
	np := dive.Np()
	out := make([]float64, np)
	if len(dive.GC) == 0 {
		return out
	}
	current := dive.GC[0].VbdCcStart
	gi := 0
	for i := 0; i < np; i++ {
		t := dive.TimeS[i] + dive.StartTime
		inMove := false
		for gi < len(dive.GC) {
			gc := &dive.GC[gi]
			moveStart := gc.StSecs + gc.PitchSecs + gc.RollSecs
			moveEnd := moveStart + gc.VbdSecs
			if t < moveStart {
				break
			}
			if t <= moveEnd && gc.VbdSecs > 0 {
				frac := (t - moveStart) / (moveEnd - moveStart)
				out[i] = gc.VbdCcStart + frac*(gc.VbdCcEnd-gc.VbdCcStart)
				inMove = true
				break
			}
			// move finished; latch the end value and consider the next GC
			current = gc.VbdCcEnd
			gi++
		}
		if !inMove {
			out[i] = current
		}
	}
	return out
}

// ValidateGps checks the GPS triple: hdop and horizontal error within
// limits, not struck by a bad_gps directive, and strictly increasing
// fix times across (GPS1, GPS2, GPSE).
func ValidateGps(dive *DiveRecord, cc *CalibConsts, directives *ProfileDirectives) bool {
	fixes := []*GpsFix{&dive.GPS1, &dive.GPS2, &dive.GPSE}
	tags := []string{"bad_gps1", "bad_gps2", "bad_gps3"}
	allOk := true
	for fi, fix := range fixes {
		fix.Valid = fix.Hdop < cc.GpsMaxHdop && fix.HorErr <= cc.GpsPositionError
		if directives.EvalPredicate(tags[fi], false) {
			fix.Valid = false
		}
		if !fix.Valid {
			allOk = false
		}
	}
	if !(dive.GPS1.TimeS < dive.GPS2.TimeS && dive.GPS2.TimeS < dive.GPSE.TimeS) {
		log.Println("GPS fix times not strictly increasing")
		allOk = false
	}
	return allOk
}

// meanLongitude averages two longitudes respecting the 180 degree wrap.
func meanLongitude(lon1, lon2 float64) float64 {
	d := lon2 - lon1
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	m := lon1 + d/2
	if m > 180 {
		m -= 360
	} else if m < -180 {
		m += 360
	}
	return m
}

// Preflight conditions the raw dive: pressure and depth grids, CT
// sensor depth, event anchors, VBD reconstruction and GPS validation.
func Preflight(dive *DiveRecord, cc *CalibConsts, directives *ProfileDirectives) (*PreflightResult, error) {
	np := dive.Np()
	if np < 3 {
		return nil, ErrTooFewSamples
	}
	res := &PreflightResult{}

	res.GpsOk = ValidateGps(dive, cc, directives)
	res.MeanLat = (dive.GPS2.Lat + dive.GPSE.Lat) / 2
	res.MeanLon = meanLongitude(dive.GPS2.Lon, dive.GPSE.Lon)

	// pressure source selection: the truck sensor unless an auxiliary
	// board is configured and actually reported
	res.PressureDbar = dive.PressureDbar
	if cc.UseAuxPressure && len(dive.AuxPressureDbar) == np {
		res.PressureDbar = dive.AuxPressureDbar
	} else if cc.UseAdcpPressure && len(dive.AdcpPressureDbar) == np {
		res.PressureDbar = dive.AdcpPressureDbar
	}
	if len(res.PressureDbar) != np {
		return nil, errors.Join(ErrTooFewSamples, errors.New("pressure grid length mismatch"))
	}
	if cc.UseAuxCompass && len(dive.AuxHeadingDeg) == np {
		dive.HeadingDeg = dive.AuxHeadingDeg
	}
	res.DepthM = dive.DepthM
	if len(res.DepthM) != np {
		res.DepthM = DepthFromPressure(res.PressureDbar, res.MeanLat)
	}
	res.DepthCtM = ctSensorDepth(res.DepthM, dive.PitchDeg, cc)

	res.VbdCC = dive.VbdCC
	if len(res.VbdCC) != np {
		res.VbdCC = ReconstructVbd(dive)
	}

	apogeeGc, climbGc, err := findEvents(dive)
	if err != nil {
		return nil, err
	}
	res.ApogeePumpStartI = timeIndex(dive, apogeeGc.StSecs)
	res.ApogeeClimbPumpEndI = timeIndex(dive, apogeeGc.EndSecs)
	if climbGc != nil {
		res.StartOfClimbI = timeIndex(dive, climbGc.StSecs)
		res.ApogeeClimbPumpEndI = timeIndex(dive, climbGc.EndSecs)
	} else {
		log.Println("No climb pump found; using apogee pump end for start of climb")
		res.StartOfClimbI = res.ApogeeClimbPumpEndI
	}

	// flare: the initial rotation to dive attitude is over
	res.FlareI = 0
	for i := 0; i < res.ApogeePumpStartI; i++ {
		if math.Abs(dive.PitchDeg[i]) >= flareAttitudeDeg {
			res.FlareI = i
			break
		}
	}
	res.DflareM = res.DepthM[res.FlareI]
	res.DsurfM = res.DepthM[np-1]
	return res, nil
}

// HullVolume models the displaced volume [cc] of the vehicle: the hull
// responds to pressure and temperature around a reference volume, a
// compressee (if fitted) adds its own pressure-dependent displacement,
// and the VBD adds its pumped oil directly.
func HullVolume(tempV, pressureV, vbdCC []float64, cc *CalibConsts) []float64 {
	np := len(tempV)
	out := make([]float64, np)
	volCompRef := 0.0
	if cc.MassComp > 0 {
		volCompRef = cc.MassComp / compresseeDensity(cc.TempRef, 0) * 1e6 // [cc]
	}
	for i := 0; i < np; i++ {
		v := (cc.Volmax - volCompRef) *
			math.Exp(-cc.AbsCompress*pressureV[i]+cc.ThermExpan*(tempV[i]-cc.TempRef))
		if cc.MassComp > 0 {
			v += cc.MassComp / compresseeDensity(tempV[i], pressureV[i]) * 1e6
		}
		out[i] = v + vbdCC[i]
	}
	return out
}

// compresseeDensity is the polynomial equation of state of the
// compressee fluid [kg/m^3] against temperature [degC] and pressure
// [dbar].
func compresseeDensity(t, p float64) float64 {
	// silicone oil fit: density decreases with temperature, stiffens
	// under pressure
	return 780.0*(1-7.0e-4*(t-15.0)) + 4.0e-2*p - 2.0e-6*p*p
}
