package sgdive

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/samber/lo"
)

// Physical constants of the thermal-inertia correction.
const (
	kappaWater           = 1.45e-7 // thermal diffusivity of water [m^2/s]
	nominalOceanDensity  = 1026.0  // [kg/m^3]
	specificHeatSeawater = 4185.5  // [J/(kg degC)]
	// thermal conductivity is diffusivity*density*heat capacity
	thermalCondSw           = kappaWater * nominalOceanDensity * specificHeatSeawater
	thermalCondGlass        = 0.96   // [W/(degC m)]
	thermalCondPolyurethane = 0.2394 // jacket on unpumped SBE41 CTs [W/(degC m)]
)

// TsvOptions selects how the iterative solver runs.
type TsvOptions struct {
	PerformThermalInertia       bool
	InterpolateExtremeTmcPoints bool
	UseAveragedSpeeds           bool
}

// TsvResult carries the converged (or best-effort) state of the solver.
// All vectors are in full sample space; reduced-space work is scattered
// back before return.
type TsvResult struct {
	Converged     bool
	TempCor       []float64
	TempCorQc     []QcFlag
	SalinCor      []float64
	SalinCorQc    []QcFlag
	Density       []float64 // potential density
	DensityInsitu []float64
	Buoyancy      []float64 // [g]
	SpeedCmS      []float64
	GlideAngleRad []float64
	SpeedQc       []QcFlag
	MaxTempCDiff  float64 // largest thermal-inertia temperature adjustment seen
	Iterations    int
}

// filterUnsteady approximates unsteady flight by smoothing accelerations:
// flight speed is treated as a first-order inertial process with lag
// tauI seconds. The smoothing is applied to the velocity components
// (it is a linear process; speed in polar coordinates is not), on a
// uniform fine grid, then decimated back.
func filterUnsteady(
	tauI float64,
	rElapsed, timeFine []float64,
	rDt float64,
	speedSteady, glideSteadyRad []float64,
) ([]float64, []float64) {
	n := len(speedSteady)
	speedUnsteady := make([]float64, n)
	glideUnsteadyDeg := make([]float64, n)
	if tauI == 0 {
		copy(speedUnsteady, speedSteady)
		for i := range glideSteadyRad {
			glideUnsteadyDeg[i] = glideSteadyRad[i] * rad2deg
		}
		return speedUnsteady, glideUnsteadyDeg
	}
	tauX := int(math.Trunc(math.Max(tauI, 1.0) / rDt)) // protect trifilt
	if tauX < 1 {
		tauX = 1
	}
	hSpd := make([]float64, n)
	wSpd := make([]float64, n)
	for i := range speedSteady {
		hSpd[i] = speedSteady[i] * math.Cos(glideSteadyRad[i])
		wSpd[i] = speedSteady[i] * math.Sin(glideSteadyRad[i])
	}
	hFine := Pchip(rElapsed, hSpd, timeFine)
	hFilt := Trifilt(hFine, tauX)
	hUnstdy := Pchip(timeFine, hFilt, rElapsed)

	wFine := Pchip(rElapsed, wSpd, timeFine)
	wFilt := Trifilt(wFine, tauX)
	wUnstdy := Pchip(timeFine, wFilt, rElapsed)

	for i := 0; i < n; i++ {
		speedUnsteady[i] = math.Hypot(hUnstdy[i], wUnstdy[i])
		glideUnsteadyDeg[i] = math.Atan2(wUnstdy[i], hUnstdy[i]) * rad2deg
	}
	return speedUnsteady, glideUnsteadyDeg
}

// InitSpeedQc builds the initial speed QC vector from the salinity QC
// (speed depends on salinity through buoyancy) plus compass timeouts.
func InitSpeedQc(np int, salinCorQc []QcFlag, pitchDeg []float64, sink *QcLog) ([]QcFlag, []int) {
	speedQc := InitQcVector(np, QcGood)
	InheritQc(salinCorQc, speedQc, "corrected salin", "speed", sink)
	var badPitch []int
	for i := 0; i < np; i++ {
		if math.IsNaN(pitchDeg[i]) {
			badPitch = append(badPitch, i)
		}
	}
	AssertQc(QcBad, speedQc, badPitch, "pitch timeout", sink)
	return speedQc, BadQcIndices(speedQc)
}

// take gathers v at the given indices.
func take(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for j, i := range idx {
		out[j] = v[i]
	}
	return out
}

// scatter writes src back into dst at the given indices.
func scatter(dst []float64, idx []int, src []float64) {
	for j, i := range idx {
		dst[i] = src[j]
	}
}

// indexI maps reduced-space indices through valid back to full space.
func indexI(valid, reduced []int) []int {
	out := make([]int, len(reduced))
	for j, i := range reduced {
		out[j] = valid[i]
	}
	return out
}

// TsvIterative reconciles corrected salinity with the glider speed that
// salinity implies, iterating the thermal-inertia correction and the
// hydrodynamic model to a consistent fixed point.
//
// The cyclic-looking dependency between corrected salinity and speed is
// a fixed-point iteration: each pass recomputes the conductivity-cell
// flushing (a function of speed), the cell-wall temperature anomaly, the
// recovered salinity, the buoyancy it implies, and finally the speed the
// buoyancy implies. The loop terminates when successive speed estimates
// agree to spdDiffThreshold, or after itermax passes.
func TsvIterative(
	elapsed []float64,
	startOfClimbI int,
	tempInitCor []float64, tempInitCorQc []QcFlag,
	condInitCor []float64, condInitCorQc []QcFlag,
	salinInitCor []float64, salinInitCorQc []QcFlag,
	pressure []float64,
	pitchDeg []float64,
	cc *CalibConsts,
	directives *ProfileDirectives,
	volume []float64,
	opts TsvOptions,
	gsmSpeed []float64, gsmGlideDeg []float64,
	modes *ModeSet,
	sink *QcLog,
) *TsvResult {
	np := len(elapsed)
	fullI := lo.Range(np)

	res := &TsvResult{
		TempCor:       append([]float64(nil), tempInitCor...),
		TempCorQc:     append([]QcFlag(nil), tempInitCorQc...),
		SalinCor:      append([]float64(nil), salinInitCor...),
		SalinCorQc:    append([]QcFlag(nil), salinInitCorQc...),
		Density:       nanSlice(np),
		DensityInsitu: nanSlice(np),
		Buoyancy:      nanSlice(np),
	}
	tempCor := res.TempCor
	tempCorQc := res.TempCorQc
	salinCor := res.SalinCor
	salinCorQc := res.SalinCorQc

	// Our initial guess serves as the first final speed; HDM refines it.
	finalSpeed := append([]float64(nil), gsmSpeed...)
	finalGlideDeg := append([]float64(nil), gsmGlideDeg...)

	// Find bad salinities but let the caller nail them: if we reduce over
	// these points an interpolation in full space could replace NaN and
	// QC_BAD tags inappropriately. The caller gets the last word.
	ManualQc(directives, "bad_salinity", "salin_QC_BAD", QcBad, salinCorQc, "salinity", sink)
	uncorrectable := FindQc(salinCorQc, append([]QcFlag{QcMissing}, BadQcValues...))
	for i := 0; i < np; i++ {
		// instrument dropouts leave NaN without a bad tag
		if math.IsNaN(salinInitCor[i]) || math.IsNaN(tempInitCor[i]) || math.IsNaN(condInitCor[i]) {
			uncorrectable = append(uncorrectable, i)
		}
	}
	uncorrectable = lo.Uniq(uncorrectable)
	sort.Ints(uncorrectable)

	speedQc, badSpeed := InitSpeedQc(np, salinCorQc, pitchDeg, sink)
	res.SpeedQc = speedQc
	uncorrectable = lo.Union(uncorrectable, badSpeed)
	sort.Ints(uncorrectable)

	for _, i := range uncorrectable {
		salinCor[i] = math.NaN()
		finalSpeed[i] = math.NaN()
		finalGlideDeg[i] = math.NaN()
	}
	// restart from this state on every reduction
	tempQcSnapshot := append([]QcFlag(nil), tempInitCorQc...)
	salinQcSnapshot := append([]QcFlag(nil), salinCorQc...)

	var stalled []int
	for i := 0; i < np; i++ {
		if finalSpeed[i] >= cc.MaxStallSpeed || finalSpeed[i] <= cc.MinStallSpeed {
			stalled = append(stalled, i)
		}
	}

	earliestTime := fill(np, elapsed[0])
	startOfClimbTime := elapsed[startOfClimbI]
	for i := startOfClimbI; i < np; i++ {
		earliestTime[i] = startOfClimbTime
	}

	pitchRad := make([]float64, np)
	for i := range pitchDeg {
		pitchRad[i] = pitchDeg[i] * deg2rad
	}

	performTMC := opts.PerformThermalInertia
	if modes == nil || modes.Modes == 0 || cc.SgCtType == 4 {
		performTMC = false
	}
	if !cc.SbectUnpumped && performTMC {
		// The pumped GPCTD reuses the unpumped cell model with the flow
		// fixed at the pump rate, which is unlikely to be correct.
		log.Println("GPCTD thermal-inertia correction uses the unpumped cell model with fixed flow; treat results with care")
	}

	// geometry-derived quantities
	sbectBm := (cc.SbectRm - cc.SbectRw) / cc.SbectXm // slope of (conical) mouth opening
	sbectVolMouth := math.Pi * cc.SbectXm * (cc.SbectRw*cc.SbectRw +
		cc.SbectRw*sbectBm*cc.SbectXm + sbectBm*sbectBm*cc.SbectXm*cc.SbectXm/3)
	sbectVolWide := math.Pi * cc.SbectRw * cc.SbectRw * cc.SbectXw
	sbectVolMouthWide := sbectVolMouth + sbectVolWide
	sbectAreaNarrow := math.Pi * cc.SbectRn * cc.SbectRn
	sbectVolNarrow := sbectAreaNarrow * cc.SbectCellLength

	// C_d0 = 1.2 in the Feb 2006 cell head vs flume speed regressions;
	// the gun mounting scales it with the mouth area ratio.
	const originalCd0 = 1.2
	// flume regressions are operative between these attack angles
	const minAttackAngle = 0.5  // [deg]
	const maxAttackAngle = 10.0 // [deg]

	// we must iterate if the CT is unpumped and the modal TMC is in use
	iterativeScheme := cc.SbectUnpumped && performTMC
	reduceNow := true // likely to have initial QC issues
	recomputeTsInterpolation := true
	var rExtrapolated []int
	maxTempCDiff := 0.0

	const tauI = 20.0            // estimated lag [s] of unsteady solution behind steady speed
	const spdDiffThreshold = 0.1 // [cm/s] between iterations
	const itermax = 21

	previousMaxResidual := 1000000.0
	converged := false
	var interpTs []int
	var fullSuspects []int

	validI := fullI
	var rNp int
	var rElapsed, rTempCor, rCondCor, rPressure, rEarliest, rVolume []float64
	var rPitchDeg, rPitchRad, rSpeed, rGlideDeg []float64
	var timeFine []float64
	var rDt float64
	var residualSpeedDiff []float64
	maxResidualSpeed := 0.0

	loop := 0
	for ; loop < itermax; loop++ {
		if reduceNow {
			// In salinity, bad points come from bad T or C and, for an
			// unpumped CT, from stalls and recoveries in the tube. The TMC
			// cannot handle stalled tube speeds, so solve over the reduced
			// set where salinity is not bad.
			recomputeTsInterpolation = true
			reduceNow = false

			// mark QC_INTERPOLATED points afresh
			copy(tempCorQc, tempQcSnapshot)
			copy(salinCorQc, salinQcSnapshot)

			reduceI := uncorrectable
			if cc.SbectUnpumped {
				reduceI = lo.Union(reduceI, stalled)
				sort.Ints(reduceI)
			}
			validI = lo.Without(fullI, reduceI...)
			rNp = len(validI)
			if rNp < 3 {
				// insufficient valid points to continue
				validI = fullI
				break // can't converge
			}

			rElapsed = take(elapsed, validI)
			// Scale for the fine time grid: eng files are nearest-second;
			// scicon and gpctd need finer.
			minRTime := math.Inf(1)
			for i := 1; i < rNp; i++ {
				if d := rElapsed[i] - rElapsed[i-1]; d < minRTime {
					minRTime = d
				}
			}
			for _, dt := range []float64{1, 0.5, 0.25, 0.1} {
				rDt = dt
				if minRTime > dt {
					break
				}
			}
			timeFine = arange(math.Trunc(rElapsed[0]), math.Trunc(rElapsed[rNp-1]+1.0), rDt)

			rTempCor = take(tempCor, validI)
			rCondCor = take(condInitCor, validI)
			rPressure = take(pressure, validI)
			rEarliest = take(earliestTime, validI)
			rVolume = take(volume, validI)
			rPitchDeg = take(pitchDeg, validI)
			rPitchRad = take(pitchRad, validI)
			rSpeed = take(finalSpeed, validI)
			rGlideDeg = take(finalGlideDeg, validI)

			var stillStalled []int
			for i := 0; i < rNp; i++ {
				if rSpeed[i] == 0 {
					stillStalled = append(stillStalled, i)
				}
			}
			if len(stillStalled) > 0 {
				if cc.SbectUnpumped {
					log.Println("Found stalled points on reduced speed vector")
					break // return not converged
				}
				// GPCTD doesn't care about stalls, but the interstitial
				// calc below divides by speed
				if cc.GliderInterstitialLength > 0.0 {
					for _, i := range stillStalled {
						rSpeed[i] = 0.001
					}
				}
			}
		}

		// Viscosity of the water, which depends on temperature.
		// Miyake & Koizumi (1948) JMR, v7, 63-67, Table II Cl=19
		mu := make([]float64, rNp)
		nu := make([]float64, rNp)
		for i := 0; i < rNp; i++ {
			mu[i] = 1.88e-3 / (1 + 0.03222*rTempCor[i] + 0.0002377*rTempCor[i]*rTempCor[i])
			nu[i] = mu[i] / nominalOceanDensity // kinematic viscosity [m^2/s]
		}

		var rSalinCor []float64
		var timeA []float64
		if performTMC {
			uf := make([]float64, rNp)
			tau1 := make([]float64, rNp)
			speedMs := make([]float64, rNp)
			for i := range rSpeed {
				speedMs[i] = rSpeed[i] * cm2m
			}
			if cc.SbectUnpumped {
				thetaRad := make([]float64, rNp)
				attackDeg := make([]float64, rNp)
				for i := 0; i < rNp; i++ {
					thetaRad[i] = rGlideDeg[i] * deg2rad
					aa := rPitchDeg[i] - rGlideDeg[i] // defn
					// cap attack angles to where the flume regressions hold
					if aa > maxAttackAngle {
						aa = maxAttackAngle
					} else if aa < -maxAttackAngle {
						aa = -maxAttackAngle
					} else if aa >= 0 && aa < minAttackAngle {
						aa = minAttackAngle
					} else if aa < 0 && aa > -minAttackAngle {
						aa = -minAttackAngle
					}
					attackDeg[i] = aa
				}

				// Conductivity cell flushing: Poiseuille regime at slow
				// speeds, pipe flow at high, blended per the flume
				// measurements. Speed and attack angle at the cell mouth
				// from the 19 June 2006 mid-cell flume runs.
				const nnp = 1.5 // fits the measured tube flow rates
				for i := 0; i < rNp; i++ {
					speedAtCt := (1.0296 - 0.0019311*attackDeg[i]) * speedMs[i]
					attackAtCt := -3.2632 + 0.577*attackDeg[i]
					cd := cc.SbectCd0 * (1 - 0.0074141*attackAtCt/originalCd0)
					uf[i] = speedAtCt * math.Pow(
						1+math.Pow(16*cc.SbectCellLength*nu[i]/(cc.SbectRn*cc.SbectRn*cd*speedAtCt), nnp),
						-1/nnp)
				}

				// Transit time lag from thermistor to cell mouth. For the
				// original CT the thermistor hits the sampled water after
				// the conductivity tube, so the lag is positive on dives
				// and negative on climbs.
				for i := 0; i < rNp; i++ {
					if thetaRad[i] != 0.0 && rPitchDeg[i] != 0.0 {
						tau1[i] = (cc.SbectXT + cc.SbectZT/math.Tan(rPitchRad[i])) *
							math.Sin(rPitchRad[i]) / (speedMs[i] * math.Sin(thetaRad[i]))
					}
					if !isFinite(tau1[i]) {
						tau1[i] = 0.0 // no transit lag where stalled
					}
				}
			} else {
				for i := 0; i < rNp; i++ {
					uf[i] = cc.SbectGpctdUf * cm2m
					tau1[i] = cc.SbectGpctdTau1
				}
			}

			// cell flushing volume flux and its history
			qf := make([]float64, rNp)
			for i := range uf {
				qf[i] = sbectAreaNarrow * uf[i]
			}
			volEc := cumTrapz(qf, rElapsed)

			// Average temperature within the narrow sample section and the
			// average time at which that water passed the thermistor,
			// assuming no wall heat exchange. Trapezoidal rule over nsegs
			// segments through the tube.
			const nsegs = 5
			tempA := make([]float64, rNp)
			timeA = make([]float64, rNp)
			for iseg := 0; iseg <= nsegs; iseg++ {
				volIseg := sbectVolMouthWide + sbectVolNarrow*float64(iseg)/nsegs
				timeIseg := fill(rNp, rElapsed[0])
				var volOk []int
				for i := 0; i < rNp; i++ {
					if volEc[i] > volIseg {
						volOk = append(volOk, i)
					}
				}
				if len(volOk) > 0 {
					lagged := make([]float64, len(volOk))
					for j, i := range volOk {
						lagged[j] = volEc[i] - volIseg
					}
					interp := Pchip(volEc, rElapsed, lagged)
					for j, i := range volOk {
						timeIseg[i] = interp[j]
					}
				}
				// entrance time of each volume segment, offset by geometry
				timeSampled := make([]float64, rNp)
				for i := 0; i < rNp; i++ {
					timeSampled[i] = timeIseg[i] - tau1[i]
					if timeSampled[i] < rEarliest[i] {
						// cap at start of dive or climb
						timeSampled[i] = rEarliest[i]
					}
				}
				tempIseg := Pchip(rElapsed, rTempCor, timeSampled)
				segWt := 1.0 / nsegs
				if iseg == 0 || iseg == nsegs {
					segWt = 0.5 / nsegs
				}
				for i := 0; i < rNp; i++ {
					tempA[i] += segWt * tempIseg[i]
					timeA[i] += segWt * timeIseg[i]
				}
			}

			// Where time_a stood still, interpolate assuming linear heating
			// across the surrounding anchors.
			patchZeroTimeRuns(timeA)

			// Map onto a uniform fine time grid. Force a 1 s grid: solving
			// on a non-uniform grid can ring or produce extreme corrections
			// on ~1 s scicon dives.
			const mDt = 1.0
			rDt = mDt // for unsteady flight below
			mTimeFine := arange(math.Trunc(rElapsed[0]), math.Trunc(rElapsed[rNp-1]+1.0), mDt)
			mpFine := len(mTimeFine)
			if mpFine < 2 {
				log.Println("Sample span too short for the thermal-inertia fine grid")
				break
			}
			tempAFine := Pchip(rElapsed, tempA, mTimeFine)

			dTadt := make([]float64, mpFine)
			dTadt[0] = (tempAFine[1] - tempAFine[0]) / mDt
			dTadt[mpFine-1] = (tempAFine[mpFine-1] - tempAFine[mpFine-2]) / mDt
			for i := 1; i < mpFine-1; i++ {
				dTadt[i] = (tempAFine[i+1] - tempAFine[i-1]) / (2 * mDt)
			}

			// Thermal boundary layer parameterization for large Prandtl
			// number; Eqns 8a/8b. The sqrt(L*nu/speed) term is
			// L/sqrt(Re); the expressions in r encode the leading geometry
			// before the mouth (collapse to 2/3 when the inlet factor is 0).
			r := cc.SbectInletBlFactor * (cc.SbectXw + cc.SbectXm) / cc.SbectCellLength
			geomI := (cc.SbectRw/cc.SbectRn-1)*math.Sqrt(r) +
				(2.0/3.0)*(math.Pow(1+r, 1.5)-math.Pow(r, 1.5))
			geomE := (2.0 / 3.0) * (math.Pow(1+r, 1.5) - math.Pow(r, 1.5))

			deltaT := make([]float64, rNp)
			deltaTU := make([]float64, rNp)
			blWeight := make([]float64, rNp)
			bi := make([]float64, rNp)
			bo := make([]float64, rNp)
			for i := 0; i < rNp; i++ {
				pr13 := math.Pow(nu[i]/kappaWater, -1.0/3.0)
				deltaT[i] = (1.0 / cc.SbectNu0i) * 1.73 * pr13 * geomI *
					math.Sqrt(cc.SbectCellLength*nu[i]/uf[i])
				deltaTU[i] = (1.0 / cc.SbectNu0e) * 1.73 * pr13 * geomE *
					math.Sqrt(cc.SbectCellLength*nu[i]/(rSpeed[i]*cm2m))

				// cell-volume averaged weight applied to the wall
				// temperature; quadratic boundary layer model
				// [Schlichting 1955 eq 14.32-34]
				if deltaT[i] > cc.SbectCellLength {
					// low speed, thick thermal boundary layer
					blWeight[i] = 1 - 0.5*cc.SbectRn/deltaT[i]
				} else {
					// high speed, thin thermal boundary layer
					blWeight[i] = (2.0/3.0)*deltaT[i]/cc.SbectRn -
						(1.0/6.0)*(deltaT[i]*deltaT[i])/(cc.SbectRn*cc.SbectRn)
				}

				// wall Biot numbers, Eqns 9a/9b
				bi[i] = 0.332 * (2.0 / 3.0) * 1.73 * thermalCondSw * cc.SbectRn /
					(thermalCondGlass * deltaT[i])
				bo[i] = 0.332 * (2.0 / 3.0) * 1.73 * thermalCondSw * cc.SbectRn /
					(thermalCondPolyurethane * deltaTU[i])
			}

			tempModes := make([]float64, mpFine)
			tauMode := make([]float64, rNp)
			aMode := make([]float64, rNp)
			for mode := 0; mode < modes.Modes; mode++ {
				for i := 0; i < rNp; i++ {
					tauMode[i], aMode[i] = modes.Interp(mode, bi[i], bo[i])
				}
				tauFine := Pchip(rElapsed, tauMode, mTimeFine)
				aFine := Pchip(rElapsed, aMode, mTimeFine)

				// First-order recurrence for this mode's wall heat anomaly,
				// strictly left-to-right on the fine grid.
				priorTau := tauFine[0]
				priorTau2 := 2 * priorTau
				priorX := 0.0
				priorAdT := aFine[0] * dTadt[0]
				for ii := 1; ii < mpFine; ii++ {
					tauNow := tauFine[ii]
					tau2 := 2 * tauNow
					adT := aFine[ii] * dTadt[ii]
					priorX = priorX*tauNow*(priorTau2-mDt)/(priorTau*(tau2+mDt)) -
						mDt*tauNow*(priorAdT+adT)/(tau2+mDt)
					tempModes[ii] += priorX
					priorTau = tauNow
					priorTau2 = tau2
					priorAdT = adT
				}
			}

			// Wall temperature back on the data time base, then the
			// corrected in-cell temperature given the boundary layer.
			tempWFine := make([]float64, mpFine)
			for i := range tempModes {
				tempWFine[i] = tempAFine[i] + tempModes[i]
			}
			tempW := Pchip(mTimeFine, tempWFine, rElapsed)
			tempC := make([]float64, rNp)
			maxTempCDiff = 0
			for i := 0; i < rNp; i++ {
				tempC[i] = tempA[i] + (tempW[i]-tempA[i])*blWeight[i]
				if d := math.Abs(tempC[i] - tempA[i]); d > maxTempCDiff {
					maxTempCDiff = d
				}
			}
			res.MaxTempCDiff = maxTempCDiff

			// Salinity of the water actually in the tube at effective
			// time_a, from the measured conductivity at the corrected
			// temperature; then mapped back to measurement time to get the
			// salinity at the thermistor.
			salinC := make([]float64, rNp)
			for i := 0; i < rNp; i++ {
				salinC[i] = SwSalt(rCondCor[i]/C3515, tempC[i], rPressure[i])
			}
			rSalinCor = Pchip(timeA, salinC, rElapsed)
			// time_a can end well before the measurement grid; extrapolated
			// points are nonsense, the initial guess is a better answer
			rExtrapolated = nil
			for i := 0; i < rNp; i++ {
				if rElapsed[i] > timeA[rNp-1] {
					rExtrapolated = append(rExtrapolated, i)
					rSalinCor[i] = salinInitCor[validI[i]]
				}
			}

			if recomputeTsInterpolation {
				// CCE's heuristic for overdriven inertia corrections
				const tempCorrThreshold = 0.075 // [degC]
				var rSuspects []int
				for i := 0; i < rNp; i++ {
					if math.Abs(tempC[i]-tempA[i]) >= tempCorrThreshold {
						rSuspects = append(rSuspects, i)
					}
				}
				fullSuspects = indexI(validI, rSuspects)
				if len(fullSuspects) > 0 {
					scatter(salinCor, validI, rSalinCor) // intermediate results
					interpTs = tsInterpolate(
						tempCor, tempCorQc, salinCor, salinCorQc,
						fullSuspects, uncorrectable, validI, startOfClimbI,
						opts.InterpolateExtremeTmcPoints, directives, sink)
					recomputeTsInterpolation = false
				}
			}
		} else {
			// no thermal-inertia correction
			rSalinCor = make([]float64, rNp)
			for i := 0; i < rNp; i++ {
				rSalinCor[i] = SwSalt(rCondCor[i]/C3515, rTempCor[i], rPressure[i])
			}
			rExtrapolated = nil
		}

		scatter(salinCor, validI, rSalinCor)

		// Manual salinity interpolation, then interpolate temperature and
		// salinity across those regions in full space. Temperature cannot
		// be assumed monotonic in the interpolated intervals, so it is
		// interpolated against time first and salinity against it.
		interpSalin := ManualQc(directives, "interp_salinity", "salin_QC_INTERPOLATED",
			QcInterpolated, salinCorQc, "salinity", sink)
		AssertQc(QcInterpolated, tempCorQc, interpSalin, "TS temperature interpolation", sink)
		interpTemp := InterpolateDataQc(tempCor, elapsed, interpSalin, "temperature",
			directives, tempCorQc, QcProbablyBad, sink)
		copy(tempCor, interpTemp)
		interpSal := InterpolateDataQc(salinCor, tempCor, interpSalin, "salinity",
			directives, salinCorQc, QcProbablyBad, sink)
		copy(salinCor, interpSal)
		rSalinCor = take(salinCor, validI)

		// Buoyancy from displaced volume, mass and in situ density.
		// Because of the isopycnal hull, potential density (P=0) is kept
		// for sigma_t; the in situ density drives the buoyancy.
		density := make([]float64, rNp)
		densityInsitu := make([]float64, rNp)
		buoyancy := make([]float64, rNp)
		sigmaT := make([]float64, rNp)
		for i := 0; i < rNp; i++ {
			density[i] = SwDens(rSalinCor[i], rTempCor[i], 0)
			densityInsitu[i] = SwDens(rSalinCor[i], rTempCor[i], rPressure[i])
			buoyancy[i] = kg2g * (densityInsitu[i]*rVolume[i]*1.0e-6 - cc.Mass)
			sigmaT[i] = density[i] - 1000.0
		}
		scatter(res.Density, validI, density)
		scatter(res.DensityInsitu, validI, densityInsitu)

		// Interstitial buoyancy from the flooded fairing: steady-state
		// fluid exchange of old water with new through the nose hole,
		// no mixing or burping.
		interstitial := make([]float64, rNp)
		if cc.GliderInterstitialLength > 0.0 {
			const nnp = 1.5
			uEn := make([]float64, rNp)
			qEn := make([]float64, rNp)
			for i := 0; i < rNp; i++ {
				uEn[i] = cm2m * rSpeed[i] / math.Pow(
					1+math.Pow(m2cm*(16*nu[i]*cc.GliderInterstitialLength/(cc.GliderREn*cc.GliderREn))/rSpeed[i], nnp),
					1/nnp)
				qEn[i] = math.Pi * cc.GliderREn * cc.GliderREn * uEn[i]
			}
			volEn := cumTrapz(qEn, rElapsed)
			tEn := fill(rNp, rElapsed[0])
			var flushing []int
			for i := 0; i < rNp; i++ {
				if volEn[i] > cc.GliderInterstitialVolume {
					flushing = append(flushing, i)
				}
			}
			if len(flushing) > 0 {
				lagged := make([]float64, len(flushing))
				for j, i := range flushing {
					lagged[j] = volEn[i] - cc.GliderInterstitialVolume
				}
				interp := Pchip(volEn, rElapsed, lagged)
				for j, i := range flushing {
					tEn[i] = interp[j]
				}
			}
			sigmaTEx := Pchip(rElapsed, sigmaT, tEn) // density of water exiting
			dmdt := make([]float64, rNp)
			for i := 0; i < rNp; i++ {
				dmdt[i] = qEn[i] * (sigmaT[i] - sigmaTEx[i])
			}
			drhodt := ctr1stDiff(sigmaT, rElapsed)
			integrand := make([]float64, rNp)
			for i := 0; i < rNp; i++ {
				integrand[i] = dmdt[i] - drhodt[i]*cc.GliderInterstitialVolume
			}
			cum := cumTrapz(integrand, rElapsed)
			for i := 0; i < rNp; i++ {
				interstitial[i] = -kg2g * cum[i]
			}
		}

		// Attached-wake buoyancy from filtered density.
		wake := make([]float64, rNp)
		if cc.GliderWakeEntryThickness > 0.0 {
			wakeEntryArea := math.Pi * (math.Pow(cc.GliderRFair+cc.GliderWakeEntryThickness, 2) -
				cc.GliderRFair*cc.GliderRFair)
			tauWakeSum := 0.0
			for i := 0; i < rNp; i++ {
				tauWakeSum += cc.GliderVolWake / (wakeEntryArea * rSpeed[i] * cm2m)
			}
			tauWakeAvg := math.Trunc(math.Max(tauWakeSum/float64(rNp), 1.0)) // protect trifilt
			sigmaTFine := Pchip(rElapsed, sigmaT, timeFine)
			sigmaTFiltered := Trifilt(sigmaTFine, int(tauWakeAvg))
			sigmaTWake := Pchip(timeFine, sigmaTFiltered, rElapsed)
			for i := 0; i < rNp; i++ {
				wake[i] = -kg2g * (sigmaTWake[i] - sigmaT[i]) * cc.GliderVolWake
			}
		}

		buoyancyCorrected := make([]float64, rNp)
		for i := 0; i < rNp; i++ {
			buoyancyCorrected[i] = buoyancy[i] + interstitial[i] + wake[i]
		}
		scatter(res.Buoyancy, validI, buoyancyCorrected)

		// Hydrodynamic model with buoyancy and observed pitch, then smooth
		// accelerations: the steady solution ignores the small constant
		// accelerations from internal waves, approximated here as a
		// first-order lag rather than solving the fuller flight equations
		// with acceleration terms (too slow for the effect gained).
		hmConverged, speedSteady, glideSteadyRad, fvStalled := HydroModel(buoyancyCorrected, rPitchDeg, cc)
		if !hmConverged {
			log.Printf("Unable to converge during hydro-model calculations (%d)", loop)
		}
		speedUnsteady, glideUnsteadyDeg := filterUnsteady(
			tauI, rElapsed, timeFine, rDt, speedSteady, glideSteadyRad)
		// per CCE, stalls are not recomputed from unsteady speed
		for _, i := range fvStalled {
			speedUnsteady[i] = 0.0
			glideUnsteadyDeg[i] = 0.0
		}

		residualSpeedDiff = make([]float64, rNp)
		maxResidualSpeed = 0
		for i := 0; i < rNp; i++ {
			residualSpeedDiff[i] = math.Abs(speedUnsteady[i] - rSpeed[i])
			if residualSpeedDiff[i] > maxResidualSpeed {
				maxResidualSpeed = residualSpeedDiff[i]
			}
		}

		if opts.UseAveragedSpeeds {
			// blend with the previous estimate to dampen stiff extrema;
			// ensures a non-zero speed everywhere
			for i := 0; i < rNp; i++ {
				rSpeed[i] = (rSpeed[i] + speedUnsteady[i]) / 2.0
				rGlideDeg[i] = (rGlideDeg[i] + glideUnsteadyDeg[i]) / 2.0
			}
		} else {
			copy(rSpeed, speedUnsteady)
			copy(rGlideDeg, glideUnsteadyDeg)
		}
		scatter(finalSpeed, validI, rSpeed)
		scatter(finalGlideDeg, validI, rGlideDeg)

		if len(fvStalled) > 0 {
			fullStalled := indexI(validI, fvStalled)
			log.Printf("TSV: %2d %d stalled points %s", loop, len(fullStalled), SuccinctElts(fullStalled))
			// sometimes removing points is not enough to ensure convergence
			stalled = lo.Uniq(lo.Union(stalled, fullStalled))
			sort.Ints(stalled)
			reduceNow = iterativeScheme
		}

		if !iterativeScheme || maxResidualSpeed <= spdDiffThreshold {
			converged = true
			break
		}
		if maxResidualSpeed > previousMaxResidual {
			log.Printf("New TSV residual %f worse than %f on iteration %d",
				maxResidualSpeed, previousMaxResidual, loop)
		}
		previousMaxResidual = maxResidualSpeed
	}
	if !converged && len(residualSpeedDiff) > 0 {
		var bigResiduals []int
		for i := range residualSpeedDiff {
			if residualSpeedDiff[i] > spdDiffThreshold {
				bigResiduals = append(bigResiduals, i)
			}
		}
		avg := ""
		if opts.UseAveragedSpeeds {
			avg = " using averaged speeds"
		}
		log.Printf("Unable to converge on TSV corrections at %s%s",
			SuccinctElts(indexI(validI, bigResiduals)), avg)
	}
	log.Printf("TSV exiting after %d iterations", loop)
	res.Iterations = loop

	if maxTempCDiff > 0.5 {
		// Large temperature variance on the final loop: likely ringing in
		// the modal solution on a very fine sampling grid with large
		// temperature changes. Recompute without the thermal-inertia
		// correction.
		log.Printf("Excessive thermal-inertia temperature variance (%.2fC) -- recomputing without thermal-inertia calculations", maxTempCDiff)
		directives.Suggest(fmt.Sprintf(
			"no_correct_thermal_inertia_effects %% high temperature correction %.2fC", maxTempCDiff))
		rerun := opts
		rerun.PerformThermalInertia = false
		rerun.InterpolateExtremeTmcPoints = false
		return TsvIterative(elapsed, startOfClimbI,
			tempInitCor, tempInitCorQc, condInitCor, condInitCorQc,
			salinInitCor, salinInitCorQc, pressure, pitchDeg,
			cc, directives, volume, rerun, gsmSpeed, gsmGlideDeg, modes, sink)
	}

	if len(rExtrapolated) > 0 {
		AssertQc(QcProbablyBad, salinCorQc, indexI(validI, rExtrapolated),
			"TS bad extrapolation", sink)
	}
	if cc.SbectUnpumped {
		AssertQc(QcProbablyBad, salinCorQc, stalled,
			"stalls avoid thermal-inertia salinity correction", sink)
	}

	res.SpeedCmS = finalSpeed
	res.GlideAngleRad = make([]float64, np)
	for i := range finalGlideDeg {
		res.GlideAngleRad[i] = finalGlideDeg[i] * deg2rad
	}
	res.Converged = converged

	if !opts.InterpolateExtremeTmcPoints && len(interpTs) > 0 {
		for _, run := range contiguousRuns(interpTs) {
			preIndex := run[0]
			postIndex := run[len(run)-1]
			anyGood := false
			for i := preIndex; i <= postIndex; i++ {
				if salinCorQc[i] == QcGood {
					anyGood = true
					break
				}
			}
			if anyGood {
				ipIV := lo.RangeFrom(preIndex, postIndex-preIndex+1)
				directives.Suggest(fmt.Sprintf(
					"interp_salinity data_points in_between %d %d %% suspect thermal-inertia points %s",
					preIndex-1, postIndex+1,
					SuccinctElts(lo.Intersect(ipIV, fullSuspects))))
			}
		}
	}
	return res
}

// patchZeroTimeRuns repairs places where the cumulative sampling time
// stood still (negative tau or zero flow) by linear interpolation across
// the surrounding anchors.
func patchZeroTimeRuns(timeA []float64) {
	n := len(timeA)
	var itiv []int
	for i := 0; i < n-1; i++ {
		if timeA[i+1]-timeA[i] == 0.0 {
			itiv = append(itiv, i)
		}
	}
	if len(itiv) == 0 {
		return
	}
	for _, run := range contiguousRuns(itiv) {
		first := run[0]
		last := run[len(run)-1] + 2 // the first sample after the final flat pair
		if last > n-1 {
			last = n - 1
		}
		count := last - first + 1
		if count < 2 {
			continue
		}
		t0 := timeA[first]
		t1 := timeA[last]
		for j := 0; j < count; j++ {
			timeA[first+j] = t0 + (t1-t0)*float64(j)/float64(count-1)
		}
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
