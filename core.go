package sgdive

import (
	"fmt"
	"log"
	"math"
)

// ProcessDive runs the full per-dive pipeline: conditioning, raw QC,
// the initial flight guess, the iterative TSV solver, displacement and
// depth-averaged current, and final QC reconciliation.
//
// One dive is one call; the core holds no state between dives beyond
// the immutable mode-table cache. Calibration and directives are
// borrowed read-only (the directives accumulate suggestions). The call
// always returns a Results; failures are folded into ProcessingError.
func ProcessDive(dive *DiveRecord, cc *CalibConsts, directives *ProfileDirectives) *Results {
	res := &Results{
		ID:         dive.ID,
		DiveNumber: dive.DiveNumber,
		QcLog:      &QcLog{},
		Trace:      NewTrace(fmt.Sprintf("dive %d", dive.DiveNumber)),
	}
	defer func() {
		// a failure is never an exception propagated past the core boundary
		if r := recover(); r != nil {
			log.Printf("Processing failed for dive %d: %v", dive.DiveNumber, r)
			res.Errors = append(res.Errors, fmt.Sprint(r))
			res.ProcessingError = true
		}
		res.QcHistory = res.QcLog.History(dive.Np())
		res.Suggestions = directives.Suggestions
	}()

	if directives == nil {
		directives = NewProfileDirectives(dive.DiveNumber)
	}
	sink := res.QcLog

	if missing := cc.Validate(); len(missing) > 0 {
		log.Printf("Missing calibration constants: %v", missing)
		res.Errors = append(res.Errors, fmt.Sprintf("%v: %v", ErrMissingCalib, missing))
		res.ProcessingError = true
		return res
	}

	// structural QA first: downstream code assumes consistent grids
	res.Quality = dive.QInfo()
	if !res.Quality.ConsistentGrids {
		log.Printf("Dive %d telemetry grid lengths are inconsistent", dive.DiveNumber)
	}
	if res.Quality.DuplicateTimes {
		log.Printf("Dive %d has %d duplicate sample times", dive.DiveNumber, len(res.Quality.Duplicates))
	}

	if directives.EvalPredicate("skip_profile", false) {
		log.Printf("Dive %d skipped by directive", dive.DiveNumber)
		res.SkippedProfile = true
		return res
	}

	np := dive.Np()
	if np < 3 {
		res.Errors = append(res.Errors, ErrTooFewSamples.Error())
		res.ProcessingError = true
		return res
	}

	timeS, _ := EnsureIncreasingTime(dive.TimeS, "vehicle time", 0)
	dive.TimeS = timeS
	res.TimeS = timeS

	log.Println("Conditioning raw vectors; extracting events")
	pf, err := Preflight(dive, cc, directives)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		res.ProcessingError = true
		return res
	}
	res.PressureDbar = pf.PressureDbar
	res.DepthM = pf.DepthM

	// the index vectors the directives may reference
	dataPoints := make([]float64, np)
	diveDepth := nanSlice(np)
	climbDepth := nanSlice(np)
	for i := 0; i < np; i++ {
		dataPoints[i] = float64(i)
		if i < pf.StartOfClimbI {
			diveDepth[i] = pf.DepthM[i]
		} else {
			climbDepth[i] = pf.DepthM[i]
		}
	}
	directives.Register("data_points", dataPoints)
	directives.Register("depth", pf.DepthM)
	directives.Register("time", timeS)
	directives.Register("dive_depth", diveDepth)
	directives.Register("climb_depth", climbDepth)

	// Raw CT onto the working grid, with sensor biases and the first
	// order thermistor lag correction.
	var temp, cond []float64
	var tempQc, condQc []QcFlag
	if cc.SgCtType == 4 {
		log.Println("Applying legato corrections")
		rawPress := dive.LegatoPressure
		if len(rawPress) != np {
			rawPress = dive.PressureDbar
		}
		condTemp := dive.LegatoCondTemp
		if len(condTemp) != np {
			condTemp = dive.TempRaw
		}
		press, despiked := SmoothLegatoPressure(rawPress, timeS, 2.0, 0.5)
		lr := LegatoCorrectCT(cc, timeS, press, dive.TempRaw,
			InitQcVector(np, QcGood), dive.CondRaw, InitQcVector(np, QcGood),
			condTemp, sink)
		AssertQc(QcInterpolated, lr.TemperatureQc, despiked, "despiked pressure", sink)
		temp, tempQc = lr.Temperature, lr.TemperatureQc
		condQc = lr.ConductivityQc
		// back to S/m so the rest of the pipeline shares one convention
		cond = make([]float64, np)
		for i := 0; i < np; i++ {
			cond[i] = lr.Conductivity[i] * 10.0
		}
	} else {
		temp = thermistorLag(dive.TempRaw, timeS, cc)
		cond = make([]float64, np)
		for i := 0; i < np; i++ {
			temp[i] += cc.TempBias
			cond[i] = dive.CondRaw[i] + cc.CondBias
		}
		tempQc = InitQcVector(np, QcGood)
		condQc = InitQcVector(np, QcGood)
	}

	// instrument timeouts leave NaN behind
	var missingT, missingC []int
	for i := 0; i < np; i++ {
		if math.IsNaN(temp[i]) {
			missingT = append(missingT, i)
		}
		if math.IsNaN(cond[i]) {
			missingC = append(missingC, i)
		}
	}
	AssertQc(QcMissing, tempQc, missingT, "temperature missing", sink)
	AssertQc(QcMissing, condQc, missingC, "conductivity missing", sink)

	// manual raw QC
	ManualQc(directives, "bad_temperature", "temp_QC_BAD", QcBad, tempQc, "temperature", sink)
	ManualQc(directives, "bad_conductivity", "cond_QC_BAD", QcBad, condQc, "conductivity", sink)

	// raw salinity for the bounds check and the initial guess
	log.Println("Raw-data QC")
	salin := make([]float64, np)
	for i := 0; i < np; i++ {
		salin[i] = SwSalt(cond[i]/C3515, temp[i], pf.PressureDbar[i])
	}
	// the cell reads garbage while it is still draining at the surface
	var outOfWater []int
	for i := 0; i < np; i++ {
		if pf.DepthCtM[i] <= 0.1 {
			outOfWater = append(outOfWater, i)
		}
	}
	AssertQc(QcBad, condQc, outOfWater, "CT out of water", sink)

	// oversampled loggers pick up electronic noise worth filtering
	oversampled := np > 1 && (timeS[np-1]-timeS[0])/float64(np-1) < 2.0

	salinQc := InitQcVector(np, QcGood)
	QcChecks(temp, tempQc, cond, condQc, salin, salinQc, pf.DepthCtM,
		cc, cc.QcBoundAction, cc.QcSpikeAction, "raw ", oversampled, sink)

	if directives.EvalPredicate("detect_conductivity_anomalies", true) {
		log.Println("Scanning for conductivity anomalies")
		DetectCondAnomalies(temp, cond, pf.DepthCtM, timeS, pf.StartOfClimbI,
			pf.DflareM, pf.DsurfM, cc, directives, condQc, sink)
	}

	// cross inheritance before the solver: bad T or C makes S unusable
	InheritQc(tempQc, salinQc, "raw temp", "raw salinity", sink)
	InheritQc(condQc, salinQc, "raw cond", "raw salinity", sink)

	// Initial speed guess from vertical rate and pitch.
	log.Println("Computing initial flight guess")
	wObs := verticalRate(pf.DepthM, timeS)
	pitchRad := make([]float64, np)
	for i := range dive.PitchDeg {
		pitchRad[i] = dive.PitchDeg[i] * deg2rad
	}
	_, gsmSpeed, gsmTheta, _ := GlideSlope(wObs, pitchRad, cc)
	gsmGlideDeg := make([]float64, np)
	for i := range gsmTheta {
		gsmGlideDeg[i] = gsmTheta[i] * rad2deg
	}

	volume := HullVolume(temp, pf.PressureDbar, pf.VbdCC, cc)

	res.Trace.Array("time", timeS)
	res.Trace.Array("temp_lag", temp)
	res.Trace.Array("cond", cond)
	res.Trace.Array("press", pf.PressureDbar)
	res.Trace.Array("pitch", dive.PitchDeg)
	res.Trace.Array("salin_guess", salin)
	res.Trace.Array("speed_guess", gsmSpeed)

	opts := TsvOptions{
		PerformThermalInertia:       directives.EvalPredicate("correct_thermal_inertia_effects", true),
		InterpolateExtremeTmcPoints: directives.EvalPredicate("interp_suspect_thermal_inertia_salinities", false),
	}
	modes, err := LoadThermalInertiaModes(cc.SbectModes, "SGgun")
	if err != nil {
		log.Printf("%v; continuing without thermal-inertia correction", err)
		res.Errors = append(res.Errors, err.Error())
		opts.PerformThermalInertia = false
		modes = &ModeSet{}
	}

	log.Println("Solving temperature, salinity and velocity")
	tsv := TsvIterative(timeS, pf.StartOfClimbI,
		temp, tempQc, cond, condQc, salin, salinQc,
		pf.PressureDbar, dive.PitchDeg,
		cc, directives, volume, opts, gsmSpeed, gsmGlideDeg, modes, sink)
	if !tsv.Converged && !opts.UseAveragedSpeeds {
		// dampen oscillation by blending successive speed estimates
		log.Println("Re-running the solver with averaged speeds")
		rerun := opts
		rerun.UseAveragedSpeeds = true
		tsv2 := TsvIterative(timeS, pf.StartOfClimbI,
			temp, tempQc, cond, condQc, salin, salinQc,
			pf.PressureDbar, dive.PitchDeg,
			cc, directives, volume, rerun, gsmSpeed, gsmGlideDeg, modes, sink)
		if tsv2.Converged {
			tsv = tsv2
		}
	}
	if !tsv.Converged {
		directives.Suggest("skip_profile % nonconverged")
	}

	res.Converged = tsv.Converged
	res.Temperature = tsv.TempCor
	res.TemperatureQc = tsv.TempCorQc
	res.Conductivity = cond
	res.ConductivityQc = condQc
	res.Salinity = tsv.SalinCor
	res.SalinityQc = tsv.SalinCorQc
	res.Density = tsv.Density
	res.DensityInsitu = tsv.DensityInsitu
	res.Buoyancy = tsv.Buoyancy
	res.SpeedCmS = tsv.SpeedCmS
	res.GlideAngleRad = tsv.GlideAngleRad
	res.SpeedQc = tsv.SpeedQc

	// Final QC reconciliation: propagate the settled tags, then nail bad
	// points to NaN.
	log.Println("Final QC reconciliation")
	InheritQc(res.TemperatureQc, res.SalinityQc, "corrected temp", "corrected salinity", sink)
	InheritQc(res.ConductivityQc, res.SalinityQc, "corrected cond", "corrected salinity", sink)
	InheritQc(res.SalinityQc, res.SpeedQc, "corrected salin", "speed", sink)
	ApplyQcToData(res.Temperature, res.TemperatureQc)
	ApplyQcToData(res.Conductivity, res.ConductivityQc)
	ApplyQcToData(res.Salinity, res.SalinityQc)
	ApplyQcToData(res.SpeedCmS, res.SpeedQc)

	res.CtdQc = OverallQc(res.SalinityQc, cc.QcOverallCtdPct)
	res.HdmQc = OverallQc(res.SpeedQc, cc.QcOverallSpeedPct)
	if !tsv.Converged {
		res.HdmQc = UpdateQc(QcProbablyBad, res.HdmQc)
	}

	// Displacement and depth-averaged current.
	log.Println("Integrating displacement; computing depth-averaged current")
	wHdm := make([]float64, np)
	speedForDac := make([]float64, np)
	for i := 0; i < np; i++ {
		s := res.SpeedCmS[i]
		if math.IsNaN(s) {
			s = 0
		}
		speedForDac[i] = s
		wHdm[i] = s * math.Sin(res.GlideAngleRad[i])
	}
	dac := ComputeDAC(dive, pf, speedForDac, res.GlideAngleRad, res.HdmQc, wObs, wHdm, cc)
	res.DepthAvgCurrEastMS = FloatScalar(dac.DacEastMS)
	res.DepthAvgCurrNorthMS = FloatScalar(dac.DacNorthMS)
	res.DacQc = dac.DacQc
	res.SurfaceCurrentMS = FloatScalar(dac.SurfaceCurrentMS)
	res.SurfaceCurrentDirDeg = FloatScalar(dac.SurfaceCurrentDirDeg)
	res.SurfCurrQc = dac.SurfCurrQc
	res.Latitude = dac.LatV
	res.Longitude = dac.LonV

	res.Extent = res.Summary()

	res.Trace.Comment(fmt.Sprintf("tsv iterations %d", tsv.Iterations))
	res.Trace.Array("salin_final", res.Salinity)
	res.Trace.Array("speed_final", res.SpeedCmS)
	res.Trace.ArrayI("bad_salin_i", BadQcIndices(res.SalinityQc))

	log.Printf("Dive %d processed: converged=%v ctd_qc=%s dac_qc=%s",
		dive.DiveNumber, res.Converged, res.CtdQc, res.DacQc)
	return res
}

// thermistorLag applies the first order sensor response correction:
// the thermistor reading lags the water by its response time, so the
// true temperature is recovered by adding tau_T times the observed
// rate of change.
func thermistorLag(tempRaw, timeS []float64, cc *CalibConsts) []float64 {
	out := make([]float64, len(tempRaw))
	copy(out, tempRaw)
	if cc.SbectTauT == 0 || len(tempRaw) < 2 {
		return out
	}
	dTdt := ctr1stDiff(tempRaw, timeS)
	for i := range out {
		if !math.IsNaN(dTdt[i]) {
			out[i] += cc.SbectTauT * dTdt[i]
		}
	}
	return out
}

// verticalRate is the observed vertical velocity [cm/s], positive up,
// from the depth record.
func verticalRate(depthM, timeS []float64) []float64 {
	dzdt := ctr1stDiff(depthM, timeS)
	out := make([]float64, len(dzdt))
	for i, v := range dzdt {
		out[i] = -v * m2cm // depth increases downward
	}
	return out
}
