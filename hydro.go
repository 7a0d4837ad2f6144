package sgdive

import (
	"log"
	"math"
	"sort"

	"github.com/samber/lo"
)

// physical constants
const (
	gravity = 9.82 // m/s2
	g2kg    = 0.001
	kg2g    = 1000.0
	m2cm    = 100.0
	cm2m    = 0.01

	deg2rad = math.Pi / 180
	rad2deg = 1 / deg2rad
)

// hydroLoopCount bounds the iterative flight solves. Some dives have a
// few points that take a while to converge, but they do.
const hydroLoopCount = 41

// FindStalled returns the indices where the flight model is invalid:
// too fast while nearly level, or below the minimum flying speed.
func FindStalled(speed, pitchDeg []float64, cc *CalibConsts) []int {
	var stalled []int
	for i := range speed {
		if (speed[i] >= cc.MaxStallSpeed && pitchDeg[i] < cc.MinStallAngle) ||
			speed[i] <= cc.MinStallSpeed {
			stalled = append(stalled, i)
		}
	}
	return stalled
}

// GlideSlope computes total speed and glide angle from observed vertical
// velocity (pressure change) and vehicle pitch, assuming constant
// buoyancy throughout the dive (rho0). This is the simplified flight
// model that neglects buoyancy except via q^s: the attack angle is
// solved iteratively as a weak function of dynamic pressure.
//
// Because every hydrodynamic parameter combination yields *some* speed
// that matches the observed w exactly, this model is only good for a
// crude first guess and onboard navigation estimates, never for
// velocity-based scientific analysis.
//
// Input w in cm/s, pitch in radians (positive nose up). Returns whether
// the iteration converged, total speed [cm/s], glide angle [rad] and
// stall locations.
//
// Reference: Eriksen, C. C., et al: IEEE Journal of Oceanic
// Engineering, v26, no.4, October, 2001 (note the sign conventions in
// Eq. 8 as printed need care).
func GlideSlope(wCmS, pitchRad []float64, cc *CalibConsts) (bool, []float64, []float64, []int) {
	numRows := len(wCmS)
	hdA, hdB, hdC, hdS := cc.HdA, cc.HdB, cc.HdC, cc.HdS
	rho0 := cc.Rho0

	// Initial total speed from observed pitch and vertical velocity.
	uInitial := make([]float64, numRows)
	for i := range wCmS {
		if pitchRad[i] != 0.0 {
			uInitial[i] = wCmS[i] / math.Sin(pitchRad[i])
		}
	}

	// Constants for the (inverted) performance factor under the sqrt in
	// Eqn 8: 4/lambda*tan^2(theta), where lambda incorporates constant q.
	cx := 4.0 * hdB * hdC
	cy := hdA * hdA * math.Pow(rho0/2.0, -hdS)
	cz := cy / cx
	czr := cx / cy

	// Initial flying/stalled masks from the constant-buoyancy performance
	// factor; updated with additional stall points below.
	flying := make([]bool, numRows)
	for i := range flying {
		perf := math.Tan(pitchRad[i]) * math.Tan(pitchRad[i]) *
			math.Sqrt(cm2m*math.Abs(uInitial[i])) * cz
		flying[i] = perf > 1
	}

	theta := make([]float64, numRows)
	copy(theta, pitchRad)

	converged := false
	for loop := 0; loop < hydroLoopCount; loop++ {
		maxDeltaTheta := 0.0
		for i := 0; i < numRows; i++ {
			if wCmS[i]*math.Sin(theta[i]) < 0.0 {
				flying[i] = false
			}
			if !flying[i] {
				continue
			}
			factor := czr * (1.0 / (math.Tan(theta[i]) * math.Tan(theta[i]) *
				math.Sqrt(cm2m*wCmS[i]/math.Sin(theta[i]))))
			if factor > 1.0 {
				flying[i] = false
				continue
			}
			// Eqn 8; the minus sign is critical here
			alpha := (-0.5 * hdA * math.Tan(theta[i]) * (1.0 - math.Sqrt(1.0-factor))) / hdC
			prev := theta[i]
			// defn: pitch = glide angle + attack angle
			theta[i] = pitchRad[i] - alpha*deg2rad
			maxDeltaTheta = math.Max(math.Abs(prev-theta[i]), maxDeltaTheta)
		}
		if maxDeltaTheta < 0.0001 { // [rad]
			converged = true
			break
		}
	}

	// Where the model has singularities, fall back to pitch for the
	// speed computation below.
	for i := range flying {
		if !flying[i] {
			theta[i] = pitchRad[i]
		}
	}

	totalSpeed := make([]float64, numRows) // assume stalled everywhere...
	for i := 0; i < numRows; i++ {
		if pitchRad[i] != 0.0 {
			tt := math.Tan(theta[i])
			totalSpeed[i] = math.Abs(wCmS[i] * math.Sqrt(1.0+1.0/(tt*tt)))
		}
	}

	pitchDeg := make([]float64, numRows)
	for i := range pitchRad {
		pitchDeg[i] = pitchRad[i] * rad2deg
	}
	stalled := FindStalled(totalSpeed, pitchDeg, cc)
	for _, i := range stalled {
		totalSpeed[i] = 0
		theta[i] = 0 // going nowhere
	}
	return converged, totalSpeed, theta, stalled
}

// HydroModel computes vehicle speed and glide angle from buoyancy and
// observed pitch by iterating the unaccelerated flight equations.
//
// buoyancy in grams (positive is upward), pitch in degrees (positive
// nose up). hd_a is in 1/deg units, hd_b has dimensions q^(1/4), hd_c is
// in 1/deg^2 units. Returns whether the iteration converged, total
// speed [cm/s], glide angle [rad] and stall locations.
//
// Reference: flightvec0.m (CCE); Eriksen, C. C., et al: IEEE Journal of
// Oceanic Engineering, v26, no.4, October, 2001.
func HydroModel(buoyancy, pitchDeg []float64, cc *CalibConsts) (bool, []float64, []float64, []int) {
	numRows := len(buoyancy)
	hdA, hdB, hdC, hdS := cc.HdA, cc.HdB, cc.HdC, cc.HdS
	rho0 := cc.Rho0
	gliderLength := cc.GliderLength

	l2 := gliderLength * gliderLength
	l2HdB2 := 2.0 * l2 * hdB
	hdA2 := hdA * hdA
	hdBc4 := 4.0 * hdB * hdC
	hdC2 := 2.0 * hdC

	buoyancySign := make([]float64, numRows)
	pitchSign := make([]float64, numRows)
	buoyancyPitchOk := make([]bool, numRows)
	buoyancyForce := make([]float64, numRows)
	for i := range buoyancy {
		buoyancySign[i] = sgn(buoyancy[i])
		pitchSign[i] = 1.0 // if flat, assume sign is 1.0
		if pitchDeg[i] != 0.0 {
			pitchSign[i] = sgn(pitchDeg[i])
		}
		// flight is expected where buoyancy and pitch are both up or both down
		buoyancyPitchOk[i] = buoyancySign[i]*pitchSign[i] > 0.0
		// buoyancy force F = ma [Newtons]
		buoyancyForce[i] = buoyancy[i] * g2kg * gravity
	}

	// Initially assume the glide angle is +/- 45 degrees; initial dynamic
	// pressure from the drag equation for vertical flight (attack angle
	// zero, all drag, no lift). We deliberately start far away from the
	// solution so q and theta, set independently here, can relax together
	// to a consistent answer.
	theta := make([]float64, numRows)
	q := make([]float64, numRows)
	for i := range theta {
		theta[i] = (math.Pi / 4.0) * buoyancySign[i]
		q[i] = math.Pow(buoyancySign[i]*buoyancyForce[i]/(l2*hdB), 1/(1+hdS))
	}

	converged := false
	const residualTest = 0.001
	qPrev := make([]float64, numRows)
	for j := 0; j < hydroLoopCount; j++ {
		copy(qPrev, q)

		var flying []int
		scaledDrag := make([]float64, numRows)
		discriminantInv := make([]float64, numRows)
		tth := make([]float64, numRows)
		for i := 0; i < numRows; i++ {
			qp := qPrev[i]
			if qp < 0 {
				// alpha exceeded pitch somewhere; poison so the point stalls
				qp = math.NaN()
			}
			scaledDrag[i] = math.Pow(qp, -hdS)
			tth[i] = math.Tan(theta[i])
			discriminantInv[i] = hdA2 * tth[i] * tth[i] * scaledDrag[i] / hdBc4
			// valid solutions only for discriminant_inv > 1 (complex otherwise)
			if buoyancyPitchOk[i] && discriminantInv[i] > 1.0 {
				flying = append(flying, i)
			}
			q[i] = 0.0 // assume the worst: stalled
		}
		if len(flying) == 0 {
			// Nonsensical salinities make for poor buoyancy; handle
			// gracefully: report non-convergence with everything stalled so
			// the caller stops further processing.
			log.Println("Unable to find any points where flying")
			return false, q, fill(numRows, 0), lo.Range(numRows)
		}
		maxResidual := 0.0
		for _, i := range flying {
			sqrtDiscriminant := math.Sqrt(1.0 - 1.0/discriminantInv[i])
			// Eq. 7, via the quadratic formula; q^(hd_s) varies slowly
			// compared to q. The q eqn takes 1+sqrt, the alpha eqn 1-sqrt.
			q[i] = (buoyancyForce[i] * math.Sin(theta[i]) * scaledDrag[i]) / l2HdB2 *
				(1.0 + sqrtDiscriminant)
			// Eq. 8, with the critical minus sign; alpha in degrees
			alpha := (-hdA * tth[i] / hdC2) * (1.0 - sqrtDiscriminant)
			theta[i] = (pitchDeg[i] - alpha) * deg2rad
			res := math.Abs((q[i] - qPrev[i]) / q[i])
			if res > maxResidual {
				maxResidual = res
			}
		}
		// stalled points are going nowhere
		flyingSet := map[int]bool{}
		for _, i := range flying {
			flyingSet[i] = true
		}
		for i := 0; i < numRows; i++ {
			if !flyingSet[i] {
				theta[i] = 0.0
			}
		}
		if maxResidual < residualTest && j >= 2 { // ensure at least 2 iterations
			converged = true
			break
		}
	}

	// total speed through the water: q = rho0/2 * total_speed^2
	uMag := make([]float64, numRows)
	for i := range q {
		uMag[i] = m2cm * math.Sqrt(2.0*q[i]/rho0)
	}

	stalled := FindStalled(uMag, pitchDeg, cc)
	var mismatched []int
	for i := range buoyancyPitchOk {
		if !buoyancyPitchOk[i] {
			mismatched = append(mismatched, i)
		}
	}
	if len(mismatched) > 0 {
		stalled = lo.Uniq(append(stalled, mismatched...))
		sort.Ints(stalled)
	}
	for _, i := range stalled {
		uMag[i] = 0.0 // on the verge of a complex solution
		theta[i] = 0.0
	}
	return converged, uMag, theta, stalled
}
