package sgdive

import (
	"fmt"
	"math"
	"sync"
)

// Conductivity anomaly detection.
//
// Bubbles ingested near the surface and biological material ("snot")
// drawn through the cell at depth both depress the measured conductivity
// without a matching temperature signal. The scanner classifies sample-
// to-sample conductivity excursions against their temperature-equivalent
// change so genuine thermoclines are not misclassified.

// AnomalyResolution classifies how a conductivity anomaly ended.
type AnomalyResolution int

const (
	// AnomalyBubble is a near-surface air bubble excursion.
	AnomalyBubble AnomalyResolution = iota
	// AnomalySnotResolved ended with the positive recovery balancing the
	// negative excursion.
	AnomalySnotResolved
	// AnomalySnotUnresolved was still open when the scan ended.
	AnomalySnotUnresolved
)

func (r AnomalyResolution) String() string {
	switch r {
	case AnomalyBubble:
		return "bubble"
	case AnomalySnotResolved:
		return "resolved"
	case AnomalySnotUnresolved:
		return "unresolved"
	}
	return "unknown"
}

// Anomaly is a contiguous run of CTD samples identified as a
// conductivity excursion.
type Anomaly struct {
	Points       []int   // ordered sample indices
	NegativeSum  float64 // running sum of negative excursions (<= 0)
	PositiveSum  float64 // running sum of positive excursions (>= 0)
	MaxExcursion float64 // largest |excursion| seen
	ExtentM      float64 // vertical extent [m]
	Resolution   AnomalyResolution
	Verdict      QcFlag
}

func (a *Anomaly) first() int { return a.Points[0] }
func (a *Anomaly) last() int  { return a.Points[len(a.Points)-1] }

// add grows the anomaly by one point, accumulating the excursion on the
// appropriate side.
func (a *Anomaly) add(i int, excursion float64) {
	a.Points = append(a.Points, i)
	if excursion < 0 {
		a.NegativeSum += excursion
	} else {
		a.PositiveSum += excursion
	}
	if math.Abs(excursion) > a.MaxExcursion {
		a.MaxExcursion = math.Abs(excursion)
	}
}

// finalize fixes the vertical extent and QC verdict.
func (a *Anomaly) finalize(depthM []float64, cc *CalibConsts) {
	minD, maxD := math.Inf(1), math.Inf(-1)
	for _, i := range a.Points {
		if depthM[i] < minD {
			minD = depthM[i]
		}
		if depthM[i] > maxD {
			maxD = depthM[i]
		}
	}
	a.ExtentM = maxD - minD
	if a.ExtentM > cc.AllowableCondAnomalyDistance {
		a.Verdict = QcBad
	} else {
		a.Verdict = QcInterpolated
	}
}

// CondAnomalies is the scanner result for one dive.
type CondAnomalies struct {
	DiveBubbles  []*Anomaly
	ClimbBubbles []*Anomaly
	Snot         []*Anomaly
	Suspects     []*Anomaly
}

// condTempScale converts a conductivity change into a temperature-
// equivalent change: 1/(dC/dT) at S=35, P=0, tabulated per integer
// degree from -5 to 37 C and clamped outside. A dense array indexed by
// int(T)-min keeps the per-integer-degree semantics without hashing.
const (
	condScaleMinT = -5
	condScaleMaxT = 37
)

var (
	condScaleOnce  sync.Once
	condScaleTable []float64
)

func condTempScale(t float64) float64 {
	condScaleOnce.Do(func() {
		condScaleTable = make([]float64, condScaleMaxT-condScaleMinT+1)
		for i := range condScaleTable {
			tc := float64(condScaleMinT + i)
			dCdT := (SwCondFromSalinity(35, tc+0.5, 0) - SwCondFromSalinity(35, tc-0.5, 0))
			condScaleTable[i] = 1.0 / dCdT
		}
	})
	i := int(t) - condScaleMinT
	if i < 0 {
		i = 0
	}
	if i >= len(condScaleTable) {
		i = len(condScaleTable) - 1
	}
	return condScaleTable[i]
}

// DetectCondAnomalies scans left-to-right for conductivity excursions
// that temperature cannot explain, classifying near-surface bubbles and
// deeper snot events. Applied anomalies are asserted into condQc; those
// whose peak excursion lies in the suspect band are surfaced through the
// directives suggestion channel instead.
//
// dflare and dsurf are the flare depth and surfacing depth; bubbles are
// only credible shallower than surfaceBubbleFactor times their max.
func DetectCondAnomalies(
	tempV, condV, depthM, timeS []float64,
	startOfClimbI int,
	dflare, dsurf float64,
	cc *CalibConsts,
	directives *ProfileDirectives,
	condQc []QcFlag,
	sink *QcLog,
) *CondAnomalies {
	result := &CondAnomalies{}
	np := len(condV)
	if np < 2 {
		return result
	}

	bubbleDepth := cc.SurfaceBubbleFactor * math.Max(dflare, dsurf)

	var open *Anomaly       // the snot state machine's current anomaly
	var openBubble *Anomaly // a bubble awaiting its recovery edge

	closeSnot := func(resolution AnomalyResolution) {
		if open == nil {
			return
		}
		open.Resolution = resolution
		open.finalize(depthM, cc)
		result.Snot = append(result.Snot, open)
		open = nil
	}
	closeBubble := func() {
		if openBubble == nil {
			return
		}
		openBubble.finalize(depthM, cc)
		openBubble.Verdict = QcBad // bubbles are never interpolable
		if openBubble.first() < startOfClimbI {
			result.DiveBubbles = append(result.DiveBubbles, openBubble)
		} else {
			result.ClimbBubbles = append(result.ClimbBubbles, openBubble)
		}
		openBubble = nil
	}

	for i := 1; i < np; i++ {
		dC := condV[i] - condV[i-1]
		dT := tempV[i] - tempV[i-1]
		s := condTempScale(tempV[i-1])
		caDiff := s*dC - dT

		if openBubble != nil {
			// grow the dropout until the recovery edge or until the
			// vehicle is too deep for it to still be a bubble
			openBubble.add(i, caDiff)
			if caDiff > cc.AirBubbleThreshold || depthM[i] >= bubbleDepth {
				closeBubble()
			}
			continue
		}

		if math.Abs(s*dC) <= math.Abs(dT) {
			// temperature explains the conductivity change; a pending
			// anomaly that never recovered stays open until the scan ends
			continue
		}

		if caDiff < -cc.AirBubbleThreshold && depthM[i] < bubbleDepth {
			openBubble = &Anomaly{Resolution: AnomalyBubble}
			openBubble.add(i, caDiff)
			continue
		}

		dTdt := dT / (timeS[i] - timeS[i-1])
		if math.Abs(caDiff) > cc.AnomalyDiffFactor && math.Abs(dTdt) < cc.ThermoclineTempDiff {
			if open == nil {
				if caDiff < 0 {
					// anomalies begin with a conductivity drop
					open = &Anomaly{}
					open.add(i, caDiff)
				}
				continue
			}
			open.add(i, caDiff)
			if open.PositiveSum > -open.NegativeSum ||
				(open.PositiveSum > 0 && -open.NegativeSum/open.PositiveSum < 1.05) {
				// recovery balanced the drop
				closeSnot(AnomalySnotResolved)
			}
		}
	}
	closeBubble()
	closeSnot(AnomalySnotUnresolved)

	// Apply verdicts.
	for _, b := range result.DiveBubbles {
		AssertQc(b.Verdict, condQc, b.Points, "conductivity bubble on dive", sink)
	}
	for _, b := range result.ClimbBubbles {
		AssertQc(b.Verdict, condQc, b.Points, "conductivity bubble on climb", sink)
	}
	for _, a := range result.Snot {
		if a.MaxExcursion >= cc.AcceptableAnomalyThreshold && a.MaxExcursion <= cc.SuspectSnot {
			// in the empirically murky band; let the pilot decide
			result.Suspects = append(result.Suspects, a)
			directives.Suggest(fmt.Sprintf(
				"bad_conductivity data_points between %d %d %% suspect conductivity anomaly (%s, peak %.2f)",
				a.first(), a.last(), a.Resolution, a.MaxExcursion))
			continue
		}
		AssertQc(a.Verdict, condQc, a.Points,
			fmt.Sprintf("conductivity anomaly (%s)", a.Resolution), sink)
	}
	return result
}
