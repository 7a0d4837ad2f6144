package sgdive

import (
	"log"
	"math"
	"sort"

	"github.com/samber/lo"
)

// tsInterpolate decides which samples around suspect thermal-inertia
// corrections should be linearly interpolated, by growing "shoulders"
// from each suspect until hitting stable anchors in TS space.
//
// A point is stable when the water mass has settled: many samples per
// unit of TS-space travel. Segments are only accepted when both anchors
// lie on the same leg (dive or climb); interpolating across apogee
// mixes distinct water masses and produces odd profiles, as does
// interpolating between, say, Labrador Sea and Irminger Sea water that
// happen to have similar density.
//
// QC tags are updated for rejected and (optionally) accepted segments;
// the caller performs the actual interpolation.
func tsInterpolate(
	tempCor []float64, tempCorQc []QcFlag,
	salinCor []float64, salinCorQc []QcFlag,
	fullSuspects []int,
	uncorrectable []int,
	validI []int,
	startOfClimbI int,
	interpolateExtremeTmcPoints bool,
	directives *ProfileDirectives,
	sink *QcLog,
) []int {
	const tsThreshold = 0.09 // [degC/psu] a major move in TS space
	// Stability: samples between changes per distance changed; the larger
	// the more stable. Normalized by the distance threshold.
	const adjacentPointThreshold = 1.5 / tsThreshold

	np := len(tempCor)
	var interpTs []int

	// suspects outside the valid span cannot be interpolated
	fullSuspects = lo.Filter(fullSuspects, func(i int, _ int) bool {
		return i >= validI[0] && i <= validI[len(validI)-1]
	})
	numFullSuspects := len(fullSuspects)
	if numFullSuspects == 0 {
		return interpTs
	}

	// Segment end points: the valid extremes plus the last good point of
	// the dive and first good point of the climb, so interpolation can
	// reach the ends without crossing apogee. QC_BAD salinities are NaN
	// by the time this runs.
	tsEndPoints := []int{validI[0]}
	var okI []int
	for i := 0; i < np; i++ {
		if !math.IsNaN(salinCor[i]) {
			okI = append(okI, i)
		}
	}
	var ed []int
	for _, i := range okI {
		if i < startOfClimbI {
			ed = append(ed, i)
		}
	}
	if len(ed) > 0 {
		tsEndPoints = append(tsEndPoints, ed[len(ed)-1])
		for _, i := range okI {
			if i >= startOfClimbI {
				tsEndPoints = append(tsEndPoints, i)
				break
			}
		}
	}
	tsEndPoints = append(tsEndPoints, validI[len(validI)-1])

	// Points where TS space changed by a significant amount. This assumes
	// the TS data are trustworthy enough to find plausible changes;
	// stability is determined below.
	lastI := validI[0]
	tsChanges := []int{lastI}
	tsDist := []float64{1} // avoid divide by zero below
	tsNumPoints := []int{0}
	numValidPoints := 0
	sLast := salinCor[lastI]
	tLast := tempCor[lastI]
	for _, j := range validI[1:] { // skips the stalls
		sNow := salinCor[j]
		tNow := tempCor[j]
		numValidPoints++
		dist := math.Hypot(sNow-sLast, tNow-tLast)
		if dist >= tsThreshold || lo.Contains(tsEndPoints, j) {
			tsChanges = append(tsChanges, j)
			tsDist = append(tsDist, dist)
			tsNumPoints = append(tsNumPoints, numValidPoints)
			numValidPoints = 0
			lastI = j
			sLast = sNow
			tLast = tNow
		}
	}

	var stableI []int
	for i := range tsNumPoints {
		if float64(tsNumPoints[i])/tsDist[i] > adjacentPointThreshold {
			stableI = append(stableI, tsChanges[i])
		}
	}
	stableI = lo.Without(stableI, uncorrectable...)
	stableI = sortedUniq(lo.Union(tsEndPoints, stableI)) // end points regardless
	tsChanges = sortedUniq(lo.Union(tsEndPoints, tsChanges))

	mpc := len(tsChanges)
	log.Printf("TS changes: %d segments %f avg pts/segment", mpc, float64(np)/float64(mpc))
	var diveChanges, climbChanges []int
	for _, i := range tsChanges {
		if i < startOfClimbI {
			diveChanges = append(diveChanges, i)
		} else {
			climbChanges = append(climbChanges, i)
		}
	}

	stable := make([]bool, np)
	for _, i := range stableI {
		stable[i] = true
	}

	// suspects that already sit on stable water need no correction
	if kept := lo.Filter(fullSuspects, func(i int, _ int) bool { return !stable[i] }); len(kept) < len(fullSuspects) {
		log.Printf("TS: Ignoring %d of %d apparently stable points requiring correction",
			len(fullSuspects)-len(kept), len(fullSuspects))
		fullSuspects = kept
	}

	totalSuspectsDropped := 0
	var lastSeg []int
	for _, suspectI := range fullSuspects {
		if lo.Contains(lastSeg, suspectI) {
			continue // already absorbed in the previous segment
		}
		// Grow a shoulder each way until a stable anchor; the suspect
		// itself could be an anchor surrounded by non-suspects, in which
		// case it is rejected by itself, so the walk starts at the suspect.
		thisSeg := []int{suspectI}
		nStablePoints := 0
		for _, dir := range [][2]int{{-1, validI[0]}, {1, validI[len(validI)-1]}} {
			step, limit := dir[0], dir[1]
			for j := suspectI; (step < 0 && j >= limit) || (step > 0 && j <= limit); j += step {
				if stable[j] {
					nStablePoints++
					// the stable point stays out; interpolation finds it as an anchor
					break
				}
				thisSeg = append(thisSeg, j)
			}
		}
		thisSeg = sortedUniq(thisSeg)
		tsStartI := thisSeg[0] - 1
		tsEndI := thisSeg[len(thisSeg)-1] + 1

		segmentOk := true
		if nStablePoints < 2 {
			segmentOk = false // insufficient good points
		}
		if segmentOk {
			// both anchors must sit on the same leg; straddling dive and
			// climb leads to odd interpolations (it can happen via
			// directives)
			anchors := []int{tsStartI, tsEndI}
			if len(lo.Intersect(diveChanges, anchors)) != 2 &&
				len(lo.Intersect(climbChanges, anchors)) != 2 {
				segmentOk = false
			}
		}
		lastSeg = thisSeg
		if segmentOk {
			interpTs = append(interpTs, thisSeg...)
		} else {
			dropped := lo.Intersect(fullSuspects, thisSeg)
			AssertQc(QcProbablyBad, salinCorQc, dropped,
				"suspect thermal-inertia salinity", sink)
			totalSuspectsDropped += len(dropped)
		}
	}
	if totalSuspectsDropped > 0 {
		log.Printf("%d of %d stall and thermal-inertia suspect points skipped",
			totalSuspectsDropped, numFullSuspects)
	}

	interpTs = sortedUniq(interpTs)
	sort.Ints(interpTs)
	if interpolateExtremeTmcPoints {
		AssertQc(QcInterpolated, salinCorQc, interpTs, "TS salinity interpolation", sink)
	}
	return interpTs
}
