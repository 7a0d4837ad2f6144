package sgdive

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// qcChecksIndices restricts the spike/bound tests to apparently good
// points and prepares the triple indexing used by the spike detector.
func qcChecksIndices(qcV []QcFlag, depthM []float64) (ia, im, ic, ip []int, ncp int, diffDepth []float64) {
	bad := BadQcIndices(qcV)
	ia = lo.Without(lo.Range(len(qcV)), bad...)
	gp := len(ia)
	if gp < 3 {
		return ia, nil, nil, nil, 0, nil
	}
	im = ia[0 : gp-2]
	ic = ia[1 : gp-1]
	ip = ia[2:gp]
	ncp = len(ic)
	diffDepth = make([]float64, ncp)
	for i := 0; i < ncp; i++ {
		diffDepth[i] = math.Abs((depthM[ip[i]] - depthM[im[i]]) / 2.0)
		if diffDepth[i] == 0.0 {
			diffDepth[i] = 0.001 // avoid divide by zero below
		}
	}
	return ia, im, ic, ip, ncp, diffDepth
}

// qcNoise flags electronic noise on oversampled channels by detrending
// with a sliding median and rejecting residuals beyond stdBand sigma.
// windowSize 0 disables.
func qcNoise(data []float64, windowSize int, stdBand float64) []int {
	if windowSize == 0 {
		return nil
	}
	if windowSize > len(data) {
		windowSize = len(data)
	}
	filtered := medfilt1(data, windowSize)
	diff := make([]float64, len(data))
	for i := range data {
		diff[i] = data[i] - filtered[i]
	}
	noiseFloor := stdBand * stat.StdDev(diff, nil)
	var bad []int
	for i := range diff {
		if math.Abs(diff[i]) > noiseFloor {
			bad = append(bad, i)
		}
	}
	return bad
}

// QcChecks performs the standard (ARGO) quality checks on temperature,
// conductivity and salinity. Pass nil for channels not supplied; their
// tests are skipped. QC vectors are updated in place.
//
// The spike detector works on triples (m, c, p): the deviation of the
// center point from the m..p midpoint, less the half-range, scaled by
// the mean depth separation.
func QcChecks(
	tempV []float64, tempQc []QcFlag,
	condV []float64, condQc []QcFlag,
	salinV []float64, salinQc []QcFlag,
	depthM []float64,
	cc *CalibConsts,
	boundAction, spikeAction QcFlag,
	tag string,
	noiseFilter bool,
	sink *QcLog,
) {
	numPoints := len(depthM)
	if numPoints <= 3 {
		return // no checks, no change
	}
	noiseWindow := 0
	if noiseFilter {
		noiseWindow = cc.QcHighFreqNoise
	}

	doTemp := len(tempV) == numPoints
	doCond := len(condV) == numPoints
	doSalin := len(salinV) == numPoints

	spikeTest := func(v []float64, im, ic, ip []int, ncp int, diffDepth []float64,
		spikeDepth, shallow, deep float64) []int {
		var bad []int
		for i := 0; i < ncp; i++ {
			spike := (math.Abs(v[ic[i]]-(v[ip[i]]+v[im[i]])/2) -
				math.Abs((v[ip[i]]-v[im[i]])/2)) / diffDepth[i]
			threshold := deep
			if depthM[ic[i]] < spikeDepth {
				threshold = shallow
			}
			if spike > threshold {
				bad = append(bad, ic[i]) // mark the middle point
			}
		}
		return bad
	}

	var badSalinBounds []int

	if doTemp {
		ia, im, ic, ip, ncp, diffDepth := qcChecksIndices(tempQc, depthM)
		if ncp > 0 {
			var bad []int
			for _, i := range ia {
				if tempV[i] < cc.QcTempMin || tempV[i] > cc.QcTempMax {
					bad = append(bad, i)
				}
			}
			AssertQc(boundAction, tempQc, bad, tag+"temperature bounds", sink)

			if cc.QcTempSpikeDepth != 0 {
				spikes := spikeTest(tempV, im, ic, ip, ncp, diffDepth,
					cc.QcTempSpikeDepth, cc.QcTempSpikeShallow, cc.QcTempSpikeDeep)
				AssertQc(spikeAction, tempQc, spikes, tag+"temperature spikes", sink)
			}
			if noiseWindow > 0 {
				sub := lo.Map(ia, func(i int, _ int) float64 { return tempV[i] })
				noisy := qcNoise(sub, noiseWindow, 3)
				AssertQc(spikeAction, tempQc,
					lo.Map(noisy, func(j int, _ int) int { return ia[j] }),
					tag+"temperature noise spikes", sink)
			}
		}
	}

	if doSalin {
		ia, _, _, _, ncp, _ := qcChecksIndices(salinQc, depthM)
		if ncp > 0 {
			var badLow, badHigh []int
			for _, i := range ia {
				if salinV[i] < cc.QcSalinMin {
					badLow = append(badLow, i)
				}
				if salinV[i] > cc.QcSalinMax {
					badHigh = append(badHigh, i)
				}
			}
			AssertQc(boundAction, salinQc, badLow, tag+"salinity below bound", sink)
			AssertQc(boundAction, salinQc, badHigh, tag+"salinity exceeds bound", sink)
			badSalinBounds = lo.Union(badLow, badHigh)
		}
	}

	if doCond {
		// Conductivity fluctuates too much with temperature and pressure
		// for a direct bound, but salinity does not. If salinity went out
		// of bounds and temperature is fine, the conductivity is suspect.
		if doSalin && len(badSalinBounds) > 0 {
			badB := badSalinBounds
			if doTemp {
				badB = lo.Without(badB, BadQcIndices(tempQc)...)
			}
			AssertQc(boundAction, condQc, badB,
				fmt.Sprintf("bad %ssalinity indicates %sconductivity issues", tag, tag), sink)
		}

		ia, im, ic, ip, ncp, diffDepth := qcChecksIndices(condQc, depthM)
		if ncp > 0 {
			if cc.QcCondSpikeDepth != 0 {
				spikes := spikeTest(condV, im, ic, ip, ncp, diffDepth,
					cc.QcCondSpikeDepth, cc.QcCondSpikeShallow, cc.QcCondSpikeDeep)
				AssertQc(spikeAction, condQc, spikes, tag+"conductivity spikes", sink)
			}
			if noiseWindow > 0 {
				sub := lo.Map(ia, func(i int, _ int) float64 { return condV[i] })
				noisy := qcNoise(sub, noiseWindow, 3)
				AssertQc(spikeAction, condQc,
					lo.Map(noisy, func(j int, _ int) int { return ia[j] }),
					tag+"conductivity noise spikes", sink)
			}
		}
	}
}

// InterpolateDataQc linearly interpolates y over the contiguous runs in
// interpPoints, anchored one sample outside each run. Runs whose anchors
// are bad are tagged failTag instead and surfaced through the directive
// suggestion channel.
func InterpolateDataQc(
	y, x []float64,
	interpPoints []int,
	interpType string,
	directives *ProfileDirectives,
	qcV []QcFlag,
	failTag QcFlag,
	sink *QcLog,
) []float64 {
	out := make([]float64, len(y))
	copy(out, y)
	if len(interpPoints) == 0 {
		return out
	}
	numPoints := len(y) - 1
	for _, run := range contiguousRuns(interpPoints) {
		preIndex := run[0]
		postIndex := run[len(run)-1]
		ipIV := lo.RangeFrom(preIndex, postIndex-preIndex+1)
		preIndex = lo.Max([]int{preIndex - 1, 0})
		postIndex = lo.Min([]int{postIndex + 1, numPoints})

		anchorsBad := false
		for _, a := range []int{preIndex, postIndex} {
			if lo.Contains(BadQcValues, qcV[a]) {
				anchorsBad = true
			}
		}
		if anchorsBad {
			interpolated := lo.SomeBy(ipIV, func(i int) bool { return qcV[i] == QcInterpolated })
			if interpolated {
				// only worth reporting if there were points needing work
				reason := "bad interpolation anchors"
				AssertQc(failTag, qcV, ipIV, reason, sink)
				directives.Suggest(fmt.Sprintf("bad_%s data_points in_between %d %d %% %s",
					interpType, preIndex, postIndex, reason))
			}
			continue
		}
		alpha, beta := stat.LinearRegression(
			[]float64{x[preIndex], x[postIndex]},
			[]float64{y[preIndex], y[postIndex]}, nil, false)
		if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
			reason := "unable to interpolate (NaN/Inf)"
			AssertQc(failTag, qcV, ipIV, reason, sink)
			directives.Suggest(fmt.Sprintf("bad_%s data_points in_between %d %d %% %s",
				interpType, preIndex, postIndex, reason))
			continue
		}
		for i := preIndex; i <= postIndex; i++ {
			out[i] = alpha + beta*x[i]
		}
	}
	return out
}

// contiguousRuns splits a sorted index list into its maximal runs of
// consecutive indices.
func contiguousRuns(indices []int) [][]int {
	var runs [][]int
	if len(indices) == 0 {
		return runs
	}
	start := 0
	for i := 1; i <= len(indices); i++ {
		if i == len(indices) || indices[i] != indices[i-1]+1 {
			runs = append(runs, indices[start:i])
			start = i
		}
	}
	return runs
}
