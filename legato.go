package sgdive

import (
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RBR legato corrections: pressure despiking, thermistor time-lag and
// thermal-error advance, conductivity cell temperature (tau60) and
// optional conductivity pressure correction.

// interp1 linearly interpolates y(x) at xq. Outside the span the result
// is NaN unless extrapolate is set, in which case the end segments are
// extended.
func interp1(x, y, xq []float64, extrapolate bool) []float64 {
	out := make([]float64, len(xq))
	n := len(x)
	for j, q := range xq {
		if n == 0 {
			out[j] = math.NaN()
			continue
		}
		if q < x[0] || q > x[n-1] {
			if !extrapolate {
				out[j] = math.NaN()
				continue
			}
		}
		i := sort.SearchFloat64s(x, q)
		if i <= 0 {
			i = 1
		}
		if i >= n {
			i = n - 1
		}
		frac := (q - x[i-1]) / (x[i] - x[i-1])
		out[j] = y[i-1] + frac*(y[i]-y[i-1])
	}
	return out
}

// interp1Extend interpolates like interp1 but first extends the knots
// with nearest-value pads covering the query span.
func interp1Extend(x, y, xq []float64) []float64 {
	if len(x) == 0 || len(xq) == 0 {
		return nanSlice(len(xq))
	}
	xs := x
	ys := y
	if xq[0] < x[0] {
		xs = append([]float64{xq[0]}, xs...)
		ys = append([]float64{y[0]}, ys...)
	}
	if xq[len(xq)-1] > x[len(x)-1] {
		xs = append(xs, xq[len(xq)-1])
		ys = append(ys, y[len(y)-1])
	}
	return interp1(xs, ys, xq, true)
}

// SmoothLegatoPressure detects pressure spikes by their dz/dt and
// replaces them with interpolated values. Points from 3 before to 2 after
// each spike index are candidates; only those whose interpolated value differs by more
// than 2 dbar are actually replaced. Some good points may be
// interpolated out.
func SmoothLegatoPressure(pressure, timeS []float64, nStddevs, maxDzDt float64) ([]float64, []int) {
	n := len(pressure)
	smoothed := make([]float64, n)
	copy(smoothed, pressure)
	if n < 2 {
		return smoothed, nil
	}
	dzdt := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		dzdt[i] = (pressure[i+1] - pressure[i]) / (timeS[i+1] - timeS[i])
	}
	var spikePts []int
	if maxDzDt != 0 {
		for i, d := range dzdt {
			if math.Abs(d) > maxDzDt {
				spikePts = append(spikePts, i)
			}
		}
	} else {
		sd := stat.StdDev(dzdt, nil)
		for i, d := range dzdt {
			if math.Abs(d) > sd*nStddevs {
				spikePts = append(spikePts, i)
			}
		}
	}
	if len(spikePts) == 0 {
		return smoothed, nil
	}

	badSet := map[int]bool{}
	for _, pp := range spikePts {
		for dd := -3; dd < 3; dd++ {
			if pp+dd >= 0 && pp+dd < n {
				badSet[pp+dd] = true
			}
		}
	}
	var badPoints []int
	for i := range badSet {
		badPoints = append(badPoints, i)
	}
	sort.Ints(badPoints)

	buildInterp := func(exclude map[int]bool) ([]float64, []float64) {
		var xs, ys []float64
		for i := 0; i < n; i++ {
			if !exclude[i] {
				xs = append(xs, timeS[i])
				ys = append(ys, pressure[i])
			}
		}
		return xs, ys
	}
	reduced := map[int]bool{}
	for _, i := range badPoints {
		reduced[i] = true
	}
	xs, ys := buildInterp(reduced)

	var finalBad []int
	for _, pp := range badPoints {
		v := interp1(xs, ys, []float64{timeS[pp]}, true)[0]
		if math.Abs(smoothed[pp]-v) > 2.0 {
			smoothed[pp] = v
			finalBad = append(finalBad, pp)
		} else {
			// the point is actually fine; put it back and regenerate, which
			// slightly improves the remaining interpolations
			delete(reduced, pp)
			xs, ys = buildInterp(reduced)
		}
	}
	return smoothed, finalBad
}

// LegatoResult is the corrected CT state for an RBR legato.
type LegatoResult struct {
	Pressure        []float64
	Temperature     []float64
	TemperatureQc   []QcFlag
	Salinity        []float64
	SalinityQc      []QcFlag
	Conductivity    []float64
	ConductivityQc  []QcFlag
	SalinityLagOnly []float64
}

// LegatoCorrectCT performs the legato lag and thermal corrections on a
// 1 Hz regular grid and maps the results back to the measurement grid.
// The thermal-error recursion follows Morison et al 1994 and
// Lueck and Picklo.
func LegatoCorrectCT(
	cc *CalibConsts,
	timeS, press, temp []float64, tempQc []QcFlag,
	conduc []float64, conducQc []QcFlag,
	condTemp []float64,
	sink *QcLog,
) *LegatoResult {
	n := len(timeS)
	out := &LegatoResult{
		Pressure:        nanSlice(n),
		Temperature:     nanSlice(n),
		Salinity:        nanSlice(n),
		Conductivity:    nanSlice(n),
		SalinityLagOnly: nanSlice(n),
	}

	// only NaN points are removed here; QC flows through to the output
	var good []int
	for i := 0; i < n; i++ {
		if !math.IsNaN(press[i]) && !math.IsNaN(temp[i]) && !math.IsNaN(conduc[i]) {
			good = append(good, i)
		}
	}
	if len(good) < 3 {
		log.Println("Too few usable legato points for corrections")
		out.TemperatureQc = InitQcVector(n, QcBad)
		out.ConductivityQc = InitQcVector(n, QcBad)
		out.SalinityQc = InitQcVector(n, QcBad)
		return out
	}
	gTime := take(timeS, good)
	gCond := take(conduc, good)
	gTemp := take(temp, good)
	gPress := take(press, good)
	gCt := take(condTemp, good)

	const sampleRate = 1.0
	regTime := arange(gTime[0], gTime[len(gTime)-1], sampleRate)
	c1 := interp1(gTime, gCond, regTime, false)
	t1 := interp1(gTime, gTemp, regTime, false)
	p1 := interp1(gTime, gPress, regTime, false)
	ct := interp1(gTime, gCt, regTime, false)
	m := len(regTime)
	if m < 3 {
		log.Println("Legato record too short for the regular correction grid")
		out.TemperatureQc = InitQcVector(n, QcBad)
		out.ConductivityQc = InitQcVector(n, QcBad)
		out.SalinityQc = InitQcVector(n, QcBad)
		return out
	}

	// pressure: smooth a little, boxcar sized by the median dz per sample
	diffs := make([]float64, 0, m-1)
	for i := 1; i < m; i++ {
		diffs = append(diffs, math.Abs(p1[i]-p1[i-1]))
	}
	sort.Float64s(diffs)
	medianDz := diffs[len(diffs)/2]
	nn := 1
	if medianDz > 0 {
		if k := int(math.Round(2.0 / medianDz)); k > 1 {
			nn = k
		}
	}
	p2 := boxcarExtended(p1, nn)

	// conductivity correction for pressure (fit relative to sg180 Guam 2019)
	if cc.LegatoCondPressCorrection != 0 {
		log.Println("Applying conductivity correction for pressure")
		for i := 0; i < m; i++ {
			c1[i] = ((c1[i] * 10.0) - (3.3058e-05*p2[i] + 0.0488)) / 10.0
		}
	}

	// thermal error recursion
	fn := 1.0 / sampleRate / 2.0
	a := 4.0 * fn * cc.LegatoAlpha * cc.LegatoTau / (1.0 + 4.0*fn*cc.LegatoTau)
	b := 1.0 - 2.0*a/cc.LegatoAlpha
	tt := make([]float64, m)
	for i := 2; i < m; i++ {
		tt[i] = -b*tt[i-1] + a*(t1[i]-t1[i-1])
	}

	// advance temperature by the time lag plus thermal error
	shifted := make([]float64, m)
	sum := make([]float64, m)
	for i := 0; i < m; i++ {
		shifted[i] = regTime[i] + cc.LegatoTimeLag
		sum[i] = t1[i] + tt[i]
	}
	t2 := interp1(shifted, sum, regTime, true)
	tLagOnly := interp1(shifted, t1, regTime, true)

	// tau60 correction (nominal ctcoeff makes this a no-op)
	c2 := make([]float64, m)
	for i := 0; i < m; i++ {
		c2[i] = c1[i] / (1.0 + cc.LegatoCtcoeff*(ct[i]-t1[i]))
	}

	s := make([]float64, m)
	sLagOnly := make([]float64, m)
	for i := 0; i < m; i++ {
		s[i] = SwSalt(c2[i]/(C3515/10.0), t2[i], p2[i])
		sLagOnly[i] = SwSalt(c1[i]/(C3515/10.0), tLagOnly[i], p2[i])
	}

	// back on the original grid
	scatter(out.Pressure, good, interp1Extend(regTime, p2, gTime))
	scatter(out.Temperature, good, interp1Extend(regTime, t2, gTime))
	scatter(out.Salinity, good, interp1Extend(regTime, s, gTime))
	scatter(out.Conductivity, good, interp1Extend(regTime, c2, gTime))
	scatter(out.SalinityLagOnly, good, interp1Extend(regTime, sLagOnly, gTime))

	// apply the raw QC to the corrected QC
	out.TemperatureQc = InitQcVector(n, QcGood)
	InheritQc(tempQc, out.TemperatureQc, "legato temp", "legato corrected temp", sink)
	out.ConductivityQc = InitQcVector(n, QcGood)
	InheritQc(conducQc, out.ConductivityQc, "legato cond", "legato corrected cond", sink)
	out.SalinityQc = InitQcVector(n, QcGood)
	InheritQc(out.TemperatureQc, out.SalinityQc, "corr legato temp", "corr legato salinity", sink)
	InheritQc(out.ConductivityQc, out.SalinityQc, "corr legato cond", "corr legato salinity", sink)
	return out
}

// boxcarExtended smooths with an nn-point boxcar after extending the
// signal into the tails by interpolation, which behaves better on
// half-profiles that start deep.
func boxcarExtended(x []float64, nn int) []float64 {
	m := len(x)
	if nn <= 1 {
		out := make([]float64, m)
		copy(out, x)
		return out
	}
	ext := make([]float64, m+nn)
	for i := range ext {
		// index into the original grid, extrapolating the end segments
		j := i - nn/2
		switch {
		case j < 0:
			ext[i] = x[0] + float64(j)*(x[1]-x[0])
		case j >= m:
			ext[i] = x[m-1] + float64(j-m+1)*(x[m-1]-x[m-2])
		default:
			ext[i] = x[j]
		}
	}
	kernel := fill(nn, 1.0/float64(nn))
	conv := convolve(ext, kernel)
	out := make([]float64, m)
	// centre of the 'same' convolution, then extract the middle
	off := (len(conv)-len(ext))/2 + nn/2
	copy(out, conv[off:off+m])
	return out
}
