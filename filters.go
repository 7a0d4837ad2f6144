package sgdive

import (
	"math"
	"sort"
)

// Triang returns an L-point triangular window. The window tapers
// linearly to (but not through) zero at both ends.
func Triang(l int) []float64 {
	w := make([]float64, l)
	l1 := l + 1
	odd := l%2 == 1
	midpoint := l1 / 2
	for n := 1; n <= midpoint; n++ {
		if odd {
			w[n-1] = 2.0 * float64(n) / float64(l1)
		} else {
			w[n-1] = 2.0 * float64(n) / float64(l)
		}
	}
	start := midpoint + 1
	if !odd {
		start = l/2 + 2
	}
	for n := start; n <= l; n++ {
		if odd {
			w[n-1] = 2.0 * float64(l-n+1) / float64(l1)
		} else {
			w[n-1] = 2.0 * float64(l-n+1) / float64(l)
		}
	}
	return w
}

// convolve computes the full linear convolution of x and g,
// length len(x)+len(g)-1.
func convolve(x, g []float64) []float64 {
	out := make([]float64, len(x)+len(g)-1)
	for i, xv := range x {
		for j, gv := range g {
			out[i+j] += xv * gv
		}
	}
	return out
}

// Trifilt filters x with a triangular filter of half-width n. The result
// has the same length as x so features line up; endpoints are corrected
// by filter area so the effective area is half at the ends and grows to
// unity n points in.
func Trifilt(x []float64, n int) []float64 {
	m := len(x)
	g := Triang(2*n - 1)
	for i := range g {
		g[i] /= float64(n)
	}
	y := convolve(x, g)
	s := len(y)
	begin := (s-m)/2 + 1 - 1
	end := (s-m)/2 + m

	xf := make([]float64, m)
	copy(xf, y[begin:end])

	ones := make([]float64, m)
	for i := range ones {
		ones[i] = 1
	}
	area := convolve(ones, g)
	for i := 0; i < m; i++ {
		xf[i] /= area[begin+i]
	}
	return xf
}

// cumTrapz is the cumulative trapezoidal integral of f over t.
// The first element is zero so the result matches len(f).
func cumTrapz(f, t []float64) []float64 {
	out := make([]float64, len(f))
	for i := 1; i < len(f); i++ {
		out[i] = out[i-1] + 0.5*(f[i]+f[i-1])*(t[i]-t[i-1])
	}
	return out
}

// ctr1stDiff is the centered first difference of y wrt t, one-sided at
// the ends.
func ctr1stDiff(y, t []float64) []float64 {
	n := len(y)
	d := make([]float64, n)
	if n < 2 {
		return d
	}
	d[0] = (y[1] - y[0]) / (t[1] - t[0])
	d[n-1] = (y[n-1] - y[n-2]) / (t[n-1] - t[n-2])
	for i := 1; i < n-1; i++ {
		d[i] = (y[i+1] - y[i-1]) / (t[i+1] - t[i-1])
	}
	return d
}

// medfilt1 applies a sliding median of the given window to x. Near the
// ends the window is cut off only on the side that runs past the edge.
func medfilt1(x []float64, window int) []float64 {
	n := len(x)
	out := make([]float64, n)
	half := window / 2
	buf := make([]float64, 0, window)
	for i := 0; i < n; i++ {
		lo := i - half
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		buf = append(buf[:0], x[lo:hi+1]...)
		sort.Float64s(buf)
		k := len(buf)
		if k%2 == 1 {
			out[i] = buf[k/2]
		} else {
			out[i] = 0.5 * (buf[k/2-1] + buf[k/2])
		}
	}
	return out
}

// arange builds the uniform grid start, start+dt, ... up to but not
// including stop.
func arange(start, stop, dt float64) []float64 {
	n := int(math.Ceil((stop - start) / dt))
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*dt
	}
	return out
}

// nanSlice returns a length-n vector of NaN.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// fill returns a length-n vector of v.
func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
