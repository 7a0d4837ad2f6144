package sgdive

import (
	"math"
	"sort"
)

// Pchip interpolates xx using piecewise cubic Hermite polynomials fitted
// to the knots x, y. x is assumed strictly ascending. The interpolant is
// shape preserving; it does not overshoot the data and preserves local
// monotonicity.
// References:
//
//	Fritsch, F. N. and R. E. Carlson, "Monotone Piecewise Cubic
//	Interpolation", SIAM J. Numer. Anal. 17, 2 (April 1980), 238-246.
//	Fritsch, F. N. and J. Butland, "A Method for Constructing Local
//	Monotone Piecewise Cubic Interpolants", LLNL UCRL-87559 (April 1982).
func Pchip(x, y, xx []float64) []float64 {
	if len(xx) == 0 {
		return []float64{}
	}
	n := len(x)
	nn := n - 1 // last addressible index in x and y

	h := make([]float64, nn)
	delta := make([]float64, nn)
	for i := 0; i < nn; i++ {
		h[i] = x[i+1] - x[i]
		delta[i] = (y[i+1] - y[i]) / h[i]
	}

	// Knot slopes.
	d := make([]float64, n)
	if n == 2 {
		d[0] = delta[0]
		d[1] = delta[0]
	} else {
		// Interior slopes: weighted harmonic mean of adjacent secants when
		// they share a sign, zero across inflections.
		for k := 0; k < n-2; k++ {
			if sgn(delta[k])*sgn(delta[k+1]) <= 0 {
				continue
			}
			hs := h[k] + h[k+1]
			w1 := (h[k] + hs) / (3 * hs)
			w2 := (hs + h[k+1]) / (3 * hs)
			dmax := math.Max(math.Abs(delta[k]), math.Abs(delta[k+1]))
			dmin := math.Min(math.Abs(delta[k]), math.Abs(delta[k+1]))
			cc := w1*(delta[k]/dmax) + w2*(delta[k+1]/dmax)
			d[k+1] = dmin / cc
		}

		// End slopes via non-centered shape-preserving three-point formulae.
		d[0] = ((2*h[0]+h[1])*delta[0] - h[0]*delta[1]) / (h[0] + h[1])
		if sgn(d[0]) != sgn(delta[0]) {
			d[0] = 0
		} else if sgn(delta[0]) != sgn(delta[1]) && math.Abs(d[0]) > math.Abs(3*delta[0]) {
			d[0] = 3 * delta[0]
		}
		d[nn] = ((2*h[nn-1]+h[nn-2])*delta[nn-1] - h[nn-1]*delta[nn-2]) / (h[nn-1] + h[nn-2])
		if sgn(d[nn]) != sgn(delta[nn-1]) {
			d[nn] = 0
		} else if sgn(delta[nn-1]) != sgn(delta[nn-2]) && math.Abs(d[nn]) > math.Abs(3*delta[nn-1]) {
			d[nn] = 3 * delta[nn-1]
		}
	}

	// Piecewise polynomial coefficients per interval, highest order first.
	c1 := make([]float64, nn)
	c2 := make([]float64, nn)
	for i := 0; i < nn; i++ {
		dzzdx := (delta[i] - d[i]) / h[i]
		dzdxdx := (d[i+1] - delta[i]) / h[i]
		c1[i] = (dzdxdx - dzzdx) / h[i]
		c2[i] = 2*dzzdx - dzdxdx
	}

	// Evaluate. Interval lookup mirrors histc over [-inf, x[1:n-1], +inf]
	// so queries outside the knots extrapolate from the end intervals.
	yy := make([]float64, len(xx))
	for j, xq := range xx {
		idx := sort.Search(n, func(i int) bool {
			if i == 0 {
				return false // -inf sentinel
			}
			if i == nn {
				return true // +inf sentinel
			}
			return x[i] > xq
		}) - 1
		xs := xq - x[idx]
		yy[j] = ((c1[idx]*xs+c2[idx])*xs+d[idx])*xs + y[idx]
	}
	return yy
}

// sgn matches the matlab sign(): 0 maps to 0, unlike math.Copysign.
func sgn(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}
