package sgdive

import (
	"math"
)

// UNESCO 1983 (EOS-80) seawater routines.
// References:
//
//	Fofonoff, P. and Millard, R.C. Jr, UNESCO 1983. Algorithms for
//	computation of fundamental properties of seawater. UNESCO Tech.
//	Pap. in Mar. Sci., No. 44, 53 pp.
//	Millero, F.J. and Poisson, A. International one-atmosphere equation
//	of state of seawater. Deep-Sea Res. 1981. Vol28A(6) pp625-629.

// C3515 is the conductivity at S=35, T=15, P=0 in S/m (42.914 mS/cm),
// where the conductivity ratio is 1.
const C3515 = 4.2914

// swSmow is the density of Standard Mean Ocean Water (pure water).
func swSmow(t float64) float64 {
	const a0, a1, a2, a3, a4, a5 = 999.842594, 6.793952e-2, -9.095290e-3, 1.001685e-4,
		-1.120083e-6, 6.536332e-9
	return a0 + (a1+(a2+(a3+(a4+a5*t)*t)*t)*t)*t
}

// SwDens0 is the density [kg/m^3] of seawater at atmospheric pressure.
// s in psu (PSS-78), t in degC.
func SwDens0(s, t float64) float64 {
	const b0, b1, b2, b3, b4 = 8.24493e-1, -4.0899e-3, 7.6438e-5, -8.2467e-7, 5.3875e-9
	const c0, c1, c2 = -5.72466e-3, +1.0227e-4, -1.6546e-6
	const d0 = 4.8314e-4
	return swSmow(t) + (b0+(b1+(b2+(b3+b4*t)*t)*t)*t)*s +
		(c0+(c1+c2*t)*t)*s*math.Sqrt(s) + d0*s*s
}

// swSeck is the secant bulk modulus [bars] of seawater. p in dbar.
func swSeck(s, t, p float64) float64 {
	p = p / 10.0 // dbar to atmospheric pressure units

	const h3, h2, h1, h0 = -5.77905e-7, +1.16092e-4, +1.43713e-3, +3.239908
	aw := h0 + (h1+(h2+h3*t)*t)*t

	const k2, k1, k0 = 5.2787e-8, -6.12293e-6, +8.50935e-5
	bw := k0 + (k1+k2*t)*t

	const e4, e3, e2, e1, e0 = -5.155288e-5, +1.360477e-2, -2.327105, +148.4206, 19652.21
	kw := e0 + (e1+(e2+(e3+e4*t)*t)*t)*t

	const j0 = 1.91075e-4
	const i2, i1, i0 = -1.6078e-6, -1.0981e-5, 2.2838e-3
	sr := math.Sqrt(s)
	a := aw + (i0+(i1+i2*t)*t+j0*sr)*s

	const m2, m1, m0 = 9.1697e-10, +2.0816e-8, -9.9348e-7
	b := bw + (m0+(m1+m2*t)*t)*s

	const f3, f2, f1, f0 = -6.1670e-5, +1.09987e-2, -0.603459, +54.6746
	const g2, g1, g0 = -5.3009e-4, +1.6483e-2, +7.944e-2
	k0v := kw + (f0+(f1+(f2+f3*t)*t)*t+(g0+(g1+g2*t)*t)*sr)*s

	return k0v + (a+b*p)*p
}

// SwDens is the in situ density [kg/m^3] of seawater. p in dbar.
func SwDens(s, t, p float64) float64 {
	densP0 := SwDens0(s, t)
	k := swSeck(s, t, p)
	p = p / 10.0
	return densP0 / (1 - p/k)
}

// swAdtg is the adiabatic temperature gradient [degC/dbar].
func swAdtg(s, t, p float64) float64 {
	const a0, a1, a2, a3 = 3.5803e-5, +8.5258e-6, -6.836e-8, 6.6228e-10
	const b0, b1 = +1.8932e-6, -4.2393e-8
	const c0, c1, c2, c3 = +1.8741e-8, -6.7795e-10, +8.733e-12, -5.4481e-14
	const d0, d1 = -1.1351e-10, 2.7759e-12
	const e0, e1, e2 = -4.6206e-13, +1.8676e-14, -2.1687e-16
	return a0 + (a1+(a2+a3*t)*t)*t + (b0+b1*t)*(s-35) +
		((c0+(c1+(c2+c3*t)*t)*t)+(d0+d1*t)*(s-35))*p + (e0+(e1+e2*t)*t)*p*p
}

// SwPtmp is the potential temperature referenced to pressure pr,
// via the Runge-Kutta 4th order integration of the adiabatic lapse rate.
func SwPtmp(s, t, p, pr float64) float64 {
	delP := pr - p
	delTh := delP * swAdtg(s, t, p)
	th := t + 0.5*delTh
	q := delTh

	delTh = delP * swAdtg(s, th, p+0.5*delP)
	th = th + (1-1/math.Sqrt(2))*(delTh-q)
	q = (2-math.Sqrt(2))*delTh + (-2+3/math.Sqrt(2))*q

	delTh = delP * swAdtg(s, th, p+0.5*delP)
	th = th + (1+1/math.Sqrt(2))*(delTh-q)
	q = (2+math.Sqrt(2))*delTh + (-2-3/math.Sqrt(2))*q

	delTh = delP * swAdtg(s, th, p+delP)
	return th + (delTh-2*q)/6
}

// SwDpth converts pressure [dbar] to depth [m] at the given latitude
// [decimal degrees].
func SwDpth(p, lat float64) float64 {
	const c1, c2, c3, c4, gamDash = +9.72659, -2.2512e-5, +2.279e-10, -1.82e-15, 2.184e-6
	x := math.Sin(math.Abs(lat) * deg2rad)
	x = x * x
	bot := 9.780318*(1.0+(5.2788e-3+2.36e-5*x)*x) + gamDash*0.5*p
	top := (((c4*p+c3)*p+c2)*p + c1) * p
	return top / bot
}

// PSS-78 practical salinity coefficients.
var (
	sal78a = [6]float64{0.0080, -0.1692, 25.3851, 14.0941, -7.0261, 2.7081}
	sal78b = [6]float64{0.0005, -0.0056, -0.0066, -0.0375, 0.0636, -0.0144}
)

// SwSalt computes practical salinity [psu] from the conductivity ratio
// r = C(S,T,P)/C(35,15,0), temperature [degC] and pressure [dbar].
func SwSalt(r, t, p float64) float64 {
	if r <= 0 {
		return 0
	}
	// rt: conductivity ratio of reference seawater at temperature t
	const c0, c1, c2, c3, c4 = 0.6766097, 2.00564e-2, 1.104259e-4, -6.9698e-7, 1.0031e-9
	rt35 := c0 + (c1+(c2+(c3+c4*t)*t)*t)*t
	// rp: pressure correction
	const e1, e2, e3 = 2.070e-5, -6.370e-10, 3.989e-15
	const d1, d2, d3, d4 = 3.426e-2, 4.464e-4, 4.215e-1, -3.107e-3
	rp := 1 + p*(e1+p*(e2+p*e3))/(1+d1*t+d2*t*t+(d3+d4*t)*r)
	rt := r / (rp * rt35)

	var sum1, sum2 float64
	for i := 0; i < 6; i++ {
		pw := math.Pow(rt, float64(i)/2.0)
		sum1 += sal78a[i] * pw
		sum2 += sal78b[i] * pw
	}
	dt := t - 15
	return sum1 + sum2*dt/(1+0.0162*dt)
}

// SwCndr inverts SwSalt: the conductivity ratio that yields salinity s
// at temperature t and pressure p. Newton iteration on the forward
// polynomial; converges to well below 1e-8 psu in a handful of steps
// for oceanographic ranges.
func SwCndr(s, t, p float64) float64 {
	r := s / 35.0 // reasonable starting point
	if r <= 0 {
		r = 1e-3
	}
	for iter := 0; iter < 50; iter++ {
		f := SwSalt(r, t, p) - s
		if math.Abs(f) < 1e-10 {
			break
		}
		const dr = 1e-6
		df := (SwSalt(r+dr, t, p) - SwSalt(r-dr, t, p)) / (2 * dr)
		if df == 0 || math.IsNaN(df) {
			break
		}
		r -= f / df
	}
	return r
}

// SwCondFromSalinity returns conductivity [S/m] for the given salinity,
// temperature and pressure.
func SwCondFromSalinity(s, t, p float64) float64 {
	return SwCndr(s, t, p) * C3515
}

// SwSigmaT is density at atmospheric pressure minus 1000 kg/m^3.
func SwSigmaT(s, t float64) float64 {
	return SwDens0(s, t) - 1000.0
}
