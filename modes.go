package sgdive

import (
	"fmt"
	"math"
	"sync"
)

// Radial heat-transfer modes of the conductivity cell wall.
//
// The cell wall (glass tube inside a polyurethane jacket) exchanges heat
// with the sample stream on the inside and the external flow on the
// outside. Its response to a changing ambient temperature decomposes
// into decaying modes, each with a time constant tau_m and an amplitude
// A_m that depend on the interior and exterior Biot numbers Bi and Be.
// Those are functions of the flow regime, so tau and A are interpolated
// per sample from tables spanning the operating range of Bi and Be.
//
// The tables are computed once per (mode count, cell type) and cached
// process-wide; once built they are read-only and safe to share across
// concurrent dives.

// thermal diffusivity of the glass cell wall [m^2/s]
// (conductivity / (density * heat capacity) ~ 0.96 / (2230 * 750))
const kappaGlass = 5.74e-7

// cellWall describes the wall slab used for the modal solution.
type cellWall struct {
	thickness float64 // [m]
	kappa     float64 // [m^2/s]
}

var cellWalls = map[string]cellWall{
	"SGgun":      {thickness: 1.5e-3, kappa: kappaGlass},
	"SGoriginal": {thickness: 1.2e-3, kappa: kappaGlass},
}

// modeTable holds tau and A on the (Bi, Be) grid for one mode.
type modeTable struct {
	tau [][]float64
	a   [][]float64
}

// ModeSet is an immutable set of interpolation tables for the requested
// number of modes.
type ModeSet struct {
	Modes  int
	biGrid []float64
	beGrid []float64
	tables []modeTable
	BiMin  float64
	BiMax  float64
	BeMin  float64
	BeMax  float64
}

var (
	modeCacheMu sync.Mutex
	modeCache   = map[string]*ModeSet{}
)

// LoadThermalInertiaModes returns the mode tables for the given mode
// count and cell type, building them on first use.
//
// numModes should be odd: 1 is a single-pole approximation, 3 is a
// little better and quicker than 5, 5 is preferred. 0 disables the modal
// correction entirely and returns an empty set.
func LoadThermalInertiaModes(numModes int, cellType string) (*ModeSet, error) {
	if numModes == 0 {
		return &ModeSet{Modes: 0}, nil
	}
	wall, ok := cellWalls[cellType]
	if !ok {
		return nil, fmt.Errorf("%w: no mode parameter data for cell type %q", ErrModeTables, cellType)
	}
	key := fmt.Sprintf("%d/%s", numModes, cellType)
	modeCacheMu.Lock()
	defer modeCacheMu.Unlock()
	if ms, ok := modeCache[key]; ok {
		return ms, nil
	}
	ms := buildModeSet(numModes, wall)
	modeCache[key] = ms
	return ms, nil
}

// buildModeSet solves the wall conduction eigenproblem over a log-spaced
// Biot grid. The wall is treated as a plane slab of the tube thickness;
// the hollow-cylinder solution differs by terms of order d/r_n.
func buildModeSet(numModes int, wall cellWall) *ModeSet {
	const gridN = 41
	biGrid := logspace(1e-3, 20.0, gridN)
	beGrid := logspace(1e-3, 20.0, gridN)

	ms := &ModeSet{
		Modes:  numModes,
		biGrid: biGrid,
		beGrid: beGrid,
		tables: make([]modeTable, numModes),
		BiMin:  biGrid[0],
		BiMax:  biGrid[gridN-1],
		BeMin:  beGrid[0],
		BeMax:  beGrid[gridN-1],
	}
	tau0 := wall.thickness * wall.thickness / wall.kappa

	for m := 0; m < numModes; m++ {
		ms.tables[m].tau = alloc2d(gridN, gridN)
		ms.tables[m].a = alloc2d(gridN, gridN)
	}
	lambda := make([]float64, numModes)
	amp := make([]float64, numModes)
	for i, bi := range biGrid {
		for j, be := range beGrid {
			slabModes(bi, be, lambda, amp)
			for m := 0; m < numModes; m++ {
				ms.tables[m].tau[i][j] = tau0 / (lambda[m] * lambda[m])
				ms.tables[m].a[i][j] = amp[m]
			}
		}
	}
	return ms
}

// slabModes finds the first len(lambda) eigenvalues of
//
//	tan(l) = l*(Bi+Be)/(l^2 - Bi*Be)
//
// (a slab with Robin boundary conditions on both faces) and the modal
// amplitudes, normalized so their sum carries the interior coupling
// fraction Bi/(Bi+Be).
func slabModes(bi, be float64, lambda, amp []float64) {
	f := func(l float64) float64 {
		return (l*l-bi*be)*math.Sin(l) - l*(bi+be)*math.Cos(l)
	}
	for m := range lambda {
		lo := float64(m)*math.Pi + 1e-9
		hi := float64(m+1)*math.Pi - 1e-9
		// the eigencondition has exactly one root per pi interval
		flo := f(lo)
		for iter := 0; iter < 80; iter++ {
			mid := 0.5 * (lo + hi)
			fm := f(mid)
			if fm == 0 {
				lo, hi = mid, mid
				break
			}
			if (flo < 0) == (fm < 0) {
				lo = mid
				flo = fm
			} else {
				hi = mid
			}
		}
		lambda[m] = 0.5 * (lo + hi)
	}
	var total float64
	for m := range amp {
		l2 := lambda[m] * lambda[m]
		amp[m] = 2 * bi * (l2 + be*be) / ((l2 + bi*bi + bi) * (l2 + be*be + be))
		total += amp[m]
	}
	weight := bi / (bi + be)
	for m := range amp {
		amp[m] *= weight / total
	}
}

// Interp bilinearly interpolates (tau, A) for the given mode at (bi,
// be), clamped into the table domain.
func (ms *ModeSet) Interp(mode int, bi, be float64) (float64, float64) {
	bi = clamp(bi, ms.BiMin, ms.BiMax)
	be = clamp(be, ms.BeMin, ms.BeMax)
	i, fi := gridLocate(ms.biGrid, bi)
	j, fj := gridLocate(ms.beGrid, be)
	t := ms.tables[mode]
	tau := bilerp(t.tau, i, j, fi, fj)
	a := bilerp(t.a, i, j, fi, fj)
	return tau, a
}

func bilerp(t [][]float64, i, j int, fi, fj float64) float64 {
	return (1-fi)*(1-fj)*t[i][j] + fi*(1-fj)*t[i+1][j] +
		(1-fi)*fj*t[i][j+1] + fi*fj*t[i+1][j+1]
}

// gridLocate returns the lower cell index and the fractional position of
// v within an ascending grid.
func gridLocate(grid []float64, v float64) (int, float64) {
	n := len(grid)
	if v <= grid[0] {
		return 0, 0
	}
	if v >= grid[n-1] {
		return n - 2, 1
	}
	for i := 1; i < n; i++ {
		if grid[i] >= v {
			return i - 1, (v - grid[i-1]) / (grid[i] - grid[i-1])
		}
	}
	return n - 2, 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func logspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	llo, lhi := math.Log(lo), math.Log(hi)
	for i := range out {
		out[i] = math.Exp(llo + (lhi-llo)*float64(i)/float64(n-1))
	}
	return out
}

func alloc2d(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}
