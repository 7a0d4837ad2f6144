package sgdive

import (
	"math"
)

// Final QC reconciliation. A QC tag has two phases: imperative, where a
// check decides a point is bad or needs interpolation, and declarative,
// where the tag is made to agree with the data. This file is the
// declarative end: once all the calculations have settled, bad points
// are nailed to NaN and whole-vector verdicts are struck.

// ApplyQcToData sets data to NaN wherever the terminal QC tag says the
// value must not be used. Data and QC vectors are paired; mutating one
// without the other breaks the pairing invariant, so this is the only
// place data is nulled from tags.
func ApplyQcToData(data []float64, qcV []QcFlag) {
	for i, q := range qcV {
		switch q {
		case QcBad, QcProbablyBad, QcUnsampled, QcMissing:
			data[i] = math.NaN()
		}
	}
}

// OverallQc reduces a QC vector to a whole-vector verdict: GOOD when
// nothing is off, PROBABLY_GOOD while the fraction of BAD, PROBABLY_BAD,
// UNSAMPLED or MISSING points stays at or under allowedBadFraction, BAD
// beyond it.
func OverallQc(qcV []QcFlag, allowedBadFraction float64) QcFlag {
	if len(qcV) == 0 {
		return QcUnsampled
	}
	bad := 0
	for _, q := range qcV {
		switch q {
		case QcBad, QcProbablyBad, QcUnsampled, QcMissing:
			bad++
		}
	}
	frac := float64(bad) / float64(len(qcV))
	switch {
	case bad == 0:
		return QcGood
	case frac <= allowedBadFraction:
		return QcProbablyGood
	default:
		return QcBad
	}
}

// countNaN reports how many entries are NaN.
func countNaN(v []float64) int {
	n := 0
	for _, x := range v {
		if math.IsNaN(x) {
			n++
		}
	}
	return n
}
