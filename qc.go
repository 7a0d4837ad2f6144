package sgdive

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// QcFlag is a per-sample quality control tag. The values follow the ARGO
// convention; the lattice ordering is encoded in trumpQc below.
type QcFlag int8

const (
	QcNoChange     QcFlag = 0 // no QC performed
	QcGood         QcFlag = 1 // ok
	QcProbablyGood QcFlag = 2
	QcProbablyBad  QcFlag = 3 // potentially correctable
	QcBad          QcFlag = 4 // untrustworthy and irreparable
	QcChanged      QcFlag = 5 // explicit manual change
	QcUnsampled    QcFlag = 6 // explicitly not sampled (vs. expected but missing)
	QcInterpolated QcFlag = 8 // interpolated value
	QcMissing      QcFlag = 9 // value missing -- instrument timed out
)

var qcNames = map[QcFlag]string{
	QcNoChange:     "QC_NO_CHANGE",
	QcGood:         "QC_GOOD",
	QcProbablyGood: "QC_PROBABLY_GOOD",
	QcProbablyBad:  "QC_PROBABLY_BAD",
	QcBad:          "QC_BAD",
	QcChanged:      "QC_CHANGED",
	QcUnsampled:    "QC_UNSAMPLED",
	QcInterpolated: "QC_INTERPOLATED",
	QcMissing:      "QC_MISSING",
}

func (q QcFlag) String() string {
	if s, ok := qcNames[q]; ok {
		return s
	}
	return fmt.Sprintf("QC_%d", int(q))
}

// OnlyGoodQcValues are tags whose data are directly usable.
var OnlyGoodQcValues = []QcFlag{QcGood, QcProbablyGood, QcChanged}

// GoodQcValues additionally admit interpolated points.
var GoodQcValues = []QcFlag{QcGood, QcProbablyGood, QcChanged, QcInterpolated}

// BadQcValues are tags whose data must not be used.
var BadQcValues = []QcFlag{QcBad, QcProbablyBad, QcUnsampled}

// InitQcVector creates a QC vector of the given length, all set to tag.
func InitQcVector(length int, tag QcFlag) []QcFlag {
	v := make([]QcFlag, length)
	for i := range v {
		v[i] = tag
	}
	return v
}

// trumpQc returns the set of already-present values that would trump
// (and hence suppress) an assertion of qc. Worst tag wins.
func trumpQc(qc QcFlag) []QcFlag {
	var trump []QcFlag
	switch qc {
	case QcInterpolated:
		trump = []QcFlag{QcProbablyBad, QcBad, QcUnsampled}
	case QcProbablyBad:
		trump = []QcFlag{QcBad, QcUnsampled}
	case QcGood, QcProbablyGood, QcBad, QcUnsampled, QcChanged, QcMissing:
		// these always override
	case QcNoChange:
		trump = lo.Keys(qcNames) // everything trumps NO_CHANGE
	default:
		log.Printf("No QC preference order for %s!", qc)
	}
	return append(trump, qc) // already set is a no-op
}

// UpdateQc updates a scalar QC value, respecting preference order.
func UpdateQc(qc, previous QcFlag) QcFlag {
	if lo.Contains(trumpQc(qc), previous) {
		return previous
	}
	return qc
}

// QcLogEntry records a single QC assertion that actually changed tags.
type QcLogEntry struct {
	Reason  string `json:"reason"`
	Value   QcFlag `json:"qc"`
	Indices []int  `json:"indices"`
}

// QcLog is the append-only diagnostic stream of QC changes. Reviewers can
// reconstruct the full QC history of a dive from it. A nil *QcLog is a
// valid sink that drops everything.
type QcLog struct {
	Entries []QcLogEntry
}

func (l *QcLog) add(reason string, qc QcFlag, indices []int) {
	if l == nil {
		return
	}
	l.Entries = append(l.Entries, QcLogEntry{Reason: reason, Value: qc, Indices: indices})
}

// History renders the log as the classic one-line-per-change record.
func (l *QcLog) History(total int) []string {
	if l == nil {
		return nil
	}
	lines := make([]string, 0, len(l.Entries))
	for _, e := range l.Entries {
		lines = append(lines, fmt.Sprintf("Changed (%d/%d) %s to %s because %s",
			len(e.Indices), total, SuccinctElts(e.Indices), e.Value, e.Reason))
	}
	return lines
}

// AssertQc asserts qc into qcV at the given indices, respecting the
// preference order: indices already holding a trumping value are left
// alone. Changes are appended to the sink with the supplied reason.
func AssertQc(qc QcFlag, qcV []QcFlag, indices []int, reason string, sink *QcLog) {
	if qc == QcNoChange {
		return // nothing to do
	}
	trump := trumpQc(qc)
	changed := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(qcV) {
			continue
		}
		if !lo.Contains(trump, qcV[i]) {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return
	}
	changed = lo.Uniq(changed)
	sort.Ints(changed)
	for _, i := range changed {
		qcV[i] = qc
	}
	sink.add(reason, qc, changed)
}

// InheritQc copies every distinct non-GOOD tag from one QC vector to
// another, respecting priority. Use only after the imperative phase has
// settled or derived quantities get double-corrected.
func InheritQc(fromQc, toQc []QcFlag, fromType, toType string, sink *QcLog) {
	reason := fmt.Sprintf("changed %s implies changed %s", fromType, toType)
	tags := map[QcFlag][]int{}
	for i, q := range fromQc {
		if q != QcGood {
			tags[q] = append(tags[q], i)
		}
	}
	keys := lo.Keys(tags)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, tag := range keys {
		AssertQc(tag, toQc, tags[tag], reason, sink)
	}
}

// FindQc returns the indices in qcV holding any of the given values.
func FindQc(qcV []QcFlag, values []QcFlag) []int {
	var out []int
	for i, q := range qcV {
		if lo.Contains(values, q) {
			out = append(out, i)
		}
	}
	return out
}

// BadQcIndices returns the locations of all "bad" tags.
func BadQcIndices(qcV []QcFlag) []int { return FindQc(qcV, BadQcValues) }

// GoodQcIndices returns the locations of all "good" tags.
func GoodQcIndices(qcV []QcFlag) []int { return FindQc(qcV, GoodQcValues) }

// qcCharacterBase encodes flags as '0'+flag when QC vectors are
// presented as character strings (the ARGO netCDF convention).
const qcCharacterBase = '0'

// EncodeQcString encodes a QC vector as a character string.
func EncodeQcString(qcV []QcFlag) string {
	var b strings.Builder
	b.Grow(len(qcV))
	for _, q := range qcV {
		b.WriteByte(byte(qcCharacterBase + q))
	}
	return b.String()
}

// DecodeQcString is the inverse of EncodeQcString.
func DecodeQcString(s string) []QcFlag {
	out := make([]QcFlag, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = QcFlag(s[i] - qcCharacterBase)
	}
	return out
}

// SuccinctElts renders an index set as 1-based run-length compressed
// ranges, e.g. "1:5 8 10:12".
func SuccinctElts(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.Ints(sorted)
	var parts []string
	start := sorted[0]
	prev := sorted[0]
	flush := func(end int) {
		if start == end {
			parts = append(parts, fmt.Sprintf("%d", start+1))
		} else {
			parts = append(parts, fmt.Sprintf("%d:%d", start+1, end+1))
		}
	}
	for _, i := range sorted[1:] {
		if i == prev+1 {
			prev = i
			continue
		}
		flush(prev)
		start = i
		prev = i
	}
	flush(prev)
	return strings.Join(parts, " ")
}

// EnsureIncreasingTime repairs a non-monotonic time vector by replacing
// non-positive steps with 1 ms and re-accumulating. Returns the repaired
// vector and the offending locations.
func EnsureIncreasingTime(timeV []float64, timeName string, startTime float64) ([]float64, []int) {
	if len(timeV) == 0 {
		log.Printf("No time points in %s", timeName)
		return timeV, nil
	}
	n := len(timeV)
	diff := make([]float64, n-1)
	var bad []int
	for i := 0; i < n-1; i++ {
		diff[i] = timeV[i+1] - timeV[i]
		if diff[i] <= 0 {
			bad = append(bad, i)
			diff[i] = 0.001
		}
	}
	corrected := make([]float64, n)
	copy(corrected, timeV)
	if len(bad) > 0 {
		log.Printf("%d bad time points in %s", len(bad), timeName)
		acc := 0.0
		for i := 1; i < n; i++ {
			acc += diff[i-1]
			corrected[i] = timeV[0] + acc
		}
	}
	if n <= 1 {
		log.Println("Time vector only one point long")
		return corrected, bad
	}
	offset := corrected[1] - startTime
	if math.Abs(offset) > 600 {
		log.Printf("%s different from vehicle clock by %f seconds", timeName, offset)
	}
	return corrected, bad
}
