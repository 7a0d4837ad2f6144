package sgdive

import (
	"fmt"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Trace is a named-array dump stream for cross-implementation
// comparison of the numeric pipeline. Results are dumped in a form that
// is easily read back into either MATLAB or numpy tooling for
// programmatic diffing; the header carries the wall time both as an
// epoch and as a Julian Day so MATLAB datenum-based tooling can line
// traces up without parsing dates.
//
// A nil *Trace is a valid sink that drops everything.
type Trace struct {
	b  strings.Builder
	nc int // values per line
}

// NewTrace starts a trace with an identifying tag.
func NewTrace(tag string) *Trace {
	t := &Trace{nc: 6}
	now := time.Now().UTC()
	t.Comment(fmt.Sprintf("Starting trace at %d (JD %.6f)", now.Unix(), julian.TimeToJD(now)))
	t.Comment(tag)
	return t
}

// Comment writes a comment line.
func (t *Trace) Comment(s string) {
	if t == nil {
		return
	}
	fmt.Fprintf(&t.b, "%% %s\n", s)
}

// Array dumps a named float vector.
func (t *Trace) Array(tag string, x []float64) {
	if t == nil {
		return
	}
	fmt.Fprintf(&t.b, "%% %s = %%E\n[", tag)
	prefix := ""
	start := 0
	for i, v := range x {
		t.b.WriteString(prefix)
		if (i+1)%t.nc == 0 {
			fmt.Fprintf(&t.b, "%%E %s %d\n", tag, start+1) // 1-based index
			start = i
		}
		fmt.Fprintf(&t.b, "%g", v)
		prefix = ", "
	}
	t.b.WriteString("]\n")
}

// ArrayI dumps a named index vector, 1-based.
func (t *Trace) ArrayI(tag string, x []int) {
	if t == nil {
		return
	}
	f := make([]float64, len(x))
	for i, v := range x {
		f[i] = float64(v + 1)
	}
	t.Array(tag, f)
}

// String returns the accumulated trace text.
func (t *Trace) String() string {
	if t == nil {
		return ""
	}
	return t.b.String()
}
