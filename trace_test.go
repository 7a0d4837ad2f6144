package sgdive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceDump(t *testing.T) {
	tr := NewTrace("dive 7")
	tr.Array("speed", []float64{1.5, 2.5, 3.5})
	tr.ArrayI("bad_i", []int{0, 4})
	out := tr.String()
	assert.Contains(t, out, "Starting trace")
	assert.Contains(t, out, "dive 7")
	assert.Contains(t, out, "% speed = %E")
	assert.Contains(t, out, "1.5, 2.5, 3.5")
	// index arrays are dumped 1-based
	assert.Contains(t, out, "1, 5")
}

func TestTraceNilSink(t *testing.T) {
	var tr *Trace
	tr.Comment("ignored")
	tr.Array("x", []float64{1})
	tr.ArrayI("i", []int{1})
	assert.Equal(t, "", tr.String())
}
