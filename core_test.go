package sgdive

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightDive is the canonical benign scenario: constant 10 C / 35 psu
// water, a clean V profile, pure buoyancy flight and honest GPS fixes.
func straightDive() (*DiveRecord, *CalibConsts) {
	d := testDive()
	cc := flightCalib()
	cc.Volmax = 51000
	cc.SbectModes = 5
	// still rotating off the surface for the first couple of samples
	d.PitchDeg[0] = -5
	d.PitchDeg[1] = -5
	// VBD trimmed so the vehicle is heavy on the dive, light on the climb
	for i := range d.VbdCC {
		neutral := cc.Mass/SwDens(35, 10, d.PressureDbar[i])*1e6 - cc.Volmax
		if i < 31 {
			d.VbdCC[i] = neutral - 250
		} else {
			d.VbdCC[i] = neutral + 250
		}
	}
	return d, cc
}

func TestProcessDiveStraight(t *testing.T) {
	d, cc := straightDive()
	res := ProcessDive(d, cc, NewProfileDirectives(d.DiveNumber))

	require.False(t, res.ProcessingError)
	require.False(t, res.SkippedProfile)
	assert.True(t, res.Converged)

	np := d.Np()
	// length preservation: every output vector matches the grid, every
	// QC vector matches its data vector
	assert.Len(t, res.Temperature, np)
	assert.Len(t, res.TemperatureQc, np)
	assert.Len(t, res.Conductivity, np)
	assert.Len(t, res.ConductivityQc, np)
	assert.Len(t, res.Salinity, np)
	assert.Len(t, res.SalinityQc, np)
	assert.Len(t, res.SpeedCmS, np)
	assert.Len(t, res.SpeedQc, np)
	assert.Len(t, res.Latitude, np)
	assert.Len(t, res.Longitude, np)

	for i := 0; i < np; i++ {
		if math.IsNaN(res.Salinity[i]) {
			continue
		}
		assert.InDelta(t, 35.0, res.Salinity[i], 0.05, "salinity index %d", i)
	}
	for i := 0; i < np; i++ {
		if math.IsNaN(res.Temperature[i]) {
			continue
		}
		assert.InDelta(t, 10.0, res.Temperature[i], 0.05, "temperature index %d", i)
	}
	assert.Contains(t, []QcFlag{QcGood, QcProbablyGood}, res.CtdQc)

	// bad implies NaN after final reconciliation
	for i := 0; i < np; i++ {
		switch res.SalinityQc[i] {
		case QcBad, QcProbablyBad, QcUnsampled:
			assert.True(t, math.IsNaN(res.Salinity[i]), "index %d", i)
		}
	}

	// inheritance closure: non-good T implies non-good S
	for i := 0; i < np; i++ {
		if res.TemperatureQc[i] != QcGood {
			assert.NotEqual(t, QcGood, res.SalinityQc[i], "index %d", i)
		}
	}
}

func TestProcessDiveSkipDirective(t *testing.T) {
	d, cc := straightDive()
	dir := NewProfileDirectives(d.DiveNumber)
	dir.ParseString("* skip_profile")
	res := ProcessDive(d, cc, dir)
	assert.True(t, res.SkippedProfile)
	assert.False(t, res.ProcessingError)
	// no corrections attempted
	assert.Nil(t, res.Salinity)
}

func TestProcessDiveBadGps(t *testing.T) {
	d, cc := straightDive()
	d.GPS2.Hdop = 99
	res := ProcessDive(d, cc, NewProfileDirectives(d.DiveNumber))

	require.False(t, res.ProcessingError)
	assert.Equal(t, QcBad, res.DacQc)
	assert.True(t, math.IsNaN(float64(res.DepthAvgCurrEastMS)))
	assert.True(t, math.IsNaN(float64(res.DepthAvgCurrNorthMS)))
	// other outputs unaffected
	assert.True(t, res.Converged)
	for i := range res.Salinity {
		if !math.IsNaN(res.Salinity[i]) {
			assert.InDelta(t, 35.0, res.Salinity[i], 0.05)
		}
	}
}

func TestProcessDiveMissingCalibration(t *testing.T) {
	d, _ := straightDive()
	cc := DefaultCalibConsts() // hd_a/b/c, mass etc never set
	res := ProcessDive(d, cc, NewProfileDirectives(d.DiveNumber))
	assert.True(t, res.ProcessingError)
	assert.NotEmpty(t, res.Errors)
}

func TestProcessDiveAllBadSalinityDoesNotConverge(t *testing.T) {
	d, cc := straightDive()
	dir := NewProfileDirectives(d.DiveNumber)
	dir.ParseString("* bad_salinity data_points above -1")
	res := ProcessDive(d, cc, dir)

	require.False(t, res.ProcessingError)
	assert.False(t, res.Converged)
	// the solver gives up and suggests skipping the profile
	found := false
	for _, s := range res.Suggestions {
		if s == "12 skip_profile % nonconverged" {
			found = true
		}
	}
	assert.True(t, found, "suggestions: %v", res.Suggestions)
}

func TestProcessDiveSurfaceBubble(t *testing.T) {
	d, cc := straightDive()
	// conductivity dropout in the first few samples, shallower than 3 m
	d.CondRaw[1] -= 2.0
	d.CondRaw[2] -= 2.0
	res := ProcessDive(d, cc, NewProfileDirectives(d.DiveNumber))

	require.False(t, res.ProcessingError)
	for _, i := range []int{1, 2, 3} {
		assert.Equal(t, QcBad, res.ConductivityQc[i], "index %d", i)
		assert.True(t, math.IsNaN(res.Salinity[i]), "index %d", i)
	}
	// the rest of the profile is unharmed
	good := 0
	for i := 5; i < d.Np(); i++ {
		if res.SalinityQc[i] == QcGood {
			good++
		}
	}
	assert.Greater(t, good, d.Np()/2)
}

func TestProcessDiveQcHistory(t *testing.T) {
	d, cc := straightDive()
	d.TempRaw[40] = math.NaN() // a thermistor timeout
	res := ProcessDive(d, cc, NewProfileDirectives(d.DiveNumber))
	require.False(t, res.ProcessingError)
	assert.Equal(t, QcMissing, res.TemperatureQc[40])
	require.NotEmpty(t, res.QcHistory)
	found := false
	for _, line := range res.QcHistory {
		if line == "Changed (1/61) 41 to QC_MISSING because temperature missing" {
			found = true
		}
	}
	assert.True(t, found, "history: %v", res.QcHistory)
}

func TestProcessDiveIsolation(t *testing.T) {
	// dives are isolated: processing the same record twice gives the
	// same answers (the mode-table cache is the only shared state)
	d1, cc := straightDive()
	d2, _ := straightDive()
	r1 := ProcessDive(d1, cc, NewProfileDirectives(d1.DiveNumber))
	r2 := ProcessDive(d2, cc, NewProfileDirectives(d2.DiveNumber))
	require.False(t, r1.ProcessingError)
	require.False(t, r2.ProcessingError)
	assert.Equal(t, r1.Converged, r2.Converged)
	for i := range r1.Salinity {
		if math.IsNaN(r1.Salinity[i]) {
			assert.True(t, math.IsNaN(r2.Salinity[i]))
			continue
		}
		assert.Equal(t, r1.Salinity[i], r2.Salinity[i], "index %d", i)
	}
}

func TestQInfo(t *testing.T) {
	d, _ := straightDive()
	qa := d.QInfo()
	assert.True(t, qa.ConsistentGrids)
	assert.True(t, qa.MonotonicTime)
	assert.False(t, qa.DuplicateTimes)
	assert.Equal(t, d.Np(), qa.SampleCount)

	d.TimeS[5] = d.TimeS[4]
	qa = d.QInfo()
	assert.True(t, qa.DuplicateTimes)
	assert.False(t, qa.MonotonicTime)
}

func TestResultsSummary(t *testing.T) {
	d, cc := straightDive()
	res := ProcessDive(d, cc, NewProfileDirectives(d.DiveNumber))
	require.False(t, res.ProcessingError)
	s := res.Summary()
	assert.Equal(t, 0.0, s.StartTimeS)
	assert.Equal(t, 600.0, s.EndTimeS)
	assert.InDelta(t, 100.0, s.MaxDepth, 1.0)
	assert.GreaterOrEqual(t, s.MaxLatitude, s.MinLatitude)
	// the extent and the structural QA travel with the results
	assert.Equal(t, s, res.Extent)
	assert.Equal(t, d.Np(), res.Quality.SampleCount)
	assert.True(t, res.Quality.ConsistentGrids)
}

func TestResultsReportDocument(t *testing.T) {
	d, cc := straightDive()
	res := ProcessDive(d, cc, NewProfileDirectives(d.DiveNumber))
	require.False(t, res.ProcessingError)
	jsn, err := json.Marshal(res)
	require.NoError(t, err)
	doc := string(jsn)
	assert.Contains(t, doc, `"quality_info"`)
	assert.Contains(t, doc, `"summary"`)
	assert.Contains(t, doc, `"salinity_qc"`)
	assert.Contains(t, doc, `"dac_qc"`)
}
