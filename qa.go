package sgdive

import (
	"github.com/samber/lo"
)

// QualityInfo is the structural QA over one dive's raw telemetry,
// computed before any science processing. It answers the boring but
// load-bearing questions: are the grids consistent, did the clock
// behave, how much of each channel is actually there.
type QualityInfo struct {
	SampleCount       int
	ConsistentGrids   bool
	DuplicateTimes    bool
	Duplicates        []float64
	MonotonicTime     bool
	MissingTempCount  int
	MissingCondCount  int
	MissingDepthCount int
}

// QInfo computes the structural quality info for a dive record.
func (d *DiveRecord) QInfo() QualityInfo {
	var qa QualityInfo

	np := d.Np()
	qa.SampleCount = np

	// the general idea is to know whether we're dealing with consistent
	// grid lengths before anything downstream assumes it
	qa.ConsistentGrids = true
	for _, n := range []int{len(d.DepthM), len(d.PressureDbar), len(d.PitchDeg),
		len(d.RollDeg), len(d.HeadingDeg)} {
		if n != 0 && n != np {
			qa.ConsistentGrids = false
		}
	}

	// duplicate sample times. loggers with a failing RTC have produced
	// repeated or backwards timestamps; the repair is elsewhere, this
	// just reports
	duplicates := lo.FindDuplicates(d.TimeS)
	qa.DuplicateTimes = len(duplicates) > 0
	if qa.DuplicateTimes {
		qa.Duplicates = duplicates
	} else {
		qa.Duplicates = make([]float64, 0)
	}

	qa.MonotonicTime = true
	for i := 1; i < np; i++ {
		if d.TimeS[i] <= d.TimeS[i-1] {
			qa.MonotonicTime = false
			break
		}
	}

	qa.MissingTempCount = countNaN(d.TempRaw)
	qa.MissingCondCount = countNaN(d.CondRaw)
	qa.MissingDepthCount = countNaN(d.DepthM)

	return qa
}
