package sgdive

import (
	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// The start and end times bracket the vehicle attitude record; samples
// use elapsed seconds from dive start, so the end time reflects the
// last measurement, not the surfacing.
type AttitudeSummary struct {
	StartTimeS       float64
	EndTimeS         float64
	MeasurementCount uint64
}

// Attitude contains the measurements as reported by the vehicle
// attitude sensor. Fields include: TimeS, Pitch, Roll and Heading.
type Attitude struct {
	TimeS   []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Pitch   []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Roll    []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Heading []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
}

// AttitudeRecords gathers the attitude vectors of a dive.
func AttitudeRecords(dive *DiveRecord) *Attitude {
	return &Attitude{
		TimeS:   dive.TimeS,
		Pitch:   dive.PitchDeg,
		Roll:    dive.RollDeg,
		Heading: dive.HeadingDeg,
	}
}

// Summary describes the temporal extent of the attitude record.
func (att *Attitude) Summary() AttitudeSummary {
	n := len(att.TimeS)
	if n == 0 {
		return AttitudeSummary{}
	}
	return AttitudeSummary{
		StartTimeS:       att.TimeS[0],
		EndTimeS:         att.TimeS[n-1],
		MeasurementCount: uint64(n),
	}
}

// ToTileDB writes the attitude record as a dense array at the given uri.
func (att *Attitude) ToTileDB(fileURI string, ctx *tiledb.Context) error {
	return writeDense(fileURI, ctx, att, uint64(len(att.TimeS)))
}
