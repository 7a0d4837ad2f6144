package sgdive

import (
	"bytes"
	"math"
	"strconv"
)

// FloatVector is a data vector that marshals NaN and infinities as JSON
// null, so reports stay valid JSON while the in-memory convention for
// invalid samples remains NaN.
type FloatVector []float64

func (v FloatVector) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			b.WriteString("null")
		} else {
			b.Write(strconv.AppendFloat(nil, x, 'g', -1, 64))
		}
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

// FloatScalar is a single estimate with the same null-for-NaN encoding.
type FloatScalar float64

func (s FloatScalar) MarshalJSON() ([]byte, error) {
	x := float64(s)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
}

// Results is everything the core produces for one dive. The core always
// returns a Results, even on failure: errors are fields, never panics
// escaping the boundary.
type Results struct {
	ID         string `json:"id"`
	DiveNumber int    `json:"dive_number"`

	// grids
	TimeS        FloatVector `json:"time_s"`
	PressureDbar FloatVector `json:"pressure_dbar"`
	DepthM       FloatVector `json:"depth_m"`

	// corrected vectors with paired QC
	Temperature    FloatVector `json:"temperature"`
	TemperatureQc  []QcFlag    `json:"temperature_qc"`
	Conductivity   FloatVector `json:"conductivity"`
	ConductivityQc []QcFlag    `json:"conductivity_qc"`
	Salinity       FloatVector `json:"salinity"`
	SalinityQc     []QcFlag    `json:"salinity_qc"`

	Density       FloatVector `json:"density"`
	DensityInsitu FloatVector `json:"density_insitu"`
	Buoyancy      FloatVector `json:"buoyancy"`

	SpeedCmS      FloatVector `json:"speed_cm_s"`
	GlideAngleRad FloatVector `json:"glide_angle_rad"`
	SpeedQc       []QcFlag    `json:"speed_qc"`

	// derived positions
	Latitude  FloatVector `json:"latitude"`
	Longitude FloatVector `json:"longitude"`

	// currents
	DepthAvgCurrEastMS   FloatScalar `json:"depth_avg_curr_east_m_s"`
	DepthAvgCurrNorthMS  FloatScalar `json:"depth_avg_curr_north_m_s"`
	SurfaceCurrentMS     FloatScalar `json:"surface_current_m_s"`
	SurfaceCurrentDirDeg FloatScalar `json:"surface_current_dir_deg"`

	// scalar verdicts
	CtdQc      QcFlag `json:"ctd_qc"`
	HdmQc      QcFlag `json:"hdm_qc"`
	DacQc      QcFlag `json:"dac_qc"`
	SurfCurrQc QcFlag `json:"surface_curr_qc"`

	Converged       bool `json:"converged"`
	SkippedProfile  bool `json:"skipped_profile"`
	ProcessingError bool `json:"processing_error"`

	// structural QA of the raw record and the extent of the processed dive
	Quality QualityInfo `json:"quality_info"`
	Extent  DiveSummary `json:"summary"`

	// diagnostics
	QcHistory   []string `json:"qc_history,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Errors      []string `json:"errors,omitempty"`

	QcLog *QcLog `json:"-"`
	Trace *Trace `json:"-"`
}
