package sgdive

import (
	"math"
)

// GpsFix is one surface GPS fix. Valid is the outcome of the fix
// validation in Preflight; callers may pre-clear it.
type GpsFix struct {
	TimeS  float64 `json:"time_s"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Hdop   float64 `json:"hdop"`
	HorErr float64 `json:"horizontal_error_m"`
	Valid  bool    `json:"valid"`
}

// GcRecord is one guidance-and-control event from the vehicle log:
// motor seconds for the pitch, roll and VBD moves plus the VBD pot
// positions bracketing the move.
type GcRecord struct {
	StSecs     float64 `json:"st_secs"`  // start of the GC, epoch seconds
	EndSecs    float64 `json:"end_secs"` // end of the GC (motors stopped)
	PitchSecs  float64 `json:"pitch_secs"`
	RollSecs   float64 `json:"roll_secs"`
	VbdSecs    float64 `json:"vbd_secs"`
	VbdCcStart float64 `json:"vbd_cc_start"` // displaced volume before the move
	VbdCcEnd   float64 `json:"vbd_cc_end"`   // displaced volume after the move
}

// DiveRecord is the raw per-dive telemetry handed to the core. All
// vectors on the vehicle grid have length Np; CT vectors are either on
// the same grid (CtTimeS nil) or on their own grid. Invalid samples are
// NaN or carry initial QC flags; the core preserves both conventions.
type DiveRecord struct {
	ID         string  `json:"id"`
	DiveNumber int     `json:"dive_number"`
	StartTime  float64 `json:"start_time"` // epoch seconds

	TimeS        []float64 `json:"time_s"` // elapsed seconds, increasing
	DepthM       []float64 `json:"depth_m"`
	PressureDbar []float64 `json:"pressure_dbar"`
	PitchDeg     []float64 `json:"pitch_deg"`
	RollDeg      []float64 `json:"roll_deg"`
	HeadingDeg   []float64 `json:"heading_deg"`
	VbdCC        []float64 `json:"vbd_cc"` // reconstructed from GC log if nil

	// Seabird CT observations, possibly on their own time grid.
	CtTimeS []float64 `json:"ct_time_s,omitempty"`
	TempRaw []float64 `json:"temp_raw"`
	CondRaw []float64 `json:"cond_raw"`

	// RBR legato observations, when sg_ct_type selects the legato.
	LegatoPressure []float64 `json:"legato_pressure,omitempty"`
	LegatoCondTemp []float64 `json:"legato_condtemp,omitempty"`

	// Auxiliary sensor boards, selected by the use_aux* switches.
	AuxPressureDbar  []float64 `json:"aux_pressure_dbar,omitempty"`
	AuxHeadingDeg    []float64 `json:"aux_heading_deg,omitempty"`
	AdcpPressureDbar []float64 `json:"adcp_pressure_dbar,omitempty"`

	GC []GcRecord `json:"gc"`

	GPS1 GpsFix `json:"gps1"` // pre-dive
	GPS2 GpsFix `json:"gps2"` // start of dive
	GPSE GpsFix `json:"gpse"` // end of dive

	MagVarDeg float64 `json:"magvar_deg"` // magnetic variation at the dive site

	SurfaceManeuverS float64 `json:"surface_maneuver_s"` // time spent maneuvering on the surface
}

// Np is the number of samples on the vehicle time grid.
func (d *DiveRecord) Np() int { return len(d.TimeS) }

// CalibConsts is the per-vehicle calibration and configuration set. The
// heterogeneous name->value mapping of the upstream file format becomes
// a typed struct with defaulted fields; keys the schema does not know
// are collected into Extra for forward compatibility.
type CalibConsts struct {
	// Hydrodynamic constants
	HdA          float64 `json:"hd_a"`
	HdB          float64 `json:"hd_b"`
	HdC          float64 `json:"hd_c"`
	HdS          float64 `json:"hd_s"`          // how the drag scales by shape
	Rho0         float64 `json:"rho0"`          // density at which drag was measured [kg/m^3]
	GliderLength float64 `json:"glider_length"` // [m]
	Mass         float64 `json:"mass"`          // [kg]
	Volmax       float64 `json:"volmax"`        // [cc]

	// Stall detection
	MaxStallSpeed float64 `json:"max_stall_speed"` // [cm/s]
	MinStallSpeed float64 `json:"min_stall_speed"` // [cm/s]
	MinStallAngle float64 `json:"min_stall_angle"` // [deg]

	// Hull volume model
	AbsCompress float64 `json:"abs_compress"` // hull compressibility [1/dbar]
	ThermExpan  float64 `json:"therm_expan"`  // hull thermal expansion [1/degC]
	TempRef     float64 `json:"temp_ref"`     // reference temperature [degC]
	MassComp    float64 `json:"mass_comp"`    // compressee mass [kg], 0 if none

	// Sensor biases
	TempBias float64 `json:"temp_bias"`
	CondBias float64 `json:"cond_bias"`

	// Pressure sensor counts -> dbar
	PressureSlope float64 `json:"pressure_slope"`
	PressureYint  float64 `json:"pressure_yint"`

	// CT sail geometry relative to the pressure sensor
	GliderXT float64 `json:"glider_xT"`
	GliderZT float64 `json:"glider_zT"`
	GliderXP float64 `json:"glider_xP"`
	GliderZP float64 `json:"glider_zP"`

	// SBE CT cell geometry and flow constants
	SgCtType           int     `json:"sg_ct_type"` // 0 original, 1 gun, 2 pumped, 4 legato
	SbectUnpumped      bool    `json:"sbect_unpumped"`
	SbectModes         int     `json:"sbect_modes"`       // 0 disables, else 1, 3 or 5
	SbectCellLength    float64 `json:"sbect_cell_length"` // narrow sample section [m]
	SbectXw            float64 `json:"sbect_x_w"`         // wide entry section length [m]
	SbectRw            float64 `json:"sbect_r_w"`         // wide entry section radius [m]
	SbectRn            float64 `json:"sbect_r_n"`         // narrow section radius [m]
	SbectXT            float64 `json:"sbect_x_T"`         // thermistor offset along axis [m]
	SbectZT            float64 `json:"sbect_z_T"`         // thermistor offset below axis [m]
	SbectXm            float64 `json:"sbect_x_m"`         // mouth length [m]
	SbectRm            float64 `json:"sbect_r_m"`         // mouth radius [m]
	SbectCd0           float64 `json:"sbect_C_d0"`
	SbectInletBlFactor float64 `json:"sbect_inlet_bl_factor"`
	SbectNu0i          float64 `json:"sbect_Nu_0i"`
	SbectNu0e          float64 `json:"sbect_Nu_0e"`
	SbectGpctdUf       float64 `json:"sbect_gpctd_u_f"`   // pumped flow speed [cm/s]
	SbectGpctdTau1     float64 `json:"sbect_gpctd_tau_1"` // pumped thermistor lag [s]
	SbectTauT          float64 `json:"sbect_tau_T"`       // thermistor response time [s]

	// Interstitial (flooded fairing) and wake buoyancy terms
	GliderInterstitialLength float64 `json:"glider_interstitial_length"`  // [m], 0 disables
	GliderInterstitialVolume float64 `json:"glider_interstitial_volume"`  // [m^3]
	GliderREn                float64 `json:"glider_r_en"`                 // nose entry hole radius [m]
	GliderWakeEntryThickness float64 `json:"glider_wake_entry_thickness"` // [m], 0 disables
	GliderVolWake            float64 `json:"glider_vol_wake"`             // [m^3]
	GliderRFair              float64 `json:"glider_r_fair"`               // fairing radius [m]

	// QC thresholds
	QcTempMin          float64 `json:"QC_temp_min"`
	QcTempMax          float64 `json:"QC_temp_max"`
	QcTempSpikeDepth   float64 `json:"QC_temp_spike_depth"` // 0 disables
	QcTempSpikeShallow float64 `json:"QC_temp_spike_shallow"`
	QcTempSpikeDeep    float64 `json:"QC_temp_spike_deep"`
	QcCondSpikeDepth   float64 `json:"QC_cond_spike_depth"`
	QcCondSpikeShallow float64 `json:"QC_cond_spike_shallow"`
	QcCondSpikeDeep    float64 `json:"QC_cond_spike_deep"`
	QcSalinMin         float64 `json:"QC_salin_min"`
	QcSalinMax         float64 `json:"QC_salin_max"`
	QcBoundAction      QcFlag  `json:"QC_bound_action"`
	QcSpikeAction      QcFlag  `json:"QC_spike_action"`
	QcHighFreqNoise    int     `json:"QC_high_freq_noise"` // noise filter window, 0 disables
	QcOverallCtdPct    float64 `json:"QC_overall_ctd_percentage"`
	QcOverallSpeedPct  float64 `json:"QC_overall_speed_percentage"`

	// Conductivity anomaly detection
	AirBubbleThreshold           float64 `json:"air_bubble_threshold"`
	AnomalyDiffFactor            float64 `json:"anomaly_diff_factor"`
	ThermoclineTempDiff          float64 `json:"thermocline_temp_diff"` // [degC/s]
	SurfaceBubbleFactor          float64 `json:"surface_bubble_factor"`
	AllowableCondAnomalyDistance float64 `json:"allowable_cond_anomaly_distance"` // [m]
	AcceptableAnomalyThreshold   float64 `json:"acceptable_anomaly_threshold"`
	SuspectSnot                  float64 `json:"suspect_snot"`

	// GPS validation
	GpsMaxHdop       float64 `json:"GPS_max_hdop"`
	GpsPositionError float64 `json:"GPS_position_error"` // [m]

	// RBR legato constants
	LegatoTimeLag             float64 `json:"legato_time_lag"` // [s]
	LegatoCtcoeff             float64 `json:"legato_ctcoeff"`
	LegatoTau                 float64 `json:"legato_tau"` // [s]
	LegatoAlpha               float64 `json:"legato_alpha"`
	LegatoCondPressCorrection float64 `json:"legato_cond_press_correction"`

	// Processing switches
	SolveFlareApogeeSpeed bool `json:"solve_flare_apogee_speed"`
	UseAuxPressure        bool `json:"use_auxpressure"`
	UseAuxCompass         bool `json:"use_auxcompass"`
	UseAdcpPressure       bool `json:"use_adcppressure"`

	// Unknown keys from the calibration file, preserved verbatim.
	Extra map[string]float64 `json:"extra,omitempty"`
}

// DefaultCalibConsts returns a CalibConsts with every defaulted field
// populated. Required keys (hd_a/b/c/s, rho0, glider_length, mass,
// volmax) default to zero and are checked by Validate.
func DefaultCalibConsts() *CalibConsts {
	return &CalibConsts{
		HdS:  -0.25,
		Rho0: 1027.5,

		MaxStallSpeed: 100,
		MinStallSpeed: 1,
		MinStallAngle: 5,

		AbsCompress: 4.4e-6,
		ThermExpan:  70.5e-6,
		TempRef:     15,

		PressureSlope: 1.0,

		SgCtType:      1,
		SbectUnpumped: true,
		SbectModes:    5,
		// SBE41 gun-style cell geometry
		SbectCellLength:    0.09,
		SbectXw:            0.0271,
		SbectRw:            0.0035,
		SbectRn:            0.002,
		SbectXT:            0.0146,
		SbectZT:            0.0133,
		SbectXm:            0.0086,
		SbectRm:            0.0081,
		SbectCd0:           2.4,
		SbectInletBlFactor: 0,
		SbectNu0i:          1,
		SbectNu0e:          1,
		SbectGpctdUf:       42.0, // pump rate, [cm/s]
		SbectGpctdTau1:     0.6,
		SbectTauT:          0.6,

		QcTempMin:          -2.5,
		QcTempMax:          43,
		QcTempSpikeDepth:   400,
		QcTempSpikeShallow: 2.0,
		QcTempSpikeDeep:    1.0,
		QcCondSpikeDepth:   400,
		QcCondSpikeShallow: 0.1,
		QcCondSpikeDeep:    0.05,
		QcSalinMin:         19.0,
		QcSalinMax:         45.0,
		QcBoundAction:      QcBad,
		QcSpikeAction:      QcInterpolated,
		QcHighFreqNoise:    15,
		QcOverallCtdPct:    0.3,
		QcOverallSpeedPct:  0.2,

		AirBubbleThreshold:           0.7,
		AnomalyDiffFactor:            0.25,
		ThermoclineTempDiff:          0.05,
		SurfaceBubbleFactor:          1.5,
		AllowableCondAnomalyDistance: 50,
		AcceptableAnomalyThreshold:   0.7,
		SuspectSnot:                  1.2,

		GpsMaxHdop:       2.0,
		GpsPositionError: 100,

		LegatoTimeLag: -0.8,
		LegatoTau:     10,
		LegatoAlpha:   0.08,
	}
}

// requiredCalibKeys must be present (non-zero) for the core to run.
var requiredCalibKeys = []string{
	"hd_a", "hd_b", "hd_c", "rho0", "glider_length", "mass", "volmax",
}

// Validate reports the required calibration keys that are missing.
func (cc *CalibConsts) Validate() []string {
	var missing []string
	checks := map[string]float64{
		"hd_a":          cc.HdA,
		"hd_b":          cc.HdB,
		"hd_c":          cc.HdC,
		"rho0":          cc.Rho0,
		"glider_length": cc.GliderLength,
		"mass":          cc.Mass,
		"volmax":        cc.Volmax,
	}
	for _, k := range requiredCalibKeys {
		if v, ok := checks[k]; ok && (v == 0 || math.IsNaN(v)) {
			missing = append(missing, k)
		}
	}
	return missing
}
