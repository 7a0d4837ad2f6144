package sgdive

import (
	"errors"
)

var ErrMissingCalib = errors.New("Required Calibration Constant Missing")
var ErrTooFewSamples = errors.New("Fewer Than 3 Valid Samples")
var ErrEmptyGcRecords = errors.New("No GC Records In Log")
var ErrGpsTriple = errors.New("GPS Fix Triple Invalid")
var ErrNonConvergence = errors.New("TSV Iteration Did Not Converge")
var ErrNumericDegenerate = errors.New("Degenerate Numeric Result")
var ErrModeTables = errors.New("Unable To Load Thermal-Inertia Mode Tables")
var ErrSkippedProfile = errors.New("Profile Skipped By Directive")
var ErrWriteReport = errors.New("Error Writing Dive Report")
var ErrCreateProfileTdb = errors.New("Error Creating Profile TileDB Array")
var ErrWriteProfileTdb = errors.New("Error Writing Profile TileDB Array")
var ErrCreateAttributeTdb = errors.New("Error Creating Attribute for TileDB Array")
var ErrCreateSchemaTdb = errors.New("Error Creating TileDB Schema")
var ErrCreateDimTdb = errors.New("Error Creating TileDB Dimension")
var ErrAddFilters = errors.New("Error Adding Filter To FilterList")
var ErrDtype = errors.New("Error Slice Datatype Is Unexpected")
var ErrSetBuff = errors.New("Error Setting TileDB Buffer")
var ErrFiltList = errors.New("Error Creating TileDB Filter List")
var ErrNewAttr = errors.New("Error Creating TileDB Attribute")
var ErrNewFilt = errors.New("Error Creating TileDB Filter")
var ErrSetFiltList = errors.New("Error Setting TileDB Filter List")
var ErrAddAttr = errors.New("Error Adding TileDB Attribute")
var ErrZstdFilt = errors.New("Error Creating TileDB ZStandard Filter")
