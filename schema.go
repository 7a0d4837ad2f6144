package sgdive

import (
	"errors"
	"math"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

// ProfileArrays is the serialisable form of a processed dive: the
// corrected vectors and their paired QC vectors, one row per CTD
// sample. The tiledb and filters tags drive the schema construction;
// QC vectors are stored as small integers (the character encoding of
// the netCDF convention is presentation only).
type ProfileArrays struct {
	TimeS        []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	PressureDbar []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	DepthM       []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Temperature  []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	TempQc       []int8    `tiledb:"dtype=int8,ftype=attr" filters:"zstd(level=16)"`
	Conductivity []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	CondQc       []int8    `tiledb:"dtype=int8,ftype=attr" filters:"zstd(level=16)"`
	Salinity     []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	SalinQc      []int8    `tiledb:"dtype=int8,ftype=attr" filters:"zstd(level=16)"`
	Buoyancy     []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	SpeedCmS     []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	GlideAngle   []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	SpeedQc      []int8    `tiledb:"dtype=int8,ftype=attr" filters:"zstd(level=16)"`
	Latitude     []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
	Longitude    []float64 `tiledb:"dtype=float64,ftype=attr" filters:"zstd(level=16)"`
}

// qcInt8 converts a QC vector to its storage form.
func qcInt8(qcV []QcFlag) []int8 {
	out := make([]int8, len(qcV))
	for i, q := range qcV {
		out[i] = int8(q)
	}
	return out
}

// NewProfileArrays gathers the output vectors of a processed dive.
func NewProfileArrays(res *Results) *ProfileArrays {
	return &ProfileArrays{
		TimeS:        res.TimeS,
		PressureDbar: res.PressureDbar,
		DepthM:       res.DepthM,
		Temperature:  res.Temperature,
		TempQc:       qcInt8(res.TemperatureQc),
		Conductivity: res.Conductivity,
		CondQc:       qcInt8(res.ConductivityQc),
		Salinity:     res.Salinity,
		SalinQc:      qcInt8(res.SalinityQc),
		Buoyancy:     res.Buoyancy,
		SpeedCmS:     res.SpeedCmS,
		GlideAngle:   res.GlideAngleRad,
		SpeedQc:      qcInt8(res.SpeedQc),
		Latitude:     res.Latitude,
		Longitude:    res.Longitude,
	}
}

// schemaAttrs walks the struct tags and attaches one attribute per
// non-dimension field.
func schemaAttrs(t any, schema *tiledb.ArraySchema, ctx *tiledb.Context) error {
	var (
		fieldTdbDefs map[string]stgpsr.Definition
		def          stgpsr.Definition
		status       bool
	)
	values := reflect.ValueOf(t).Elem()
	types := values.Type()
	filtDefs, _ := stgpsr.ParseStruct(t, "filters")
	tdbDefs, _ := stgpsr.ParseStruct(t, "tiledb")

	// process every field in the struct
	for i := 0; i < values.NumField(); i++ {
		name := types.Field(i).Name

		fieldFiltDefs := filtDefs[name]

		// a mapping just seemed easier to pull required defs
		// rather than a simple listing
		fieldTdbDefs = make(map[string]stgpsr.Definition)
		for _, v := range tdbDefs[name] {
			fieldTdbDefs[v.Name()] = v
		}

		// pull the field type and ignore dimension fields
		def, status = fieldTdbDefs["ftype"]
		if !status {
			return errors.Join(ErrCreateAttributeTdb, errors.New("ftype tag not found"))
		}
		ftype, _ := def.Attribute("ftype")
		if ftype == "dim" {
			// ignore dimensions
			continue
		}

		err := CreateAttr(name, fieldFiltDefs, fieldTdbDefs, schema, ctx)
		if err != nil {
			return errors.Join(ErrCreateAttributeTdb, err)
		}
	}
	return nil
}

// denseArraySchema builds a dense schema with a single sample-index
// dimension carrying one attribute per tagged field of t.
func denseArraySchema(ctx *tiledb.Context, nSamples uint64, t any) (*tiledb.ArraySchema, error) {
	// an arbitrary choice; a dive is rarely more than a few thousand rows
	tileSz := uint64(math.Min(float64(50000), float64(nSamples)))

	domain, err := tiledb.NewDomain(ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateDimTdb, err)
	}
	defer domain.Free()

	dim, err := tiledb.NewDimension(ctx, "SAMPLE_ID", tiledb.TILEDB_UINT64,
		[]uint64{0, nSamples - uint64(1)}, tileSz)
	if err != nil {
		return nil, errors.Join(ErrCreateDimTdb, err)
	}
	defer dim.Free()

	err = domain.AddDimensions(dim)
	if err != nil {
		return nil, errors.Join(ErrCreateDimTdb, err)
	}

	schema, err := tiledb.NewArraySchema(ctx, tiledb.TILEDB_DENSE)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	err = schema.SetDomain(domain)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}

	err = schemaAttrs(t, schema, ctx)
	if err != nil {
		return nil, errors.Join(ErrCreateSchemaTdb, err)
	}
	return schema, nil
}
