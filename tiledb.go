package sgdive

import (
	"encoding/json"
	"errors"
	"reflect"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	stgpsr "github.com/yuin/stagparser"
)

// ArrayOpen is a helper func for opening a tiledb array.
func ArrayOpen(ctx *tiledb.Context, uri string, mode tiledb.QueryType) (*tiledb.Array, error) {
	array, err := tiledb.NewArray(ctx, uri)
	if err != nil {
		return nil, err
	}

	err = array.Open(mode)
	if err != nil {
		array.Free()
		return nil, err
	}

	return array, nil
}

// AddFilters is a helper for adding a bunch of filters to a filter list.
func AddFilters(filterList *tiledb.FilterList, filter ...*tiledb.Filter) error {
	for _, filt := range filter {
		err := filterList.AddFilter(filt)
		if err != nil {
			return errors.Join(ErrAddFilters, err)
		}
	}

	return nil
}

// ZstdFilter initialises the zstandard compression filter with the given
// level.
func ZstdFilter(ctx *tiledb.Context, level int32) (*tiledb.Filter, error) {
	filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_ZSTD)
	if err != nil {
		return nil, errors.Join(ErrNewFilt, err)
	}

	err = filt.SetOption(tiledb.TILEDB_COMPRESSION_LEVEL, level)
	if err != nil {
		return nil, errors.Join(ErrNewFilt, err)
	}

	return filt, nil
}

// AttachFilters acts as a helper for when setting the same pipeline filter list to
// a bunch of attributes.
func AttachFilters(filterList *tiledb.FilterList, attrs ...*tiledb.Attribute) error {
	for _, attr := range attrs {
		err := attr.SetFilterList(filterList)
		if err != nil {
			return errors.Join(ErrSetFiltList, err)
		}
	}

	return nil
}

// CreateAttr creates a tiledb attribute along with the compression
// filter pipeline. The configuration is specified by the tags attached
// to the struct type.
// Tags for tiledb include: dtype, ftype. Where dtype is datatype and
// ftype is fieldtype (dim or attr; dim skips the field).
// Filters will be set in the order they're specified in the tag, e.g.
// `tiledb:"dtype=float64,ftype=attr" filters:"bysh,zstd(level=16)"`.
func CreateAttr(
	fieldName string,
	filterDefs []stgpsr.Definition,
	tiledbDefs map[string]stgpsr.Definition,
	schema *tiledb.ArraySchema,
	ctx *tiledb.Context,
) error {

	var (
		tdbDtype tiledb.Datatype
		def      stgpsr.Definition
		status   bool
	)

	def, status = tiledbDefs["dtype"]
	if !status {
		return errors.Join(ErrCreateAttributeTdb, errors.New("dtype tag not found"))
	}
	dtype, _ := def.Attribute("dtype")

	// define datatype
	switch dtype {
	case "int8":
		tdbDtype = tiledb.TILEDB_INT8
	case "uint8":
		tdbDtype = tiledb.TILEDB_UINT8
	case "int16":
		tdbDtype = tiledb.TILEDB_INT16
	case "uint16":
		tdbDtype = tiledb.TILEDB_UINT16
	case "int32":
		tdbDtype = tiledb.TILEDB_INT32
	case "uint32":
		tdbDtype = tiledb.TILEDB_UINT32
	case "int64":
		tdbDtype = tiledb.TILEDB_INT64
	case "uint64":
		tdbDtype = tiledb.TILEDB_UINT64
	case "float32":
		tdbDtype = tiledb.TILEDB_FLOAT32
	case "float64":
		tdbDtype = tiledb.TILEDB_FLOAT64
	case "string":
		tdbDtype = tiledb.TILEDB_STRING_UTF8
	}

	attrFilts, err := tiledb.NewFilterList(ctx)
	if err != nil {
		return errors.Join(ErrFiltList, err)
	}
	defer attrFilts.Free()

	// filter pipeline
	for _, filter := range filterDefs {
		switch filter.Name() {
		case "zstd":
			level, ok := filter.Attribute("level")
			if !ok {
				return errors.Join(ErrNewFilt, errors.New("zstd level not defined"))
			}
			filt, err := ZstdFilter(ctx, int32(level.(int64)))
			if err != nil {
				return errors.Join(ErrNewFilt, err)
			}
			defer filt.Free()
			err = attrFilts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrAddFilters, err)
			}
		case "bysh":
			filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BYTESHUFFLE)
			if err != nil {
				return errors.Join(ErrNewFilt, err)
			}
			defer filt.Free()
			err = attrFilts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrAddFilters, err)
			}
		case "bish":
			filt, err := tiledb.NewFilter(ctx, tiledb.TILEDB_FILTER_BITSHUFFLE)
			if err != nil {
				return errors.Join(ErrNewFilt, err)
			}
			defer filt.Free()
			err = attrFilts.AddFilter(filt)
			if err != nil {
				return errors.Join(ErrAddFilters, err)
			}
		}
	}

	// create attr
	attr, err := tiledb.NewAttribute(ctx, fieldName, tdbDtype)
	if err != nil {
		return errors.Join(ErrNewAttr, err)
	}
	defer attr.Free()

	// attach filter pipeline to attr
	err = AttachFilters(attrFilts, attr)
	if err != nil {
		return errors.Join(ErrSetFiltList, err)
	}

	// attach attr to schema
	err = schema.AddAttributes(attr)
	if err != nil {
		return errors.Join(ErrAddAttr, err)
	}

	return nil
}

// setStructFieldBuffers wires every exported slice field of the struct
// into the query as a data buffer of the same name.
func setStructFieldBuffers(query *tiledb.Query, t any) error {
	var err error

	values := reflect.ValueOf(t).Elem()
	types := reflect.TypeOf(t).Elem()
	for i := 0; i < values.NumField(); i++ {
		fld := values.Field(i)

		if !types.Field(i).IsExported() {
			continue
		}
		name := types.Field(i).Name

		switch slc := fld.Interface().(type) {
		case []int8:
			_, err = query.SetDataBuffer(name, slc)
		case []float64:
			_, err = query.SetDataBuffer(name, slc)
		case []int64:
			_, err = query.SetDataBuffer(name, slc)
		case []uint64:
			_, err = query.SetDataBuffer(name, slc)
		default:
			return errors.Join(ErrDtype, errors.New(name))
		}
		if err != nil {
			return errors.Join(ErrSetBuff, err, errors.New(name))
		}
	}

	return nil
}

// ToTileDB writes the profile as a dense array at the given uri.
func (pa *ProfileArrays) ToTileDB(fileURI string, ctx *tiledb.Context) error {
	return writeDense(fileURI, ctx, pa, uint64(len(pa.TimeS)))
}

// writeDense creates and writes a dense array from the tagged struct t.
func writeDense(fileURI string, ctx *tiledb.Context, t any, nSamples uint64) error {
	schema, err := denseArraySchema(ctx, nSamples, t)
	if err != nil {
		return errors.Join(ErrCreateProfileTdb, err)
	}
	defer schema.Free()

	array, err := tiledb.NewArray(ctx, fileURI)
	if err != nil {
		return errors.Join(ErrCreateProfileTdb, err)
	}
	defer array.Free()

	err = array.Create(schema)
	if err != nil {
		return errors.Join(ErrCreateProfileTdb, err)
	}

	err = array.Open(tiledb.TILEDB_WRITE)
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}
	defer array.Close()

	query, err := tiledb.NewQuery(ctx, array)
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}
	defer query.Free()

	err = query.SetLayout(tiledb.TILEDB_ROW_MAJOR)
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}

	subarr, err := array.NewSubarray()
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}
	defer subarr.Free()

	err = subarr.AddRangeByName("SAMPLE_ID", tiledb.MakeRange(uint64(0), nSamples-1))
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}
	err = query.SetSubarray(subarr)
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}

	err = setStructFieldBuffers(query, t)
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}

	err = query.Submit()
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}

	err = query.Finalize()
	if err != nil {
		return errors.Join(ErrWriteProfileTdb, err)
	}

	return nil
}

// WriteArrayMetadata attaches a JSON document to an existing array.
func WriteArrayMetadata(ctx *tiledb.Context, arrayURI, key string, md any) error {
	array, err := ArrayOpen(ctx, arrayURI, tiledb.TILEDB_WRITE)
	if err != nil {
		return err
	}
	defer array.Free()
	defer array.Close()

	jsn, err := json.MarshalIndent(md, "", "    ")
	if err != nil {
		return err
	}

	return array.PutMetadata(key, string(jsn))
}
