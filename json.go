package sgdive

import (
	"encoding/json"
	"errors"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// Serialisation of the processed-dive reports. Everything goes through
// the TileDB VFS so a report can land on a local mission directory or
// an object store such as s3 without the caller caring which.

// vfsWrite pushes a payload to file_uri through the TileDB VFS.
func vfsWrite(file_uri string, config_uri string, payload []byte) (int, error) {
	var (
		config *tiledb.Config
		err    error
	)

	// get a generic config if no path provided
	if config_uri == "" {
		config, err = tiledb.NewConfig()
	} else {
		config, err = tiledb.LoadConfig(config_uri)
	}
	if err != nil {
		return 0, errors.Join(ErrWriteReport, err)
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return 0, errors.Join(ErrWriteReport, err)
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return 0, errors.Join(ErrWriteReport, err)
	}
	defer vfs.Free()

	// the vfs api auto checks for a file's existence and removes it if we are wanting to write
	stream, err := vfs.Open(file_uri, tiledb.TILEDB_VFS_WRITE)
	if err != nil {
		return 0, errors.Join(ErrWriteReport, err)
	}
	defer stream.Close()

	bytes_written, err := stream.Write(payload)
	if err != nil {
		return 0, errors.Join(ErrWriteReport, err)
	}

	return bytes_written, nil
}

// WriteResultsJson writes the full processed-dive report: corrected
// vectors and their QC vectors, the scalar verdicts, the structural
// quality info and the dive extent, as one indented JSON document.
func WriteResultsJson(file_uri string, config_uri string, res *Results) (int, error) {
	jsn, err := json.MarshalIndent(res, "", "    ")
	if err != nil {
		return 0, errors.Join(ErrWriteReport, err)
	}
	return vfsWrite(file_uri, config_uri, jsn)
}

// WriteSuggestionsJson writes the pilot suggestion lines emitted while
// processing the dive.
func WriteSuggestionsJson(file_uri string, config_uri string, suggestions []string) (int, error) {
	jsn, err := json.MarshalIndent(suggestions, "", "    ")
	if err != nil {
		return 0, errors.Join(ErrWriteReport, err)
	}
	return vfsWrite(file_uri, config_uri, jsn)
}

// WriteTraceText writes the numeric comparison trace beside the report.
func WriteTraceText(file_uri string, config_uri string, tr *Trace) (int, error) {
	return vfsWrite(file_uri, config_uri, []byte(tr.String()))
}
