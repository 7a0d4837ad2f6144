// Package decode loads the per-dive inputs: the dive record, the
// calibration constants and the profile directives. All readers go
// through the TileDB VFS so inputs can live locally or on an object
// store such as AWS-S3.
package decode

import (
	"io"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
)

// readAll slurps a whole file through the TileDB VFS.
func readAll(file_uri string, config_uri string) ([]byte, error) {
	var (
		config *tiledb.Config
		err    error
	)

	// get a generic config if no path provided
	if config_uri == "" {
		config, err = tiledb.NewConfig()
		if err != nil {
			return nil, err
		}
	} else {
		config, err = tiledb.LoadConfig(config_uri)
		if err != nil {
			return nil, err
		}
	}
	defer config.Free()

	ctx, err := tiledb.NewContext(config)
	if err != nil {
		return nil, err
	}
	defer ctx.Free()

	vfs, err := tiledb.NewVFS(ctx, config)
	if err != nil {
		return nil, err
	}
	defer vfs.Free()

	stream, err := vfs.Open(file_uri, tiledb.TILEDB_VFS_READ)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return io.ReadAll(stream)
}
