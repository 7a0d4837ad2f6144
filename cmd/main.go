package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	tiledb "github.com/TileDB-Inc/TileDB-Go"
	"github.com/alitto/pond"
	"github.com/urfave/cli/v2"

	sgdive "github.com/seamote/sgdive"
	"github.com/seamote/sgdive/decode"
	"github.com/seamote/sgdive/search"
)

// process_dive handles the processing for a single dive file.
func process_dive(dive_uri, calib_uri, directives_uri, config_uri, outdir_uri string, metadata_only bool) error {
	var (
		out_uri string
		err     error
		dir     string
		file    string
		config  *tiledb.Config
	)

	dir, file = filepath.Split(dive_uri)
	file = strings.TrimSuffix(file, filepath.Ext(file))
	if outdir_uri == "" {
		outdir_uri = dir
	}

	log.Println("Processing dive:", dive_uri)
	dive, err := decode.LoadDiveRecord(dive_uri, config_uri)
	if err != nil {
		return err
	}

	calib := sgdive.DefaultCalibConsts()
	if calib_uri != "" {
		err = decode.LoadCalibConsts(calib_uri, config_uri, calib)
		if err != nil {
			return err
		}
	}

	directives := sgdive.NewProfileDirectives(dive.DiveNumber)
	if directives_uri != "" {
		err = decode.LoadDirectives(directives_uri, config_uri, directives)
		if err != nil {
			return err
		}
	}

	results := sgdive.ProcessDive(dive, calib, directives)
	log.Printf("QA: %d samples, consistent grids %v, converged %v",
		results.Quality.SampleCount, results.Quality.ConsistentGrids, results.Converged)

	log.Println("Writing dive report")
	out_uri = filepath.Join(outdir_uri, file+"-results.json")
	_, err = sgdive.WriteResultsJson(out_uri, config_uri, results)
	if err != nil {
		return err
	}

	log.Println("Writing processing trace")
	out_uri = filepath.Join(outdir_uri, file+"-trace.txt")
	_, err = sgdive.WriteTraceText(out_uri, config_uri, results.Trace)
	if err != nil {
		return err
	}

	if len(results.Suggestions) > 0 {
		log.Println("Writing directive suggestions")
		out_uri = filepath.Join(outdir_uri, file+"-suggestions.json")
		_, err = sgdive.WriteSuggestionsJson(out_uri, config_uri, results.Suggestions)
		if err != nil {
			return err
		}
	}

	if !metadata_only && !results.SkippedProfile && !results.ProcessingError {
		// get a generic config if no path provided
		if config_uri == "" {
			config, err = tiledb.NewConfig()
			if err != nil {
				return err
			}
		} else {
			config, err = tiledb.LoadConfig(config_uri)
			if err != nil {
				return err
			}
		}

		defer config.Free()

		ctx, err := tiledb.NewContext(config)
		if err != nil {
			return err
		}
		defer ctx.Free()

		grp_uri := filepath.Join(outdir_uri, file+".tiledb")
		grp, err := tiledb.NewGroup(ctx, grp_uri)
		if err != nil {
			return err
		}
		defer grp.Free()

		err = grp.Create()
		if err != nil {
			return errors.Join(err, errors.New("Error creating tiledb group"))
		}

		err = grp.Open(tiledb.TILEDB_WRITE)
		if err != nil {
			return errors.Join(err, errors.New("Error opening tiledb group in write mode"))
		}

		log.Println("Writing QC history to group metadata")
		jsn, err := json.MarshalIndent(results.QcHistory, "", "    ")
		if err != nil {
			return err
		}
		err = grp.PutMetadata("QC-History", string(jsn))
		if err != nil {
			return err
		}

		log.Println("Writing profile arrays")
		prof_name := "Profile.tiledb"
		out_uri = filepath.Join(grp_uri, prof_name)
		profile := sgdive.NewProfileArrays(results)
		err = profile.ToTileDB(out_uri, ctx)
		if err != nil {
			return err
		}
		err = grp.AddMember(prof_name, "Profile", true)
		if err != nil {
			return errors.Join(err, errors.New("Error adding profile to group"))
		}

		log.Println("Writing attitude")
		att_name := "Attitude.tiledb"
		out_uri = filepath.Join(grp_uri, att_name)
		att := sgdive.AttitudeRecords(dive)
		err = att.ToTileDB(out_uri, ctx)
		if err != nil {
			return err
		}
		err = grp.AddMember(att_name, "Attitude", true)
		if err != nil {
			return errors.Join(err, errors.New("Error adding attitude to group"))
		}
	}

	log.Println("Finished dive:", dive_uri)

	return nil
}

// process_dive_list submits a directory of dive files to a processing pool.
// Dives are fully isolated from one another, so the pool spreads them across
// 2 * n_CPUs workers.
func process_dive_list(uri, calib_uri, directives_uri, config_uri, outdir_uri string, metadata_only bool) error {
	log.Println("Searching uri:", uri)
	items := search.FindDives(uri, config_uri)
	log.Println("Number of dives to process:", len(items))

	// Cancelled when the user presses Ctrl+C (process receives termination signal).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// fixed pool
	n := runtime.NumCPU() * 2
	pool := pond.New(n, 0, pond.MinWorkers(n), pond.Context(ctx))
	defer pool.StopAndWait()

	for _, name := range items {
		item_uri := name
		pool.Submit(func() {
			err := process_dive(item_uri, calib_uri, directives_uri, config_uri, outdir_uri, metadata_only)
			if err != nil {
				log.Println("Error processing:", item_uri, err)
			}
		})
	}

	return nil
}

func main() {
	common_flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "calib-uri",
			Usage: "URI or pathname to a calibration constants file.",
		},
		&cli.StringFlag{
			Name:  "directives-uri",
			Usage: "URI or pathname to a profile directives file.",
		},
		&cli.StringFlag{
			Name:  "config-uri",
			Usage: "URI or pathname to a TileDB config file.",
		},
		&cli.StringFlag{
			Name:  "outdir-uri",
			Usage: "URI or pathname to an output directory.",
		},
		&cli.BoolFlag{
			Name:  "metadata-only",
			Usage: "Only export the results metadata; skip the profile arrays.",
		},
	}
	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:  "process",
				Usage: "Process a single dive file.",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "dive-uri",
						Usage: "URI or pathname to a dive file.",
					},
				}, common_flags...),
				Action: func(cCtx *cli.Context) error {
					return process_dive(
						cCtx.String("dive-uri"),
						cCtx.String("calib-uri"),
						cCtx.String("directives-uri"),
						cCtx.String("config-uri"),
						cCtx.String("outdir-uri"),
						cCtx.Bool("metadata-only"),
					)
				},
			},
			{
				Name:  "batch",
				Usage: "Process every dive file under a directory.",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "uri",
						Usage: "URI or pathname to search for dive files.",
					},
				}, common_flags...),
				Action: func(cCtx *cli.Context) error {
					return process_dive_list(
						cCtx.String("uri"),
						cCtx.String("calib-uri"),
						cCtx.String("directives-uri"),
						cCtx.String("config-uri"),
						cCtx.String("outdir-uri"),
						cCtx.Bool("metadata-only"),
					)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
