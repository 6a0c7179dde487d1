// ooctool builds and inspects out-of-core octree folders.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/Faultbox/midgard-pointcloud/internal/config"
	"github.com/Faultbox/midgard-pointcloud/internal/ingest"
	"github.com/Faultbox/midgard-pointcloud/internal/logger"
	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

const (
	flagConfig    = "config"
	flagDebug     = "debug"
	flagType      = "type"
	flagBucket    = "bucket"
	flagMaxLevel  = "max-level"
	flagTicks     = "ticks"
	flagCam       = "cam"
	flagThreshold = "threshold"
	flagModifier  = "modifier"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ooctool: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var cfg *config.Config

	return &cli.App{
		Name:  "ooctool",
		Usage: "build and inspect out-of-core point cloud octrees",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load settings from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			cfg = config.Default()
			if path := c.String(flagConfig); path != "" {
				loaded, err := config.LoadFile(path)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			level := cfg.Logging.Level
			if c.Bool(flagDebug) {
				level = "debug"
			}
			return logger.Init(level, cfg.Logging.LogFile)
		},
		After: func(*cli.Context) error {
			logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "build an octree folder from a LAS or XYZ file",
				ArgsUsage: "<input.las|input.xyz> <outdir>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagType, Usage: "point type written to the octree"},
					&cli.IntFlag{Name: flagBucket, Usage: "maximum points per octant before it is subdivided"},
					&cli.IntFlag{Name: flagMaxLevel, Usage: "deepest octree level"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.ShowSubcommandHelp(c)
					}
					opts := ingest.Options{
						PointType: points.Type(cfg.Build.PointType),
						Tree: octree.Options{
							MaxPointsInBucket: cfg.Build.MaxPointsInBucket,
							MaxLevel:          cfg.Build.MaxLevel,
						},
					}
					if c.IsSet(flagType) {
						opts.PointType = points.Type(c.String(flagType))
					}
					if c.IsSet(flagBucket) {
						opts.Tree.MaxPointsInBucket = c.Int(flagBucket)
					}
					if c.IsSet(flagMaxLevel) {
						opts.Tree.MaxLevel = c.Int(flagMaxLevel)
					}
					return runBuild(c.Context, c.App.Writer, c.Args().Get(0), c.Args().Get(1), opts)
				},
			},
			{
				Name:      "info",
				Usage:     "print meta data and per level statistics of an octree folder",
				ArgsUsage: "<dir>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.ShowSubcommandHelp(c)
					}
					return runInfo(c.App.Writer, c.Args().First())
				},
			},
			{
				Name:      "probe",
				Usage:     "print the node file header of one octant",
				ArgsUsage: "<dir> <guid>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.ShowSubcommandHelp(c)
					}
					guid, err := uuid.Parse(c.Args().Get(1))
					if err != nil {
						return fmt.Errorf("invalid guid: %w", err)
					}
					h, err := oocfile.ProbeNode(c.Args().Get(0), guid)
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "octant %s: %d points, %d bytes per point\n", guid, h.PointCount, h.PointStride)
					return nil
				},
			},
			{
				Name:      "simulate",
				Usage:     "run the loader against a fixed camera and print its progress",
				ArgsUsage: "<dir>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagTicks, Value: 50, Usage: "number of visibility and load passes"},
					&cli.Float64SliceFlag{Name: flagCam, Usage: "camera position x,y,z; defaults to a view fitting the root"},
					&cli.IntFlag{Name: flagThreshold, Usage: "point budget"},
					&cli.Float64Flag{Name: flagModifier, Usage: "minimum projected size modifier"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.ShowSubcommandHelp(c)
					}
					sim := simulation{
						Dir:    c.Args().First(),
						Ticks:  c.Int(flagTicks),
						Loader: cfg.Loader,
					}
					if c.IsSet(flagCam) {
						cam := c.Float64Slice(flagCam)
						if len(cam) != 3 {
							return fmt.Errorf("--%s needs three values, got %d", flagCam, len(cam))
						}
						sim.Loader.InitCamPos = [3]float64{cam[0], cam[1], cam[2]}
					}
					if c.IsSet(flagThreshold) {
						sim.Loader.PointThreshold = c.Int(flagThreshold)
					}
					if c.IsSet(flagModifier) {
						sim.Loader.MinProjSizeModifier = c.Float64(flagModifier)
					}
					return sim.run(c.Context, c.App.Writer)
				},
			},
			{
				Name:  "config",
				Usage: "manage the settings file",
				Subcommands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "write the default settings to a file",
						ArgsUsage: "[path]",
						Action: func(c *cli.Context) error {
							path := c.Args().First()
							if path == "" {
								return config.Default().Save()
							}
							if err := config.Default().SaveTo(path); err != nil {
								return err
							}
							fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
							return nil
						},
					},
				},
			},
		},
	}
}
