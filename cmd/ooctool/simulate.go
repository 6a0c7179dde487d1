package main

import (
	"context"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Faultbox/midgard-pointcloud/internal/config"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/camera"
	"github.com/Faultbox/midgard-pointcloud/internal/loader"
	"github.com/Faultbox/midgard-pointcloud/internal/logger"
)

// simulation drives the loader by hand: one visibility pass and one load pass
// per tick against a camera that never moves.
type simulation struct {
	Dir    string
	Ticks  int
	Loader config.LoaderConfig
	Width  int
	Height int
}

func (s simulation) run(ctx context.Context, w io.Writer) error {
	rows, err := s.collect(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Tick", "Visible", "Points", "Resident", "Pending", "Loads", "Evictions", "Failures"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.tick, r.VisibleNodes, r.VisiblePoints, r.ResidentNodes, r.PendingNodes, r.Loads, r.Evictions, r.Failures})
	}
	fmt.Fprintln(w, t.Render())
	return nil
}

type tickStats struct {
	tick int
	loader.Stats
}

// collect runs the ticks and returns the stats of every tick that changed
// something, plus the last one.
func (s simulation) collect(ctx context.Context) ([]tickStats, error) {
	if s.Width <= 0 || s.Height <= 0 {
		s.Width, s.Height = 1280, 720
	}

	cfg := loader.ConfigFrom(s.Loader)

	// The mock clock never fires, so the background goroutine stays idle and
	// the passes below are the only ones that run.
	streamer, meta, err := loader.OpenFolder(s.Dir, cfg,
		loader.WithClock(clock.NewMock()),
		loader.WithLogger(logger.Named("loader")),
	)
	if err != nil {
		return nil, err
	}
	defer streamer.Close()

	cam := camera.NewOrbitCamera()
	cam.FitCube(meta.RootCenter(), meta.Octree.RootNode.Size)
	if cfg.InitCamPos != (mgl64.Vec3{}) {
		cam.SetPosition(cfg.InitCamPos)
	}
	view := camera.NewView(cam, s.Width, s.Height)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := streamer.Init(ctx, view); err != nil {
		return nil, err
	}
	defer func() {
		streamer.Shutdown()
		cancel()
		streamer.Wait()
	}()

	var rows []tickStats
	var prev loader.Stats
	for i := 0; i < s.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		streamer.Refresh()
		streamer.LoadNext()

		st := streamer.Stats()
		if i == 0 || i == s.Ticks-1 || changed(prev, st) {
			rows = append(rows, tickStats{tick: i, Stats: st})
		}
		prev = st
	}
	return rows, nil
}

func changed(a, b loader.Stats) bool {
	return a.VisibleNodes != b.VisibleNodes ||
		a.VisiblePoints != b.VisiblePoints ||
		a.ResidentNodes != b.ResidentNodes ||
		a.PendingNodes != b.PendingNodes ||
		a.Loads != b.Loads ||
		a.Evictions != b.Evictions ||
		a.Failures != b.Failures
}
