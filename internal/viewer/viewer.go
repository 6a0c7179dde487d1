// Package viewer implements the interactive point cloud viewer: window, camera
// controls and the frame loop driving the out-of-core loader.
package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-pointcloud/internal/config"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/camera"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/debug"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/input"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/picking"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/renderer"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/window"
	"github.com/Faultbox/midgard-pointcloud/internal/loader"
	"github.com/Faultbox/midgard-pointcloud/internal/logger"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
)

// Viewer is the main viewer instance.
type Viewer struct {
	cfg     *config.Config
	cfgPath string
	log     *zap.Logger
	clock   clock.Clock
	running bool

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input

	camera   *camera.OrbitCamera
	view     *camera.View
	streamer loader.Streamer
	meta     *oocfile.Meta

	screenshots *debug.ScreenshotCapture
	reloads     chan *config.Config
}

// New opens the octree folder named in cfg and creates the window and
// renderer. cfgPath, when set, is watched for changes while the viewer runs.
func New(cfg *config.Config, cfgPath string) (*Viewer, error) {
	v := &Viewer{
		cfg:     cfg,
		cfgPath: cfgPath,
		log:     logger.Named("viewer"),
		clock:   clock.New(),
		reloads: make(chan *config.Config, 1),
	}

	if cfg.Data.Folder == "" {
		return nil, fmt.Errorf("%w: no octree folder given", config.ErrInvalid)
	}

	v.log.Info("initializing viewer",
		zap.String("folder", cfg.Data.Folder),
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
	)

	// Open the tree before creating the window so bad folders fail fast
	var err error
	v.streamer, v.meta, err = loader.OpenFolder(cfg.Data.Folder, loader.ConfigFrom(cfg.Loader),
		loader.WithLogger(logger.Named("loader")),
		loader.WithClock(v.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open octree: %w", err)
	}

	v.window, err = window.New(window.Config{
		Title:      "Midgard Point Cloud - " + cfg.Data.Folder,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		v.streamer.Close()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer after the window, the OpenGL context must exist
	width, height := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{
		Width:     width,
		Height:    height,
		PointSize: cfg.Graphics.PointSize,
	})
	if err != nil {
		v.window.Close()
		v.streamer.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	v.input = input.New()
	v.camera = camera.NewOrbitCamera()
	v.view = camera.NewView(v.camera, width, height)
	PlaceCamera(v.camera, v.meta, v.streamer.Config().InitCamPos)
	v.screenshots = debug.NewScreenshotCapture("screenshots", "pointcloud", v.clock)

	v.log.Info("viewer initialized", zap.String("point_type", string(v.meta.PointType)))
	return v, nil
}

// PlaceCamera fits cam to the root cube of meta and, when initPos is set,
// moves the camera there while keeping the root centre as orbit target.
func PlaceCamera(cam *camera.OrbitCamera, meta *oocfile.Meta, initPos mgl64.Vec3) {
	cam.FitCube(meta.RootCenter(), meta.Octree.RootNode.Size)
	if initPos != (mgl64.Vec3{}) {
		cam.SetPosition(initPos)
	}
}

// ApplyConfig stages the live tunable settings of cfg on s.
func ApplyConfig(s loader.Streamer, cfg *config.Config) {
	s.SetPointThreshold(cfg.Loader.PointThreshold)
	s.SetMinProjSizeModifier(cfg.Loader.MinProjSizeModifier)
	s.SetInitCamPos(mgl64.Vec3(cfg.Loader.InitCamPos))
	s.SetShowOctants(cfg.Loader.ShowOctants)
	s.SetUpdateInterval(cfg.Loader.UpdateInterval)
}

// Run starts the loader and the main loop. It returns when the window is
// closed or ctx is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := v.streamer.Init(ctx, v.view); err != nil {
		return fmt.Errorf("failed to start loader: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if v.cfgPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, v.cfgPath, v.log, func(c *config.Config) {
				select {
				case v.reloads <- c:
				default:
					// Keep only the newest pending reload
					select {
					case <-v.reloads:
					default:
					}
					v.reloads <- c
				}
			})
		})
	}

	err := v.loop(ctx)
	cancel()
	v.streamer.Shutdown()
	v.streamer.Wait()
	if werr := g.Wait(); werr != nil && err == nil && ctx.Err() == nil {
		err = werr
	}
	return err
}

func (v *Viewer) loop(ctx context.Context) error {
	v.running = true

	lastTime := v.clock.Now()
	frameCount := 0
	fpsTimer := lastTime

	var frameDelay time.Duration
	if v.cfg.Graphics.FPSLimit > 0 {
		frameDelay = time.Second / time.Duration(v.cfg.Graphics.FPSLimit)
	}

	v.log.Info("starting main loop")
	for v.running {
		if ctx.Err() != nil {
			return nil
		}

		now := v.clock.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents()
		v.handleMovement(dt)
		v.applyReloads()

		v.streamer.Update()
		v.render()
		v.window.SwapBuffers()

		frameCount++
		if elapsed := v.clock.Since(fpsTimer); elapsed >= time.Second {
			v.reportFPS(frameCount, elapsed)
			frameCount = 0
			fpsTimer = v.clock.Now()
		}

		if frameDelay > 0 {
			if spent := v.clock.Since(now); spent < frameDelay {
				v.clock.Sleep(frameDelay - spent)
			}
		}
	}
	return nil
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			width, height := v.window.DrawableSize()
			v.renderer.Resize(width, height)
			v.view.Resize(width, height)

		case input.EventMouseMove:
			if v.input.IsButtonDown(sdl.BUTTON_LEFT) {
				v.camera.HandleDrag(float64(event.DX), float64(event.DY))
			}

		case input.EventMouseWheel:
			v.camera.HandleZoom(float64(event.Wheel))

		case input.EventMouseDown:
			if event.Button == sdl.BUTTON_RIGHT {
				v.pick(event.MouseX, event.MouseY)
			}

		case input.EventKeyDown:
			v.handleKey(event.Key)
		}
	}
}

func (v *Viewer) handleKey(key sdl.Scancode) {
	cfg := v.streamer.Config()
	switch key {
	case sdl.SCANCODE_ESCAPE:
		v.running = false

	case sdl.SCANCODE_O:
		v.streamer.SetShowOctants(!cfg.ShowOctants)

	case sdl.SCANCODE_EQUALS, sdl.SCANCODE_KP_PLUS:
		v.streamer.SetPointThreshold(cfg.PointThreshold * 2)
	case sdl.SCANCODE_MINUS, sdl.SCANCODE_KP_MINUS:
		v.streamer.SetPointThreshold(max(cfg.PointThreshold/2, 1))

	case sdl.SCANCODE_RIGHTBRACKET:
		v.streamer.SetMinProjSizeModifier(cfg.MinProjSizeModifier * 1.25)
	case sdl.SCANCODE_LEFTBRACKET:
		v.streamer.SetMinProjSizeModifier(cfg.MinProjSizeModifier / 1.25)

	case sdl.SCANCODE_R:
		PlaceCamera(v.camera, v.meta, cfg.InitCamPos)

	case sdl.SCANCODE_F12:
		v.screenshot()
	}
}

// handleMovement pans the orbit centre with WASD, Q and E.
func (v *Viewer) handleMovement(dt float64) {
	var forward, right, up float64
	if input.IsKeyDown(sdl.SCANCODE_W) {
		forward++
	}
	if input.IsKeyDown(sdl.SCANCODE_S) {
		forward--
	}
	if input.IsKeyDown(sdl.SCANCODE_D) {
		right++
	}
	if input.IsKeyDown(sdl.SCANCODE_A) {
		right--
	}
	if input.IsKeyDown(sdl.SCANCODE_E) {
		up++
	}
	if input.IsKeyDown(sdl.SCANCODE_Q) {
		up--
	}
	if forward != 0 || right != 0 || up != 0 {
		scale := dt * 60
		v.camera.HandleMovement(forward*scale, right*scale, up*scale)
	}
}

func (v *Viewer) applyReloads() {
	select {
	case c := <-v.reloads:
		ApplyConfig(v.streamer, c)
		v.renderer.SetPointSize(c.Graphics.PointSize)
		v.log.Info("config reloaded",
			zap.Int("point_threshold", c.Loader.PointThreshold),
			zap.Float64("min_proj_size_modifier", c.Loader.MinProjSizeModifier),
		)
	default:
	}
}

func (v *Viewer) render() {
	v.renderer.Begin()
	v.renderer.Draw(v.streamer.Root(), v.view.ViewProjection())
	v.renderer.End()
}

// pick logs the deepest visible octant under the mouse.
func (v *Viewer) pick(x, y int) {
	width, height := v.window.GetSize()
	ray := picking.ScreenToRay(float64(x), float64(y), width, height, v.view.ViewProjection())

	infos := v.streamer.VisibleOctants()
	cands := make([]picking.Candidate[loader.OctantInfo], len(infos))
	for i, o := range infos {
		cands[i] = picking.Candidate[loader.OctantInfo]{Center: o.Center, Size: o.Size, Value: o}
	}

	o, dist, ok := picking.Pick(ray, cands)
	if !ok {
		v.log.Info("no octant under cursor")
		return
	}
	v.log.Info("picked octant",
		logger.Octant(o.GUID),
		zap.Int("level", o.Level),
		zap.Float64("size", o.Size),
		zap.Int("points", o.PointCount),
		zap.Float64("projected_size", o.ProjectedSize),
		zap.Float64("distance", dist),
	)
}

func (v *Viewer) screenshot() {
	pixels, width, height, err := v.renderer.Capture(v.streamer.Root(), v.view.ViewProjection())
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		return
	}
	filename, err := v.screenshots.CaptureFromPixels(pixels, width, height)
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("file", filename))
}

func (v *Viewer) reportFPS(frames int, elapsed time.Duration) {
	fps := float64(frames) / elapsed.Seconds()
	s := v.streamer.Stats()
	f := v.renderer.Stats()
	v.log.Debug("fps",
		zap.Float64("fps", fps),
		zap.Int("visible_nodes", s.VisibleNodes),
		zap.Int("visible_points", s.VisiblePoints),
		zap.Int("pending", s.PendingNodes),
		zap.Int("drawn_points", f.Points),
		zap.Int("uploaded_chunks", v.renderer.Uploaded()),
	)
	if v.cfg.Graphics.ShowFPS {
		v.window.SetTitle(fmt.Sprintf("Midgard Point Cloud - %.0f fps, %d points", fps, f.Points))
	}
}

// Close releases the loader, renderer and window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.streamer != nil {
		v.streamer.Shutdown()
		v.streamer.Wait()
		v.streamer.Close()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
