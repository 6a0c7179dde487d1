// Package loader streams octree payloads in and out of memory. A visibility pass
// on the render thread decides which octants are worth showing under a point
// budget; a background goroutine loads the queued ones and turns them into mesh
// chunks.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pointcloud/internal/config"
	"github.com/Faultbox/midgard-pointcloud/internal/scene"
	"github.com/Faultbox/midgard-pointcloud/pkg/mesh"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// Errors.
var (
	ErrAlreadyStarted  = errors.New("loader already started")
	ErrNoRenderContext = errors.New("render context is nil")
)

// RenderContext is what the loader needs to know about the camera.
type RenderContext interface {
	// Ready reports whether camera and projection are established.
	Ready() bool
	Position() mgl64.Vec3
	ViewportHeight() int
	// FieldOfView returns the vertical field of view in radians.
	FieldOfView() float64
	// IntersectsCube reports whether the cube is at least partly inside the view frustum.
	IntersectsCube(center mgl64.Vec3, size float64) bool
}

// NodeSource provides node file contents.
type NodeSource[P any] interface {
	// PointCount returns the number of points stored for guid without loading them.
	PointCount(guid uuid.UUID) (int, error)
	// Points loads the points stored for guid.
	Points(guid uuid.UUID) ([]P, error)
}

// Config controls the loader.
type Config struct {
	PointThreshold      int           // point budget of one visibility pass
	MinProjSizeModifier float64       // fraction of the root's projected size below which octants are culled
	InitCamPos          mgl64.Vec3    // initial camera position
	ShowOctants         bool          // attach wireframes to visible octants
	UpdateInterval      time.Duration // cadence of both passes
	MaxPending          int           // capacity of the pending queue
}

// DefaultConfig returns the default loader configuration.
func DefaultConfig() Config {
	return Config{
		PointThreshold:      1000000,
		MinProjSizeModifier: 0.1,
		ShowOctants:         false,
		UpdateInterval:      33 * time.Millisecond,
		MaxPending:          5,
	}
}

// ConfigFrom converts the loader section of the settings file.
func ConfigFrom(c config.LoaderConfig) Config {
	return Config{
		PointThreshold:      c.PointThreshold,
		MinProjSizeModifier: c.MinProjSizeModifier,
		InitCamPos:          mgl64.Vec3(c.InitCamPos),
		ShowOctants:         c.ShowOctants,
		UpdateInterval:      c.UpdateInterval,
		MaxPending:          c.MaxPending,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = d.UpdateInterval
	}
	if c.MaxPending <= 0 {
		c.MaxPending = d.MaxPending
	}
	return c
}

// Stats is a snapshot of the loader state.
type Stats struct {
	VisibleNodes     int // resident octants in the last visible set
	VisiblePoints    int // points counted by the last visibility pass
	ResidentNodes    int
	PendingNodes     int
	Loads            int64
	Evictions        int64
	Failures         int64
	Passes           int64
	MinProjectedSize float64
}

// Option configures a Loader.
type Option func(*options)

type options struct {
	clock clock.Clock
	log   *zap.Logger
}

// WithClock sets the clock driving both passes.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

type residentEntry struct {
	chunks    []*mesh.Chunk
	meshes    []scene.Component
	wireframe scene.Component
}

// Loader is the out-of-core loader for one point type.
type Loader[P any] struct {
	log   *zap.Logger
	clock clock.Clock
	acc   points.Accessor[P]
	src   NodeSource[P]

	// mu guards everything below up to the staging fields.
	mu       sync.Mutex
	cfg      Config
	root     *scene.Node
	rc       RenderContext
	pending  priorityQueue[*Octant[P]]
	resident map[uuid.UUID]*residentEntry
	visible  map[uuid.UUID]struct{}
	minProj  float64
	lastPass time.Time
	last     Stats

	stageMu    sync.Mutex
	staged     Config
	stagedRoot *scene.Node
	rootDirty  bool
	changed    chan struct{}

	loads     atomic.Int64
	evictions atomic.Int64
	failures  atomic.Int64
	passes    atomic.Int64

	shutdown atomic.Bool
	started  atomic.Bool
	done     chan struct{}
}

// New creates a loader for the skeleton scene below root.
func New[P any](cfg Config, acc points.Accessor[P], src NodeSource[P], root *scene.Node, opts ...Option) *Loader[P] {
	o := options{
		clock: clock.New(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.withDefaults()
	return &Loader[P]{
		log:      o.log,
		clock:    o.clock,
		acc:      acc,
		src:      src,
		cfg:      cfg,
		root:     root,
		resident: make(map[uuid.UUID]*residentEntry),
		visible:  make(map[uuid.UUID]struct{}),
		staged:   cfg,
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Init stores the render context and starts the background load goroutine.
// The goroutine stops when ctx is cancelled or Shutdown is called.
func (l *Loader[P]) Init(ctx context.Context, rc RenderContext) error {
	if rc == nil {
		return ErrNoRenderContext
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	l.mu.Lock()
	l.rc = rc
	interval := l.cfg.UpdateInterval
	l.mu.Unlock()

	go l.run(ctx, interval)
	return nil
}

func (l *Loader[P]) run(ctx context.Context, interval time.Duration) {
	defer close(l.done)

	ticker := l.clock.Ticker(interval)
	defer ticker.Stop()

	l.log.Debug("load loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("load loop cancelled")
			return
		case <-ticker.C:
		}

		if l.shutdown.Load() {
			l.log.Debug("load loop shut down")
			return
		}

		l.LoadNext()

		l.mu.Lock()
		next := l.cfg.UpdateInterval
		l.mu.Unlock()
		if next != interval {
			interval = next
			ticker.Reset(interval)
		}
	}
}

// Shutdown asks the background goroutine to stop after its current tick.
func (l *Loader[P]) Shutdown() {
	l.shutdown.Store(true)
}

// Wait blocks until the background goroutine has exited. It returns at once if
// Init was never called.
func (l *Loader[P]) Wait() {
	if !l.started.Load() {
		return
	}
	<-l.done
}

// Close detaches and disposes every resident mesh. Call it on the render
// thread after Wait.
func (l *Loader[P]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictAllLocked()
}

// Update runs the visibility pass if the update interval elapsed since the last
// one. It reports whether a pass ran.
func (l *Loader[P]) Update() bool {
	l.mu.Lock()
	now := l.clock.Now()
	if !l.lastPass.IsZero() && now.Sub(l.lastPass) < l.cfg.UpdateInterval {
		l.mu.Unlock()
		return false
	}
	l.lastPass = now
	l.mu.Unlock()

	l.Refresh()
	return true
}

// Config returns the configuration in effect.
func (l *Loader[P]) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// Root returns the scene root in effect.
func (l *Loader[P]) Root() *scene.Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.root
}

// Stats returns a snapshot of the loader state.
func (l *Loader[P]) Stats() Stats {
	l.mu.Lock()
	s := l.last
	s.ResidentNodes = len(l.resident)
	s.PendingNodes = l.pending.Len()
	s.MinProjectedSize = l.minProj
	l.mu.Unlock()

	s.Loads = l.loads.Load()
	s.Evictions = l.evictions.Load()
	s.Failures = l.failures.Load()
	s.Passes = l.passes.Load()
	return s
}

// State returns the residency state of o.
func (l *Loader[P]) State(o *Octant[P]) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return o.state
}

// PendingOctants returns the queued octants, largest projected size first.
func (l *Loader[P]) PendingOctants() []*Octant[P] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Values()
}

// OctantInfo is a point type independent snapshot of one octant.
type OctantInfo struct {
	GUID          uuid.UUID
	Level         int
	Center        mgl64.Vec3
	Size          float64
	PointCount    int
	ProjectedSize float64
	State         State
}

// VisibleOctants returns the octants of the last visible set.
func (l *Loader[P]) VisibleOctants() []OctantInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.root == nil {
		return nil
	}
	out := make([]OctantInfo, 0, len(l.visible))
	l.root.Walk(func(n *scene.Node) bool {
		o, ok := OctantOf[P](n)
		if !ok {
			return true
		}
		if _, vis := l.visible[o.GUID]; vis {
			out = append(out, OctantInfo{
				GUID:          o.GUID,
				Level:         o.Level,
				Center:        o.Center,
				Size:          o.Size,
				PointCount:    o.PointCount,
				ProjectedSize: o.ProjectedSize,
				State:         o.state,
			})
		}
		return true
	})
	return out
}

// SetPointThreshold stages a new point budget.
func (l *Loader[P]) SetPointThreshold(n int) {
	l.stage(func(c *Config) { c.PointThreshold = n })
}

// SetMinProjSizeModifier stages a new culling modifier.
func (l *Loader[P]) SetMinProjSizeModifier(m float64) {
	l.stage(func(c *Config) { c.MinProjSizeModifier = m })
}

// SetInitCamPos stages a new initial camera position.
func (l *Loader[P]) SetInitCamPos(p mgl64.Vec3) {
	l.stage(func(c *Config) { c.InitCamPos = p })
}

// SetShowOctants stages the octant wireframe toggle.
func (l *Loader[P]) SetShowOctants(show bool) {
	l.stage(func(c *Config) { c.ShowOctants = show })
}

// SetUpdateInterval stages a new cadence.
func (l *Loader[P]) SetUpdateInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	l.stage(func(c *Config) { c.UpdateInterval = d })
}

// SetRoot stages a new scene root. On the next pass every resident mesh of the
// old tree is evicted and the pending queue is cleared.
func (l *Loader[P]) SetRoot(root *scene.Node) {
	l.stageMu.Lock()
	l.stagedRoot = root
	l.rootDirty = true
	l.stageMu.Unlock()
	l.signal()
}

func (l *Loader[P]) stage(fn func(c *Config)) {
	l.stageMu.Lock()
	fn(&l.staged)
	l.stageMu.Unlock()
	l.signal()
}

func (l *Loader[P]) signal() {
	select {
	case l.changed <- struct{}{}:
	default:
	}
}

// applyStagedLocked takes over staged changes. Called with mu held.
func (l *Loader[P]) applyStagedLocked() {
	select {
	case <-l.changed:
	default:
		return
	}

	l.stageMu.Lock()
	cfg := l.staged
	root, rootDirty := l.stagedRoot, l.rootDirty
	l.stagedRoot, l.rootDirty = nil, false
	l.stageMu.Unlock()

	if cfg.MaxPending <= 0 {
		cfg.MaxPending = l.cfg.MaxPending
	}
	if cfg != l.cfg {
		l.log.Debug("config updated",
			zap.Int("pointThreshold", cfg.PointThreshold),
			zap.Float64("minProjSizeModifier", cfg.MinProjSizeModifier),
			zap.Bool("showOctants", cfg.ShowOctants))
	}
	l.cfg = cfg

	if rootDirty {
		l.evictAllLocked()
		l.root = root
		l.log.Info("scene root replaced")
	}
}

// evictAllLocked drops every resident mesh of the current tree.
func (l *Loader[P]) evictAllLocked() {
	if l.root != nil {
		l.root.Walk(func(n *scene.Node) bool {
			if o, ok := OctantOf[P](n); ok {
				l.evictLocked(n, o)
				if o.state == Pending {
					o.state = Skeleton
					o.pending = nil
				}
			}
			return true
		})
	}
	for guid, r := range l.resident {
		mesh.DisposeAll(r.chunks)
		delete(l.resident, guid)
	}
	l.pending.Clear()
	l.visible = make(map[uuid.UUID]struct{})
}
