package viewer

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/internal/config"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/camera"
	"github.com/Faultbox/midgard-pointcloud/internal/loader"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
)

type recordingStreamer struct {
	loader.Streamer
	cfg loader.Config
}

func (s *recordingStreamer) SetPointThreshold(n int) { s.cfg.PointThreshold = n }
func (s *recordingStreamer) SetMinProjSizeModifier(m float64) { s.cfg.MinProjSizeModifier = m }
func (s *recordingStreamer) SetInitCamPos(p mgl64.Vec3) { s.cfg.InitCamPos = p }
func (s *recordingStreamer) SetShowOctants(show bool) { s.cfg.ShowOctants = show }
func (s *recordingStreamer) SetUpdateInterval(d time.Duration) { s.cfg.UpdateInterval = d }

func TestApplyConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Loader.PointThreshold = 42
	cfg.Loader.MinProjSizeModifier = 0.5
	cfg.Loader.InitCamPos = [3]float64{0, 10, 0}
	cfg.Loader.ShowOctants = true
	cfg.Loader.UpdateInterval = time.Second

	s := &recordingStreamer{}
	ApplyConfig(s, cfg)

	if s.cfg.PointThreshold != 42 || s.cfg.MinProjSizeModifier != 0.5 {
		t.Errorf("tunables not applied: %+v", s.cfg)
	}
	if s.cfg.InitCamPos != (mgl64.Vec3{0, 10, 0}) || !s.cfg.ShowOctants || s.cfg.UpdateInterval != time.Second {
		t.Errorf("camera or display settings not applied: %+v", s.cfg)
	}
	if s.cfg.MaxPending != 0 {
		t.Errorf("queue capacity is not live tunable, got %d", s.cfg.MaxPending)
	}
}

func TestPlaceCamera(t *testing.T) {
	meta := &oocfile.Meta{}
	meta.Octree.RootNode.Center = [3]float64{100, 0, -50}
	meta.Octree.RootNode.Size = 20

	t.Run("fit to root", func(t *testing.T) {
		cam := camera.NewOrbitCamera()
		PlaceCamera(cam, meta, mgl64.Vec3{})
		if cam.Center != (mgl64.Vec3{100, 0, -50}) {
			t.Errorf("expected orbit centre at root centre, got %v", cam.Center)
		}
		if cam.Distance <= 10 {
			t.Errorf("camera inside the root cube: distance %f", cam.Distance)
		}
	})

	t.Run("initial position", func(t *testing.T) {
		cam := camera.NewOrbitCamera()
		PlaceCamera(cam, meta, mgl64.Vec3{100, 10, -30})
		if p := cam.Position(); !p.ApproxEqualThreshold(mgl64.Vec3{100, 10, -30}, 1e-6) {
			t.Errorf("expected camera at initial position, got %v", p)
		}
		if cam.Center != (mgl64.Vec3{100, 0, -50}) {
			t.Errorf("orbit centre moved: %v", cam.Center)
		}
	})
}
