package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func lookingDownZ() *View {
	cam := NewOrbitCamera()
	cam.Center = mgl64.Vec3{0, 0, -10}
	cam.RotationX = 0
	cam.RotationY = 0
	cam.Distance = 10 // camera sits at the origin looking towards -Z
	return NewView(cam, 800, 600)
}

func TestOrbitCamera_Position(t *testing.T) {
	v := lookingDownZ()
	if p := v.Position(); !p.ApproxEqualThreshold(mgl64.Vec3{}, 1e-9) {
		t.Errorf("expected camera at origin, got %v", p)
	}

	cam := NewOrbitCamera()
	cam.SetPosition(mgl64.Vec3{3, 4, 12})
	if p := cam.Position(); !p.ApproxEqualThreshold(mgl64.Vec3{3, 4, 12}, 1e-9) {
		t.Errorf("SetPosition round trip gave %v", p)
	}
}

func TestOrbitCamera_Clamp(t *testing.T) {
	cam := NewOrbitCamera()
	cam.HandleDrag(0, 1e6)
	if cam.RotationX != cam.MaxPitch {
		t.Errorf("expected pitch clamped to %f, got %f", cam.MaxPitch, cam.RotationX)
	}
	cam.HandleZoom(1e3)
	if cam.Distance != cam.MinDistance {
		t.Errorf("expected distance clamped to %f, got %f", cam.MinDistance, cam.Distance)
	}
}

func TestFrustum_Cubes(t *testing.T) {
	v := lookingDownZ()

	cases := []struct {
		name   string
		center mgl64.Vec3
		size   float64
		want   bool
	}{
		{"in front", mgl64.Vec3{0, 0, -10}, 1, true},
		{"behind", mgl64.Vec3{0, 0, 10}, 1, false},
		{"far left", mgl64.Vec3{-100, 0, -10}, 1, false},
		{"straddling the left plane", mgl64.Vec3{-6, 0, -10}, 4, true},
		{"past far plane", mgl64.Vec3{0, 0, -2e5}, 1, false},
		{"around the camera", mgl64.Vec3{}, 2, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := v.IntersectsCube(tc.center, tc.size); got != tc.want {
				t.Errorf("IntersectsCube(%v, %f) = %v, expected %v", tc.center, tc.size, got, tc.want)
			}
		})
	}
}

func TestFrustum_ContainsPoint(t *testing.T) {
	f := lookingDownZ().Frustum()
	if !f.ContainsPoint(mgl64.Vec3{0, 0, -5}) {
		t.Error("point straight ahead should be inside")
	}
	if f.ContainsPoint(mgl64.Vec3{0, 0, 5}) {
		t.Error("point behind should be outside")
	}
	for i, p := range f {
		if math.Abs(p.Vec3().Len()-1) > 1e-9 {
			t.Errorf("plane %d not normalised: %v", i, p)
		}
	}
}

func TestView_Ready(t *testing.T) {
	v := NewView(NewOrbitCamera(), 0, 0)
	if v.Ready() {
		t.Error("zero sized view must not be ready")
	}
	v.Resize(640, 480)
	if !v.Ready() || v.ViewportHeight() != 480 {
		t.Errorf("expected ready 640x480 view, got ready=%v height=%d", v.Ready(), v.ViewportHeight())
	}
}
