package picking

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestIntersectAABB(t *testing.T) {
	box := Cube(mgl64.Vec3{0, 0, -10}, 2)

	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		wantT float64
	}{
		{"straight on", Ray{mgl64.Vec3{}, mgl64.Vec3{0, 0, -1}}, true, 9},
		{"pointing away", Ray{mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}}, false, 0},
		{"parallel miss", Ray{mgl64.Vec3{5, 0, 0}, mgl64.Vec3{0, 0, -1}}, false, 0},
		{"from inside", Ray{mgl64.Vec3{0, 0, -10}, mgl64.Vec3{1, 0, 0}}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectAABB(box)
			if hit != tt.hit {
				t.Fatalf("hit = %v, expected %v", hit, tt.hit)
			}
			if hit && math.Abs(got-tt.wantT) > 1e-9 {
				t.Errorf("t = %f, expected %f", got, tt.wantT)
			}
		})
	}
}

func TestScreenToRay(t *testing.T) {
	view := mgl64.LookAtV(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	proj := mgl64.Perspective(mgl64.DegToRad(45), 800.0/600.0, 0.1, 100)

	r := ScreenToRay(400, 300, 800, 600, proj.Mul4(view))
	if !r.Direction.ApproxEqualThreshold(mgl64.Vec3{0, 0, -1}, 1e-6) {
		t.Errorf("centre ray direction %v, expected -Z", r.Direction)
	}
	if math.Abs(r.Origin[2]-9.9) > 1e-6 {
		t.Errorf("ray should start on the near plane, got %v", r.Origin)
	}

	left := ScreenToRay(0, 300, 800, 600, proj.Mul4(view))
	if left.Direction[0] >= 0 {
		t.Errorf("left edge ray should point to -X, got %v", left.Direction)
	}
}

func TestPick(t *testing.T) {
	cands := []Candidate[string]{
		{Center: mgl64.Vec3{0, 0, 0}, Size: 8, Value: "parent"},
		{Center: mgl64.Vec3{2, 2, 2}, Size: 4, Value: "child"},
		{Center: mgl64.Vec3{-2, -2, 2}, Size: 4, Value: "other child"},
		{Center: mgl64.Vec3{50, 0, 0}, Size: 1, Value: "far away"},
	}

	r := Ray{Origin: mgl64.Vec3{2, 2, 20}, Direction: mgl64.Vec3{0, 0, -1}}
	got, _, ok := Pick(r, cands)
	if !ok || got != "child" {
		t.Errorf("expected child, got %q (hit %v)", got, ok)
	}

	miss := Ray{Origin: mgl64.Vec3{20, 20, 20}, Direction: mgl64.Vec3{0, 0, -1}}
	if _, _, ok := Pick(miss, cands); ok {
		t.Error("expected no hit")
	}
}
