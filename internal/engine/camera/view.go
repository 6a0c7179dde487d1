package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// View combines an orbit camera with a perspective projection and a viewport.
// It is the render context the point cloud loader measures octants against.
type View struct {
	Camera *OrbitCamera
	FovY   float64 // vertical field of view, radians
	Near   float64
	Far    float64

	width, height int
}

// NewView creates a view with a 45° field of view.
func NewView(cam *OrbitCamera, width, height int) *View {
	return &View{
		Camera: cam,
		FovY:   mgl64.DegToRad(45),
		Near:   0.1,
		Far:    1e5,
		width:  width,
		height: height,
	}
}

// Resize sets the viewport size in pixels.
func (v *View) Resize(width, height int) {
	v.width, v.height = width, height
}

// Ready reports whether the viewport has a usable size.
func (v *View) Ready() bool {
	return v.Camera != nil && v.width > 0 && v.height > 0
}

// Position returns the camera position.
func (v *View) Position() mgl64.Vec3 {
	return v.Camera.Position()
}

// ViewportHeight returns the viewport height in pixels.
func (v *View) ViewportHeight() int {
	return v.height
}

// ViewportSize returns the viewport size in pixels.
func (v *View) ViewportSize() (width, height int) {
	return v.width, v.height
}

// FieldOfView returns the vertical field of view in radians.
func (v *View) FieldOfView() float64 {
	return v.FovY
}

// Projection returns the perspective projection matrix.
func (v *View) Projection() mgl64.Mat4 {
	aspect := 1.0
	if v.height > 0 {
		aspect = float64(v.width) / float64(v.height)
	}
	return mgl64.Perspective(v.FovY, aspect, v.Near, v.Far)
}

// ViewProjection returns projection × view.
func (v *View) ViewProjection() mgl64.Mat4 {
	return v.Projection().Mul4(v.Camera.ViewMatrix())
}

// Frustum returns the current view frustum.
func (v *View) Frustum() Frustum {
	return NewFrustum(v.ViewProjection())
}

// IntersectsCube reports whether the axis aligned cube (center, size) is at
// least partly inside the view frustum.
func (v *View) IntersectsCube(center mgl64.Vec3, size float64) bool {
	return v.Frustum().IntersectsCube(center, size)
}

// Frustum holds the six clip planes of a view-projection matrix. Each plane is
// (a, b, c, d) with a unit normal pointing inside.
type Frustum [6]mgl64.Vec4

// NewFrustum extracts the planes of m.
func NewFrustum(m mgl64.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	f := Frustum{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near
		r3.Sub(r2), // far
	}
	for i := range f {
		n := f[i].Vec3().Len()
		if n > 0 {
			f[i] = f[i].Mul(1 / n)
		}
	}
	return f
}

// IntersectsAABB reports whether the box [min, max] is at least partly inside.
func (f Frustum) IntersectsAABB(min, max mgl64.Vec3) bool {
	for _, p := range f {
		// Corner furthest along the plane normal
		var c mgl64.Vec3
		for a := 0; a < 3; a++ {
			if p[a] >= 0 {
				c[a] = max[a]
			} else {
				c[a] = min[a]
			}
		}
		if p.Vec3().Dot(c)+p[3] < 0 {
			return false
		}
	}
	return true
}

// IntersectsCube reports whether the cube (center, size) is at least partly inside.
func (f Frustum) IntersectsCube(center mgl64.Vec3, size float64) bool {
	h := size / 2
	half := mgl64.Vec3{h, h, h}
	return f.IntersectsAABB(center.Sub(half), center.Add(half))
}

// ContainsPoint reports whether p is inside all six planes.
func (f Frustum) ContainsPoint(p mgl64.Vec3) bool {
	for _, pl := range f {
		if pl.Vec3().Dot(p)+pl[3] < 0 {
			return false
		}
	}
	return true
}

// DistanceToFit returns the camera distance at which a sphere of the given
// radius fills the vertical field of view.
func (v *View) DistanceToFit(radius float64) float64 {
	return radius / math.Sin(v.FovY/2)
}
