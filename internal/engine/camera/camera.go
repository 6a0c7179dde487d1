// Package camera provides the orbit camera used to inspect point clouds, its
// perspective projection and a view frustum for culling octants.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	// Center point to orbit around
	Center mgl64.Vec3

	// Spherical coordinates
	Distance  float64 // Distance from center
	RotationX float64 // Pitch (vertical angle, radians)
	RotationY float64 // Yaw (horizontal angle, radians)

	// Constraints
	MinDistance float64
	MaxDistance float64
	MinPitch    float64
	MaxPitch    float64

	// Sensitivity
	DragSensitivity float64
	ZoomSensitivity float64
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        200.0,
		RotationX:       0.5,
		RotationY:       0.0,
		MinDistance:     0.5,
		MaxDistance:     1e6,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl64.Vec3 {
	x := c.Distance * math.Cos(c.RotationX) * math.Sin(c.RotationY)
	y := c.Distance * math.Sin(c.RotationX)
	z := c.Distance * math.Cos(c.RotationX) * math.Cos(c.RotationY)
	return c.Center.Add(mgl64.Vec3{x, y, z})
}

// SetPosition places the camera at pos, keeping the center and converting pos
// to orbit coordinates.
func (c *OrbitCamera) SetPosition(pos mgl64.Vec3) {
	d := pos.Sub(c.Center)
	c.Distance = d.Len()
	if c.Distance == 0 {
		return
	}
	c.RotationX = math.Asin(d[1] / c.Distance)
	c.RotationY = math.Atan2(d[0], d[2])
	c.clamp()
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl64.Mat4 {
	return mgl64.LookAtV(c.Position(), c.Center, mgl64.Vec3{0, 1, 0})
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float64) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX += deltaY * c.DragSensitivity
	c.clamp()
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float64) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.clamp()
}

func (c *OrbitCamera) clamp() {
	c.RotationX = mgl64.Clamp(c.RotationX, c.MinPitch, c.MaxPitch)
	c.Distance = mgl64.Clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// HandleMovement pans the camera center point based on keyboard input.
func (c *OrbitCamera) HandleMovement(forward, right, up float64) {
	// Speed scales with distance for consistent feel
	speed := c.Distance * 0.01

	dirX := math.Sin(c.RotationY)
	dirZ := math.Cos(c.RotationY)
	rightX := math.Cos(c.RotationY)
	rightZ := -math.Sin(c.RotationY)

	// Negate forward so W moves "into" the scene
	c.Center[0] += (-dirX*forward + rightX*right) * speed
	c.Center[2] += (-dirZ*forward + rightZ*right) * speed
	c.Center[1] += up * speed
}

// FitToBounds adjusts camera to view the given bounding box.
func (c *OrbitCamera) FitToBounds(min, max mgl64.Vec3) {
	c.Center = min.Add(max).Mul(0.5)

	size := max.Sub(min).Len()
	c.Distance = size
	if c.Distance < c.MinDistance {
		c.Distance = c.MinDistance
	}
	if c.MaxDistance < 4*size {
		c.MaxDistance = 4 * size
	}

	c.RotationX = 0.6 // Look down at ~35 degrees
	c.RotationY = 0.0
}

// FitCube adjusts camera to view the axis aligned cube (center, size).
func (c *OrbitCamera) FitCube(center mgl64.Vec3, size float64) {
	h := size / 2
	half := mgl64.Vec3{h, h, h}
	c.FitToBounds(center.Sub(half), center.Add(half))
}
