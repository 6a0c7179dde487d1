// Package picking provides ray casting against octant cubes.
package picking

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3 // Normalized direction
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Cube returns the box of the cube (center, size).
func Cube(center mgl64.Vec3, size float64) AABB {
	h := size / 2
	half := mgl64.Vec3{h, h, h}
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

// ScreenToRay converts screen coordinates to a world-space ray.
// screenX, screenY are pixel coordinates, viewportW/H are viewport dimensions.
func ScreenToRay(screenX, screenY float64, viewportW, viewportH int, viewProj mgl64.Mat4) Ray {
	inv := viewProj.Inv()

	// Normalized device coords, Y flipped
	ndcX := 2*screenX/float64(viewportW) - 1
	ndcY := 1 - 2*screenY/float64(viewportH)

	near := unproject(inv, mgl64.Vec4{ndcX, ndcY, -1, 1})
	far := unproject(inv, mgl64.Vec4{ndcX, ndcY, 1, 1})

	dir := far.Sub(near)
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}
	return Ray{Origin: near, Direction: dir}
}

func unproject(inv mgl64.Mat4, p mgl64.Vec4) mgl64.Vec3 {
	w := inv.Mul4x1(p)
	if w[3] != 0 {
		return w.Vec3().Mul(1 / w[3])
	}
	return w.Vec3()
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box AABB) (t float64, hit bool) {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)

	for a := 0; a < 3; a++ {
		if r.Direction[a] == 0 {
			if r.Origin[a] < box.Min[a] || r.Origin[a] > box.Max[a] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[a] - r.Origin[a]) / r.Direction[a]
		t2 := (box.Max[a] - r.Origin[a]) / r.Direction[a]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	// Entry point, or exit point if starting inside
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// Candidate is a cube that can be picked.
type Candidate[T any] struct {
	Center mgl64.Vec3
	Size   float64
	Value  T
}

// Pick returns the smallest candidate cube the ray hits, the nearest one
// among cubes of equal size. Nested octants resolve to the deepest one.
func Pick[T any](r Ray, cands []Candidate[T]) (T, float64, bool) {
	var best T
	bestT, bestSize := math.Inf(1), math.Inf(1)
	found := false
	for _, c := range cands {
		t, ok := r.IntersectAABB(Cube(c.Center, c.Size))
		if !ok {
			continue
		}
		if c.Size < bestSize || (c.Size == bestSize && t < bestT) {
			best, bestT, bestSize, found = c.Value, t, c.Size, true
		}
	}
	return best, bestT, found
}
