// Package octree partitions point sets into an octree governed by a point-count
// threshold and a minimum inter-point spacing per level.
package octree

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Octant is one cubic node of the octree.
type Octant[P any] struct {
	GUID        uuid.UUID
	Center      mgl64.Vec3
	Size        float64
	Level       int
	IsLeaf      bool
	Resolution  float64 // minimum spacing of points kept at this level
	PosInParent int     // 0-7, -1 for the root
	Children    [8]*Octant[P]

	// Payload holds the points stored in this octant. It is empty for octants
	// reconstructed from a hierarchy file until their node file is read.
	Payload []P
}

// NewRoot creates a root octant with a fresh GUID.
func NewRoot[P any](center mgl64.Vec3, size float64) *Octant[P] {
	return &Octant[P]{
		GUID:        uuid.New(),
		Center:      center,
		Size:        size,
		Resolution:  size / GridSize,
		PosInParent: -1,
	}
}

// CreateChild creates (but does not attach) the child at pos with a fresh GUID.
func (o *Octant[P]) CreateChild(pos int) *Octant[P] {
	return &Octant[P]{
		GUID:        uuid.New(),
		Center:      ChildCenter(o.Center, o.Size, pos),
		Size:        o.Size / 2,
		Level:       o.Level + 1,
		Resolution:  o.Resolution / 2,
		PosInParent: pos,
	}
}

// ChildMask returns a byte with bit i set for every existing child i.
func (o *Octant[P]) ChildMask() byte {
	var mask byte
	for i, c := range o.Children {
		if c != nil {
			mask |= 1 << i
		}
	}
	return mask
}

// HasChildren reports whether any child exists.
func (o *Octant[P]) HasChildren() bool {
	return o.ChildMask() != 0
}

// Bounds returns the min and max corners of the octant cube.
func (o *Octant[P]) Bounds() (min, max mgl64.Vec3) {
	h := o.Size / 2
	half := mgl64.Vec3{h, h, h}
	return o.Center.Sub(half), o.Center.Add(half)
}

// ChildCenter returns the centre of child pos of the cube (center, size).
// Bit 0 selects +x, bit 1 selects +z, bit 2 selects +y.
func ChildCenter(center mgl64.Vec3, size float64, pos int) mgl64.Vec3 {
	q := size / 4
	offset := func(bit int) float64 {
		if pos&bit != 0 {
			return q
		}
		return -q
	}
	return mgl64.Vec3{
		center[0] + offset(1),
		center[1] + offset(4),
		center[2] + offset(2),
	}
}

// ChildIndex returns the child position code for p relative to center.
func ChildIndex(center, p mgl64.Vec3) int {
	idx := 0
	if p[0] >= center[0] {
		idx |= 1
	}
	if p[2] >= center[2] {
		idx |= 2
	}
	if p[1] >= center[1] {
		idx |= 4
	}
	return idx
}

// ProjectedScreenSize returns the apparent size in pixels of a cube of the given
// size at center, seen from camPos with a vertical field of view fovY (radians)
// on a viewport viewportHeight pixels high.
func ProjectedScreenSize(center mgl64.Vec3, size float64, camPos mgl64.Vec3, viewportHeight int, fovY float64) float64 {
	distance := center.Sub(camPos).Len()
	if distance == 0 {
		return math.Inf(1)
	}
	slope := math.Tan(fovY / 2)
	return float64(viewportHeight) / 2 * size / (slope * distance)
}
