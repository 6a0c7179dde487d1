package octree

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// Build errors.
var (
	ErrNoPoints          = errors.New("no points to build from")
	ErrInvalidBucketSize = errors.New("max points in bucket must be positive")
)

// rootPadding enlarges the root cube so no point lies exactly on its border.
const rootPadding = 0.0001

// Options controls subdivision.
type Options struct {
	MaxPointsInBucket int // octants above this count are subdivided
	MaxLevel          int // octants at this level are never subdivided
}

// DefaultOptions returns the options used by the build tool.
func DefaultOptions() Options {
	return Options{
		MaxPointsInBucket: 1000,
		MaxLevel:          24,
	}
}

// Octree is a built or read octree.
type Octree[P any] struct {
	Root              *Octant[P]
	MaxLevel          int // deepest level present
	MaxPointsInBucket int
	Accessor          points.Accessor[P]
}

// Build partitions pts into an octree. pts is not modified; octant payloads
// share its backing points by value.
func Build[P any](acc points.Accessor[P], pts []P, opts Options) (*Octree[P], error) {
	if opts.MaxPointsInBucket <= 0 {
		return nil, ErrInvalidBucketSize
	}
	if len(pts) == 0 {
		return nil, ErrNoPoints
	}
	if opts.MaxLevel <= 0 {
		opts.MaxLevel = DefaultOptions().MaxLevel
	}

	center, size := boundingCube(acc, pts)
	t := &Octree[P]{
		Root:              NewRoot[P](center, size),
		MaxPointsInBucket: opts.MaxPointsInBucket,
		Accessor:          acc,
	}

	b := builder[P]{acc: acc, opts: opts, tree: t}
	b.subdivide(t.Root, append([]P(nil), pts...))
	return t, nil
}

// boundingCube returns the cube enclosing the AABB of pts, sized by its longest edge.
func boundingCube[P any](acc points.Accessor[P], pts []P) (mgl64.Vec3, float64) {
	lo := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := range pts {
		p := acc.Position(&pts[i])
		for a := 0; a < 3; a++ {
			lo[a] = math.Min(lo[a], p[a])
			hi[a] = math.Max(hi[a], p[a])
		}
	}

	extent := hi.Sub(lo)
	size := math.Max(extent[0], math.Max(extent[1], extent[2]))
	if size == 0 {
		size = 1
	}
	size += size * rootPadding

	return lo.Add(hi).Mul(0.5), size
}

type builder[P any] struct {
	acc  points.Accessor[P]
	opts Options
	tree *Octree[P]
}

// subdivide distributes pts over o and its children. Points with a neighbour
// closer than o.Resolution move to a child; the rest stay in o as its coarse
// representative sample.
func (b *builder[P]) subdivide(o *Octant[P], pts []P) {
	if o.Level > b.tree.MaxLevel {
		b.tree.MaxLevel = o.Level
	}

	if len(pts) <= b.opts.MaxPointsInBucket || o.Level >= b.opts.MaxLevel {
		o.Payload = pts
		o.IsLeaf = true
		return
	}

	grid := NewGrid(o.Center, o.Size)
	var kept []P
	var pushed [8][]P

	for i := range pts {
		pos := b.acc.Position(&pts[i])
		if grid.HasNeighborWithin(pos, o.Resolution) {
			idx := ChildIndex(o.Center, pos)
			pushed[idx] = append(pushed[idx], pts[i])
			continue
		}
		grid.Add(pos)
		kept = append(kept, pts[i])
	}
	o.Payload = kept

	for i, childPts := range pushed {
		if len(childPts) == 0 {
			continue
		}
		child := o.CreateChild(i)
		o.Children[i] = child
		b.subdivide(child, childPts)
	}
	o.IsLeaf = !o.HasChildren()
}

// Traverse calls fn for every octant in pre-order: a node before its children,
// child 0 before child 1. Returning false from fn skips the node's subtree.
func (t *Octree[P]) Traverse(fn func(o *Octant[P]) bool) {
	traverse(t.Root, fn)
}

func traverse[P any](o *Octant[P], fn func(o *Octant[P]) bool) {
	if o == nil || !fn(o) {
		return
	}
	for _, c := range o.Children {
		traverse(c, fn)
	}
}

// NodeCount returns the number of octants.
func (t *Octree[P]) NodeCount() int {
	n := 0
	t.Traverse(func(*Octant[P]) bool {
		n++
		return true
	})
	return n
}

// PointCount returns the number of points held by all octants.
func (t *Octree[P]) PointCount() int {
	n := 0
	t.Traverse(func(o *Octant[P]) bool {
		n += len(o.Payload)
		return true
	})
	return n
}

// String summarises the tree.
func (t *Octree[P]) String() string {
	return fmt.Sprintf("octree{nodes=%d points=%d maxLevel=%d bucket=%d}",
		t.NodeCount(), t.PointCount(), t.MaxLevel, t.MaxPointsInBucket)
}
