package loader

import (
	"fmt"

	"github.com/Faultbox/midgard-pointcloud/internal/scene"
	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
)

// State is the residency state of an octant.
type State int

// Octant states.
const (
	Skeleton State = iota // only the hierarchy entry is known
	Pending               // queued for loading
	Resident              // mesh chunks are cached
)

func (s State) String() string {
	switch s {
	case Skeleton:
		return "skeleton"
	case Pending:
		return "pending"
	case Resident:
		return "resident"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Octant is the scene component carrying one octant of the streamed tree.
// Runtime fields are owned by the loader and only change under its lock.
type Octant[P any] struct {
	*octree.Octant[P]

	// PointCount is the number of points in the node file; -1 until probed or loaded.
	PointCount    int
	// WasLoaded is set once the node file has been read, after which PointCount is exact.
	WasLoaded     bool
	ProjectedSize float64

	state   State
	pending *entry[*Octant[P]]
	node    *scene.Node
}

// NewOctant wraps o as a skeleton component.
func NewOctant[P any](o *octree.Octant[P]) *Octant[P] {
	return &Octant[P]{Octant: o, PointCount: -1}
}

// Kind implements scene.Component.
func (*Octant[P]) Kind() scene.Kind { return scene.KindOctant }

// Node returns the scene node the octant is attached to.
func (o *Octant[P]) Node() *scene.Node { return o.node }

// OctantOf returns the octant component of n.
func OctantOf[P any](n *scene.Node) (*Octant[P], bool) {
	return scene.Get[*Octant[P]](n)
}
