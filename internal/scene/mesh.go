package scene

import (
	"github.com/Faultbox/midgard-pointcloud/pkg/mesh"
)

// Mesh attaches one point mesh chunk to a node.
type Mesh struct {
	Chunk *mesh.Chunk
	Level int // octree level of the owning octant
}

// Kind implements Component.
func (*Mesh) Kind() Kind { return KindMesh }
