// Package debug provides debug visualization utilities.
package debug

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/internal/scene"
)

// BBoxWireframeVertexCount is the number of vertices for a bbox wireframe (12 edges × 2).
const BBoxWireframeVertexCount = 24

// GenerateBBoxWireframeVertices creates line vertices for a wireframe bounding box.
// Returns 24 vertices (12 edges × 2 endpoints), format: [x, y, z] per vertex.
// minX, minY, minZ, maxX, maxY, maxZ define the box corners.
func GenerateBBoxWireframeVertices(minX, minY, minZ, maxX, maxY, maxZ float32) []float32 {
	return []float32{
		// Bottom face (4 edges)
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, minY, maxZ, minX, minY, maxZ,
		minX, minY, maxZ, minX, minY, minZ,
		// Top face (4 edges)
		minX, maxY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, maxY, minZ,
		// Vertical edges (4 edges)
		minX, minY, minZ, minX, maxY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		minX, minY, maxZ, minX, maxY, maxZ,
	}
}

// Wireframe is a scene component drawing an octant's cube as lines.
// Vertices are relative to Origin.
type Wireframe struct {
	Origin   mgl64.Vec3
	Vertices []float32
	Color    [4]float32
}

// Kind implements scene.Component.
func (*Wireframe) Kind() scene.Kind { return scene.KindWireframe }

// levelColors tints wireframes by octree level.
var levelColors = [...][4]float32{
	{1, 0.2, 0.2, 1},
	{1, 0.6, 0.1, 1},
	{1, 1, 0.2, 1},
	{0.3, 1, 0.3, 1},
	{0.2, 0.9, 1, 1},
	{0.4, 0.4, 1, 1},
	{0.9, 0.3, 1, 1},
}

// LevelColor returns the wireframe colour used for octants at level.
func LevelColor(level int) [4]float32 {
	if level < 0 {
		level = 0
	}
	return levelColors[level%len(levelColors)]
}

// NewOctantWireframe creates the wireframe of the cube (center, size) at level.
// The vertices are relative to center so they keep single precision accuracy
// far from the world origin.
func NewOctantWireframe(center mgl64.Vec3, size float64, level int) *Wireframe {
	h := float32(size / 2)
	return &Wireframe{
		Origin:   center,
		Vertices: GenerateBBoxWireframeVertices(-h, -h, -h, h, h, h),
		Color:    LevelColor(level),
	}
}
