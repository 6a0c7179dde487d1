package octree

import (
	"github.com/go-gl/mathgl/mgl64"
)

// GridSize is the number of cells along each axis of an octant's lattice.
const GridSize = 128

// CellKey addresses one cell of the lattice.
type CellKey [3]int

// Grid is a sparse 128³ lattice over one octant used to test local point spacing.
type Grid struct {
	min      mgl64.Vec3
	cellSize float64
	cells    map[CellKey][]mgl64.Vec3
	count    int
}

// NewGrid creates an empty grid covering the cube (center, size).
func NewGrid(center mgl64.Vec3, size float64) *Grid {
	h := size / 2
	return &Grid{
		min:      center.Sub(mgl64.Vec3{h, h, h}),
		cellSize: size / GridSize,
		cells:    make(map[CellKey][]mgl64.Vec3),
	}
}

// Cell returns the cell containing p, clamped to the lattice.
func (g *Grid) Cell(p mgl64.Vec3) CellKey {
	var k CellKey
	for i := 0; i < 3; i++ {
		c := int((p[i] - g.min[i]) / g.cellSize)
		if c < 0 {
			c = 0
		} else if c >= GridSize {
			c = GridSize - 1
		}
		k[i] = c
	}
	return k
}

// HasNeighborWithin reports whether a point already in the grid lies closer than
// dist to p, looking at the 3×3×3 cells around p's cell.
func (g *Grid) HasNeighborWithin(p mgl64.Vec3, dist float64) bool {
	k := g.Cell(p)
	d2 := dist * dist
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				for _, q := range g.cells[CellKey{k[0] + dx, k[1] + dy, k[2] + dz}] {
					d := q.Sub(p)
					if d.Dot(d) < d2 {
						return true
					}
				}
			}
		}
	}
	return false
}

// Add places p into its cell.
func (g *Grid) Add(p mgl64.Vec3) {
	k := g.Cell(p)
	g.cells[k] = append(g.cells[k], p)
	g.count++
}

// Len returns the number of points in the grid.
func (g *Grid) Len() int {
	return g.count
}

// Occupied returns the number of non-empty cells.
func (g *Grid) Occupied() int {
	return len(g.cells)
}
