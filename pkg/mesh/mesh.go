// Package mesh turns octant point payloads into renderable point meshes that fit
// 16-bit index buffers.
package mesh

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// MaxVertices is the largest vertex count of one chunk. Index 0xFFFF stays free
// for primitive restart.
const MaxVertices = 65534

// ErrUnsupportedPointType is returned for point schemas the mesh builder does not know.
var ErrUnsupportedPointType = errors.New("unsupported point type for mesh construction")

// White is the colour of points without colour information.
var White = points.PackRGBA(255, 255, 255, 255)

// Chunk is a point mesh of at most MaxVertices vertices.
type Chunk struct {
	// Origin is added to every vertex to get its world position.
	Origin   mgl64.Vec3
	Vertices []mgl32.Vec3
	Colors   []uint32 // packed RGBA, red in the low byte
	Indices  []uint16

	mu       sync.Mutex
	hooks    []func()
	disposed bool
}

// Len returns the number of vertices.
func (c *Chunk) Len() int {
	return len(c.Vertices)
}

// OnDispose registers fn to run when the chunk is disposed. If the chunk is
// already disposed fn runs immediately.
func (c *Chunk) OnDispose(fn func()) {
	c.mu.Lock()
	if !c.disposed {
		c.hooks = append(c.hooks, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	fn()
}

// Dispose runs the registered hooks in reverse order of registration. Only the
// first call has an effect.
func (c *Chunk) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}

// Disposed reports whether Dispose has been called.
func (c *Chunk) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Split cuts items into consecutive slices of at most limit elements, preserving
// order. The last slice holds the remainder. The slices share items' backing array.
func Split[T any](items []T, limit int) [][]T {
	if limit <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+limit-1)/limit)
	for start := 0; start < len(items); start += limit {
		end := min(start+limit, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// Build converts pts into chunks of at most MaxVertices vertices. Positions are
// stored relative to origin in single precision. Colours come from the
// accessor when it implements points.Colorer, otherwise points are white.
func Build[P any](acc points.Accessor[P], pts []P, origin mgl64.Vec3) ([]*Chunk, error) {
	if !points.Supported(acc.Type()) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPointType, acc.Type())
	}

	colorer, hasColor := acc.(points.Colorer[P])

	var chunks []*Chunk
	for _, part := range Split(pts, MaxVertices) {
		c := &Chunk{
			Origin:   origin,
			Vertices: make([]mgl32.Vec3, len(part)),
			Colors:   make([]uint32, len(part)),
			Indices:  make([]uint16, len(part)),
		}
		for i := range part {
			p := acc.Position(&part[i]).Sub(origin)
			c.Vertices[i] = mgl32.Vec3{float32(p[0]), float32(p[1]), float32(p[2])}
			if hasColor {
				c.Colors[i] = colorer.Color(&part[i])
			} else {
				c.Colors[i] = White
			}
			c.Indices[i] = uint16(i)
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// DisposeAll disposes every chunk.
func DisposeAll(chunks []*Chunk) {
	for _, c := range chunks {
		c.Dispose()
	}
}
