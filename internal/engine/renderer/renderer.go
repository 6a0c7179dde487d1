// Package renderer draws point cloud scenes with OpenGL.
package renderer

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pointcloud/internal/engine/debug"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/framebuffer"
	"github.com/Faultbox/midgard-pointcloud/internal/engine/shader"
	"github.com/Faultbox/midgard-pointcloud/internal/logger"
	"github.com/Faultbox/midgard-pointcloud/internal/scene"
	"github.com/Faultbox/midgard-pointcloud/pkg/mesh"
)

// Config holds renderer configuration.
type Config struct {
	Width     int
	Height    int
	PointSize float32
}

// FrameStats counts what the last frame drew.
type FrameStats struct {
	Chunks     int
	Points     int
	Wireframes int
	Uploads    int
}

// gpuChunk holds the buffers of one uploaded mesh chunk.
type gpuChunk struct {
	vao, pos, color, index uint32
	count                  int32
}

// gpuLines holds the buffers of one uploaded wireframe.
type gpuLines struct {
	vao, vbo uint32
	count    int32
	seen     uint64
}

// Renderer handles all OpenGL rendering.
type Renderer struct {
	config Config
	log    *zap.Logger

	points *shader.Program
	lines  *shader.Program

	chunks     map[*mesh.Chunk]*gpuChunk
	wireframes map[*debug.Wireframe]*gpuLines
	frame      uint64
	stats      FrameStats

	// Chunks disposed since the last frame. Dispose hooks may fire while the
	// loader holds its lock, so buffers are released at the next Begin.
	releaseMu sync.Mutex
	released  []*mesh.Chunk
}

// New creates a new renderer. It must be called after the OpenGL context is
// created, on the thread owning it.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config:     cfg,
		log:        logger.Named("renderer"),
		chunks:     make(map[*mesh.Chunk]*gpuChunk),
		wireframes: make(map[*debug.Wireframe]*gpuLines),
	}
	if r.config.PointSize <= 0 {
		r.config.PointSize = 2
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)

	var err error
	r.points, err = shader.NewProgram(pointVertexShader, pointFragmentShader, "uMVP", "uPointSize", "uLevel")
	if err != nil {
		return nil, fmt.Errorf("point shader: %w", err)
	}
	r.lines, err = shader.NewProgram(lineVertexShader, lineFragmentShader, "uMVP", "uColor")
	if err != nil {
		r.points.Delete()
		return nil, fmt.Errorf("line shader: %w", err)
	}

	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))
	return r, nil
}

// Close releases every GPU resource.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	r.releasePending()
	for c, g := range r.chunks {
		deleteChunk(g)
		delete(r.chunks, c)
	}
	for w, g := range r.wireframes {
		deleteLines(g)
		delete(r.wireframes, w)
	}
	r.points.Delete()
	r.lines.Delete()
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// SetPointSize sets the base point size in pixels.
func (r *Renderer) SetPointSize(size float32) {
	if size > 0 {
		r.config.PointSize = size
	}
}

// Stats returns the counters of the last frame.
func (r *Renderer) Stats() FrameStats {
	return r.stats
}

// Uploaded returns the number of chunks with GPU buffers.
func (r *Renderer) Uploaded() int {
	return len(r.chunks)
}

// Begin starts a new frame and frees buffers of disposed chunks.
func (r *Renderer) Begin() {
	r.releasePending()
	r.frame++
	r.stats = FrameStats{}
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// End finishes the current frame. Wireframes not drawn this frame are freed.
func (r *Renderer) End() {
	for w, g := range r.wireframes {
		if g.seen != r.frame {
			deleteLines(g)
			delete(r.wireframes, w)
		}
	}
}

// Draw renders every mesh and wireframe component below root.
func (r *Renderer) Draw(root *scene.Node, viewProj mgl64.Mat4) {
	if root == nil {
		return
	}

	r.points.Use()
	r.points.SetFloat("uPointSize", r.config.PointSize)
	root.Walk(func(n *scene.Node) bool {
		for _, m := range scene.All[*scene.Mesh](n) {
			r.drawChunk(m, viewProj)
		}
		return true
	})

	r.lines.Use()
	root.Walk(func(n *scene.Node) bool {
		for _, w := range scene.All[*debug.Wireframe](n) {
			r.drawWireframe(w, viewProj)
		}
		return true
	})
	gl.BindVertexArray(0)
}

// Capture renders root into an offscreen framebuffer of the current size and
// returns the bottom-up RGBA pixels.
func (r *Renderer) Capture(root *scene.Node, viewProj mgl64.Mat4) ([]byte, int, int, error) {
	fb, err := framebuffer.New(r.config.Width, r.config.Height)
	if err != nil {
		return nil, 0, 0, err
	}
	defer fb.Destroy()

	restore := fb.Bind()
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	r.Draw(root, viewProj)
	pixels := fb.ReadPixels()
	restore()

	w, h := fb.Size()
	return pixels, w, h, nil
}

// modelViewProjection translates by origin in double precision before
// converting, so chunks far from the world origin keep their accuracy.
func modelViewProjection(viewProj mgl64.Mat4, origin mgl64.Vec3) mgl32.Mat4 {
	mvp := viewProj.Mul4(mgl64.Translate3D(origin[0], origin[1], origin[2]))
	var out mgl32.Mat4
	for i, v := range mvp {
		out[i] = float32(v)
	}
	return out
}

func (r *Renderer) drawChunk(m *scene.Mesh, viewProj mgl64.Mat4) {
	c := m.Chunk
	if c == nil || c.Len() == 0 || c.Disposed() {
		return
	}
	g, ok := r.chunks[c]
	if !ok {
		g = r.upload(c)
	}

	r.points.SetMat4("uMVP", modelViewProjection(viewProj, c.Origin))
	r.points.SetFloat("uLevel", float32(m.Level))
	gl.BindVertexArray(g.vao)
	gl.DrawElements(gl.POINTS, g.count, gl.UNSIGNED_SHORT, nil)

	r.stats.Chunks++
	r.stats.Points += int(g.count)
}

func (r *Renderer) upload(c *mesh.Chunk) *gpuChunk {
	g := &gpuChunk{count: int32(len(c.Indices))}

	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)

	gl.GenBuffers(1, &g.pos)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.pos)
	gl.BufferData(gl.ARRAY_BUFFER, len(c.Vertices)*3*4, unsafe.Pointer(&c.Vertices[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, nil)
	gl.EnableVertexAttribArray(0)

	// Packed RGBA, red in the low byte.
	gl.GenBuffers(1, &g.color)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.color)
	gl.BufferData(gl.ARRAY_BUFFER, len(c.Colors)*4, unsafe.Pointer(&c.Colors[0]), gl.STATIC_DRAW)
	gl.VertexAttribPointer(1, 4, gl.UNSIGNED_BYTE, true, 4, nil)
	gl.EnableVertexAttribArray(1)

	gl.GenBuffers(1, &g.index)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.index)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(c.Indices)*2, unsafe.Pointer(&c.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	r.chunks[c] = g
	r.stats.Uploads++
	c.OnDispose(func() {
		r.releaseMu.Lock()
		r.released = append(r.released, c)
		r.releaseMu.Unlock()
	})
	return g
}

func (r *Renderer) releasePending() {
	r.releaseMu.Lock()
	released := r.released
	r.released = nil
	r.releaseMu.Unlock()

	for _, c := range released {
		if g, ok := r.chunks[c]; ok {
			deleteChunk(g)
			delete(r.chunks, c)
		}
	}
	if len(released) > 0 {
		r.log.Debug("released chunk buffers", zap.Int("chunks", len(released)))
	}
}

func deleteChunk(g *gpuChunk) {
	gl.DeleteVertexArrays(1, &g.vao)
	bufs := []uint32{g.pos, g.color, g.index}
	gl.DeleteBuffers(int32(len(bufs)), &bufs[0])
}

func (r *Renderer) drawWireframe(w *debug.Wireframe, viewProj mgl64.Mat4) {
	g, ok := r.wireframes[w]
	if !ok {
		g = &gpuLines{count: int32(len(w.Vertices) / 3)}
		gl.GenVertexArrays(1, &g.vao)
		gl.BindVertexArray(g.vao)
		gl.GenBuffers(1, &g.vbo)
		gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
		gl.BufferData(gl.ARRAY_BUFFER, len(w.Vertices)*4, unsafe.Pointer(&w.Vertices[0]), gl.STATIC_DRAW)
		gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 3*4, nil)
		gl.EnableVertexAttribArray(0)
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
		r.wireframes[w] = g
	}
	g.seen = r.frame

	r.lines.SetMat4("uMVP", modelViewProjection(viewProj, w.Origin))
	r.lines.SetVec4("uColor", w.Color)
	gl.BindVertexArray(g.vao)
	gl.DrawArrays(gl.LINES, 0, g.count)
	r.stats.Wireframes++
}

func deleteLines(g *gpuLines) {
	gl.DeleteVertexArrays(1, &g.vao)
	gl.DeleteBuffers(1, &g.vbo)
}
