package loader

import (
	"errors"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pointcloud/internal/engine/debug"
	"github.com/Faultbox/midgard-pointcloud/internal/logger"
	"github.com/Faultbox/midgard-pointcloud/internal/scene"
	"github.com/Faultbox/midgard-pointcloud/pkg/mesh"
	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
)

// Refresh runs the visibility pass now: it picks the visible set under the
// point budget, queues octants that should be loaded and brings the scene in
// line with the result. Staged configuration changes take effect first.
func (l *Loader[P]) Refresh() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.applyStagedLocked()
	if l.root == nil || l.rc == nil || !l.rc.Ready() {
		return
	}
	rootOct, ok := OctantOf[P](l.root)
	if !ok {
		return
	}
	l.passes.Inc()

	cam := l.rc.Position()
	height := l.rc.ViewportHeight()
	fov := l.rc.FieldOfView()
	rootProj := octree.ProjectedScreenSize(rootOct.Center, rootOct.Size, cam, height, fov)
	minProj := rootProj * l.cfg.MinProjSizeModifier
	if math.IsInf(minProj, 0) || math.IsNaN(minProj) {
		minProj = 0
	}

	var frontier priorityQueue[*Octant[P]]
	consider := func(o *Octant[P]) {
		o.ProjectedSize = octree.ProjectedScreenSize(o.Center, o.Size, cam, height, fov)
		if !l.rc.IntersectsCube(o.Center, o.Size) || o.ProjectedSize < minProj {
			return
		}
		frontier.Push(o, o.ProjectedSize)
	}
	expand := func(o *Octant[P]) {
		for _, child := range o.node.Children() {
			if c, ok := OctantOf[P](child); ok {
				consider(c)
			}
		}
	}

	visible := make(map[uuid.UUID]struct{})
	touched := make(map[uuid.UUID]struct{})
	total := 0

	consider(rootOct)
	for frontier.Len() > 0 && total < l.cfg.PointThreshold {
		o, _ := frontier.Pop()
		switch o.state {
		case Resident:
			total += o.PointCount
			visible[o.GUID] = struct{}{}
			expand(o)

		case Pending:
			total += o.PointCount
			touched[o.GUID] = struct{}{}
			l.pending.Update(o.pending, o.ProjectedSize)

		case Skeleton:
			n, ok := l.probeLocked(o)
			if !ok {
				continue
			}
			total += n
			if n == 0 {
				// Nothing to read; the octant is resident without chunks.
				l.resident[o.GUID] = &residentEntry{}
				o.state = Resident
				o.WasLoaded = true
				visible[o.GUID] = struct{}{}
				expand(o)
				continue
			}
			if l.pending.Len() < l.cfg.MaxPending {
				o.state = Pending
				o.pending = l.pending.Push(o, o.ProjectedSize)
				touched[o.GUID] = struct{}{}
			}
		}
	}

	// Queued octants that dropped out of view go back to the skeleton.
	for _, o := range l.pending.Values() {
		if _, ok := touched[o.GUID]; ok {
			continue
		}
		l.pending.Remove(o.pending)
		o.pending = nil
		o.state = Skeleton
	}

	l.visible = visible
	l.minProj = minProj
	l.last = Stats{
		VisibleNodes:  len(visible),
		VisiblePoints: total,
	}

	l.syncSceneLocked()
}

// probeLocked returns the point count of a skeleton octant, reading the node
// file header the first time. An octant whose node file is missing or corrupt
// counts as empty. Any other probe error leaves the count unknown and reports
// false, so the octant is skipped this pass and probed again on the next.
func (l *Loader[P]) probeLocked(o *Octant[P]) (int, bool) {
	if o.PointCount >= 0 {
		return o.PointCount, true
	}
	n, err := l.src.PointCount(o.GUID)
	switch {
	case errors.Is(err, oocfile.ErrMissingResource), errors.Is(err, oocfile.ErrInvalidNode):
		l.log.Warn("node file unusable, counting octant as empty", logger.Octant(o.GUID), zap.Error(err))
		n = 0
	case err != nil:
		l.failures.Inc()
		l.log.Warn("probe failed, retrying next pass", logger.Octant(o.GUID), zap.Error(err))
		return 0, false
	}
	o.PointCount = n
	return n, true
}

// syncSceneLocked walks the whole tree and attaches, detaches or evicts mesh
// components according to the current visible set.
func (l *Loader[P]) syncSceneLocked() {
	show := l.cfg.ShowOctants
	l.root.Walk(func(n *scene.Node) bool {
		o, ok := OctantOf[P](n)
		if !ok {
			return true
		}

		_, vis := l.visible[o.GUID]
		r := l.resident[o.GUID]
		switch {
		case vis && r != nil:
			n.Replace(scene.KindMesh, r.meshes...)
			if show {
				if r.wireframe == nil {
					r.wireframe = debug.NewOctantWireframe(o.Center, o.Size, o.Level)
				}
				n.Replace(scene.KindWireframe, r.wireframe)
			} else {
				n.Remove(scene.KindWireframe)
			}
		case o.state == Resident:
			l.evictLocked(n, o)
		default:
			n.Remove(scene.KindMesh)
			n.Remove(scene.KindWireframe)
		}
		return true
	})
}

// evictLocked detaches and disposes the mesh chunks of a resident octant.
func (l *Loader[P]) evictLocked(n *scene.Node, o *Octant[P]) {
	if o.state != Resident {
		return
	}
	n.Remove(scene.KindMesh)
	n.Remove(scene.KindWireframe)
	if r := l.resident[o.GUID]; r != nil {
		mesh.DisposeAll(r.chunks)
		delete(l.resident, o.GUID)
	}
	o.state = Skeleton
	l.evictions.Inc()
	l.log.Debug("octant evicted", logger.Octant(o.GUID), zap.Int("level", o.Level))
}

// LoadNext runs one load pass: it reads the queued octant with the largest
// projected size and caches its mesh chunks. It reports whether the queue held
// an octant. A failed read is logged and the octant returns to the skeleton
// state, so a later visibility pass can queue it again.
func (l *Loader[P]) LoadNext() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending.Len() == 0 {
		return false
	}
	o, _ := l.pending.Pop()
	o.pending = nil

	pts, err := l.src.Points(o.GUID)
	var chunks []*mesh.Chunk
	if err == nil {
		chunks, err = mesh.Build(l.acc, pts, o.Center)
	}
	if err != nil {
		l.failures.Inc()
		o.state = Skeleton
		l.log.Warn("octant load failed", logger.Octant(o.GUID), zap.Error(err))
		return true
	}

	meshes := make([]scene.Component, len(chunks))
	for i, c := range chunks {
		meshes[i] = &scene.Mesh{Chunk: c, Level: o.Level}
	}
	l.resident[o.GUID] = &residentEntry{chunks: chunks, meshes: meshes}
	o.PointCount = len(pts)
	o.WasLoaded = true
	o.state = Resident
	l.loads.Inc()

	l.log.Debug("octant loaded",
		logger.Octant(o.GUID),
		zap.Int("level", o.Level),
		zap.Int("points", len(pts)),
		zap.Int("chunks", len(chunks)))
	return true
}
