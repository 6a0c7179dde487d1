package loader

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-pointcloud/internal/scene"
	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// LoadScene reads meta.json and octree.hierarchy from dir and returns a skeleton
// scene: one node per octant carrying an Octant component and no payload.
// A missing meta file, hierarchy file or Octants directory is fatal and wraps
// oocfile.ErrMissingResource.
func LoadScene[P any](dir string, acc points.Accessor[P]) (root *scene.Node, meta *oocfile.Meta, err error) {
	if err := oocfile.CheckFolder(dir); err != nil {
		return nil, nil, err
	}
	meta, err = oocfile.ReadMeta(dir)
	if err != nil {
		return nil, nil, err
	}
	if meta.PointType != acc.Type() {
		return nil, nil, fmt.Errorf("%w: folder holds %s, accessor reads %s",
			oocfile.ErrTypeMismatch, meta.PointType, acc.Type())
	}

	f, err := oocfile.OpenHierarchy(dir)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	_, err = oocfile.ReadHierarchy(f, (*scene.Node)(nil), func(parent *scene.Node, rec oocfile.Record) *scene.Node {
		var parentOct *octree.Octant[P]
		if parent != nil {
			if c, ok := OctantOf[P](parent); ok {
				parentOct = c.Octant
			}
		}

		comp := NewOctant(oocfile.BuildOctant(meta, parentOct, rec))
		n := scene.NewNode(rec.GUID.String(), comp)
		comp.node = n
		if parent == nil {
			root = n
		} else {
			parent.AddChild(n)
		}
		return n
	})
	if err != nil {
		return nil, nil, err
	}
	return root, meta, nil
}
