package oocfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// ErrTypeMismatch is returned when a folder holds a different point type than requested.
var ErrTypeMismatch = errors.New("point type mismatch")

// OpenHierarchy opens dir/octree.hierarchy for reading.
func OpenHierarchy(dir string) (*os.File, error) {
	path := filepath.Join(dir, HierarchyFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, missing(path, err)
	}
	return f, nil
}

// BuildOctant returns the octant described by rec below parent, deriving its
// centre, size and resolution. parent is nil for the root, which takes its cube
// from m.
func BuildOctant[P any](m *Meta, parent *octree.Octant[P], rec Record) *octree.Octant[P] {
	var o *octree.Octant[P]
	if parent == nil {
		o = octree.NewRoot[P](m.RootCenter(), m.Octree.RootNode.Size)
		o.Resolution = m.Octree.SpacingFactor
	} else {
		o = parent.CreateChild(rec.PosInParent)
		parent.Children[rec.PosInParent] = o
	}
	o.GUID = rec.GUID
	o.Level = rec.Level
	o.IsLeaf = rec.IsLeaf
	return o
}

// ReadShape reconstructs the tree shape from the hierarchy in r without any payload.
func ReadShape[P any](m *Meta, r io.Reader) (*octree.Octant[P], error) {
	var root *octree.Octant[P]
	_, err := ReadHierarchy(r, (*octree.Octant[P])(nil), func(parent *octree.Octant[P], rec Record) *octree.Octant[P] {
		o := BuildOctant(m, parent, rec)
		if parent == nil {
			root = o
		}
		return o
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// ReadOctree reads meta and hierarchy from dir and returns the tree shape.
// Payloads are left empty; see LoadPayloads and ReadNode.
func ReadOctree[P any](dir string, acc points.Accessor[P]) (tree *octree.Octree[P], err error) {
	if err := CheckFolder(dir); err != nil {
		return nil, err
	}
	m, err := ReadMeta(dir)
	if err != nil {
		return nil, err
	}
	if m.PointType != acc.Type() {
		return nil, fmt.Errorf("%w: folder holds %s, accessor reads %s", ErrTypeMismatch, m.PointType, acc.Type())
	}

	f, err := OpenHierarchy(dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	root, err := ReadShape[P](m, f)
	if err != nil {
		return nil, err
	}
	return &octree.Octree[P]{
		Root:              root,
		MaxLevel:          m.Octree.MaxLevel,
		MaxPointsInBucket: m.Octree.MaxNoOfPointsInBucket,
		Accessor:          acc,
	}, nil
}

// LoadPayloads reads the node file of every octant of tree into its payload.
// Every octant is expected to have a node file.
func LoadPayloads[P any](ctx context.Context, dir string, tree *octree.Octree[P]) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	tree.Traverse(func(o *octree.Octant[P]) bool {
		if gctx.Err() != nil {
			return false
		}
		g.Go(func() error {
			pts, err := ReadNode(dir, o.GUID, tree.Accessor)
			if err != nil {
				return err
			}
			o.Payload = pts
			return nil
		})
		return true
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
