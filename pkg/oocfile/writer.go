package oocfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
)

// MetaFor returns the meta.json content describing tree.
func MetaFor[P any](tree *octree.Octree[P]) *Meta {
	flags := make(map[string]bool)
	for _, f := range tree.Accessor.Flags() {
		flags[f] = true
	}
	return &Meta{
		Octree: OctreeMeta{
			MaxLevel:              tree.MaxLevel,
			MaxNoOfPointsInBucket: tree.MaxPointsInBucket,
			SpacingFactor:         tree.Root.Resolution,
			RootNode: RootNode{
				Center: tree.Root.Center,
				Size:   tree.Root.Size,
			},
		},
		PointAccessorBools: flags,
		PointType:          tree.Accessor.Type(),
	}
}

// WriteTree writes meta.json, octree.hierarchy and one node file per octant with
// points into dir, creating it if needed. Node files are written concurrently.
func WriteTree[P any](ctx context.Context, dir string, tree *octree.Octree[P]) error {
	if err := os.MkdirAll(filepath.Join(dir, OctantsDir), 0o755); err != nil {
		return fmt.Errorf("create octree folder: %w", err)
	}

	if err := WriteMeta(dir, MetaFor(tree)); err != nil {
		return err
	}
	if err := writeHierarchyFile(dir, tree.Root); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	tree.Traverse(func(o *octree.Octant[P]) bool {
		if gctx.Err() != nil {
			return false
		}
		if len(o.Payload) == 0 {
			return true
		}
		g.Go(func() error {
			return WriteNode(dir, o.GUID, tree.Accessor, o.Payload)
		})
		return true
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func writeHierarchyFile[P any](dir string, root *octree.Octant[P]) (err error) {
	f, err := os.Create(filepath.Join(dir, HierarchyFile))
	if err != nil {
		return fmt.Errorf("create hierarchy: %w", err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	return WriteHierarchy(f, root)
}
