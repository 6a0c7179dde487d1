package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Faultbox/midgard-pointcloud/internal/ingest"
)

func runBuild(ctx context.Context, w io.Writer, input, outDir string, opts ingest.Options) error {
	recs, err := ingest.ReadFile(input)
	if err != nil {
		return err
	}
	sum, err := ingest.BuildFolder(ctx, recs, outDir, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d points in %d octants, %d levels, type %s\n",
		outDir, sum.Points, sum.Nodes, sum.Meta.Octree.MaxLevel+1, sum.Meta.PointType)
	return nil
}
