package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
)

type levelStats struct {
	Nodes   int
	Leaves  int
	Points  int
	Missing int
	Size    float64
}

// collectLevels walks the hierarchy of dir and reads the header of every node
// file. Octants without a readable node file are counted as missing.
func collectLevels(dir string) (*oocfile.Meta, []levelStats, error) {
	meta, err := oocfile.ReadMeta(dir)
	if err != nil {
		return nil, nil, err
	}
	if err := oocfile.CheckFolder(dir); err != nil {
		return nil, nil, err
	}
	f, err := oocfile.OpenHierarchy(dir)
	if err != nil {
		return nil, nil, err
	}
	root, err := oocfile.ReadShape[struct{}](meta, f)
	err = multierr.Append(err, f.Close())
	if err != nil {
		return nil, nil, err
	}
	tree := &octree.Octree[struct{}]{Root: root}

	var levels []levelStats
	var errs error
	tree.Traverse(func(o *octree.Octant[struct{}]) bool {
		for len(levels) <= o.Level {
			levels = append(levels, levelStats{})
		}
		l := &levels[o.Level]
		l.Nodes++
		l.Size = o.Size
		if o.IsLeaf {
			l.Leaves++
		}
		n, err := oocfile.ProbePointCount(dir, o.GUID)
		if err != nil {
			l.Missing++
			errs = multierr.Append(errs, err)
			return true
		}
		l.Points += n
		return true
	})
	return meta, levels, errs
}

func renderInfo(meta *oocfile.Meta, levels []levelStats) string {
	t := table.NewWriter()
	t.SetTitle("octree")
	t.AppendRow(table.Row{"Point type", meta.PointType})
	t.AppendRow(table.Row{"Root center", fmt.Sprintf("%.3f %.3f %.3f", meta.Octree.RootNode.Center[0], meta.Octree.RootNode.Center[1], meta.Octree.RootNode.Center[2])})
	t.AppendRow(table.Row{"Root size", fmt.Sprintf("%.3f", meta.Octree.RootNode.Size)})
	t.AppendRow(table.Row{"Max level", meta.Octree.MaxLevel})
	t.AppendRow(table.Row{"Bucket size", meta.Octree.MaxNoOfPointsInBucket})
	t.AppendRow(table.Row{"Spacing", fmt.Sprintf("%.6f", meta.Octree.SpacingFactor)})

	lt := table.NewWriter()
	lt.AppendHeader(table.Row{"Level", "Size", "Nodes", "Leaves", "Points", "Missing"})
	lt.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	var nodes, total int
	for i, l := range levels {
		lt.AppendRow(table.Row{i, fmt.Sprintf("%.3f", l.Size), l.Nodes, l.Leaves, l.Points, l.Missing})
		nodes += l.Nodes
		total += l.Points
	}
	lt.AppendFooter(table.Row{"Total", "", nodes, "", total, ""})

	return t.Render() + "\n" + lt.Render() + "\n"
}

func runInfo(w io.Writer, dir string) error {
	meta, levels, err := collectLevels(dir)
	if meta == nil {
		return err
	}
	fmt.Fprint(w, renderInfo(meta, levels))
	if err != nil {
		return fmt.Errorf("some node files could not be read: %w", err)
	}
	return nil
}
