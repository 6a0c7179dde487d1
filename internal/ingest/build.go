package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-pointcloud/internal/logger"
	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// ReadFile reads a point cloud, choosing the reader by file extension.
func ReadFile(path string) ([]Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".las":
		return ReadLAS(path)
	case ".xyz", ".txt", ".csv", ".pts":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadXYZ(f)
	default:
		return nil, fmt.Errorf("do not know how to read file %q", path)
	}
}

// Options controls BuildFolder.
type Options struct {
	PointType points.Type
	Tree      octree.Options
}

// Summary describes a written octree folder.
type Summary struct {
	Meta   *oocfile.Meta
	Nodes  int
	Points int
}

// BuildFolder builds an octree of opts.PointType from recs and writes it to dir.
func BuildFolder(ctx context.Context, recs []Record, dir string, opts Options) (*Summary, error) {
	switch opts.PointType {
	case points.TypePos64:
		return build(ctx, recs, dir, opts, points.Accessor[points.Pos64](points.NewPos64Accessor()), toPos64)
	case points.TypePos64Col32:
		return build(ctx, recs, dir, opts, points.Accessor[points.Pos64Col32](points.NewPos64Col32Accessor()), toPos64Col32)
	case points.TypePos64IShort:
		return build(ctx, recs, dir, opts, points.Accessor[points.Pos64IShort](points.NewPos64IShortAccessor()), toPos64IShort)
	case points.TypePos64Col32IShort:
		return build(ctx, recs, dir, opts, points.Accessor[points.Pos64Col32IShort](points.NewPos64Col32IShortAccessor()), toPos64Col32IShort)
	case points.TypePos64Label8:
		return build(ctx, recs, dir, opts, points.Accessor[points.Pos64Label8](points.NewPos64Label8Accessor()), toPos64Label8)
	case points.TypePos64Nor32Col32IShort:
		return build(ctx, recs, dir, opts, points.Accessor[points.Pos64Nor32Col32IShort](points.NewPos64Nor32Col32IShortAccessor()), toPos64Nor32Col32IShort)
	default:
		return nil, fmt.Errorf("%w: %q", points.ErrUnsupportedType, opts.PointType)
	}
}

func build[P any](ctx context.Context, recs []Record, dir string, opts Options, acc points.Accessor[P], conv func(*Record) P) (*Summary, error) {
	log := logger.Named("ingest")

	tree, err := octree.Build(acc, Convert(recs, conv), opts.Tree)
	if err != nil {
		return nil, fmt.Errorf("building octree: %w", err)
	}
	log.Info("octree built",
		zap.String("point_type", string(acc.Type())),
		zap.Int("points", tree.PointCount()),
		zap.Int("nodes", tree.NodeCount()),
		zap.Int("max_level", tree.MaxLevel),
	)

	if err := oocfile.WriteTree(ctx, dir, tree); err != nil {
		return nil, fmt.Errorf("writing octree: %w", err)
	}
	log.Info("octree written", zap.String("dir", dir))

	return &Summary{
		Meta:   oocfile.MetaFor(tree),
		Nodes:  tree.NodeCount(),
		Points: tree.PointCount(),
	}, nil
}
