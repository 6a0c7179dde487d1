package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/internal/assets"
	"github.com/Faultbox/midgard-pointcloud/internal/scene"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// Streamer is the point type independent surface of a Loader.
type Streamer interface {
	Init(ctx context.Context, rc RenderContext) error
	Update() bool
	Refresh()
	LoadNext() bool
	Shutdown()
	Wait()
	Close()

	Root() *scene.Node
	Config() Config
	Stats() Stats
	VisibleOctants() []OctantInfo

	SetPointThreshold(n int)
	SetMinProjSizeModifier(m float64)
	SetInitCamPos(p mgl64.Vec3)
	SetShowOctants(show bool)
	SetUpdateInterval(d time.Duration)
}

var _ Streamer = (*Loader[points.Pos64])(nil)

// Open reads the skeleton scene of the octree folder dir and returns a loader
// streaming its node files.
func Open[P any](dir string, acc points.Accessor[P], cfg Config, opts ...Option) (*Loader[P], *oocfile.Meta, error) {
	root, meta, err := LoadScene(dir, acc)
	if err != nil {
		return nil, nil, err
	}
	return New(cfg, acc, assets.NewStore(dir, acc), root, opts...), meta, nil
}

// OpenFolder is Open with the point type taken from the folder's meta.json.
func OpenFolder(dir string, cfg Config, opts ...Option) (Streamer, *oocfile.Meta, error) {
	meta, err := oocfile.ReadMeta(dir)
	if err != nil {
		return nil, nil, err
	}

	switch meta.PointType {
	case points.TypePos64:
		return open[points.Pos64](dir, points.NewPos64Accessor(), cfg, opts)
	case points.TypePos64Col32:
		return open[points.Pos64Col32](dir, points.NewPos64Col32Accessor(), cfg, opts)
	case points.TypePos64IShort:
		return open[points.Pos64IShort](dir, points.NewPos64IShortAccessor(), cfg, opts)
	case points.TypePos64Col32IShort:
		return open[points.Pos64Col32IShort](dir, points.NewPos64Col32IShortAccessor(), cfg, opts)
	case points.TypePos64Label8:
		return open[points.Pos64Label8](dir, points.NewPos64Label8Accessor(), cfg, opts)
	case points.TypePos64Nor32Col32IShort:
		return open[points.Pos64Nor32Col32IShort](dir, points.NewPos64Nor32Col32IShortAccessor(), cfg, opts)
	default:
		return nil, nil, fmt.Errorf("%w: %q", points.ErrUnsupportedType, meta.PointType)
	}
}

func open[P any](dir string, acc points.Accessor[P], cfg Config, opts []Option) (Streamer, *oocfile.Meta, error) {
	l, meta, err := Open(dir, acc, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return l, meta, nil
}
