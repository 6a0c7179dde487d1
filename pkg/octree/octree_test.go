package octree

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// randomCloud returns n points scattered in a 100×40×60 box with a dense cluster
// around the origin so the spacing test has something to push down.
func randomCloud(n int, seed int64) []points.Pos64 {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]points.Pos64, n)
	for i := range pts {
		if i%3 == 0 {
			pts[i].Position = mgl64.Vec3{rng.Float64(), rng.Float64(), rng.Float64()}
			continue
		}
		pts[i].Position = mgl64.Vec3{
			rng.Float64()*100 - 50,
			rng.Float64()*40 - 20,
			rng.Float64()*60 - 30,
		}
	}
	return pts
}

func TestBuild_PointConservation(t *testing.T) {
	pts := randomCloud(5000, 1)
	tree, err := Build[points.Pos64](points.NewPos64Accessor(), pts, Options{MaxPointsInBucket: 100, MaxLevel: 24})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := tree.PointCount(); got != len(pts) {
		t.Errorf("expected %d points in tree, got %d", len(pts), got)
	}

	if tree.Root.Level != 0 || tree.Root.PosInParent != -1 {
		t.Errorf("unexpected root level %d posInParent %d", tree.Root.Level, tree.Root.PosInParent)
	}
	if tree.Root.IsLeaf {
		t.Error("root should have been subdivided")
	}
}

func TestBuild_Geometry(t *testing.T) {
	acc := points.NewPos64Accessor()
	tree, err := Build[points.Pos64](acc, randomCloud(3000, 2), Options{MaxPointsInBucket: 64})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	deepest := 0
	tree.Traverse(func(o *Octant[points.Pos64]) bool {
		if o.Level > deepest {
			deepest = o.Level
		}
		if o.IsLeaf != !o.HasChildren() {
			t.Errorf("octant %s: isLeaf=%v but children mask %08b", o.GUID, o.IsLeaf, o.ChildMask())
		}

		lo, hi := o.Bounds()
		for i := range o.Payload {
			p := acc.Position(&o.Payload[i])
			for a := 0; a < 3; a++ {
				if p[a] < lo[a]-1e-9 || p[a] > hi[a]+1e-9 {
					t.Fatalf("point %v outside octant bounds %v-%v at level %d", p, lo, hi, o.Level)
				}
			}
		}

		for i, c := range o.Children {
			if c == nil {
				continue
			}
			if c.Size != o.Size/2 {
				t.Errorf("child size %f, expected %f", c.Size, o.Size/2)
			}
			if c.Level != o.Level+1 {
				t.Errorf("child level %d, expected %d", c.Level, o.Level+1)
			}
			if c.Resolution != o.Resolution/2 {
				t.Errorf("child resolution %f, expected %f", c.Resolution, o.Resolution/2)
			}
			if c.PosInParent != i {
				t.Errorf("child at %d has posInParent %d", i, c.PosInParent)
			}
			if c.Center != ChildCenter(o.Center, o.Size, i) {
				t.Errorf("child %d centre %v, expected %v", i, c.Center, ChildCenter(o.Center, o.Size, i))
			}
		}
		return true
	})

	if deepest != tree.MaxLevel {
		t.Errorf("MaxLevel %d but deepest octant is at %d", tree.MaxLevel, deepest)
	}
}

func TestBuild_InnerSpacing(t *testing.T) {
	acc := points.NewPos64Accessor()
	tree, err := Build[points.Pos64](acc, randomCloud(2000, 3), Options{MaxPointsInBucket: 50})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	tree.Traverse(func(o *Octant[points.Pos64]) bool {
		if o.IsLeaf {
			return true
		}
		for i := range o.Payload {
			for j := i + 1; j < len(o.Payload); j++ {
				d := acc.Position(&o.Payload[i]).Sub(acc.Position(&o.Payload[j])).Len()
				if d < o.Resolution {
					t.Fatalf("level %d keeps two points %f apart, resolution %f", o.Level, d, o.Resolution)
				}
			}
		}
		return true
	})
}

func TestBuild_CoincidentPointsTerminate(t *testing.T) {
	pts := make([]points.Pos64, 100)
	for i := range pts {
		pts[i].Position = mgl64.Vec3{3, 3, 3}
	}

	tree, err := Build[points.Pos64](points.NewPos64Accessor(), pts, Options{MaxPointsInBucket: 10, MaxLevel: 5})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tree.MaxLevel != 5 {
		t.Errorf("expected max level 5, got %d", tree.MaxLevel)
	}
	if got := tree.PointCount(); got != 100 {
		t.Errorf("expected 100 points, got %d", got)
	}
	if tree.Root.Size <= 0 {
		t.Errorf("degenerate cloud should still get a positive root size, got %f", tree.Root.Size)
	}
}

func TestBuild_SmallCloudIsLeaf(t *testing.T) {
	tree, err := Build[points.Pos64](points.NewPos64Accessor(), randomCloud(10, 4), DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tree.Root.IsLeaf || len(tree.Root.Payload) != 10 {
		t.Errorf("expected a single leaf with 10 points, got leaf=%v points=%d", tree.Root.IsLeaf, len(tree.Root.Payload))
	}
	if tree.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", tree.NodeCount())
	}
}

func TestBuild_InvalidOptions(t *testing.T) {
	acc := points.NewPos64Accessor()
	if _, err := Build[points.Pos64](acc, randomCloud(10, 5), Options{}); !errors.Is(err, ErrInvalidBucketSize) {
		t.Errorf("expected ErrInvalidBucketSize, got %v", err)
	}
	if _, err := Build[points.Pos64](acc, nil, DefaultOptions()); !errors.Is(err, ErrNoPoints) {
		t.Errorf("expected ErrNoPoints, got %v", err)
	}
}

func TestBuild_RootCube(t *testing.T) {
	pts := []points.Pos64{
		{Position: mgl64.Vec3{-10, 0, 0}},
		{Position: mgl64.Vec3{10, 4, 2}},
	}
	tree, err := Build[points.Pos64](points.NewPos64Accessor(), pts, DefaultOptions())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if want := (mgl64.Vec3{0, 2, 1}); tree.Root.Center != want {
		t.Errorf("expected root centre %v, got %v", want, tree.Root.Center)
	}
	if want := 20 * (1 + rootPadding); math.Abs(tree.Root.Size-want) > 1e-12 {
		t.Errorf("expected root size %f, got %f", want, tree.Root.Size)
	}
	if tree.Root.Resolution != tree.Root.Size/GridSize {
		t.Errorf("expected root resolution size/%d, got %f", GridSize, tree.Root.Resolution)
	}
}

func TestChildCenterAndIndex(t *testing.T) {
	center := mgl64.Vec3{0, 0, 0}
	cases := []struct {
		pos  int
		want mgl64.Vec3
	}{
		{0, mgl64.Vec3{-25, -25, -25}},
		{1, mgl64.Vec3{25, -25, -25}},
		{2, mgl64.Vec3{-25, -25, 25}},
		{4, mgl64.Vec3{-25, 25, -25}},
		{7, mgl64.Vec3{25, 25, 25}},
	}

	for _, tc := range cases {
		got := ChildCenter(center, 100, tc.pos)
		if got != tc.want {
			t.Errorf("ChildCenter(%d) = %v, expected %v", tc.pos, got, tc.want)
		}
		if idx := ChildIndex(center, got); idx != tc.pos {
			t.Errorf("ChildIndex(%v) = %d, expected %d", got, idx, tc.pos)
		}
	}
}

func TestGrid_Neighbors(t *testing.T) {
	g := NewGrid(mgl64.Vec3{}, 128)
	g.Add(mgl64.Vec3{0.5, 0.5, 0.5})

	if !g.HasNeighborWithin(mgl64.Vec3{1.2, 0.5, 0.5}, 1) {
		t.Error("expected neighbour in adjacent cell")
	}
	if g.HasNeighborWithin(mgl64.Vec3{1.5, 0.5, 0.5}, 1) {
		t.Error("distance equal to resolution must not count as a neighbour")
	}
	if g.HasNeighborWithin(mgl64.Vec3{10, 10, 10}, 1) {
		t.Error("unexpected neighbour far away")
	}

	g.Add(mgl64.Vec3{500, 500, 500})
	if k := g.Cell(mgl64.Vec3{500, 500, 500}); k != (CellKey{GridSize - 1, GridSize - 1, GridSize - 1}) {
		t.Errorf("out of range point should clamp to the last cell, got %v", k)
	}
	if g.Len() != 2 || g.Occupied() != 2 {
		t.Errorf("expected 2 points in 2 cells, got %d in %d", g.Len(), g.Occupied())
	}
}

func TestProjectedScreenSize(t *testing.T) {
	fov := math.Pi / 2 // tan(fov/2) = 1
	got := ProjectedScreenSize(mgl64.Vec3{0, 0, -10}, 5, mgl64.Vec3{}, 800, fov)
	if math.Abs(got-200) > 1e-9 {
		t.Errorf("expected 200px, got %f", got)
	}

	near := ProjectedScreenSize(mgl64.Vec3{0, 0, -5}, 5, mgl64.Vec3{}, 800, fov)
	if near <= got {
		t.Errorf("closer cube should look larger: %f <= %f", near, got)
	}

	if !math.IsInf(ProjectedScreenSize(mgl64.Vec3{}, 1, mgl64.Vec3{}, 800, fov), 1) {
		t.Error("camera at centre should give +Inf")
	}
}
