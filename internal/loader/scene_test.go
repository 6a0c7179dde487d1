package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-pointcloud/internal/scene"
	"github.com/Faultbox/midgard-pointcloud/pkg/oocfile"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

func TestLoadScene(t *testing.T) {
	dir := writeScenarioTree(t, 20, 10)

	root, meta, err := LoadScene[points.Pos64Col32](dir, points.NewPos64Col32Accessor())
	if err != nil {
		t.Fatalf("LoadScene failed: %v", err)
	}
	if meta.Octree.RootNode.Size != 100 {
		t.Errorf("expected root size 100, got %v", meta.Octree.RootNode.Size)
	}

	var octants []*Octant[points.Pos64Col32]
	root.Walk(func(n *scene.Node) bool {
		o, ok := OctantOf[points.Pos64Col32](n)
		if !ok {
			t.Fatalf("node %s has no octant", n.Name)
		}
		if n.Name != o.GUID.String() {
			t.Errorf("node name %s does not match guid %s", n.Name, o.GUID)
		}
		if o.Node() != n {
			t.Error("octant does not point back to its node")
		}
		if o.PointCount != -1 || o.WasLoaded {
			t.Errorf("skeleton octant carries runtime state: %+v", o)
		}
		octants = append(octants, o)
		return true
	})

	if len(octants) != 2 {
		t.Fatalf("expected 2 octants, got %d", len(octants))
	}
	child := octants[1]
	if child.Level != 1 || child.Size != 50 || child.PosInParent != 7 {
		t.Errorf("unexpected child shape: level %d size %v pos %d", child.Level, child.Size, child.PosInParent)
	}
	if octants[0].Children[7] != child.Octant {
		t.Error("octree children not linked")
	}
}

func TestLoadScene_Errors(t *testing.T) {
	t.Run("missing meta", func(t *testing.T) {
		dir := writeScenarioTree(t, 2, 2)
		if err := os.Remove(filepath.Join(dir, oocfile.MetaFile)); err != nil {
			t.Fatal(err)
		}
		_, _, err := LoadScene[points.Pos64Col32](dir, points.NewPos64Col32Accessor())
		if !errors.Is(err, oocfile.ErrMissingResource) {
			t.Errorf("expected ErrMissingResource, got %v", err)
		}
	})

	t.Run("wrong point type", func(t *testing.T) {
		dir := writeScenarioTree(t, 2, 2)
		_, _, err := LoadScene[points.Pos64](dir, points.NewPos64Accessor())
		if !errors.Is(err, oocfile.ErrTypeMismatch) {
			t.Errorf("expected ErrTypeMismatch, got %v", err)
		}
	})
}
