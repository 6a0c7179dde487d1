package oocfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// createTestTree builds a two level tree by hand: a root of size 100 at the
// origin with one child of size 50, each holding n points.
func createTestTree(n int) *octree.Octree[points.Pos64IShort] {
	root := octree.NewRoot[points.Pos64IShort](mgl64.Vec3{}, 100)
	child := root.CreateChild(5)
	root.Children[5] = child
	child.IsLeaf = true

	for i := 0; i < n; i++ {
		root.Payload = append(root.Payload, points.Pos64IShort{
			Position:  mgl64.Vec3{float64(-40 + i), -10, 3},
			Intensity: uint16(i * 100),
		})
		child.Payload = append(child.Payload, points.Pos64IShort{
			Position:  child.Center.Add(mgl64.Vec3{float64(i), 1, -1}),
			Intensity: uint16(i),
		})
	}

	return &octree.Octree[points.Pos64IShort]{
		Root:              root,
		MaxLevel:          1,
		MaxPointsInBucket: n,
		Accessor:          points.NewPos64IShortAccessor(),
	}
}

func TestWriteRead_TwoLevelScenario(t *testing.T) {
	dir := t.TempDir()
	tree := createTestTree(10)

	if err := WriteTree(context.Background(), dir, tree); err != nil {
		t.Fatalf("WriteTree failed: %v", err)
	}

	got, err := ReadOctree(dir, tree.Accessor)
	if err != nil {
		t.Fatalf("ReadOctree failed: %v", err)
	}

	if got.Root.Level != 0 {
		t.Errorf("expected root level 0, got %d", got.Root.Level)
	}

	var child *octree.Octant[points.Pos64IShort]
	for _, c := range got.Root.Children {
		if c != nil {
			child = c
		}
	}
	if child == nil {
		t.Fatal("child was not read back")
	}
	if child.Level != 1 {
		t.Errorf("expected child level 1, got %d", child.Level)
	}
	if child.PosInParent < 0 || child.PosInParent > 7 {
		t.Errorf("posInParent %d out of range", child.PosInParent)
	}
	if child.Size != 50 {
		t.Errorf("expected child size 50, got %f", child.Size)
	}

	for _, o := range []*octree.Octant[points.Pos64IShort]{got.Root, child} {
		n, err := ProbePointCount(dir, o.GUID)
		if err != nil {
			t.Fatalf("ProbePointCount(%s) failed: %v", o.GUID, err)
		}
		if n != 10 {
			t.Errorf("level %d: expected 10 points, got %d", o.Level, n)
		}
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pts := make([]points.Pos64Col32, 4000)
	for i := range pts {
		pts[i] = points.Pos64Col32{
			Position: mgl64.Vec3{rng.NormFloat64() * 10, rng.NormFloat64() * 10, rng.NormFloat64() * 2},
			Color:    mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()},
		}
	}

	var acc points.Accessor[points.Pos64Col32] = points.NewPos64Col32Accessor()
	want, err := octree.Build[points.Pos64Col32](acc, pts, octree.Options{MaxPointsInBucket: 200})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	dir := t.TempDir()
	if err := WriteTree(context.Background(), dir, want); err != nil {
		t.Fatalf("WriteTree failed: %v", err)
	}

	got, err := ReadOctree(dir, acc)
	if err != nil {
		t.Fatalf("ReadOctree failed: %v", err)
	}
	if got.Root.Payload != nil {
		t.Error("ReadOctree must not load payloads")
	}
	if err := LoadPayloads(context.Background(), dir, got); err != nil {
		t.Fatalf("LoadPayloads failed: %v", err)
	}

	if diff := cmp.Diff(want.Root, got.Root); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	if got.MaxLevel != want.MaxLevel || got.MaxPointsInBucket != want.MaxPointsInBucket {
		t.Errorf("expected maxLevel=%d bucket=%d, got %d/%d",
			want.MaxLevel, want.MaxPointsInBucket, got.MaxLevel, got.MaxPointsInBucket)
	}
	if got.PointCount() != len(pts) {
		t.Errorf("expected %d points after reading, got %d", len(pts), got.PointCount())
	}
}

func TestMeta(t *testing.T) {
	dir := t.TempDir()
	tree := createTestTree(3)
	if err := WriteMeta(dir, MetaFor(tree)); err != nil {
		t.Fatalf("WriteMeta failed: %v", err)
	}

	m, err := ReadMeta(dir)
	if err != nil {
		t.Fatalf("ReadMeta failed: %v", err)
	}
	if m.PointType != points.TypePos64IShort {
		t.Errorf("expected point type %s, got %s", points.TypePos64IShort, m.PointType)
	}
	if !m.PointAccessorBools[points.FlagIntensityUInt_16] || m.PointAccessorBools[points.FlagColorFloat3_32] {
		t.Errorf("unexpected flags %v", m.PointAccessorBools)
	}
	if m.Octree.SpacingFactor != 100.0/octree.GridSize {
		t.Errorf("expected spacing %f, got %f", 100.0/octree.GridSize, m.Octree.SpacingFactor)
	}

	if err := os.WriteFile(filepath.Join(dir, MetaFile), []byte(`{"pointType":"Pos64"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMeta(dir); !errors.Is(err, ErrInvalidMeta) {
		t.Errorf("expected ErrInvalidMeta for zero root size, got %v", err)
	}
}

func TestHierarchy_Truncated(t *testing.T) {
	tree := createTestTree(1)
	grand := tree.Root.Children[5].CreateChild(0)
	tree.Root.Children[5].Children[0] = grand
	tree.Root.Children[5].IsLeaf = false

	var buf bytes.Buffer
	if err := WriteHierarchy(&buf, tree.Root); err != nil {
		t.Fatalf("WriteHierarchy failed: %v", err)
	}
	if buf.Len() != 3*RecordSize {
		t.Fatalf("expected %d bytes, got %d", 3*RecordSize, buf.Len())
	}

	m := MetaFor(tree)
	cases := []struct {
		name  string
		cut   int
		nodes int
	}{
		{"complete", 3 * RecordSize, 3},
		{"mid grandchild", 2*RecordSize + 5, 2},
		{"after root", RecordSize, 1},
		{"mid child", RecordSize + 1, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var levels []int
			n, err := ReadHierarchy(bytes.NewReader(buf.Bytes()[:tc.cut]), 0, func(depth int, rec Record) int {
				levels = append(levels, rec.Level)
				return depth + 1
			})
			if err != nil {
				t.Fatalf("ReadHierarchy failed: %v", err)
			}
			if n != tc.nodes || len(levels) != tc.nodes {
				t.Errorf("expected %d records, got %d", tc.nodes, n)
			}
			for i, l := range levels {
				if l != i {
					t.Errorf("record %d has level %d", i, l)
				}
			}

			root, err := ReadShape[points.Pos64IShort](m, bytes.NewReader(buf.Bytes()[:tc.cut]))
			if err != nil {
				t.Fatalf("ReadShape failed: %v", err)
			}
			if root.GUID != tree.Root.GUID {
				t.Errorf("root guid mismatch")
			}
		})
	}

	if _, err := ReadHierarchy(bytes.NewReader(nil), 0, func(int, Record) int { return 0 }); !errors.Is(err, ErrEmptyHierarchy) {
		t.Errorf("expected ErrEmptyHierarchy, got %v", err)
	}
}

func TestHierarchy_LevelMismatch(t *testing.T) {
	rec := func(level int, mask byte) Record {
		return Record{GUID: uuid.New(), Level: level, IsLeaf: mask == 0, ChildMask: mask}
	}
	encode := func(recs ...Record) []byte {
		var raw []byte
		for _, r := range recs {
			raw = AppendRecord(raw, r)
		}
		return raw
	}

	// A chain of single children, each claiming to be one level deeper.
	chain := func(n int) []byte {
		recs := make([]Record, n)
		for i := range recs {
			recs[i] = rec(i, 0x01)
		}
		return encode(recs...)
	}

	cases := []struct {
		name  string
		raw   []byte
		nodes int
	}{
		{"consistent", encode(rec(0, 0x03), rec(1, 0), rec(1, 0)), 3},
		{"child skips a level", encode(rec(0, 0x03), rec(1, 0), rec(3, 0)), 2},
		{"child repeats parent level", encode(rec(0, 0x01), rec(0, 0)), 1},
		{"deep chain stops at the level limit", chain(MaxHierarchyLevel + 10), MaxHierarchyLevel + 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen := 0
			n, err := ReadHierarchy(bytes.NewReader(tc.raw), 0, func(depth int, rec Record) int {
				seen++
				if rec.Level != depth {
					t.Errorf("record at depth %d has level %d", depth, rec.Level)
				}
				return depth + 1
			})
			if err != nil {
				t.Fatalf("ReadHierarchy failed: %v", err)
			}
			if n != tc.nodes || seen != tc.nodes {
				t.Errorf("expected %d records, read %d, built %d", tc.nodes, n, seen)
			}
		})
	}

	if _, err := ReadHierarchy(bytes.NewReader(encode(rec(2, 0))), 0, func(int, Record) int { return 0 }); !errors.Is(err, ErrEmptyHierarchy) {
		t.Errorf("expected ErrEmptyHierarchy for a root not at level 0, got %v", err)
	}
}

func TestRecordLayout(t *testing.T) {
	rec := Record{
		GUID:      uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff"),
		Level:     3,
		IsLeaf:    true,
		ChildMask: 0b1000_0001,
	}
	raw := AppendRecord(nil, rec)

	want := []byte{
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
		3, 0, 0, 0,
		1,
		0x81,
	}
	if !bytes.Equal(raw, want) {
		t.Errorf("unexpected encoding\n got %x\nwant %x", raw, want)
	}
	if !decodeRecord(raw).HasChild(7) || decodeRecord(raw).HasChild(1) {
		t.Error("child mask decoded incorrectly")
	}
	if NodeFileName(rec.GUID) != "00112233445566778899aabbccddeeff.node" {
		t.Errorf("unexpected node file name %s", NodeFileName(rec.GUID))
	}
}

func TestMissingResources(t *testing.T) {
	dir := t.TempDir()
	var acc points.Accessor[points.Pos64IShort] = points.NewPos64IShortAccessor()

	if _, err := ReadOctree(dir, acc); !errors.Is(err, ErrMissingResource) {
		t.Errorf("empty folder: expected ErrMissingResource, got %v", err)
	}

	tree := createTestTree(2)
	if err := WriteTree(context.Background(), dir, tree); err != nil {
		t.Fatalf("WriteTree failed: %v", err)
	}

	if _, err := ReadNode(dir, uuid.New(), acc); !errors.Is(err, ErrMissingResource) {
		t.Errorf("unknown node: expected ErrMissingResource, got %v", err)
	}
	if _, err := ProbePointCount(dir, uuid.New()); !errors.Is(err, ErrMissingResource) {
		t.Errorf("unknown probe: expected ErrMissingResource, got %v", err)
	}

	if err := os.Remove(NodePath(dir, tree.Root.Children[5].GUID)); err != nil {
		t.Fatal(err)
	}
	got, err := ReadOctree(dir, acc)
	if err != nil {
		t.Fatalf("shape must not depend on node files: %v", err)
	}
	if err := LoadPayloads(context.Background(), dir, got); !errors.Is(err, ErrMissingResource) {
		t.Errorf("expected ErrMissingResource from LoadPayloads, got %v", err)
	}

	if err := os.Remove(filepath.Join(dir, HierarchyFile)); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadOctree(dir, acc); !errors.Is(err, ErrMissingResource) {
		t.Errorf("missing hierarchy: expected ErrMissingResource, got %v", err)
	}
}

func TestReadNode_Errors(t *testing.T) {
	var acc points.Accessor[points.Pos64] = points.NewPos64Accessor()
	var buf bytes.Buffer
	if err := WriteNodeTo(&buf, acc, []points.Pos64{{Position: mgl64.Vec3{1, 2, 3}}, {}}); err != nil {
		t.Fatalf("WriteNodeTo failed: %v", err)
	}
	if buf.Len() != NodeHeaderSize+2*acc.Stride() {
		t.Errorf("unexpected node size %d", buf.Len())
	}

	if _, err := ReadNodeFrom[points.Pos64IShort](bytes.NewReader(buf.Bytes()), points.NewPos64IShortAccessor()); !errors.Is(err, ErrStrideMismatch) {
		t.Errorf("expected ErrStrideMismatch, got %v", err)
	}
	if _, err := ReadNodeFrom(bytes.NewReader(buf.Bytes()[:buf.Len()-1]), acc); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("expected ErrInvalidNode for short payload, got %v", err)
	}

	// A huge count with no payload must fail on the short read, not allocate.
	var huge [NodeHeaderSize]byte
	binary.LittleEndian.PutUint32(huge[0:], 0x7fffffff)
	binary.LittleEndian.PutUint32(huge[4:], uint32(acc.Stride()))
	if _, err := ReadNodeFrom(bytes.NewReader(huge[:]), acc); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("expected ErrInvalidNode for oversized count, got %v", err)
	}

	pts, err := ReadNodeFrom(bytes.NewReader(buf.Bytes()), acc)
	if err != nil {
		t.Fatalf("ReadNodeFrom failed: %v", err)
	}
	if len(pts) != 2 || pts[0].Position != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("unexpected points %v", pts)
	}
}

func TestReadNode_OversizedHeader(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, OctantsDir), 0o755); err != nil {
		t.Fatal(err)
	}
	var acc points.Accessor[points.Pos64] = points.NewPos64Accessor()
	guid := uuid.New()
	if err := WriteNode(dir, guid, acc, []points.Pos64{{}, {}}); err != nil {
		t.Fatalf("WriteNode failed: %v", err)
	}

	f, err := os.OpenFile(NodePath(dir, guid), os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], 0x7fffffff)
	if _, err := f.WriteAt(count[:], 0); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadNode(dir, guid, acc); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("ReadNode: expected ErrInvalidNode, got %v", err)
	}
	if _, err := ProbePointCount(dir, guid); !errors.Is(err, ErrInvalidNode) {
		t.Errorf("ProbePointCount: expected ErrInvalidNode, got %v", err)
	}
}

func TestReadOctree_TypeMismatch(t *testing.T) {
	dir := t.TempDir()
	if err := WriteTree(context.Background(), dir, createTestTree(1)); err != nil {
		t.Fatalf("WriteTree failed: %v", err)
	}
	if _, err := ReadOctree[points.Pos64](dir, points.NewPos64Accessor()); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}
