package oocfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Faultbox/midgard-pointcloud/pkg/octree"
)

// RecordSize is the encoded size of one hierarchy record:
// guid (16) + level (int32) + isLeaf (1) + childMask (1).
const RecordSize = 16 + 4 + 1 + 1

// ErrEmptyHierarchy is returned when the hierarchy stream holds no root record.
var ErrEmptyHierarchy = errors.New("hierarchy has no root record")

// MaxHierarchyLevel is the deepest level a hierarchy record may carry.
const MaxHierarchyLevel = 64

// Record is one decoded hierarchy entry.
type Record struct {
	GUID      uuid.UUID
	Level     int
	IsLeaf    bool
	ChildMask byte

	// PosInParent is not stored; it is the child slot the record was read for,
	// -1 for the root.
	PosInParent int
}

// HasChild reports whether the mask announces child i.
func (r Record) HasChild(i int) bool {
	return r.ChildMask&(1<<i) != 0
}

// AppendRecord appends the encoded record to dst.
func AppendRecord(dst []byte, r Record) []byte {
	dst = append(dst, r.GUID[:]...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(r.Level)))
	if r.IsLeaf {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	return append(dst, r.ChildMask)
}

func decodeRecord(buf []byte) Record {
	var r Record
	copy(r.GUID[:], buf[:16])
	r.Level = int(int32(binary.LittleEndian.Uint32(buf[16:20])))
	r.IsLeaf = buf[20] != 0
	r.ChildMask = buf[21]
	return r
}

// WriteHierarchy writes the records of the tree below root to w in pre-order,
// each child record directly after its parent and before the parent's next sibling.
func WriteHierarchy[P any](w io.Writer, root *octree.Octant[P]) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, RecordSize)

	var walk func(o *octree.Octant[P]) error
	walk = func(o *octree.Octant[P]) error {
		buf = AppendRecord(buf[:0], Record{
			GUID:      o.GUID,
			Level:     o.Level,
			IsLeaf:    o.IsLeaf,
			ChildMask: o.ChildMask(),
		})
		if _, err := bw.Write(buf); err != nil {
			return err
		}
		for _, c := range o.Children {
			if c == nil {
				continue
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(root); err != nil {
		return fmt.Errorf("write hierarchy: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write hierarchy: %w", err)
	}
	return nil
}

// ReadHierarchy decodes the stream in r. build is called once per record in
// stream order with the handle returned for the record's parent (parent for the
// root) and returns the handle for the record itself.
//
// Records are read whole. A stream that ends inside a record ends decoding
// without error: every node already passed to build stays valid and the
// remaining nodes are treated as absent. A record whose level is not its
// parent's level plus one (0 for the root), or is deeper than
// MaxHierarchyLevel, is corrupt and ends decoding the same way; it is not
// passed to build. It returns the number of records read.
func ReadHierarchy[H any](r io.Reader, parent H, build func(parent H, rec Record) H) (int, error) {
	hr := &hierarchyReader[H]{
		r:     bufio.NewReader(r),
		build: build,
	}

	if _, err := hr.node(parent, -1, 0); err != nil {
		return hr.count, fmt.Errorf("read hierarchy: %w", err)
	}
	if hr.count == 0 {
		return 0, ErrEmptyHierarchy
	}
	return hr.count, nil
}

type hierarchyReader[H any] struct {
	r     *bufio.Reader
	build func(parent H, rec Record) H
	buf   [RecordSize]byte
	count int
}

// node reads one record expected at level and its subtree. It returns false
// once the stream is exhausted or corrupt.
func (hr *hierarchyReader[H]) node(parent H, pos, level int) (bool, error) {
	if _, err := io.ReadFull(hr.r, hr.buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}

	rec := decodeRecord(hr.buf[:])
	if rec.Level != level || level > MaxHierarchyLevel {
		return false, nil
	}
	rec.PosInParent = pos
	hr.count++
	h := hr.build(parent, rec)

	for i := 0; i < 8; i++ {
		if !rec.HasChild(i) {
			continue
		}
		more, err := hr.node(h, i, level+1)
		if err != nil || !more {
			return more, err
		}
	}
	return true, nil
}
