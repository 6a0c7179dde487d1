package oocfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// NodeHeaderSize is the size of the pointCount + pointStride header of a node file.
const NodeHeaderSize = 8

// NodeHeader is the fixed header of a node file.
type NodeHeader struct {
	PointCount  int
	PointStride int
}

// WriteNodeTo encodes pts to w.
func WriteNodeTo[P any](w io.Writer, acc points.Accessor[P], pts []P) error {
	bw := bufio.NewWriter(w)

	var hdr [NodeHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(int32(len(pts))))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(int32(acc.Stride())))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}

	raw := make([]byte, 0, acc.Stride())
	for i := range pts {
		raw = acc.AppendRaw(raw[:0], &pts[i])
		if _, err := bw.Write(raw); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteNode writes pts to the node file of guid in dir. The Octants directory
// must exist.
func WriteNode[P any](dir string, guid uuid.UUID, acc points.Accessor[P], pts []P) (err error) {
	path := NodePath(dir, guid)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create node %s: %w", guid, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	if err := WriteNodeTo(f, acc, pts); err != nil {
		return fmt.Errorf("write node %s: %w", guid, err)
	}
	return nil
}

func readHeader(r io.Reader) (NodeHeader, error) {
	var buf [NodeHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return NodeHeader{}, fmt.Errorf("%w: header: %w", ErrInvalidNode, err)
	}
	h := NodeHeader{
		PointCount:  int(int32(binary.LittleEndian.Uint32(buf[0:]))),
		PointStride: int(int32(binary.LittleEndian.Uint32(buf[4:]))),
	}
	if h.PointCount < 0 || h.PointStride <= 0 {
		return NodeHeader{}, fmt.Errorf("%w: count %d stride %d", ErrInvalidNode, h.PointCount, h.PointStride)
	}
	return h, nil
}

// maxPrealloc bounds the slice capacity taken from an untrusted header.
const maxPrealloc = 1 << 16

// checkSize rejects a header whose payload does not fit the file f.
func checkSize(f *os.File, h NodeHeader) error {
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	want := int64(NodeHeaderSize) + int64(h.PointCount)*int64(h.PointStride)
	if want > fi.Size() {
		return fmt.Errorf("%w: header claims %d points of %d bytes, file has %d bytes",
			ErrInvalidNode, h.PointCount, h.PointStride, fi.Size())
	}
	return nil
}

// ReadNodeFrom decodes a node file from r.
func ReadNodeFrom[P any](r io.Reader, acc points.Accessor[P]) ([]P, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.PointStride != acc.Stride() {
		return nil, fmt.Errorf("%w: file has %d bytes per point, %s wants %d",
			ErrStrideMismatch, h.PointStride, acc.Type(), acc.Stride())
	}

	br := bufio.NewReader(r)
	pts := make([]P, 0, min(h.PointCount, maxPrealloc))
	raw := make([]byte, h.PointStride)
	for i := 0; i < h.PointCount; i++ {
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, fmt.Errorf("%w: point %d of %d: %w", ErrInvalidNode, i, h.PointCount, err)
		}
		p, err := acc.FromRaw(raw)
		if err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, nil
}

// ReadNode reads all points of guid's node file in dir. A missing file is
// reported as ErrMissingResource.
func ReadNode[P any](dir string, guid uuid.UUID, acc points.Accessor[P]) (pts []P, err error) {
	path := NodePath(dir, guid)
	f, err := os.Open(path)
	if err != nil {
		return nil, missing(path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	h, err := readHeader(f)
	if err == nil {
		err = checkSize(f, h)
	}
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err == nil {
		pts, err = ReadNodeFrom(f, acc)
	}
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", guid, err)
	}
	return pts, nil
}

// ProbeNode reads only the header of guid's node file.
func ProbeNode(dir string, guid uuid.UUID) (h NodeHeader, err error) {
	path := NodePath(dir, guid)
	f, err := os.Open(path)
	if err != nil {
		return NodeHeader{}, missing(path, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	h, err = readHeader(f)
	if err != nil {
		return NodeHeader{}, err
	}
	if err := checkSize(f, h); err != nil {
		return NodeHeader{}, err
	}
	return h, nil
}

// ProbePointCount returns the number of points in guid's node file without
// reading the payload.
func ProbePointCount(dir string, guid uuid.UUID) (int, error) {
	h, err := ProbeNode(dir, guid)
	if err != nil {
		return 0, err
	}
	return h.PointCount, nil
}
