// Package points defines the point schemas that can be stored in an octree and the
// accessors used to read positions and raw bytes from them.
package points

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Point schema errors.
var (
	ErrUnsupportedType = errors.New("unsupported point type")
	ErrRawLength       = errors.New("raw point has wrong length")
)

// Type is the schema tag persisted in meta.json.
type Type string

// Supported point schemas.
const (
	TypePos64                 Type = "Pos64"
	TypePos64Col32            Type = "Pos64Col32"
	TypePos64IShort           Type = "Pos64IShort"
	TypePos64Col32IShort      Type = "Pos64Col32IShort"
	TypePos64Label8           Type = "Pos64Label8"
	TypePos64Nor32Col32IShort Type = "Pos64Nor32Col32IShort"
)

// Schema flags written to meta.json's pointAccessorBools.
const (
	FlagPositionFloat3_64 = "HasPositionFloat3_64"
	FlagColorFloat3_32    = "HasColorFloat3_32"
	FlagNormalFloat3_32   = "HasNormalFloat3_32"
	FlagIntensityUInt_16  = "HasIntensityUInt_16"
	FlagLabelUInt_8       = "HasLabelUInt_8"
)

// Accessor reads and writes points of type P. The octree code never looks inside
// a point; everything goes through an accessor.
type Accessor[P any] interface {
	// Type returns the schema tag.
	Type() Type
	// Stride returns the number of bytes of one raw point.
	Stride() int
	// Flags returns the schema flags that are set for this point type.
	Flags() []string
	// Position returns the point position in double precision.
	Position(p *P) mgl64.Vec3
	// AppendRaw appends the raw little-endian representation of p to dst.
	AppendRaw(dst []byte, p *P) []byte
	// FromRaw decodes a point from exactly Stride() bytes.
	FromRaw(raw []byte) (P, error)
}

// Colorer is implemented by accessors whose points carry something displayable as a colour.
// The returned value is packed RGBA with red in the low byte.
type Colorer[P any] interface {
	Color(p *P) uint32
}

// Schema describes a point type without needing its Go type.
type Schema struct {
	Type   Type
	Stride int
	Flags  []string
}

var schemas = map[Type]Schema{
	TypePos64: {
		Type: TypePos64, Stride: 24,
		Flags: []string{FlagPositionFloat3_64},
	},
	TypePos64Col32: {
		Type: TypePos64Col32, Stride: 36,
		Flags: []string{FlagPositionFloat3_64, FlagColorFloat3_32},
	},
	TypePos64IShort: {
		Type: TypePos64IShort, Stride: 26,
		Flags: []string{FlagPositionFloat3_64, FlagIntensityUInt_16},
	},
	TypePos64Col32IShort: {
		Type: TypePos64Col32IShort, Stride: 38,
		Flags: []string{FlagPositionFloat3_64, FlagColorFloat3_32, FlagIntensityUInt_16},
	},
	TypePos64Label8: {
		Type: TypePos64Label8, Stride: 25,
		Flags: []string{FlagPositionFloat3_64, FlagLabelUInt_8},
	},
	TypePos64Nor32Col32IShort: {
		Type: TypePos64Nor32Col32IShort, Stride: 50,
		Flags: []string{FlagPositionFloat3_64, FlagNormalFloat3_32, FlagColorFloat3_32, FlagIntensityUInt_16},
	},
}

// Lookup returns the schema registered for tag.
func Lookup(tag string) (Schema, error) {
	s, ok := schemas[Type(tag)]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnsupportedType, tag)
	}
	return s, nil
}

// Supported reports whether t is a known schema tag.
func Supported(t Type) bool {
	_, ok := schemas[t]
	return ok
}

// PackRGBA packs 8-bit channels into a colour with red in the low byte.
func PackRGBA(r, g, b, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(b)<<16 | uint32(a)<<24
}

// colorFromFloat converts a [0,1] float colour to packed RGBA.
func colorFromFloat(c mgl32.Vec3) uint32 {
	return PackRGBA(unitToByte(c[0]), unitToByte(c[1]), unitToByte(c[2]), 255)
}

// colorFromIntensity maps a 12-bit scanner intensity to a grey value.
func colorFromIntensity(i uint16) uint32 {
	v := int(float32(i) / 4096 * 256)
	if v > 255 {
		v = 255
	}
	return PackRGBA(uint8(v), uint8(v), uint8(v), 255)
}

func unitToByte(f float32) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 1:
		return 255
	}
	return uint8(f*255 + 0.5)
}

// labelPalette colours classification labels; labels wrap around.
var labelPalette = [...]uint32{
	PackRGBA(200, 200, 200, 255), // unclassified
	PackRGBA(139, 90, 43, 255),   // ground
	PackRGBA(34, 139, 34, 255),   // low vegetation
	PackRGBA(0, 100, 0, 255),     // high vegetation
	PackRGBA(178, 34, 34, 255),   // building
	PackRGBA(30, 144, 255, 255),  // water
	PackRGBA(255, 215, 0, 255),   // infrastructure
	PackRGBA(255, 0, 255, 255),   // noise
}

func colorFromLabel(l uint8) uint32 {
	return labelPalette[int(l)%len(labelPalette)]
}
