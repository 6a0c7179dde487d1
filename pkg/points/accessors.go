package points

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Pos64 is a point with a double precision position only.
type Pos64 struct {
	Position mgl64.Vec3
}

// Pos64Col32 is a point with position and float colour in [0,1].
type Pos64Col32 struct {
	Position mgl64.Vec3
	Color    mgl32.Vec3
}

// Pos64IShort is a point with position and scanner intensity.
type Pos64IShort struct {
	Position  mgl64.Vec3
	Intensity uint16
}

// Pos64Col32IShort is a point with position, colour and intensity.
type Pos64Col32IShort struct {
	Position  mgl64.Vec3
	Color     mgl32.Vec3
	Intensity uint16
}

// Pos64Label8 is a point with position and a classification label.
type Pos64Label8 struct {
	Position mgl64.Vec3
	Label    uint8
}

// Pos64Nor32Col32IShort is a point with position, normal, colour and intensity.
type Pos64Nor32Col32IShort struct {
	Position  mgl64.Vec3
	Normal    mgl32.Vec3
	Color     mgl32.Vec3
	Intensity uint16
}

// schemaBase implements the schema-derived part of every accessor.
type schemaBase Type

func (b schemaBase) Type() Type { return Type(b) }

func (b schemaBase) Stride() int { return schemas[Type(b)].Stride }

func (b schemaBase) Flags() []string { return append([]string(nil), schemas[Type(b)].Flags...) }

func (b schemaBase) check(raw []byte) error {
	if len(raw) != b.Stride() {
		return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrRawLength, Type(b), b.Stride(), len(raw))
	}
	return nil
}

// Pos64Accessor accesses Pos64 points.
type Pos64Accessor struct{ schemaBase }

// Pos64Col32Accessor accesses Pos64Col32 points.
type Pos64Col32Accessor struct{ schemaBase }

// Pos64IShortAccessor accesses Pos64IShort points.
type Pos64IShortAccessor struct{ schemaBase }

// Pos64Col32IShortAccessor accesses Pos64Col32IShort points.
type Pos64Col32IShortAccessor struct{ schemaBase }

// Pos64Label8Accessor accesses Pos64Label8 points.
type Pos64Label8Accessor struct{ schemaBase }

// Pos64Nor32Col32IShortAccessor accesses Pos64Nor32Col32IShort points.
type Pos64Nor32Col32IShortAccessor struct{ schemaBase }

// NewPos64Accessor returns the accessor for Pos64 points.
func NewPos64Accessor() Pos64Accessor { return Pos64Accessor{schemaBase(TypePos64)} }

// NewPos64Col32Accessor returns the accessor for Pos64Col32 points.
func NewPos64Col32Accessor() Pos64Col32Accessor {
	return Pos64Col32Accessor{schemaBase(TypePos64Col32)}
}

// NewPos64IShortAccessor returns the accessor for Pos64IShort points.
func NewPos64IShortAccessor() Pos64IShortAccessor {
	return Pos64IShortAccessor{schemaBase(TypePos64IShort)}
}

// NewPos64Col32IShortAccessor returns the accessor for Pos64Col32IShort points.
func NewPos64Col32IShortAccessor() Pos64Col32IShortAccessor {
	return Pos64Col32IShortAccessor{schemaBase(TypePos64Col32IShort)}
}

// NewPos64Label8Accessor returns the accessor for Pos64Label8 points.
func NewPos64Label8Accessor() Pos64Label8Accessor {
	return Pos64Label8Accessor{schemaBase(TypePos64Label8)}
}

// NewPos64Nor32Col32IShortAccessor returns the accessor for Pos64Nor32Col32IShort points.
func NewPos64Nor32Col32IShortAccessor() Pos64Nor32Col32IShortAccessor {
	return Pos64Nor32Col32IShortAccessor{schemaBase(TypePos64Nor32Col32IShort)}
}

func (Pos64Accessor) Position(p *Pos64) mgl64.Vec3 { return p.Position }

func (Pos64Accessor) AppendRaw(dst []byte, p *Pos64) []byte {
	return appendVec64(dst, p.Position)
}

func (a Pos64Accessor) FromRaw(raw []byte) (Pos64, error) {
	if err := a.check(raw); err != nil {
		return Pos64{}, err
	}
	return Pos64{Position: readVec64(raw)}, nil
}

func (Pos64Col32Accessor) Position(p *Pos64Col32) mgl64.Vec3 { return p.Position }

func (Pos64Col32Accessor) Color(p *Pos64Col32) uint32 { return colorFromFloat(p.Color) }

func (Pos64Col32Accessor) AppendRaw(dst []byte, p *Pos64Col32) []byte {
	dst = appendVec64(dst, p.Position)
	return appendVec32(dst, p.Color)
}

func (a Pos64Col32Accessor) FromRaw(raw []byte) (Pos64Col32, error) {
	if err := a.check(raw); err != nil {
		return Pos64Col32{}, err
	}
	return Pos64Col32{Position: readVec64(raw), Color: readVec32(raw[24:])}, nil
}

func (Pos64IShortAccessor) Position(p *Pos64IShort) mgl64.Vec3 { return p.Position }

func (Pos64IShortAccessor) Color(p *Pos64IShort) uint32 { return colorFromIntensity(p.Intensity) }

func (Pos64IShortAccessor) AppendRaw(dst []byte, p *Pos64IShort) []byte {
	dst = appendVec64(dst, p.Position)
	return binary.LittleEndian.AppendUint16(dst, p.Intensity)
}

func (a Pos64IShortAccessor) FromRaw(raw []byte) (Pos64IShort, error) {
	if err := a.check(raw); err != nil {
		return Pos64IShort{}, err
	}
	return Pos64IShort{
		Position:  readVec64(raw),
		Intensity: binary.LittleEndian.Uint16(raw[24:]),
	}, nil
}

func (Pos64Col32IShortAccessor) Position(p *Pos64Col32IShort) mgl64.Vec3 { return p.Position }

// Color uses the intensity, like the reference viewer does for scanned data.
func (Pos64Col32IShortAccessor) Color(p *Pos64Col32IShort) uint32 {
	return colorFromIntensity(p.Intensity)
}

func (Pos64Col32IShortAccessor) AppendRaw(dst []byte, p *Pos64Col32IShort) []byte {
	dst = appendVec64(dst, p.Position)
	dst = appendVec32(dst, p.Color)
	return binary.LittleEndian.AppendUint16(dst, p.Intensity)
}

func (a Pos64Col32IShortAccessor) FromRaw(raw []byte) (Pos64Col32IShort, error) {
	if err := a.check(raw); err != nil {
		return Pos64Col32IShort{}, err
	}
	return Pos64Col32IShort{
		Position:  readVec64(raw),
		Color:     readVec32(raw[24:]),
		Intensity: binary.LittleEndian.Uint16(raw[36:]),
	}, nil
}

func (Pos64Label8Accessor) Position(p *Pos64Label8) mgl64.Vec3 { return p.Position }

func (Pos64Label8Accessor) Color(p *Pos64Label8) uint32 { return colorFromLabel(p.Label) }

func (Pos64Label8Accessor) AppendRaw(dst []byte, p *Pos64Label8) []byte {
	dst = appendVec64(dst, p.Position)
	return append(dst, p.Label)
}

func (a Pos64Label8Accessor) FromRaw(raw []byte) (Pos64Label8, error) {
	if err := a.check(raw); err != nil {
		return Pos64Label8{}, err
	}
	return Pos64Label8{Position: readVec64(raw), Label: raw[24]}, nil
}

func (Pos64Nor32Col32IShortAccessor) Position(p *Pos64Nor32Col32IShort) mgl64.Vec3 {
	return p.Position
}

func (Pos64Nor32Col32IShortAccessor) Color(p *Pos64Nor32Col32IShort) uint32 {
	return colorFromFloat(p.Color)
}

func (Pos64Nor32Col32IShortAccessor) AppendRaw(dst []byte, p *Pos64Nor32Col32IShort) []byte {
	dst = appendVec64(dst, p.Position)
	dst = appendVec32(dst, p.Normal)
	dst = appendVec32(dst, p.Color)
	return binary.LittleEndian.AppendUint16(dst, p.Intensity)
}

func (a Pos64Nor32Col32IShortAccessor) FromRaw(raw []byte) (Pos64Nor32Col32IShort, error) {
	if err := a.check(raw); err != nil {
		return Pos64Nor32Col32IShort{}, err
	}
	return Pos64Nor32Col32IShort{
		Position:  readVec64(raw),
		Normal:    readVec32(raw[24:]),
		Color:     readVec32(raw[36:]),
		Intensity: binary.LittleEndian.Uint16(raw[48:]),
	}, nil
}

func appendVec64(dst []byte, v mgl64.Vec3) []byte {
	for _, f := range v {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(f))
	}
	return dst
}

func appendVec32(dst []byte, v mgl32.Vec3) []byte {
	for _, f := range v {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}

func readVec64(b []byte) mgl64.Vec3 {
	return mgl64.Vec3{
		math.Float64frombits(binary.LittleEndian.Uint64(b[0:])),
		math.Float64frombits(binary.LittleEndian.Uint64(b[8:])),
		math.Float64frombits(binary.LittleEndian.Uint64(b[16:])),
	}
}

func readVec32(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{
		math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}
