package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrMalformedLine is returned for XYZ lines that cannot be parsed.
var ErrMalformedLine = errors.New("malformed xyz line")

// ReadXYZ parses whitespace or comma separated text with one point per line:
//
//	x y z [r g b [intensity [label]]]
//
// Colours above 1 are taken as 8-bit values. Empty lines and lines starting
// with '#' or '//' are skipped.
func ReadXYZ(r io.Reader) ([]Record, error) {
	var recs []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "//") {
			continue
		}
		rec, err := parseXYZLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading xyz: %w", err)
	}
	return recs, nil
}

func parseXYZLine(text string) (Record, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ';'
	})
	switch len(fields) {
	case 3, 6, 7, 8:
	default:
		return Record{}, fmt.Errorf("%w: %d fields", ErrMalformedLine, len(fields))
	}

	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Record{}, fmt.Errorf("%w: %q", ErrMalformedLine, f)
		}
		vals[i] = v
	}

	rec := Record{Position: mgl64.Vec3{vals[0], vals[1], vals[2]}, Color: mgl32.Vec3{1, 1, 1}}
	if len(vals) >= 6 {
		c := mgl32.Vec3{float32(vals[3]), float32(vals[4]), float32(vals[5])}
		if c[0] > 1 || c[1] > 1 || c[2] > 1 {
			c = c.Mul(1.0 / 255)
		}
		rec.Color = c
	}
	if len(vals) >= 7 {
		rec.Intensity = uint16(mgl64.Clamp(vals[6], 0, 65535))
	}
	if len(vals) == 8 {
		rec.Label = uint8(mgl64.Clamp(vals[7], 0, 255))
	}
	return rec, nil
}
