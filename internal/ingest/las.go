package ingest

import (
	"fmt"

	"github.com/edaniels/lidario"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
)

// ReadLAS reads every point of the LAS file at path. RGB is taken from point
// formats that carry it; other points are white.
func ReadLAS(path string) (recs []Record, err error) {
	lf, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, fmt.Errorf("opening las: %w", err)
	}
	defer func() {
		err = multierr.Append(err, lf.Close())
	}()

	recs = make([]Record, 0, lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, fmt.Errorf("las point %d: %w", i, err)
		}
		data := p.PointData()

		rec := Record{
			Position:  mgl64.Vec3{data.X, data.Y, data.Z},
			Color:     mgl32.Vec3{1, 1, 1},
			Intensity: uint16(data.Intensity),
			Label:     data.ClassBitField.Value & 0x1f, // low five bits hold the class
		}
		if rgb := p.RgbData(); rgb != nil {
			rec.Color = mgl32.Vec3{
				float32(rgb.Red) / 65535,
				float32(rgb.Green) / 65535,
				float32(rgb.Blue) / 65535,
			}
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
