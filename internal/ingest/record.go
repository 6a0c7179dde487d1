// Package ingest reads raw point clouds from LAS and XYZ text files and turns
// them into octree folders.
package ingest

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/midgard-pointcloud/pkg/points"
)

// Record is one input point with every attribute the readers understand.
// Attributes missing from the input keep their zero value.
type Record struct {
	Position  mgl64.Vec3
	Color     mgl32.Vec3 // [0,1]
	Normal    mgl32.Vec3
	Intensity uint16
	Label     uint8
}

// Convert maps records to points of type P. Attributes P has no room for are dropped.
func Convert[P any](recs []Record, conv func(r *Record) P) []P {
	out := make([]P, len(recs))
	for i := range recs {
		out[i] = conv(&recs[i])
	}
	return out
}

func toPos64(r *Record) points.Pos64 {
	return points.Pos64{Position: r.Position}
}

func toPos64Col32(r *Record) points.Pos64Col32 {
	return points.Pos64Col32{Position: r.Position, Color: r.Color}
}

func toPos64IShort(r *Record) points.Pos64IShort {
	return points.Pos64IShort{Position: r.Position, Intensity: r.Intensity}
}

func toPos64Col32IShort(r *Record) points.Pos64Col32IShort {
	return points.Pos64Col32IShort{Position: r.Position, Color: r.Color, Intensity: r.Intensity}
}

func toPos64Label8(r *Record) points.Pos64Label8 {
	return points.Pos64Label8{Position: r.Position, Label: r.Label}
}

func toPos64Nor32Col32IShort(r *Record) points.Pos64Nor32Col32IShort {
	return points.Pos64Nor32Col32IShort{Position: r.Position, Normal: r.Normal, Color: r.Color, Intensity: r.Intensity}
}
