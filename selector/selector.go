// Package selector picks a single tracking target out of a frame's detections
// and converts its position into a frame-normalized error.
package selector

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// Detection is one candidate box from the detector, valid for a single frame.
type Detection struct {
	ClassID    int
	Box        image.Rectangle
	Confidence float64
}

// Filter decides which detections may be tracked. It is fixed for the
// lifetime of the process.
type Filter struct {
	AllowedClasses map[int]bool
	MinWidth       int
	MinHeight      int
}

// Target is the detection chosen for this frame.
type Target struct {
	Center  r2.Point
	Area    int
	ClassID int
}

// Select returns the qualifying detection with the largest pixel area.
// A detection qualifies if its class is allowed and its box meets the minimum
// width and height. Ties keep the earliest detection: a later box must be
// strictly larger to replace the current best. The second return is false
// when nothing qualifies.
func Select(detections []Detection, f Filter) (Target, bool) {
	var best Target
	found := false
	for _, d := range detections {
		w := d.Box.Dx()
		h := d.Box.Dy()
		if !f.AllowedClasses[d.ClassID] || w < f.MinWidth || h < f.MinHeight {
			continue
		}
		area := w * h
		if found && area <= best.Area {
			continue
		}
		best = Target{
			Center: r2.Point{
				X: float64(d.Box.Min.X+d.Box.Max.X) / 2.0,
				Y: float64(d.Box.Min.Y+d.Box.Max.Y) / 2.0,
			},
			Area:    area,
			ClassID: d.ClassID,
		}
		found = true
	}
	return best, found
}

// CenterError returns the target's offset from the frame center, normalized
// by the half-frame so a target at the edge reads roughly ±1. The result is
// not clamped here; the axis controllers clamp at the command stage.
func CenterError(t Target, frameWidth, frameHeight float64) r2.Point {
	halfW := frameWidth / 2.0
	halfH := frameHeight / 2.0
	return r2.Point{
		X: (t.Center.X - halfW) / math.Max(halfW, 1),
		Y: (t.Center.Y - halfH) / math.Max(halfH, 1),
	}
}
