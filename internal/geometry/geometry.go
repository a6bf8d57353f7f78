// Package geometry converts the parse service's normalized bounding boxes
// into pixel coordinates of a rendered page image.
//
// Coordinate contract: fractional boxes are [0,1] with a top-left origin
// and y growing downward, matching the grounding payload of the parse
// service. No axis flip is performed.
package geometry

import (
	"fmt"
	"math"

	"github.com/pgmiso/sc-landingai/internal/model"
	appErr "github.com/pgmiso/sc-landingai/internal/pkg/errors"
)

// ToPixelBox scales a fractional box onto a pageWidth x pageHeight image.
// Coordinates are rounded half away from zero and clamped into
// [0,pageWidth] / [0,pageHeight] so a crop request never exceeds the image.
// A box whose clamped area collapses to zero fails with ErrInvalidGeometry
// instead of producing an empty crop.
func ToPixelBox(box model.FractionalBox, pageWidth, pageHeight int) (model.PixelBox, error) {
	if pageWidth <= 0 || pageHeight <= 0 {
		return model.PixelBox{}, fmt.Errorf("%w: page dimensions %dx%d", appErr.ErrInvalidGeometry, pageWidth, pageHeight)
	}
	for _, v := range box.Slice() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.PixelBox{}, fmt.Errorf("%w: non-finite coordinate", appErr.ErrInvalidGeometry)
		}
	}
	out := model.PixelBox{
		X0: clamp(round(box.X0*float64(pageWidth)), pageWidth),
		Y0: clamp(round(box.Y0*float64(pageHeight)), pageHeight),
		X1: clamp(round(box.X1*float64(pageWidth)), pageWidth),
		Y1: clamp(round(box.Y1*float64(pageHeight)), pageHeight),
	}
	if out.Width() <= 0 || out.Height() <= 0 {
		return model.PixelBox{}, fmt.Errorf("%w: box %+v collapses on %dx%d page", appErr.ErrInvalidGeometry, box, pageWidth, pageHeight)
	}
	return out, nil
}

// round is round-half-away-from-zero, which math.Round implements.
func round(v float64) int {
	return int(math.Round(v))
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
