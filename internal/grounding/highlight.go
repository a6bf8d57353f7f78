package grounding

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/pgmiso/sc-landingai/internal/model"
)

var namedColors = map[string]color.RGBA{
	"red":     {R: 0xff, A: 0xff},
	"green":   {G: 0x99, A: 0xff},
	"blue":    {B: 0xcc, A: 0xff},
	"magenta": {R: 0xcc, B: 0xcc, A: 0xff},
	"orange":  {R: 0xff, G: 0x8c, A: 0xff},
	"gray":    {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"black":   {A: 0xff},
}

// typeColors maps chunk types to their highlight color when the style asks
// for "auto".
var typeColors = map[model.ChunkType]string{
	model.ChunkTypeText:   "green",
	model.ChunkTypeTable:  "blue",
	model.ChunkTypeFigure: "magenta",
	model.ChunkTypeTitle:  "orange",
	model.ChunkTypeOther:  "gray",
}

func colorFor(style model.HighlightStyle, chunkType model.ChunkType) color.RGBA {
	name := style.Color
	if name == "" || name == "auto" {
		name = typeColors[chunkType]
	}
	if c, ok := namedColors[name]; ok {
		return c
	}
	return namedColors["red"]
}

// drawHighlight crops the page to box and frames the crop with a border of
// the given width drawn outside the cropped region, so the output canvas is
// box.Width()+2*width by box.Height()+2*width.
func drawHighlight(page image.Image, box model.PixelBox, col color.RGBA, width int) *image.RGBA {
	if width < 0 {
		width = 0
	}
	w, h := box.Width(), box.Height()
	out := image.NewRGBA(image.Rect(0, 0, w+2*width, h+2*width))
	draw.Draw(out, out.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
	crop := image.Rect(width, width, width+w, width+h)
	src := image.Point{X: box.X0, Y: box.Y0}
	draw.Draw(out, crop, page, src, draw.Src)
	return out
}
