// Package overlay draws status text onto frames and scales them down for
// preview.
package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	margin     = 6
	lineHeight = 16
)

var (
	// TextColor is the HUD text colour.
	TextColor = color.RGBA{G: 255, A: 255}
	// StripColor is drawn under the text to keep it readable on bright
	// scenes.
	StripColor = color.RGBA{A: 160}
)

// Annotate returns a copy of img with lines drawn in its top left corner.
// img is never modified.
func Annotate(img image.Image, lines ...string) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	if len(lines) == 0 {
		return dst
	}

	face := basicfont.Face7x13
	width := 0
	for _, l := range lines {
		if w := font.MeasureString(face, l).Ceil(); w > width {
			width = w
		}
	}
	strip := image.Rect(0, 0, width+2*margin, len(lines)*lineHeight+margin)
	draw.Draw(dst, strip.Intersect(dst.Bounds()), image.NewUniform(StripColor), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(TextColor),
		Face: face,
	}
	for i, l := range lines {
		d.Dot = fixed.P(margin, (i+1)*lineHeight)
		d.DrawString(l)
	}
	return dst
}

// Fit scales img down to at most maxWidth pixels wide, keeping the aspect
// ratio. Images already small enough, or a maxWidth of 0, return img.
func Fit(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}

	h := bounds.Dy() * maxWidth / bounds.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
