package overlay

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func gray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestAnnotate(t *testing.T) {
	src := gray(320, 240, 200)
	dst := Annotate(src, "focus 100", "frame 1")

	assert.Equal(t, image.Rect(0, 0, 320, 240), dst.Bounds())

	green := 0
	for y := 0; y < 2*lineHeight; y++ {
		for x := 0; x < 100; x++ {
			c := dst.RGBAAt(x, y)
			if c.G == 255 && c.R == 0 && c.B == 0 {
				green++
			}
		}
	}
	assert.NotZero(t, green, "text must be drawn")

	// The strip darkens the corner, the rest stays untouched.
	assert.Less(t, dst.RGBAAt(1, 1).R, uint8(200))
	assert.Equal(t, color.RGBA{200, 200, 200, 255}, dst.RGBAAt(300, 200))

	// Source untouched.
	assert.Equal(t, uint8(200), src.GrayAt(1, 1).Y)
}

func TestAnnotateNoLines(t *testing.T) {
	src := gray(8, 8, 10)
	dst := Annotate(src)
	assert.Equal(t, color.RGBA{10, 10, 10, 255}, dst.RGBAAt(0, 0))
}

func TestAnnotateOffsetBounds(t *testing.T) {
	src := gray(64, 64, 50).SubImage(image.Rect(16, 16, 48, 48))
	dst := Annotate(src, "x")
	assert.Equal(t, image.Rect(0, 0, 32, 32), dst.Bounds())
	assert.Equal(t, color.RGBA{50, 50, 50, 255}, dst.RGBAAt(31, 31))
}

func TestFit(t *testing.T) {
	src := gray(640, 480, 128)

	assert.Same(t, src, Fit(src, 0).(*image.Gray))
	assert.Same(t, src, Fit(src, 640).(*image.Gray))

	dst := Fit(src, 320)
	assert.Equal(t, image.Rect(0, 0, 320, 240), dst.Bounds())
	r, _, _, _ := dst.At(100, 100).RGBA()
	assert.InDelta(t, 128, r>>8, 1)
}
