// Package prop describes the capture properties a session asks a device for.
package prop

import (
	"fmt"
	"math"

	"github.com/focuscam/focuscam/pkg/frame"
)

// Video holds the requested capture properties. Devices may negotiate other
// values, so these are wishes rather than guarantees.
type Video struct {
	Width       int
	Height      int
	FrameRate   float64
	FrameFormat frame.Format
	BufferSize  int
}

func (v Video) String() string {
	return fmt.Sprintf("%dx%d@%gfps format=%s buffers=%d", v.Width, v.Height, v.FrameRate, v.FrameFormat, v.BufferSize)
}

// SizeDistance is the fitness distance between the requested frame size and
// a candidate size, 0 meaning identical. It follows
// https://w3c.github.io/mediacapture-main/#dfn-fitness-distance for each
// dimension and sums them.
func (v Video) SizeDistance(width, height int) float64 {
	return distance(width, v.Width) + distance(height, v.Height)
}

func distance(actual, ideal int) float64 {
	if actual == ideal {
		return 0
	}
	return math.Abs(float64(actual-ideal)) / math.Max(math.Abs(float64(actual)), math.Abs(float64(ideal)))
}
