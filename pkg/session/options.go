package session

import (
	"fmt"
	"time"

	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/prop"
	"github.com/focuscam/focuscam/pkg/retry"
)

// Options is the immutable configuration a session is created with.
type Options struct {
	DeviceIndex int
	// Backends is the backend preference, tried in order.
	Backends []string

	Width      int
	Height     int
	FPS        float64
	BufferSize int

	// Autofocus is the configured wish. The session forces autofocus off
	// regardless and only logs when this asked otherwise.
	Autofocus   bool
	ManualFocus int
	FocusRange  prop.IntRanged

	Image ImageSettings

	FrameTimeout time.Duration
	ReadRetry    retry.Policy
	ConnectRetry retry.Policy
}

// ImageSettings are optional controls applied by Configure. Nil fields keep
// the device default.
type ImageSettings struct {
	Brightness       *int
	Contrast         *int
	Saturation       *int
	Sharpness        *int
	Gamma            *int
	Gain             *int
	AutoExposure     *int
	Exposure         *int
	AutoWhiteBalance *int
	WhiteBalance     *int
}

type setting struct {
	prop  driver.Property
	value int
}

// settings returns the non-nil fields in the order they must be written:
// automatic modes before the manual value they gate.
func (s ImageSettings) settings() []setting {
	ordered := []struct {
		p driver.Property
		v *int
	}{
		{driver.PropBrightness, s.Brightness},
		{driver.PropContrast, s.Contrast},
		{driver.PropSaturation, s.Saturation},
		{driver.PropSharpness, s.Sharpness},
		{driver.PropGamma, s.Gamma},
		{driver.PropGain, s.Gain},
		{driver.PropAutoExposure, s.AutoExposure},
		{driver.PropExposure, s.Exposure},
		{driver.PropAutoWhiteBalance, s.AutoWhiteBalance},
		{driver.PropWhiteBalance, s.WhiteBalance},
	}

	out := make([]setting, 0, len(ordered))
	for _, o := range ordered {
		if o.v != nil {
			out = append(out, setting{prop: o.p, value: *o.v})
		}
	}
	return out
}

// DefaultOptions mirrors the defaults of the config file.
func DefaultOptions() Options {
	return Options{
		DeviceIndex:  0,
		Backends:     []string{"webcam", "v4l2"},
		Width:        1920,
		Height:       1080,
		FPS:          30,
		BufferSize:   1,
		ManualFocus:  100,
		FocusRange:   prop.IntRanged{Min: 0, Max: 255},
		FrameTimeout: time.Second,
		ReadRetry:    retry.Policy{Attempts: 4, Delay: 50 * time.Millisecond},
		ConnectRetry: retry.Policy{Attempts: 3, Delay: time.Second},
	}
}

// Validate checks the invariants the session relies on.
func (o Options) Validate() error {
	switch {
	case o.DeviceIndex < 0:
		return fmt.Errorf("device index must not be negative, got %d", o.DeviceIndex)
	case len(o.Backends) == 0:
		return fmt.Errorf("at least one backend is required")
	case o.Width <= 0 || o.Height <= 0:
		return fmt.Errorf("resolution must be positive, got %dx%d", o.Width, o.Height)
	case o.FPS <= 0:
		return fmt.Errorf("fps must be positive, got %g", o.FPS)
	case o.BufferSize <= 0:
		return fmt.Errorf("buffer size must be positive, got %d", o.BufferSize)
	case !o.FocusRange.Valid():
		return fmt.Errorf("invalid focus range %s", o.FocusRange)
	case o.FrameTimeout <= 0:
		return fmt.Errorf("frame timeout must be positive, got %s", o.FrameTimeout)
	}
	return nil
}
