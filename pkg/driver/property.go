package driver

import (
	"fmt"
	"strings"
)

// Property identifies a device setting, independent of backend.
type Property int

const (
	PropWidth Property = iota
	PropHeight
	PropFPS
	PropBufferSize
	PropAutofocus
	PropFocus
	PropBrightness
	PropContrast
	PropSaturation
	PropSharpness
	PropGamma
	PropGain
	PropAutoExposure
	PropExposure
	PropAutoWhiteBalance
	PropWhiteBalance
	PropZoom
)

var propertyNames = map[Property]string{
	PropWidth:            "width",
	PropHeight:           "height",
	PropFPS:              "fps",
	PropBufferSize:       "buffer_size",
	PropAutofocus:        "autofocus",
	PropFocus:            "focus",
	PropBrightness:       "brightness",
	PropContrast:         "contrast",
	PropSaturation:       "saturation",
	PropSharpness:        "sharpness",
	PropGamma:            "gamma",
	PropGain:             "gain",
	PropAutoExposure:     "auto_exposure",
	PropExposure:         "exposure",
	PropAutoWhiteBalance: "auto_white_balance",
	PropWhiteBalance:     "white_balance",
	PropZoom:             "zoom",
}

func (p Property) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("property(%d)", int(p))
}

// Properties returns every known property in declaration order.
func Properties() []Property {
	props := make([]Property, 0, len(propertyNames))
	for p := PropWidth; p <= PropZoom; p++ {
		props = append(props, p)
	}
	return props
}

// ParseProperty is the inverse of Property.String.
func ParseProperty(name string) (Property, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range propertyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown property %q", name)
}

// IsControl reports whether p is a device control rather than part of the
// stream format (size, rate, queue depth).
func (p Property) IsControl() bool {
	switch p {
	case PropWidth, PropHeight, PropFPS, PropBufferSize:
		return false
	}
	return true
}
