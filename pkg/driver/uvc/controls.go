// Package uvc maps backend independent properties to V4L2 control IDs.
// Reference: https://www.kernel.org/doc/html/latest/userspace-api/media/v4l/control.html
package uvc

import "github.com/focuscam/focuscam/pkg/driver"

const (
	cidBase            = 0x00980900
	cidCameraClassBase = 0x009a0900
)

// V4L2 control IDs from linux/v4l2-controls.h.
const (
	CIDBrightness              uint32 = cidBase + 0
	CIDContrast                uint32 = cidBase + 1
	CIDSaturation              uint32 = cidBase + 2
	CIDAutoWhiteBalance        uint32 = cidBase + 12
	CIDGamma                   uint32 = cidBase + 16
	CIDGain                    uint32 = cidBase + 19
	CIDWhiteBalanceTemperature uint32 = cidBase + 26
	CIDSharpness               uint32 = cidBase + 27

	CIDExposureAuto     uint32 = cidCameraClassBase + 1
	CIDExposureAbsolute uint32 = cidCameraClassBase + 2
	CIDFocusAbsolute    uint32 = cidCameraClassBase + 10
	CIDFocusAuto        uint32 = cidCameraClassBase + 12
	CIDZoomAbsolute     uint32 = cidCameraClassBase + 13
)

var controlIDs = map[driver.Property]uint32{
	driver.PropBrightness:       CIDBrightness,
	driver.PropContrast:         CIDContrast,
	driver.PropSaturation:       CIDSaturation,
	driver.PropSharpness:        CIDSharpness,
	driver.PropGamma:            CIDGamma,
	driver.PropGain:             CIDGain,
	driver.PropAutoExposure:     CIDExposureAuto,
	driver.PropExposure:         CIDExposureAbsolute,
	driver.PropAutoWhiteBalance: CIDAutoWhiteBalance,
	driver.PropWhiteBalance:     CIDWhiteBalanceTemperature,
	driver.PropAutofocus:        CIDFocusAuto,
	driver.PropFocus:            CIDFocusAbsolute,
	driver.PropZoom:             CIDZoomAbsolute,
}

// ControlID returns the V4L2 control backing p. Stream format properties
// (size, rate, buffers) have no control ID.
func ControlID(p driver.Property) (uint32, bool) {
	id, ok := controlIDs[p]
	return id, ok
}
