package uvc

import "github.com/focuscam/focuscam/pkg/frame"

// FourCC builds a V4L2 pixel format code, v4l2_fourcc in videodev2.h.
func FourCC(code string) uint32 {
	var b [4]byte
	copy(b[:], code)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FourCCString is the inverse of FourCC, for logs.
func FourCCString(v uint32) string {
	return string([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// PreferredFormats lists the pixel formats the session can decode, best
// first. MJPEG keeps USB bandwidth low at high resolutions.
var PreferredFormats = []uint32{
	FourCC("MJPG"),
	FourCC("YUYV"),
	FourCC("UYVY"),
	FourCC("NV12"),
	FourCC("NV21"),
	FourCC("YU12"),
}

var frameFormats = map[uint32]frame.Format{
	FourCC("MJPG"): frame.FormatMJPEG,
	FourCC("JPEG"): frame.FormatMJPEG,
	FourCC("YUYV"): frame.FormatYUYV,
	FourCC("UYVY"): frame.FormatUYVY,
	FourCC("NV12"): frame.FormatNV12,
	FourCC("NV21"): frame.FormatNV21,
	FourCC("YU12"): frame.FormatI420,
}

// FrameFormat maps a V4L2 pixel format to a decodable frame format.
func FrameFormat(fourcc uint32) (frame.Format, bool) {
	f, ok := frameFormats[fourcc]
	return f, ok
}
