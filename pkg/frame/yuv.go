package frame

import (
	"fmt"
	"image"
)

// Drivers may hand over buffers longer than the image (padding up to the
// buffer size), so only short buffers are rejected.
func checkLength(frame []byte, expected int) error {
	if len(frame) < expected {
		return fmt.Errorf("frame length (%d) less than expected (%d)", len(frame), expected)
	}
	return nil
}

func decodeI420(frame []byte, width, height int) (image.Image, error) {
	yi := width * height
	cbi := yi + width*height/4
	cri := cbi + width*height/4

	if err := checkLength(frame, cri); err != nil {
		return nil, err
	}

	// The planes are copied out: drivers reuse frame for the next read.
	planes := make([]byte, cri)
	copy(planes, frame)

	return &image.YCbCr{
		Y:              planes[:yi],
		YStride:        width,
		Cb:             planes[yi:cbi],
		Cr:             planes[cbi:cri],
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}

func decodeNV12(frame []byte, width, height int) (image.Image, error) {
	return decodeSemiPlanar(frame, width, height, false)
}

func decodeNV21(frame []byte, width, height int) (image.Image, error) {
	return decodeSemiPlanar(frame, width, height, true)
}

// decodeSemiPlanar splits the interleaved chroma plane of NV12 (Cb first)
// and NV21 (Cr first).
func decodeSemiPlanar(frame []byte, width, height int, crFirst bool) (image.Image, error) {
	yi := width * height
	ci := yi + width*height/2

	if err := checkLength(frame, ci); err != nil {
		return nil, err
	}

	y := make([]byte, yi)
	copy(y, frame)
	cb := make([]byte, 0, yi/4)
	cr := make([]byte, 0, yi/4)
	for i := yi; i+1 < ci; i += 2 {
		first, second := frame[i], frame[i+1]
		if crFirst {
			first, second = second, first
		}
		cb = append(cb, first)
		cr = append(cr, second)
	}

	return &image.YCbCr{
		Y:              y,
		YStride:        width,
		Cb:             cb,
		Cr:             cr,
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}

func decodeYUY2(frame []byte, width, height int) (image.Image, error) {
	return decodePacked422(frame, width, height, 0, 1, 2, 3)
}

func decodeUYVY(frame []byte, width, height int) (image.Image, error) {
	return decodePacked422(frame, width, height, 1, 0, 3, 2)
}

// decodePacked422 unpacks 4-byte macropixels holding two luma samples and
// one chroma pair. The offsets give the position of Y0, Cb, Y1 and Cr.
func decodePacked422(frame []byte, width, height, y0, cbo, y1, cro int) (image.Image, error) {
	yi := width * height
	ci := yi / 2
	fi := yi + 2*ci

	if err := checkLength(frame, fi); err != nil {
		return nil, err
	}

	y := make([]byte, yi)
	cb := make([]byte, ci)
	cr := make([]byte, ci)

	fast := 0
	slow := 0
	for i := 0; i < fi; i += 4 {
		y[fast] = frame[i+y0]
		cb[slow] = frame[i+cbo]
		y[fast+1] = frame[i+y1]
		cr[slow] = frame[i+cro]
		fast += 2
		slow++
	}

	return &image.YCbCr{
		Y:              y,
		YStride:        width,
		Cb:             cb,
		Cr:             cr,
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio422,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}
