package frame

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// stripDHT removes every DHT segment, producing what many UVC cameras send.
func stripDHT(t *testing.T, b []byte) []byte {
	t.Helper()

	out := append([]byte{}, b...)
	for {
		i := bytes.Index(out, jpegDHT)
		if i < 0 {
			return out
		}
		length := int(binary.BigEndian.Uint16(out[i+2:]))
		out = append(out[:i], out[i+2+length:]...)
	}
}

func TestAddMotionDht(t *testing.T) {
	original := encodeTestJPEG(t, 16, 16)
	stripped := stripDHT(t, original)

	_, err := jpeg.Decode(bytes.NewReader(stripped))
	require.Error(t, err)
	assert.Equal(t, "invalid JPEG format: uninitialized Huffman table", err.Error())

	fixed := addMotionDht(stripped)
	assert.Len(t, fixed, len(stripped)+len(defaultDHT))

	want, err := jpeg.Decode(bytes.NewReader(original))
	require.NoError(t, err)
	got, err := jpeg.Decode(bytes.NewReader(fixed))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestAddMotionDhtLeavesOtherFramesAlone(t *testing.T) {
	withTables := encodeTestJPEG(t, 8, 8)
	assert.Equal(t, withTables, addMotionDht(withTables))

	random := []byte{1, 2, 3, 4}
	assert.Equal(t, random, addMotionDht(random))
}

func TestDefaultDHTLength(t *testing.T) {
	// Marker, length and four tables: 2 + 2 + 4*17 + 12 + 162 + 12 + 162.
	assert.Len(t, defaultDHT, 420)
	assert.Equal(t, uint16(418), binary.BigEndian.Uint16(defaultDHT[2:]))
}

func TestDecodeMJPEG(t *testing.T) {
	dec, err := NewDecoder(FormatMJPEG)
	require.NoError(t, err)

	img, err := dec.Decode(stripDHT(t, encodeTestJPEG(t, 32, 24)), 32, 24)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
}
