package videotest

import (
	"fmt"
	"image"
	"math/rand"
	"sync"
	"time"

	"github.com/focuscam/focuscam/pkg/driver"
)

const (
	defaultWidth     = 640
	defaultHeight    = 480
	defaultFrameRate = 30
)

var colors = [][3]byte{
	{235, 128, 128},
	{210, 16, 146},
	{170, 166, 16},
	{145, 54, 34},
	{107, 202, 222},
	{82, 90, 240},
	{41, 240, 110},
}

type handle struct {
	backend *Backend
	index   int

	mu           sync.Mutex
	controls     map[driver.Property]controlSpec
	width        int
	height       int
	fps          int
	bufferSize   int
	readFailures int
	readErr      error
	closed       bool

	bars       *bars
	last       time.Time
	random     *rand.Rand
	negotiated bool
}

func (h *handle) SetProperty(p driver.Property, value int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return driver.ErrClosed
	}

	switch p {
	case driver.PropWidth:
		h.width = value
		h.negotiated = false
		return nil
	case driver.PropHeight:
		h.height = value
		h.negotiated = false
		return nil
	case driver.PropFPS:
		h.fps = value
		return nil
	case driver.PropBufferSize:
		h.bufferSize = value
		return nil
	}

	c, ok := h.controls[p]
	if !ok {
		return fmt.Errorf("%s: %w", p, driver.ErrUnsupported)
	}
	if p == driver.PropAutofocus && h.backend.stuckAuto {
		return nil
	}
	// Hardware clamps instead of failing.
	switch {
	case value < c.min:
		value = c.min
	case value > c.max:
		value = c.max
	}
	c.value = value
	h.controls[p] = c
	return nil
}

func (h *handle) GetProperty(p driver.Property) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, driver.ErrClosed
	}

	switch p {
	case driver.PropWidth:
		h.negotiate()
		return h.width, nil
	case driver.PropHeight:
		h.negotiate()
		return h.height, nil
	case driver.PropFPS:
		if h.fps <= 0 {
			return defaultFrameRate, nil
		}
		return h.fps, nil
	case driver.PropBufferSize:
		return h.bufferSize, nil
	}

	c, ok := h.controls[p]
	if !ok {
		return 0, fmt.Errorf("%s: %w", p, driver.ErrUnsupported)
	}
	return c.value, nil
}

// negotiate fits the requested size into what the device supports, like a
// driver answering S_FMT. Sizes are kept even for 4:2:2 chroma.
func (h *handle) negotiate() {
	if h.negotiated {
		return
	}
	if h.width <= 0 || h.height <= 0 {
		h.width, h.height = defaultWidth, defaultHeight
	}
	if h.width > h.backend.maxWidth {
		h.width = h.backend.maxWidth
	}
	if h.height > h.backend.maxHeight {
		h.height = h.backend.maxHeight
	}
	h.width &^= 1
	h.height &^= 1
	h.bars = nil
	h.negotiated = true
}

func (h *handle) ReadFrame(timeout time.Duration) (image.Image, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, driver.ErrClosed
	}
	if h.readErr != nil {
		return nil, h.readErr
	}
	if h.readFailures > 0 {
		h.readFailures--
		return nil, driver.ErrReadTimeout
	}

	h.negotiate()
	if h.bars == nil {
		h.bars = newBars(h.width, h.height)
		h.random = rand.New(rand.NewSource(int64(h.index)))
	}

	if h.backend.paced {
		fps := h.fps
		if fps <= 0 {
			fps = defaultFrameRate
		}
		interval := time.Second / time.Duration(fps)
		wait := time.Until(h.last.Add(interval))
		if wait > timeout {
			return nil, driver.ErrReadTimeout
		}
		if wait > 0 {
			time.Sleep(wait)
		}
		h.last = time.Now()
	}

	return h.bars.next(h.random), nil
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.backend.release(h.index)
	return nil
}

// bars is a colour bar pattern with a gray gradation and a noise area along
// the bottom quarter.
type bars struct {
	width, height int

	yyBase, cbBase, crBase []byte
	hColorBarEnd           int
	wGradationEnd          int
}

func newBars(width, height int) *bars {
	yi := width * height
	ci := yi / 2
	b := &bars{
		width:         width,
		height:        height,
		yyBase:        make([]byte, yi),
		cbBase:        make([]byte, ci),
		crBase:        make([]byte, ci),
		hColorBarEnd:  height * 3 / 4,
		wGradationEnd: width * 5 / 7,
	}

	for y := 0; y < b.hColorBarEnd; y++ {
		yi := width * y
		ci := width * y / 2
		// Color bar
		for x := 0; x < width; x++ {
			c := x * 7 / width
			b.yyBase[yi+x] = uint8(uint16(colors[c][0]) * 75 / 100)
			b.cbBase[ci+x/2] = colors[c][1]
			b.crBase[ci+x/2] = colors[c][2]
		}
	}
	for y := b.hColorBarEnd; y < height; y++ {
		yi := width * y
		ci := width * y / 2
		for x := 0; x < b.wGradationEnd; x++ {
			// Gray gradation
			b.yyBase[yi+x] = uint8(x * 255 / b.wGradationEnd)
			b.cbBase[ci+x/2] = 128
			b.crBase[ci+x/2] = 128
		}
		for x := b.wGradationEnd; x < width; x++ {
			// Noise area
			b.cbBase[ci+x/2] = 128
			b.crBase[ci+x/2] = 128
		}
	}
	return b
}

// next returns a fresh image each call; frames handed out are never reused.
func (b *bars) next(random *rand.Rand) image.Image {
	yy := append([]byte(nil), b.yyBase...)
	cb := append([]byte(nil), b.cbBase...)
	cr := append([]byte(nil), b.crBase...)
	for y := b.hColorBarEnd; y < b.height; y++ {
		yi := b.width * y
		for x := b.wGradationEnd; x < b.width; x++ {
			// Noise
			yy[yi+x] = uint8(random.Int31n(2) * 255)
		}
	}
	return &image.YCbCr{
		Y:              yy,
		YStride:        b.width,
		Cb:             cb,
		Cr:             cr,
		CStride:        b.width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio422,
		Rect:           image.Rect(0, 0, b.width, b.height),
	}
}
