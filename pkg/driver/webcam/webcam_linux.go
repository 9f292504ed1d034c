package webcam

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"math"
	"sync"
	"syscall"
	"time"

	"github.com/blackjack/webcam"
	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/driver/uvc"
	"github.com/focuscam/focuscam/pkg/frame"
	"github.com/focuscam/focuscam/pkg/prop"
)

const (
	maxEmptyFrameCount = 5
)

var logger = logging.NewLogger("focuscam/driver/webcam")

func init() {
	if err := driver.GetManager().Register(&backend{devDir: "/dev"}); err != nil {
		logger.Errorf("failed to register backend: %v", err)
	}
}

type backend struct {
	devDir string
}

func (b *backend) Name() string {
	return Name
}

func (b *backend) Devices() ([]driver.DeviceInfo, error) {
	return driver.ScanDevices(b.devDir)
}

func (b *backend) Open(index int) (driver.Handle, error) {
	path := driver.DevicePath(b.devDir, index)
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}

	logger.Debugf("opened %s", path)
	return newCamera(path, cam), nil
}

func openError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", path, driver.ErrNoDevice)
	case errors.Is(err, syscall.EBUSY):
		return fmt.Errorf("%s: %w", path, driver.ErrBusy)
	}
	return fmt.Errorf("%s: %w", path, err)
}

// Camera implementation using v4l2
// Reference: https://linuxtv.org/downloads/v4l-dvb-apis/uapi/v4l/videodev.html#videodev
//
// Stream properties are only recorded by SetProperty and applied when the
// stream starts on the first read, the same order V4L2 requires.
type camera struct {
	path     string
	cam      *webcam.Webcam
	controls map[webcam.ControlID]webcam.Control

	mutex     sync.Mutex
	requested prop.Video
	width     int
	height    int
	decoder   frame.Decoder
	streaming bool
	closed    bool
}

func newCamera(path string, cam *webcam.Webcam) *camera {
	return &camera{
		path:     path,
		cam:      cam,
		controls: cam.GetControls(),
	}
}

func (c *camera) SetProperty(p driver.Property, value int) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return driver.ErrClosed
	}

	switch p {
	case driver.PropWidth:
		c.requested.Width = value
		c.stopStreaming()
		return nil
	case driver.PropHeight:
		c.requested.Height = value
		c.stopStreaming()
		return nil
	case driver.PropFPS:
		c.requested.FrameRate = float64(value)
		if c.streaming {
			return c.cam.SetFramerate(float32(value))
		}
		return nil
	case driver.PropBufferSize:
		c.requested.BufferSize = value
		c.stopStreaming()
		return nil
	}

	id, err := c.control(p)
	if err != nil {
		return err
	}
	return c.cam.SetControl(id, int32(value))
}

func (c *camera) GetProperty(p driver.Property) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return 0, driver.ErrClosed
	}

	switch p {
	case driver.PropWidth:
		if c.streaming {
			return c.width, nil
		}
		return c.requested.Width, nil
	case driver.PropHeight:
		if c.streaming {
			return c.height, nil
		}
		return c.requested.Height, nil
	case driver.PropFPS:
		fps, err := c.cam.GetFramerate()
		if err != nil {
			return 0, err
		}
		return int(math.Round(float64(fps))), nil
	case driver.PropBufferSize:
		return c.requested.BufferSize, nil
	}

	id, err := c.control(p)
	if err != nil {
		return 0, err
	}
	v, err := c.cam.GetControl(id)
	return int(v), err
}

func (c *camera) control(p driver.Property) (webcam.ControlID, error) {
	cid, ok := uvc.ControlID(p)
	if !ok {
		return 0, fmt.Errorf("%s: %w", p, driver.ErrUnsupported)
	}
	id := webcam.ControlID(cid)
	if _, exposed := c.controls[id]; !exposed {
		return 0, fmt.Errorf("%s on %s: %w", p, c.path, driver.ErrUnsupported)
	}
	return id, nil
}

func (c *camera) ReadFrame(timeout time.Duration) (image.Image, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, driver.ErrClosed
	}
	if !c.streaming {
		if err := c.startStreaming(); err != nil {
			return nil, err
		}
	}

	seconds := uint32(math.Ceil(timeout.Seconds()))
	if seconds == 0 {
		seconds = 1
	}

	// Wait until a frame is ready
	for i := 0; i < maxEmptyFrameCount; i++ {
		err := c.cam.WaitForFrame(seconds)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			return nil, driver.ErrReadTimeout
		default:
			return nil, err
		}

		b, err := c.cam.ReadFrame()
		if err != nil {
			return nil, err
		}

		// Frame is empty.
		// Retry reading and return ErrEmptyFrame if it exceeds maxEmptyFrameCount.
		if len(b) == 0 {
			continue
		}

		// move the memory from mmap to Go. StopStreaming unmaps the buffer
		// and frames handed out must outlive the next read.
		buf := make([]byte, len(b))
		copy(buf, b)
		return c.decoder.Decode(buf, c.width, c.height)
	}
	return nil, driver.ErrEmptyFrame
}

func (c *camera) startStreaming() error {
	supported := c.cam.GetSupportedFormats()

	var pf webcam.PixelFormat
	var format frame.Format
	for _, code := range uvc.PreferredFormats {
		if _, ok := supported[webcam.PixelFormat(code)]; ok {
			pf = webcam.PixelFormat(code)
			format, _ = uvc.FrameFormat(code)
			break
		}
	}
	if format == "" {
		return fmt.Errorf("%s: no decodable pixel format in %v", c.path, supported)
	}

	width, height := c.frameSize(pf)
	negotiated, w, h, err := c.cam.SetImageFormat(pf, uint32(width), uint32(height))
	if err != nil {
		return fmt.Errorf("%s: set image format: %w", c.path, err)
	}
	if negotiated != pf {
		f, ok := uvc.FrameFormat(uint32(negotiated))
		if !ok {
			return fmt.Errorf("%s: device switched to undecodable format %s", c.path, uvc.FourCCString(uint32(negotiated)))
		}
		format = f
	}

	decoder, err := frame.NewDecoder(format)
	if err != nil {
		return err
	}

	if c.requested.BufferSize > 0 {
		if err := c.cam.SetBufferCount(uint32(c.requested.BufferSize)); err != nil {
			logger.Warnf("%s: buffer count %d: %v", c.path, c.requested.BufferSize, err)
		}
	}
	if c.requested.FrameRate > 0 {
		if err := c.cam.SetFramerate(float32(c.requested.FrameRate)); err != nil {
			logger.Warnf("%s: frame rate %g: %v", c.path, c.requested.FrameRate, err)
		}
	}

	if err := c.cam.StartStreaming(); err != nil {
		return fmt.Errorf("%s: start streaming: %w", c.path, err)
	}

	c.decoder = decoder
	c.width, c.height = int(w), int(h)
	c.streaming = true
	logger.Infof("%s streaming %s %dx%d (requested %s)", c.path, format, w, h, c.requested)
	return nil
}

// frameSize picks the supported size closest to the requested one. Stepwise
// ranges accept the request as is and let the driver round it.
func (c *camera) frameSize(pf webcam.PixelFormat) (int, int) {
	width, height := c.requested.Width, c.requested.Height
	unset := width <= 0 || height <= 0

	best := -1.0
	bestW, bestH := width, height
	for _, s := range c.cam.GetSupportedFrameSizes(pf) {
		if unset {
			return int(s.MaxWidth), int(s.MaxHeight)
		}
		if s.StepWidth != 0 || s.StepHeight != 0 {
			return width, height
		}
		d := c.requested.SizeDistance(int(s.MaxWidth), int(s.MaxHeight))
		if best < 0 || d < best {
			best = d
			bestW, bestH = int(s.MaxWidth), int(s.MaxHeight)
		}
	}
	return bestW, bestH
}

func (c *camera) stopStreaming() {
	if !c.streaming {
		return
	}
	// Note: StopStreaming frees frame buffers even if they are still used in
	// Go code, which is why ReadFrame copies out of the mmap buffer.
	if err := c.cam.StopStreaming(); err != nil {
		logger.Warnf("%s: stop streaming: %v", c.path, err)
	}
	c.streaming = false
}

func (c *camera) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}
	c.stopStreaming()
	c.closed = true
	return c.cam.Close()
}
