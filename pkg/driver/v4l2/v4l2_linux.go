package v4l2

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"sync"
	"syscall"
	"time"

	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/pkg/driver"
	"github.com/focuscam/focuscam/pkg/driver/uvc"
	"github.com/focuscam/focuscam/pkg/frame"
	"github.com/focuscam/focuscam/pkg/prop"
	"github.com/vladimirvivien/go4vl/device"
	v4l2 "github.com/vladimirvivien/go4vl/v4l2"
)

var logger = logging.NewLogger("focuscam/driver/v4l2")

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
	dev, err := device.Open(path)
	if err != nil {
		return nil, openError(path, err)
	}

	logger.Debugf("opened %s (%s)", path, dev.Name())
	return &camera{path: path, dev: dev, bufferSize: defaultBufferSize}, nil
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

type camera struct {
	path string
	dev  *device.Device

	mutex      sync.Mutex
	requested  prop.Video
	bufferSize int
	width      int
	height     int
	decoder    frame.Decoder
	cancel     context.CancelFunc
	output     <-chan []byte
	closed     bool
}

func (c *camera) streaming() bool {
	return c.cancel != nil
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
		c.stop()
		return nil
	case driver.PropHeight:
		c.requested.Height = value
		c.stop()
		return nil
	case driver.PropFPS:
		c.requested.FrameRate = float64(value)
		if c.streaming() {
			return c.dev.SetFrameRate(uint32(value))
		}
		return nil
	case driver.PropBufferSize:
		c.requested.BufferSize = value
		c.stop()
		return nil
	}

	id, err := c.control(p)
	if err != nil {
		return err
	}
	return c.dev.SetControlValue(id, v4l2.CtrlValue(value))
}

func (c *camera) GetProperty(p driver.Property) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return 0, driver.ErrClosed
	}

	switch p {
	case driver.PropWidth:
		if c.streaming() {
			return c.width, nil
		}
		return c.requested.Width, nil
	case driver.PropHeight:
		if c.streaming() {
			return c.height, nil
		}
		return c.requested.Height, nil
	case driver.PropFPS:
		fps, err := c.dev.GetFrameRate()
		return int(fps), err
	case driver.PropBufferSize:
		return c.bufferSize, nil
	}

	id, err := c.control(p)
	if err != nil {
		return 0, err
	}
	ctrl, err := c.dev.GetControl(id)
	if err != nil {
		return 0, err
	}
	return int(ctrl.Value), nil
}

// control resolves p and probes that the device exposes it. go4vl has no
// cached control list, so the probe is a VIDIOC_G_CTRL round trip.
func (c *camera) control(p driver.Property) (v4l2.CtrlID, error) {
	cid, ok := uvc.ControlID(p)
	if !ok {
		return 0, fmt.Errorf("%s: %w", p, driver.ErrUnsupported)
	}
	id := v4l2.CtrlID(cid)
	if _, err := c.dev.GetControl(id); err != nil {
		return 0, fmt.Errorf("%s on %s: %v: %w", p, c.path, err, driver.ErrUnsupported)
	}
	return id, nil
}

func (c *camera) ReadFrame(timeout time.Duration) (image.Image, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil, driver.ErrClosed
	}
	if !c.streaming() {
		if err := c.start(); err != nil {
			return nil, err
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case b, ok := <-c.output:
			if !ok {
				return nil, driver.ErrClosed
			}
			if len(b) == 0 {
				continue
			}
			// go4vl reuses its buffers, decode from a private copy.
			buf := make([]byte, len(b))
			copy(buf, b)
			return c.decoder.Decode(buf, c.width, c.height)
		case <-timer.C:
			return nil, driver.ErrReadTimeout
		}
	}
}

func (c *camera) start() error {
	// go4vl only takes the buffer count at open time.
	if c.requested.BufferSize > 0 && c.requested.BufferSize != c.bufferSize {
		if err := c.reopen(uint32(c.requested.BufferSize)); err != nil {
			return err
		}
	}

	format, err := c.negotiateFormat()
	if err != nil {
		return err
	}
	decoder, err := frame.NewDecoder(format)
	if err != nil {
		return err
	}

	if c.requested.FrameRate > 0 {
		if err := c.dev.SetFrameRate(uint32(c.requested.FrameRate)); err != nil {
			logger.Warnf("%s: frame rate %g: %v", c.path, c.requested.FrameRate, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := c.dev.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("%s: start streaming: %w", c.path, err)
	}

	c.decoder = decoder
	c.cancel = cancel
	c.output = c.dev.GetOutput()
	logger.Infof("%s streaming %s %dx%d (requested %s)", c.path, format, c.width, c.height, c.requested)
	return nil
}

// negotiateFormat asks for each decodable pixel format in turn. V4L2 drivers
// answer S_FMT with the closest format they support, so the result is read
// back rather than trusted.
func (c *camera) negotiateFormat() (frame.Format, error) {
	for _, code := range uvc.PreferredFormats {
		err := c.dev.SetPixFormat(v4l2.PixFormat{
			Width:       uint32(c.requested.Width),
			Height:      uint32(c.requested.Height),
			PixelFormat: v4l2.FourCCType(code),
			Field:       v4l2.FieldNone,
		})
		if err != nil {
			logger.Debugf("%s: pixel format %s: %v", c.path, uvc.FourCCString(code), err)
			continue
		}

		got, err := c.dev.GetPixFormat()
		if err != nil {
			return "", fmt.Errorf("%s: get pixel format: %w", c.path, err)
		}
		format, ok := uvc.FrameFormat(uint32(got.PixelFormat))
		if !ok {
			continue
		}
		c.width, c.height = int(got.Width), int(got.Height)
		return format, nil
	}
	return "", fmt.Errorf("%s: no decodable pixel format accepted", c.path)
}

func (c *camera) reopen(bufferSize uint32) error {
	if err := c.dev.Close(); err != nil {
		logger.Warnf("%s: close before reopen: %v", c.path, err)
	}
	dev, err := device.Open(c.path,
		device.WithIOType(v4l2.IOTypeMMAP),
		device.WithBufferSize(bufferSize),
	)
	if err != nil {
		// The old descriptor is gone, nothing is left to release.
		c.closed = true
		return openError(c.path, err)
	}
	c.dev = dev
	c.bufferSize = int(bufferSize)
	return nil
}

func (c *camera) stop() {
	if !c.streaming() {
		return
	}
	c.cancel()
	if err := c.dev.Stop(); err != nil {
		logger.Warnf("%s: stop streaming: %v", c.path, err)
	}
	c.cancel = nil
	c.output = nil
}

func (c *camera) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}
	c.stop()
	c.closed = true
	return c.dev.Close()
}
