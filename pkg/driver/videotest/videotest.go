// Package videotest provides a synthetic camera backend for testing. It draws
// colour bars, exposes UVC-like controls that clamp out of range writes the
// way real hardware does, and can be scripted to fail opens and reads.
package videotest

import (
	"fmt"
	"sync"

	"github.com/focuscam/focuscam/pkg/driver"
)

// Name is the name of the backend registered by this package.
const Name = "test"

func init() {
	driver.GetManager().Register(New())
}

type controlSpec struct {
	value, min, max int
}

// Backend is a scriptable capture backend. The zero value is not usable, use
// New.
type Backend struct {
	mu sync.Mutex

	name         string
	devices      []int
	maxWidth     int
	maxHeight    int
	paced        bool
	controls     map[driver.Property]controlSpec
	stuckAuto    bool
	openErr      error
	openFailures int
	readErr      error
	readFailures int

	open   map[int]*handle
	opened int
}

// Option configures a Backend.
type Option func(*Backend)

// WithName registers the backend under another name, so tests can model an
// ordered preference of several backends.
func WithName(name string) Option {
	return func(b *Backend) { b.name = name }
}

// WithDevices sets the device indices the backend can open.
func WithDevices(indices ...int) Option {
	return func(b *Backend) { b.devices = indices }
}

// WithMaxSize caps the frame size the device negotiates.
func WithMaxSize(width, height int) Option {
	return func(b *Backend) { b.maxWidth, b.maxHeight = width, height }
}

// WithoutPacing makes reads return immediately instead of at the frame rate.
func WithoutPacing() Option {
	return func(b *Backend) { b.paced = false }
}

// WithoutFocusControls models a camera with a fixed-focus lens: neither
// autofocus nor focus_absolute is exposed.
func WithoutFocusControls() Option {
	return func(b *Backend) {
		delete(b.controls, driver.PropAutofocus)
		delete(b.controls, driver.PropFocus)
	}
}

// WithStuckAutofocus models a device that accepts the autofocus-off write
// but keeps reporting autofocus on.
func WithStuckAutofocus() Option {
	return func(b *Backend) { b.stuckAuto = true }
}

// WithControlRange sets the hardware range of a control.
func WithControlRange(p driver.Property, min, max int) Option {
	return func(b *Backend) {
		c := b.controls[p]
		c.min, c.max = min, max
		if c.value < min || c.value > max {
			c.value = min
		}
		b.controls[p] = c
	}
}

// WithOpenError makes every open fail with err.
func WithOpenError(err error) Option {
	return func(b *Backend) { b.openErr = err }
}

// WithOpenFailures makes the next n opens fail with driver.ErrBusy.
func WithOpenFailures(n int) Option {
	return func(b *Backend) { b.openFailures = n }
}

// WithReadFailures makes the first n reads of every handle fail with
// driver.ErrReadTimeout.
func WithReadFailures(n int) Option {
	return func(b *Backend) { b.readFailures = n }
}

// WithReadError makes every read fail with err.
func WithReadError(err error) Option {
	return func(b *Backend) { b.readErr = err }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		name:      Name,
		devices:   []int{0, 1},
		maxWidth:  1920,
		maxHeight: 1080,
		paced:     true,
		controls: map[driver.Property]controlSpec{
			driver.PropAutofocus:        {value: 1, min: 0, max: 1},
			driver.PropFocus:            {value: 0, min: 0, max: 255},
			driver.PropBrightness:       {value: 0, min: -64, max: 64},
			driver.PropContrast:         {value: 32, min: 0, max: 95},
			driver.PropSaturation:       {value: 64, min: 0, max: 128},
			driver.PropSharpness:        {value: 3, min: 0, max: 7},
			driver.PropGamma:            {value: 100, min: 100, max: 300},
			driver.PropGain:             {value: 0, min: 0, max: 100},
			driver.PropAutoExposure:     {value: 3, min: 0, max: 3},
			driver.PropExposure:         {value: 157, min: 1, max: 5000},
			driver.PropAutoWhiteBalance: {value: 1, min: 0, max: 1},
			driver.PropWhiteBalance:     {value: 4600, min: 2800, max: 6500},
		},
		open: make(map[int]*handle),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Devices() ([]driver.DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]driver.DeviceInfo, 0, len(b.devices))
	for _, i := range b.devices {
		infos = append(infos, driver.DeviceInfo{
			Index: i,
			Path:  fmt.Sprintf("%s://video%d", b.name, i),
			Label: fmt.Sprintf("%s%svideo%d", b.name, driver.LabelSeparator, i),
		})
	}
	return infos, nil
}

func (b *Backend) Open(index int) (driver.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openErr != nil {
		return nil, b.openErr
	}
	if !b.hasDevice(index) {
		return nil, fmt.Errorf("%s video%d: %w", b.name, index, driver.ErrNoDevice)
	}
	if b.openFailures > 0 {
		b.openFailures--
		return nil, fmt.Errorf("%s video%d: %w", b.name, index, driver.ErrBusy)
	}
	if _, busy := b.open[index]; busy {
		return nil, fmt.Errorf("%s video%d: %w", b.name, index, driver.ErrBusy)
	}

	controls := make(map[driver.Property]controlSpec, len(b.controls))
	for p, c := range b.controls {
		controls[p] = c
	}

	h := &handle{
		backend:      b,
		index:        index,
		controls:     controls,
		readFailures: b.readFailures,
		readErr:      b.readErr,
	}
	b.open[index] = h
	b.opened++
	return h, nil
}

func (b *Backend) hasDevice(index int) bool {
	for _, i := range b.devices {
		if i == index {
			return true
		}
	}
	return false
}

func (b *Backend) release(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.open, index)
}

// OpenHandles is the number of handles not closed yet.
func (b *Backend) OpenHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.open)
}

// Opened is the number of successful opens so far.
func (b *Backend) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// FailReads makes the next n reads of the open handle for index fail.
func (b *Backend) FailReads(index, n int) {
	b.mu.Lock()
	h := b.open[index]
	b.mu.Unlock()

	if h != nil {
		h.mu.Lock()
		h.readFailures = n
		h.mu.Unlock()
	}
}

// Control returns the current value of a control on the open handle for
// index, bypassing the driver interface.
func (b *Backend) Control(index int, p driver.Property) (int, bool) {
	b.mu.Lock()
	h := b.open[index]
	b.mu.Unlock()

	if h == nil {
		return 0, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.controls[p]
	return c.value, ok
}
