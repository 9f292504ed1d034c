// Package driver defines the capture backend a camera session talks to. A
// Backend enumerates devices and opens them by index; the returned Handle is
// owned by exactly one session until it is closed.
package driver

import (
	"image"
	"time"
)

// Backend is an OS level capture framework through which a device is opened.
type Backend interface {
	// Name is the identifier used in backend preference lists.
	Name() string
	// Devices lists the capture devices the backend can see.
	Devices() ([]DeviceInfo, error)
	// Open acquires the device at index. The caller must Close the handle.
	Open(index int) (Handle, error)
}

// Handle is an open device connection.
type Handle interface {
	// SetProperty writes a property. Devices that do not expose the
	// property return an error matching ErrUnsupported. A nil error only
	// means the write was accepted, not that the hardware honoured it.
	SetProperty(p Property, value int) error
	// GetProperty reads a property back from the device.
	GetProperty(p Property) (int, error)
	// ReadFrame blocks until a frame is available or timeout elapses.
	ReadFrame(timeout time.Duration) (image.Image, error)
	// Close releases the device. Calling it twice is allowed.
	Close() error
}

// DeviceInfo describes an enumerated capture device.
type DeviceInfo struct {
	Index int
	Path  string
	Label string
}
