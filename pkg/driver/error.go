package driver

import (
	"errors"
)

var (
	ErrUnsupported = NewError("property not supported by device")
	ErrBusy        = NewError("device or resource busy")
	ErrNoDevice    = NewError("no such device")

	ErrClosed      = errors.New("handle closed")
	ErrReadTimeout = errors.New("read timeout")
	ErrEmptyFrame  = errors.New("empty frame")

	ErrNotConnected     = errors.New("invalid state: not connected")
	ErrAlreadyConnected = errors.New("invalid state: already connected")
)

// errorString marks hardware availability problems, as opposed to I/O
// failures on a device that is present.
type errorString struct {
	s string
}

func NewError(text string) error {
	return &errorString{text}
}

// IsAvailabilityError reports whether err, or anything it wraps, is an
// availability error created with NewError.
func IsAvailabilityError(err error) bool {
	var target *errorString
	return errors.As(err, &target)
}

func (e *errorString) Error() string {
	return e.s
}
