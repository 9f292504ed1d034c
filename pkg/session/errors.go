package session

import (
	"errors"

	"github.com/focuscam/focuscam/pkg/driver"
)

var (
	// ErrNoBackendSucceeded is returned by Connect when no backend could
	// open the device in any round.
	ErrNoBackendSucceeded = errors.New("no backend succeeded")
	// ErrNotConnected is returned by every operation but Connect and
	// Disconnect while no device is held.
	ErrNotConnected = driver.ErrNotConnected
	// ErrAlreadyConnected is returned by Connect while a device is held.
	ErrAlreadyConnected = driver.ErrAlreadyConnected
	// ErrReadFailed is returned by GetFrame once the read retries ran out.
	ErrReadFailed = errors.New("frame read failed")
)
