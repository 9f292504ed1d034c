package session

import (
	"errors"

	"github.com/focuscam/focuscam/pkg/driver"
)

// Info is a snapshot of what the device reports about itself.
type Info struct {
	ID          string
	Backend     string
	DeviceIndex int
	State       driver.State
	LastFocus   int
	Frames      uint64
	// Properties holds every property the device could read back.
	Properties map[driver.Property]int
	// Unsupported lists the properties the device does not expose.
	Unsupported []driver.Property
}

// Info reads back every known property from the device.
func (s *Session) Info() (Info, error) {
	if err := s.requireConnected(); err != nil {
		return Info{}, err
	}

	info := Info{
		ID:          s.id,
		Backend:     s.backend,
		DeviceIndex: s.opts.DeviceIndex,
		State:       s.state,
		LastFocus:   s.lastFocus,
		Frames:      s.frames,
		Properties:  make(map[driver.Property]int),
	}
	for _, p := range driver.Properties() {
		v, err := s.handle.GetProperty(p)
		switch {
		case err == nil:
			info.Properties[p] = v
		case errors.Is(err, driver.ErrUnsupported):
			info.Unsupported = append(info.Unsupported, p)
		default:
			logger.Debugf("read %s: %v", p, err)
		}
	}
	return info, nil
}
